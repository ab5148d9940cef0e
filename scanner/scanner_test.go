package scanner

import (
	"encoding/hex"
	"errors"
	"io"
	"testing"

	"pgregory.net/rapid"
)

func nextToken(t *testing.T, s *Scanner) Token {
	t.Helper()
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tok
}

func TestScanner_BasicTokens(t *testing.T) {
	s := New([]byte("%PDF-1.7\n1 0 obj\n<< /Name /Value /Nums [1 2.5 -3] /Flag true /Null null /Ref 12 0 R >>\nendobj"), Config{})

	want := []struct {
		typ TokenType
		val interface{}
	}{
		{TokenNumber, int64(1)},
		{TokenNumber, int64(0)},
		{TokenKeyword, "obj"},
		{TokenDict, "<<"},
		{TokenName, "Name"},
		{TokenName, "Value"},
		{TokenName, "Nums"},
		{TokenArray, "["},
		{TokenNumber, int64(1)},
		{TokenNumber, 2.5},
		{TokenNumber, int64(-3)},
		{TokenKeyword, "]"},
		{TokenName, "Flag"},
		{TokenBoolean, true},
		{TokenName, "Null"},
		{TokenNull, nil},
		{TokenName, "Ref"},
		{TokenRef, Ref{Num: 12, Gen: 0}},
		{TokenKeyword, ">>"},
		{TokenKeyword, "endobj"},
	}
	for i, w := range want {
		tok := nextToken(t, s)
		if tok.Type != w.typ || tok.Value != w.val {
			t.Fatalf("token %d: got %v/%v want %v/%v", i, tok.Type, tok.Value, w.typ, w.val)
		}
	}
	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestScanner_Strings(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		typ  TokenType
	}{
		{"plain", "(Hello)", "Hello", TokenString},
		{"nested", "(a (b) c)", "a (b) c", TokenString},
		{"escapes", `(\(\)\\\n\t)`, "()\\\n\t", TokenString},
		{"octal", `(\101\60x\0053)`, "A0x\x053", TokenString},
		{"continuation", "(ab\\\ncd)", "abcd", TokenString},
		{"crlf", "(a\r\nb)", "a\nb", TokenString},
		{"hex", "<48 65 6C6c6F>", "Hello", TokenHexString},
		{"hex odd", "<414>", "A@", TokenHexString},
		{"name escape", "/A#20B", "A B", TokenName},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tok := nextToken(t, New([]byte(tc.in), Config{}))
			if tok.Type != tc.typ {
				t.Fatalf("type %v want %v", tok.Type, tc.typ)
			}
			var got string
			switch v := tok.Value.(type) {
			case []byte:
				got = string(v)
			case string:
				got = v
			}
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestScanner_UnterminatedString(t *testing.T) {
	_, err := New([]byte("(abc"), Config{}).Next()
	if !errors.Is(err, ErrUnterminated) {
		t.Fatalf("expected ErrUnterminated, got %v", err)
	}
}

func TestScanner_StreamWithLengthHint(t *testing.T) {
	s := New([]byte("stream\r\nabc endstream\nendobj"), Config{})
	s.SetNextStreamLength(3)
	tok := nextToken(t, s)
	if tok.Type != TokenStream || string(tok.Value.([]byte)) != "abc" {
		t.Fatalf("unexpected stream token %+v", tok)
	}
	if kw := nextToken(t, s).Keyword(); kw != "endobj" {
		t.Fatalf("expected endobj after stream, got %q", kw)
	}
}

func TestScanner_StreamWrongLength(t *testing.T) {
	s := New([]byte("stream\nabcdef\nendstream"), Config{})
	s.SetNextStreamLength(2)
	tok := nextToken(t, s)
	if got := string(tok.Value.([]byte)); got != "abcdef" {
		t.Fatalf("expected scan fallback payload, got %q", got)
	}
}

func TestScanner_InlineImage(t *testing.T) {
	s := New([]byte("BI /W 1 /H 1 ID \x00\xffEIx EI Q"), Config{NoRefs: true})
	var data []byte
	for {
		tok := nextToken(t, s)
		if tok.Type == TokenInlineImage {
			data = tok.Value.([]byte)
			break
		}
	}
	if string(data) != "\x00\xffEIx" {
		t.Fatalf("unexpected inline payload %q", data)
	}
	if kw := nextToken(t, s).Keyword(); kw != "Q" {
		t.Fatalf("expected Q after inline image, got %q", kw)
	}
}

func TestScanner_ContentOperators(t *testing.T) {
	s := New([]byte("1 0 0 1 72 700 Tm T* (x)'"), Config{NoRefs: true})
	var kws []string
	for {
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if tok.Type == TokenKeyword {
			kws = append(kws, tok.Keyword())
		}
	}
	if len(kws) != 3 || kws[0] != "Tm" || kws[1] != "T*" || kws[2] != "'" {
		t.Fatalf("unexpected operators %v", kws)
	}
}

func TestScanner_SeekTo(t *testing.T) {
	s := New([]byte("1 0 obj /Skipped endobj /Target"), Config{})
	if err := s.SeekTo(24); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if tok := nextToken(t, s); tok.Type != TokenName || tok.Value != "Target" {
		t.Fatalf("unexpected token %+v", tok)
	}
	if err := s.SeekTo(-1); err == nil {
		t.Fatalf("negative offset accepted")
	}
	if err := s.SeekTo(100); err == nil {
		t.Fatalf("offset past end accepted")
	}
}

func TestScanner_HexRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOf(rapid.Byte()).Draw(t, "payload")
		tok, err := New([]byte("<"+hex.EncodeToString(payload)+">"), Config{}).Next()
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		got := tok.Value.([]byte)
		if string(got) != string(payload) {
			t.Fatalf("got %x want %x", got, payload)
		}
	})
}
