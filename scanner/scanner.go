package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

type TokenType int

const (
	TokenDict        TokenType = iota // '<<'
	TokenArray                        // '['
	TokenName                         // '/Name'
	TokenString                       // literal string
	TokenHexString                    // hex string
	TokenNumber                       // numeric value
	TokenBoolean                      // true/false
	TokenNull                         // null
	TokenRef                          // indirect ref '5 0 R'
	TokenStream                       // 'stream' keyword with its payload
	TokenInlineImage                  // inline image data following ID ... EI (content stream only)
	TokenKeyword                      // other keywords (obj, endobj, >>, ], operators)
)

// Token is one lexical unit. Value holds:
// string for names and keywords, []byte for strings and stream payloads,
// int64 or float64 for numbers, bool for booleans, Ref for references.
type Token struct {
	Type  TokenType
	Value interface{}
	Pos   int64
}

// Ref is the value of a TokenRef.
type Ref struct{ Num, Gen int }

// Keyword returns the keyword text, or "" for non-keyword tokens.
func (t Token) Keyword() string {
	if t.Type != TokenKeyword {
		return ""
	}
	s, _ := t.Value.(string)
	return s
}

// Float returns the numeric value of a number token.
func (t Token) Float() float64 {
	switch v := t.Value.(type) {
	case int64:
		return float64(v)
	case float64:
		return v
	}
	return 0
}

// Config tunes the scanner.
type Config struct {
	// NoRefs disables "n g R" folding, which content streams never use.
	NoRefs bool
	// MaxStreamLength bounds stream payloads (0 = unlimited).
	MaxStreamLength int64
}

// ErrUnterminated reports a string, stream or inline image running into EOF.
var ErrUnterminated = errors.New("unterminated token")

// Scanner tokenizes PDF syntax held in memory.
type Scanner struct {
	data          []byte
	pos           int64
	cfg           Config
	nextStreamLen int64
}

func New(data []byte, cfg Config) *Scanner {
	return &Scanner{data: data, cfg: cfg, nextStreamLen: -1}
}

func (s *Scanner) Position() int64 { return s.pos }
func (s *Scanner) Data() []byte    { return s.data }

func (s *Scanner) SeekTo(offset int64) error {
	if offset < 0 || offset > int64(len(s.data)) {
		return fmt.Errorf("seek %d out of range", offset)
	}
	s.pos = offset
	return nil
}

// SetNextStreamLength hints the /Length of the next stream payload.
func (s *Scanner) SetNextStreamLength(n int64) { s.nextStreamLen = n }

func (s *Scanner) Next() (Token, error) {
	s.skipWSAndComments()
	if s.pos >= int64(len(s.data)) {
		return Token{}, io.EOF
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peek(1) == '<' {
			s.pos += 2
			return Token{Type: TokenDict, Value: "<<", Pos: start}, nil
		}
		return s.scanHexString()
	case '>':
		if s.peek(1) == '>' {
			s.pos += 2
			return Token{Type: TokenKeyword, Value: ">>", Pos: start}, nil
		}
		s.pos++
		return Token{Type: TokenKeyword, Value: ">", Pos: start}, nil
	case '[':
		s.pos++
		return Token{Type: TokenArray, Value: "[", Pos: start}, nil
	case ']', '{', '}', ')':
		s.pos++
		return Token{Type: TokenKeyword, Value: string(c), Pos: start}, nil
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	}
	if isDigitStart(c) {
		if tok, ok := s.scanNumberOrRef(); ok {
			return tok, nil
		}
	}
	return s.scanKeyword()
}

func (s *Scanner) peek(n int64) byte {
	if s.pos+n >= int64(len(s.data)) {
		return 0
	}
	return s.data[s.pos+n]
}

func (s *Scanner) skipWSAndComments() {
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < int64(len(s.data)) && !isEOL(s.data[s.pos]) {
				s.pos++
			}
			continue
		}
		return
	}
}

func isDigitStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }

func (s *Scanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // '/'
	var buf bytes.Buffer
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isDelimiter(c) {
			break
		}
		if c == '#' && s.pos+2 < int64(len(s.data)) && isHex(s.data[s.pos+1]) && isHex(s.data[s.pos+2]) {
			buf.WriteByte(fromHex(s.data[s.pos+1])<<4 | fromHex(s.data[s.pos+2]))
			s.pos += 3
			continue
		}
		buf.WriteByte(c)
		s.pos++
	}
	return Token{Type: TokenName, Value: buf.String(), Pos: start}, nil
}

// scanLiteralString decodes a (...) string: escapes, octal codes, nested
// parentheses, line continuations and EOL normalization.
func (s *Scanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // '('
	depth := 1
	var buf bytes.Buffer
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '(':
			depth++
			buf.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return Token{Type: TokenString, Value: buf.Bytes(), Pos: start}, nil
			}
			buf.WriteByte(c)
		case '\r':
			if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
				s.pos++
			}
			buf.WriteByte('\n')
		case '\\':
			if s.pos >= int64(len(s.data)) {
				break
			}
			e := s.data[s.pos]
			s.pos++
			switch {
			case e >= '0' && e <= '7':
				v := int(e - '0')
				for i := 0; i < 2 && s.pos < int64(len(s.data)); i++ {
					d := s.data[s.pos]
					if d < '0' || d > '7' {
						break
					}
					v = v*8 + int(d-'0')
					s.pos++
				}
				buf.WriteByte(byte(v))
			case e == '\r':
				if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case e == '\n':
			default:
				buf.WriteByte(translateEscape(e))
			}
		default:
			buf.WriteByte(c)
		}
	}
	return Token{}, fmt.Errorf("string at %d: %w", start, ErrUnterminated)
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return c
	}
}

func (s *Scanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // '<'
	var out []byte
	var hi byte
	half := false
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			if half {
				out = append(out, hi<<4)
			}
			return Token{Type: TokenHexString, Value: out, Pos: start}, nil
		}
		if !isHex(c) {
			continue
		}
		if half {
			out = append(out, hi<<4|fromHex(c))
		} else {
			hi = fromHex(c)
		}
		half = !half
	}
	return Token{}, fmt.Errorf("hex string at %d: %w", start, ErrUnterminated)
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

func (s *Scanner) scanKeyword() (Token, error) {
	start := s.pos
	for s.pos < int64(len(s.data)) && !isDelimiter(s.data[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		// Stray delimiter such as an unmatched '%' handled above; consume one byte.
		s.pos++
	}
	kw := string(s.data[start:s.pos])
	switch kw {
	case "true", "false":
		return Token{Type: TokenBoolean, Value: kw == "true", Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Pos: start}, nil
	case "stream":
		return s.scanStream(start)
	case "ID":
		return s.scanInlineImage(start)
	}
	return Token{Type: TokenKeyword, Value: kw, Pos: start}, nil
}

// scanNumberOrRef reads a number, folding "n g R" into a reference unless
// disabled. ok is false when the bytes do not form a number.
func (s *Scanner) scanNumberOrRef() (Token, bool) {
	start := s.pos
	num1 := s.scanNumberString()
	if num1 == "" {
		return Token{}, false
	}
	if !s.cfg.NoRefs && isUnsigned(num1) {
		afterFirst := s.pos
		s.skipWSAndComments()
		num2 := s.scanNumberString()
		if num2 != "" && isUnsigned(num2) {
			s.skipWSAndComments()
			if s.pos < int64(len(s.data)) && s.data[s.pos] == 'R' &&
				(s.pos+1 >= int64(len(s.data)) || isDelimiter(s.data[s.pos+1])) {
				s.pos++
				n1, _ := strconv.Atoi(num1)
				n2, _ := strconv.Atoi(num2)
				return Token{Type: TokenRef, Value: Ref{Num: n1, Gen: n2}, Pos: start}, true
			}
		}
		s.pos = afterFirst
	}
	return Token{Type: TokenNumber, Value: parseNumber(num1), Pos: start}, true
}

func (s *Scanner) scanNumberString() string {
	start := s.pos
	seenDigit := false
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
			if c >= '0' && c <= '9' {
				seenDigit = true
			}
			s.pos++
			continue
		}
		break
	}
	if !seenDigit || (s.pos < int64(len(s.data)) && !isDelimiter(s.data[s.pos])) {
		s.pos = start
		return ""
	}
	return string(s.data[start:s.pos])
}

func isUnsigned(num string) bool {
	for i := 0; i < len(num); i++ {
		if num[i] < '0' || num[i] > '9' {
			return false
		}
	}
	return true
}

// parseNumber is lenient: producers emit forms like "--5" or "0.0.1".
func parseNumber(num string) interface{} {
	if i, err := strconv.ParseInt(num, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(num, 64); err == nil {
		return f
	}
	neg := false
	for len(num) > 0 && (num[0] == '-' || num[0] == '+') {
		neg = neg || num[0] == '-'
		num = num[1:]
	}
	if dot := bytes.IndexByte([]byte(num), '.'); dot >= 0 {
		if second := bytes.IndexByte([]byte(num[dot+1:]), '.'); second >= 0 {
			num = num[:dot+1+second]
		}
	}
	f, _ := strconv.ParseFloat(num, 64)
	if neg {
		f = -f
	}
	return f
}

func (s *Scanner) scanStream(start int64) (Token, error) {
	// PDF 7.3.8: stream keyword is followed by CRLF or LF; tolerate a bare CR.
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\r' {
		s.pos++
	}
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
		s.pos++
	}
	dataStart := s.pos
	hint := s.nextStreamLen
	s.nextStreamLen = -1

	needle := []byte("endstream")
	if hint >= 0 && dataStart+hint <= int64(len(s.data)) {
		if s.cfg.MaxStreamLength > 0 && hint > s.cfg.MaxStreamLength {
			return Token{}, fmt.Errorf("stream at %d: length %d exceeds limit", start, hint)
		}
		end := dataStart + hint
		after := end
		for after < int64(len(s.data)) && isWhitespace(s.data[after]) {
			after++
		}
		if bytes.HasPrefix(s.data[after:], needle) {
			s.pos = after + int64(len(needle))
			return Token{Type: TokenStream, Value: s.data[dataStart:end], Pos: start}, nil
		}
		// Declared length is wrong; fall back to scanning for the marker.
	}
	idx := bytes.Index(s.data[dataStart:], needle)
	if idx < 0 {
		return Token{}, fmt.Errorf("stream at %d: %w", start, ErrUnterminated)
	}
	end := dataStart + int64(idx)
	s.pos = end + int64(len(needle))
	if end > dataStart && s.data[end-1] == '\n' {
		end--
	}
	if end > dataStart && s.data[end-1] == '\r' {
		end--
	}
	if s.cfg.MaxStreamLength > 0 && end-dataStart > s.cfg.MaxStreamLength {
		return Token{}, fmt.Errorf("stream at %d: length %d exceeds limit", start, end-dataStart)
	}
	return Token{Type: TokenStream, Value: s.data[dataStart:end], Pos: start}, nil
}

// scanInlineImage consumes bytes after the ID keyword up to the EI operator.
// The payload excludes the whitespace that separates it from EI.
func (s *Scanner) scanInlineImage(start int64) (Token, error) {
	if s.pos < int64(len(s.data)) && isWhitespace(s.data[s.pos]) {
		s.pos++
	}
	dataStart := s.pos
	for i := dataStart; i+1 < int64(len(s.data)); i++ {
		if s.data[i] != 'E' || s.data[i+1] != 'I' {
			continue
		}
		if i > dataStart && !isWhitespace(s.data[i-1]) {
			continue
		}
		if i+2 < int64(len(s.data)) && !isDelimiter(s.data[i+2]) {
			continue
		}
		end := i
		if end > dataStart && isWhitespace(s.data[end-1]) {
			end--
		}
		s.pos = i + 2
		return Token{Type: TokenInlineImage, Value: s.data[dataStart:end], Pos: start}, nil
	}
	return Token{}, fmt.Errorf("inline image at %d: %w", start, ErrUnterminated)
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func isEOL(c byte) bool { return c == '\r' || c == '\n' }

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	default:
		return isWhitespace(c)
	}
}

// IsWhitespace reports PDF whitespace (7.2.3).
func IsWhitespace(c byte) bool { return isWhitespace(c) }

// IsDelimiter reports PDF delimiters and whitespace.
func IsDelimiter(c byte) bool { return isDelimiter(c) }
