package parser

import (
	"errors"
	"fmt"

	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/recovery"
	"github.com/wudi/pdfredact/scanner"
)

// maxNesting bounds array/dictionary recursion in hostile files.
const maxNesting = 256

type tokenReader struct {
	s   *scanner.Scanner
	buf []scanner.Token
}

func newTokenReader(s *scanner.Scanner) *tokenReader { return &tokenReader{s: s} }

func (r *tokenReader) next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *tokenReader) unread(tok scanner.Token) { r.buf = append(r.buf, tok) }

// objectParser turns tokens into raw objects. It implements xref.ObjectSource.
type objectParser struct {
	data     []byte
	recovery recovery.Strategy
	// lengthOf resolves an indirect /Length; nil while the xref is unknown.
	lengthOf func(raw.ObjectRef) (int64, bool)
}

func (p *objectParser) scannerAt(offset int64) (*scanner.Scanner, error) {
	s := scanner.New(p.data, scanner.Config{})
	if err := s.SeekTo(offset); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *objectParser) DirectAt(offset int64) (raw.Object, error) {
	s, err := p.scannerAt(offset)
	if err != nil {
		return nil, err
	}
	return p.parseObject(newTokenReader(s), recovery.Location{ByteOffset: offset, Component: "parser"}, 0)
}

func (p *objectParser) IndirectAt(offset int64) (raw.ObjectRef, raw.Object, error) {
	s, err := p.scannerAt(offset)
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	tr := newTokenReader(s)
	tokNum, err1 := tr.next()
	tokGen, err2 := tr.next()
	tokObj, err3 := tr.next()
	if err := errors.Join(err1, err2, err3); err != nil {
		return raw.ObjectRef{}, nil, err
	}
	if tokNum.Type != scanner.TokenNumber || tokGen.Type != scanner.TokenNumber || tokObj.Keyword() != "obj" {
		return raw.ObjectRef{}, nil, fmt.Errorf("no object header at offset %d", offset)
	}
	ref := raw.ObjectRef{Num: int(tokNum.Float()), Gen: int(tokGen.Float())}
	loc := recovery.Location{ByteOffset: offset, ObjectNum: ref.Num, ObjectGen: ref.Gen, Component: "parser"}

	obj, err := p.parseObject(tr, loc, 0)
	if err != nil {
		return ref, nil, err
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return ref, obj, nil
	}
	// A stream keyword may follow the dictionary.
	s.SetNextStreamLength(p.streamLength(dict))
	tok, err := tr.next()
	if err == nil && tok.Type == scanner.TokenStream {
		data := tok.Value.([]byte)
		return ref, raw.NewStream(dict, data), nil
	}
	return ref, dict, nil
}

func (p *objectParser) streamLength(dict *raw.DictObj) int64 {
	switch v := dict.KV["Length"].(type) {
	case raw.NumberObj:
		return v.Int()
	case raw.RefObj:
		if p.lengthOf != nil {
			if n, ok := p.lengthOf(v.R); ok {
				return n
			}
		}
	}
	return -1
}

func (p *objectParser) parseObject(tr *tokenReader, loc recovery.Location, depth int) (raw.Object, error) {
	if depth > maxNesting {
		return nil, errors.New("object nesting too deep")
	}
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenName:
		return raw.NameObj{Val: tok.Value.(string)}, nil
	case scanner.TokenNumber:
		if i, ok := tok.Value.(int64); ok {
			return raw.NumberInt(i), nil
		}
		return raw.NumberFloat(tok.Float()), nil
	case scanner.TokenBoolean:
		return raw.Bool(tok.Value.(bool)), nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenString:
		return raw.Str(tok.Value.([]byte)), nil
	case scanner.TokenHexString:
		return raw.HexStr(tok.Value.([]byte)), nil
	case scanner.TokenRef:
		r := tok.Value.(scanner.Ref)
		return raw.Ref(r.Num, r.Gen), nil
	case scanner.TokenArray:
		return p.parseArray(tr, loc, depth)
	case scanner.TokenDict:
		return p.parseDict(tr, loc, depth)
	}
	return nil, fmt.Errorf("unexpected token %v at %d", tok.Value, tok.Pos)
}

func (p *objectParser) parseArray(tr *tokenReader, loc recovery.Location, depth int) (raw.Object, error) {
	arr := &raw.ArrayObj{}
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Keyword() == "]" {
			return arr, nil
		}
		if tok.Keyword() == "endobj" {
			if err := p.recover(errors.New("unexpected endobj in array (missing ]?)"), loc); err != nil {
				return nil, err
			}
			tr.unread(tok)
			return arr, nil
		}
		tr.unread(tok)
		item, err := p.parseObject(tr, loc, depth+1)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func (p *objectParser) parseDict(tr *tokenReader, loc recovery.Location, depth int) (raw.Object, error) {
	d := raw.Dict()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Keyword() == ">>" {
			return d, nil
		}
		if tok.Type != scanner.TokenName {
			if tok.Keyword() == "endobj" || tok.Type == scanner.TokenStream {
				if err := p.recover(errors.New("unexpected end of dictionary (missing >>?)"), loc); err != nil {
					return nil, err
				}
				tr.unread(tok)
				return d, nil
			}
			return nil, fmt.Errorf("expected name in dict at %d", tok.Pos)
		}
		val, err := p.parseObject(tr, loc, depth+1)
		if err != nil {
			return nil, err
		}
		d.Set(tok.Value.(string), val)
	}
}

func (p *objectParser) recover(err error, loc recovery.Location) error {
	if p.recovery == nil {
		return err
	}
	if p.recovery.OnError(err, loc) == recovery.ActionFail {
		return err
	}
	return nil
}
