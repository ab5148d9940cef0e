// Package contentstream parses page content into operations, serializes
// them back, and traces where text and images land on the page.
package contentstream

import (
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/scanner"
	"github.com/wudi/pdfredact/writer"
)

// Operation is one operator with the operands that preceded it.
type Operation struct {
	Operator string
	Operands []raw.Object
	// Inline holds the sample data of an inline image ("BI"); Operands[0]
	// is then the image dictionary.
	Inline []byte
}

const maxOperandDepth = 64

// Parse splits a decoded content stream into operations. Operands left
// without an operator at the end of the stream are dropped.
func Parse(data []byte) ([]Operation, error) {
	s := scanner.New(data, scanner.Config{NoRefs: true})
	var (
		ops      []Operation
		operands []raw.Object
	)
	for {
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			return ops, nil
		}
		if err != nil {
			return ops, err
		}
		if tok.Type != scanner.TokenKeyword {
			obj, err := operand(s, tok, 0)
			if err != nil {
				return ops, err
			}
			operands = append(operands, obj)
			continue
		}
		kw := tok.Keyword()
		if kw == "BI" {
			op, err := inlineImage(s)
			if err != nil {
				return ops, err
			}
			ops = append(ops, op)
			operands = nil
			continue
		}
		ops = append(ops, Operation{Operator: kw, Operands: operands})
		operands = nil
	}
}

func operand(s *scanner.Scanner, tok scanner.Token, depth int) (raw.Object, error) {
	if depth > maxOperandDepth {
		return nil, errors.New("operand nesting too deep")
	}
	switch tok.Type {
	case scanner.TokenName:
		return raw.NameLiteral(tok.Value.(string)), nil
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
	case scanner.TokenArray:
		arr := raw.NewArray()
		for {
			next, err := s.Next()
			if err != nil {
				return nil, fmt.Errorf("array at %d: %w", tok.Pos, err)
			}
			if next.Keyword() == "]" {
				return arr, nil
			}
			item, err := operand(s, next, depth+1)
			if err != nil {
				return nil, err
			}
			arr.Append(item)
		}
	case scanner.TokenDict:
		d := raw.Dict()
		for {
			key, err := s.Next()
			if err != nil {
				return nil, fmt.Errorf("dict at %d: %w", tok.Pos, err)
			}
			if key.Keyword() == ">>" {
				return d, nil
			}
			if key.Type != scanner.TokenName {
				return nil, fmt.Errorf("dict key at %d is not a name", key.Pos)
			}
			next, err := s.Next()
			if err != nil {
				return nil, err
			}
			val, err := operand(s, next, depth+1)
			if err != nil {
				return nil, err
			}
			d.Set(key.Value.(string), val)
		}
	}
	if tok.Type == scanner.TokenKeyword {
		return nil, fmt.Errorf("unexpected %q at %d", tok.Keyword(), tok.Pos)
	}
	return nil, fmt.Errorf("unexpected token at %d", tok.Pos)
}

// inlineImage reads "key value ... ID data EI" after a BI keyword.
func inlineImage(s *scanner.Scanner) (Operation, error) {
	dict := raw.Dict()
	for {
		tok, err := s.Next()
		if err != nil {
			return Operation{}, fmt.Errorf("inline image: %w", err)
		}
		if tok.Type == scanner.TokenInlineImage {
			return Operation{Operator: "BI", Operands: []raw.Object{dict}, Inline: tok.Value.([]byte)}, nil
		}
		if tok.Type != scanner.TokenName {
			return Operation{}, fmt.Errorf("inline image key at %d is not a name", tok.Pos)
		}
		next, err := s.Next()
		if err != nil {
			return Operation{}, fmt.Errorf("inline image: %w", err)
		}
		val, err := operand(s, next, 1)
		if err != nil {
			return Operation{}, err
		}
		dict.Set(tok.Value.(string), val)
	}
}

// Serialize writes operations back to content stream syntax, one per line.
func Serialize(ops []Operation) []byte {
	var b []byte
	for _, op := range ops {
		if op.Operator == "BI" {
			b = append(b, "BI"...)
			if len(op.Operands) > 0 {
				if d, ok := op.Operands[0].(*raw.DictObj); ok {
					for _, k := range d.Keys() {
						b = append(b, ' ')
						b = writer.AppendName(b, k)
						b = append(b, ' ')
						b = writer.AppendObject(b, d.KV[k])
					}
				}
			}
			b = append(b, " ID "...)
			b = append(b, op.Inline...)
			b = append(b, "\nEI\n"...)
			continue
		}
		for _, o := range op.Operands {
			b = writer.AppendObject(b, o)
			b = append(b, ' ')
		}
		b = append(b, op.Operator...)
		b = append(b, '\n')
	}
	return b
}
