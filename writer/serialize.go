package writer

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"

	"github.com/wudi/pdfredact/ir/raw"
)

// AppendObject appends the PDF syntax of a direct object. Streams are
// written with a /Length matching their data.
func AppendObject(b []byte, o raw.Object) []byte {
	switch v := o.(type) {
	case raw.NameObj:
		return AppendName(b, v.Val)
	case raw.NumberObj:
		if v.IsInt {
			return strconv.AppendInt(b, v.I, 10)
		}
		return AppendNumber(b, v.F)
	case raw.BoolObj:
		return strconv.AppendBool(b, v.V)
	case raw.StringObj:
		if v.Hex {
			b = append(b, '<')
			b = append(b, bytes.ToUpper([]byte(hex.EncodeToString(v.Bytes)))...)
			return append(b, '>')
		}
		return AppendLiteralString(b, v.Bytes)
	case *raw.ArrayObj:
		b = append(b, '[')
		for i, it := range v.Items {
			if i > 0 {
				b = append(b, ' ')
			}
			b = AppendObject(b, it)
		}
		return append(b, ']')
	case *raw.DictObj:
		b = append(b, "<<"...)
		for _, k := range v.Keys() {
			b = AppendName(b, k)
			b = append(b, ' ')
			b = AppendObject(b, v.KV[k])
		}
		return append(b, ">>"...)
	case *raw.StreamObj:
		dict := raw.Dict()
		if v.Dict != nil {
			dict = v.Dict.Clone()
		}
		dict.Set("Length", raw.NumberInt(int64(len(v.Data))))
		b = AppendObject(b, dict)
		b = append(b, "\nstream\n"...)
		b = append(b, v.Data...)
		return append(b, "\nendstream"...)
	case raw.RefObj:
		return fmt.Appendf(b, "%d %d R", v.R.Num, v.R.Gen)
	}
	return append(b, "null"...)
}

// AppendNumber writes f with at most four decimals and no exponent.
func AppendNumber(b []byte, f float64) []byte {
	r := math.Round(f*1e4) / 1e4
	if r == 0 {
		return append(b, '0')
	}
	return strconv.AppendFloat(b, r, 'f', -1, 64)
}

// AppendName writes /name, escaping delimiters, whitespace and '#'.
func AppendName(b []byte, name string) []byte {
	b = append(b, '/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x21 || c > 0x7e || c == '#' || isDelimiter(c) {
			b = fmt.Appendf(b, "#%02X", c)
			continue
		}
		b = append(b, c)
	}
	return b
}

// AppendLiteralString writes (s) with the escapes PDF requires.
func AppendLiteralString(b []byte, s []byte) []byte {
	b = append(b, '(')
	for _, c := range s {
		switch c {
		case '\\', '(', ')':
			b = append(b, '\\', c)
		case '\n':
			b = append(b, `\n`...)
		case '\r':
			b = append(b, `\r`...)
		case '\t':
			b = append(b, `\t`...)
		case '\b':
			b = append(b, `\b`...)
		case '\f':
			b = append(b, `\f`...)
		default:
			if c < 0x20 || c >= 0x7f {
				b = fmt.Appendf(b, "\\%03o", c)
			} else {
				b = append(b, c)
			}
		}
	}
	return append(b, ')')
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
