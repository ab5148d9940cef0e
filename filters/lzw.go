package filters

import (
	"context"
	"errors"

	"github.com/wudi/pdfredact/ir/raw"
)

const (
	lzwClear = 256
	lzwEOD   = 257
)

type lzwDecoder struct{}

func NewLZWDecoder() Decoder { return lzwDecoder{} }

func (lzwDecoder) Name() string { return "LZWDecode" }

// Decode implements the PDF variant of LZW: MSB-first codes of 9 to 12 bits
// and /EarlyChange (default 1) widening the code one entry early.
func (lzwDecoder) Decode(ctx context.Context, in []byte, params *raw.DictObj) ([]byte, error) {
	early := intParam(params, "EarlyChange", 1)
	var (
		out     []byte
		table   [][]byte
		prev    []byte
		width   = 9
		bitBuf  uint32
		bitLen  int
		resetFn = func() {
			table = table[:0]
			for i := 0; i < 256; i++ {
				table = append(table, []byte{byte(i)})
			}
			table = append(table, nil, nil) // clear, EOD
			width = 9
			prev = nil
		}
	)
	table = make([][]byte, 0, 4096)
	resetFn()
	for _, b := range in {
		bitBuf = bitBuf<<8 | uint32(b)
		bitLen += 8
		for bitLen >= width {
			code := int(bitBuf>>(uint(bitLen-width))) & (1<<uint(width) - 1)
			bitLen -= width
			switch {
			case code == lzwClear:
				resetFn()
				continue
			case code == lzwEOD:
				return out, nil
			}
			var entry []byte
			switch {
			case code < len(table) && table[code] != nil:
				entry = table[code]
			case code == len(table) && prev != nil:
				entry = append(append([]byte(nil), prev...), prev[0])
			default:
				return nil, errors.New("invalid LZW code")
			}
			out = append(out, entry...)
			if prev != nil && len(table) < 4096 {
				table = append(table, append(append([]byte(nil), prev...), entry[0]))
			}
			prev = entry
			if len(table)+early >= 1<<uint(width) && width < 12 {
				width++
			}
		}
		bitBuf &= 1<<uint(bitLen) - 1
	}
	return out, nil
}
