package filters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"

	"github.com/wudi/pdfredact/ir/raw"
)

type flateDecoder struct{ maxSize int64 }

// NewFlateDecoder returns a FlateDecode decoder; maxSize (0 = unlimited)
// stops inflation early.
func NewFlateDecoder(maxSize int64) Decoder { return flateDecoder{maxSize: maxSize} }

func (flateDecoder) Name() string { return "FlateDecode" }

func (d flateDecoder) Decode(ctx context.Context, in []byte, params *raw.DictObj) ([]byte, error) {
	out, err := d.inflate(in)
	if err != nil {
		return nil, err
	}
	predictor := intParam(params, "Predictor", 1)
	if predictor <= 1 {
		return out, nil
	}
	return applyPredictor(out, predictor, params)
}

// inflate reads zlib data, falling back to a bare deflate stream for
// producers that omit the zlib header. Truncated streams keep the bytes
// recovered before the error.
func (d flateDecoder) inflate(in []byte) ([]byte, error) {
	var r io.ReadCloser
	if zr, err := zlib.NewReader(bytes.NewReader(in)); err == nil {
		r = zr
	} else {
		r = flate.NewReader(bytes.NewReader(in))
	}
	defer r.Close()

	var src io.Reader = r
	if d.maxSize > 0 {
		src = io.LimitReader(r, d.maxSize+1)
	}
	var out bytes.Buffer
	_, err := io.Copy(&out, src)
	if d.maxSize > 0 && int64(out.Len()) > d.maxSize {
		return nil, ErrLimitExceeded
	}
	if err != nil {
		if out.Len() > 0 && (errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, zlib.ErrChecksum)) {
			return out.Bytes(), nil
		}
		return nil, err
	}
	return out.Bytes(), nil
}

// FlateEncode compresses data with zlib at the default level.
func FlateEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// applyPredictor undoes TIFF predictor 2 and PNG predictors 10-15.
func applyPredictor(data []byte, predictor int, params *raw.DictObj) ([]byte, error) {
	columns := intParam(params, "Columns", 1)
	colors := intParam(params, "Colors", 1)
	bpc := intParam(params, "BitsPerComponent", 8)
	if columns < 1 || colors < 1 || bpc < 1 {
		return nil, fmt.Errorf("invalid predictor parameters")
	}
	bytesPerPixel := (colors*bpc + 7) / 8
	rowLen := (columns*colors*bpc + 7) / 8

	switch {
	case predictor == 2:
		if bpc != 8 {
			return nil, fmt.Errorf("TIFF predictor with %d bits per component not supported", bpc)
		}
		out := append([]byte(nil), data...)
		for row := 0; row+rowLen <= len(out); row += rowLen {
			for i := bytesPerPixel; i < rowLen; i++ {
				out[row+i] += out[row+i-bytesPerPixel]
			}
		}
		return out, nil
	case predictor >= 10 && predictor <= 15:
		return decodePNG(data, rowLen, bytesPerPixel)
	}
	return nil, fmt.Errorf("unsupported predictor: %d", predictor)
}

// decodePNG removes the per-row filter byte of PNG-predicted data. A short
// trailing row is ignored.
func decodePNG(data []byte, rowLen, bpp int) ([]byte, error) {
	stride := rowLen + 1
	rows := len(data) / stride
	out := make([]byte, 0, rows*rowLen)
	prev := make([]byte, rowLen)
	cur := make([]byte, rowLen)
	for r := 0; r < rows; r++ {
		line := data[r*stride : (r+1)*stride]
		ft := line[0]
		copy(cur, line[1:])
		for i := 0; i < rowLen; i++ {
			var left, upLeft byte
			up := prev[i]
			if i >= bpp {
				left = cur[i-bpp]
				upLeft = prev[i-bpp]
			}
			switch ft {
			case 0:
			case 1:
				cur[i] += left
			case 2:
				cur[i] += up
			case 3:
				cur[i] += byte((int(left) + int(up)) / 2)
			case 4:
				cur[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("invalid PNG filter type %d in row %d", ft, r)
			}
		}
		out = append(out, cur...)
		prev, cur = cur, prev
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
