package filters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wudi/pdfredact/ir/raw"
)

// Decoder reverses one PDF stream filter.
type Decoder interface {
	Name() string
	Decode(ctx context.Context, input []byte, params *raw.DictObj) ([]byte, error)
}

type Limits struct {
	MaxDecompressedSize int64
	MaxDecodeTime       time.Duration
}

// DefaultLimits bounds decompression bombs in untrusted uploads.
var DefaultLimits = Limits{MaxDecompressedSize: 256 << 20, MaxDecodeTime: 30 * time.Second}

var (
	// ErrUnsupportedFilter is returned for filters the pipeline cannot decode,
	// typically image codecs (DCT, JPX, JBIG2, CCITT).
	ErrUnsupportedFilter = errors.New("unsupported filter")
	// ErrLimitExceeded is returned when decoded data grows past the limit.
	ErrLimitExceeded = errors.New("decompressed size exceeds limit")
)

type Pipeline struct {
	decoders map[string]Decoder
	limits   Limits
}

// NewPipeline constructs a pipeline with provided decoders and limits.
func NewPipeline(decoders []Decoder, limits Limits) *Pipeline {
	p := &Pipeline{decoders: make(map[string]Decoder, len(decoders)), limits: limits}
	for _, d := range decoders {
		p.decoders[d.Name()] = d
	}
	return p
}

// NewDefaultPipeline registers every decoder in this package.
func NewDefaultPipeline(limits Limits) *Pipeline {
	return NewPipeline([]Decoder{
		NewFlateDecoder(limits.MaxDecompressedSize),
		NewLZWDecoder(),
		NewASCII85Decoder(),
		NewASCIIHexDecoder(),
		NewRunLengthDecoder(),
	}, limits)
}

// abbreviations used in inline image dictionaries
var shortNames = map[string]string{
	"Fl":  "FlateDecode",
	"LZW": "LZWDecode",
	"A85": "ASCII85Decode",
	"AHx": "ASCIIHexDecode",
	"RL":  "RunLengthDecode",
}

func (p *Pipeline) Decode(ctx context.Context, input []byte, filterNames []string, params []*raw.DictObj) ([]byte, error) {
	if p.limits.MaxDecodeTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.limits.MaxDecodeTime)
		defer cancel()
	}
	data := input
	for i, name := range filterNames {
		if long, ok := shortNames[name]; ok {
			name = long
		}
		dec, ok := p.decoders[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, name)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var param *raw.DictObj
		if i < len(params) {
			param = params[i]
		}
		out, err := dec.Decode(ctx, data, param)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if p.limits.MaxDecompressedSize > 0 && int64(len(out)) > p.limits.MaxDecompressedSize {
			return nil, ErrLimitExceeded
		}
		data = out
	}
	return data, nil
}

// DecodeStream decodes a stream using its /Filter and /DecodeParms entries.
// resolve dereferences indirect values inside the stream dictionary; it may
// be nil when the dictionary holds only direct objects.
func (p *Pipeline) DecodeStream(ctx context.Context, s *raw.StreamObj, resolve func(raw.Object) raw.Object) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	names, params := ExtractFilters(s.Dict, resolve)
	if len(names) == 0 {
		return s.Data, nil
	}
	return p.Decode(ctx, s.Data, names, params)
}

// ExtractFilters returns the filter chain of a stream dictionary with one
// parameter dictionary (possibly nil) per filter.
func ExtractFilters(dict *raw.DictObj, resolve func(raw.Object) raw.Object) ([]string, []*raw.DictObj) {
	if resolve == nil {
		resolve = func(o raw.Object) raw.Object { return o }
	}
	get := func(keys ...string) raw.Object {
		for _, k := range keys {
			if v, ok := dict.Get(k); ok {
				return resolve(v)
			}
		}
		return nil
	}
	var names []string
	switch f := get("Filter", "F").(type) {
	case raw.NameObj:
		names = []string{f.Val}
	case *raw.ArrayObj:
		for _, item := range f.Items {
			if n, ok := resolve(item).(raw.NameObj); ok {
				names = append(names, n.Val)
			}
		}
	}
	params := make([]*raw.DictObj, len(names))
	switch dp := get("DecodeParms", "DP").(type) {
	case *raw.DictObj:
		if len(params) > 0 {
			params[0] = dp
		}
	case *raw.ArrayObj:
		for i, item := range dp.Items {
			if i >= len(params) {
				break
			}
			if d, ok := resolve(item).(*raw.DictObj); ok {
				params[i] = d
			}
		}
	}
	return names, params
}

func intParam(params *raw.DictObj, key string, def int) int {
	if params == nil {
		return def
	}
	v, ok := params.Get(key)
	if !ok {
		return def
	}
	if n, ok := raw.AsInt(v); ok {
		return int(n)
	}
	return def
}
