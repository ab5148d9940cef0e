package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/wudi/pdfredact/filters"
	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/recovery"
	"github.com/wudi/pdfredact/scanner"
)

type EntryKind int

const (
	EntryFree EntryKind = iota
	EntryInUse
	EntryCompressed
)

// Entry locates one object: a byte offset for EntryInUse, or the containing
// object stream and index for EntryCompressed.
type Entry struct {
	Kind   EntryKind
	Offset int64
	Gen    int
	Stream int
	Index  int
}

// Table is the merged view of every cross-reference section of a file.
type Table struct {
	entries map[int]Entry
	// Trailer merges trailer dictionaries, newest keys winning.
	Trailer *raw.DictObj
	// StartXRef is the offset named by the last startxref keyword.
	StartXRef int64
	// Repaired is set when the table was rebuilt by scanning the file.
	Repaired bool
}

func newTable() *Table { return &Table{entries: make(map[int]Entry), Trailer: raw.Dict()} }

func (t *Table) Lookup(objNum int) (Entry, bool) {
	e, ok := t.entries[objNum]
	return e, ok && e.Kind != EntryFree
}

// Objects returns the numbers of all in-use and compressed objects.
func (t *Table) Objects() []int {
	nums := make([]int, 0, len(t.entries))
	for n, e := range t.entries {
		if e.Kind != EntryFree {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	return nums
}

// set records e unless a newer section already described the object.
func (t *Table) set(num int, e Entry) {
	if _, ok := t.entries[num]; !ok {
		t.entries[num] = e
	}
}

// mergeTrailer copies keys missing from the newest trailer out of an older one.
func (t *Table) mergeTrailer(older *raw.DictObj) {
	for _, k := range older.Keys() {
		switch k {
		case "Prev", "XRefStm", "Type", "W", "Index", "Filter", "DecodeParms", "Length":
			continue
		}
		if _, ok := t.Trailer.Get(k); !ok {
			t.Trailer.Set(k, older.KV[k])
		}
	}
}

// ObjectSource parses objects out of the file for trailers and xref streams.
type ObjectSource interface {
	// DirectAt parses the direct object starting at offset.
	DirectAt(offset int64) (raw.Object, error)
	// IndirectAt parses the "n g obj ... endobj" definition at offset.
	IndirectAt(offset int64) (raw.ObjectRef, raw.Object, error)
}

type ResolverConfig struct {
	MaxXRefDepth int
	Recovery     recovery.Strategy
	Filters      *filters.Pipeline
}

type Resolver struct {
	cfg ResolverConfig
}

func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 64
	}
	if cfg.Filters == nil {
		cfg.Filters = filters.NewDefaultPipeline(filters.DefaultLimits)
	}
	return &Resolver{cfg: cfg}
}

var (
	ErrNoStartXRef = errors.New("startxref not found")
	ErrNoRoot      = errors.New("trailer has no /Root")
)

// Resolve reads every xref section reachable from startxref. When that fails
// and the recovery strategy allows it, the table is rebuilt by scanning.
func (r *Resolver) Resolve(ctx context.Context, data []byte, src ObjectSource) (*Table, error) {
	t, err := r.resolveChain(ctx, data, src)
	if err == nil {
		return t, nil
	}
	if r.cfg.Recovery == nil || r.cfg.Recovery.OnError(err, recovery.Location{Component: "xref"}) == recovery.ActionFail {
		return nil, err
	}
	return repair(ctx, data, src)
}

func (r *Resolver) resolveChain(ctx context.Context, data []byte, src ObjectSource) (*Table, error) {
	start, err := findStartXRef(data)
	if err != nil {
		return nil, err
	}
	t := newTable()
	t.StartXRef = start
	visited := make(map[int64]bool)
	offset := start
	for depth := 0; ; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if depth >= r.cfg.MaxXRefDepth {
			return nil, fmt.Errorf("xref chain deeper than %d", r.cfg.MaxXRefDepth)
		}
		if visited[offset] {
			return nil, fmt.Errorf("xref loop at offset %d", offset)
		}
		visited[offset] = true
		trailer, err := r.readSection(ctx, data, offset, src, t)
		if err != nil {
			return nil, fmt.Errorf("xref section at %d: %w", offset, err)
		}
		if depth == 0 {
			t.Trailer = trailer.Clone()
		} else {
			t.mergeTrailer(trailer)
		}
		prev, ok := raw.AsInt(trailer.KV["Prev"])
		if !ok {
			break
		}
		offset = prev
	}
	if _, ok := t.Trailer.Get("Root"); !ok {
		return nil, ErrNoRoot
	}
	return t, nil
}

func findStartXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, ErrNoStartXRef
	}
	s := scanner.New(data[idx+len("startxref"):], scanner.Config{NoRefs: true})
	tok, err := s.Next()
	if err != nil || tok.Type != scanner.TokenNumber {
		return 0, fmt.Errorf("parse startxref: %w", ErrNoStartXRef)
	}
	off := int64(tok.Float())
	if off <= 0 || off >= int64(len(data)) {
		return 0, fmt.Errorf("xref offset out of range: %d", off)
	}
	return off, nil
}

// readSection merges the section at offset into t and returns its trailer.
func (r *Resolver) readSection(ctx context.Context, data []byte, offset int64, src ObjectSource, t *Table) (*raw.DictObj, error) {
	s := scanner.New(data, scanner.Config{NoRefs: true})
	if err := s.SeekTo(offset); err != nil {
		return nil, err
	}
	tok, err := s.Next()
	if err != nil {
		return nil, err
	}
	if tok.Keyword() == "xref" {
		entries, trailer, err := readTable(s, src)
		if err != nil {
			return nil, err
		}
		// Hybrid files: the /XRefStm section describes compressed objects the
		// table marks free, so it is merged before the table itself.
		if stmOff, ok := raw.AsInt(trailer.KV["XRefStm"]); ok {
			if _, err := r.readStream(ctx, stmOff, src, t); err != nil {
				return nil, fmt.Errorf("XRefStm: %w", err)
			}
		}
		for num, e := range entries {
			t.set(num, e)
		}
		return trailer, nil
	}
	return r.readStream(ctx, offset, src, t)
}

func readTable(s *scanner.Scanner, src ObjectSource) (map[int]Entry, *raw.DictObj, error) {
	entries := make(map[int]Entry)
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, nil, err
		}
		if tok.Keyword() == "trailer" {
			obj, err := src.DirectAt(s.Position())
			if err != nil {
				return nil, nil, fmt.Errorf("trailer: %w", err)
			}
			dict, ok := obj.(*raw.DictObj)
			if !ok {
				return nil, nil, errors.New("trailer is not a dictionary")
			}
			return entries, dict, nil
		}
		if tok.Type != scanner.TokenNumber {
			return nil, nil, fmt.Errorf("unexpected token %v in xref table", tok.Value)
		}
		first := int(tok.Float())
		countTok, err := s.Next()
		if err != nil || countTok.Type != scanner.TokenNumber {
			return nil, nil, errors.New("xref subsection missing count")
		}
		count := int(countTok.Float())
		for i := 0; i < count; i++ {
			offTok, err1 := s.Next()
			genTok, err2 := s.Next()
			kindTok, err3 := s.Next()
			if err := errors.Join(err1, err2, err3); err != nil {
				return nil, nil, err
			}
			e := Entry{Offset: int64(offTok.Float()), Gen: int(genTok.Float())}
			switch kindTok.Keyword() {
			case "n":
				e.Kind = EntryInUse
			case "f":
				e.Kind = EntryFree
			default:
				return nil, nil, fmt.Errorf("bad xref entry type %v", kindTok.Value)
			}
			if e.Kind == EntryInUse && e.Offset == 0 {
				e.Kind = EntryFree
			}
			if _, seen := entries[first+i]; !seen {
				entries[first+i] = e
			}
		}
	}
}

// readStream parses a cross-reference stream (PDF 1.5+).
func (r *Resolver) readStream(ctx context.Context, offset int64, src ObjectSource, t *Table) (*raw.DictObj, error) {
	_, obj, err := src.IndirectAt(offset)
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, errors.New("xref offset does not point at a stream")
	}
	if typ, _ := raw.AsName(stream.Dict.KV["Type"]); typ != "XRef" {
		return nil, fmt.Errorf("stream type %q is not XRef", typ)
	}
	data, err := r.cfg.Filters.DecodeStream(ctx, stream, nil)
	if err != nil {
		return nil, err
	}
	w, ok := stream.Dict.KV["W"].(*raw.ArrayObj)
	if !ok || w.Len() != 3 {
		return nil, errors.New("xref stream /W must have three entries")
	}
	var widths [3]int
	rowLen := 0
	for i := range widths {
		n, _ := raw.AsInt(w.Items[i])
		if n < 0 || n > 8 {
			return nil, fmt.Errorf("invalid /W width %d", n)
		}
		widths[i] = int(n)
		rowLen += int(n)
	}
	if rowLen == 0 {
		return nil, errors.New("empty /W")
	}
	size, _ := raw.AsInt(stream.Dict.KV["Size"])
	index := []int64{0, size}
	if arr, ok := stream.Dict.KV["Index"].(*raw.ArrayObj); ok && arr.Len()%2 == 0 {
		index = index[:0]
		for _, item := range arr.Items {
			n, _ := raw.AsInt(item)
			index = append(index, n)
		}
	}
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		first, count := int(index[i]), int(index[i+1])
		for j := 0; j < count; j++ {
			if pos+rowLen > len(data) {
				return stream.Dict, nil
			}
			row := data[pos : pos+rowLen]
			pos += rowLen
			kind := int64(1)
			if widths[0] > 0 {
				kind = readField(row[:widths[0]])
			}
			f2 := readField(row[widths[0] : widths[0]+widths[1]])
			f3 := readField(row[widths[0]+widths[1]:])
			switch kind {
			case 0:
				t.set(first+j, Entry{Kind: EntryFree})
			case 1:
				t.set(first+j, Entry{Kind: EntryInUse, Offset: f2, Gen: int(f3)})
			case 2:
				t.set(first+j, Entry{Kind: EntryCompressed, Stream: int(f2), Index: int(f3)})
			}
		}
	}
	return stream.Dict, nil
}

func readField(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}
