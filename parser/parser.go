package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/wudi/pdfredact/filters"
	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/observability"
	"github.com/wudi/pdfredact/recovery"
	"github.com/wudi/pdfredact/scanner"
	"github.com/wudi/pdfredact/xref"
)

var (
	// ErrNotPDF is returned when no %PDF- header is present.
	ErrNotPDF = errors.New("not a pdf file")
	// ErrEncrypted is returned for files with an /Encrypt dictionary.
	ErrEncrypted = errors.New("encrypted pdf not supported")
)

// Config controls high-level PDF parsing (xref resolution + object loading).
type Config struct {
	Recovery recovery.Strategy
	Limits   filters.Limits
	Logger   observability.Logger
}

// DocumentParser builds a raw.Document using xref tables/streams and the object loader.
type DocumentParser struct {
	cfg     Config
	filters *filters.Pipeline
}

func NewDocumentParser(cfg Config) *DocumentParser {
	cfg.Logger = observability.OrNop(cfg.Logger)
	return &DocumentParser{cfg: cfg, filters: filters.NewDefaultPipeline(cfg.Limits)}
}

func (p *DocumentParser) Parse(ctx context.Context, data []byte) (*raw.Document, error) {
	version, err := headerVersion(data)
	if err != nil {
		return nil, err
	}
	objs := &objectParser{data: data, recovery: p.cfg.Recovery}
	resolver := xref.NewResolver(xref.ResolverConfig{Recovery: p.cfg.Recovery, Filters: p.filters})
	table, err := resolver.Resolve(ctx, data, objs)
	if err != nil {
		return nil, fmt.Errorf("resolve xref: %w", err)
	}
	if table.Repaired {
		p.cfg.Logger.Warn("xref rebuilt by scanning", observability.Int("objects", len(table.Objects())))
	}
	if _, ok := table.Trailer.Get("Encrypt"); ok {
		return nil, ErrEncrypted
	}
	objs.lengthOf = func(ref raw.ObjectRef) (int64, bool) {
		e, ok := table.Lookup(ref.Num)
		if !ok || e.Kind != xref.EntryInUse {
			return 0, false
		}
		inner := &objectParser{data: data}
		_, obj, err := inner.IndirectAt(e.Offset)
		if err != nil {
			return 0, false
		}
		n, ok := raw.AsInt(obj)
		return n, ok
	}

	doc := raw.NewDocument()
	doc.Version = version
	doc.Source = data
	doc.StartXRef = table.StartXRef
	doc.Trailer = table.Trailer

	l := &loader{p: p, objs: objs, table: table, doc: doc, objstm: make(map[int]map[int]raw.Object)}
	if err := l.loadAll(ctx); err != nil {
		return nil, err
	}
	if err := l.ensureRoot(); err != nil {
		return nil, err
	}
	p.cfg.Logger.Debug("parsed pdf",
		observability.String("version", version),
		observability.Int("objects", len(doc.Objects)),
		observability.Bool("repaired", table.Repaired),
	)
	return doc, nil
}

func headerVersion(data []byte) (string, error) {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	idx := bytes.Index(head, []byte("%PDF-"))
	if idx < 0 {
		return "", ErrNotPDF
	}
	v := head[idx+5:]
	end := 0
	for end < len(v) && end < 4 && (v[end] == '.' || (v[end] >= '0' && v[end] <= '9')) {
		end++
	}
	if end == 0 {
		return "1.4", nil
	}
	return string(v[:end]), nil
}

type loader struct {
	p      *DocumentParser
	objs   *objectParser
	table  *xref.Table
	doc    *raw.Document
	objstm map[int]map[int]raw.Object
}

func (l *loader) loadAll(ctx context.Context) error {
	for _, num := range l.table.Objects() {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, _ := l.table.Lookup(num)
		var (
			obj raw.Object
			gen int
			err error
		)
		switch e.Kind {
		case xref.EntryInUse:
			gen = e.Gen
			obj, err = l.loadAtOffset(num, e)
		case xref.EntryCompressed:
			obj, err = l.loadCompressed(ctx, num, e)
		}
		if err != nil {
			loc := recovery.Location{ByteOffset: e.Offset, ObjectNum: num, ObjectGen: gen, Component: "loader"}
			if l.p.cfg.Recovery == nil || l.p.cfg.Recovery.OnError(err, loc) == recovery.ActionFail {
				return fmt.Errorf("load object %d: %w", num, err)
			}
			continue
		}
		l.doc.Objects[raw.ObjectRef{Num: num, Gen: gen}] = obj
	}
	if l.table.Repaired {
		l.loadOrphanedObjectStreams(ctx)
	}
	return nil
}

func (l *loader) loadAtOffset(num int, e xref.Entry) (raw.Object, error) {
	ref, obj, err := l.objs.IndirectAt(e.Offset)
	if err != nil {
		return nil, err
	}
	if ref.Num != num {
		return nil, fmt.Errorf("object header %d does not match xref entry %d", ref.Num, num)
	}
	return obj, nil
}

func (l *loader) loadCompressed(ctx context.Context, num int, e xref.Entry) (raw.Object, error) {
	objs, err := l.objectStream(ctx, e.Stream)
	if err != nil {
		return nil, err
	}
	obj, ok := objs[num]
	if !ok {
		return nil, fmt.Errorf("object %d not found in object stream %d", num, e.Stream)
	}
	return obj, nil
}

// objectStream decodes and caches every object of an /ObjStm.
func (l *loader) objectStream(ctx context.Context, streamNum int) (map[int]raw.Object, error) {
	if objs, ok := l.objstm[streamNum]; ok {
		return objs, nil
	}
	e, ok := l.table.Lookup(streamNum)
	if !ok || e.Kind != xref.EntryInUse {
		return nil, fmt.Errorf("object stream %d missing", streamNum)
	}
	obj, err := l.loadAtOffset(streamNum, e)
	if err != nil {
		return nil, err
	}
	st, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, fmt.Errorf("object stream %d is not a stream", streamNum)
	}
	objs, err := l.parseObjectStream(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("object stream %d: %w", streamNum, err)
	}
	l.objstm[streamNum] = objs
	return objs, nil
}

func (l *loader) parseObjectStream(ctx context.Context, st *raw.StreamObj) (map[int]raw.Object, error) {
	n, _ := raw.AsInt(st.Dict.KV["N"])
	first, _ := raw.AsInt(st.Dict.KV["First"])
	data, err := l.p.filters.DecodeStream(ctx, st, l.doc.Resolve)
	if err != nil {
		return nil, err
	}
	if first < 0 || first > int64(len(data)) {
		return nil, errors.New("object stream /First exceeds length")
	}
	s := scanner.New(data[:first], scanner.Config{NoRefs: true})
	pairs := make([]int64, 0, 2*n)
	for int64(len(pairs)) < 2*n {
		tok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("object stream header: %w", err)
		}
		if v, ok := tok.Value.(int64); ok && tok.Type == scanner.TokenNumber {
			pairs = append(pairs, v)
		}
	}
	body := &objectParser{data: data[first:], recovery: l.p.cfg.Recovery}
	objs := make(map[int]raw.Object, n)
	for i := 0; i+1 < len(pairs); i += 2 {
		obj, err := body.DirectAt(pairs[i+1])
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", pairs[i], err)
		}
		objs[int(pairs[i])] = obj
	}
	return objs, nil
}

// loadOrphanedObjectStreams recovers compressed objects after a repair scan,
// which only sees top-level "n g obj" definitions.
func (l *loader) loadOrphanedObjectStreams(ctx context.Context) {
	for _, ref := range l.doc.Refs() {
		st, ok := l.doc.Objects[ref].(*raw.StreamObj)
		if !ok {
			continue
		}
		if typ, _ := raw.AsName(st.Dict.KV["Type"]); typ != "ObjStm" {
			continue
		}
		objs, err := l.parseObjectStream(ctx, st)
		if err != nil {
			l.p.cfg.Logger.Warn("skipping unreadable object stream", observability.Int(observability.KeyObject, ref.Num), observability.Error("error", err))
			continue
		}
		for num, obj := range objs {
			key := raw.ObjectRef{Num: num}
			if _, exists := l.doc.Objects[key]; !exists {
				l.doc.Objects[key] = obj
			}
		}
	}
}

// ensureRoot fills a missing /Root by locating the catalog.
func (l *loader) ensureRoot() error {
	if root, ok := l.doc.Trailer.Get("Root"); ok {
		if _, isDict := l.doc.ResolveDict(root); isDict {
			return nil
		}
	}
	for _, ref := range l.doc.Refs() {
		d, ok := l.doc.Objects[ref].(*raw.DictObj)
		if !ok {
			continue
		}
		if typ, _ := raw.AsName(d.KV["Type"]); typ == "Catalog" {
			l.doc.Trailer.Set("Root", raw.Ref(ref.Num, ref.Gen))
			return nil
		}
	}
	return xref.ErrNoRoot
}
