package xref

import (
	"context"
	"errors"
	"io"

	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/scanner"
)

// ErrRepairFailed is returned when a scan finds no object definitions.
var ErrRepairFailed = errors.New("repair failed: no objects found")

// repair scans the entire file to reconstruct the xref table.
// It looks for "<num> <gen> obj" patterns and "trailer" dictionaries; later
// definitions of the same object win, as in an incremental update.
func repair(ctx context.Context, data []byte, src ObjectSource) (*Table, error) {
	s := scanner.New(data, scanner.Config{NoRefs: true})
	t := newTable()
	t.Repaired = true

	var window [2]scanner.Token
	filled := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		before := s.Position()
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Skip the unreadable byte and keep scanning.
			_ = s.SeekTo(before + 1)
			filled = 0
			continue
		}
		switch {
		case tok.Keyword() == "obj" && filled == 2 &&
			window[0].Type == scanner.TokenNumber && window[1].Type == scanner.TokenNumber:
			num := int(window[0].Float())
			t.entries[num] = Entry{Kind: EntryInUse, Offset: window[0].Pos, Gen: int(window[1].Float())}
		case tok.Keyword() == "trailer":
			if obj, err := src.DirectAt(s.Position()); err == nil {
				if dict, ok := obj.(*raw.DictObj); ok {
					for _, k := range dict.Keys() {
						t.Trailer.Set(k, dict.KV[k])
					}
				}
			}
		}
		window[0], window[1] = window[1], tok
		if filled < 2 {
			filled++
		}
	}
	if len(t.entries) == 0 {
		return nil, ErrRepairFailed
	}
	t.Trailer.Delete("Prev")
	t.Trailer.Delete("XRefStm")
	if _, ok := t.Trailer.Get("Size"); !ok {
		max := 0
		for n := range t.entries {
			if n > max {
				max = n
			}
		}
		t.Trailer.Set("Size", raw.NumberInt(int64(max+1)))
	}
	return t, nil
}
