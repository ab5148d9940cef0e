// Package editor removes glyphs from parsed content streams while leaving
// the remaining text where it was drawn.
package editor

import (
	"math"
	"sort"

	"github.com/wudi/pdfredact/contentstream"
	"github.com/wudi/pdfredact/coords"
	"github.com/wudi/pdfredact/ir/raw"
)

// minOverlap keeps glyphs that merely abut a region, up to rounding.
const minOverlap = 1e-3

// Covers reports whether region takes out a glyph drawn in box: the two
// overlap horizontally and the region spans the glyph's vertical center.
func Covers(region, box coords.Rect) bool {
	region, box = region.Normalize(), box.Normalize()
	if math.Min(box.X1, region.X1)-math.Max(box.X0, region.X0) <= minOverlap {
		return false
	}
	cy := (box.Y0 + box.Y1) / 2
	return cy >= region.Y0 && cy <= region.Y1
}

// Redact returns ops with every glyph covered by one of regions removed,
// and the number of glyphs removed. glyphs must come from tracing ops.
// Removed codes become TJ kerning of the same advance, so the glyphs that
// stay keep their positions. ops is returned unchanged when nothing is hit.
func Redact(ops []contentstream.Operation, glyphs []contentstream.Glyph, regions []coords.Rect) ([]contentstream.Operation, int) {
	if len(glyphs) == 0 || len(regions) == 0 {
		return ops, 0
	}
	idx := NewGlyphIndex(glyphs)
	hit := make(map[int]bool)
	for _, region := range regions {
		for _, i := range idx.Covered(region) {
			hit[i] = true
		}
	}
	if len(hit) == 0 {
		return ops, 0
	}

	// op index -> string item -> removed glyphs
	cuts := make(map[int]map[int][]contentstream.Glyph)
	for i := range hit {
		g := glyphs[i]
		if g.Op < 0 || g.Op >= len(ops) {
			continue
		}
		items := cuts[g.Op]
		if items == nil {
			items = make(map[int][]contentstream.Glyph)
			cuts[g.Op] = items
		}
		items[g.Item] = append(items[g.Item], g)
	}

	out := make([]contentstream.Operation, 0, len(ops)+4)
	removed := 0
	for i, op := range ops {
		items, ok := cuts[i]
		if !ok {
			out = append(out, op)
			continue
		}
		for _, gs := range items {
			sort.Slice(gs, func(a, b int) bool { return gs[a].Start < gs[b].Start })
			removed += len(gs)
		}
		out = append(out, rewrite(op, items)...)
	}
	return out, removed
}

// rewrite turns one showing operation into operations that show only the
// glyphs left after the cuts.
func rewrite(op contentstream.Operation, items map[int][]contentstream.Glyph) []contentstream.Operation {
	args := op.Operands
	switch op.Operator {
	case "Tj":
		if len(args) != 1 {
			return []contentstream.Operation{op}
		}
		return []contentstream.Operation{showArray(cutString(nil, args[0], items[0]))}
	case "'":
		if len(args) != 1 {
			return []contentstream.Operation{op}
		}
		return []contentstream.Operation{
			{Operator: "T*"},
			showArray(cutString(nil, args[0], items[0])),
		}
	case "\"":
		if len(args) != 3 {
			return []contentstream.Operation{op}
		}
		return []contentstream.Operation{
			{Operator: "Tw", Operands: []raw.Object{args[0]}},
			{Operator: "Tc", Operands: []raw.Object{args[1]}},
			{Operator: "T*"},
			showArray(cutString(nil, args[2], items[0])),
		}
	case "TJ":
		if len(args) != 1 {
			return []contentstream.Operation{op}
		}
		arr, ok := args[0].(*raw.ArrayObj)
		if !ok {
			return []contentstream.Operation{op}
		}
		var parts []raw.Object
		for i, el := range arr.Items {
			if gs, ok := items[i]; ok {
				parts = cutString(parts, el, gs)
				continue
			}
			parts = appendPart(parts, el)
		}
		return []contentstream.Operation{showArray(parts)}
	}
	return []contentstream.Operation{op}
}

func showArray(parts []raw.Object) contentstream.Operation {
	return contentstream.Operation{Operator: "TJ", Operands: []raw.Object{raw.NewArray(parts...)}}
}

// cutString appends what is left of s after removing the byte ranges of gs,
// which are sorted by Start, and kerning for each removed advance.
func cutString(parts []raw.Object, s raw.Object, gs []contentstream.Glyph) []raw.Object {
	str, ok := s.(raw.StringObj)
	if !ok {
		return appendPart(parts, s)
	}
	pos := 0
	for _, g := range gs {
		if g.Start < pos || g.End > len(str.Bytes) {
			continue
		}
		if g.Start > pos {
			parts = appendPart(parts, raw.StringObj{Bytes: str.Bytes[pos:g.Start], Hex: str.Hex})
		}
		if g.FontSize != 0 {
			parts = appendPart(parts, raw.NumberFloat(-g.Advance*1000/g.FontSize))
		}
		pos = g.End
	}
	if pos < len(str.Bytes) {
		parts = appendPart(parts, raw.StringObj{Bytes: str.Bytes[pos:], Hex: str.Hex})
	}
	return parts
}

// appendPart adds o to a TJ array, folding consecutive numbers into one.
func appendPart(parts []raw.Object, o raw.Object) []raw.Object {
	n, isNum := raw.AsNumber(o)
	if isNum && len(parts) > 0 {
		if prev, ok := raw.AsNumber(parts[len(parts)-1]); ok {
			parts[len(parts)-1] = raw.NumberFloat(prev + n)
			return parts
		}
	}
	return append(parts, o)
}
