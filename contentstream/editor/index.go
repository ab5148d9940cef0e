package editor

import (
	"math"

	"github.com/wudi/pdfredact/contentstream"
	"github.com/wudi/pdfredact/coords"
)

// GlyphIndex answers which traced glyphs lie under a rectangle.
type GlyphIndex struct {
	tree   *QuadTree
	glyphs []contentstream.Glyph
}

func NewGlyphIndex(glyphs []contentstream.Glyph) *GlyphIndex {
	var bounds coords.Rect
	for i, g := range glyphs {
		b := g.Box.Normalize()
		if i == 0 {
			bounds = b
			continue
		}
		bounds.X0 = math.Min(bounds.X0, b.X0)
		bounds.Y0 = math.Min(bounds.Y0, b.Y0)
		bounds.X1 = math.Max(bounds.X1, b.X1)
		bounds.Y1 = math.Max(bounds.Y1, b.Y1)
	}
	idx := &GlyphIndex{tree: NewQuadTree(bounds, 16), glyphs: glyphs}
	for i, g := range glyphs {
		idx.tree.Insert(g.Box, i)
	}
	return idx
}

// Covered returns the indexes of glyphs a region takes out, see Covers.
func (idx *GlyphIndex) Covered(region coords.Rect) []int {
	var out []int
	for _, i := range idx.tree.Query(region) {
		if Covers(region, idx.glyphs[i].Box) {
			out = append(out, i)
		}
	}
	return out
}
