// Package extractor lays traced glyphs out as lines of text and finds
// strings on a page.
package extractor

import (
	"math"
	"strings"

	"github.com/wudi/pdfredact/contentstream"
	"github.com/wudi/pdfredact/coords"
)

// Char is one unit of extracted text. Glyph indexes the traced glyph it
// came from, or is -1 for a space inserted between words.
type Char struct {
	Text  string
	Box   coords.Rect
	Glyph int
}

type Line struct {
	Box   coords.Rect
	Chars []Char
}

// Text returns the line's characters without surrounding spaces.
func (l Line) Text() string {
	var sb strings.Builder
	for _, c := range l.Chars {
		sb.WriteString(c.Text)
	}
	return strings.TrimSpace(sb.String())
}

// Layout is the text of one page in reading order. Glyph boxes are
// expected in top-left page space.
type Layout struct {
	Lines []Line
}

const (
	// wordGap is the fraction of glyph height above which a horizontal gap
	// reads as a space.
	wordGap = 0.15
	// baselineTolerance is the fraction of line height a glyph's center may
	// drift and still join the line.
	baselineTolerance = 0.5
)

// New groups glyphs, in drawing order, into lines: a glyph starts a new
// line when its vertical center leaves the current line's band or it jumps
// back to the left by more than a line height.
func New(glyphs []contentstream.Glyph) *Layout {
	l := &Layout{}
	var cur *Line
	var last coords.Rect
	for i, g := range glyphs {
		if g.Text == "" {
			continue
		}
		box := g.Box.Normalize()
		if cur != nil && !sameLine(cur.Box, last, box) {
			cur = nil
		}
		if cur == nil {
			l.Lines = append(l.Lines, Line{Box: box})
			cur = &l.Lines[len(l.Lines)-1]
		} else {
			prev := cur.Chars[len(cur.Chars)-1]
			if gap := box.X0 - last.X1; gap > wordGap*box.Height() && !isSpace(prev.Text) && !isSpace(g.Text) {
				cur.Chars = append(cur.Chars, Char{
					Text:  " ",
					Box:   coords.Rect{X0: last.X1, Y0: cur.Box.Y0, X1: box.X0, Y1: cur.Box.Y1},
					Glyph: -1,
				})
			}
			cur.Box = grow(cur.Box, box)
		}
		cur.Chars = append(cur.Chars, Char{Text: g.Text, Box: box, Glyph: i})
		last = box
	}
	return l
}

func sameLine(line, last, box coords.Rect) bool {
	h := math.Max(line.Height(), box.Height())
	lineCenter := (line.Y0 + line.Y1) / 2
	center := (box.Y0 + box.Y1) / 2
	if math.Abs(center-lineCenter) > baselineTolerance*h {
		return false
	}
	return box.X0 >= last.X0-h
}

func grow(r, b coords.Rect) coords.Rect {
	return coords.Rect{
		X0: math.Min(r.X0, b.X0), Y0: math.Min(r.Y0, b.Y0),
		X1: math.Max(r.X1, b.X1), Y1: math.Max(r.Y1, b.Y1),
	}
}

func isSpace(s string) bool { return strings.TrimSpace(s) == "" }

// Text returns every line followed by a newline.
func (l *Layout) Text() string {
	var sb strings.Builder
	for _, line := range l.Lines {
		if t := line.Text(); t != "" {
			sb.WriteString(t)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// TextInRect returns the text of characters whose box center lies inside
// clip, one line per output line.
func (l *Layout) TextInRect(clip coords.Rect) string {
	clip = clip.Normalize()
	var lines []string
	for _, line := range l.Lines {
		var sb strings.Builder
		for _, c := range line.Chars {
			if clip.Contains(c.Box.Center()) {
				sb.WriteString(c.Text)
			}
		}
		if t := strings.TrimSpace(sb.String()); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n")
}
