package extractor

import (
	"strings"
	"unicode"

	"github.com/wudi/pdfredact/coords"
)

type searchRune struct {
	r    rune
	line int
	char int // -1 for whitespace
}

// SearchFor returns the rectangles covering every non-overlapping
// occurrence of needle, one rectangle per line an occurrence touches.
// Matching ignores case, and any run of whitespace, line breaks included,
// matches any other.
func (l *Layout) SearchFor(needle string) []coords.Rect {
	pattern := foldNeedle(needle)
	if len(pattern) == 0 {
		return nil
	}
	hay := l.searchRunes()
	var out []coords.Rect
	for i := 0; i+len(pattern) <= len(hay); {
		if !matchAt(hay[i:], pattern) {
			i++
			continue
		}
		out = append(out, l.hitRects(hay[i:i+len(pattern)])...)
		i += len(pattern)
	}
	return out
}

func foldNeedle(s string) []rune {
	var out []rune
	space := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			out = append(out, ' ')
			space = false
		}
		out = append(out, unicode.ToLower(r))
	}
	return out
}

// searchRunes flattens the layout into folded runes with whitespace runs
// collapsed to one space and a space between lines.
func (l *Layout) searchRunes() []searchRune {
	var out []searchRune
	space := func(line int) {
		if len(out) > 0 && out[len(out)-1].r != ' ' {
			out = append(out, searchRune{r: ' ', line: line, char: -1})
		}
	}
	for li, line := range l.Lines {
		space(li)
		for ci, c := range line.Chars {
			for _, r := range c.Text {
				if unicode.IsSpace(r) {
					space(li)
					continue
				}
				out = append(out, searchRune{r: unicode.ToLower(r), line: li, char: ci})
			}
		}
	}
	return out
}

func matchAt(hay []searchRune, pattern []rune) bool {
	for i, r := range pattern {
		if hay[i].r != r {
			return false
		}
	}
	return true
}

func (l *Layout) hitRects(hit []searchRune) []coords.Rect {
	var out []coords.Rect
	curLine := -1
	for _, h := range hit {
		if h.char < 0 {
			continue
		}
		box := l.Lines[h.line].Chars[h.char].Box
		if h.line != curLine {
			out = append(out, box)
			curLine = h.line
			continue
		}
		out[len(out)-1] = grow(out[len(out)-1], box)
	}
	return out
}
