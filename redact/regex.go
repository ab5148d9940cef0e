package redact

import (
	"context"
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/wudi/pdfredact/document"
	"github.com/wudi/pdfredact/extractor"
)

// Seen is the already redacted set of one document.
type Seen struct {
	scope DedupScope
	page  int
	set   map[string]bool
}

func NewSeen(scope DedupScope) *Seen {
	return &Seen{scope: scope, page: -1, set: make(map[string]bool)}
}

// visit reports whether text still has to be searched for on page and
// records it.
func (s *Seen) visit(page int, text string) bool {
	if s == nil || s.scope == DedupNone {
		return true
	}
	if s.scope == DedupPage && page != s.page {
		clear(s.set)
	}
	s.page = page
	if s.set[text] {
		return false
	}
	s.set[text] = true
	return true
}

// FindAndRedact runs the variant's patterns over the page text, queues a
// redaction for every place a matched string appears and applies them in
// one batch. The report lists the matches and whether any fired.
func FindAndRedact(ctx context.Context, page *document.Page, v *Variant, opts SearchOptions, seen *Seen) (MatchReport, error) {
	report := MatchReport{Page: page.Index}
	early, late, err := segments(ctx, page, opts.Partition)
	if err != nil {
		return report, err
	}
	topThird := page.Height() / 3

	for i := range v.Patterns {
		p := &v.Patterns[i]
		if p.Positional && opts.PositionalFirstPage && page.Index != 0 {
			continue
		}
		hay := late
		if p.Positional {
			hay = early
		}
		found, err := findAll(p.re, hay, opts.Group)
		if err != nil {
			return report, fmt.Errorf("pattern %s: %w", p.Name, err)
		}
		for _, text := range found {
			if !seen.visit(page.Index, text) {
				continue
			}
			rects, err := page.SearchFor(ctx, text)
			if err != nil {
				return report, err
			}
			m := Match{Pattern: p.Name, Text: text}
			for _, r := range rects {
				r = r.Expand(opts.Margin)
				if p.Positional && opts.Partition == PartitionByHeight && r.Y1 > topThird {
					continue
				}
				if page.AddRedaction(r, p.Name) {
					m.Rects = append(m.Rects, r)
				}
			}
			report.Matches = append(report.Matches, m)
		}
	}
	report.Fired = report.Regions() > 0

	if _, err := page.ApplyRedactions(ctx); err != nil {
		return report, err
	}
	return report, nil
}

// segments returns the text searched by positional and by general patterns.
func segments(ctx context.Context, page *document.Page, partition Partition) (string, string, error) {
	text, err := page.Text(ctx)
	if err != nil {
		return "", "", err
	}
	switch partition {
	case PartitionByLength:
		r := []rune(text)
		cut := len(r) / 3
		return string(r[:cut]), string(r[cut:]), nil
	case PartitionByHeight:
		lines, err := page.Lines(ctx)
		if err != nil {
			return "", "", err
		}
		return headText(lines, page.Height()/3), text, nil
	}
	return text, text, nil
}

// headText joins the lines that start above limit.
func headText(lines []extractor.Line, limit float64) string {
	var sb strings.Builder
	for _, l := range lines {
		if l.Box.Y0 >= limit {
			continue
		}
		if s := l.Text(); s != "" {
			sb.WriteString(s)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// findAll returns the trimmed, non-empty strings to search for: the chosen
// capture group of every match, or the whole match without it.
func findAll(re *regexp2.Regexp, s string, group int) ([]string, error) {
	var out []string
	m, err := re.FindStringMatch(s)
	for ; m != nil && err == nil; m, err = re.FindNextMatch(m) {
		text := m.String()
		if group > 0 {
			if g := m.GroupByNumber(group); g != nil && g.Length > 0 {
				text = g.String()
			}
		}
		if text = strings.TrimSpace(text); text != "" {
			out = append(out, text)
		}
	}
	return out, err
}
