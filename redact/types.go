// Package redact is the redaction engine: it classifies the submitting
// party, removes personal data found by position or by pattern, stamps the
// legal-citation watermarks and blots out images injected on the last page.
package redact

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wudi/pdfredact/coords"
)

// ErrUnknownType is returned for document types missing from the catalog.
var ErrUnknownType = errors.New("unknown document type")

// DocumentType selects the catalog and step order of a pipeline.
type DocumentType int

const (
	HazardousWaste DocumentType = iota + 1
	EnvironmentalImpact
	AtmosphericEmissions
)

var typeIDs = map[DocumentType]string{
	HazardousWaste:       "residuos",
	EnvironmentalImpact:  "impacto",
	AtmosphericEmissions: "atmosfera",
}

func (t DocumentType) String() string {
	if id, ok := typeIDs[t]; ok {
		return id
	}
	return fmt.Sprintf("DocumentType(%d)", int(t))
}

// ParseDocumentType accepts a catalog identifier or one of its aliases.
func ParseDocumentType(s string) (DocumentType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, id := range typeIDs {
		if s == id {
			return t, nil
		}
	}
	for _, tc := range Default().types {
		for _, alias := range tc.Aliases {
			if s == alias {
				return tc.typ, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// Classification tells whether the submitting party is a natural person or
// a company. It is computed once per document.
type Classification int

const (
	Corporate Classification = iota
	Individual
)

func (c Classification) String() string {
	if c == Individual {
		return "individual"
	}
	return "corporate"
}

// Partition decides which part of a page's text each pattern searches.
type Partition int

const (
	// PartitionNone searches the whole text with every pattern.
	PartitionNone Partition = iota
	// PartitionByLength splits the text at a third of its length: positional
	// patterns search the head, the others the rest.
	PartitionByLength
	// PartitionByHeight gives positional patterns the lines in the top third
	// of the page and only accepts hits there; the others search everything.
	PartitionByHeight
)

// DedupScope is how long a matched string stays in the already redacted
// set. A string in the set is not searched for again.
type DedupScope int

const (
	DedupNone DedupScope = iota
	DedupPage
	DedupDocument
)

var (
	partitionNames = map[string]Partition{"none": PartitionNone, "length": PartitionByLength, "height": PartitionByHeight}
	dedupNames     = map[string]DedupScope{"none": DedupNone, "page": DedupPage, "document": DedupDocument}
)

func (p *Partition) UnmarshalText(b []byte) error {
	v, ok := partitionNames[string(b)]
	if !ok {
		return fmt.Errorf("unknown partition %q", b)
	}
	*p = v
	return nil
}

func (d *DedupScope) UnmarshalText(b []byte) error {
	v, ok := dedupNames[string(b)]
	if !ok {
		return fmt.Errorf("unknown dedup scope %q", b)
	}
	*d = v
	return nil
}

// AdjustmentRule shifts a redaction rectangle vertically depending on the
// text it clips. It fires when any marker occurs in the text or, with
// Absent, when none does. Fold compares against the lowercased text.
type AdjustmentRule struct {
	Markers []string `yaml:"markers"`
	Delta   float64  `yaml:"delta"`
	Absent  bool     `yaml:"absent"`
	Fold    bool     `yaml:"fold"`
}

func (r AdjustmentRule) fires(text string) bool {
	if r.Fold {
		text = strings.ToLower(text)
	}
	found := false
	for _, m := range r.Markers {
		if strings.Contains(text, m) {
			found = true
			break
		}
	}
	return found != r.Absent
}

// Match is one pattern hit. Text is the string searched for on the page
// and Rects the regions queued for it.
type Match struct {
	Pattern string
	Text    string
	Rects   []coords.Rect
}

// MatchReport is what FindAndRedact did to one page.
type MatchReport struct {
	Page    int
	Matches []Match
	// Fired is set when at least one match produced a redaction region.
	Fired bool
}

// Regions counts the rectangles redacted for the page.
func (r MatchReport) Regions() int {
	n := 0
	for _, m := range r.Matches {
		n += len(m.Rects)
	}
	return n
}
