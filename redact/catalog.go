package redact

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
	"gopkg.in/yaml.v3"

	"github.com/wudi/pdfredact/builder"
	"github.com/wudi/pdfredact/coords"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// matchTimeout bounds a single regex evaluation; several catalog patterns
// nest quantifiers.
const matchTimeout = 2 * time.Second

// Step names a pipeline stage in a catalog's step list.
type Step string

const (
	StepCoordinate Step = "coordinate"
	StepRegex      Step = "regex"
	StepPrimary    Step = "primary"
	StepSecondary  Step = "secondary"
	StepStripImage Step = "strip_image"
)

// Catalog holds the immutable per-type redaction settings.
type Catalog struct {
	types map[DocumentType]*TypeCatalog
}

// TypeCatalog is everything a pipeline needs for one document type.
type TypeCatalog struct {
	ID           string   `yaml:"id"`
	Aliases      []string `yaml:"aliases"`
	OutputSuffix string   `yaml:"output_suffix"`
	// Phrase marks a document as filed by an individual.
	Phrase        string         `yaml:"phrase"`
	Steps         []Step         `yaml:"steps"`
	Search        SearchOptions  `yaml:"search"`
	Secondary     WatermarkSpec  `yaml:"secondary"`
	InjectedImage *WatermarkSpec `yaml:"injected_image"`
	Individual    Variant        `yaml:"individual"`
	Corporate     Variant        `yaml:"corporate"`

	typ DocumentType
}

// SearchOptions tune FindAndRedact.
type SearchOptions struct {
	Partition Partition `yaml:"partition"`
	// Margin grows every hit rectangle; negative values shrink it.
	Margin float64    `yaml:"margin"`
	Dedup  DedupScope `yaml:"dedup"`
	// PositionalFirstPage limits positional patterns to page 0.
	PositionalFirstPage bool `yaml:"positional_first_page"`
	// Group selects the capture group searched for; the whole match is
	// used when the group is absent or empty.
	Group int `yaml:"group"`
}

// Variant is the classification-specific part of a type catalog.
type Variant struct {
	Region   *RegionSpec    `yaml:"region"`
	Primary  WatermarkSpec  `yaml:"primary"`
	Patterns []PatternEntry `yaml:"patterns"`
}

// RegionSpec is a fixed redaction rectangle in page space with its
// content-driven adjustments.
type RegionSpec struct {
	Rect  Box              `yaml:"rect"`
	Rules []AdjustmentRule `yaml:"rules"`
}

// WatermarkSpec is a stamp in the letter canvas; Rect is x, y, width and
// height.
type WatermarkSpec struct {
	Rect     Box      `yaml:"rect"`
	FontSize float64  `yaml:"font_size"`
	LineGap  float64  `yaml:"line_gap"`
	Lines    []string `yaml:"lines"`
}

// Stamp renders the spec as a black box with red text.
func (w WatermarkSpec) Stamp() builder.Stamp {
	return builder.Stamp{
		Rect:      coords.XYWH(w.Rect[0], w.Rect[1], w.Rect[2], w.Rect[3]),
		Fill:      builder.Black,
		TextColor: builder.Red,
		FontSize:  w.FontSize,
		LineGap:   w.LineGap,
		Lines:     w.Lines,
	}
}

// Box is four numbers as written in the catalog.
type Box [4]float64

// Rect reads b as corners.
func (b Box) Rect() coords.Rect { return coords.Rect{X0: b[0], Y0: b[1], X1: b[2], Y1: b[3]} }

// PatternEntry is a named regex. Positional patterns look for header data
// and are subject to the partition.
type PatternEntry struct {
	Name          string `yaml:"name"`
	Expr          string `yaml:"regex"`
	Positional    bool   `yaml:"positional"`
	CaseSensitive bool   `yaml:"case_sensitive"`

	re *regexp2.Regexp
}

func (p *PatternEntry) compile() error {
	opts := regexp2.RegexOptions(regexp2.Multiline)
	if !p.CaseSensitive {
		opts |= regexp2.IgnoreCase
	}
	re, err := regexp2.Compile(p.Expr, opts)
	if err != nil {
		return fmt.Errorf("pattern %s: %w", p.Name, err)
	}
	re.MatchTimeout = matchTimeout
	p.re = re
	return nil
}

// Variant returns the settings for c.
func (tc *TypeCatalog) Variant(c Classification) *Variant {
	if c == Individual {
		return &tc.Individual
	}
	return &tc.Corporate
}

// Has reports whether the pipeline runs step s.
func (tc *TypeCatalog) Has(s Step) bool {
	for _, step := range tc.Steps {
		if step == s {
			return true
		}
	}
	return false
}

func (tc *TypeCatalog) Type() DocumentType { return tc.typ }

type catalogFile struct {
	Types []*TypeCatalog `yaml:"types"`
}

// Load parses a catalog document and compiles its patterns.
func Load(data []byte) (*Catalog, error) {
	var file catalogFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	c := &Catalog{types: make(map[DocumentType]*TypeCatalog)}
	for _, tc := range file.Types {
		typ, ok := typeByID(tc.ID)
		if !ok {
			return nil, fmt.Errorf("catalog: %w: %q", ErrUnknownType, tc.ID)
		}
		if _, dup := c.types[typ]; dup {
			return nil, fmt.Errorf("catalog: type %q listed twice", tc.ID)
		}
		tc.typ = typ
		for _, v := range []*Variant{&tc.Individual, &tc.Corporate} {
			if err := v.compile(); err != nil {
				return nil, fmt.Errorf("catalog %s: %w", tc.ID, err)
			}
		}
		c.types[typ] = tc
	}
	return c, nil
}

func (v *Variant) compile() error {
	seen := make(map[string]bool, len(v.Patterns))
	// anchors share pattern slices between variants
	patterns := make([]PatternEntry, len(v.Patterns))
	copy(patterns, v.Patterns)
	for i := range patterns {
		p := &patterns[i]
		if seen[p.Name] {
			return fmt.Errorf("pattern %s listed twice", p.Name)
		}
		seen[p.Name] = true
		if err := p.compile(); err != nil {
			return err
		}
	}
	v.Patterns = patterns
	return nil
}

func typeByID(id string) (DocumentType, bool) {
	for t, tid := range typeIDs {
		if tid == id {
			return t, true
		}
	}
	return 0, false
}

// Lookup returns the catalog for t.
func (c *Catalog) Lookup(t DocumentType) (*TypeCatalog, error) {
	tc, ok := c.types[t]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownType, t)
	}
	return tc, nil
}

// Types lists the configured document types in declaration order of the
// DocumentType constants.
func (c *Catalog) Types() []*TypeCatalog {
	out := make([]*TypeCatalog, 0, len(c.types))
	for t := HazardousWaste; t <= AtmosphericEmissions; t++ {
		if tc, ok := c.types[t]; ok {
			out = append(out, tc)
		}
	}
	return out
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the embedded catalog. It panics if the embedded file is
// invalid.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(defaultCatalog)
		if err != nil {
			panic(err)
		}
		defaultCat = c
	})
	return defaultCat
}
