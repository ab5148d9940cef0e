// Package fonts reads PDF font dictionaries far enough to turn string
// operands into text and advance widths.
package fonts

import (
	"sync"

	"github.com/wudi/pdfredact/ir/raw"
)

// Code is one character code taken from a string operand.
type Code struct {
	Bytes []byte
	Text  string
	// Width is the horizontal advance in glyph space (1/1000 em).
	Width float64
}

// IsSpace reports whether the code is the single-byte space that word
// spacing (Tw) applies to.
func (c Code) IsSpace() bool { return len(c.Bytes) == 1 && c.Bytes[0] == ' ' }

// Font decodes character codes for one font dictionary.
type Font struct {
	BaseFont string
	Subtype  string
	// Ascent and Descent are in glyph space; Descent is negative.
	Ascent  float64
	Descent float64

	composite    bool
	encoding     Encoding
	toUnicode    *CMap
	widths       map[int]float64
	hasWidths    bool
	missingWidth float64
	defaultWidth float64
	widthScale   float64
	std          *metrics
}

// StreamDecoder returns the decoded bytes of a stream.
type StreamDecoder func(*raw.StreamObj) ([]byte, error)

// Default is the font assumed when a Tf names a missing resource:
// Helvetica with WinAnsiEncoding.
func Default() *Font {
	return &Font{
		BaseFont:   "Helvetica",
		Subtype:    "Type1",
		Ascent:     helveticaMetrics.ascent,
		Descent:    helveticaMetrics.descent,
		encoding:   winAnsiEncoding,
		widthScale: 1,
		std:        helveticaMetrics,
	}
}

// Load builds a Font from a font dictionary. It never fails; missing
// pieces fall back to Helvetica metrics and WinAnsi text.
func Load(doc *raw.Document, obj raw.Object, decode StreamDecoder) *Font {
	dict, ok := doc.ResolveDict(obj)
	if !ok {
		return Default()
	}
	f := &Font{widthScale: 1}
	f.BaseFont, _ = raw.AsName(doc.Resolve(dict.KV["BaseFont"]))
	f.Subtype, _ = raw.AsName(doc.Resolve(dict.KV["Subtype"]))
	f.std = standardMetrics(f.BaseFont)

	if st, ok := doc.ResolveStream(dict.KV["ToUnicode"]); ok && decode != nil {
		if data, err := decode(st); err == nil {
			f.toUnicode = ParseCMap(data)
		}
	}

	descriptorHolder := dict
	if f.Subtype == "Type0" {
		f.composite = true
		f.defaultWidth = 1000
		if kids, ok := doc.ResolveArray(dict.KV["DescendantFonts"]); ok && kids.Len() > 0 {
			if cid, ok := doc.ResolveDict(kids.Items[0]); ok {
				descriptorHolder = cid
				f.loadCIDWidths(doc, cid)
			}
		}
	} else {
		f.loadSimpleEncoding(doc, dict)
		f.loadSimpleWidths(doc, dict)
		if f.Subtype == "Type3" {
			if m, ok := doc.ResolveArray(dict.KV["FontMatrix"]); ok && m.Len() == 6 {
				if sx, ok := doc.ResolveNumber(m.Items[0]); ok {
					f.widthScale = sx * 1000
				}
			}
		}
	}
	f.loadDescriptor(doc, descriptorHolder)
	return f
}

func (f *Font) loadSimpleEncoding(doc *raw.Document, dict *raw.DictObj) {
	f.encoding = standardEncoding
	if f.std != nil || f.toUnicode == nil {
		// Unembedded fonts are commonly written as WinAnsi text.
		f.encoding = winAnsiEncoding
	}
	switch enc := doc.Resolve(dict.KV["Encoding"]).(type) {
	case raw.NameObj:
		f.encoding = BaseEncoding(enc.Val)
	case *raw.DictObj:
		if base, ok := raw.AsName(doc.Resolve(enc.KV["BaseEncoding"])); ok {
			f.encoding = BaseEncoding(base)
		}
		if diffs, ok := doc.ResolveArray(enc.KV["Differences"]); ok {
			applyDifferences(&f.encoding, diffs)
		}
	}
}

func (f *Font) loadSimpleWidths(doc *raw.Document, dict *raw.DictObj) {
	arr, ok := doc.ResolveArray(dict.KV["Widths"])
	if !ok {
		return
	}
	first, _ := doc.ResolveNumber(dict.KV["FirstChar"])
	f.widths = make(map[int]float64, arr.Len())
	for i, item := range arr.Items {
		if w, ok := doc.ResolveNumber(item); ok {
			f.widths[int(first)+i] = w
		}
	}
	f.hasWidths = true
}

// loadCIDWidths reads /DW and the /W array, whose entries are either
// "c [w1 w2 ...]" or "cFirst cLast w".
func (f *Font) loadCIDWidths(doc *raw.Document, cid *raw.DictObj) {
	if dw, ok := doc.ResolveNumber(cid.KV["DW"]); ok {
		f.defaultWidth = dw
	}
	arr, ok := doc.ResolveArray(cid.KV["W"])
	if !ok {
		return
	}
	f.widths = make(map[int]float64)
	items := arr.Items
	for i := 0; i < len(items); {
		start, ok := doc.ResolveNumber(items[i])
		if !ok || i+1 >= len(items) {
			break
		}
		if list, ok := doc.ResolveArray(items[i+1]); ok {
			for j, w := range list.Items {
				if v, ok := doc.ResolveNumber(w); ok {
					f.widths[int(start)+j] = v
				}
			}
			i += 2
			continue
		}
		if i+2 >= len(items) {
			break
		}
		end, _ := doc.ResolveNumber(items[i+1])
		w, _ := doc.ResolveNumber(items[i+2])
		for c := int(start); c <= int(end) && c-int(start) < 0xffff; c++ {
			f.widths[c] = w
		}
		i += 3
	}
	f.hasWidths = true
}

func (f *Font) loadDescriptor(doc *raw.Document, holder *raw.DictObj) {
	fd, _ := doc.ResolveDict(holder.KV["FontDescriptor"])
	if fd != nil {
		f.Ascent, _ = doc.ResolveNumber(fd.KV["Ascent"])
		f.Descent, _ = doc.ResolveNumber(fd.KV["Descent"])
		f.missingWidth, _ = doc.ResolveNumber(fd.KV["MissingWidth"])
	}
	if f.Descent > 0 {
		f.Descent = -f.Descent
	}
	if f.Ascent == 0 || f.Descent == 0 {
		m := f.std
		if m == nil {
			m = helveticaMetrics
		}
		if f.Ascent == 0 {
			f.Ascent = m.ascent
		}
		if f.Descent == 0 {
			f.Descent = m.descent
		}
	}
}

// Decode splits a string operand into character codes.
func (f *Font) Decode(s []byte) []Code {
	out := make([]Code, 0, len(s))
	for len(s) > 0 {
		n := f.codeLength(s)
		b := s[:n]
		s = s[n:]
		code := bytesInt(b)
		out = append(out, Code{Bytes: b, Text: f.text(b, code), Width: f.width(code)})
	}
	return out
}

func (f *Font) codeLength(s []byte) int {
	if !f.composite {
		return 1
	}
	if f.toUnicode != nil {
		for _, l := range f.toUnicode.Lengths() {
			if l <= len(s) {
				if _, ok := f.toUnicode.Lookup(s[:l]); ok {
					return l
				}
			}
		}
	}
	if len(s) >= 2 {
		return 2
	}
	return len(s)
}

func (f *Font) text(b []byte, code int) string {
	if f.toUnicode != nil {
		if s, ok := f.toUnicode.Lookup(b); ok {
			return s
		}
	}
	if f.composite {
		return ""
	}
	if r := f.encoding[code]; r != 0 {
		return string(r)
	}
	return ""
}

func (f *Font) width(code int) float64 {
	if f.composite {
		if w, ok := f.widths[code]; ok {
			return w
		}
		return f.defaultWidth
	}
	if f.hasWidths {
		if w, ok := f.widths[code]; ok {
			return w * f.widthScale
		}
		if f.missingWidth > 0 || f.std == nil {
			return f.missingWidth * f.widthScale
		}
	}
	m := f.std
	if m == nil {
		m = helveticaMetrics
	}
	r := f.encoding[code]
	if r == 0 {
		return m.fallback
	}
	return m.width(r)
}

// Cache shares loaded fonts between pages that reference the same object.
type Cache struct {
	doc    *raw.Document
	decode StreamDecoder

	mu    sync.Mutex
	byRef map[raw.ObjectRef]*Font
}

func NewCache(doc *raw.Document, decode StreamDecoder) *Cache {
	return &Cache{doc: doc, decode: decode, byRef: make(map[raw.ObjectRef]*Font)}
}

// Get returns the font for a resource entry; nil yields Default.
func (c *Cache) Get(obj raw.Object) *Font {
	if obj == nil {
		return Default()
	}
	ref, isRef := obj.(raw.RefObj)
	if !isRef {
		return Load(c.doc, obj, c.decode)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.byRef[ref.R]; ok {
		return f
	}
	f := Load(c.doc, obj, c.decode)
	c.byRef[ref.R] = f
	return f
}
