package document

import (
	"context"
	"fmt"
	"sort"

	"github.com/wudi/pdfredact/builder"
	"github.com/wudi/pdfredact/contentstream"
	"github.com/wudi/pdfredact/contentstream/editor"
	"github.com/wudi/pdfredact/coords"
	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/observability"
)

// Region is a pending redaction in page space.
type Region struct {
	Rect   coords.Rect
	Fill   []float64
	Reason string
}

// AddRedaction queues r, clamped to the page, for the next
// ApplyRedactions. It reports false when nothing of r lies on the page.
func (p *Page) AddRedaction(r coords.Rect, reason string) bool {
	r = r.Clamp(p.Rect())
	if r.Empty() {
		return false
	}
	p.pending = append(p.pending, Region{Rect: r, Fill: builder.Black, Reason: reason})
	return true
}

// Pending returns the queued redactions.
func (p *Page) Pending() []Region {
	return append([]Region(nil), p.pending...)
}

// ApplyRedactions removes every glyph under a pending region, paints the
// regions and clears the queue. It returns the number of removed glyphs.
// Removed text cannot be recovered from the saved file.
func (p *Page) ApplyRedactions(ctx context.Context) (int, error) {
	if len(p.pending) == 0 {
		return 0, nil
	}
	if err := p.analyze(ctx); err != nil {
		return 0, err
	}
	rects := make([]coords.Rect, len(p.pending))
	for i, r := range p.pending {
		rects[i] = r.Rect
	}
	removed := p.redactForms(rects)
	ops, n := editor.Redact(p.ops, glyphsFrom(p.trace.Glyphs, 0), rects)
	removed += n
	p.ops = ops
	p.dirty = true

	toUser := p.toUser()
	var paint []byte
	for _, r := range p.pending {
		paint = append(paint, builder.PaintRects([]coords.Rect{toUser.TransformRect(r.Rect)}, builder.Paint{Fill: r.Fill})...)
	}
	if err := p.appendContent(paint); err != nil {
		return removed, err
	}
	p.doc.log.Debug("applied redactions",
		observability.Int(observability.KeyPage, p.Index),
		observability.Int("regions", len(p.pending)),
		observability.Int("glyphs", removed),
	)
	p.pending = nil
	return removed, nil
}

// formCopy is a rewritten form waiting to replace the Do at op in its
// caller.
type formCopy struct {
	op   int
	name string
	ref  raw.ObjectRef
}

// redactForms removes covered glyphs from the forms the page draws. A form
// is never edited in place: a hit form is copied into a new stream and the
// calling Do is pointed at the copy through a fresh resource name, so pages
// and forms sharing the original still draw it unchanged. Forms are handled
// innermost first so each caller sees the renames of its children. It must
// run before the page operations are rewritten, while their indices still
// match the trace.
func (p *Page) redactForms(rects []coords.Rect) int {
	forms := p.trace.Forms
	if len(forms) == 0 {
		return 0
	}
	doc := p.doc.raw
	// inherited marks sources whose resources a child form resolves
	// against; their names must all stay.
	inherited := make([]bool, len(forms)+1)
	for _, call := range forms {
		if _, own := call.Stream.Dict.Get("Resources"); !own {
			inherited[call.Parent] = true
		}
	}
	copies := make([][]formCopy, len(forms)+1)
	removed := 0
	for i := len(forms) - 1; i >= 0; i-- {
		call := forms[i]
		source := i + 1
		ops := call.Ops
		var resources *raw.DictObj
		if children := copies[source]; len(children) > 0 {
			ops = append([]contentstream.Operation(nil), ops...)
			resources = call.Resources.Clone()
			current, _ := doc.ResolveDict(resources.KV["XObject"])
			xobjects := current.Clone()
			resources.Set("XObject", xobjects)
			useCopies(ops, xobjects, children, !inherited[source])
		}
		ops, n := editor.Redact(ops, glyphsFrom(p.trace.Glyphs, source), rects)
		if n == 0 && resources == nil {
			continue
		}
		removed += n
		dict := call.Stream.Dict.Clone()
		dict.Delete("Filter")
		dict.Delete("DecodeParms")
		dict.Delete("Length")
		if resources != nil {
			dict.Set("Resources", resources)
		}
		ref := doc.Add(raw.NewStream(dict, contentstream.Serialize(ops)))
		copies[call.Parent] = append(copies[call.Parent], formCopy{op: call.Op, name: call.Name, ref: ref})
	}
	if len(copies[0]) > 0 {
		useCopies(p.ops, p.ownXObjects(), copies[0], !inherited[0])
	}
	return removed
}

// useCopies points each copied Do in ops at its copy under a fresh name in
// xobjects. With prune set, names no remaining Do draws are dropped so the
// originals are no longer referenced from here.
func useCopies(ops []contentstream.Operation, xobjects *raw.DictObj, copies []formCopy, prune bool) {
	for _, c := range copies {
		name := freeName(xobjects, "RF")
		xobjects.Set(name, raw.RefObj{R: c.ref})
		ops[c.op].Operands = []raw.Object{raw.NameLiteral(name)}
	}
	if !prune {
		return
	}
	drawn := make(map[string]bool)
	for _, op := range ops {
		if op.Operator == "Do" && len(op.Operands) == 1 {
			if name, ok := raw.AsName(op.Operands[0]); ok {
				drawn[name] = true
			}
		}
	}
	for _, c := range copies {
		if !drawn[c.name] {
			xobjects.Delete(c.name)
		}
	}
}

func glyphsFrom(glyphs []contentstream.Glyph, source int) []contentstream.Glyph {
	var out []contentstream.Glyph
	for _, g := range glyphs {
		if g.Source == source {
			out = append(out, g)
		}
	}
	return out
}

// DrawRects paints rects, given in page space, on top of the page.
func (p *Page) DrawRects(ctx context.Context, rects []coords.Rect, paint builder.Paint) error {
	if err := p.load(ctx); err != nil {
		return err
	}
	toUser := p.toUser()
	user := make([]coords.Rect, len(rects))
	for i, r := range rects {
		user[i] = toUser.TransformRect(r)
	}
	return p.appendContent(builder.PaintRects(user, paint))
}

// AddOverlay layers a form drawing stamps over the whole page, scaled from
// the letter-size canvas. A page carries at most one overlay per kind: it
// reports false and changes nothing when kind is already present.
func (p *Page) AddOverlay(ctx context.Context, kind string, stamps ...builder.Stamp) (bool, error) {
	if p.HasOverlay(kind) {
		return false, nil
	}
	if err := p.load(ctx); err != nil {
		return false, err
	}
	form := builder.NewOverlayForm(kind, stamps...)
	ref := p.doc.raw.Add(form)
	xobjects := p.ownXObjects()
	name := freeName(xobjects, "RO")
	xobjects.Set(name, raw.Ref(ref.Num, ref.Gen))
	if err := p.appendContent(builder.DrawForm(name, builder.Placement(p.box))); err != nil {
		return false, err
	}
	p.doc.log.Debug("added overlay",
		observability.Int(observability.KeyPage, p.Index),
		observability.String("kind", kind),
	)
	return true, nil
}

// Overlays returns the kinds of overlays on the page, sorted.
func (p *Page) Overlays() []string {
	doc := p.doc.raw
	xobjects, ok := doc.ResolveDict(p.resources.KV["XObject"])
	if !ok {
		return nil
	}
	var kinds []string
	for _, name := range xobjects.Keys() {
		st, ok := doc.ResolveStream(xobjects.KV[name])
		if !ok {
			continue
		}
		if kind, ok := builder.OverlayKind(st); ok {
			kinds = append(kinds, kind)
		}
	}
	sort.Strings(kinds)
	return kinds
}

func (p *Page) HasOverlay(kind string) bool {
	for _, k := range p.Overlays() {
		if k == kind {
			return true
		}
	}
	return false
}

// ownXObjects gives the page its own resource and XObject dictionaries,
// so additions do not leak into pages that shared them.
func (p *Page) ownXObjects() *raw.DictObj {
	if !p.ownRes {
		p.resources = p.resources.Clone()
		p.dict.Set("Resources", p.resources)
		p.ownRes = true
	}
	current, _ := p.doc.raw.ResolveDict(p.resources.KV["XObject"])
	xobjects := current.Clone()
	p.resources.Set("XObject", xobjects)
	p.dirty = true
	return xobjects
}

func freeName(dict *raw.DictObj, prefix string) string {
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		if _, taken := dict.KV[name]; !taken {
			return name
		}
	}
}

// appendContent adds data after the page content. The original content is
// first isolated in q/Q, closing any save it left open, so appended
// drawing starts from the default graphics state.
func (p *Page) appendContent(data []byte) error {
	ops, err := contentstream.Parse(data)
	if err != nil {
		return fmt.Errorf("append content: %w", err)
	}
	if !p.wrapped {
		open := 0
		for _, op := range p.ops {
			switch op.Operator {
			case "q":
				open++
			case "Q":
				if open > 0 {
					open--
				}
			}
		}
		wrapped := make([]contentstream.Operation, 0, len(p.ops)+open+2)
		wrapped = append(wrapped, contentstream.Operation{Operator: "q"})
		wrapped = append(wrapped, p.ops...)
		for i := 0; i <= open; i++ {
			wrapped = append(wrapped, contentstream.Operation{Operator: "Q"})
		}
		p.ops = wrapped
		p.wrapped = true
	}
	p.ops = append(p.ops, ops...)
	p.dirty = true
	p.invalidate()
	return nil
}

// flush stores edited content in the object table. Content streams used
// only by this page are overwritten in place so the previous drawing does
// not survive in a full save.
func (p *Page) flush() error {
	if !p.dirty {
		return nil
	}
	doc := p.doc.raw
	stream := raw.NewStream(raw.Dict(), contentstream.Serialize(p.ops))
	shared := p.doc.sharedContents(p)

	var refs []raw.ObjectRef
	switch v := p.dict.KV["Contents"].(type) {
	case raw.RefObj:
		if arr, ok := doc.ResolveArray(v); ok {
			refs = refsOf(arr)
		} else {
			refs = []raw.ObjectRef{v.R}
		}
	case *raw.ArrayObj:
		refs = refsOf(v)
	}
	usable := len(refs) > 0
	for _, r := range refs {
		if shared[r] {
			usable = false
		}
		if _, ok := doc.ResolveStream(raw.RefObj{R: r}); !ok {
			usable = false
		}
	}

	if usable {
		doc.Set(refs[0], stream)
		for _, r := range refs[1:] {
			if r != refs[0] {
				doc.Set(r, raw.NewStream(raw.Dict(), nil))
			}
		}
		p.dict.Set("Contents", raw.RefObj{R: refs[0]})
	} else {
		ref := doc.Add(stream)
		p.dict.Set("Contents", raw.RefObj{R: ref})
	}
	doc.Set(p.ref, p.dict)
	p.dirty = false
	return nil
}

func refsOf(arr *raw.ArrayObj) []raw.ObjectRef {
	var out []raw.ObjectRef
	for _, item := range arr.Items {
		if r, ok := item.(raw.RefObj); ok {
			out = append(out, r.R)
		}
	}
	return out
}

// sharedContents returns the content stream references used by pages
// other than p.
func (d *Document) sharedContents(p *Page) map[raw.ObjectRef]bool {
	out := make(map[raw.ObjectRef]bool)
	for _, other := range d.pages {
		if other == p {
			continue
		}
		switch v := other.dict.KV["Contents"].(type) {
		case raw.RefObj:
			out[v.R] = true
			if arr, ok := d.raw.ResolveArray(v); ok {
				for _, r := range refsOf(arr) {
					out[r] = true
				}
			}
		case *raw.ArrayObj:
			for _, r := range refsOf(v) {
				out[r] = true
			}
		}
	}
	return out
}
