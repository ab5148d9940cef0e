package contentstream

import (
	"context"

	"github.com/wudi/pdfredact/coords"
	"github.com/wudi/pdfredact/fonts"
	"github.com/wudi/pdfredact/ir/raw"
)

// Glyph is one shown character code with its box in the tracer's output
// space.
type Glyph struct {
	Text string
	Box  coords.Rect
	// Source is 0 for the page content, otherwise 1 + the index into
	// Trace.Forms of the form invocation that drew the glyph.
	Source int
	// Op is the index of the showing operation within its source; Item is
	// the index of the string inside a TJ array (0 otherwise) and Code the
	// index of the code within that string.
	Op   int
	Item int
	Code int
	// Start and End delimit the code's bytes in the string operand.
	Start, End int
	// Width is the advance in glyph space (1/1000 em). Advance is the
	// text space displacement including character and word spacing, before
	// horizontal scaling.
	Width     float64
	Advance   float64
	FontSize  float64
	Space     bool
	Invisible bool
}

// ImagePlacement records where an image XObject or inline image is drawn.
type ImagePlacement struct {
	Name   string
	Box    coords.Rect
	Inline bool
	// Op is the index of the top-level operation that drew the image,
	// which is the form's Do when the image sits inside a form.
	Op int
}

// FormCall is one Do of a form XObject that was traced for text.
type FormCall struct {
	Name   string
	Stream *raw.StreamObj
	// Resources is what the form's operations resolve names against: its
	// own /Resources, or the caller's when it has none.
	Resources *raw.DictObj
	Ops       []Operation
	// Parent is the source of the Do (0 for the page, otherwise 1 + index
	// into Trace.Forms) and Op its index in that source.
	Parent int
	Op     int
}

type Trace struct {
	Glyphs []Glyph
	Images []ImagePlacement
	Forms  []FormCall
}

// Tracer executes operations virtually to find glyph and image positions.
// Images are found at any depth. Text is found at any depth too, except in
// forms SkipText reports true for and in everything they draw.
type Tracer struct {
	doc          *raw.Document
	fonts        *fonts.Cache
	decode       fonts.StreamDecoder
	MaxFormDepth int
	SkipText     func(*raw.StreamObj) bool
}

func NewTracer(doc *raw.Document, cache *fonts.Cache, decode fonts.StreamDecoder) *Tracer {
	return &Tracer{doc: doc, fonts: cache, decode: decode, MaxFormDepth: 8}
}

type traceRun struct {
	t       *Tracer
	out     *Trace
	visited map[raw.ObjectRef]bool
}

// Trace runs ops against resources. base maps user space to the output
// space, e.g. a flip into top-left page coordinates.
func (t *Tracer) Trace(ctx context.Context, ops []Operation, resources *raw.DictObj, base coords.Matrix) (*Trace, error) {
	r := &traceRun{t: t, out: &Trace{}, visited: make(map[raw.ObjectRef]bool)}
	top := frame{source: 0, parentOp: -1, text: true}
	if err := r.exec(ctx, ops, resources, newGraphicsState(base), top); err != nil {
		return nil, err
	}
	return r.out, nil
}

// frame says where exec runs. parentOp is the top-level operation index
// that reached this level, or -1 at the top.
type frame struct {
	source   int
	depth    int
	parentOp int
	text     bool
}

func (r *traceRun) exec(ctx context.Context, ops []Operation, res *raw.DictObj, gs *GraphicsState, f frame) error {
	doc := r.t.doc
	tm, tlm := coords.Identity(), coords.Identity()
	for i, op := range ops {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		opIndex := i
		if f.parentOp >= 0 {
			opIndex = f.parentOp
		}
		args := op.Operands
		switch op.Operator {
		case "q":
			gs.Save()
		case "Q":
			_ = gs.Restore()
		case "cm":
			if m, ok := matrixOf(args); ok {
				gs.CTM = m.Multiply(gs.CTM)
			}
		case "BT":
			tm, tlm = coords.Identity(), coords.Identity()
		case "Tf":
			if len(args) == 2 {
				name, _ := raw.AsName(args[0])
				gs.Text.Font = r.font(res, name)
				gs.Text.FontSize = number(args[1])
			}
		case "Tc":
			if len(args) == 1 {
				gs.Text.CharSpace = number(args[0])
			}
		case "Tw":
			if len(args) == 1 {
				gs.Text.WordSpace = number(args[0])
			}
		case "Tz":
			if len(args) == 1 {
				gs.Text.HScale = number(args[0]) / 100
			}
		case "TL":
			if len(args) == 1 {
				gs.Text.Leading = number(args[0])
			}
		case "Ts":
			if len(args) == 1 {
				gs.Text.Rise = number(args[0])
			}
		case "Tr":
			if len(args) == 1 {
				gs.Text.RenderMode = TextRenderMode(number(args[0]))
			}
		case "Td", "TD":
			if len(args) == 2 {
				tx, ty := number(args[0]), number(args[1])
				if op.Operator == "TD" {
					gs.Text.Leading = -ty
				}
				tlm = coords.Translate(tx, ty).Multiply(tlm)
				tm = tlm
			}
		case "Tm":
			if m, ok := matrixOf(args); ok {
				tlm, tm = m, m
			}
		case "T*":
			tlm = coords.Translate(0, -gs.Text.Leading).Multiply(tlm)
			tm = tlm
		case "Tj":
			if len(args) == 1 && f.text {
				tm = r.show(stringBytes(args[0]), gs, tm, f.source, i, 0)
			}
		case "'", "\"":
			if op.Operator == "\"" && len(args) == 3 {
				gs.Text.WordSpace = number(args[0])
				gs.Text.CharSpace = number(args[1])
				args = args[2:]
			}
			tlm = coords.Translate(0, -gs.Text.Leading).Multiply(tlm)
			tm = tlm
			if len(args) == 1 && f.text {
				tm = r.show(stringBytes(args[0]), gs, tm, f.source, i, 0)
			}
		case "TJ":
			if len(args) != 1 || !f.text {
				continue
			}
			arr, ok := args[0].(*raw.ArrayObj)
			if !ok {
				continue
			}
			for item, el := range arr.Items {
				if n, ok := raw.AsNumber(el); ok {
					tx := -n / 1000 * gs.Text.FontSize * gs.Text.HScale
					tm = coords.Translate(tx, 0).Multiply(tm)
					continue
				}
				tm = r.show(stringBytes(el), gs, tm, f.source, i, item)
			}
		case "Do":
			if len(args) != 1 {
				continue
			}
			name, _ := raw.AsName(args[0])
			xobjects, _ := doc.ResolveDict(doc.Lookup(res, "XObject"))
			if xobjects == nil {
				continue
			}
			entry := xobjects.KV[name]
			st, ok := doc.ResolveStream(entry)
			if !ok {
				continue
			}
			switch subtype, _ := raw.AsName(st.Dict.KV["Subtype"]); subtype {
			case "Image":
				r.out.Images = append(r.out.Images, ImagePlacement{Name: name, Box: gs.CTM.TransformRect(unitSquare), Op: opIndex})
			case "Form":
				call := FormCall{Name: name, Stream: st, Parent: f.source, Op: i}
				if err := r.form(ctx, entry, call, res, gs, f, opIndex); err != nil {
					return err
				}
			}
		case "BI":
			r.out.Images = append(r.out.Images, ImagePlacement{Box: gs.CTM.TransformRect(unitSquare), Inline: true, Op: opIndex})
		}
	}
	return nil
}

var unitSquare = coords.Rect{X0: 0, Y0: 0, X1: 1, Y1: 1}

func (r *traceRun) form(ctx context.Context, entry raw.Object, call FormCall, res *raw.DictObj, gs *GraphicsState, f frame, opIndex int) error {
	st := call.Stream
	if f.depth+1 > r.t.MaxFormDepth || r.t.decode == nil {
		return nil
	}
	if ref, ok := entry.(raw.RefObj); ok {
		if r.visited[ref.R] {
			return nil
		}
		r.visited[ref.R] = true
		defer delete(r.visited, ref.R)
	}
	data, err := r.t.decode(st)
	if err != nil {
		return nil
	}
	ops, _ := Parse(data)
	inner := newGraphicsState(gs.CTM)
	inner.Text = gs.Text
	if arr, ok := r.t.doc.ResolveArray(st.Dict.KV["Matrix"]); ok {
		if m, ok := matrixOf(arr.Items); ok {
			inner.CTM = m.Multiply(gs.CTM)
		}
	}
	formRes := res
	if d, ok := r.t.doc.ResolveDict(st.Dict.KV["Resources"]); ok {
		formRes = d
	}
	inside := frame{depth: f.depth + 1, parentOp: opIndex, text: f.text}
	if inside.text && r.t.SkipText != nil && r.t.SkipText(st) {
		inside.text = false
	}
	if inside.text {
		call.Resources = formRes
		call.Ops = ops
		r.out.Forms = append(r.out.Forms, call)
		inside.source = len(r.out.Forms)
	}
	return r.exec(ctx, ops, formRes, inner, inside)
}

// show advances through one string operand and records its glyphs.
func (r *traceRun) show(s []byte, gs *GraphicsState, tm coords.Matrix, source, op, item int) coords.Matrix {
	ts := &gs.Text
	font := ts.Font
	if font == nil {
		font = fonts.Default()
	}
	pos := 0
	for ci, code := range font.Decode(s) {
		trm := coords.Matrix{ts.FontSize * ts.HScale, 0, 0, ts.FontSize, 0, ts.Rise}.Multiply(tm).Multiply(gs.CTM)
		box := trm.TransformRect(coords.Rect{X0: 0, Y0: font.Descent / 1000, X1: code.Width / 1000, Y1: font.Ascent / 1000})
		space := code.IsSpace()
		tx := code.Width/1000*ts.FontSize + ts.CharSpace
		if space {
			tx += ts.WordSpace
		}
		r.out.Glyphs = append(r.out.Glyphs, Glyph{
			Text:      code.Text,
			Box:       box,
			Source:    source,
			Op:        op,
			Item:      item,
			Code:      ci,
			Start:     pos,
			End:       pos + len(code.Bytes),
			Width:     code.Width,
			Advance:   tx,
			FontSize:  ts.FontSize,
			Space:     space,
			Invisible: ts.RenderMode == TextInvisible || ts.RenderMode == TextClip,
		})
		pos += len(code.Bytes)
		tm = coords.Translate(tx*ts.HScale, 0).Multiply(tm)
	}
	return tm
}

func (r *traceRun) font(res *raw.DictObj, name string) *fonts.Font {
	doc := r.t.doc
	fontDict, _ := doc.ResolveDict(doc.Lookup(res, "Font"))
	if fontDict == nil {
		return fonts.Default()
	}
	entry, ok := fontDict.KV[name]
	if !ok {
		return fonts.Default()
	}
	if r.t.fonts != nil {
		return r.t.fonts.Get(entry)
	}
	return fonts.Load(doc, entry, r.t.decode)
}

func number(o raw.Object) float64 {
	v, _ := raw.AsNumber(o)
	return v
}

func matrixOf(args []raw.Object) (coords.Matrix, bool) {
	if len(args) != 6 {
		return coords.Matrix{}, false
	}
	var m coords.Matrix
	for i, a := range args {
		v, ok := raw.AsNumber(a)
		if !ok {
			return coords.Matrix{}, false
		}
		m[i] = v
	}
	return m, true
}

func stringBytes(o raw.Object) []byte {
	if s, ok := o.(raw.StringObj); ok {
		return s.Bytes
	}
	return nil
}
