// Package writer serializes raw documents, either as a complete rewrite or
// as an incremental update appended to the original bytes.
package writer

import (
	"bytes"
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfredact/filters"
	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/observability"
)

type Config struct {
	// Compress flate-encodes streams that carry no /Filter.
	Compress bool
	Logger   observability.Logger
}

type Writer interface {
	// Write emits the objects reachable from the trailer of doc with a fresh
	// cross-reference table. Objects nothing refers to any more, such as
	// content replaced during redaction, are left out.
	Write(ctx context.Context, doc *raw.Document, out io.Writer) error
	// WriteIncremental emits doc.Source followed by the dirty objects and a
	// cross-reference section whose /Prev chains to the original one.
	WriteIncremental(ctx context.Context, doc *raw.Document, out io.Writer) error
}

var ErrNoSource = errors.New("incremental save requires the original bytes")

type impl struct{ cfg Config }

func New(cfg Config) Writer {
	cfg.Logger = observability.OrNop(cfg.Logger)
	return &impl{cfg: cfg}
}

// SerializeObject renders one "n g obj ... endobj" block.
func SerializeObject(ref raw.ObjectRef, obj raw.Object) []byte {
	b := fmt.Appendf(nil, "%d %d obj\n", ref.Num, ref.Gen)
	b = AppendObject(b, obj)
	return append(b, "\nendobj\n"...)
}

func (w *impl) Write(ctx context.Context, doc *raw.Document, out io.Writer) error {
	var buf bytes.Buffer
	version := doc.Version
	if version == "" || version < "1.4" {
		version = "1.4"
	}
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", version)

	offsets := make(map[int]int64)
	gens := make(map[int]int)
	maxNum := 0
	refs, ok := doc.Reachable()
	if !ok {
		refs = doc.Refs()
	}
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj := doc.Objects[ref]
		if skipOnRewrite(obj) {
			continue
		}
		obj, err := w.prepare(obj)
		if err != nil {
			return fmt.Errorf("object %d: %w", ref.Num, err)
		}
		offsets[ref.Num] = int64(buf.Len())
		gens[ref.Num] = ref.Gen
		buf.Write(SerializeObject(ref, obj))
		if ref.Num > maxNum {
			maxNum = ref.Num
		}
	}

	xrefAt := int64(buf.Len())
	size := maxNum + 1
	fmt.Fprintf(&buf, "xref\n0 %d\n", size)
	buf.WriteString("0000000000 65535 f \n")
	for n := 1; n < size; n++ {
		if off, ok := offsets[n]; ok {
			fmt.Fprintf(&buf, "%010d %05d n \n", off, gens[n])
		} else {
			buf.WriteString("0000000000 00000 f \n")
		}
	}
	trailer := w.trailer(doc, size, buf.Bytes())
	buf.WriteString("trailer\n")
	buf.Write(AppendObject(nil, trailer))
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefAt)

	w.cfg.Logger.Debug("wrote pdf", observability.Int("objects", len(offsets)), observability.Int("bytes", buf.Len()))
	_, err := out.Write(buf.Bytes())
	return err
}

func (w *impl) WriteIncremental(ctx context.Context, doc *raw.Document, out io.Writer) error {
	if len(doc.Source) == 0 {
		return ErrNoSource
	}
	var buf bytes.Buffer
	buf.Write(doc.Source)
	if doc.Source[len(doc.Source)-1] != '\n' {
		buf.WriteByte('\n')
	}

	dirty := doc.Dirty()
	offsets := make(map[int]int64, len(dirty))
	gens := make(map[int]int, len(dirty))
	maxNum := 0
	for _, ref := range dirty {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj, ok := doc.Objects[ref]
		if !ok {
			continue
		}
		obj, err := w.prepare(obj)
		if err != nil {
			return fmt.Errorf("object %d: %w", ref.Num, err)
		}
		offsets[ref.Num] = int64(buf.Len())
		gens[ref.Num] = ref.Gen
		buf.Write(SerializeObject(ref, obj))
		if ref.Num > maxNum {
			maxNum = ref.Num
		}
	}

	xrefAt := int64(buf.Len())
	buf.WriteString("xref\n")
	nums := make([]int, 0, len(offsets))
	for _, ref := range dirty {
		if _, ok := offsets[ref.Num]; ok {
			nums = append(nums, ref.Num)
		}
	}
	for i := 0; i < len(nums); {
		j := i
		for j+1 < len(nums) && nums[j+1] == nums[j]+1 {
			j++
		}
		fmt.Fprintf(&buf, "%d %d\n", nums[i], j-i+1)
		for k := i; k <= j; k++ {
			fmt.Fprintf(&buf, "%010d %05d n \n", offsets[nums[k]], gens[nums[k]])
		}
		i = j + 1
	}

	size := maxNum + 1
	if prev, ok := raw.AsInt(doc.Trailer.KV["Size"]); ok && int(prev) > size {
		size = int(prev)
	}
	trailer := w.trailer(doc, size, buf.Bytes())
	trailer.Set("Prev", raw.NumberInt(doc.StartXRef))
	buf.WriteString("trailer\n")
	buf.Write(AppendObject(nil, trailer))
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefAt)

	w.cfg.Logger.Debug("appended incremental update",
		observability.Int("objects", len(offsets)),
		observability.Int64("prev", doc.StartXRef),
	)
	_, err := out.Write(buf.Bytes())
	return err
}

// trailer keeps /Root, /Info and the first /ID element; the second ID
// element is derived from the new file body.
func (w *impl) trailer(doc *raw.Document, size int, body []byte) *raw.DictObj {
	t := raw.Dict()
	t.Set("Size", raw.NumberInt(int64(size)))
	for _, key := range []string{"Root", "Info"} {
		if v, ok := doc.Trailer.Get(key); ok {
			t.Set(key, v)
		}
	}
	sum := md5.Sum(body)
	first := sum[:]
	if ids, ok := doc.ResolveArray(doc.Trailer.KV["ID"]); ok && ids.Len() == 2 {
		if s, ok := doc.Resolve(ids.Items[0]).(raw.StringObj); ok {
			first = s.Bytes
		}
	}
	t.Set("ID", raw.NewArray(raw.HexStr(first), raw.HexStr(sum[:])))
	return t
}

// prepare applies output-only transforms without touching the document.
func (w *impl) prepare(obj raw.Object) (raw.Object, error) {
	st, ok := obj.(*raw.StreamObj)
	if !ok || !w.cfg.Compress {
		return obj, nil
	}
	if _, filtered := st.Dict.Get("Filter"); filtered {
		return obj, nil
	}
	enc, err := filters.FlateEncode(st.Data)
	if err != nil {
		return nil, err
	}
	dict := st.Dict.Clone()
	dict.Set("Filter", raw.NameLiteral("FlateDecode"))
	return raw.NewStream(dict, enc), nil
}

// skipOnRewrite drops structures a classic xref table replaces.
func skipOnRewrite(obj raw.Object) bool {
	st, ok := obj.(*raw.StreamObj)
	if !ok {
		return false
	}
	typ, _ := raw.AsName(st.Dict.KV["Type"])
	return typ == "XRef" || typ == "ObjStm"
}
