// Package pdftest writes small, byte-exact PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/wudi/pdfredact/filters"
)

// Builder collects numbered object bodies and serializes them with a
// correct cross-reference section.
type Builder struct {
	objs map[int]string
	next int
}

func New() *Builder { return &Builder{objs: make(map[int]string), next: 1} }

// Reserve allocates an object number to be filled with Set.
func (b *Builder) Reserve() int {
	n := b.next
	b.next++
	return n
}

func (b *Builder) Add(body string) int {
	n := b.Reserve()
	b.objs[n] = body
	return n
}

func (b *Builder) Set(num int, body string) {
	b.objs[num] = body
	if num >= b.next {
		b.next = num + 1
	}
}

// Stream formats a stream object body with an exact /Length.
func Stream(dict string, data []byte) string {
	dict = strings.TrimSpace(dict)
	dict = strings.TrimSuffix(strings.TrimPrefix(dict, "<<"), ">>")
	return fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", strings.TrimSpace(dict), len(data), data)
}

func (b *Builder) nums() []int {
	nums := make([]int, 0, len(b.objs))
	for n := range b.objs {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// Bytes writes the file with a classic xref table. extraTrailer is inserted
// verbatim into the trailer dictionary.
func (b *Builder) Bytes(root int, extraTrailer string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	offsets := make(map[int]int)
	for _, n := range b.nums() {
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, b.objs[n])
	}
	xrefAt := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", b.next)
	for n := 1; n < b.next; n++ {
		if off, ok := offsets[n]; ok {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 00000 f \n")
		}
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R %s>>\nstartxref\n%d\n%%%%EOF\n", b.next, root, extraTrailer, xrefAt)
	return buf.Bytes()
}

// CompressedBytes stores every non-stream object in one flate-compressed
// object stream and indexes the file with an xref stream.
func (b *Builder) CompressedBytes(root int) ([]byte, error) {
	var packed, plain []int
	for _, n := range b.nums() {
		if strings.Contains(b.objs[n], "stream\n") {
			plain = append(plain, n)
		} else {
			packed = append(packed, n)
		}
	}
	stmNum := b.next
	xrefNum := b.next + 1
	size := b.next + 2

	var header, body bytes.Buffer
	index := make(map[int]int)
	for i, n := range packed {
		index[n] = i
		fmt.Fprintf(&header, "%d %d ", n, body.Len())
		body.WriteString(b.objs[n])
		body.WriteByte('\n')
	}
	payload := append(header.Bytes(), body.Bytes()...)
	enc, err := filters.FlateEncode(payload)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	offsets := make(map[int]int)
	for _, n := range plain {
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, b.objs[n])
	}
	offsets[stmNum] = buf.Len()
	fmt.Fprintf(&buf, "%d 0 obj\n<< /Type /ObjStm /N %d /First %d /Filter /FlateDecode /Length %d >>\nstream\n",
		stmNum, len(packed), header.Len(), len(enc))
	buf.Write(enc)
	buf.WriteString("\nendstream\nendobj\n")

	xrefAt := buf.Len()
	offsets[xrefNum] = xrefAt
	var rows bytes.Buffer
	row := func(kind byte, f2 int, f3 byte) {
		rows.Write([]byte{kind, byte(f2 >> 24), byte(f2 >> 16), byte(f2 >> 8), byte(f2), f3})
	}
	for n := 0; n < size; n++ {
		if off, ok := offsets[n]; ok {
			row(1, off, 0)
		} else if i, ok := index[n]; ok {
			row(2, stmNum, byte(i))
		} else {
			row(0, 0, 0xff)
		}
	}
	fmt.Fprintf(&buf, "%d 0 obj\n<< /Type /XRef /Size %d /W [1 4 1] /Root %d 0 R /Length %d >>\nstream\n",
		xrefNum, size, root, rows.Len())
	buf.Write(rows.Bytes())
	fmt.Fprintf(&buf, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", xrefAt)
	return buf.Bytes(), nil
}
