package raw

import (
	"fmt"
	"sort"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
}

// Name object
type NameObj struct{ Val string }

func (n NameObj) Type() string { return "name" }

// Number object
type NumberObj struct {
	I     int64
	F     float64
	IsInt bool
}

func (n NumberObj) Type() string { return "number" }
func (n NumberObj) Int() int64 {
	if n.IsInt {
		return n.I
	}
	return int64(n.F)
}
func (n NumberObj) Float() float64 {
	if n.IsInt {
		return float64(n.I)
	}
	return n.F
}

// Boolean object
type BoolObj struct{ V bool }

func (b BoolObj) Type() string { return "boolean" }

// Null object
type NullObj struct{}

func (n NullObj) Type() string { return "null" }

// String object. Hex records the source notation so rewritten content keeps it.
type StringObj struct {
	Bytes []byte
	Hex   bool
}

func (s StringObj) Type() string { return "string" }

// Array object
type ArrayObj struct{ Items []Object }

func (a *ArrayObj) Type() string { return "array" }
func (a *ArrayObj) Len() int     { return len(a.Items) }
func (a *ArrayObj) Get(i int) (Object, bool) {
	if i < 0 || i >= len(a.Items) {
		return nil, false
	}
	return a.Items[i], true
}
func (a *ArrayObj) Append(o ...Object) { a.Items = append(a.Items, o...) }

// Dictionary object
type DictObj struct{ KV map[string]Object }

func (d *DictObj) Type() string { return "dict" }
func (d *DictObj) Get(key string) (Object, bool) {
	if d == nil {
		return nil, false
	}
	o, ok := d.KV[key]
	return o, ok
}
func (d *DictObj) Set(key string, value Object) {
	if d.KV == nil {
		d.KV = make(map[string]Object)
	}
	d.KV[key] = value
}
func (d *DictObj) Delete(key string) { delete(d.KV, key) }
func (d *DictObj) Len() int          { return len(d.KV) }

// Keys returns the dictionary keys in lexical order.
func (d *DictObj) Keys() []string {
	keys := make([]string, 0, len(d.KV))
	for k := range d.KV {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the dictionary.
func (d *DictObj) Clone() *DictObj {
	out := Dict()
	if d == nil {
		return out
	}
	for k, v := range d.KV {
		out.KV[k] = v
	}
	return out
}

// Stream object. Data holds the encoded bytes exactly as stored in the file.
type StreamObj struct {
	Dict *DictObj
	Data []byte
}

func (s *StreamObj) Type() string { return "stream" }

// Reference object
type RefObj struct{ R ObjectRef }

func (r RefObj) Type() string { return "ref" }

// Helpers
func NameLiteral(v string) NameObj                    { return NameObj{Val: v} }
func NumberInt(i int64) NumberObj                     { return NumberObj{I: i, IsInt: true} }
func NumberFloat(f float64) NumberObj                 { return NumberObj{F: f} }
func Bool(v bool) BoolObj                             { return BoolObj{V: v} }
func Str(b []byte) StringObj                          { return StringObj{Bytes: b} }
func HexStr(b []byte) StringObj                       { return StringObj{Bytes: b, Hex: true} }
func NewArray(items ...Object) *ArrayObj              { return &ArrayObj{Items: items} }
func Dict() *DictObj                                  { return &DictObj{KV: make(map[string]Object)} }
func NewStream(dict *DictObj, data []byte) *StreamObj { return &StreamObj{Dict: dict, Data: data} }
func Ref(num, gen int) RefObj                         { return RefObj{R: ObjectRef{Num: num, Gen: gen}} }

// NumberArray builds an array of float numbers, using integers where exact.
func NumberArray(vals ...float64) *ArrayObj {
	arr := &ArrayObj{Items: make([]Object, 0, len(vals))}
	for _, v := range vals {
		if v == float64(int64(v)) {
			arr.Items = append(arr.Items, NumberInt(int64(v)))
		} else {
			arr.Items = append(arr.Items, NumberFloat(v))
		}
	}
	return arr
}

// AsName returns the value of a name object.
func AsName(o Object) (string, bool) {
	n, ok := o.(NameObj)
	return n.Val, ok
}

// AsNumber returns the numeric value of a number object.
func AsNumber(o Object) (float64, bool) {
	n, ok := o.(NumberObj)
	if !ok {
		return 0, false
	}
	return n.Float(), true
}

// AsInt returns the integer value of a number object.
func AsInt(o Object) (int64, bool) {
	n, ok := o.(NumberObj)
	if !ok {
		return 0, false
	}
	return n.Int(), true
}
