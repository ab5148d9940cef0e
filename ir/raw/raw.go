package raw

import "sort"

// maxResolveDepth bounds reference chains such as 1 0 R -> 2 0 R -> ...
const maxResolveDepth = 32

// Document is the root container for raw PDF objects.
//
// Objects loaded from a file are clean; objects written through Set or Add
// are dirty and form the body of the next incremental update.
type Document struct {
	Objects map[ObjectRef]Object
	Trailer *DictObj
	Version string // e.g., "1.7"

	// StartXRef is the offset of the newest cross-reference section of the
	// source file, used as /Prev by incremental saves.
	StartXRef int64
	// Source holds the bytes the document was parsed from.
	Source []byte

	dirty map[ObjectRef]bool
}

// NewDocument returns an empty document with an empty trailer.
func NewDocument() *Document {
	return &Document{
		Objects: make(map[ObjectRef]Object),
		Trailer: Dict(),
		Version: "1.7",
		dirty:   make(map[ObjectRef]bool),
	}
}

// Get returns the object stored under ref.
func (d *Document) Get(ref ObjectRef) (Object, bool) {
	o, ok := d.Objects[ref]
	return o, ok
}

// Set stores obj under ref and marks it as modified.
func (d *Document) Set(ref ObjectRef, obj Object) {
	if d.Objects == nil {
		d.Objects = make(map[ObjectRef]Object)
	}
	if d.dirty == nil {
		d.dirty = make(map[ObjectRef]bool)
	}
	d.Objects[ref] = obj
	d.dirty[ref] = true
}

// Add stores obj under a fresh object number and returns its reference.
func (d *Document) Add(obj Object) ObjectRef {
	ref := ObjectRef{Num: d.NextObjectNum()}
	d.Set(ref, obj)
	return ref
}

// NextObjectNum returns the first object number not used by the document,
// honouring the trailer /Size of the source file.
func (d *Document) NextObjectNum() int {
	next := 1
	for ref := range d.Objects {
		if ref.Num >= next {
			next = ref.Num + 1
		}
	}
	if size, ok := AsInt(d.trailerValue("Size")); ok && int(size) > next {
		next = int(size)
	}
	return next
}

// Dirty returns the modified object references in ascending order.
func (d *Document) Dirty() []ObjectRef {
	refs := make([]ObjectRef, 0, len(d.dirty))
	for ref := range d.dirty {
		refs = append(refs, ref)
	}
	sortRefs(refs)
	return refs
}

// ClearDirty forgets modifications, e.g. after the document was saved.
func (d *Document) ClearDirty() { d.dirty = make(map[ObjectRef]bool) }

// Refs returns every object reference in ascending order.
func (d *Document) Refs() []ObjectRef {
	refs := make([]ObjectRef, 0, len(d.Objects))
	for ref := range d.Objects {
		refs = append(refs, ref)
	}
	sortRefs(refs)
	return refs
}

// Reachable returns the objects reachable from the trailer, in ascending
// order. ok is false when the trailer has no /Root to start from.
func (d *Document) Reachable() (refs []ObjectRef, ok bool) {
	root, ok := d.trailerValue("Root").(RefObj)
	if !ok {
		return nil, false
	}
	seen := make(map[ObjectRef]bool)
	stack := []Object{root, d.trailerValue("Info")}
	for len(stack) > 0 {
		o := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch v := o.(type) {
		case RefObj:
			target, found := d.Objects[v.R]
			if !found || seen[v.R] {
				continue
			}
			seen[v.R] = true
			refs = append(refs, v.R)
			stack = append(stack, target)
		case *DictObj:
			for _, item := range v.KV {
				stack = append(stack, item)
			}
		case *ArrayObj:
			stack = append(stack, v.Items...)
		case *StreamObj:
			if v.Dict != nil {
				stack = append(stack, v.Dict)
			}
		}
	}
	sortRefs(refs)
	return refs, true
}

// Resolve follows indirect references until a direct object is reached.
// Dangling references resolve to NullObj.
func (d *Document) Resolve(o Object) Object {
	for i := 0; i < maxResolveDepth; i++ {
		ref, ok := o.(RefObj)
		if !ok {
			return o
		}
		target, found := d.Objects[ref.R]
		if !found {
			return NullObj{}
		}
		o = target
	}
	return NullObj{}
}

// ResolveDict resolves o and returns it as a dictionary. A stream yields its
// dictionary.
func (d *Document) ResolveDict(o Object) (*DictObj, bool) {
	switch v := d.Resolve(o).(type) {
	case *DictObj:
		return v, true
	case *StreamObj:
		return v.Dict, v.Dict != nil
	}
	return nil, false
}

// ResolveArray resolves o and returns it as an array.
func (d *Document) ResolveArray(o Object) (*ArrayObj, bool) {
	a, ok := d.Resolve(o).(*ArrayObj)
	return a, ok
}

// ResolveStream resolves o and returns it as a stream.
func (d *Document) ResolveStream(o Object) (*StreamObj, bool) {
	s, ok := d.Resolve(o).(*StreamObj)
	return s, ok
}

// ResolveNumber resolves o and returns its numeric value.
func (d *Document) ResolveNumber(o Object) (float64, bool) {
	return AsNumber(d.Resolve(o))
}

// Lookup resolves key in dict, following references on both ends.
func (d *Document) Lookup(dict *DictObj, key string) Object {
	if dict == nil {
		return nil
	}
	v, ok := dict.Get(key)
	if !ok {
		return nil
	}
	return d.Resolve(v)
}

func (d *Document) trailerValue(key string) Object {
	if d.Trailer == nil {
		return nil
	}
	v, _ := d.Trailer.Get(key)
	return v
}

func sortRefs(refs []ObjectRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Num != refs[j].Num {
			return refs[i].Num < refs[j].Num
		}
		return refs[i].Gen < refs[j].Gen
	})
}
