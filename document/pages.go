package document

import (
	"errors"

	"github.com/wudi/pdfredact/coords"
	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/observability"
)

const maxTreeDepth = 64

// inherited carries the page attributes a /Pages node passes down.
type inherited struct {
	resources raw.Object
	mediaBox  raw.Object
	cropBox   raw.Object
}

func (d *Document) loadPages() error {
	root, ok := d.raw.ResolveDict(d.raw.Trailer.KV["Root"])
	if !ok {
		return errors.New("catalog missing")
	}
	tree, ok := root.Get("Pages")
	if !ok {
		return ErrNoPages
	}
	visited := make(map[raw.ObjectRef]bool)
	d.walk(tree, inherited{}, visited, 0)
	return nil
}

func (d *Document) walk(node raw.Object, inh inherited, visited map[raw.ObjectRef]bool, depth int) {
	if depth > maxTreeDepth {
		return
	}
	ref, isRef := node.(raw.RefObj)
	if isRef {
		if visited[ref.R] {
			d.log.Warn("page tree cycle", observability.Int(observability.KeyObject, ref.R.Num))
			return
		}
		visited[ref.R] = true
	}
	dict, ok := d.raw.ResolveDict(node)
	if !ok {
		return
	}
	if v, ok := dict.Get("Resources"); ok {
		inh.resources = v
	}
	if v, ok := dict.Get("MediaBox"); ok {
		inh.mediaBox = v
	}
	if v, ok := dict.Get("CropBox"); ok {
		inh.cropBox = v
	}

	kids, hasKids := d.raw.ResolveArray(dict.KV["Kids"])
	typ, _ := raw.AsName(dict.KV["Type"])
	if typ == "Pages" || (typ == "" && hasKids) {
		if !hasKids {
			return
		}
		for _, kid := range kids.Items {
			d.walk(kid, inh, visited, depth+1)
		}
		return
	}
	if !isRef {
		d.log.Warn("skipping direct page object")
		return
	}
	d.pages = append(d.pages, d.newPage(len(d.pages), ref.R, dict, inh))
}

func (d *Document) newPage(index int, ref raw.ObjectRef, dict *raw.DictObj, inh inherited) *Page {
	media, ok := d.rect(inh.mediaBox)
	if !ok {
		media = coords.Rect{X1: 612, Y1: 792}
	}
	box := media
	if crop, ok := d.rect(inh.cropBox); ok {
		if c := crop.Intersect(media); !c.Empty() {
			box = c
		}
	}
	res, _ := d.raw.ResolveDict(inh.resources)
	if res == nil {
		res = raw.Dict()
	}
	return &Page{
		Index:     index,
		doc:       d,
		ref:       ref,
		dict:      dict,
		resources: res,
		box:       box,
	}
}

func (d *Document) rect(o raw.Object) (coords.Rect, bool) {
	arr, ok := d.raw.ResolveArray(o)
	if !ok || len(arr.Items) != 4 {
		return coords.Rect{}, false
	}
	var v [4]float64
	for i, item := range arr.Items {
		n, ok := d.raw.ResolveNumber(item)
		if !ok {
			return coords.Rect{}, false
		}
		v[i] = n
	}
	r := coords.Rect{X0: v[0], Y0: v[1], X1: v[2], Y1: v[3]}.Normalize()
	return r, !r.Empty()
}
