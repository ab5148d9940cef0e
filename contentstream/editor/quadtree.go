package editor

import "github.com/wudi/pdfredact/coords"

// QuadTree implements a spatial index for rectangles.
type QuadTree struct {
	Bounds   coords.Rect
	Capacity int
	Points   []PointData
	Nodes    []*QuadTree

	depth int
}

type PointData struct {
	Rect  coords.Rect
	Index int
}

// maxDepth stops subdivision when many boxes share one spot.
const maxDepth = 12

func NewQuadTree(bounds coords.Rect, capacity int) *QuadTree {
	return &QuadTree{
		Bounds:   bounds,
		Capacity: capacity,
		Points:   make([]PointData, 0, capacity),
	}
}

func (qt *QuadTree) Insert(rect coords.Rect, index int) bool {
	if !touches(qt.Bounds, rect) {
		return false
	}

	if qt.Nodes != nil {
		for _, node := range qt.Nodes {
			if contains(node.Bounds, rect) && node.Insert(rect, index) {
				return true
			}
		}
		// Straddles children, so it stays at this level.
		qt.Points = append(qt.Points, PointData{Rect: rect, Index: index})
		return true
	}

	if len(qt.Points) < qt.Capacity || qt.depth >= maxDepth {
		qt.Points = append(qt.Points, PointData{Rect: rect, Index: index})
		return true
	}

	qt.subdivide()
	old := qt.Points
	qt.Points = make([]PointData, 0, qt.Capacity)
	for _, p := range old {
		qt.Insert(p.Rect, p.Index)
	}
	return qt.Insert(rect, index)
}

func (qt *QuadTree) subdivide() {
	b := qt.Bounds
	xMid := (b.X0 + b.X1) / 2
	yMid := (b.Y0 + b.Y1) / 2

	qt.Nodes = []*QuadTree{
		NewQuadTree(coords.Rect{X0: b.X0, Y0: b.Y0, X1: xMid, Y1: yMid}, qt.Capacity),
		NewQuadTree(coords.Rect{X0: xMid, Y0: b.Y0, X1: b.X1, Y1: yMid}, qt.Capacity),
		NewQuadTree(coords.Rect{X0: b.X0, Y0: yMid, X1: xMid, Y1: b.Y1}, qt.Capacity),
		NewQuadTree(coords.Rect{X0: xMid, Y0: yMid, X1: b.X1, Y1: b.Y1}, qt.Capacity),
	}
	for _, n := range qt.Nodes {
		n.depth = qt.depth + 1
	}
}

// Query returns the indexes of rectangles touching rangeRect, edges
// included.
func (qt *QuadTree) Query(rangeRect coords.Rect) []int {
	var found []int
	if !touches(qt.Bounds, rangeRect) {
		return found
	}

	for _, p := range qt.Points {
		if touches(p.Rect, rangeRect) {
			found = append(found, p.Index)
		}
	}

	for _, node := range qt.Nodes {
		found = append(found, node.Query(rangeRect)...)
	}
	return found
}

func touches(r1, r2 coords.Rect) bool {
	return !(r2.X0 > r1.X1 || r2.X1 < r1.X0 || r2.Y0 > r1.Y1 || r2.Y1 < r1.Y0)
}

func contains(outer, inner coords.Rect) bool {
	return inner.X0 >= outer.X0 && inner.X1 <= outer.X1 &&
		inner.Y0 >= outer.Y0 && inner.Y1 <= outer.Y1
}
