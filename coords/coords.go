package coords

import (
	"errors"
	"math"
)

type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

// Multiply returns m×o: m applied first, then o.
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2], m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2], m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4], m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

type Point struct{ X, Y float64 }

func (m Matrix) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-10 {
		return Matrix{}, errors.New("matrix singular")
	}
	return Matrix{m[3] / det, -m[1] / det, -m[2] / det, m[0] / det, (m[2]*m[5] - m[3]*m[4]) / det, (m[1]*m[4] - m[0]*m[5]) / det}, nil
}

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }
func Scale(sx, sy float64) Matrix     { return Matrix{sx, 0, 0, sy, 0, 0} }

// Rect is an axis-aligned rectangle given by two corners; X0<=X1 and Y0<=Y1
// once normalized. Pages use top-left origin coordinates with y growing down.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// XYWH builds a rect from an origin and size.
func XYWH(x, y, w, h float64) Rect { return Rect{X0: x, Y0: y, X1: x + w, Y1: y + h} }

// Bounds returns the smallest rect containing every point.
func Bounds(pts ...Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	r := Rect{X0: pts[0].X, Y0: pts[0].Y, X1: pts[0].X, Y1: pts[0].Y}
	for _, p := range pts[1:] {
		r.X0 = math.Min(r.X0, p.X)
		r.Y0 = math.Min(r.Y0, p.Y)
		r.X1 = math.Max(r.X1, p.X)
		r.Y1 = math.Max(r.Y1, p.Y)
	}
	return r
}

// TransformRect maps the four corners of r through m and returns their bounds.
func (m Matrix) TransformRect(r Rect) Rect {
	return Bounds(
		m.Transform(Point{r.X0, r.Y0}), m.Transform(Point{r.X1, r.Y0}),
		m.Transform(Point{r.X0, r.Y1}), m.Transform(Point{r.X1, r.Y1}),
	)
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }
func (r Rect) Area() float64   { return math.Max(0, r.Width()) * math.Max(0, r.Height()) }
func (r Rect) Empty() bool     { return r.Width() <= 0 || r.Height() <= 0 }

func (r Rect) Normalize() Rect {
	if r.X0 > r.X1 {
		r.X0, r.X1 = r.X1, r.X0
	}
	if r.Y0 > r.Y1 {
		r.Y0, r.Y1 = r.Y1, r.Y0
	}
	return r
}

// Intersect returns the overlap of r and o, which is Empty when they share
// no area.
func (r Rect) Intersect(o Rect) Rect {
	return Rect{
		X0: math.Max(r.X0, o.X0), Y0: math.Max(r.Y0, o.Y0),
		X1: math.Min(r.X1, o.X1), Y1: math.Min(r.Y1, o.Y1),
	}
}

// Intersects reports a positive-area overlap; touching edges do not count.
func (r Rect) Intersects(o Rect) bool { return !r.Intersect(o).Empty() }

func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	return Rect{
		X0: math.Min(r.X0, o.X0), Y0: math.Min(r.Y0, o.Y0),
		X1: math.Max(r.X1, o.X1), Y1: math.Max(r.Y1, o.Y1),
	}
}

func (r Rect) Contains(p Point) bool {
	return p.X >= r.X0 && p.X <= r.X1 && p.Y >= r.Y0 && p.Y <= r.Y1
}

func (r Rect) Center() Point { return Point{X: (r.X0 + r.X1) / 2, Y: (r.Y0 + r.Y1) / 2} }

// Expand grows r by margin on every side; a negative margin shrinks it.
func (r Rect) Expand(margin float64) Rect {
	return Rect{X0: r.X0 - margin, Y0: r.Y0 - margin, X1: r.X1 + margin, Y1: r.Y1 + margin}
}

// Clamp restricts r to bounds.
func (r Rect) Clamp(bounds Rect) Rect {
	c := r.Intersect(bounds)
	if c.Empty() {
		return Rect{}
	}
	return c
}

// Round snaps every corner to the nearest integer.
func (r Rect) Round() Rect {
	return Rect{X0: math.Round(r.X0), Y0: math.Round(r.Y0), X1: math.Round(r.X1), Y1: math.Round(r.Y1)}
}
