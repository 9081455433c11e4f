// Package coords provides page-space geometry: affine matrices, points and
// rectangles. Page space has its origin at the lower-left corner of a page
// and is measured in points, independent of any display zoom.
package coords

import (
	"errors"
	"math"
)

// Matrix is an affine transform in the order [a b c d e f].
type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

type Point struct{ X, Y float64 }

func (m Matrix) Transform(p Point) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}

func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-10 {
		return Matrix{}, errors.New("matrix singular")
	}
	return Matrix{
		m[3] / det,
		-m[1] / det,
		-m[2] / det,
		m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det,
		(m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }

func Scale(sx, sy float64) Matrix { return Matrix{sx, 0, 0, sy, 0, 0} }

// Rotate builds a rotation matrix for the given angle in radians.
func Rotate(angle float64) Matrix {
	c := math.Cos(angle)
	s := math.Sin(angle)
	return Matrix{c, s, -s, c, 0, 0}
}

// Rect is an axis-aligned rectangle anchored at its lower-left corner.
type Rect struct {
	X, Y, W, H float64
}

// IsEmpty reports whether the rectangle has non-positive dimensions.
func (r Rect) IsEmpty() bool { return r.W <= 0 || r.H <= 0 }

// Contains returns true if the point lies within the rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// Intersects reports whether two rectangles overlap.
func (r Rect) Intersects(o Rect) bool {
	if r.IsEmpty() || o.IsEmpty() {
		return false
	}
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// TransformRect returns the bounding box of the four transformed corners.
func (m Matrix) TransformRect(r Rect) Rect {
	corners := [4]Point{
		{r.X, r.Y},
		{r.X + r.W, r.Y},
		{r.X, r.Y + r.H},
		{r.X + r.W, r.Y + r.H},
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		p := m.Transform(c)
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}
