package common

import "math"

// Vec3 is a point or direction in world space. Distances are in meters.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

// Up is the canonical up axis; anchor orientations are always built against it.
var Up = Vec3{Y: 1}

// Ahead is the fallback forward direction when a look direction degenerates
// (activation point coincides with the viewer).
var Ahead = Vec3{Z: 1}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

func (v Vec3) Len() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalize returns v scaled to unit length. ok is false for a zero vector.
func (v Vec3) Normalize() (Vec3, bool) {
	l := v.Len()
	if l == 0 {
		return Vec3{}, false
	}
	return v.Scale(1 / l), true
}

// Dist returns the Euclidean distance between two points.
func Dist(a, b Vec3) float64 {
	return a.Sub(b).Len()
}

func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}
