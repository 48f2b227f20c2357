package main

import (
	"math"

	"github.com/jakecoffman/cp"

	"github.com/milk9111/anchortap/common"
	"github.com/milk9111/anchortap/profiles"
)

const (
	eyeHeight    = 1.6
	anchorHeight = 1.4
	viewerRadius = 0.25
	tickRate     = 60.0
)

// Room is the walkable play area: a Chipmunk space with four wall segments
// and the viewer's body. The room lies on the world X/Z plane; the space's
// second axis is world Z.
type Room struct {
	space  *cp.Space
	viewer *cp.Body
	width  float64
	depth  float64
	speed  float64
}

func NewRoom(spec profiles.RoomSpec) *Room {
	r := &Room{width: spec.Width, depth: spec.Depth, speed: spec.ViewerSpeed}
	if r.width <= 0 {
		r.width = 8
	}
	if r.depth <= 0 {
		r.depth = 6
	}
	if r.speed <= 0 {
		r.speed = 2.5
	}

	space := cp.NewSpace()
	space.Iterations = 10
	r.space = space

	hw := r.width / 2
	hd := r.depth / 2
	corners := []cp.Vector{{X: -hw, Y: -hd}, {X: hw, Y: -hd}, {X: hw, Y: hd}, {X: -hw, Y: hd}}
	for i := range corners {
		seg := cp.NewSegment(space.StaticBody, corners[i], corners[(i+1)%len(corners)], 0.05)
		seg.SetElasticity(0)
		seg.SetFriction(0.4)
		space.AddShape(seg)
	}

	body := cp.NewBody(1, math.Inf(1))
	body.SetPosition(cp.Vector{})
	space.AddBody(body)
	shape := cp.NewCircle(body, viewerRadius, cp.Vector{})
	shape.SetElasticity(0)
	shape.SetFriction(0.4)
	space.AddShape(shape)
	r.viewer = body

	return r
}

// Step drives the viewer with the movement vector and advances the space one
// frame. The walls stop the viewer; there is no sliding cost tuning beyond
// zero elasticity.
func (r *Room) Step(moveX, moveZ float64) {
	r.viewer.SetVelocity(moveX*r.speed, moveZ*r.speed)
	r.space.Step(1.0 / tickRate)
}

// MoveViewerTo teleports the viewer, clamped inside the walls. Used when the
// room is rebuilt around an existing session.
func (r *Room) MoveViewerTo(x, z float64) {
	hw := r.width/2 - viewerRadius
	hd := r.depth/2 - viewerRadius
	r.viewer.SetPosition(cp.Vector{X: clamp(x, -hw, hw), Y: clamp(z, -hd, hd)})
	r.viewer.SetVelocityVector(cp.Vector{})
}

// ViewerPos is the viewer's eye position in world space.
func (r *Room) ViewerPos() common.Vec3 {
	p := r.viewer.Position()
	return common.Vec3{X: p.X, Y: eyeHeight, Z: p.Y}
}

// Contains reports whether the world X/Z point lies inside the walls.
func (r *Room) Contains(x, z float64) bool {
	return x >= -r.width/2 && x <= r.width/2 && z >= -r.depth/2 && z <= r.depth/2
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
