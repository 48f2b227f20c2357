package main

import (
	"math"

	"github.com/milk9111/anchortap/common"
)

const (
	hudPanelWidth = 300
	viewMargin    = 40
)

// Viewport maps the room's X/Z plane onto the screen area left of the HUD
// panel, meters to pixels, room centered.
type Viewport struct {
	scale float64
	cx    float64
	cy    float64
}

func (v *Viewport) fit(room *Room) {
	availW := float64(baseWidth - hudPanelWidth - 2*viewMargin)
	availH := float64(baseHeight - 2*viewMargin)
	v.scale = math.Min(availW/room.width, availH/room.depth)
	v.cx = float64(baseWidth-hudPanelWidth) / 2
	v.cy = float64(baseHeight) / 2
}

func (v *Viewport) toScreen(p common.Vec3) (float32, float32) {
	return float32(v.cx + p.X*v.scale), float32(v.cy + p.Z*v.scale)
}

// toWorld unprojects a screen point onto the anchor plane.
func (v *Viewport) toWorld(sx, sy int) common.Vec3 {
	return common.Vec3{
		X: (float64(sx) - v.cx) / v.scale,
		Y: anchorHeight,
		Z: (float64(sy) - v.cy) / v.scale,
	}
}
