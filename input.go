package main

import (
	"math"

	ebuiinput "github.com/ebitenui/ebitenui/input"
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/milk9111/anchortap/anchor"
	"github.com/milk9111/anchortap/common"
)

// aimReach is how far the gamepad reticle sits from the viewer at full stick
// deflection, in meters.
const aimReach = 1.5

// Gestures adapts ebiten input devices to the controller's gesture contract.
// With a gamepad connected the triggers are the primary activation channels:
// left trigger for the left hand, right trigger for the right. Without one,
// the left hand falls back to the E key and the right hand to the left mouse
// button. Holding Tab simulates losing hand tracking entirely, so both
// sources report no signal.
type Gestures struct {
	room *Room
	view *Viewport
}

func NewGestures(room *Room, view *Viewport) *Gestures {
	return &Gestures{room: room, view: view}
}

// Move is the viewer movement vector from WASD/arrows or the left stick,
// normalized so diagonals are no faster.
func (g *Gestures) Move() (float64, float64) {
	var dx, dz float64
	if ebiten.IsKeyPressed(ebiten.KeyA) || ebiten.IsKeyPressed(ebiten.KeyLeft) {
		dx -= 1
	}
	if ebiten.IsKeyPressed(ebiten.KeyD) || ebiten.IsKeyPressed(ebiten.KeyRight) {
		dx += 1
	}
	if ebiten.IsKeyPressed(ebiten.KeyW) || ebiten.IsKeyPressed(ebiten.KeyUp) {
		dz -= 1
	}
	if ebiten.IsKeyPressed(ebiten.KeyS) || ebiten.IsKeyPressed(ebiten.KeyDown) {
		dz += 1
	}

	if ids := ebiten.AppendGamepadIDs(nil); len(ids) > 0 {
		gid := ids[0]
		lx := ebiten.StandardGamepadAxisValue(gid, ebiten.StandardGamepadAxisLeftStickHorizontal)
		ly := ebiten.StandardGamepadAxisValue(gid, ebiten.StandardGamepadAxisLeftStickVertical)
		if lx < -0.3 {
			dx = -1
		} else if lx > 0.3 {
			dx = 1
		}
		if ly < -0.3 {
			dz = -1
		} else if ly > 0.3 {
			dz = 1
		}
	}

	if dx != 0 && dz != 0 {
		inv := 1 / math.Sqrt2
		dx *= inv
		dz *= inv
	}
	return dx, dz
}

func (g *Gestures) SampleActivation(src anchor.Source) (bool, bool) {
	if ebiten.IsKeyPressed(ebiten.KeyTab) {
		return false, false
	}

	if ids := ebiten.AppendGamepadIDs(nil); len(ids) > 0 {
		gid := ids[0]
		btn := ebiten.StandardGamepadButtonFrontBottomRight
		if src == anchor.LeftHand {
			btn = ebiten.StandardGamepadButtonFrontBottomLeft
		}
		return ebiten.IsStandardGamepadButtonPressed(gid, btn), true
	}

	switch src {
	case anchor.LeftHand:
		return ebiten.IsKeyPressed(ebiten.KeyE), true
	case anchor.RightHand:
		// Clicks on the HUD are UI interaction, not air taps.
		if ebuiinput.UIHovered {
			return false, true
		}
		return ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft), true
	}
	return false, false
}

func (g *Gestures) SamplePosition(src anchor.Source) (common.Vec3, bool) {
	if ebiten.IsKeyPressed(ebiten.KeyTab) {
		return common.Vec3{}, false
	}
	return g.AimPoint()
}

// AimPoint is the world-space point both hands aim at: the right stick's
// reticle when deflected, otherwise the cursor unprojected onto the anchor
// plane. A point outside the room has no surface to hit.
func (g *Gestures) AimPoint() (common.Vec3, bool) {
	if ids := ebiten.AppendGamepadIDs(nil); len(ids) > 0 {
		gid := ids[0]
		rx := ebiten.StandardGamepadAxisValue(gid, ebiten.StandardGamepadAxisRightStickHorizontal)
		ry := ebiten.StandardGamepadAxisValue(gid, ebiten.StandardGamepadAxisRightStickVertical)
		if rx*rx+ry*ry > 0.04 {
			viewer := g.room.ViewerPos()
			p := common.Vec3{X: viewer.X + rx*aimReach, Y: anchorHeight, Z: viewer.Z + ry*aimReach}
			if !g.room.Contains(p.X, p.Z) {
				return common.Vec3{}, false
			}
			return p, true
		}
	}

	mx, my := ebiten.CursorPosition()
	p := g.view.toWorld(mx, my)
	if !g.room.Contains(p.X, p.Z) {
		return common.Vec3{}, false
	}
	return p, true
}

func (g *Gestures) ViewerPosition() (common.Vec3, bool) {
	return g.room.ViewerPos(), true
}
