package main

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/colornames"

	"github.com/milk9111/anchortap/anchor"
)

const spawnFlashFrames = 18

type marker struct {
	rec   anchor.Record
	flash int
}

// Scene renders anchor markers and receives the controller's scene-host
// callbacks. Fill color follows tracking quality; a gold ring marks
// persisted anchors.
type Scene struct {
	markers map[anchor.Handle]*marker
	order   []anchor.Handle
}

func NewScene() *Scene {
	return &Scene{markers: make(map[anchor.Handle]*marker)}
}

func (s *Scene) ShowAnchor(rec anchor.Record) {
	if _, ok := s.markers[rec.Handle]; ok {
		return
	}
	s.markers[rec.Handle] = &marker{rec: rec, flash: spawnFlashFrames}
	s.order = append(s.order, rec.Handle)
}

func (s *Scene) RefreshAnchor(rec anchor.Record) {
	if m, ok := s.markers[rec.Handle]; ok {
		m.rec = rec
	}
}

func (s *Scene) HideAnchor(h anchor.Handle) {
	if _, ok := s.markers[h]; !ok {
		return
	}
	delete(s.markers, h)
	for i, other := range s.order {
		if other == h {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Reset drops every marker, for session restarts.
func (s *Scene) Reset() {
	s.markers = make(map[anchor.Handle]*marker)
	s.order = nil
}

// Step decays spawn flashes.
func (s *Scene) Step() {
	for _, m := range s.markers {
		if m.flash > 0 {
			m.flash--
		}
	}
}

func trackingColor(t anchor.TrackingState) color.RGBA {
	switch t {
	case anchor.Tracking:
		return colornames.Mediumseagreen
	case anchor.Limited:
		return colornames.Orange
	default:
		return colornames.Crimson
	}
}

func (s *Scene) Draw(screen *ebiten.Image, view *Viewport) {
	for _, h := range s.order {
		m := s.markers[h]
		x, y := view.toScreen(m.rec.Position)
		r := float32(0.06 * view.scale)
		if m.flash > 0 {
			r += float32(m.flash) * 0.3
		}
		vector.FillCircle(screen, x, y, r, trackingColor(m.rec.Tracking), true)
		if m.rec.Persisted {
			vector.StrokeCircle(screen, x, y, r+4, 2, colornames.Gold, true)
			ebitenutil.DebugPrintAt(screen, m.rec.PersistedName, int(x)+8, int(y)-18)
		}
	}
}
