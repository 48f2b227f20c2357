package sim

import (
	"github.com/milk9111/anchortap/anchor"
	"github.com/milk9111/anchortap/common"
)

// channel is one activation signal with its own availability.
type channel struct {
	active bool
	ok     bool
}

type sourceState struct {
	primary   channel
	secondary channel
	pos       common.Vec3
	tapped    bool
}

func (s *sourceState) signal() bool {
	return s.primary.ok || s.secondary.ok
}

// Input is a scriptable gesture source for scenarios and tests. Each source
// carries a primary and a secondary activation channel; sampling consults the
// primary and falls back to the secondary when the primary has no signal. The
// zero viewer sits at the origin.
type Input struct {
	sources  map[anchor.Source]*sourceState
	viewer   common.Vec3
	viewerOK bool
}

func NewInput() *Input {
	return &Input{
		sources: map[anchor.Source]*sourceState{
			anchor.LeftHand:  {primary: channel{ok: true}, secondary: channel{ok: true}},
			anchor.RightHand: {primary: channel{ok: true}, secondary: channel{ok: true}},
		},
		viewerOK: true,
	}
}

// Press activates src's primary channel at pos and holds it until Release.
func (in *Input) Press(src anchor.Source, pos common.Vec3) {
	if s := in.sources[src]; s != nil {
		s.primary = channel{active: true, ok: true}
		s.pos = pos
		s.tapped = false
	}
}

func (in *Input) Release(src anchor.Source) {
	if s := in.sources[src]; s != nil {
		s.primary = channel{active: false, ok: true}
		s.tapped = false
	}
}

// Tap presses src at pos for exactly one frame; EndFrame releases it.
func (in *Input) Tap(src anchor.Source, pos common.Vec3) {
	in.Press(src, pos)
	if s := in.sources[src]; s != nil {
		s.tapped = true
	}
}

// EndFrame releases every tapped source. Hosts call it once per frame after
// gestures have been sampled.
func (in *Input) EndFrame() {
	for _, s := range in.sources {
		if s.tapped {
			s.primary = channel{active: false, ok: true}
			s.tapped = false
		}
	}
}

// SetPosition moves src's reported position without touching activation, the
// way a held hand moves between frames.
func (in *Input) SetPosition(src anchor.Source, pos common.Vec3) {
	if s := in.sources[src]; s != nil {
		s.pos = pos
	}
}

// PressSecondary drives the fallback channel. It only matters once the
// primary signal is lost.
func (in *Input) PressSecondary(src anchor.Source, pos common.Vec3) {
	if s := in.sources[src]; s != nil {
		s.secondary = channel{active: true, ok: true}
		s.pos = pos
	}
}

func (in *Input) ReleaseSecondary(src anchor.Source) {
	if s := in.sources[src]; s != nil {
		s.secondary = channel{active: false, ok: true}
	}
}

// LosePrimary drops only src's primary channel; sampling falls back to the
// secondary.
func (in *Input) LosePrimary(src anchor.Source) {
	if s := in.sources[src]; s != nil {
		s.primary = channel{}
	}
}

// LoseSignal drops both of src's channels until the next press or release.
func (in *Input) LoseSignal(src anchor.Source) {
	if s := in.sources[src]; s != nil {
		s.primary = channel{}
		s.secondary = channel{}
	}
}

func (in *Input) SetViewer(pos common.Vec3) {
	in.viewer = pos
	in.viewerOK = true
}

// ClearViewer makes the viewer pose unavailable.
func (in *Input) ClearViewer() {
	in.viewerOK = false
}

func (in *Input) SampleActivation(src anchor.Source) (bool, bool) {
	s := in.sources[src]
	if s == nil {
		return false, false
	}
	if s.primary.ok {
		return s.primary.active, true
	}
	if s.secondary.ok {
		return s.secondary.active, true
	}
	return false, false
}

func (in *Input) SamplePosition(src anchor.Source) (common.Vec3, bool) {
	s := in.sources[src]
	if s == nil || !s.signal() {
		return common.Vec3{}, false
	}
	return s.pos, true
}

func (in *Input) ViewerPosition() (common.Vec3, bool) {
	return in.viewer, in.viewerOK
}
