// Package anchor implements an engine-independent spatial-anchor interaction
// controller: it tracks the live anchors reported by a platform anchor
// subsystem, turns discrete activation gestures into either new-anchor
// creation or persistence toggling of a nearby anchor, and reconciles
// asynchronous anchor add/update/remove events against pending
// persisted-anchor loads.
package anchor

import (
	"github.com/google/uuid"
	"github.com/milk9111/anchortap/common"
)

// Handle identifies one tracked anchor for its lifetime. The subsystem
// assigns it when an anchor is created or loaded; the zero value is invalid.
type Handle uuid.UUID

// NewHandle returns a fresh unique handle.
func NewHandle() Handle {
	return Handle(uuid.New())
}

func (h Handle) Valid() bool {
	return uuid.UUID(h) != uuid.Nil
}

func (h Handle) String() string {
	return uuid.UUID(h).String()
}

// Short returns the leading hex group of the handle, for logs and overlays.
func (h Handle) Short() string {
	return uuid.UUID(h).String()[:8]
}

// TrackingState describes how well the subsystem is currently tracking an
// anchor.
type TrackingState int

const (
	NotTracking TrackingState = iota
	Limited
	Tracking
)

func (s TrackingState) String() string {
	switch s {
	case Tracking:
		return "tracking"
	case Limited:
		return "limited"
	default:
		return "not-tracking"
	}
}

// Pose is a position plus an orientation expressed as forward and up
// directions. Up is always the canonical up axis.
type Pose struct {
	Position common.Vec3
	Forward  common.Vec3
	Up       common.Vec3
}

// LookAwayFrom builds a pose at position whose forward direction points from
// viewer toward position, so the anchor faces away from the viewer. A
// degenerate direction falls back to the canonical ahead axis.
func LookAwayFrom(position, viewer common.Vec3) Pose {
	fwd, ok := position.Sub(viewer).Normalize()
	if !ok {
		fwd = common.Ahead
	}
	return Pose{Position: position, Forward: fwd, Up: common.Up}
}

// Record is the controller-owned state for one live anchor. Records are
// created when the subsystem reports an anchor added, mutated on updates, and
// erased on removal.
type Record struct {
	Handle        Handle
	Position      common.Vec3
	Tracking      TrackingState
	PersistedName string
	Persisted     bool
}

// AnchorState is a subsystem-reported snapshot of one anchor.
type AnchorState struct {
	Handle   Handle
	Pose     Pose
	Tracking TrackingState
}

// Changes is one batch of anchor events from the subsystem.
type Changes struct {
	Added   []AnchorState
	Updated []AnchorState
	Removed []Handle
}

// Source identifies one gesture input source.
type Source int

const (
	LeftHand Source = iota
	RightHand

	numSources
)

func (s Source) String() string {
	switch s {
	case LeftHand:
		return "left"
	case RightHand:
		return "right"
	default:
		return "unknown"
	}
}
