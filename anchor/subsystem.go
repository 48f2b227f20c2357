package anchor

import (
	"context"

	"github.com/milk9111/anchortap/common"
)

// Subsystem is the platform anchor layer the controller drives. Implementations
// deliver anchor lifecycle events through the callback registered with
// Subscribe; they must not invoke the callback synchronously from Subscribe or
// from CreateAnchor, only between controller ticks or from their own event
// pump.
type Subsystem interface {
	// CreateAnchor asks the subsystem to start tracking a new anchor at the
	// given pose. The anchor becomes live only once the subsystem reports it
	// added; until then the returned handle is a request receipt.
	CreateAnchor(pose Pose) (Handle, error)

	// OpenStore opens the persisted-anchor store. It may block; the controller
	// calls it from a goroutine and honors ctx cancellation.
	OpenStore(ctx context.Context) (Store, error)

	// Subscribe registers fn for anchor change batches and returns a
	// cancellation func. Cancellation must be idempotent.
	Subscribe(fn func(Changes)) (cancel func())
}

// Store is durable storage for anchors that survive sessions.
type Store interface {
	// Names lists every persisted anchor name, in stable order.
	Names() []string

	// Load asks the store to recreate the named anchor and returns the handle
	// it will come back under. The anchor itself arrives later as an Added
	// change.
	Load(name string) (Handle, error)

	// Persist saves the anchor under name. Fails with ErrNameExists if the
	// name is already taken.
	Persist(h Handle, name string) error

	// Unpersist removes the named anchor from the store.
	Unpersist(name string) error
}

// GestureInput supplies gesture state for the controller to sample once per
// tick. The ok return reports whether the source produced a signal this tick;
// no signal is treated as inactive.
type GestureInput interface {
	SampleActivation(src Source) (active, ok bool)
	SamplePosition(src Source) (common.Vec3, bool)
	ViewerPosition() (common.Vec3, bool)
}

// SceneHost receives visual lifecycle notifications for live anchors. All
// methods are called on the controller's tick goroutine.
type SceneHost interface {
	ShowAnchor(rec Record)
	RefreshAnchor(rec Record)
	HideAnchor(h Handle)
}
