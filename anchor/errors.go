package anchor

import "errors"

var (
	// ErrUnavailable reports that the anchor subsystem or its persisted store
	// is absent or failed to come up.
	ErrUnavailable = errors.New("anchor: subsystem unavailable")

	// ErrNameExists reports a persisted-name collision in the store.
	ErrNameExists = errors.New("anchor: persisted name already exists")

	// ErrUnknownName reports a load or unpersist against a name the store
	// does not hold.
	ErrUnknownName = errors.New("anchor: unknown persisted name")
)
