package types

import "github.com/google/uuid"

// Handle is the opaque parent handle a buffer carries, realized as a UUID so a host application can correlate a
// buffer with its owning mesh or scene-graph node across logging and
// diagnostics without this module knowing anything about that owner.
type Handle uuid.UUID

// NewHandle allocates a fresh, globally unique Handle.
func NewHandle() Handle {
	return Handle(uuid.New())
}

// String renders the handle in canonical UUID form.
func (h Handle) String() string {
	return uuid.UUID(h).String()
}
