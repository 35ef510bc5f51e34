package entitlement

import "errors"

// ErrUnknownCapability is returned when a capability is not part of the schema.
// It signals a programmer error and should be caught by tests, not handled at runtime.
var ErrUnknownCapability = errors.New("entitlement: unknown capability")
