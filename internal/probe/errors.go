package probe

import "errors"

// Domain-specific errors for probe operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnreachable is returned when the stats endpoint cannot be reached.
	ErrUnreachable = errors.New("probe: stats endpoint unreachable")

	// ErrBadStatus is returned when the stats endpoint answers with a non-200 status.
	ErrBadStatus = errors.New("probe: unexpected stats status")

	// ErrParse is returned when the stats payload cannot be decoded.
	ErrParse = errors.New("probe: cannot parse stats")

	// ErrStreamNotFound is returned when the configured stream or publisher
	// is absent from an otherwise valid stats payload.
	ErrStreamNotFound = errors.New("probe: stream not found")

	// ErrUnknownKind is returned by New for an unsupported server type.
	ErrUnknownKind = errors.New("probe: unknown stream server type")
)
