package history

import "errors"

var (
	// ErrUserRequired is returned when an event or query has no user.
	ErrUserRequired = errors.New("history: user is required")

	// ErrUnknownKind is returned for an event kind the table does not store.
	ErrUnknownKind = errors.New("history: unknown event kind")
)
