package state

import "errors"

var (
	// ErrUnknownServer is returned when a stream server name is not configured.
	ErrUnknownServer = errors.New("state: unknown stream server")

	// ErrNoSoftware is returned when no broadcasting software connection is attached.
	ErrNoSoftware = errors.New("state: no broadcasting software connection")
)
