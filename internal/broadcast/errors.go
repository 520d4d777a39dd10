package broadcast

import "errors"

// Domain errors for the broadcasting software connection.
var (
	// ErrNotConnected is returned by requests while no connection is established.
	ErrNotConnected = errors.New("broadcast: not connected")

	// ErrAuthFailed is returned when OBS rejects the password or one is required.
	ErrAuthFailed = errors.New("broadcast: authentication failed")

	// ErrRequestFailed wraps a request OBS answered with a failure status.
	ErrRequestFailed = errors.New("broadcast: request failed")

	// ErrHandshake is returned when the Hello/Identify exchange is malformed.
	ErrHandshake = errors.New("broadcast: handshake failed")

	// ErrNoSourceFound is returned by ToggleSource when the scene has no sources.
	ErrNoSourceFound = errors.New("broadcast: no source found")
)
