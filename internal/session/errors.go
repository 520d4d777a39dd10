package session

import "errors"

var (
	// ErrUnknownSession is returned when no session exists for a user.
	ErrUnknownSession = errors.New("session: unknown session")

	// ErrDuplicateUser is returned when two sessions share a user.
	ErrDuplicateUser = errors.New("session: duplicate user")

	// ErrInvalidCommand is returned for a malformed switcher command.
	ErrInvalidCommand = errors.New("session: invalid command")

	// ErrUnknownAction is returned for a command action the session does not handle.
	ErrUnknownAction = errors.New("session: unknown command action")

	// ErrSceneNotConfigured is returned when a command needs an optional scene that is not set.
	ErrSceneNotConfigured = errors.New("session: optional scene not configured")
)
