package switcher

import "errors"

var (
	// ErrPreviousHasNoScene is returned when the scene table is asked for
	// Previous, which resolves to the stored previous scene instead.
	ErrPreviousHasNoScene = errors.New("switcher: previous classification has no scene table entry")

	// ErrInvalidConfig is returned by New for unusable settings.
	ErrInvalidConfig = errors.New("switcher: invalid configuration")
)
