package events

import "errors"

// ErrBufferFull is returned by Channel.Emit when the event was dropped.
var ErrBufferFull = errors.New("events: buffer full, event dropped")
