package history

import (
	"context"
	"time"

	"github.com/nerrad567/uplink-switcher/internal/events"
)

// Stored kinds.
const (
	KindSwitch         = "switch"
	KindOfflineTimeout = "offline_timeout"
)

// Entry is one recorded action.
type Entry struct {
	ID         string    `json:"id"`
	User       string    `json:"user"`
	Kind       string    `json:"kind"`
	Scene      string    `json:"scene,omitempty"`
	SwitchType string    `json:"switch_type,omitempty"`
	Server     string    `json:"server,omitempty"`
	Message    string    `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Reader lists recorded actions.
type Reader interface {
	// List returns up to limit entries for user, newest first.
	// Implementations clamp limit to their own bounds.
	List(ctx context.Context, user string, limit int) ([]Entry, error)
}

// storedKind maps an event kind onto the kind column.
func storedKind(k events.Kind) (string, bool) {
	switch k {
	case events.KindAutomaticSwitch:
		return KindSwitch, true
	case events.KindOfflineTimeout:
		return KindOfflineTimeout, true
	}
	return "", false
}
