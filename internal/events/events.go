package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/uplink-switcher/internal/probe"
)

// Kind names an event type. It is also the last MQTT topic segment.
type Kind string

// Event kinds.
const (
	KindAutomaticSwitch Kind = "automatic_switching_scene"
	KindOfflineTimeout  Kind = "offline_timeout"
)

// Event is one notification.
type Event struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Channel    string    `json:"channel"`
	Scene      string    `json:"scene,omitempty"`
	SwitchType string    `json:"switch_type,omitempty"`
	Server     string    `json:"server,omitempty"`
	Message    string    `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`

	// Notify marks events meant for the chat. Every event is still
	// delivered to every sink; chat consumers filter on this flag.
	Notify bool `json:"notify"`
}

// AutomaticSwitchingScene builds the event for a switch to scene.
func AutomaticSwitchingScene(channel, scene string, switchType probe.Classification, server, message string) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       KindAutomaticSwitch,
		Channel:    channel,
		Scene:      scene,
		SwitchType: switchType.String(),
		Server:     server,
		Message:    message,
		OccurredAt: time.Now().UTC(),
	}
}

// OfflineTimeout builds the event for a stream stopped after staying offline.
func OfflineTimeout(channel string, after time.Duration) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       KindOfflineTimeout,
		Channel:    channel,
		Message:    fmt.Sprintf("Stream offline for %s, stopping stream", after.Round(time.Second)),
		OccurredAt: time.Now().UTC(),
		Notify:     true,
	}
}

// Sink receives events.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })

// Fanout delivers each event to every sink in order.
type Fanout []Sink

// Emit delivers ev to all sinks and joins their errors.
func (f Fanout) Emit(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Channel is an in-process sink backed by a buffered channel.
// When the buffer is full the event is dropped and counted.
//
// Thread Safety:
//   - Emit is safe for concurrent use; C has a single consumer.
type Channel struct {
	ch      chan Event
	mu      sync.Mutex
	dropped uint64
}

// NewChannel creates a Channel sink with the given buffer size.
func NewChannel(size int) *Channel {
	return &Channel{ch: make(chan Event, size)}
}

// C returns the receive side.
func (c *Channel) C() <-chan Event {
	return c.ch
}

// Emit enqueues ev without blocking.
func (c *Channel) Emit(_ context.Context, ev Event) error {
	select {
	case c.ch <- ev:
		return nil
	default:
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
		return ErrBufferFull
	}
}

// Dropped returns how many events did not fit in the buffer.
func (c *Channel) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
