package events

import (
	"context"
	"fmt"

	"github.com/nerrad567/uplink-switcher/internal/infrastructure/mqtt"
)

// JSONPublisher is the part of *mqtt.Client the MQTT sink needs.
type JSONPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// MQTTSink publishes each event to uplink/{channel}/event/{kind}.
type MQTTSink struct {
	pub JSONPublisher
}

// NewMQTTSink wraps a publisher.
func NewMQTTSink(pub JSONPublisher) *MQTTSink {
	return &MQTTSink{pub: pub}
}

// Emit publishes ev as a non-retained JSON message.
func (s *MQTTSink) Emit(_ context.Context, ev Event) error {
	topic := mqtt.Topics{}.SessionEvent(ev.Channel, string(ev.Kind))
	if err := s.pub.PublishJSON(topic, ev, false); err != nil {
		return fmt.Errorf("publishing %s event: %w", ev.Kind, err)
	}
	return nil
}
