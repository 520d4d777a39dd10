package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every topic this service uses.
const TopicPrefix = "uplink"

// Topics builds topic names. The zero value is ready to use.
//
//	mqtt.Topics{}.SessionEvent("alice", "switch")
//	// "uplink/alice/event/switch"
type Topics struct{}

// SystemStatus returns the retained service status topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// SessionState returns the retained snapshot topic for a user.
func (Topics) SessionState(user string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefix, user)
}

// SessionEvent returns the topic for one event type of a user.
func (Topics) SessionEvent(user, eventType string) string {
	return fmt.Sprintf("%s/%s/event/%s", TopicPrefix, user, eventType)
}

// SwitcherCommand returns the switcher toggle topic for a user.
func (Topics) SwitcherCommand(user string) string {
	return fmt.Sprintf("%s/%s/command/switcher", TopicPrefix, user)
}

// AllSwitcherCommands matches the switcher toggle topic of every user.
//
// Pattern: uplink/+/command/switcher
func (Topics) AllSwitcherCommands() string {
	return TopicPrefix + "/+/command/switcher"
}

// AllSessionEvents matches every event of every user.
//
// Pattern: uplink/+/event/+
func (Topics) AllSessionEvents() string {
	return TopicPrefix + "/+/event/+"
}

// UserFromTopic extracts the user segment from a per-user topic.
// It returns false for system topics and foreign prefixes.
func (Topics) UserFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[0] != TopicPrefix || parts[1] == "" || parts[1] == "system" {
		return "", false
	}
	return parts[1], true
}
