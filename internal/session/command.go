package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/uplink-switcher/internal/infrastructure/mqtt"
)

const (
	// commandQoS is used for the switcher command subscription.
	commandQoS = 1

	// commandTimeout bounds the OBS requests of one command.
	commandTimeout = 10 * time.Second

	// defaultRefreshDuration is how long the refresh scene stays on program.
	defaultRefreshDuration = 5 * time.Second
)

// Command actions. An empty action toggles the switcher or one server.
const (
	ActionFix     = "fix"
	ActionStart   = "start"
	ActionStop    = "stop"
	ActionRecord  = "record"
	ActionSource  = "source"
	ActionSwitch  = "switch"
	ActionPrivacy = "privacy"
	ActionRefresh = "refresh"
)

// Subscriber registers MQTT handlers. Implemented by *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Controller is the part of the OBS connection user commands drive.
// It is implemented by *broadcast.OBS.
type Controller interface {
	SwitchScene(ctx context.Context, scene string) (string, error)
	StartStreaming(ctx context.Context) error
	StopStreaming(ctx context.Context) error
	ToggleRecording(ctx context.Context) error
	Fix(ctx context.Context) error
	ToggleSource(ctx context.Context, name string) (string, bool, error)
}

// command is the payload of uplink/{user}/command/switcher.
type command struct {
	Action  string `json:"action,omitempty"`
	Name    string `json:"name,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
	Server  string `json:"server,omitempty"`
}

// SubscribeCommands routes commands for every user to HandleCommand.
func (m *Manager) SubscribeCommands(sub Subscriber) error {
	return sub.Subscribe(mqtt.Topics{}.AllSwitcherCommands(), commandQoS, m.HandleCommand)
}

// HandleCommand applies one command message.
//
// Parameters:
//   - topic: uplink/{user}/command/switcher
//   - payload: {"enabled": bool} optionally with "server", or
//     {"action": "..."} optionally with "name"
//
// Returns:
//   - error: ErrInvalidCommand, ErrUnknownSession, ErrUnknownAction,
//     ErrSceneNotConfigured, state.ErrUnknownServer or the OBS error
func (m *Manager) HandleCommand(topic string, payload []byte) error {
	user, ok := mqtt.Topics{}.UserFromTopic(topic)
	if !ok {
		return fmt.Errorf("%w: topic %q", ErrInvalidCommand, topic)
	}
	s, ok := m.sessions[user]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSession, user)
	}

	var cmd command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return s.apply(ctx, cmd)
}

// apply runs one decoded command against the session.
func (s *Session) apply(ctx context.Context, cmd command) error {
	if cmd.Action == "" {
		return s.toggle(cmd)
	}

	var err error
	switch cmd.Action {
	case ActionFix:
		err = s.control.Fix(ctx)
	case ActionStart:
		err = s.control.StartStreaming(ctx)
	case ActionStop:
		err = s.stop(ctx)
	case ActionRecord:
		err = s.control.ToggleRecording(ctx)
	case ActionSource:
		err = s.toggleSource(ctx, cmd.Name)
	case ActionSwitch:
		err = s.switchTo(ctx, cmd.Name)
	case ActionPrivacy:
		err = s.switchOptional(ctx, "privacy", s.state.OptionalScenes().Privacy)
	case ActionRefresh:
		err = s.refresh(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Action, err)
	}
	s.log.Info("command applied", "action", cmd.Action, "name", cmd.Name)
	return nil
}

func (s *Session) toggle(cmd command) error {
	if cmd.Enabled == nil {
		return fmt.Errorf("%w: enabled is required", ErrInvalidCommand)
	}
	if cmd.Server != "" {
		if err := s.state.SetServerEnabled(cmd.Server, *cmd.Enabled); err != nil {
			return err
		}
		s.log.Info("stream server toggled", "server", cmd.Server, "enabled", *cmd.Enabled)
		return nil
	}
	s.state.SetSwitcherEnabled(*cmd.Enabled)
	s.log.Info("switcher toggled", "enabled", *cmd.Enabled)
	return nil
}

// stop moves to the ending scene when one is configured, then stops the stream.
func (s *Session) stop(ctx context.Context) error {
	if ending := s.state.OptionalScenes().Ending; ending != "" {
		if _, err := s.control.SwitchScene(ctx, ending); err != nil {
			s.log.Warn("ending scene switch failed", "scene", ending, "error", err)
		}
	}
	return s.control.StopStreaming(ctx)
}

func (s *Session) toggleSource(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCommand)
	}
	source, visible, err := s.control.ToggleSource(ctx, name)
	if err != nil {
		return err
	}
	s.log.Info("source toggled", "source", source, "visible", visible)
	return nil
}

func (s *Session) switchTo(ctx context.Context, scene string) error {
	if scene == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCommand)
	}
	_, err := s.control.SwitchScene(ctx, scene)
	return err
}

func (s *Session) switchOptional(ctx context.Context, kind, scene string) error {
	if scene == "" {
		return fmt.Errorf("%w: %s", ErrSceneNotConfigured, kind)
	}
	_, err := s.control.SwitchScene(ctx, scene)
	return err
}

// refresh shows the refresh scene, then returns to the scene that was on
// program. A refresh already in progress is left alone.
func (s *Session) refresh(ctx context.Context) error {
	scene := s.state.OptionalScenes().Refresh
	if scene == "" {
		return fmt.Errorf("%w: refresh", ErrSceneNotConfigured)
	}
	if !s.refreshing.CompareAndSwap(false, true) {
		return nil
	}

	back := s.state.CurrentScene()
	if _, err := s.control.SwitchScene(ctx, scene); err != nil {
		s.refreshing.Store(false)
		return err
	}
	if back == "" {
		s.refreshing.Store(false)
		return nil
	}

	time.AfterFunc(s.refreshFor, func() {
		defer s.refreshing.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if _, err := s.control.SwitchScene(ctx, back); err != nil {
			s.log.Warn("refresh: switch back failed", "scene", back, "error", err)
		}
	})
	return nil
}
