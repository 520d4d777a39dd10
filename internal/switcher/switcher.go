package switcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/uplink-switcher/internal/backoff"
	"github.com/nerrad567/uplink-switcher/internal/events"
	"github.com/nerrad567/uplink-switcher/internal/probe"
	"github.com/nerrad567/uplink-switcher/internal/state"
)

// Config holds the loop settings of one session.
type Config struct {
	RequestInterval          time.Duration
	RetryAttempts            int
	OnlySwitchWhenStreaming  bool
	InstantlySwitchOnRecover bool
	AutoSwitchNotification   bool

	// OfflineTimeout stops the stream after this long offline while live. Zero disables it.
	OfflineTimeout time.Duration

	// RecordWhileStreaming also stops an active recording on offline timeout.
	RecordWhileStreaming bool
}

// Recorder receives per-tick telemetry. Implementations must not block.
type Recorder interface {
	RecordClassification(user, server string, class probe.Classification)
	RecordSwitch(user, server, scene string, class probe.Classification)
}

// Logger is the subset of *slog.Logger the loop uses.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopRecorder struct{}

func (noopRecorder) RecordClassification(string, string, probe.Classification)  {}
func (noopRecorder) RecordSwitch(string, string, string, probe.Classification) {}

// Option customises a Switcher.
type Option func(*Switcher)

// WithSink sets where switch and offline-timeout events go.
func WithSink(sink events.Sink) Option {
	return func(s *Switcher) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithRecorder sets the telemetry recorder.
func WithRecorder(rec Recorder) Option {
	return func(s *Switcher) {
		if rec != nil {
			s.rec = rec
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(s *Switcher) {
		if l != nil {
			s.log = l
		}
	}
}

// Switcher is the decision loop for one session.
type Switcher struct {
	cfg  Config
	st   *state.State
	sink events.Sink
	rec  Recorder
	log  Logger

	// Carried across ticks.
	prevClass       probe.Classification
	sameCount       int
	sameStreaming   time.Duration
	offlineNotified bool
}

// New creates a Switcher over st.
//
// Returns:
//   - error: ErrInvalidConfig when the interval is not positive or retries are negative
func New(cfg Config, st *state.State, opts ...Option) (*Switcher, error) {
	if cfg.RequestInterval <= 0 {
		return nil, fmt.Errorf("%w: request interval must be positive", ErrInvalidConfig)
	}
	if cfg.RetryAttempts < 0 {
		return nil, fmt.Errorf("%w: retry attempts must not be negative", ErrInvalidConfig)
	}
	s := &Switcher{
		cfg:       cfg,
		st:        st,
		sink:      events.Discard,
		rec:       noopRecorder{},
		log:       noopLogger{},
		prevClass: probe.Offline,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run drives the loop until ctx is cancelled. It returns nil on cancellation.
func (s *Switcher) Run(ctx context.Context) error {
	s.log.Info("switcher started", "interval", s.cfg.RequestInterval, "retry_attempts", s.cfg.RetryAttempts)
	defer s.log.Info("switcher stopped")

	for {
		if err := backoff.Sleep(ctx, s.cfg.RequestInterval); err != nil {
			return nil
		}

		if gate, wake := s.st.Gate(s.cfg.OnlySwitchWhenStreaming); gate != state.GateOpen {
			s.log.Debug("switcher waiting", "gate", gate.String())
			select {
			case <-ctx.Done():
				return nil
			case <-wake:
			}
			continue
		}

		s.Tick(ctx)
	}
}

// outcome is what one probe pass produced.
type outcome struct {
	class  probe.Classification
	winner *state.ServerEntry
	// fresh is false when winner was carried over from the last used server.
	fresh bool
}

// probeServers queries enabled servers in priority order and stops at the
// first answer that is not Offline.
func (s *Switcher) probeServers(ctx context.Context) outcome {
	triggers := s.st.Triggers()
	for _, srv := range s.st.Servers() {
		if !srv.Enabled || srv.Probe == nil {
			continue
		}
		class := srv.Probe.Classify(ctx, triggers)
		s.log.Debug("probed stream server", "server", srv.Name, "classification", class.String())
		if class != probe.Offline {
			return outcome{class: class, winner: &srv, fresh: true}
		}
	}

	// Everything offline: keep resolving through the last used server so
	// dependency backups stay in effect.
	if name, ok := s.st.LastUsedServer(); ok {
		if srv, found := s.st.Server(name); found {
			return outcome{class: probe.Offline, winner: &srv}
		}
	}
	return outcome{class: probe.Offline}
}

// Tick runs one decision pass. Run calls it after the gates are open.
func (s *Switcher) Tick(ctx context.Context) {
	out := s.probeServers(ctx)
	class := out.class

	serverName := ""
	if out.winner != nil && out.fresh {
		serverName = out.winner.Name
	}
	s.rec.RecordClassification(s.st.User(), serverName, class)

	force := false
	if class != s.prevClass {
		if s.prevClass == probe.Offline && s.cfg.InstantlySwitchOnRecover {
			force = true
		}
		if class != probe.Offline {
			s.offlineNotified = false
		}
		s.prevClass = class
		s.sameCount = 0
		s.sameStreaming = 0
	}
	s.sameCount++

	if s.st.IsStreaming() {
		s.sameStreaming += s.cfg.RequestInterval
	} else {
		s.sameStreaming = 0
	}

	lastUsed, hasLast := s.st.LastUsedServer()
	if class == probe.Previous && out.winner != nil && (!hasLast || out.winner.Name != lastUsed) {
		class = probe.Normal
		force = true
	}

	if s.sameCount < s.cfg.RetryAttempts && !force {
		return
	}

	if class == probe.Offline {
		s.checkOfflineTimeout(ctx)
	}

	scenes, viaServer := s.resolveScenes(ctx, out.winner)

	var scene string
	if class == probe.Previous {
		scene = s.st.PrevScene()
	} else {
		var err error
		scene, err = lookupScene(scenes, class)
		if err != nil {
			s.log.Error("scene lookup failed", "classification", class.String(), "error", err)
			return
		}
	}

	if class == probe.Normal || class == probe.Low {
		s.st.SetPrevScene(scene)
	}
	if viaServer != "" {
		s.st.SetLastUsedServer(viaServer, true)
	} else {
		s.st.SetLastUsedServer("", false)
	}

	s.switchIfNecessary(ctx, scene, class, out.winner)
}

// resolveScenes picks the scene set for winner. The returned name is the
// server the set came through, or "" when the defaults apply with no winner.
func (s *Switcher) resolveScenes(ctx context.Context, winner *state.ServerEntry) (state.SwitchingScenes, string) {
	if winner == nil {
		return s.st.Scenes(), ""
	}

	if dep := winner.DependsOn; dep != nil && !s.dependencyOnline(ctx, dep.Name) {
		return dep.BackupScenes, winner.Name
	}
	if winner.OverrideScenes != nil {
		return *winner.OverrideScenes, winner.Name
	}
	return s.st.Scenes(), winner.Name
}

// dependencyOnline reports whether the named server has a signal.
// An unknown dependency counts as offline.
func (s *Switcher) dependencyOnline(ctx context.Context, name string) bool {
	dep, ok := s.st.Server(name)
	if !ok || dep.Probe == nil {
		return false
	}
	_, online := dep.Probe.BitrateMessage(ctx)
	return online
}

// lookupScene maps a classification onto a scene table.
func lookupScene(scenes state.SwitchingScenes, class probe.Classification) (string, error) {
	scene, ok := scenes.ForClassification(class)
	if !ok {
		return "", ErrPreviousHasNoScene
	}
	return scene, nil
}

// checkOfflineTimeout stops the stream once per offline excursion.
func (s *Switcher) checkOfflineTimeout(ctx context.Context) {
	if s.cfg.OfflineTimeout <= 0 || s.offlineNotified || s.sameStreaming <= s.cfg.OfflineTimeout {
		return
	}
	sw := s.st.Software()
	if sw == nil {
		s.log.Warn("offline timeout reached without software connection", "error", state.ErrNoSoftware)
		return
	}

	if err := sw.StopStreaming(ctx); err != nil {
		s.log.Warn("offline timeout: stop streaming failed", "error", err)
		return
	}
	if s.cfg.RecordWhileStreaming {
		recording, err := sw.IsRecording(ctx)
		if err != nil {
			s.log.Warn("offline timeout: recording status failed", "error", err)
		} else if recording {
			if err := sw.ToggleRecording(ctx); err != nil {
				s.log.Warn("offline timeout: stop recording failed", "error", err)
			}
		}
	}

	s.offlineNotified = true
	s.log.Info("offline timeout reached, stream stopped", "offline_for", s.sameStreaming)
	if err := s.sink.Emit(ctx, events.OfflineTimeout(s.st.User(), s.sameStreaming)); err != nil {
		s.log.Warn("offline timeout event not delivered", "error", err)
	}
}

// switchIfNecessary switches to scene unless already there or the current
// scene was changed to something the switcher does not own.
func (s *Switcher) switchIfNecessary(ctx context.Context, scene string, class probe.Classification, winner *state.ServerEntry) {
	current := s.st.CurrentScene()
	if strings.EqualFold(current, scene) {
		return
	}
	if !s.st.IsSwitchable(current) && !s.promotesFromStarting(current, class) {
		s.log.Debug("current scene not switchable, skipping", "current", current, "target", scene)
		return
	}

	sw := s.st.Software()
	if sw == nil {
		s.log.Warn("cannot switch scene", "scene", scene, "error", state.ErrNoSoftware)
		return
	}

	used, err := sw.SwitchScene(ctx, scene)
	if err != nil {
		s.log.Warn("scene switch failed", "scene", scene, "error", err)
		return
	}

	server := ""
	if winner != nil {
		server = winner.Name
	}
	msg := fmt.Sprintf("Switch to: %s, current stats: %s", used, s.bitrateSummary(ctx, winner))
	s.log.Info(msg, "classification", class.String(), "server", server)
	s.rec.RecordSwitch(s.st.User(), server, used, class)

	ev := events.AutomaticSwitchingScene(s.st.User(), used, class, server, msg)
	ev.Notify = s.cfg.AutoSwitchNotification && s.st.IsStreaming()
	if err := s.sink.Emit(ctx, ev); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("switch event not delivered", "error", err)
	}
}

// promotesFromStarting allows a Normal switch away from the starting scene.
func (s *Switcher) promotesFromStarting(current string, class probe.Classification) bool {
	starting := s.st.OptionalScenes().Starting
	return starting != "" && current == starting && class == probe.Normal
}

func (s *Switcher) bitrateSummary(ctx context.Context, winner *state.ServerEntry) string {
	if winner == nil || winner.Probe == nil {
		return "offline"
	}
	if msg, ok := winner.Probe.BitrateMessage(ctx); ok {
		return msg
	}
	return "offline"
}
