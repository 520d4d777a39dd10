package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/uplink-switcher/internal/broadcast"
	"github.com/nerrad567/uplink-switcher/internal/events"
	"github.com/nerrad567/uplink-switcher/internal/infrastructure/config"
	"github.com/nerrad567/uplink-switcher/internal/infrastructure/logging"
	"github.com/nerrad567/uplink-switcher/internal/probe"
	"github.com/nerrad567/uplink-switcher/internal/state"
	"github.com/nerrad567/uplink-switcher/internal/switcher"
)

// Telemetry receives switcher and broadcast samples.
// It is implemented by the InfluxDB client.
type Telemetry interface {
	switcher.Recorder
	RecordBroadcast(user string, st state.StreamStatus)
}

// Deps are the shared services every session is wired to. Nil fields
// disable the matching feature.
type Deps struct {
	// Sink receives switch and offline-timeout events.
	Sink events.Sink

	// Telemetry records classifications, switches and broadcast stats.
	Telemetry Telemetry

	// Publisher receives the retained state snapshot.
	Publisher StatePublisher

	// StatusInterval is how often broadcast telemetry is refreshed and the
	// snapshot published. Zero uses the reporter default.
	StatusInterval time.Duration

	// HTTP is shared by every stream server probe.
	HTTP probe.HTTPDoer

	Logger *logging.Logger
}

func (d Deps) logger() *logging.Logger {
	if d.Logger == nil {
		return logging.Discard()
	}
	return d.Logger
}

// Session is one user's running switcher.
type Session struct {
	user     string
	state    *state.State
	obs      *broadcast.OBS
	switcher *switcher.Switcher
	reporter *Reporter
	log      *logging.Logger

	// control receives user commands. It is the OBS connection outside tests.
	control    Controller
	refreshFor time.Duration
	refreshing atomic.Bool
}

// New builds a session from its configuration section.
//
// Parameters:
//   - cfg: Validated session configuration
//   - deps: Shared services
//
// Returns:
//   - *Session: Ready to Run
//   - error: If a stream server type is unknown or the switcher settings are invalid
func New(cfg config.SessionConfig, deps Deps) (*Session, error) {
	log := deps.logger().With("user", cfg.User)

	servers, err := buildServers(cfg.Switcher.StreamServers, deps.HTTP, log.With("component", "probe"))
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", cfg.User, err)
	}

	st := state.New(state.Options{
		User:            cfg.User,
		SwitcherEnabled: cfg.Switcher.Enabled,
		Triggers:        triggersFrom(cfg.Switcher.Triggers),
		Scenes:          scenesFrom(cfg.Switcher.SwitchingScenes),
		Servers:         servers,
		OptionalScenes: state.OptionalScenes{
			Starting: cfg.OptionalScenes.Starting,
			Ending:   cfg.OptionalScenes.Ending,
			Privacy:  cfg.OptionalScenes.Privacy,
			Refresh:  cfg.OptionalScenes.Refresh,
		},
	})

	obs := broadcast.New(broadcast.ConfigFrom(cfg.Software), st,
		broadcast.WithLogger(log.With("component", "obs")))

	var rec switcher.Recorder
	if deps.Telemetry != nil {
		rec = deps.Telemetry
	}
	sw, err := switcher.New(switcherConfigFrom(cfg), st,
		switcher.WithSink(deps.Sink),
		switcher.WithRecorder(rec),
		switcher.WithLogger(log.With("component", "switcher")),
	)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", cfg.User, err)
	}

	return &Session{
		user:     cfg.User,
		state:    st,
		obs:      obs,
		switcher: sw,
		reporter: NewReporter(st, ReporterConfig{
			Interval:  deps.StatusInterval,
			Publisher: deps.Publisher,
			Telemetry: deps.Telemetry,
			Logger:    log.With("component", "reporter"),
		}),
		log:        log,
		control:    obs,
		refreshFor: defaultRefreshDuration,
	}, nil
}

// User returns the session's user name.
func (s *Session) User() string { return s.user }

// State returns the shared session state.
func (s *Session) State() *state.State { return s.state }

// OBS returns the broadcasting software connection.
func (s *Session) OBS() *broadcast.OBS { return s.obs }

// Run drives the OBS connection, the switcher and the reporter until ctx
// is cancelled or one of them fails.
func (s *Session) Run(ctx context.Context) error {
	s.log.Info("session starting", "servers", len(s.state.Servers()))
	defer s.log.Info("session stopped")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.obs.Run(ctx) })
	g.Go(func() error { return s.switcher.Run(ctx) })
	g.Go(func() error { return s.reporter.Run(ctx) })
	return g.Wait()
}

// ─── Config conversion ──────────────────────────────────────────

func buildServers(cfgs []config.StreamServerConfig, doer probe.HTTPDoer, log probe.Logger) ([]state.ServerEntry, error) {
	servers := make([]state.ServerEntry, 0, len(cfgs))
	for _, c := range cfgs {
		p, err := probe.New(c.Type, probe.Params{
			StatsURL:    c.StatsURL,
			Application: c.Application,
			Key:         c.Key,
			Publisher:   c.Publisher,
			Timeout:     c.Timeout,
		}, doer, log)
		if err != nil {
			return nil, fmt.Errorf("stream server %s: %w", c.Name, err)
		}

		entry := state.ServerEntry{
			Name:     c.Name,
			Priority: c.Priority,
			Enabled:  c.Enabled,
			Probe:    p,
		}
		if c.OverrideScenes != nil {
			sc := scenesFrom(*c.OverrideScenes)
			entry.OverrideScenes = &sc
		}
		if c.DependsOn != nil {
			entry.DependsOn = &state.DependsOn{
				Name:         c.DependsOn.Name,
				BackupScenes: scenesFrom(c.DependsOn.BackupScenes),
			}
		}
		servers = append(servers, entry)
	}
	return servers, nil
}

func scenesFrom(c config.ScenesConfig) state.SwitchingScenes {
	return state.SwitchingScenes{Normal: c.Normal, Low: c.Low, Offline: c.Offline}
}

func triggersFrom(c config.TriggersConfig) probe.Triggers {
	return probe.Triggers{Low: c.Low, RTT: c.RTT, Offline: c.Offline, RTTOffline: c.RTTOffline}
}

func switcherConfigFrom(c config.SessionConfig) switcher.Config {
	return switcher.Config{
		RequestInterval:          c.Switcher.RequestInterval,
		RetryAttempts:            c.Switcher.RetryAttempts,
		OnlySwitchWhenStreaming:  c.Switcher.OnlySwitchWhenStreaming,
		InstantlySwitchOnRecover: c.Switcher.InstantlySwitchOnRecover,
		AutoSwitchNotification:   c.Switcher.AutoSwitchNotification,
		RecordWhileStreaming:     c.OptionalOptions.RecordWhileStreaming,
		OfflineTimeout:           c.OptionalOptions.OfflineTimeout(),
	}
}
