package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/uplink-switcher/internal/infrastructure/mqtt"
	"github.com/nerrad567/uplink-switcher/internal/state"
)

const defaultReportInterval = 30 * time.Second

// StatePublisher is the interface for publishing session snapshots.
// This is typically implemented by the MQTT client.
type StatePublisher interface {
	PublishJSON(topic string, v any, retained bool) error
	IsConnected() bool
}

// BroadcastRecorder stores broadcast telemetry samples.
type BroadcastRecorder interface {
	RecordBroadcast(user string, st state.StreamStatus)
}

// Logger is the subset of *slog.Logger the reporter uses.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// ReporterConfig holds configuration for the state reporter.
type ReporterConfig struct {
	// Interval is how often to refresh and publish.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher receives the retained snapshot. Nil skips publishing.
	Publisher StatePublisher

	// Telemetry receives broadcast stats. Nil skips recording.
	Telemetry BroadcastRecorder

	Logger Logger
}

// Reporter periodically refreshes the session's broadcast telemetry and
// publishes a retained snapshot to uplink/{user}/state.
type Reporter struct {
	st        *state.State
	interval  time.Duration
	topic     string
	publisher StatePublisher
	telemetry BroadcastRecorder
	log       Logger

	// Serialises refreshes so a slow Info call is not overlapped.
	mu sync.Mutex
}

// NewReporter creates a reporter for st. Call Run to begin reporting.
func NewReporter(st *state.State, cfg ReporterConfig) *Reporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultReportInterval
	}
	var log Logger = noopLogger{}
	if cfg.Logger != nil {
		log = cfg.Logger
	}
	return &Reporter{
		st:        st,
		interval:  interval,
		topic:     mqtt.Topics{}.SessionState(st.User()),
		publisher: cfg.Publisher,
		telemetry: cfg.Telemetry,
		log:       log,
	}
}

// Run publishes immediately and then every interval until ctx is cancelled.
// It always returns nil.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if err := r.PublishNow(ctx); err != nil {
		r.log.Warn("failed to publish initial state", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.PublishNow(ctx); err != nil {
				r.log.Warn("failed to publish state", "error", err)
			}
		}
	}
}

// PublishNow refreshes telemetry while live and publishes the snapshot.
func (r *Reporter) PublishNow(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refresh(ctx)

	if r.publisher == nil || !r.publisher.IsConnected() {
		return nil
	}
	if err := r.publisher.PublishJSON(r.topic, r.st.Snapshot(), true); err != nil {
		return fmt.Errorf("publishing %s: %w", r.topic, err)
	}
	return nil
}

func (r *Reporter) refresh(ctx context.Context) {
	sw := r.st.Software()
	if sw == nil || !r.st.IsStreaming() {
		return
	}

	ss, err := sw.Info(ctx)
	if err != nil {
		r.log.Debug("broadcast info unavailable", "error", err)
		return
	}
	r.st.SetStreamStatus(ss)
	if r.telemetry != nil {
		r.telemetry.RecordBroadcast(r.st.User(), ss)
	}
}
