package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/uplink-switcher/internal/backoff"
	"github.com/nerrad567/uplink-switcher/internal/infrastructure/config"
	"github.com/nerrad567/uplink-switcher/internal/state"
)

const (
	defaultDialTimeout    = 10 * time.Second
	defaultRequestTimeout = 10 * time.Second
	defaultInfoWindow     = 2 * time.Second
	defaultAuthRetryDelay = 10 * time.Second

	// Reconnect delays are 2,4,8,16,32,32,... seconds.
	reconnectBase     = time.Second
	reconnectMaxSteps = 5
)

// Config holds the connection settings for one OBS instance.
type Config struct {
	Host     string
	Port     int
	Password string

	// MatchThreshold is the minimum similarity for fuzzy scene matching.
	MatchThreshold float64

	DialTimeout    time.Duration
	RequestTimeout time.Duration

	// InfoWindow is the gap between the two stream status reads Info
	// uses to derive the bitrate.
	InfoWindow time.Duration

	// AuthRetryDelay replaces the backoff after a rejected password.
	AuthRetryDelay time.Duration
}

// ConfigFrom converts the YAML software section into a Config.
func ConfigFrom(sc config.SoftwareConfig) Config {
	return Config{
		Host:           sc.Host,
		Port:           sc.Port,
		Password:       sc.Password,
		MatchThreshold: sc.SceneMatchThreshold,
	}
}

func (c *Config) applyDefaults() {
	if c.MatchThreshold <= 0 {
		c.MatchThreshold = DefaultMatchThreshold
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.InfoWindow <= 0 {
		c.InfoWindow = defaultInfoWindow
	}
	if c.AuthRetryDelay <= 0 {
		c.AuthRetryDelay = defaultAuthRetryDelay
	}
}

// URL returns the websocket address OBS is dialled at.
func (c Config) URL() string {
	return "ws://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Logger is the subset of *slog.Logger the connection uses.
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

// Option customises an OBS connection.
type Option func(*OBS)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(o *OBS) {
		if l != nil {
			o.log = l
		}
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *OBS) {
		if d != nil {
			o.dialer = d
		}
	}
}

// OBS is an obs-websocket v5 client bound to one session's state.
type OBS struct {
	cfg    Config
	st     *state.State
	log    Logger
	dialer *websocket.Dialer
	now    func() time.Time

	mu   sync.RWMutex
	conn *conn
}

// New creates an OBS client. Nothing is dialled until Run is called.
func New(cfg Config, st *state.State, opts ...Option) *OBS {
	cfg.applyDefaults()
	o := &OBS{
		cfg:    cfg,
		st:     st,
		log:    noopLogger{},
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Connected reports whether an identified connection is currently held.
func (o *OBS) Connected() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.conn != nil
}

// ─── Connection task ────────────────────────────────────────────

// Run keeps the connection alive until ctx is cancelled.
//
// Each successful connection syncs the current scene and streaming status
// into the state, attaches this client as the session's software and then
// applies events until the socket drops. Failed attempts back off
// exponentially; a rejected password waits AuthRetryDelay instead and does
// not advance the backoff.
//
// Returns:
//   - error: Always nil; the loop ends only on cancellation
func (o *OBS) Run(ctx context.Context) error {
	b := backoff.New(reconnectBase, 0, reconnectMaxSteps)
	url := o.cfg.URL()

	for {
		c, err := o.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			delay := o.cfg.AuthRetryDelay
			if !errors.Is(err, ErrAuthFailed) {
				delay = b.Next()
			}
			o.log.Warn("obs connection failed", "url", url, "attempt", b.Attempt(), "retry_in", delay, "error", err)
			if backoff.Sleep(ctx, delay) != nil {
				return nil
			}
			continue
		}

		b.Reset()
		o.log.Info("obs connected", "url", url)

		err = o.serve(ctx, c)
		o.detach(c)
		if ctx.Err() != nil {
			return nil
		}
		o.log.Warn("obs connection lost", "url", url, "error", err)
	}
}

// connect dials, identifies and syncs. On success the connection is
// attached and the state marked connected.
func (o *OBS) connect(ctx context.Context) (*conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, o.cfg.DialTimeout)
	defer cancel()

	c, err := dial(dialCtx, o.dialer, o.cfg.URL(), o.cfg.Password, o.log)
	if err != nil {
		return nil, err
	}

	reqCtx, cancelReq := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	defer cancelReq()

	var scene currentProgramScene
	if err := c.request(reqCtx, "GetCurrentProgramScene", nil, &scene); err != nil {
		c.Close()
		return nil, fmt.Errorf("syncing current scene: %w", err)
	}
	var stream outputStatus
	if err := c.request(reqCtx, "GetStreamStatus", nil, &stream); err != nil {
		c.Close()
		return nil, fmt.Errorf("syncing stream status: %w", err)
	}

	o.mu.Lock()
	o.conn = c
	o.mu.Unlock()

	o.st.SetSoftware(o)
	o.st.MarkConnected(scene.CurrentProgramSceneName, stream.OutputActive, o.now())
	return c, nil
}

// serve captures the baseline when already live, then applies events
// in order until the connection ends or ctx is cancelled.
func (o *OBS) serve(ctx context.Context, c *conn) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if o.st.IsStreaming() {
		o.captureBaseline(connCtx)
	}

	for {
		select {
		case <-ctx.Done():
			c.Close()
			return ctx.Err()
		case ev, ok := <-c.events:
			if !ok {
				return c.Err()
			}
			o.handleEvent(connCtx, ev)
		case <-c.resync:
			o.resync(connCtx)
		}
	}
}

// resync re-reads the program scene and stream status after events were
// dropped, applying whatever changed.
func (o *OBS) resync(ctx context.Context) {
	var scene currentProgramScene
	if err := o.request(ctx, "GetCurrentProgramScene", nil, &scene); err != nil {
		o.log.Warn("resync: reading current scene failed", "error", err)
		return
	}
	var stream outputStatus
	if err := o.request(ctx, "GetStreamStatus", nil, &stream); err != nil {
		o.log.Warn("resync: reading stream status failed", "error", err)
		return
	}

	if scene.CurrentProgramSceneName != o.st.CurrentScene() {
		o.st.SetCurrentScene(scene.CurrentProgramSceneName)
	}
	switch streaming := o.st.IsStreaming(); {
	case stream.OutputActive && !streaming:
		o.st.StreamStarted(o.now())
		o.captureBaseline(ctx)
	case !stream.OutputActive && streaming:
		o.st.StreamStopped()
	}
	o.log.Info("state resynced after dropped events",
		"scene", scene.CurrentProgramSceneName, "streaming", stream.OutputActive)
}

func (o *OBS) detach(c *conn) {
	o.mu.Lock()
	if o.conn == c {
		o.conn = nil
	}
	o.mu.Unlock()

	o.st.SetSoftware(nil)
	o.st.MarkDisconnected()
}

func (o *OBS) handleEvent(ctx context.Context, ev event) {
	switch ev.EventType {
	case eventCurrentProgramSceneChanged:
		var d struct {
			SceneName string `json:"sceneName"`
		}
		if err := json.Unmarshal(ev.EventData, &d); err != nil {
			o.log.Debug("ignoring malformed scene event", "error", err)
			return
		}
		o.st.SetCurrentScene(d.SceneName)

	case eventStreamStateChanged:
		var d struct {
			OutputActive bool   `json:"outputActive"`
			OutputState  string `json:"outputState"`
		}
		if err := json.Unmarshal(ev.EventData, &d); err != nil {
			o.log.Debug("ignoring malformed stream event", "error", err)
			return
		}
		// Starting and stopping are transitional; wait for the settled state.
		if d.OutputState != "" && d.OutputState != outputStarted && d.OutputState != outputStopped {
			return
		}
		if d.OutputActive {
			o.st.StreamStarted(o.now())
			o.log.Info("stream started")
			o.captureBaseline(ctx)
		} else {
			o.st.StreamStopped()
			o.log.Info("stream stopped")
		}
	}
}

// captureBaseline stores the counters at stream start so later Info calls
// report per-stream totals.
func (o *OBS) captureBaseline(ctx context.Context) {
	ss, err := o.sample(ctx)
	if err != nil {
		o.log.Warn("capturing stream baseline failed", "error", err)
		return
	}
	o.st.SetBaseline(ss)
}

// ─── Software ───────────────────────────────────────────────────

func (o *OBS) current() (*conn, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.conn == nil {
		return nil, ErrNotConnected
	}
	return o.conn, nil
}

func (o *OBS) request(ctx context.Context, requestType string, data, out any) error {
	c, err := o.current()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	defer cancel()
	return c.request(ctx, requestType, data, out)
}

// Scenes returns the scene names OBS currently knows.
func (o *OBS) Scenes(ctx context.Context) ([]string, error) {
	var list sceneList
	if err := o.request(ctx, "GetSceneList", nil, &list); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list.Scenes))
	for _, s := range list.Scenes {
		names = append(names, s.SceneName)
	}
	return names, nil
}

// SwitchScene sets the program scene to the closest match for scene.
// When the scene list cannot be read the name is used as given.
func (o *OBS) SwitchScene(ctx context.Context, scene string) (string, error) {
	target := scene
	if names, err := o.Scenes(ctx); err != nil {
		o.log.Debug("scene list unavailable, using literal name", "scene", scene, "error", err)
	} else {
		target, _ = MatchScene(scene, names, o.cfg.MatchThreshold)
	}

	data := map[string]string{"sceneName": target}
	if err := o.request(ctx, "SetCurrentProgramScene", data, nil); err != nil {
		return "", err
	}
	return target, nil
}

// StartStreaming implements state.Software.
func (o *OBS) StartStreaming(ctx context.Context) error {
	return o.request(ctx, "StartStream", nil, nil)
}

// StopStreaming implements state.Software.
func (o *OBS) StopStreaming(ctx context.Context) error {
	return o.request(ctx, "StopStream", nil, nil)
}

// ToggleRecording implements state.Software.
func (o *OBS) ToggleRecording(ctx context.Context) error {
	return o.request(ctx, "ToggleRecord", nil, nil)
}

// IsRecording implements state.Software.
func (o *OBS) IsRecording(ctx context.Context) (bool, error) {
	var st outputStatus
	if err := o.request(ctx, "GetRecordStatus", nil, &st); err != nil {
		return false, err
	}
	return st.OutputActive, nil
}

// CurrentScene implements state.Software.
func (o *OBS) CurrentScene(ctx context.Context) (string, error) {
	var cur currentProgramScene
	if err := o.request(ctx, "GetCurrentProgramScene", nil, &cur); err != nil {
		return "", err
	}
	return cur.CurrentProgramSceneName, nil
}

// Info samples telemetry and subtracts the stream-start baseline when one
// was captured. It blocks for InfoWindow.
func (o *OBS) Info(ctx context.Context) (state.StreamStatus, error) {
	ss, err := o.sample(ctx)
	if err != nil {
		return state.StreamStatus{}, err
	}
	if base, ok := o.st.Baseline(); ok {
		ss = ss.Since(base)
	}
	return ss, nil
}

// sample reads the raw counters. The bitrate comes from two stream status
// reads InfoWindow apart.
func (o *OBS) sample(ctx context.Context) (state.StreamStatus, error) {
	var s stats
	if err := o.request(ctx, "GetStats", nil, &s); err != nil {
		return state.StreamStatus{}, err
	}

	var first, second outputStatus
	if err := o.request(ctx, "GetStreamStatus", nil, &first); err != nil {
		return state.StreamStatus{}, err
	}
	if err := backoff.Sleep(ctx, o.cfg.InfoWindow); err != nil {
		return state.StreamStatus{}, err
	}
	if err := o.request(ctx, "GetStreamStatus", nil, &second); err != nil {
		return state.StreamStatus{}, err
	}

	return state.StreamStatus{
		Bitrate:             bitrateKbps(first, second),
		FPS:                 s.ActiveFPS,
		NumTotalFrames:      second.OutputTotalFrames,
		NumDroppedFrames:    second.OutputSkippedFrames,
		RenderTotalFrames:   s.RenderTotalFrames,
		RenderMissedFrames:  s.RenderSkippedFrames,
		OutputTotalFrames:   s.OutputTotalFrames,
		OutputSkippedFrames: s.OutputSkippedFrames,
	}, nil
}

// bitrateKbps derives kilobits per second from two cumulative readings.
func bitrateKbps(first, second outputStatus) uint64 {
	if second.OutputBytes < first.OutputBytes || second.OutputDuration <= first.OutputDuration {
		return 0
	}
	bits := float64(second.OutputBytes-first.OutputBytes) * 8
	seconds := float64(second.OutputDuration-first.OutputDuration) / 1000
	return uint64(bits / seconds / 1000)
}

var _ state.Software = (*OBS)(nil)
