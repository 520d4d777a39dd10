package state

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/uplink-switcher/internal/probe"
)

// ConnectionStatus is the broadcasting software link state.
type ConnectionStatus int

// Connection states.
const (
	Disconnected ConnectionStatus = iota
	Connected
)

// String returns "connected" or "disconnected".
func (s ConnectionStatus) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// MarshalText renders the status by name in JSON snapshots.
func (s ConnectionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names written by MarshalText.
func (s *ConnectionStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "connected":
		*s = Connected
	case "disconnected":
		*s = Disconnected
	default:
		return fmt.Errorf("unknown connection status %q", b)
	}
	return nil
}

// SwitchingScenes names the scene used for each classification.
type SwitchingScenes struct {
	Normal  string `json:"normal"`
	Low     string `json:"low"`
	Offline string `json:"offline"`
}

// ForClassification maps a classification to its scene name.
// Previous has no entry; ok is false for it.
func (s SwitchingScenes) ForClassification(c probe.Classification) (scene string, ok bool) {
	switch c {
	case probe.Normal:
		return s.Normal, true
	case probe.Low:
		return s.Low, true
	case probe.Offline:
		return s.Offline, true
	default:
		return "", false
	}
}

func (s SwitchingScenes) names() [3]string {
	return [3]string{s.Normal, s.Low, s.Offline}
}

// DependsOn links a server to another server's signal.
type DependsOn struct {
	Name         string          `json:"name"`
	BackupScenes SwitchingScenes `json:"backup_scenes"`
}

// ServerEntry is one configured stream server.
type ServerEntry struct {
	Name           string           `json:"name"`
	Priority       int              `json:"priority"`
	Enabled        bool             `json:"enabled"`
	OverrideScenes *SwitchingScenes `json:"override_scenes,omitempty"`
	DependsOn      *DependsOn       `json:"depends_on,omitempty"`
	Probe          probe.Probe      `json:"-"`
}

// OptionalScenes names scenes with special handling.
type OptionalScenes struct {
	Starting string `json:"starting,omitempty"`
	Ending   string `json:"ending,omitempty"`
	Privacy  string `json:"privacy,omitempty"`
	Refresh  string `json:"refresh,omitempty"`
}

// StreamStatus is broadcasting software telemetry.
// Frame counters are cumulative as reported, or deltas after Since.
type StreamStatus struct {
	Bitrate             uint64  `json:"bitrate"`
	FPS                 float64 `json:"fps"`
	NumTotalFrames      uint64  `json:"num_total_frames"`
	NumDroppedFrames    uint64  `json:"num_dropped_frames"`
	RenderTotalFrames   uint64  `json:"render_total_frames"`
	RenderMissedFrames  uint64  `json:"render_missed_frames"`
	OutputTotalFrames   uint64  `json:"output_total_frames"`
	OutputSkippedFrames uint64  `json:"output_skipped_frames"`
}

// Since returns s with its counters expressed relative to base.
// Counters that went backwards (software restart) are reported as-is.
func (s StreamStatus) Since(base StreamStatus) StreamStatus {
	sub := func(cur, old uint64) uint64 {
		if cur < old {
			return cur
		}
		return cur - old
	}
	return StreamStatus{
		Bitrate:             s.Bitrate,
		FPS:                 s.FPS,
		NumTotalFrames:      sub(s.NumTotalFrames, base.NumTotalFrames),
		NumDroppedFrames:    sub(s.NumDroppedFrames, base.NumDroppedFrames),
		RenderTotalFrames:   sub(s.RenderTotalFrames, base.RenderTotalFrames),
		RenderMissedFrames:  sub(s.RenderMissedFrames, base.RenderMissedFrames),
		OutputTotalFrames:   sub(s.OutputTotalFrames, base.OutputTotalFrames),
		OutputSkippedFrames: sub(s.OutputSkippedFrames, base.OutputSkippedFrames),
	}
}

// Software is the broadcasting software contract the switcher drives.
//
// Every method performs network I/O and must be called without holding
// the State lock.
type Software interface {
	// SwitchScene switches to the closest matching scene and returns the name used.
	SwitchScene(ctx context.Context, scene string) (string, error)
	StartStreaming(ctx context.Context) error
	StopStreaming(ctx context.Context) error
	ToggleRecording(ctx context.Context) error
	IsRecording(ctx context.Context) (bool, error)

	// Fix nudges stalled network media sources in the current scene.
	Fix(ctx context.Context) error

	CurrentScene(ctx context.Context) (string, error)

	// Info returns telemetry relative to the baseline captured at stream start.
	Info(ctx context.Context) (StreamStatus, error)
}

// BroadcastingState mirrors the broadcasting software as last observed.
type BroadcastingState struct {
	PrevScene           string           `json:"prev_scene"`
	CurrentScene        string           `json:"current_scene"`
	Status              ConnectionStatus `json:"status"`
	IsStreaming         bool             `json:"is_streaming"`
	LastStreamStartedAt time.Time        `json:"last_stream_started_at"`
	Baseline            *StreamStatus    `json:"-"`
	Current             *StreamStatus    `json:"current_stream_status,omitempty"`
}

// Gate identifies why the switcher must wait instead of probing.
type Gate int

// Gates in evaluation order.
const (
	GateOpen Gate = iota
	GateDisabled
	GateDisconnected
	GateNotStreaming
	GateNotSwitchable
)

// String names the gate for logs.
func (g Gate) String() string {
	switch g {
	case GateOpen:
		return "open"
	case GateDisabled:
		return "switcher disabled"
	case GateDisconnected:
		return "software disconnected"
	case GateNotStreaming:
		return "not streaming"
	case GateNotSwitchable:
		return "scene not switchable"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only copy of a session for status endpoints.
type Snapshot struct {
	User             string            `json:"user"`
	SwitcherEnabled  bool              `json:"switcher_enabled"`
	LastUsedServer   string            `json:"last_used_server,omitempty"`
	SwitchableScenes []string          `json:"switchable_scenes"`
	Triggers         probe.Triggers    `json:"triggers"`
	Scenes           SwitchingScenes   `json:"switching_scenes"`
	Servers          []ServerEntry     `json:"stream_servers"`
	Broadcasting     BroadcastingState `json:"broadcasting"`
	HasSoftware      bool              `json:"has_software"`
}
