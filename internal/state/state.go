package state

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/uplink-switcher/internal/probe"
)

// Options configures a new State.
type Options struct {
	User            string
	SwitcherEnabled bool
	Triggers        probe.Triggers
	Scenes          SwitchingScenes
	Servers         []ServerEntry
	OptionalScenes  OptionalScenes
}

// State is the shared data container of one session.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type State struct {
	mu sync.RWMutex

	user            string
	switcherEnabled bool
	triggers        probe.Triggers
	scenes          SwitchingScenes
	optional        OptionalScenes
	servers         []ServerEntry
	lastUsedServer  string
	hasLastUsed     bool
	switchable      map[string]struct{}

	bs       BroadcastingState
	software Software

	enabledSig    signal
	connectedSig  signal
	streamingSig  signal
	switchableSig signal
}

// New creates the State for one session. The previous scene starts as
// the normal scene.
// Servers are ordered by ascending priority; ties keep their given order.
func New(opts Options) *State {
	s := &State{
		user:            opts.User,
		switcherEnabled: opts.SwitcherEnabled,
		triggers:        opts.Triggers,
		scenes:          opts.Scenes,
		optional:        opts.OptionalScenes,
		bs:              BroadcastingState{Status: Disconnected, PrevScene: opts.Scenes.Normal},
		enabledSig:      newSignal(),
		connectedSig:    newSignal(),
		streamingSig:    newSignal(),
		switchableSig:   newSignal(),
	}
	s.servers = sortedServers(opts.Servers)
	s.recomputeSwitchableLocked()
	return s
}

func sortedServers(in []ServerEntry) []ServerEntry {
	out := slices.Clone(in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// recomputeSwitchableLocked rebuilds the switchable set. Caller holds mu.
func (s *State) recomputeSwitchableLocked() {
	set := make(map[string]struct{})
	add := func(sc SwitchingScenes) {
		for _, name := range sc.names() {
			if name != "" {
				set[name] = struct{}{}
			}
		}
	}

	add(s.scenes)
	for _, srv := range s.servers {
		if srv.OverrideScenes != nil {
			add(*srv.OverrideScenes)
		}
		if srv.DependsOn != nil {
			add(srv.DependsOn.BackupScenes)
		}
	}
	s.switchable = set
}

// User returns the session owner.
func (s *State) User() string {
	return s.user
}

// ─── Switcher state ─────────────────────────────────────────────

// SwitcherEnabled reports whether automatic switching is on.
func (s *State) SwitcherEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.switcherEnabled
}

// SetSwitcherEnabled turns automatic switching on or off.
// Enabling wakes a switcher parked on the disabled gate.
func (s *State) SetSwitcherEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.switcherEnabled = enabled
	if enabled {
		s.enabledSig.notify()
	}
}

// Triggers returns the current thresholds.
func (s *State) Triggers() probe.Triggers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.triggers
}

// SetTriggers replaces the thresholds used from the next tick.
func (s *State) SetTriggers(t probe.Triggers) {
	s.mu.Lock()
	s.triggers = t
	s.mu.Unlock()
}

// Scenes returns the default switching scenes.
func (s *State) Scenes() SwitchingScenes {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scenes
}

// OptionalScenes returns the optional scene names.
func (s *State) OptionalScenes() OptionalScenes {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.optional
}

// Servers returns a copy of the server list in priority order.
func (s *State) Servers() []ServerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.servers)
}

// Server looks up a server by name.
func (s *State) Server(name string) (ServerEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, srv := range s.servers {
		if srv.Name == name {
			return srv, true
		}
	}
	return ServerEntry{}, false
}

// SetServers replaces the server list and recomputes the switchable set.
func (s *State) SetServers(servers []ServerEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers = sortedServers(servers)
	s.recomputeSwitchableLocked()
	if s.isSwitchableLocked(s.bs.CurrentScene) {
		s.switchableSig.notify()
	}
}

// SetServerEnabled enables or disables one server by name.
//
// Returns:
//   - error: ErrUnknownServer if no server has that name
func (s *State) SetServerEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.servers {
		if s.servers[i].Name == name {
			s.servers[i].Enabled = enabled
			return nil
		}
	}
	return ErrUnknownServer
}

// LastUsedServer returns the server that produced the last resolved scene.
func (s *State) LastUsedServer() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUsedServer, s.hasLastUsed
}

// SetLastUsedServer records the winning server; ok=false clears it.
func (s *State) SetLastUsedServer(name string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsedServer, s.hasLastUsed = name, ok
	if !ok {
		s.lastUsedServer = ""
	}
}

// IsSwitchable reports whether scene is one the switcher targets.
func (s *State) IsSwitchable(scene string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSwitchableLocked(scene)
}

func (s *State) isSwitchableLocked(scene string) bool {
	_, ok := s.switchable[scene]
	return ok
}

// SwitchableScenes returns the switchable set, sorted.
func (s *State) SwitchableScenes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.switchableListLocked()
}

func (s *State) switchableListLocked() []string {
	out := make([]string, 0, len(s.switchable))
	for name := range s.switchable {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ─── Broadcasting state ─────────────────────────────────────────

// Broadcasting returns a copy of the broadcasting state.
func (s *State) Broadcasting() BroadcastingState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.broadcastingLocked()
}

func (s *State) broadcastingLocked() BroadcastingState {
	bs := s.bs
	if bs.Baseline != nil {
		b := *bs.Baseline
		bs.Baseline = &b
	}
	if bs.Current != nil {
		c := *bs.Current
		bs.Current = &c
	}
	return bs
}

// CurrentScene returns the last observed program scene.
func (s *State) CurrentScene() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bs.CurrentScene
}

// IsStreaming reports whether the software is live.
func (s *State) IsStreaming() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bs.IsStreaming
}

// PrevScene returns the scene that Previous resolves to.
func (s *State) PrevScene() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bs.PrevScene
}

// SetPrevScene stores the scene that Previous resolves to.
func (s *State) SetPrevScene(scene string) {
	s.mu.Lock()
	s.bs.PrevScene = scene
	s.mu.Unlock()
}

// Software returns the attached connection, or nil.
func (s *State) Software() Software {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.software
}

// SetSoftware attaches the broadcasting software connection.
func (s *State) SetSoftware(sw Software) {
	s.mu.Lock()
	s.software = sw
	s.mu.Unlock()
}

// MarkConnected records a fresh connection and wakes waiting gates:
// connected always, streaming-started when already live, and
// scene-switchable when the current scene is switchable.
func (s *State) MarkConnected(currentScene string, streaming bool, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bs.Status = Connected
	s.bs.CurrentScene = currentScene
	if streaming && !s.bs.IsStreaming {
		s.bs.LastStreamStartedAt = now
	}
	s.bs.IsStreaming = streaming

	s.connectedSig.notify()
	if streaming {
		s.streamingSig.notify()
	}
	if s.isSwitchableOrStartingLocked(currentScene) {
		s.switchableSig.notify()
	}
}

// MarkDisconnected records a lost connection and drops live telemetry.
func (s *State) MarkDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bs.Status = Disconnected
	s.bs.IsStreaming = false
	s.bs.Baseline = nil
	s.bs.Current = nil
}

// SetCurrentScene records a program scene change. It wakes the
// scene-switchable gate when the new scene is eligible.
func (s *State) SetCurrentScene(scene string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bs.CurrentScene = scene
	if s.isSwitchableOrStartingLocked(scene) {
		s.switchableSig.notify()
	}
}

// StreamStarted records the stream going live and wakes the streaming gate.
func (s *State) StreamStarted(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bs.IsStreaming = true
	s.bs.LastStreamStartedAt = now
	s.streamingSig.notify()
}

// StreamStopped records the stream ending and drops live telemetry.
func (s *State) StreamStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bs.IsStreaming = false
	s.bs.Baseline = nil
	s.bs.Current = nil
}

// SetBaseline stores the counters captured when streaming started.
func (s *State) SetBaseline(st StreamStatus) {
	s.mu.Lock()
	s.bs.Baseline = &st
	s.mu.Unlock()
}

// Baseline returns the stored baseline, if any.
func (s *State) Baseline() (StreamStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.bs.Baseline == nil {
		return StreamStatus{}, false
	}
	return *s.bs.Baseline, true
}

// SetStreamStatus stores the latest telemetry. It is ignored while not streaming.
func (s *State) SetStreamStatus(st StreamStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.bs.IsStreaming {
		return
	}
	s.bs.Current = &st
}

// ─── Gates ──────────────────────────────────────────────────────

// isSwitchableOrStartingLocked reports whether the switcher may act on scene.
// The starting scene qualifies so it can be promoted to live.
func (s *State) isSwitchableOrStartingLocked(scene string) bool {
	if s.isSwitchableLocked(scene) {
		return true
	}
	return s.optional.Starting != "" && scene == s.optional.Starting
}

// Gate returns the first condition that should stop the switcher from
// probing, together with the channel that is closed when that condition
// may have cleared. GateOpen comes with a nil channel.
//
// Parameters:
//   - onlyWhenStreaming: Whether the not-streaming gate applies
func (s *State) Gate(onlyWhenStreaming bool) (Gate, <-chan struct{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case !s.switcherEnabled:
		return GateDisabled, s.enabledSig.wait()
	case s.bs.Status == Disconnected:
		return GateDisconnected, s.connectedSig.wait()
	case onlyWhenStreaming && !s.bs.IsStreaming:
		return GateNotStreaming, s.streamingSig.wait()
	case !s.isSwitchableOrStartingLocked(s.bs.CurrentScene):
		return GateNotSwitchable, s.switchableSig.wait()
	default:
		return GateOpen, nil
	}
}

// Snapshot returns a read-only copy of the session for serialisation.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		User:             s.user,
		SwitcherEnabled:  s.switcherEnabled,
		LastUsedServer:   s.lastUsedServer,
		SwitchableScenes: s.switchableListLocked(),
		Triggers:         s.triggers,
		Scenes:           s.scenes,
		Servers:          slices.Clone(s.servers),
		Broadcasting:     s.broadcastingLocked(),
		HasSoftware:      s.software != nil,
	}
}
