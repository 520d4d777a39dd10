package session

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/uplink-switcher/internal/infrastructure/config"
	"github.com/nerrad567/uplink-switcher/internal/state"
)

// Manager holds every configured session.
//
// Thread Safety:
//   - The session set is fixed after NewManager; all methods are safe for
//     concurrent use.
type Manager struct {
	sessions map[string]*Session
	users    []string
}

// NewManager builds a session for every configuration entry.
//
// Returns:
//   - *Manager: Holding one session per user
//   - error: ErrDuplicateUser or the first session build error
func NewManager(cfgs []config.SessionConfig, deps Deps) (*Manager, error) {
	m := &Manager{sessions: make(map[string]*Session, len(cfgs))}
	for _, c := range cfgs {
		if _, dup := m.sessions[c.User]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateUser, c.User)
		}
		s, err := New(c, deps)
		if err != nil {
			return nil, err
		}
		m.sessions[c.User] = s
		m.users = append(m.users, c.User)
	}
	sort.Strings(m.users)
	return m, nil
}

// Get returns the session for user.
func (m *Manager) Get(user string) (*Session, bool) {
	s, ok := m.sessions[user]
	return s, ok
}

// Users returns every session user, sorted.
func (m *Manager) Users() []string {
	return append([]string(nil), m.users...)
}

// Snapshots returns the state of every session, ordered by user.
func (m *Manager) Snapshots() []state.Snapshot {
	out := make([]state.Snapshot, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, m.sessions[u].State().Snapshot())
	}
	return out
}

// Snapshot returns the state of one session.
func (m *Manager) Snapshot(user string) (state.Snapshot, bool) {
	s, ok := m.sessions[user]
	if !ok {
		return state.Snapshot{}, false
	}
	return s.State().Snapshot(), true
}

// Run runs every session until ctx is cancelled or one fails.
func (m *Manager) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, u := range m.users {
		s := m.sessions[u]
		g.Go(func() error { return s.Run(ctx) })
	}
	return g.Wait()
}
