package state

// signal is a level-triggered broadcast wake-up.
//
// notify closes the current channel, releasing every waiter, and installs
// a fresh one. Both methods must be called with State.mu held (notify
// under the write lock).
type signal struct {
	ch chan struct{}
}

func newSignal() signal {
	return signal{ch: make(chan struct{})}
}

func (s *signal) wait() <-chan struct{} {
	return s.ch
}

func (s *signal) notify() {
	close(s.ch)
	s.ch = make(chan struct{})
}
