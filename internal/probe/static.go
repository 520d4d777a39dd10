package probe

import (
	"context"
	"fmt"
	"sync"
)

// Static is a probe whose readings are set by the caller.
// It backs dry runs and tests of code that consumes probes.
type Static struct {
	mu    sync.Mutex
	stats Stats
	err   error
	calls int
}

// NewStatic returns a Static probe reporting s.
func NewStatic(s Stats) *Static {
	return &Static{stats: s}
}

// Set replaces the reading returned by subsequent calls.
func (p *Static) Set(s Stats, err error) {
	p.mu.Lock()
	p.stats, p.err = s, err
	p.mu.Unlock()
}

// SetBitrate is a shorthand for Set(Stats{Bitrate: kbps}, nil).
func (p *Static) SetBitrate(kbps uint32) {
	p.Set(Stats{Bitrate: kbps}, nil)
}

// SetUnreachable makes subsequent calls fail as if the endpoint were down.
func (p *Static) SetUnreachable() {
	p.Set(Stats{}, ErrUnreachable)
}

// Calls returns how many times Classify has been called.
func (p *Static) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *Static) read() (Stats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats, p.err
}

// Classify implements Probe.
func (p *Static) Classify(_ context.Context, t Triggers) Classification {
	p.mu.Lock()
	p.calls++
	s, err := p.stats, p.err
	p.mu.Unlock()
	return Classify(s, err, t)
}

// BitrateMessage implements Probe. Zero bitrate counts as no signal.
func (p *Static) BitrateMessage(_ context.Context) (string, bool) {
	s, err := p.read()
	if err != nil || s.Bitrate == 0 {
		return "", false
	}
	return fmt.Sprintf("%d", s.Bitrate), true
}

// SourceInfo implements Probe.
func (p *Static) SourceInfo(ctx context.Context) (string, bool) {
	msg, ok := p.BitrateMessage(ctx)
	if !ok {
		return "", false
	}
	return msg + " Kbps", true
}
