package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// minSampleWindow is the shortest interval used to derive a MediaMTX bitrate.
const minSampleWindow = time.Second

// MediaMTX probes a MediaMTX path through its control API
// (e.g., http://localhost:9997/v3/paths/get/live).
//
// The API only exposes a running byte counter, so the bitrate is derived
// from the difference between two readings at least one second apart.
// The first reading only seeds the counter and reports zero.
type MediaMTX struct {
	fetch fetcher
	now   func() time.Time

	mu        sync.Mutex
	seeded    bool
	prevBytes uint64
	prevAt    time.Time
	bitrate   uint32
}

// NewMediaMTX creates a MediaMTX probe.
func NewMediaMTX(statsURL string, doer HTTPDoer, timeout time.Duration, logger Logger) *MediaMTX {
	return &MediaMTX{
		fetch: newFetcher(statsURL, doer, timeout, logger),
		now:   time.Now,
	}
}

type mediamtxPath struct {
	Name          string `json:"name"`
	BytesReceived uint64 `json:"bytesReceived"`
}

// sample fetches the byte counter and returns the current derived bitrate.
func (m *MediaMTX) sample(ctx context.Context) (uint32, error) {
	var path mediamtxPath
	if err := m.fetch.getJSON(ctx, &path); err != nil {
		// MediaMTX answers 500 for a path with no publisher.
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusInternalServerError {
			return 0, fmt.Errorf("%w: no publisher", ErrStreamNotFound)
		}
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !m.seeded || path.BytesReceived < m.prevBytes {
		m.seeded = true
		m.prevBytes = path.BytesReceived
		m.prevAt = now
		m.bitrate = 0
		return 0, nil
	}

	elapsed := now.Sub(m.prevAt)
	if elapsed >= minSampleWindow {
		diffBits := float64(path.BytesReceived-m.prevBytes) * 8
		m.bitrate = uint32(diffBits / elapsed.Seconds() / 1024)
		m.prevBytes = path.BytesReceived
		m.prevAt = now
	}
	return m.bitrate, nil
}

// Classify implements Probe.
func (m *MediaMTX) Classify(ctx context.Context, t Triggers) Classification {
	bitrate, err := m.sample(ctx)
	return Classify(Stats{Bitrate: bitrate}, err, t)
}

// BitrateMessage implements Probe.
func (m *MediaMTX) BitrateMessage(ctx context.Context) (string, bool) {
	bitrate, err := m.sample(ctx)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%d", bitrate), true
}

// SourceInfo implements Probe.
func (m *MediaMTX) SourceInfo(ctx context.Context) (string, bool) {
	bitrate, err := m.sample(ctx)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%d Kbps", bitrate), true
}
