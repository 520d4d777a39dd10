package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Classification is the per-tick verdict for one stream server.
type Classification int

// Classification values.
const (
	Normal Classification = iota
	Low
	Offline
	Previous
)

// String returns the lowercase name used in logs, events and metrics.
func (c Classification) String() string {
	switch c {
	case Normal:
		return "normal"
	case Low:
		return "low"
	case Offline:
		return "offline"
	case Previous:
		return "previous"
	default:
		return fmt.Sprintf("classification(%d)", int(c))
	}
}

// MarshalText lets classifications appear by name in JSON snapshots.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Triggers holds the optional thresholds. Bitrates are Kbps, RTT is ms.
// A nil field disables that check.
type Triggers struct {
	Low        *uint32 `json:"low,omitempty"`
	RTT        *uint32 `json:"rtt,omitempty"`
	Offline    *uint32 `json:"offline,omitempty"`
	RTTOffline *uint32 `json:"rtt_offline,omitempty"`
}

// Stats is the reduced telemetry every backend produces.
type Stats struct {
	// Bitrate is the incoming video bitrate in Kbps.
	Bitrate uint32

	// RTT is the round trip time in milliseconds. Only meaningful when HasRTT is set.
	RTT    float64
	HasRTT bool
}

// Probe is a pluggable telemetry source for one ingest endpoint.
//
// Thread Safety:
//   - Implementations must be safe for concurrent use.
type Probe interface {
	// Classify fetches fresh stats and classifies them. Failures classify as Offline.
	Classify(ctx context.Context, t Triggers) Classification

	// BitrateMessage returns a short bitrate summary, or false when there is no signal.
	BitrateMessage(ctx context.Context) (string, bool)

	// SourceInfo returns a longer diagnostic line, or false when unavailable.
	SourceInfo(ctx context.Context) (string, bool)
}

// HTTPDoer is satisfied by *http.Client and by test fakes.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Logger is the logging surface probes need.
// It is satisfied by *logging.Logger and *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Classify applies the shared classification policy to a fetch result.
//
// Parameters:
//   - s: Stats from the backend (ignored when err is non-nil)
//   - err: Fetch or parse error; any error yields Offline
//   - t: Thresholds to apply
//
// Returns:
//   - Classification: The verdict for this reading
func Classify(s Stats, err error, t Triggers) Classification {
	if err != nil {
		return Offline
	}

	if t.Offline != nil && s.Bitrate > 0 && s.Bitrate <= *t.Offline {
		return Offline
	}

	if t.RTTOffline != nil && s.HasRTT && s.RTT >= float64(*t.RTTOffline) {
		return Offline
	}

	if s.Bitrate == 0 {
		return Previous
	}

	if t.Low != nil && s.Bitrate <= *t.Low {
		return Low
	}

	if t.RTT != nil && s.HasRTT && s.RTT >= float64(*t.RTT) {
		return Low
	}

	return Normal
}

// defaultRequestTimeout bounds a single stats request when none is configured.
const defaultRequestTimeout = 5 * time.Second

// maxStatsBody limits how much of a stats page is read.
const maxStatsBody = 4 << 20

// fetcher performs the HTTP GET shared by all backends.
type fetcher struct {
	url     string
	doer    HTTPDoer
	timeout time.Duration
	logger  Logger
}

func newFetcher(url string, doer HTTPDoer, timeout time.Duration, logger Logger) fetcher {
	if doer == nil {
		doer = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return fetcher{url: url, doer: doer, timeout: timeout, logger: logger}
}

// get returns the body of a 200 response. Any other status is ErrBadStatus
// wrapped with the code so callers can special-case it.
func (f fetcher) get(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	resp, err := f.doer.Do(req)
	if err != nil {
		f.logger.Warn("stats page unreachable", "url", f.url, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("stats page returned error status", "url", f.url, "status", resp.StatusCode)
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatsBody))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrUnreachable, err)
	}
	return body, nil
}

// getJSON fetches and decodes a JSON stats document.
func (f fetcher) getJSON(ctx context.Context, out any) error {
	body, err := f.get(ctx)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		f.logger.Warn("cannot parse stats", "url", f.url, "error", err)
		return fmt.Errorf("%w: %w", ErrParse, err)
	}
	return nil
}

// StatusError carries the HTTP status of a failed stats request.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d", ErrBadStatus, e.Code)
}

// Unwrap lets errors.Is match ErrBadStatus.
func (e *StatusError) Unwrap() error {
	return ErrBadStatus
}

// clampBitrate converts a signed reading to Kbps, treating negatives as zero.
func clampBitrate(v int64) uint32 {
	switch {
	case v <= 0:
		return 0
	case v > int64(^uint32(0)):
		return ^uint32(0)
	default:
		return uint32(v)
	}
}
