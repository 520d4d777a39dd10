package probe

import (
	"fmt"
	"time"
)

// Server type names accepted by New.
const (
	KindNginx    = "nginx"
	KindSLS      = "sls"
	KindBelabox  = "belabox"
	KindMediaMTX = "mediamtx"
)

// Params carries the connection parameters of one stream server entry.
// Fields a backend does not use are ignored.
type Params struct {
	StatsURL    string
	Application string
	Key         string
	Publisher   string
	Timeout     time.Duration
}

// New builds the backend for kind.
//
// Parameters:
//   - kind: One of KindNginx, KindSLS, KindBelabox, KindMediaMTX
//   - p: Connection parameters
//   - doer: HTTP client shared by the session's probes
//   - logger: Optional logger
//
// Returns:
//   - Probe: The backend
//   - error: ErrUnknownKind for an unsupported kind
func New(kind string, p Params, doer HTTPDoer, logger Logger) (Probe, error) {
	switch kind {
	case KindNginx:
		return NewNginxRTMP(p.StatsURL, p.Application, p.Key, doer, p.Timeout, logger), nil
	case KindSLS:
		return NewSRTLiveServer(p.StatsURL, p.Publisher, doer, p.Timeout, logger), nil
	case KindBelabox:
		return NewBelabox(p.StatsURL, p.Publisher, doer, p.Timeout, logger), nil
	case KindMediaMTX:
		return NewMediaMTX(p.StatsURL, doer, p.Timeout, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
