package probe

import (
	"context"
	"fmt"
	"math"
	"time"
)

// SRTLiveServer probes the JSON stats endpoint of SRT Live Server (SLS).
type SRTLiveServer struct {
	fetch     fetcher
	publisher string
}

// NewSRTLiveServer creates an SLS probe for the given publisher stream id
// (e.g., "publish/live/feed1").
func NewSRTLiveServer(statsURL, publisher string, doer HTTPDoer, timeout time.Duration, logger Logger) *SRTLiveServer {
	return &SRTLiveServer{
		fetch:     newFetcher(statsURL, doer, timeout, logger),
		publisher: publisher,
	}
}

type slsStats struct {
	Publishers map[string]slsPublisher `json:"publishers"`
}

type slsPublisher struct {
	Bitrate       int64   `json:"bitrate"`
	BytesRcvDrop  uint64  `json:"bytesRcvDrop"`
	BytesRcvLoss  uint64  `json:"bytesRcvLoss"`
	MbpsBandwidth float64 `json:"mbpsBandwidth"`
	MbpsRecvRate  float64 `json:"mbpsRecvRate"`
	MsRcvBuf      int32   `json:"msRcvBuf"`
	PktRcvDrop    int32   `json:"pktRcvDrop"`
	PktRcvLoss    int32   `json:"pktRcvLoss"`
	RTT           float64 `json:"rtt"`
	Uptime        int64   `json:"uptime"`
}

func (s *SRTLiveServer) publisherStats(ctx context.Context) (*slsPublisher, error) {
	var stats slsStats
	if err := s.fetch.getJSON(ctx, &stats); err != nil {
		return nil, err
	}
	p, ok := stats.Publishers[s.publisher]
	if !ok {
		return nil, fmt.Errorf("%w: publisher %s", ErrStreamNotFound, s.publisher)
	}
	return &p, nil
}

func (p *slsPublisher) stats() Stats {
	return Stats{Bitrate: clampBitrate(p.Bitrate), RTT: p.RTT, HasRTT: true}
}

// Classify implements Probe.
func (s *SRTLiveServer) Classify(ctx context.Context, t Triggers) Classification {
	p, err := s.publisherStats(ctx)
	if err != nil {
		return Classify(Stats{}, err, t)
	}
	return Classify(p.stats(), nil, t)
}

// BitrateMessage implements Probe. Format: "<kbps>, <rtt> ms".
func (s *SRTLiveServer) BitrateMessage(ctx context.Context) (string, bool) {
	p, err := s.publisherStats(ctx)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%d, %d ms", p.stats().Bitrate, int64(math.Round(p.RTT))), true
}

// SourceInfo implements Probe.
func (s *SRTLiveServer) SourceInfo(ctx context.Context) (string, bool) {
	p, err := s.publisherStats(ctx)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%d Kbps, %d ms | Estimated bandwidth %d Mbps, Receiving rate %.2f Mbps | %d dropped, %d loss | %d ms buffer",
		p.stats().Bitrate, int64(math.Round(p.RTT)),
		int64(math.Round(p.MbpsBandwidth)), p.MbpsRecvRate,
		p.PktRcvDrop, p.PktRcvLoss,
		p.MsRcvBuf,
	), true
}
