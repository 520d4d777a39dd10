package probe

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Belabox probes the BELABOX cloud stats endpoint.
//
// Its payload shares the SLS "publishers" layout with a smaller stat set.
// A publisher reporting zero bitrate has no signal: BitrateMessage returns
// false, which makes servers depending on it fall back to backup scenes.
type Belabox struct {
	fetch     fetcher
	publisher string
}

// NewBelabox creates a BELABOX cloud probe.
func NewBelabox(statsURL, publisher string, doer HTTPDoer, timeout time.Duration, logger Logger) *Belabox {
	return &Belabox{
		fetch:     newFetcher(statsURL, doer, timeout, logger),
		publisher: publisher,
	}
}

type belaboxStats struct {
	Publishers map[string]belaboxPublisher `json:"publishers"`
}

type belaboxPublisher struct {
	Bitrate     int64   `json:"bitrate"`
	RTT         float64 `json:"rtt"`
	DroppedPkts int32   `json:"dropped_pkts"`
}

func (b *Belabox) publisherStats(ctx context.Context) (*belaboxPublisher, error) {
	var stats belaboxStats
	if err := b.fetch.getJSON(ctx, &stats); err != nil {
		return nil, err
	}
	p, ok := stats.Publishers[b.publisher]
	if !ok {
		return nil, fmt.Errorf("%w: publisher %s", ErrStreamNotFound, b.publisher)
	}
	return &p, nil
}

func (p *belaboxPublisher) stats() Stats {
	return Stats{Bitrate: clampBitrate(p.Bitrate), RTT: p.RTT, HasRTT: true}
}

// Classify implements Probe.
func (b *Belabox) Classify(ctx context.Context, t Triggers) Classification {
	p, err := b.publisherStats(ctx)
	if err != nil {
		return Classify(Stats{}, err, t)
	}
	return Classify(p.stats(), nil, t)
}

// BitrateMessage implements Probe.
func (b *Belabox) BitrateMessage(ctx context.Context) (string, bool) {
	p, err := b.publisherStats(ctx)
	if err != nil || p.stats().Bitrate == 0 {
		return "", false
	}
	return fmt.Sprintf("%d, %d ms", p.stats().Bitrate, int64(math.Round(p.RTT))), true
}

// SourceInfo implements Probe.
func (b *Belabox) SourceInfo(ctx context.Context) (string, bool) {
	p, err := b.publisherStats(ctx)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%d Kbps, %d ms | %d dropped",
		p.stats().Bitrate, int64(math.Round(p.RTT)), p.DroppedPkts), true
}
