package probe

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"
)

// NginxRTMP probes the XML statistics page of nginx-rtmp-module.
//
// The stream is located by application name and stream key; bitrate is
// bw_video converted from bits to Kbps.
type NginxRTMP struct {
	fetch       fetcher
	application string
	key         string
}

// NewNginxRTMP creates an nginx-rtmp probe.
//
// Parameters:
//   - statsURL: URL of the stat page (e.g., "http://localhost/stat")
//   - application: RTMP application name (e.g., "publish")
//   - key: Stream key within the application
//   - doer: HTTP client; nil uses http.DefaultClient
//   - timeout: Per-request timeout; zero uses the default
//   - logger: Optional logger; nil disables logging
func NewNginxRTMP(statsURL, application, key string, doer HTTPDoer, timeout time.Duration, logger Logger) *NginxRTMP {
	return &NginxRTMP{
		fetch:       newFetcher(statsURL, doer, timeout, logger),
		application: application,
		key:         key,
	}
}

type nginxStats struct {
	XMLName xml.Name      `xml:"rtmp"`
	Servers []nginxServer `xml:"server"`
}

type nginxServer struct {
	Applications []nginxApplication `xml:"application"`
}

type nginxApplication struct {
	Name    string        `xml:"name"`
	Streams []nginxStream `xml:"live>stream"`
}

type nginxStream struct {
	Name    string     `xml:"name"`
	BWVideo uint64     `xml:"bw_video"`
	Meta    *nginxMeta `xml:"meta"`
}

type nginxMeta struct {
	Video struct {
		Width     uint32  `xml:"width"`
		Height    uint32  `xml:"height"`
		FrameRate float64 `xml:"frame_rate"`
		Codec     string  `xml:"codec"`
		Profile   string  `xml:"profile"`
		Level     float64 `xml:"level"`
	} `xml:"video"`
	Audio struct {
		Codec      string `xml:"codec"`
		Profile    string `xml:"profile"`
		Channels   uint32 `xml:"channels"`
		SampleRate uint32 `xml:"sample_rate"`
	} `xml:"audio"`
}

// stream fetches the stat page and returns the configured stream.
func (n *NginxRTMP) stream(ctx context.Context) (*nginxStream, error) {
	body, err := n.fetch.get(ctx)
	if err != nil {
		return nil, err
	}

	var stats nginxStats
	if err := xml.Unmarshal(body, &stats); err != nil {
		n.fetch.logger.Warn("cannot parse nginx stats", "url", n.fetch.url, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	for _, srv := range stats.Servers {
		for _, app := range srv.Applications {
			if app.Name != n.application {
				continue
			}
			for i := range app.Streams {
				if app.Streams[i].Name == n.key {
					return &app.Streams[i], nil
				}
			}
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrStreamNotFound, n.application, n.key)
}

func (s *nginxStream) stats() Stats {
	return Stats{Bitrate: clampBitrate(int64(s.BWVideo / 1024))}
}

// Classify implements Probe.
func (n *NginxRTMP) Classify(ctx context.Context, t Triggers) Classification {
	s, err := n.stream(ctx)
	if err != nil {
		return Classify(Stats{}, err, t)
	}
	return Classify(s.stats(), nil, t)
}

// BitrateMessage implements Probe.
func (n *NginxRTMP) BitrateMessage(ctx context.Context) (string, bool) {
	s, err := n.stream(ctx)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%d", s.stats().Bitrate), true
}

// SourceInfo implements Probe. It needs the stream's metadata block.
func (n *NginxRTMP) SourceInfo(ctx context.Context) (string, bool) {
	s, err := n.stream(ctx)
	if err != nil || s.Meta == nil {
		return "", false
	}

	v, a := s.Meta.Video, s.Meta.Audio
	return fmt.Sprintf("%d Kbps | %dp%v | %s %s %v | %s %s %dHz, %d channels",
		s.stats().Bitrate,
		v.Height, v.FrameRate, v.Codec, v.Profile, v.Level,
		a.Codec, a.Profile, a.SampleRate, a.Channels,
	), true
}
