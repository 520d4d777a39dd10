package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/uplink-switcher/internal/probe"
	"github.com/nerrad567/uplink-switcher/internal/state"
)

// Measurement names.
const (
	measurementClassification = "uplink_classification"
	measurementSwitch         = "uplink_switch"
	measurementBroadcast      = "uplink_broadcast"
)

// classificationLevel orders classifications for graphing; higher is healthier.
func classificationLevel(c probe.Classification) int {
	switch c {
	case probe.Normal:
		return 2
	case probe.Low:
		return 1
	case probe.Offline:
		return 0
	default:
		return -1
	}
}

// RecordClassification stores the scene classification a tick resolved.
// A server name of "" means no enabled server answered.
func (c *Client) RecordClassification(user, server string, class probe.Classification) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(classificationPoint(user, server, class, time.Now()))
}

// RecordSwitch stores a successful automatic scene switch.
func (c *Client) RecordSwitch(user, server, scene string, class probe.Classification) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(switchPoint(user, server, scene, class, time.Now()))
}

// RecordBroadcast stores broadcasting software telemetry.
func (c *Client) RecordBroadcast(user string, st state.StreamStatus) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(broadcastPoint(user, st, time.Now()))
}

func classificationPoint(user, server string, class probe.Classification, ts time.Time) *write.Point {
	if server == "" {
		server = "none"
	}
	return write.NewPoint(measurementClassification,
		map[string]string{"user": user, "server": server},
		map[string]interface{}{
			"classification": class.String(),
			"level":          classificationLevel(class),
		},
		ts)
}

func switchPoint(user, server, scene string, class probe.Classification, ts time.Time) *write.Point {
	return write.NewPoint(measurementSwitch,
		map[string]string{"user": user, "server": server, "switch_type": class.String()},
		map[string]interface{}{"scene": scene},
		ts)
}

func broadcastPoint(user string, st state.StreamStatus, ts time.Time) *write.Point {
	return write.NewPoint(measurementBroadcast,
		map[string]string{"user": user},
		map[string]interface{}{
			"bitrate":               st.Bitrate,
			"fps":                   st.FPS,
			"num_dropped_frames":    st.NumDroppedFrames,
			"num_total_frames":      st.NumTotalFrames,
			"render_missed_frames":  st.RenderMissedFrames,
			"output_skipped_frames": st.OutputSkippedFrames,
		},
		ts)
}
