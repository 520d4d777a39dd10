// Package influxdb records switcher telemetry in InfluxDB v2.
//
// Three measurements are written, each tagged with the session user:
//
//	uplink_classification  server tag; classification, level fields (every tick)
//	uplink_switch          server, switch_type tags; scene field
//	uplink_broadcast       bitrate, fps and frame counters from the software
//
// Writes are non-blocking and batched per config (batch_size,
// flush_interval). Async write failures are delivered to the SetOnError
// callback.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
package influxdb
