// Package api implements the read-only HTTP status API and the WebSocket
// event stream for the uplink switcher.
//
// This package provides:
//   - REST endpoints for session snapshots and switch history
//   - A health endpoint aggregating the database, MQTT and InfluxDB checks
//   - A WebSocket hub that relays switch events to subscribed clients
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Endpoints
//
//	GET /api/v1/health
//	GET /api/v1/sessions
//	GET /api/v1/sessions/{user}
//	GET /api/v1/sessions/{user}/history?limit=50
//	GET /api/v1/ws
//
// # WebSocket
//
// Clients subscribe to user channels:
//
//	{"type":"subscribe","id":"1","payload":{"channels":["alice"]}}
//
// The "*" channel receives events for every user. Events are delivered as
//
//	{"type":"event","event_type":"automatic_switching_scene","payload":{...}}
//
// The Hub implements events.Sink so it can sit in the same fanout as the
// history store and the MQTT sink.
//
// # Graceful Degradation
//
// Without a history reader the history endpoint answers 503; everything
// else keeps working.
package api
