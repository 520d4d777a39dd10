// Package history keeps a local record of every automatic scene switch and
// offline-timeout action in SQLite.
//
// Repository implements events.Sink so it can sit in the same fanout as the
// MQTT publisher; the status API reads it back per user, newest first.
package history
