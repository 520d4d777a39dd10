// Package events defines the notifications a session emits for external
// consumers (chat bots, dashboards, history) and the sinks that deliver them.
//
// Two kinds exist: an automatic scene switch, emitted after every
// successful switch, and an offline timeout, emitted once per offline
// excursion when the stream is stopped. Every event reaches every sink.
// Notify is set on the ones meant for the chat: switches made while live
// with notifications on, and every offline timeout. Sinks are composed
// with Fanout; a failing sink never blocks the others.
package events
