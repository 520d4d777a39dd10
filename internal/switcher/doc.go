// Package switcher runs the per-session decision loop.
//
// Every tick the loop sleeps the request interval, checks the state gates
// (switcher disabled, software disconnected, not streaming, scene not
// switchable) and parks on the matching wake signal if one holds. Otherwise
// it probes the stream servers in priority order, debounces the
// classification, resolves the scene set through per-server overrides and
// dependency backups and switches when needed. Every successful switch
// is emitted to the sink; it is flagged for the chat only while live with
// AutoSwitchNotification set.
//
// # Debounce
//
// A classification must be seen RetryAttempts ticks in a row before the
// loop acts. The tick that changes the classification is the first of the
// new run. Recovering from Offline acts immediately when
// InstantlySwitchOnRecover is set.
//
// # Offline timeout
//
// When the stream stays Offline while live for longer than OfflineTimeout,
// the loop stops streaming once per offline excursion and emits an
// offline timeout event.
//
// Thread Safety:
//   - A Switcher is driven by a single goroutine (Run). Its counters are
//     not shared; everything shared lives in *state.State.
package switcher
