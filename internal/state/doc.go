// Package state holds the per-session data shared by the switcher loop and
// the broadcasting software connection.
//
// One State exists per user session. Every field sits behind a single
// sync.RWMutex; the switcher mostly reads, the connection's event task
// mostly writes. Critical sections never perform I/O.
//
// # Wait signals
//
// The switcher parks on four level-triggered signals: switcher enabled,
// software connected, streaming started and scene became switchable. A
// signal is a channel that is closed and replaced on every notify. Gate
// evaluates the blocking condition and captures the channel under the same
// lock a writer must hold to change that condition, so a wake-up cannot be
// lost between the check and the wait. Waiters always re-evaluate the
// condition after waking.
//
// # Switchable scenes
//
// The switchable set is the union of the default scenes, every server's
// override scenes and every dependency's backup scenes. It is recomputed
// whenever the server list changes.
package state
