// Package broadcast drives OBS Studio over the obs-websocket v5 protocol.
//
// OBS implements state.Software. Its Run method owns the connection: it
// dials, completes the Hello/Identify handshake, mirrors the current scene
// and streaming status into the session state and then applies scene and
// stream events until the socket drops, at which point it marks the
// session disconnected and reconnects with backoff.
//
// # Requests
//
// Every request carries a random request id. A single read goroutine routes
// RequestResponse frames to the waiting caller by id and queues events for
// a separate event goroutine, so an event handler may itself issue requests.
//
// # Scene matching
//
// SwitchScene compares the requested name against the live scene list with
// normalised Damerau-Levenshtein similarity, case-insensitively. The best
// match wins when it reaches the configured threshold; otherwise the name is
// sent as given.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use. Run must be called
//     at most once per OBS value.
package broadcast
