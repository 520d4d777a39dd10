// Package probe queries stream ingest servers and classifies uplink health.
//
// Each backend (nginx-rtmp, SRT Live Server, BELABOX cloud, MediaMTX) fetches
// its server's statistics over an injected HTTPDoer, reduces them to a
// Stats value and runs the shared classification policy against the
// session's Triggers:
//
//  1. fetch or parse failure             -> Offline
//  2. offline trigger, 0 < bitrate <= it -> Offline
//  3. rtt_offline trigger, rtt >= it     -> Offline
//  4. bitrate == 0                       -> Previous (hold current scene)
//  5. low trigger, bitrate <= it         -> Low
//  6. rtt trigger, rtt >= it             -> Low
//  7. otherwise                          -> Normal
//
// A zero bitrate is what ingest servers report while a publisher has just
// connected, so every backend maps it to Previous rather than Offline.
//
// Probes never mutate session state; they are pure queries and may be
// called concurrently.
package probe
