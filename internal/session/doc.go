// Package session assembles and runs one switcher per configured user.
//
// A Session owns the user's State, the OBS connection, the decision loop
// and an optional state reporter, and runs them as one errgroup. The
// Manager holds every session, runs them together and applies switcher
// commands received over MQTT:
//
//	uplink/{user}/command/switcher   {"enabled": false}
//	uplink/{user}/command/switcher   {"server": "belabox", "enabled": true}
//
// The first form toggles the whole switcher, the second a single stream server.
// A payload with an action drives OBS instead:
//
//	{"action": "fix"}                    restart network media inputs
//	{"action": "start"} / {"action": "stop"}  stop switches to the ending scene first
//	{"action": "record"}                 toggle recording
//	{"action": "source", "name": "cam"}  toggle a source's visibility
//	{"action": "switch", "name": "live"} switch to a scene
//	{"action": "privacy"}                switch to the privacy scene
//	{"action": "refresh"}                show the refresh scene, then return
package session
