// Package signaling is the WebSocket gateway of the relay: it accepts
// browser connections, drives the join/leave lifecycle against the session
// registry and room directory, and dispatches relay events to the router.
//
// One goroutine reads each connection and one drains its outbox; everything
// in between is non-blocking.
package signaling
