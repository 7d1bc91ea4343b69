// Command signaling-probe is a smoke test client for a running meet-relay.
//
// It connects two WebSocket clients to the same room, performs an
// offer/answer exchange with fake SDP, sends one chat message, and verifies
// every expected server event arrives in order. Exit status 0 means the
// relay's signaling path works end to end.
//
// Usage:
//
//	signaling-probe -url ws://127.0.0.1:8080/ws -room probe-room
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lemonmeet/meet-relay/internal/protocol"
)

func main() {
	url := flag.String("url", "ws://127.0.0.1:8080/ws", "signaling WebSocket URL")
	roomID := flag.String("room", fmt.Sprintf("probe-%d", time.Now().UnixNano()), "room identifier to use")
	timeout := flag.Duration("timeout", 5*time.Second, "per-read timeout")
	flag.Parse()

	if err := run(*url, *roomID, *timeout); err != nil {
		fmt.Fprintln(os.Stderr, "FAIL:", err)
		os.Exit(1)
	}
	fmt.Println("OK")
}

func run(url, roomID string, timeout time.Duration) error {
	alice, err := connect(url, timeout)
	if err != nil {
		return fmt.Errorf("dial alice: %w", err)
	}
	defer alice.close()

	bob, err := connect(url, timeout)
	if err != nil {
		return fmt.Errorf("dial bob: %w", err)
	}
	defer bob.close()

	// Alice joins an empty room.
	alice.send(protocol.ClientEvent{Type: protocol.EventJoin, RoomID: roomID, Identity: "probe-alice", Name: "Alice"})
	ev, err := alice.recv()
	if err != nil {
		return err
	}
	if ev.Type != protocol.EventAllUsers || len(ev.Users) != 0 {
		return fmt.Errorf("alice join: got %s with %d users, want empty all-users", ev.Type, len(ev.Users))
	}

	// Bob joins; both sides learn about each other.
	bob.send(protocol.ClientEvent{Type: protocol.EventJoin, RoomID: roomID, Identity: "probe-bob", Name: "Bob"})
	if ev, err = bob.recv(); err != nil {
		return err
	}
	if ev.Type != protocol.EventAllUsers || len(ev.Users) != 1 || ev.Users[0].Identity != "probe-alice" {
		return fmt.Errorf("bob join: got %+v, want all-users [probe-alice]", ev)
	}
	if ev, err = alice.recv(); err != nil {
		return err
	}
	if ev.Type != protocol.EventUserJoined || ev.User == nil || ev.User.Identity != "probe-bob" {
		return fmt.Errorf("alice: got %+v, want user-joined probe-bob", ev)
	}

	// Offer/answer round trip with placeholder SDP.
	offer := json.RawMessage(`{"type":"offer","sdp":"v=0 probe"}`)
	alice.send(protocol.ClientEvent{Type: protocol.EventNegotiationOffer, Target: "probe-bob", Payload: offer})
	if ev, err = bob.recv(); err != nil {
		return err
	}
	if ev.Type != protocol.EventNegotiationIncoming || ev.Tag != protocol.SignalTagOffer || ev.From != "probe-alice" {
		return fmt.Errorf("bob: got %+v, want offer signal from probe-alice", ev)
	}

	answer := json.RawMessage(`{"type":"answer","sdp":"v=0 probe"}`)
	bob.send(protocol.ClientEvent{Type: protocol.EventNegotiationAnswer, Target: "probe-alice", Payload: answer})
	if ev, err = alice.recv(); err != nil {
		return err
	}
	if ev.Type != protocol.EventNegotiationIncoming || ev.Tag != protocol.SignalTagAnswer || ev.From != "probe-bob" {
		return fmt.Errorf("alice: got %+v, want answer signal from probe-bob", ev)
	}

	// One chat message.
	alice.send(protocol.ClientEvent{Type: protocol.EventChat, Body: "probe says hi", Key: "probe-1"})
	if ev, err = bob.recv(); err != nil {
		return err
	}
	if ev.Type != protocol.EventChatReceived || ev.Body != "probe says hi" || ev.Key != "probe-1" {
		return fmt.Errorf("bob: got %+v, want chat-received probe-1", ev)
	}

	// Bob leaves; alice sees the departure.
	bob.send(protocol.ClientEvent{Type: protocol.EventLeave})
	if ev, err = alice.recv(); err != nil {
		return err
	}
	if ev.Type != protocol.EventUserLeft || ev.Identity != "probe-bob" {
		return fmt.Errorf("alice: got %+v, want user-left probe-bob", ev)
	}

	return nil
}

type probeConn struct {
	conn    *websocket.Conn
	timeout time.Duration
	err     error
}

func connect(url string, timeout time.Duration) (*probeConn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return &probeConn{conn: conn, timeout: timeout}, nil
}

func (p *probeConn) send(ev protocol.ClientEvent) {
	if p.err != nil {
		return
	}
	p.err = p.conn.WriteJSON(ev)
}

func (p *probeConn) recv() (protocol.ServerEvent, error) {
	if p.err != nil {
		return protocol.ServerEvent{}, p.err
	}
	if err := p.conn.SetReadDeadline(time.Now().Add(p.timeout)); err != nil {
		return protocol.ServerEvent{}, err
	}
	var ev protocol.ServerEvent
	if err := p.conn.ReadJSON(&ev); err != nil {
		return protocol.ServerEvent{}, err
	}
	return ev, nil
}

func (p *probeConn) close() {
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = p.conn.Close()
}
