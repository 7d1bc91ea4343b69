package protocol

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAllUsersEncodesEmptyRosterAsArray(t *testing.T) {
	data, err := json.Marshal(AllUsers(nil))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"users":[]`) {
		t.Fatalf("empty roster encoded as %s, want users:[]", data)
	}
}

func TestServerEventOmitsUnsetFields(t *testing.T) {
	data, err := json.Marshal(UserLeft("alice"))
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if got != `{"type":"user-left","identity":"alice"}` {
		t.Fatalf("user-left encoded as %s", got)
	}
}

func TestSignalPayloadIsOpaque(t *testing.T) {
	payload := json.RawMessage(`{"sdp":"v=0","weird":[1,null,"x"]}`)
	data, err := json.Marshal(NegotiationIncoming("alice", SignalTagOffer, payload))
	if err != nil {
		t.Fatal(err)
	}
	var out ServerEvent
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if string(out.Payload) != string(payload) {
		t.Fatalf("payload altered: %s", out.Payload)
	}
}

func TestChatReceivedCarriesTimestamp(t *testing.T) {
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	data, err := json.Marshal(ChatReceived("r1", "alice", "Alice", "hi", "k-1", at))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"timestamp":"2026-08-30T12:00:00Z"`) {
		t.Fatalf("encoded: %s", data)
	}
}
