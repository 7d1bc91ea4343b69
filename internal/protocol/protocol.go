// Package protocol defines the canonical signaling vocabulary exchanged with
// browser clients over the signaling WebSocket.
//
// Negotiation payloads are opaque to the relay: they are carried as raw JSON
// and handed to the client's peer-connection library unmodified.
package protocol

import (
	"encoding/json"
	"time"
)

type EventType string

// Inbound event types.
const (
	EventJoin              EventType = "join"
	EventNegotiationOffer  EventType = "negotiation-offer"
	EventNegotiationAnswer EventType = "negotiation-answer"
	EventLeave             EventType = "leave"
	EventChat              EventType = "chat"
	EventTranscript        EventType = "transcript"
)

// Outbound event types.
const (
	EventAllUsers            EventType = "all-users"
	EventUserJoined          EventType = "user-joined"
	EventUserLeft            EventType = "user-left"
	EventNegotiationIncoming EventType = "negotiation-incoming"
	EventChatReceived        EventType = "chat-received"
	EventTranscriptReceived  EventType = "transcript-received"
	EventRelayError          EventType = "relay-error"
)

// SignalTag distinguishes the direction of a relayed negotiation payload.
type SignalTag string

const (
	SignalTagOffer  SignalTag = "offer"
	SignalTagAnswer SignalTag = "answer"
)

// ErrorKind values surfaced to clients in relay-error events.
type ErrorKind string

const (
	ErrorKindDuplicateIdentity ErrorKind = "duplicate-identity"
	ErrorKindAlreadyMember     ErrorKind = "already-member"
	ErrorKindUnknownTarget     ErrorKind = "unknown-target"
	ErrorKindBackpressure      ErrorKind = "backpressure"
	ErrorKindRoomNotFound      ErrorKind = "room-not-found"
	ErrorKindBadRequest        ErrorKind = "bad-request"
)

// UserInfo identifies a room member to other clients.
type UserInfo struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
}

// ClientEvent is the envelope for all inbound signaling messages.
type ClientEvent struct {
	Type EventType `json:"type"`

	// Join fields.
	RoomID   string `json:"roomId,omitempty"`
	Identity string `json:"identity,omitempty"`
	Name     string `json:"name,omitempty"`

	// Offer/answer fields.
	Target  string          `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Chat/transcript fields.
	Body string `json:"body,omitempty"`
	// Key is an optional client-generated idempotency key. The relay carries
	// it through unchanged; duplicate suppression happens on the receiving
	// client.
	Key string `json:"key,omitempty"`
}

// ServerEvent is the envelope for all outbound signaling messages.
type ServerEvent struct {
	Type EventType `json:"type"`

	// omitzero, not omitempty: the all-users constructor guarantees a non-nil
	// slice so an empty roster still encodes as "users":[].
	Users []UserInfo `json:"users,omitzero"`
	User  *UserInfo  `json:"user,omitempty"`

	RoomID   string `json:"roomId,omitempty"`
	Identity string `json:"identity,omitempty"`

	From    string          `json:"from,omitempty"`
	Name    string          `json:"name,omitempty"`
	Tag     SignalTag       `json:"tag,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	Body      string    `json:"body,omitempty"`
	Key       string    `json:"key,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`

	Kind   ErrorKind `json:"kind,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

func AllUsers(users []UserInfo) ServerEvent {
	if users == nil {
		// Encode as [] rather than null so clients can iterate unconditionally.
		users = []UserInfo{}
	}
	return ServerEvent{Type: EventAllUsers, Users: users}
}

func UserJoined(u UserInfo) ServerEvent {
	return ServerEvent{Type: EventUserJoined, User: &u}
}

func UserLeft(identity string) ServerEvent {
	return ServerEvent{Type: EventUserLeft, Identity: identity}
}

func NegotiationIncoming(from string, tag SignalTag, payload json.RawMessage) ServerEvent {
	return ServerEvent{Type: EventNegotiationIncoming, From: from, Tag: tag, Payload: payload}
}

func ChatReceived(roomID, from, name, body, key string, at time.Time) ServerEvent {
	return ServerEvent{
		Type:      EventChatReceived,
		RoomID:    roomID,
		From:      from,
		Name:      name,
		Body:      body,
		Key:       key,
		Timestamp: at,
	}
}

func TranscriptReceived(roomID, from, name, body string, at time.Time) ServerEvent {
	return ServerEvent{
		Type:      EventTranscriptReceived,
		RoomID:    roomID,
		From:      from,
		Name:      name,
		Body:      body,
		Timestamp: at,
	}
}

func RelayError(kind ErrorKind, detail string) ServerEvent {
	return ServerEvent{Type: EventRelayError, Kind: kind, Detail: detail}
}
