// Package session tracks the identity of every active signaling connection.
//
// The registry is the lifecycle anchor for all room state: a connection must
// be registered before it may join a room, and a terminated session ID is
// never reused (re-registering mints a fresh ID).
package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrDuplicateIdentity is returned when the claimed identity is already
	// held by another active connection.
	ErrDuplicateIdentity = errors.New("identity already registered")

	ErrNotFound = errors.New("session not found")
)

// ID is a server-assigned handle for one connection lifetime.
type ID string

// Session pairs a connection's claimed identity with its registry state.
// The zero RoomID means the session has not joined a room.
type Session struct {
	ID       ID
	Identity string
	Name     string
	RoomID   string
}

type Registry struct {
	mu         sync.Mutex
	byID       map[ID]*Session
	byIdentity map[string]ID
}

func NewRegistry() *Registry {
	return &Registry{
		byID:       make(map[ID]*Session),
		byIdentity: make(map[string]ID),
	}
}

// Register creates a session with no room assigned.
func (r *Registry) Register(identity, name string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byIdentity[identity]; taken {
		return Session{}, ErrDuplicateIdentity
	}

	s := &Session{
		ID:       ID(uuid.NewString()),
		Identity: identity,
		Name:     name,
	}
	r.byID[s.ID] = s
	r.byIdentity[identity] = s.ID
	return *s, nil
}

func (r *Registry) Lookup(id ID) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return *s, nil
}

// SetRoom records the room a session currently belongs to. An empty roomID
// clears the assignment.
func (r *Registry) SetRoom(id ID, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	s.RoomID = roomID
	return nil
}

// Unregister removes a session. Removing an unknown or already-removed ID is
// a no-op.
func (r *Registry) Unregister(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	delete(r.byIdentity, s.Identity)
}

// Len reports the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
