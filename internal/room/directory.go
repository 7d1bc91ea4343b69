// Package room owns meeting-room membership.
//
// All mutations of one room are serialized behind that room's mutex;
// operations on different rooms never contend. A room whose member set drains
// to empty is retired: it stops resolving as a relay target and a later join
// under the same identifier gets a fresh room with no leftover members.
package room

import (
	"errors"
	"sync"
	"time"

	"github.com/lemonmeet/meet-relay/internal/protocol"
	"github.com/lemonmeet/meet-relay/internal/session"
)

var (
	// ErrAlreadyMember is returned when the identity is already recorded in a
	// room. Transport-level reconnects can replay a join; the replay must not
	// produce a duplicate member entry.
	ErrAlreadyMember = errors.New("already a room member")

	ErrRoomNotFound = errors.New("room not found")

	// ErrNotMember is returned by Resolve/Find for identities that are not in
	// any active room.
	ErrNotMember = errors.New("not a member of any room")
)

// Outbox is the delivery side of one connection. Enqueue must never block:
// it either accepts the event or reports that the queue is full or closed.
type Outbox interface {
	TryEnqueue(ev protocol.ServerEvent) error
}

// Member is one room participant. The directory stores copies; callers never
// share mutable member state.
type Member struct {
	SessionID session.ID
	Identity  string
	Name      string
	Outbox    Outbox
}

func (m Member) Info() protocol.UserInfo {
	return protocol.UserInfo{Identity: m.Identity, Name: m.Name}
}

type roomState struct {
	id        string
	createdAt time.Time

	mu         sync.Mutex
	members    []Member // join order
	byIdentity map[string]int
	retired    bool
}

func (r *roomState) snapshotLocked(exclude string) []Member {
	out := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		if m.Identity == exclude {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Directory maps room identifiers to their member sets.
//
// Lock order: a room mutex may be held while taking the directory mutex,
// never the reverse. Lookups release the directory mutex before locking the
// room, and re-check the retired flag afterwards.
type Directory struct {
	mu         sync.RWMutex
	rooms      map[string]*roomState
	byIdentity map[string]*roomState
}

func NewDirectory() *Directory {
	return &Directory{
		rooms:      make(map[string]*roomState),
		byIdentity: make(map[string]*roomState),
	}
}

// Join adds m to roomID, creating the room if needed.
//
// announce, when non-nil, runs exactly once while the room is still locked,
// with the membership snapshot taken just before the insert (the joiner
// excluded). Running it under the lock is what gives every member the same
// total order of join/leave announcements, so announce must only do
// non-blocking work such as Outbox enqueues.
func (d *Directory) Join(roomID string, m Member, announce func(others []Member)) error {
	for {
		r := d.getOrCreate(roomID)

		r.mu.Lock()
		if r.retired {
			// Lost a race with the final leave; the identifier now names a
			// fresh room.
			r.mu.Unlock()
			continue
		}

		if _, dup := r.byIdentity[m.Identity]; dup {
			r.mu.Unlock()
			return ErrAlreadyMember
		}

		// A session belongs to at most one room at a time.
		d.mu.Lock()
		if _, elsewhere := d.byIdentity[m.Identity]; elsewhere {
			d.mu.Unlock()
			d.retireIfEmpty(roomID, r)
			r.mu.Unlock()
			return ErrAlreadyMember
		}
		d.byIdentity[m.Identity] = r
		d.mu.Unlock()

		others := r.snapshotLocked(m.Identity)
		r.byIdentity[m.Identity] = len(r.members)
		r.members = append(r.members, m)

		if announce != nil {
			announce(others)
		}
		r.mu.Unlock()
		return nil
	}
}

// Leave removes the identity from roomID and returns the remaining member
// count. Removing a non-member is a no-op. When the count reaches zero the
// room is retired before the directory entry is released, so no relay target
// can resolve into it afterwards.
//
// announce runs under the room lock with the post-removal snapshot, under the
// same non-blocking contract as in Join.
func (d *Directory) Leave(roomID string, identity string, announce func(remaining []Member)) (int, error) {
	d.mu.RLock()
	r, ok := d.rooms[roomID]
	d.mu.RUnlock()
	if !ok {
		return 0, ErrRoomNotFound
	}

	r.mu.Lock()
	idx, present := r.byIdentity[identity]
	if present {
		r.members = append(r.members[:idx], r.members[idx+1:]...)
		delete(r.byIdentity, identity)
		for i := idx; i < len(r.members); i++ {
			r.byIdentity[r.members[i].Identity] = i
		}

		d.mu.Lock()
		if d.byIdentity[identity] == r {
			delete(d.byIdentity, identity)
		}
		d.mu.Unlock()
	}

	remaining := len(r.members)
	if remaining == 0 {
		r.retired = true
	}
	if present && announce != nil {
		announce(r.snapshotLocked(""))
	}
	r.mu.Unlock()

	if remaining == 0 {
		d.mu.Lock()
		if d.rooms[roomID] == r {
			delete(d.rooms, roomID)
		}
		d.mu.Unlock()
	}
	return remaining, nil
}

// MembersOf returns a point-in-time snapshot of the room's members in join
// order.
func (d *Directory) MembersOf(roomID string) ([]Member, error) {
	d.mu.RLock()
	r, ok := d.rooms[roomID]
	d.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retired {
		return nil, ErrRoomNotFound
	}
	return r.snapshotLocked(""), nil
}

// Resolve reports which room an identity currently belongs to.
func (d *Directory) Resolve(identity string) (string, error) {
	d.mu.RLock()
	r, ok := d.byIdentity[identity]
	d.mu.RUnlock()
	if !ok {
		return "", ErrNotMember
	}
	return r.id, nil
}

// Find returns the member record for an identity, including its outbox.
// Stale identities (left, disconnected, never joined) report ErrNotMember.
func (d *Directory) Find(identity string) (Member, error) {
	d.mu.RLock()
	r, ok := d.byIdentity[identity]
	d.mu.RUnlock()
	if !ok {
		return Member{}, ErrNotMember
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	idx, present := r.byIdentity[identity]
	if !present || r.retired {
		return Member{}, ErrNotMember
	}
	return r.members[idx], nil
}

// RoomCount reports the number of active rooms.
func (d *Directory) RoomCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

// retireIfEmpty removes a room that a failed join left without members, so a
// rejected first join does not leak an empty active room. Caller holds r.mu.
func (d *Directory) retireIfEmpty(roomID string, r *roomState) {
	if len(r.members) != 0 || r.retired {
		return
	}
	r.retired = true
	d.mu.Lock()
	if d.rooms[roomID] == r {
		delete(d.rooms, roomID)
	}
	d.mu.Unlock()
}

func (d *Directory) getOrCreate(roomID string) *roomState {
	d.mu.RLock()
	r, ok := d.rooms[roomID]
	d.mu.RUnlock()
	if ok {
		return r
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.rooms[roomID]; ok {
		return r
	}
	r = &roomState{
		id:         roomID,
		createdAt:  time.Now(),
		byIdentity: make(map[string]int),
	}
	d.rooms[roomID] = r
	return r
}
