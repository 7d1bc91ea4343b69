package signaling

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lemonmeet/meet-relay/internal/metrics"
	"github.com/lemonmeet/meet-relay/internal/protocol"
	"github.com/lemonmeet/meet-relay/internal/room"
	"github.com/lemonmeet/meet-relay/internal/router"
	"github.com/lemonmeet/meet-relay/internal/session"
	"github.com/lemonmeet/meet-relay/internal/store"
)

func (c *client) dispatch(ev protocol.ClientEvent) {
	switch ev.Type {
	case protocol.EventJoin:
		c.handleJoin(ev)
	case protocol.EventNegotiationOffer:
		c.handleSignal(ev, protocol.SignalTagOffer)
	case protocol.EventNegotiationAnswer:
		c.handleSignal(ev, protocol.SignalTagAnswer)
	case protocol.EventLeave:
		c.handleLeave()
	case protocol.EventChat:
		c.handleChat(ev)
	case protocol.EventTranscript:
		c.handleTranscript(ev)
	default:
		c.sendError(protocol.ErrorKindBadRequest, "unknown event type")
	}
}

func (c *client) handleJoin(ev protocol.ClientEvent) {
	if ev.RoomID == "" || ev.Identity == "" {
		c.sendError(protocol.ErrorKindBadRequest, "join requires roomId and identity")
		return
	}
	if c.registered {
		c.sendError(protocol.ErrorKindAlreadyMember, "connection already joined a room")
		c.srv.count(metrics.JoinsRejected)
		return
	}

	sess, err := c.srv.registry.Register(ev.Identity, ev.Name)
	if err != nil {
		if errors.Is(err, session.ErrDuplicateIdentity) {
			c.sendError(protocol.ErrorKindDuplicateIdentity, "identity in use by another connection")
		} else {
			c.sendError(protocol.ErrorKindBadRequest, err.Error())
		}
		c.srv.count(metrics.JoinsRejected)
		return
	}

	m := room.Member{
		SessionID: sess.ID,
		Identity:  sess.Identity,
		Name:      sess.Name,
		Outbox:    c.out,
	}
	// Both enqueues run under the room lock, so the roster snapshot and the
	// user-joined fanout belong to the same point in the room's announcement
	// order.
	err = c.srv.rooms.Join(ev.RoomID, m, func(others []room.Member) {
		users := make([]protocol.UserInfo, 0, len(others))
		for _, o := range others {
			users = append(users, o.Info())
		}
		if err := c.out.TryEnqueue(protocol.AllUsers(users)); err != nil {
			c.log.Warn("dropping all-users", "room", ev.RoomID, "err", err)
		}
		joined := protocol.UserJoined(m.Info())
		for _, o := range others {
			if err := o.Outbox.TryEnqueue(joined); err != nil {
				c.log.Warn("dropping user-joined",
					"room", ev.RoomID, "to", o.Identity, "err", err)
			}
		}
	})
	if err != nil {
		c.srv.registry.Unregister(sess.ID)
		c.sendError(protocol.ErrorKindAlreadyMember, "identity is already a room member")
		c.srv.count(metrics.JoinsRejected)
		return
	}

	if err := c.srv.registry.SetRoom(sess.ID, ev.RoomID); err != nil {
		c.log.Error("set room after join", "session", string(sess.ID), "err", err)
	}
	c.registered = true
	c.sess = sess
	c.sess.RoomID = ev.RoomID
	c.log = c.log.With("identity", sess.Identity, "room", ev.RoomID)

	c.srv.sink.RecordJoin(ev.RoomID, store.Participant{
		Identity: sess.Identity,
		Name:     sess.Name,
		JoinedAt: time.Now().UTC(),
	})
	c.srv.count(metrics.JoinsAccepted)
	c.log.Info("joined room")
}

func (c *client) handleSignal(ev protocol.ClientEvent, tag protocol.SignalTag) {
	if !c.registered {
		c.sendError(protocol.ErrorKindBadRequest, "join a room first")
		return
	}
	if ev.Target == "" || len(ev.Payload) == 0 {
		c.sendError(protocol.ErrorKindBadRequest, "signal requires target and payload")
		return
	}

	switch err := c.srv.router.RelayDirect(c.sess.Identity, ev.Target, tag, ev.Payload); {
	case err == nil:
	case errors.Is(err, router.ErrUnknownTarget):
		c.sendError(protocol.ErrorKindUnknownTarget, "peer is no longer present")
	case errors.Is(err, router.ErrBackpressure):
		c.sendError(protocol.ErrorKindBackpressure, "peer is not keeping up")
	default:
		c.sendError(protocol.ErrorKindBadRequest, err.Error())
	}
}

// handleLeave processes an explicit leave. The session is destroyed, exactly
// as on disconnect: rejoining takes a fresh join with a fresh session.
func (c *client) handleLeave() {
	if !c.registered {
		c.sendError(protocol.ErrorKindBadRequest, "not in a room")
		return
	}
	c.leaveRoom()
	c.log.Info("left room")
}

func (c *client) handleChat(ev protocol.ClientEvent) {
	if !c.registered {
		c.sendError(protocol.ErrorKindBadRequest, "join a room first")
		return
	}
	if ev.Body == "" {
		c.sendError(protocol.ErrorKindBadRequest, "chat requires a body")
		return
	}

	key := ev.Key
	if key == "" {
		key = uuid.NewString()
	}
	now := time.Now().UTC()
	msg := protocol.ChatReceived(c.sess.RoomID, c.sess.Identity, c.sess.Name, ev.Body, key, now)

	if _, err := c.srv.router.RelayBroadcast(c.sess.RoomID, c.sess.Identity, msg); err != nil {
		if errors.Is(err, router.ErrBackpressure) {
			c.sendError(protocol.ErrorKindBackpressure, "some peers are not keeping up")
		} else if errors.Is(err, room.ErrRoomNotFound) {
			c.sendError(protocol.ErrorKindRoomNotFound, "room is gone")
			return
		}
	}

	c.srv.sink.RecordChat(store.ChatRecord{
		RoomID:    c.sess.RoomID,
		Sender:    c.sess.Identity,
		Name:      c.sess.Name,
		Body:      ev.Body,
		Key:       key,
		Timestamp: now,
	})
}

func (c *client) handleTranscript(ev protocol.ClientEvent) {
	if !c.registered {
		c.sendError(protocol.ErrorKindBadRequest, "join a room first")
		return
	}
	if ev.Body == "" {
		c.sendError(protocol.ErrorKindBadRequest, "transcript requires a body")
		return
	}

	// Transcript fragments are ephemeral: relayed, never persisted.
	msg := protocol.TranscriptReceived(c.sess.RoomID, c.sess.Identity, c.sess.Name, ev.Body, time.Now().UTC())
	if _, err := c.srv.router.RelayBroadcast(c.sess.RoomID, c.sess.Identity, msg); err != nil {
		if errors.Is(err, router.ErrBackpressure) {
			c.sendError(protocol.ErrorKindBackpressure, "some peers are not keeping up")
		}
	}
}

// leaveRoom removes the client from its room and destroys the session. Safe
// to call once per registration; the caller clears c.registered through it.
func (c *client) leaveRoom() {
	roomID, identity := c.sess.RoomID, c.sess.Identity

	left := protocol.UserLeft(identity)
	remaining, err := c.srv.rooms.Leave(roomID, identity, func(rest []room.Member) {
		for _, m := range rest {
			if err := m.Outbox.TryEnqueue(left); err != nil {
				c.log.Warn("dropping user-left", "to", m.Identity, "err", err)
			}
		}
	})
	if err == nil && remaining == 0 {
		c.srv.sink.RetireRoom(roomID, time.Now().UTC())
		c.srv.count(metrics.RoomsRetired)
	}

	c.srv.registry.Unregister(c.sess.ID)
	c.srv.count(metrics.LeavesProcessed)

	c.registered = false
	c.sess = session.Session{}
}

// disconnect runs the teardown sequence after the read loop exits: leave the
// room (announcing user-left), destroy the session, then close the outbox so
// the write loop drains and exits.
func (c *client) disconnect() {
	if c.registered {
		c.leaveRoom()
	}
	c.out.Close()
}
