// Package router relays negotiation and chat payloads between room members.
//
// Delivery is fire-and-forget into each recipient's outbound queue: the
// router never blocks on a recipient and never persists a payload. A full
// queue is surfaced to the sender as backpressure instead of being dropped
// silently; a queue that is already closed (the peer is disconnecting) fails
// silently, since the departure announcement is on its way.
package router

import (
	"errors"
	"log/slog"

	"github.com/lemonmeet/meet-relay/internal/metrics"
	"github.com/lemonmeet/meet-relay/internal/outbox"
	"github.com/lemonmeet/meet-relay/internal/protocol"
	"github.com/lemonmeet/meet-relay/internal/room"
)

var (
	// ErrUnknownTarget means the relay target is not a member of any room.
	// Stale targets are dropped, not queued; callers surface this as "peer no
	// longer present".
	ErrUnknownTarget = errors.New("unknown relay target")

	// ErrBackpressure means a recipient's outbound queue is full.
	ErrBackpressure = errors.New("recipient outbound queue full")
)

type Router struct {
	dir     *room.Directory
	log     *slog.Logger
	metrics *metrics.Metrics
}

func New(dir *room.Directory, logger *slog.Logger, m *metrics.Metrics) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{dir: dir, log: logger, metrics: m}
}

// RelayDirect delivers one negotiation payload to the identified target.
// The payload reaches at most one connection, and only if the target is
// currently a member of some room.
func (r *Router) RelayDirect(from, to string, tag protocol.SignalTag, payload []byte) error {
	target, err := r.dir.Find(to)
	if err != nil {
		r.count(metrics.RelayUnknownTarget)
		return ErrUnknownTarget
	}

	err = target.Outbox.TryEnqueue(protocol.NegotiationIncoming(from, tag, payload))
	switch {
	case err == nil:
		r.count(metrics.RelayDirectDelivered)
		return nil
	case errors.Is(err, outbox.ErrClosed):
		// Target is tearing down; treat like a stale target.
		r.count(metrics.RelayUnknownTarget)
		return ErrUnknownTarget
	case errors.Is(err, outbox.ErrFull):
		r.count(metrics.RelayBackpressure)
		return ErrBackpressure
	default:
		return err
	}
}

// RelayBroadcast delivers ev to every member of roomID except the sender,
// using the membership snapshot at call time. Members joining mid-broadcast
// do not retroactively receive it.
//
// The returned error reports the worst delivery outcome: backpressure on any
// live recipient wins over nil; enqueues to closed outboxes fail silently.
func (r *Router) RelayBroadcast(roomID, from string, ev protocol.ServerEvent) (int, error) {
	members, err := r.dir.MembersOf(roomID)
	if err != nil {
		return 0, room.ErrRoomNotFound
	}

	delivered := 0
	var worst error
	for _, m := range members {
		if m.Identity == from {
			continue
		}
		switch err := m.Outbox.TryEnqueue(ev); {
		case err == nil:
			delivered++
		case errors.Is(err, outbox.ErrClosed):
			// Recipient disconnected between snapshot and enqueue.
		case errors.Is(err, outbox.ErrFull):
			r.count(metrics.RelayBackpressure)
			r.log.Warn("broadcast backpressure",
				"room", roomID, "from", from, "to", m.Identity, "event", string(ev.Type))
			worst = ErrBackpressure
		default:
			worst = err
		}
	}
	r.count(metrics.RelayBroadcasts)
	return delivered, worst
}

func (r *Router) count(name string) {
	if r.metrics != nil {
		r.metrics.Inc(name)
	}
}
