package signaling

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lemonmeet/meet-relay/internal/config"
	"github.com/lemonmeet/meet-relay/internal/metrics"
	"github.com/lemonmeet/meet-relay/internal/origin"
	"github.com/lemonmeet/meet-relay/internal/outbox"
	"github.com/lemonmeet/meet-relay/internal/protocol"
	"github.com/lemonmeet/meet-relay/internal/ratelimit"
	"github.com/lemonmeet/meet-relay/internal/room"
	"github.com/lemonmeet/meet-relay/internal/router"
	"github.com/lemonmeet/meet-relay/internal/session"
	"github.com/lemonmeet/meet-relay/internal/store"
)

const wsWriteWait = 1 * time.Second

// Server is the signaling gateway. It owns the transport boundary; all room
// and session state lives in the registry, directory and router it is wired
// with.
type Server struct {
	cfg      config.Config
	log      *slog.Logger
	registry *session.Registry
	rooms    *room.Directory
	router   *router.Router
	sink     store.Sink
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

func NewServer(
	cfg config.Config,
	logger *slog.Logger,
	registry *session.Registry,
	rooms *room.Directory,
	rt *router.Router,
	sink store.Sink,
	m *metrics.Metrics,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = store.NopSink{}
	}
	policy := origin.NewPolicy(cfg.AllowedOrigins)
	return &Server{
		cfg:      cfg,
		log:      logger,
		registry: registry,
		rooms:    rooms,
		router:   rt,
		sink:     sink,
		metrics:  m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return policy.Allow(r.Header.Get("Origin"), r.Host)
			},
		},
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /ws", s)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	s.count(metrics.ConnectionsAccepted)

	c := &client{
		srv:  s,
		conn: conn,
		out:  outbox.NewQueue(s.cfg.OutboxCapacity),
		log:  s.log.With("remote_addr", conn.RemoteAddr().String()),
	}

	go c.writeLoop()
	c.readLoop()

	// Mandatory teardown sequence: leave the room first so the identity stops
	// resolving, then unregister, then release the outbox.
	c.disconnect()
	s.count(metrics.ConnectionsClosed)
}

type client struct {
	srv  *Server
	conn *websocket.Conn
	out  *outbox.Queue
	log  *slog.Logger

	// Connection-lifecycle state; touched only by the read loop.
	registered bool
	sess       session.Session
}

func (c *client) readLoop() {
	cfg := c.srv.cfg
	c.conn.SetReadLimit(cfg.MaxMessageBytes)

	resetDeadline := func() {
		_ = c.conn.SetReadDeadline(time.Now().Add(cfg.WSIdleTimeout))
	}
	resetDeadline()
	c.conn.SetPongHandler(func(string) error {
		resetDeadline()
		return nil
	})

	limiter := ratelimit.NewBucket(ratelimit.RealClock{},
		int64(cfg.MaxMessagesPerSecond), int64(cfg.MaxMessagesPerSecond))

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				// gorilla has already sent the CloseMessageTooBig frame.
				c.srv.count(metrics.SignalMessageTooLarge)
			}
			return
		}
		if msgType != websocket.TextMessage {
			writeClose(c.conn, websocket.CloseUnsupportedData, "expected text message")
			return
		}
		resetDeadline()

		if !limiter.Allow() {
			c.srv.count(metrics.SignalRateLimited)
			writeClose(c.conn, websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}

		var ev protocol.ClientEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.sendError(protocol.ErrorKindBadRequest, "invalid message")
			continue
		}
		c.dispatch(ev)
	}
}

func (c *client) writeLoop() {
	ping := time.NewTicker(c.srv.cfg.WSPingInterval)
	defer ping.Stop()
	defer c.conn.Close()

	for {
		select {
		case ev, ok := <-c.out.Events():
			if !ok {
				writeClose(c.conn, websocket.CloseNormalClosure, "")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func (c *client) sendError(kind protocol.ErrorKind, detail string) {
	if err := c.out.TryEnqueue(protocol.RelayError(kind, detail)); err != nil {
		c.log.Debug("dropping error event", "kind", string(kind), "err", err)
	}
}

func (s *Server) count(name string) {
	if s.metrics != nil {
		s.metrics.Inc(name)
	}
}

func writeClose(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
}
