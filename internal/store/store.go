// Package store is the relay's optional durability sink: meeting and chat
// records kept in BadgerDB.
//
// The relay's correctness never depends on this package. Writes are handed
// off through a bounded queue to a single writer goroutine; when the queue is
// full the write is dropped with a log line, and write failures are logged,
// never propagated.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/lemonmeet/meet-relay/internal/metrics"
)

var ErrNotFound = errors.New("record not found")

const (
	meetingKeyPrefix = "meeting:"
	chatKeyPrefix    = "chat:"
)

type Participant struct {
	Identity string    `json:"identity"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Meeting struct {
	RoomID       string        `json:"roomId"`
	Participants []Participant `json:"participants"`
	StartTime    time.Time     `json:"startTime"`
	EndTime      time.Time     `json:"endTime,omitzero"`
	Active       bool          `json:"active"`
}

type ChatRecord struct {
	RoomID    string    `json:"roomId"`
	Sender    string    `json:"sender"`
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	Key       string    `json:"key,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink is the fire-and-forget interface the gateway records through.
type Sink interface {
	RecordJoin(roomID string, p Participant)
	RecordChat(rec ChatRecord)
	RetireRoom(roomID string, endedAt time.Time)
}

// NopSink discards all records; used when persistence is disabled.
type NopSink struct{}

func (NopSink) RecordJoin(string, Participant) {}
func (NopSink) RecordChat(ChatRecord)          {}
func (NopSink) RetireRoom(string, time.Time)   {}

type op func(txn *badger.Txn) error

// Store implements Sink on top of BadgerDB.
type Store struct {
	db      *badger.DB
	log     *slog.Logger
	metrics *metrics.Metrics

	queue chan op
	done  chan struct{}
}

// Open opens (or creates) the Badger directory and starts the writer.
func Open(dir string, logger *slog.Logger, m *metrics.Metrics, queueSize int) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return New(db, logger, m, queueSize), nil
}

// New wraps an already-open Badger handle; the caller keeps ownership of db
// only until Close.
func New(db *badger.DB, logger *slog.Logger, m *metrics.Metrics, queueSize int) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	s := &Store{
		db:      db,
		log:     logger,
		metrics: m,
		queue:   make(chan op, queueSize),
		done:    make(chan struct{}),
	}
	go s.writer()
	return s
}

// Close drains pending writes and closes the database.
func (s *Store) Close() error {
	close(s.queue)
	<-s.done
	return s.db.Close()
}

func (s *Store) writer() {
	defer close(s.done)
	for apply := range s.queue {
		err := s.db.Update(apply)
		if err != nil {
			s.count(metrics.StoreWriteFailures)
			s.log.Error("store write failed", "err", err)
			continue
		}
		s.count(metrics.StoreWrites)
	}
}

// submit hands a write to the writer goroutine without ever blocking the
// relay path.
func (s *Store) submit(what string, apply op) {
	select {
	case s.queue <- apply:
	default:
		s.count(metrics.StoreWritesDropped)
		s.log.Warn("store queue full, dropping write", "op", what)
	}
}

func (s *Store) RecordJoin(roomID string, p Participant) {
	s.submit("record_join", func(txn *badger.Txn) error {
		key := []byte(meetingKeyPrefix + roomID)

		var meeting Meeting
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			meeting = Meeting{RoomID: roomID, StartTime: p.JoinedAt}
		case err != nil:
			return err
		default:
			if err := item.Value(func(v []byte) error {
				return json.Unmarshal(v, &meeting)
			}); err != nil {
				return err
			}
		}

		meeting.Active = true
		meeting.EndTime = time.Time{}
		meeting.Participants = append(meeting.Participants, p)

		data, err := json.Marshal(meeting)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

func (s *Store) RecordChat(rec ChatRecord) {
	s.submit("record_chat", func(txn *badger.Txn) error {
		key := fmt.Sprintf("%s%s:%020d:%s",
			chatKeyPrefix, rec.RoomID, rec.Timestamp.UnixNano(), uuid.NewString())
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set([]byte(key), data)
	})
}

func (s *Store) RetireRoom(roomID string, endedAt time.Time) {
	s.submit("retire_room", func(txn *badger.Txn) error {
		key := []byte(meetingKeyPrefix + roomID)

		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			// Never recorded (persistence enabled mid-meeting); nothing to retire.
			return nil
		}
		if err != nil {
			return err
		}

		var meeting Meeting
		if err := item.Value(func(v []byte) error {
			return json.Unmarshal(v, &meeting)
		}); err != nil {
			return err
		}

		meeting.Active = false
		meeting.EndTime = endedAt

		data, err := json.Marshal(meeting)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

// Meeting returns the stored record for one room identifier.
func (s *Store) Meeting(roomID string) (Meeting, error) {
	var meeting Meeting
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(meetingKeyPrefix + roomID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &meeting)
		})
	})
	return meeting, err
}

// Messages returns up to limit chat records for a room in timestamp order.
func (s *Store) Messages(roomID string, limit int) ([]ChatRecord, error) {
	var out []ChatRecord
	prefix := []byte(chatKeyPrefix + roomID + ":")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		if limit > 0 {
			opts.PrefetchSize = limit
		}

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			err := it.Item().Value(func(v []byte) error {
				var rec ChatRecord
				if err := json.Unmarshal(v, &rec); err != nil {
					return err
				}
				out = append(out, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Flush blocks until every write submitted before the call has been applied.
// Test helper; the relay never waits on the store.
func (s *Store) Flush() {
	ack := make(chan struct{})
	s.queue <- func(*badger.Txn) error {
		close(ack)
		return nil
	}
	<-ack
}

func (s *Store) count(name string) {
	if s.metrics != nil {
		s.metrics.Inc(name)
	}
}
