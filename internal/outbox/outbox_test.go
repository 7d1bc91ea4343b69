package outbox

import (
	"errors"
	"sync"
	"testing"

	"github.com/lemonmeet/meet-relay/internal/protocol"
)

func TestQueue_EnqueueAndDrain(t *testing.T) {
	q := NewQueue(4)

	if err := q.TryEnqueue(protocol.UserLeft("u1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	ev := <-q.Events()
	if ev.Type != protocol.EventUserLeft || ev.Identity != "u1" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestQueue_FullReportsBackpressure(t *testing.T) {
	q := NewQueue(2)

	for i := 0; i < 2; i++ {
		if err := q.TryEnqueue(protocol.UserLeft("u")); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := q.TryEnqueue(protocol.UserLeft("u")); !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}

	// Draining frees capacity.
	<-q.Events()
	if err := q.TryEnqueue(protocol.UserLeft("u")); err != nil {
		t.Fatalf("enqueue after drain: %v", err)
	}
}

func TestQueue_CloseRejectsAndPreservesPending(t *testing.T) {
	q := NewQueue(2)

	if err := q.TryEnqueue(protocol.UserLeft("pending")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	q.Close()
	q.Close() // idempotent

	if err := q.TryEnqueue(protocol.UserLeft("late")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}

	ev, ok := <-q.Events()
	if !ok || ev.Identity != "pending" {
		t.Fatalf("pending event lost: %+v ok=%v", ev, ok)
	}
	if _, ok := <-q.Events(); ok {
		t.Fatal("events channel should be closed")
	}
}

func TestQueue_ConcurrentEnqueueAndClose(t *testing.T) {
	q := NewQueue(8)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				err := q.TryEnqueue(protocol.UserLeft("x"))
				if err != nil && !errors.Is(err, ErrFull) && !errors.Is(err, ErrClosed) {
					t.Errorf("unexpected error: %v", err)
					return
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range q.Events() {
		}
	}()

	wg.Wait()
	q.Close()
	<-done
}
