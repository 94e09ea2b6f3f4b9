package fabric

import (
	"context"
	"testing"
	"time"
)

func TestQueuePushPopPreservesOrder(t *testing.T) {
	q := NewQueue(4)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := q.Push(ctx, Envelope{Round: i}); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
	}

	for i := 0; i < 4; i++ {
		env, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("Pop(%d): %v", i, err)
		}
		if env.Round != i {
			t.Fatalf("expected round %d, got %d", i, env.Round)
		}
	}
}

func TestQueuePushBlocksWhileFullAndUnblocksOnPop(t *testing.T) {
	q := NewQueue(1)
	ctx := context.Background()

	if err := q.Push(ctx, Envelope{Round: 0}); err != nil {
		t.Fatalf("first Push: %v", err)
	}

	pushed := make(chan error, 1)
	go func() { pushed <- q.Push(ctx, Envelope{Round: 1}) }()

	select {
	case <-pushed:
		t.Fatal("Push should block while the queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	if _, err := q.Pop(ctx); err != nil {
		t.Fatalf("Pop: %v", err)
	}

	select {
	case err := <-pushed:
		if err != nil {
			t.Fatalf("blocked Push: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Push did not unblock after Pop freed capacity")
	}
}

func TestQueuePushReturnsContextErrOnCancel(t *testing.T) {
	q := NewQueue(1)
	if err := q.Push(context.Background(), Envelope{}); err != nil {
		t.Fatalf("fill Push: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := q.Push(ctx, Envelope{}); err != context.DeadlineExceeded {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestQueueCloseUnblocksWaitersWithErrQueueClosed(t *testing.T) {
	q := NewQueue(1)
	popped := make(chan error, 1)
	go func() {
		_, err := q.Pop(context.Background())
		popped <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-popped:
		if err != ErrQueueClosed {
			t.Fatalf("expected ErrQueueClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after Close")
	}

	if err := q.Push(context.Background(), Envelope{}); err != ErrQueueClosed {
		t.Fatalf("expected Push on a closed queue to return ErrQueueClosed, got %v", err)
	}
}
