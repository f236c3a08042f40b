package taskpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsTasks(t *testing.T) {
	p := New(2)
	defer p.Close()

	var done atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		if err := p.Submit(context.Background(), func() {
			done.Add(1)
			wg.Done()
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()

	if got := done.Load(); got != 50 {
		t.Fatalf("ran %d tasks, want 50", got)
	}
}

func TestPoolCloseDrainsAcceptedWork(t *testing.T) {
	p := New(1)

	var done atomic.Int32
	block := make(chan struct{})
	if err := p.Submit(context.Background(), func() {
		<-block
		done.Add(1)
	}); err != nil {
		t.Fatal(err)
	}
	// This one sits in the queue behind the blocker.
	if err := p.Submit(context.Background(), func() { done.Add(1) }); err != nil {
		t.Fatal(err)
	}

	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()

	close(block)
	<-closed

	if got := done.Load(); got != 2 {
		t.Fatalf("ran %d tasks, want 2", got)
	}
}

func TestPoolSubmitAfterClose(t *testing.T) {
	p := New(1)
	p.Close()

	err := p.Submit(context.Background(), func() {
		t.Fatal("task ran after close")
	})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("Submit after Close = %v, want ErrClosed", err)
	}
}

func TestPoolCloseIdempotent(t *testing.T) {
	p := New(1)
	p.Close()
	p.Close()
}

func TestPoolSubmitContextCancel(t *testing.T) {
	p := New(1)
	defer p.Close()

	// Fill the worker and the queue so Submit blocks.
	block := make(chan struct{})
	defer close(block)
	_ = p.Submit(context.Background(), func() { <-block })
	for i := 0; i < cap(p.workCh); i++ {
		_ = p.Submit(context.Background(), func() {})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Submit(ctx, func() {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Submit on full queue = %v, want DeadlineExceeded", err)
	}
}

func TestPoolDefaultWorkers(t *testing.T) {
	p := New(0)
	defer p.Close()

	if p.numWorkers <= 0 {
		t.Fatalf("numWorkers = %d, want > 0", p.numWorkers)
	}
}
