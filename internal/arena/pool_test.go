package arena

import (
	"sync"
	"testing"
)

func TestScratchPoolAcquireRelease(t *testing.T) {
	p, err := NewScratchPool(2, 1024, 1024)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Free()

	a1 := p.Acquire()
	a2 := p.Acquire()
	if a1 == a2 {
		t.Fatal("pool handed out the same arena twice")
	}
	if a1 == p.overflow || a2 == p.overflow {
		t.Fatal("pooled acquire returned the overflow arena")
	}

	// Third concurrent caller spills into overflow.
	a3 := p.Acquire()
	if a3 != p.overflow {
		t.Fatal("exhausted pool did not return the overflow arena")
	}
	if got := p.OverflowAcquires(); got != 1 {
		t.Fatalf("OverflowAcquires = %d, want 1", got)
	}

	p.Release(a3)
	p.Release(a1)
	p.Release(a2)

	// Released arenas are reusable.
	b1 := p.Acquire()
	if b1 == p.overflow {
		t.Fatal("pool arena not returned after release")
	}
	p.Release(b1)
}

func TestScratchPoolReleaseResets(t *testing.T) {
	p, err := NewScratchPool(1, 1024, 1024)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Free()

	a := p.Acquire()
	if _, err := a.AllocBytes(100); err != nil {
		t.Fatal(err)
	}
	p.Release(a)

	b := p.Acquire()
	if b != a {
		t.Fatal("single-arena pool returned a different arena")
	}
	if got := b.Used(); got != 0 {
		t.Fatalf("Used after release = %d, want 0", got)
	}
	p.Release(b)
}

func TestScratchPoolOverflowSharedReset(t *testing.T) {
	p, err := NewScratchPool(1, 1024, 1024)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Free()

	pooled := p.Acquire()

	o1 := p.Acquire()
	o2 := p.Acquire()
	if o1 != p.overflow || o2 != p.overflow {
		t.Fatal("expected both spill acquisitions to share the overflow arena")
	}

	if _, err := o1.AllocBytes(100); err != nil {
		t.Fatal(err)
	}

	// First release must not reset: o2 still holds allocations.
	p.Release(o1)
	if got := p.overflow.Used(); got == 0 {
		t.Fatal("overflow reset while a user remained")
	}

	p.Release(o2)
	if got := p.overflow.Used(); got != 0 {
		t.Fatalf("overflow Used after last release = %d, want 0", got)
	}

	p.Release(pooled)
}

func TestScratchPoolConcurrent(t *testing.T) {
	p, err := NewScratchPool(4, 4096, 4096)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Free()

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				a := p.Acquire()
				if _, err := a.AllocBytes(256); err != nil {
					t.Errorf("AllocBytes: %v", err)
				}
				p.Release(a)
			}
		}()
	}
	wg.Wait()
}

func TestScratchPoolFreeStopsHandouts(t *testing.T) {
	p, err := NewScratchPool(2, 1024, 1024)
	if err != nil {
		t.Fatal(err)
	}
	p.Free()

	// A freed pool must never hand out a pooled arena again; the spill
	// path it falls back to cannot allocate but also cannot panic.
	a := p.Acquire()
	if a != p.overflow {
		t.Fatal("freed pool handed out a pooled arena")
	}
	if _, err := a.AllocBytes(10); err == nil {
		t.Fatal("allocation from a freed pool succeeded")
	}
	p.Release(a)
}

func TestScratchPoolNilRelease(t *testing.T) {
	p, err := NewScratchPool(1, 1024, 1024)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Free()

	p.Release(nil) // must not panic
}
