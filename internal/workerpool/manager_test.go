package workerpool

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeWorker struct {
	mu       sync.Mutex
	assigned []string
	draining bool
}

func (f *fakeWorker) Assign(symbols []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned = symbols
}

func (f *fakeWorker) Run(ctx context.Context) {
	<-ctx.Done()
}

func (f *fakeWorker) Drain() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draining = true
}

func TestResizeForLoadPicksLargestApplicableThreshold(t *testing.T) {
	var created []*fakeWorker
	var mu sync.Mutex
	factory := func() Worker {
		w := &fakeWorker{}
		mu.Lock()
		created = append(created, w)
		mu.Unlock()
		return w
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := New(ctx, factory, Staircase{5: 1, 10: 2, 15: 3}, 1, 3)
	if m.WorkerCount() != 1 {
		t.Fatalf("expected 1 worker at start, got %d", m.WorkerCount())
	}

	m.ResizeForLoad(12)
	if m.WorkerCount() != 2 {
		t.Fatalf("load 12 should land on threshold 10 -> 2 workers, got %d", m.WorkerCount())
	}

	m.ResizeForLoad(20)
	if m.WorkerCount() != 3 {
		t.Fatalf("load 20 should land on threshold 15 -> 3 workers, got %d", m.WorkerCount())
	}

	m.ResizeForLoad(0)
	if m.WorkerCount() != 1 {
		t.Fatalf("load 0 should floor at minWorkers=1, got %d", m.WorkerCount())
	}
}

func TestDistributeIsDeterministicAndDisjoint(t *testing.T) {
	factory := func() Worker { return &fakeWorker{} }
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := New(ctx, factory, Staircase{}, 3, 3)
	symbols := []string{"BTCUSDT", "ETHUSDT", "ADAUSDT", "SOLUSDT", "DOGEUSDT"}
	m.Distribute(symbols)

	seen := map[string]int{}
	for i, w := range m.workers {
		fw := w.(*fakeWorker)
		for _, s := range fw.assigned {
			seen[s]++
			_ = i
		}
	}
	if len(seen) != len(symbols) {
		t.Fatalf("expected all %d symbols assigned exactly once, got %d distinct", len(symbols), len(seen))
	}
	for s, count := range seen {
		if count != 1 {
			t.Fatalf("symbol %s assigned to %d workers, want exactly 1", s, count)
		}
	}

	m2 := New(ctx, factory, Staircase{}, 3, 3)
	m2.Distribute(symbols)
	for i := range m.workers {
		a := m.workers[i].(*fakeWorker).assigned
		b := m2.workers[i].(*fakeWorker).assigned
		if len(a) != len(b) {
			t.Fatalf("distribute is not deterministic across equivalent runs")
		}
	}
}

func TestScaleDownDrainsTrailingWorkers(t *testing.T) {
	factory := func() Worker { return &fakeWorker{} }
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := New(ctx, factory, Staircase{}, 3, 3)
	third := m.workers[2].(*fakeWorker)
	m.scaleTo(1)
	time.Sleep(10 * time.Millisecond)
	third.mu.Lock()
	defer third.mu.Unlock()
	if !third.draining {
		t.Fatalf("expected trailing worker to be drained on scale-down")
	}
}
