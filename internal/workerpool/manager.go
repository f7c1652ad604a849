// Package workerpool implements the adaptive worker manager (C8): a
// staircase load->worker-count mapping, deterministic round-robin
// symbol distribution, and scale-up/scale-down with draining.
package workerpool

import (
	"context"
	"log"
	"sort"
	"sync"
)

// Worker is anything the manager can start, stop (drain), and hand a
// symbol assignment to. Observer and hot-pool workers implement this.
type Worker interface {
	// Assign replaces this worker's symbol set atomically.
	Assign(symbols []string)
	// Run processes this worker's assigned symbols until ctx is
	// cancelled or Drain is called; it must finish its current
	// inflight symbol before returning.
	Run(ctx context.Context)
	// Drain asks the worker to stop after its current inflight
	// symbol completes.
	Drain()
}

// Staircase maps a load threshold to the worker count that should be
// active at or above it, e.g. {5:1, 10:2, 15:3}.
type Staircase map[int]int

// Manager owns a set of workers, resizing the active subset based on
// load and redistributing symbols across it.
type Manager struct {
	mu         sync.Mutex
	factory    func() Worker
	staircase  Staircase
	minWorkers int
	maxWorkers int

	workers []Worker
	cancels []context.CancelFunc
	dones   []chan struct{}
	ctx     context.Context
}

func New(ctx context.Context, factory func() Worker, staircase Staircase, minWorkers, maxWorkers int) *Manager {
	m := &Manager{
		ctx:        ctx,
		factory:    factory,
		staircase:  staircase,
		minWorkers: minWorkers,
		maxWorkers: maxWorkers,
	}
	m.scaleTo(minWorkers)
	return m
}

// ResizeForLoad picks the largest staircase threshold <= n and scales
// to its worker count, bounded by [minWorkers, maxWorkers].
func (m *Manager) ResizeForLoad(n int) {
	target := m.minWorkers
	best := -1
	for threshold, count := range m.staircase {
		if threshold <= n && threshold > best {
			best = threshold
			target = count
		}
	}
	if target < m.minWorkers {
		target = m.minWorkers
	}
	if target > m.maxWorkers {
		target = m.maxWorkers
	}
	m.scaleTo(target)
}

func (m *Manager) scaleTo(target int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := len(m.workers)
	if target == current {
		return
	}

	if target > current {
		for i := current; i < target; i++ {
			w := m.factory()
			wctx, cancel := context.WithCancel(m.ctx)
			done := make(chan struct{})
			m.workers = append(m.workers, w)
			m.cancels = append(m.cancels, cancel)
			m.dones = append(m.dones, done)
			go func() {
				defer close(done)
				for {
					panicked := func() (panicked bool) {
						defer func() {
							if r := recover(); r != nil {
								log.Printf("⚠️  workerpool: worker panicked, restarting: %v", r)
								panicked = true
							}
						}()
						w.Run(wctx)
						return false
					}()
					if !panicked || wctx.Err() != nil {
						return
					}
				}
			}()
		}
		log.Printf("🧵 workerpool: scaled up %d -> %d", current, target)
		return
	}

	// scale-down: ask trailing workers to drain and let each finish
	// its current inflight symbol on its own before its context is
	// cancelled — cancelling eagerly would abort in-flight I/O.
	for i := target; i < current; i++ {
		w := m.workers[i]
		cancel := m.cancels[i]
		done := m.dones[i]
		w.Drain()
		go func() {
			<-done
			cancel()
		}()
	}
	m.workers = m.workers[:target]
	m.cancels = m.cancels[:target]
	m.dones = m.dones[:target]
	log.Printf("🧵 workerpool: scaled down %d -> %d", current, target)
}

// Distribute deterministically round-robin-partitions symbols across
// the current worker set and replaces each worker's assignment
// atomically. A worker never receives another worker's symbols.
func (m *Manager) Distribute(symbols []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.workers) == 0 {
		return
	}

	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)

	buckets := make([][]string, len(m.workers))
	for i, s := range sorted {
		idx := i % len(m.workers)
		buckets[idx] = append(buckets[idx], s)
	}
	for i, w := range m.workers {
		w.Assign(buckets[i])
	}
}

// WorkerCount returns the number of currently active workers.
func (m *Manager) WorkerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers)
}

// Shutdown drains and cancels every active worker.
func (m *Manager) Shutdown() {
	m.scaleTo(0)
}
