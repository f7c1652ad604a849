// Package hotpool implements the hot pool (C6): admits promoted
// orders, re-evaluates them at a bounded cadence, computes weights
// and categories via the weight engine, atomically persists the
// catalog, and pushes broadcast deltas to the fan-out server.
package hotpool

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/wallsentry/wallsentry/internal/model"
	"github.com/wallsentry/wallsentry/internal/weight"
)

// Broadcaster receives deltas in the order their underlying state
// changes occurred. It must never drop a delta for remaining
// subscribers — only a slow individual subscriber may be dropped, and
// that is the fan-out server's concern, not the caller's.
type Broadcaster interface {
	Publish(delta model.BroadcastDelta)
}

// ContextSource resolves the current MarketContext for a symbol.
type ContextSource interface {
	Get(ctx context.Context, symbol string) (model.MarketContext, error)
}

// BookSource is the subset of exchange.Client the hot pool needs.
type BookSource interface {
	GetOrderBook(ctx context.Context, symbol string) (model.OrderBook, error)
}

// Excluder is how the hot pool keeps a symbol out of the general
// scanner's rotation for as long as it holds a HotOrder for it —
// independent of whatever the observer pool's own bookkeeping for
// that symbol does in the same moment a promotion empties it.
type Excluder interface {
	Exclude(symbol string)
}

const admitQueueCapacity = 256

// Pool holds every HotOrder until it disappears at its anchor price.
type Pool struct {
	mu            sync.Mutex
	byFingerprint map[model.Fingerprint]*model.HotOrder
	bySymbol      map[string]map[model.Fingerprint]struct{}

	admitCh chan model.TrackedOrder

	engine      *weight.Engine
	snapshotCap int

	weightChangeThreshold   float64
	notionalChangeThreshold float64

	flushMinInterval time.Duration
	persistPath      string
	lastFlush        time.Time
	dirty            bool

	broadcaster Broadcaster
	exclusion   Excluder

	closeOnce sync.Once
	closed    chan struct{}
}

func New(engine *weight.Engine, snapshotCap int, weightChangeThreshold, notionalChangeThreshold float64, flushMinInterval time.Duration, persistPath string, broadcaster Broadcaster, exclusion Excluder) *Pool {
	p := &Pool{
		byFingerprint:           make(map[model.Fingerprint]*model.HotOrder),
		bySymbol:                make(map[string]map[model.Fingerprint]struct{}),
		admitCh:                 make(chan model.TrackedOrder, admitQueueCapacity),
		engine:                  engine,
		snapshotCap:             snapshotCap,
		weightChangeThreshold:   weightChangeThreshold,
		notionalChangeThreshold: notionalChangeThreshold,
		flushMinInterval:        flushMinInterval,
		persistPath:             persistPath,
		broadcaster:             broadcaster,
		exclusion:               exclusion,
		closed:                  make(chan struct{}),
	}
	go p.admitLoop()
	return p
}

// Admit enqueues a freshly promoted order. It blocks while the admit
// queue is full — promotions are never dropped — until ctx is
// cancelled.
func (p *Pool) Admit(ctx context.Context, order model.TrackedOrder) error {
	select {
	case p.admitCh <- order:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closed:
		return nil
	}
}

func (p *Pool) admitLoop() {
	for {
		select {
		case order := <-p.admitCh:
			p.insert(order)
		case <-p.closed:
			return
		}
	}
}

func (p *Pool) insert(order model.TrackedOrder) {
	p.mu.Lock()
	hot := &model.HotOrder{
		TrackedOrder:    order,
		LifetimeSeconds: time.Since(order.FirstSeen).Seconds(),
	}
	p.byFingerprint[order.Fingerprint] = hot
	if p.bySymbol[order.Symbol] == nil {
		p.bySymbol[order.Symbol] = make(map[model.Fingerprint]struct{})
	}
	p.bySymbol[order.Symbol][order.Fingerprint] = struct{}{}
	p.dirty = true
	p.mu.Unlock()

	if p.exclusion != nil {
		p.exclusion.Exclude(order.Symbol)
	}

	log.Printf("🔥 %s %s fingerprint=%s admitted to hot pool", order.Symbol, order.Side, order.Fingerprint)

	if p.broadcaster != nil {
		p.broadcaster.Publish(model.BroadcastDelta{Kind: model.DeltaFull, Event: model.HotAdmit, Order: hot})
	}
}

// OwnedSymbols returns the symbols currently holding at least one
// HotOrder — these remain in C4's exclusion set per §3.
func (p *Pool) OwnedSymbols() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.bySymbol))
	for s, fps := range p.bySymbol {
		if len(fps) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// Stats is an aggregate snapshot for monitoring callers and tests. The
// fan-out server does not read it.
type Stats struct {
	TotalOrders     int
	ActiveSymbols   int
	PerCategory     map[model.Category]int
	AverageLifetime float64
	AverageWeight   float64
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	perCategory := map[model.Category]int{}
	var sumLifetime, sumWeight float64
	for _, h := range p.byFingerprint {
		perCategory[h.Weight.RecommendedCategory]++
		sumLifetime += h.LifetimeSeconds
		sumWeight += h.Weight.RecommendedWeight
	}
	n := len(p.byFingerprint)
	stats := Stats{TotalOrders: n, PerCategory: perCategory}
	if n > 0 {
		stats.AverageLifetime = sumLifetime / float64(n)
		stats.AverageWeight = sumWeight / float64(n)
	}
	owned := 0
	for _, fps := range p.bySymbol {
		if len(fps) > 0 {
			owned++
		}
	}
	stats.ActiveSymbols = owned
	return stats
}

// Snapshot returns every HotOrder sorted by recommended weight
// descending, the order the persisted artifact and the private
// fan-out tier both use.
func (p *Pool) Snapshot() []model.HotOrder {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.HotOrder, 0, len(p.byFingerprint))
	for _, h := range p.byFingerprint {
		out = append(out, *h)
	}
	sortByRecommendedWeightDesc(out)
	return out
}

func sortByRecommendedWeightDesc(orders []model.HotOrder) {
	for i := 1; i < len(orders); i++ {
		for j := i; j > 0 && orders[j].Weight.RecommendedWeight > orders[j-1].Weight.RecommendedWeight; j-- {
			orders[j], orders[j-1] = orders[j-1], orders[j]
		}
	}
}

// Close stops the admit loop. Safe to call once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.closed) })
}
