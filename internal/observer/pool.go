// Package observer implements the observer pool (C5): per-order
// lifecycle tracking with ingestion, survival/disappearance/promotion
// rules, and symbol ownership handed back to the general scanner once
// a symbol's last tracked order is gone.
package observer

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/wallsentry/wallsentry/internal/model"
)

// Promoter is how the observer pool hands a promoted order to the hot
// pool. Admit must block while its queue is full — promotions are
// never dropped.
type Promoter interface {
	Admit(ctx context.Context, order model.TrackedOrder) error
}

// ExclusionReleaser is how the observer pool takes and returns a
// symbol's ownership from the general scanner: Exclude the moment a
// tracked order is minted for it, Release once ownership ends.
type ExclusionReleaser interface {
	Exclude(symbol string)
	Release(symbol string)
}

// PricePrecisionSource resolves a symbol's venue price precision so
// price comparisons normalize to ticks rather than raw floats.
type PricePrecisionSource interface {
	GetPricePrecision(ctx context.Context, symbol string) (int32, error)
}

const defaultDeadRingCap = 1000

// Pool is the observer pool's shared state. All mutation goes through
// mu, which is the "per-pool lock" the design notes call for: ingest
// calls from C3/C4 and scan updates from C5's own workers are
// serialized through it.
type Pool struct {
	mu            sync.Mutex
	byFingerprint map[model.Fingerprint]*model.TrackedOrder
	bySymbol      map[string]map[model.Fingerprint]struct{}
	emptyScans    map[string]int
	deadRing      []model.TrackedOrder

	survivalRatio float64
	promoteAfter  time.Duration
	cleanupScans  int
	deadRingCap   int

	hotPool   Promoter
	exclusion ExclusionReleaser
}

func New(hotPool Promoter, exclusion ExclusionReleaser, survivalRatio float64, promoteAfter time.Duration, cleanupScans int) *Pool {
	return &Pool{
		byFingerprint: make(map[model.Fingerprint]*model.TrackedOrder),
		bySymbol:      make(map[string]map[model.Fingerprint]struct{}),
		emptyScans:    make(map[string]int),
		survivalRatio: survivalRatio,
		promoteAfter:  promoteAfter,
		cleanupScans:  cleanupScans,
		deadRingCap:   defaultDeadRingCap,
		hotPool:       hotPool,
		exclusion:     exclusion,
	}
}

// Ingest admits a WallCandidate. If no existing TrackedOrder shares
// (symbol, side, price, quantity) it mints a fingerprint, inserts a
// new LIVE order, and excludes the symbol from the general scanner's
// rotation right away — regardless of whether the primary scanner or
// the general scanner itself is the caller. Otherwise it just
// refreshes last_seen on the matching order.
func (p *Pool) Ingest(candidate model.WallCandidate) model.Fingerprint {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := candidate.ObservedAt
	if now.IsZero() {
		now = time.Now()
	}

	if existing := p.findMatchLocked(candidate); existing != nil {
		existing.LastSeen = now
		return existing.Fingerprint
	}

	fp := mintFingerprint(candidate.Symbol, candidate.Side, candidate.Price, candidate.Quantity, now)
	order := &model.TrackedOrder{
		Fingerprint:     fp,
		Symbol:          candidate.Symbol,
		Side:            candidate.Side,
		AnchorPrice:     candidate.Price,
		AnchorQuantity:  candidate.Quantity,
		AnchorNotional:  candidate.Notional,
		FirstSeen:       now,
		LastSeen:        now,
		ScanCount:       1,
		CurrentQuantity: candidate.Quantity,
		CurrentNotional: candidate.Notional,
		State:           model.StateLive,
	}
	p.byFingerprint[fp] = order
	if p.bySymbol[candidate.Symbol] == nil {
		p.bySymbol[candidate.Symbol] = make(map[model.Fingerprint]struct{})
	}
	p.bySymbol[candidate.Symbol][fp] = struct{}{}
	p.emptyScans[candidate.Symbol] = 0

	if p.exclusion != nil {
		p.exclusion.Exclude(candidate.Symbol)
	}

	return fp
}

func (p *Pool) findMatchLocked(candidate model.WallCandidate) *model.TrackedOrder {
	for fp := range p.bySymbol[candidate.Symbol] {
		o := p.byFingerprint[fp]
		if o == nil || o.State != model.StateLive {
			continue
		}
		if o.Side == candidate.Side && o.AnchorPrice.Equal(candidate.Price) && o.AnchorQuantity.Equal(candidate.Quantity) {
			return o
		}
	}
	return nil
}

// ScanResult is what ScanSymbol reports back for observability/tests.
type ScanResult struct {
	Symbol    string
	Promoted  int
	Died      int
	StillLive int
	Released  bool
}

// OwnedSymbols returns the symbols this pool currently holds at least
// one TrackedOrder for.
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

// Stats is an aggregate count snapshot for monitoring callers and
// tests (a supplemented feature carried over from the reference's
// get_stats()). The fan-out server does not read it.
type Stats struct {
	TrackedCount int
	OwnedSymbols int
	DeadRetained int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	owned := 0
	for _, fps := range p.bySymbol {
		if len(fps) > 0 {
			owned++
		}
	}
	return Stats{
		TrackedCount: len(p.byFingerprint),
		OwnedSymbols: owned,
		DeadRetained: len(p.deadRing),
	}
}

func (p *Pool) markDeadLocked(order *model.TrackedOrder, cause model.CauseOfDeath) {
	order.State = model.StateDead
	order.CauseOfDeath = cause
	delete(p.byFingerprint, order.Fingerprint)
	if set := p.bySymbol[order.Symbol]; set != nil {
		delete(set, order.Fingerprint)
	}
	p.deadRing = append(p.deadRing, *order)
	if len(p.deadRing) > p.deadRingCap {
		drop := len(p.deadRing) - p.deadRingCap
		p.deadRing = p.deadRing[drop:]
	}
	log.Printf("☠️  %s %s fingerprint=%s cause=%s", order.Symbol, order.Side, order.Fingerprint, cause)
}

func (p *Pool) promoteLocked(order *model.TrackedOrder) model.TrackedOrder {
	order.State = model.StatePromoted
	delete(p.byFingerprint, order.Fingerprint)
	if set := p.bySymbol[order.Symbol]; set != nil {
		delete(set, order.Fingerprint)
	}
	log.Printf("🐳 %s %s fingerprint=%s PROMOTED lifetime=%.0fs", order.Symbol, order.Side, order.Fingerprint, order.LifetimeSeconds(order.LastSeen))
	return *order
}

// fingerprintsForSymbol snapshots the live fingerprints for a symbol
// so the caller can fetch the book and iterate without holding the
// lock; ScanSymbol calls it before the book fetch.
func (p *Pool) fingerprintsForSymbol(symbol string) []model.Fingerprint {
	p.mu.Lock()
	defer p.mu.Unlock()
	set := p.bySymbol[symbol]
	out := make([]model.Fingerprint, 0, len(set))
	for fp := range set {
		out = append(out, fp)
	}
	return out
}

func (p *Pool) orderFor(fp model.Fingerprint) *model.TrackedOrder {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.byFingerprint[fp]
}

func (p *Pool) releaseIfEmptyLocked(symbol string) bool {
	if len(p.bySymbol[symbol]) > 0 {
		p.emptyScans[symbol] = 0
		return false
	}
	p.emptyScans[symbol]++
	if p.emptyScans[symbol] < p.cleanupScans {
		return false
	}
	delete(p.bySymbol, symbol)
	delete(p.emptyScans, symbol)
	return true
}
