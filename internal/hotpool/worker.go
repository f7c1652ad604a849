package hotpool

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wallsentry/wallsentry/internal/model"
	"github.com/wallsentry/wallsentry/internal/weight"
)

// Worker re-evaluates this pool's assigned symbols on a fixed
// cadence (I_hot_min between cycles). It implements
// workerpool.Worker.
type Worker struct {
	pool     *Pool
	book     BookSource
	context  ContextSource
	sig      *significanceChecker
	interval time.Duration

	mu       sync.Mutex
	symbols  []string
	draining bool
}

func NewWorker(pool *Pool, book BookSource, ctxSource ContextSource, interval time.Duration) *Worker {
	return &Worker{
		pool:     pool,
		book:     book,
		context:  ctxSource,
		sig:      newSignificanceChecker(pool.weightChangeThreshold, pool.notionalChangeThreshold),
		interval: interval,
	}
}

func (w *Worker) Assign(symbols []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.symbols = symbols
}

func (w *Worker) Drain() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draining = true
}

func (w *Worker) assignedSymbols() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.symbols...)
}

func (w *Worker) isDraining() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draining
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.isDraining() {
				return
			}
			for _, symbol := range w.assignedSymbols() {
				_ = w.pool.ScanSymbol(ctx, symbol, w.book, w.context, w.sig)
			}
		}
	}
}

// ScanSymbol runs one hot-pool cycle for a symbol: fetch book +
// market context once, then update each HotOrder resting on that
// symbol per §4.5 step 2.
func (p *Pool) ScanSymbol(ctx context.Context, symbol string, book BookSource, ctxSource ContextSource, sig *significanceChecker) error {
	fingerprints := p.fingerprintsForSymbol(symbol)
	if len(fingerprints) == 0 {
		return nil
	}

	ob, err := book.GetOrderBook(ctx, symbol)
	if err != nil {
		return err
	}
	marketCtx, err := ctxSource.Get(ctx, symbol)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, fp := range fingerprints {
		p.updateOne(fp, ob, marketCtx, now, sig)
	}
	return nil
}

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

// updateOne applies §4.5 step 2 to a single HotOrder: locate the
// price level, remove on disappearance, otherwise refresh its
// snapshot history, trend, stability and weight-engine output, then
// publish a delta if the change is significant.
func (p *Pool) updateOne(fp model.Fingerprint, ob model.OrderBook, marketCtx model.MarketContext, now time.Time, sig *significanceChecker) {
	p.mu.Lock()
	hot, ok := p.byFingerprint[fp]
	p.mu.Unlock()
	if !ok {
		return
	}

	entry, found := findLevel(ob, hot.Side, hot.AnchorPrice, ob.PricePrecision)
	if !found {
		p.remove(fp, hot)
		return
	}

	prevWeight := hot.Weight.RecommendedWeight
	prevCategory := hot.Weight.RecommendedCategory
	prevNotional, _ := hot.CurrentNotional.Float64()

	p.mu.Lock()
	hot.CurrentQuantity = entry.Quantity
	hot.CurrentNotional = entry.Notional()
	hot.ScanCount++
	hot.LastSeen = now
	hot.LifetimeSeconds = now.Sub(hot.FirstSeen).Seconds()
	hot.DistancePercent = distancePercent(entry.Price, referencePrice(ob, hot.Side))
	hot.Context = marketCtx

	hot.History = append(hot.History, model.Snapshot{
		At:              now,
		Price:           entry.Price,
		Quantity:        entry.Quantity,
		Notional:        entry.Notional(),
		DistancePercent: hot.DistancePercent,
	})
	if snapCap := p.snapshotCap; snapCap > 0 && len(hot.History) > snapCap {
		hot.History = hot.History[len(hot.History)-snapCap:]
	}

	hot.GrowthTrend = growthTrend(hot.History)
	hot.StabilityScore = stabilityScore(hot.History)

	sizeVsAverage := 0.0
	if !hot.AnchorNotional.IsZero() {
		sizeVsAverage, _ = hot.CurrentNotional.Div(hot.AnchorNotional).Float64()
	}
	priceF, _ := entry.Price.Float64()
	_, roundDist, isRound := model.NearestRoundLevel(priceF)

	hot.Weight = p.engine.Compute(weight.Input{
		LifetimeMinutes:    hot.LifetimeSeconds / 60,
		ScanCount:          hot.ScanCount,
		SizeVsAverage:      sizeVsAverage,
		IsRoundLevel:       isRound,
		RoundLevelDistance: roundDist,
		Context:            marketCtx,
	})
	p.dirty = true
	p.mu.Unlock()

	notionalF, _ := hot.CurrentNotional.Float64()
	significant := sig.check(prevWeight, hot.Weight.RecommendedWeight, prevCategory, hot.Weight.RecommendedCategory, prevNotional, notionalF)
	if significant && p.broadcaster != nil {
		p.broadcaster.Publish(model.BroadcastDelta{Kind: model.DeltaFull, Event: model.HotUpdate, Order: hot})
	}
}

func (p *Pool) remove(fp model.Fingerprint, hot *model.HotOrder) {
	p.mu.Lock()
	delete(p.byFingerprint, fp)
	if set := p.bySymbol[hot.Symbol]; set != nil {
		delete(set, fp)
	}
	p.dirty = true
	p.mu.Unlock()

	if p.broadcaster != nil {
		p.broadcaster.Publish(model.BroadcastDelta{Kind: model.DeltaFull, Event: model.HotRemove, Order: hot})
	}
}

// findLevel locates the exact price level on the given side,
// normalizing both sides of the comparison to the venue's price
// precision per §4.4.
func findLevel(ob model.OrderBook, side model.Side, anchorPrice decimal.Decimal, precision int32) (model.BookEntry, bool) {
	for _, e := range ob.Side(side) {
		if model.SamePrice(e.Price, anchorPrice, precision) {
			return e, true
		}
	}
	return model.BookEntry{}, false
}

// referencePrice uses the best price on the order's own side as the
// distance reference. (The wall detector's distance uses the last
// traded price its caller passes in instead.)
func referencePrice(ob model.OrderBook, side model.Side) decimal.Decimal {
	entries := ob.Side(side)
	if len(entries) == 0 {
		return decimal.Zero
	}
	return entries[0].Price
}

func distancePercent(price, reference decimal.Decimal) float64 {
	if reference.IsZero() {
		return 0
	}
	diff := price.Sub(reference).Abs()
	pct, _ := diff.Div(reference).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

// growthTrend compares the mean of the last 3 snapshot notionals to
// the first of those three. Needs at least 3 snapshots; otherwise
// there isn't enough history to call a direction.
func growthTrend(history []model.Snapshot) model.GrowthTrend {
	if len(history) < 3 {
		return model.TrendStable
	}
	last3 := history[len(history)-3:]
	first := mustFloat(last3[0].Notional)
	if first == 0 {
		return model.TrendStable
	}
	mean := (mustFloat(last3[0].Notional) + mustFloat(last3[1].Notional) + mustFloat(last3[2].Notional)) / 3
	ratio := mean / first
	switch {
	case ratio > 1.05:
		return model.TrendIncreasing
	case ratio < 0.95:
		return model.TrendDecreasing
	default:
		return model.TrendStable
	}
}

// stabilityScore is the inverted, clamped coefficient of variation of
// the notional history: max(0, 1 - sigma/mu).
func stabilityScore(history []model.Snapshot) float64 {
	if len(history) == 0 {
		return 0
	}
	values := make([]float64, len(history))
	for i, s := range history {
		values[i] = mustFloat(s.Notional)
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	sigma := math.Sqrt(variance)
	score := 1 - sigma/mean
	if score < 0 {
		return 0
	}
	return score
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
