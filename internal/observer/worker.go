package observer

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wallsentry/wallsentry/internal/model"
)

// BookSource is the subset of exchange.Client the scan loop needs.
// Kept as its own interface so tests can supply a fake book without
// depending on the exchange package.
type BookSource interface {
	GetOrderBook(ctx context.Context, symbol string) (model.OrderBook, error)
}

// Worker scans this pool's assigned symbols on a fixed cadence,
// applying the survival/death/promotion rules of §4.4. It implements
// workerpool.Worker.
type Worker struct {
	pool     *Pool
	book     BookSource
	interval time.Duration

	mu       sync.Mutex
	symbols  []string
	draining bool
}

func NewWorker(pool *Pool, book BookSource, interval time.Duration) *Worker {
	return &Worker{pool: pool, book: book, interval: interval}
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
				_ = w.pool.ScanSymbol(ctx, symbol, w.book)
			}
		}
	}
}

// ScanSymbol runs one observer cycle for a single symbol: fetch the
// book, apply the death/survival/promotion rule to each fingerprint
// owned by this symbol, then update the cleanup countdown.
func (p *Pool) ScanSymbol(ctx context.Context, symbol string, book BookSource) error {
	fingerprints := p.fingerprintsForSymbol(symbol)
	if len(fingerprints) == 0 {
		p.mu.Lock()
		released := p.releaseIfEmptyLocked(symbol)
		p.mu.Unlock()
		if released && p.exclusion != nil {
			p.exclusion.Release(symbol)
		}
		return nil
	}

	ob, err := book.GetOrderBook(ctx, symbol)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, fp := range fingerprints {
		order := p.orderFor(fp)
		if order == nil {
			continue
		}
		p.applyScan(ctx, order, ob, now)
	}

	p.mu.Lock()
	released := p.releaseIfEmptyLocked(symbol)
	p.mu.Unlock()

	if released && p.exclusion != nil {
		p.exclusion.Release(symbol)
	}
	return nil
}

// applyScan implements the per-fingerprint decision of §4.4 step 2:
// not present -> DEAD(disappeared); present below survival ratio ->
// DEAD(volume_loss); otherwise refresh and promote if old enough.
func (p *Pool) applyScan(ctx context.Context, order *model.TrackedOrder, ob model.OrderBook, now time.Time) {
	entry, found := findLevel(ob, order.Side, order.AnchorPrice, ob.PricePrecision)

	p.mu.Lock()
	if order.State != model.StateLive {
		p.mu.Unlock()
		return
	}
	if !found {
		p.markDeadLocked(order, model.CauseDisappeared)
		p.mu.Unlock()
		return
	}

	order.CurrentQuantity = entry.Quantity
	ratio := order.SurvivalRatio()
	if ratio < p.survivalRatio {
		p.markDeadLocked(order, model.CauseVolumeLoss)
		p.mu.Unlock()
		return
	}

	order.ScanCount++
	order.CurrentNotional = entry.Notional()
	order.LastSeen = now

	promote := now.Sub(order.FirstSeen) >= p.promoteAfter
	var promoted model.TrackedOrder
	if promote {
		promoted = p.promoteLocked(order)
	}
	p.mu.Unlock()

	if promote && p.hotPool != nil {
		// Admit blocks while the hot pool's queue is full —
		// promotions are never dropped.
		_ = p.hotPool.Admit(ctx, promoted)
	}
}

// findLevel locates the exact price level on the given side,
// normalizing both sides of the comparison to the venue's price
// precision per §4.4 — never raw float equality.
func findLevel(ob model.OrderBook, side model.Side, anchorPrice decimal.Decimal, precision int32) (model.BookEntry, bool) {
	for _, e := range ob.Side(side) {
		if model.SamePrice(e.Price, anchorPrice, precision) {
			return e, true
		}
	}
	return model.BookEntry{}, false
}
