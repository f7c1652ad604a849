package hotpool

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wallsentry/wallsentry/internal/model"
	"github.com/wallsentry/wallsentry/internal/weight"
)

type fakeBook struct{ book model.OrderBook }

func (f *fakeBook) GetOrderBook(ctx context.Context, symbol string) (model.OrderBook, error) {
	return f.book, nil
}

type fakeContext struct{ ctx model.MarketContext }

func (f *fakeContext) Get(ctx context.Context, symbol string) (model.MarketContext, error) {
	return f.ctx, nil
}

type recordingBroadcaster struct {
	deltas []model.BroadcastDelta
}

func (r *recordingBroadcaster) Publish(delta model.BroadcastDelta) {
	r.deltas = append(r.deltas, delta)
}

func trackedOrder(symbol string, side model.Side, price, qty float64) model.TrackedOrder {
	p := decimal.NewFromFloat(price)
	q := decimal.NewFromFloat(qty)
	now := time.Now().Add(-61 * time.Second)
	return model.TrackedOrder{
		Fingerprint:     model.Fingerprint("fp-" + symbol),
		Symbol:          symbol,
		Side:            side,
		AnchorPrice:     p,
		AnchorQuantity:  q,
		AnchorNotional:  p.Mul(q),
		FirstSeen:       now,
		LastSeen:        now,
		ScanCount:       1,
		CurrentQuantity: q,
		CurrentNotional: p.Mul(q),
		State:           model.StatePromoted,
	}
}

func TestAdmitAddsOrderToPool(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	engine := weight.New(model.AlgoHybrid)
	pool := New(engine, 64, 0.05, 0.05, time.Second, filepath.Join(t.TempDir(), "hot_orders.json"), broadcaster, nil)
	defer pool.Close()

	ctx := context.Background()
	if err := pool.Admit(ctx, trackedOrder("BTCUSDT", model.Ask, 51000, 5)); err != nil {
		t.Fatalf("admit failed: %v", err)
	}
	// admitLoop runs in its own goroutine; give it a moment to drain.
	time.Sleep(20 * time.Millisecond)

	if pool.Stats().TotalOrders != 1 {
		t.Fatalf("expected 1 admitted order")
	}
}

func TestRemoveOnDisappearance(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	engine := weight.New(model.AlgoHybrid)
	pool := New(engine, 64, 0.05, 0.05, time.Second, filepath.Join(t.TempDir(), "hot_orders.json"), broadcaster, nil)
	defer pool.Close()

	ctx := context.Background()
	order := trackedOrder("ADAUSDT", model.Bid, 0.45, 100000)
	_ = pool.Admit(ctx, order)
	time.Sleep(20 * time.Millisecond)

	emptyBook := &fakeBook{book: model.OrderBook{Symbol: "ADAUSDT", PricePrecision: 4}}
	mctx := &fakeContext{ctx: model.MarketContext{TimeOfDayFactor: 1, DayOfWeekFactor: 1, Temperature: model.TempWarm}}
	sig := newSignificanceChecker(0.05, 0.05)

	if err := pool.ScanSymbol(ctx, "ADAUSDT", emptyBook, mctx, sig); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	if pool.Stats().TotalOrders != 0 {
		t.Fatalf("expected HotOrder removed after disappearance at anchor price")
	}
}

func TestSignificanceCategoryChangeAlwaysSignificant(t *testing.T) {
	sig := newSignificanceChecker(0.05, 0.05)
	if !sig.check(0.50, 0.67, model.CategoryGold, model.CategoryDiamond, 1000, 1010) {
		t.Fatalf("category change should always be significant")
	}
}

func TestSignificanceSmallChangeNotSignificant(t *testing.T) {
	sig := newSignificanceChecker(0.05, 0.05)
	if sig.check(0.50, 0.51, model.CategoryGold, model.CategoryGold, 1000, 1010) {
		t.Fatalf("small weight/notional change within threshold should not be significant")
	}
}

func TestGrowthTrendDirections(t *testing.T) {
	mk := func(notionals ...float64) []model.Snapshot {
		var out []model.Snapshot
		for _, n := range notionals {
			out = append(out, model.Snapshot{Notional: decimal.NewFromFloat(n)})
		}
		return out
	}

	if got := growthTrend(mk(100, 100, 120)); got != model.TrendIncreasing {
		t.Fatalf("expected INC, got %s", got)
	}
	if got := growthTrend(mk(100, 90, 80)); got != model.TrendDecreasing {
		t.Fatalf("expected DEC, got %s", got)
	}
	if got := growthTrend(mk(100, 101, 99)); got != model.TrendStable {
		t.Fatalf("expected STABLE, got %s", got)
	}
	if got := growthTrend(mk(100)); got != model.TrendStable {
		t.Fatalf("insufficient history should default to STABLE, got %s", got)
	}
}

func TestPersistWritesAtomicallyAndIsReadable(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	engine := weight.New(model.AlgoHybrid)
	path := filepath.Join(t.TempDir(), "hot_orders.json")
	pool := New(engine, 64, 0.05, 0.05, time.Second, path, broadcaster, nil)
	defer pool.Close()

	_ = pool.Admit(context.Background(), trackedOrder("BTCUSDT", model.Ask, 51000, 5))
	time.Sleep(20 * time.Millisecond)

	persister := NewPersister(pool, "binance-futures", path, time.Second)
	if err := persister.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected readable snapshot file: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty snapshot file")
	}
}
