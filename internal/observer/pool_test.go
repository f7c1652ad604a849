package observer

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wallsentry/wallsentry/internal/model"
)

type fakeBook struct {
	book model.OrderBook
	err  error
}

func (f *fakeBook) GetOrderBook(ctx context.Context, symbol string) (model.OrderBook, error) {
	return f.book, f.err
}

type fakePromoter struct {
	admitted []model.TrackedOrder
}

func (f *fakePromoter) Admit(ctx context.Context, order model.TrackedOrder) error {
	f.admitted = append(f.admitted, order)
	return nil
}

type fakeReleaser struct {
	excluded []string
	released []string
}

func (f *fakeReleaser) Exclude(symbol string) {
	f.excluded = append(f.excluded, symbol)
}

func (f *fakeReleaser) Release(symbol string) {
	f.released = append(f.released, symbol)
}

func candidate(symbol string, side model.Side, price, qty float64, at time.Time) model.WallCandidate {
	p := decimal.NewFromFloat(price)
	q := decimal.NewFromFloat(qty)
	return model.WallCandidate{
		Symbol:     symbol,
		Side:       side,
		Price:      p,
		Quantity:   q,
		Notional:   p.Mul(q),
		ObservedAt: at,
	}
}

func TestIngestMintsFingerprintOnFirstSight(t *testing.T) {
	promoter := &fakePromoter{}
	releaser := &fakeReleaser{}
	pool := New(promoter, releaser, 0.7, 60*time.Second, 10)

	fp := pool.Ingest(candidate("BTCUSDT", model.Ask, 51000, 5, time.Now()))
	if fp == "" {
		t.Fatalf("expected a non-empty fingerprint")
	}
	if pool.Stats().TrackedCount != 1 {
		t.Fatalf("expected 1 tracked order")
	}
}

func TestPromotionAfterLifetimeWithFullSurvival(t *testing.T) {
	promoter := &fakePromoter{}
	releaser := &fakeReleaser{}
	pool := New(promoter, releaser, 0.7, 60*time.Second, 10)

	start := time.Now().Add(-61 * time.Second)
	price := decimal.NewFromInt(51000)
	qty := decimal.NewFromFloat(5.0)
	fp := pool.Ingest(candidate("BTCUSDT", model.Ask, 51000, 5, start))
	order := pool.orderFor(fp)
	order.FirstSeen = start // simulate 61 elapsed seconds

	book := &fakeBook{book: model.OrderBook{
		Symbol:         "BTCUSDT",
		Asks:           []model.BookEntry{{Price: price, Quantity: qty}},
		PricePrecision: 2,
	}}

	if err := pool.ScanSymbol(context.Background(), "BTCUSDT", book); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(promoter.admitted) != 1 {
		t.Fatalf("expected order to be promoted, admitted=%d", len(promoter.admitted))
	}
	if pool.Stats().TrackedCount != 0 {
		t.Fatalf("promoted order must be removed from the observer index")
	}
}

func TestDisappearanceMarksDead(t *testing.T) {
	promoter := &fakePromoter{}
	releaser := &fakeReleaser{}
	pool := New(promoter, releaser, 0.7, 60*time.Second, 1)

	pool.Ingest(candidate("ADAUSDT", model.Bid, 0.45, 100000, time.Now()))

	emptyBook := &fakeBook{book: model.OrderBook{Symbol: "ADAUSDT", PricePrecision: 4}}
	if err := pool.ScanSymbol(context.Background(), "ADAUSDT", emptyBook); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pool.Stats().TrackedCount != 0 {
		t.Fatalf("expected fingerprint removed after disappearance")
	}
}

func TestVolumeLossDeath(t *testing.T) {
	promoter := &fakePromoter{}
	releaser := &fakeReleaser{}
	pool := New(promoter, releaser, 0.7, 60*time.Second, 10)

	pool.Ingest(candidate("ETHUSDT", model.Ask, 3250, 50.0, time.Now()))

	price := decimal.NewFromInt(3250)
	lowQty := decimal.NewFromFloat(10.0) // ratio 0.2 < 0.7
	book := &fakeBook{book: model.OrderBook{
		Symbol:         "ETHUSDT",
		Asks:           []model.BookEntry{{Price: price, Quantity: lowQty}},
		PricePrecision: 2,
	}}

	if err := pool.ScanSymbol(context.Background(), "ETHUSDT", book); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.Stats().TrackedCount != 0 {
		t.Fatalf("expected volume-loss death to remove the fingerprint")
	}
}

func TestResurrectionMintsNewFingerprint(t *testing.T) {
	promoter := &fakePromoter{}
	releaser := &fakeReleaser{}
	pool := New(promoter, releaser, 0.7, 60*time.Second, 10)

	first := pool.Ingest(candidate("ADAUSDT", model.Bid, 0.45, 100000, time.Now()))

	emptyBook := &fakeBook{book: model.OrderBook{Symbol: "ADAUSDT", PricePrecision: 4}}
	_ = pool.ScanSymbol(context.Background(), "ADAUSDT", emptyBook)

	second := pool.Ingest(candidate("ADAUSDT", model.Bid, 0.45, 100000, time.Now()))
	if first == second {
		t.Fatalf("reappearance after death must mint a new fingerprint")
	}
}

func TestCleanupReleasesSymbolAfterNEmptyScans(t *testing.T) {
	promoter := &fakePromoter{}
	releaser := &fakeReleaser{}
	pool := New(promoter, releaser, 0.7, 60*time.Second, 2)

	fp := pool.Ingest(candidate("XRPUSDT", model.Bid, 0.5, 1000, time.Now()))
	emptyBook := &fakeBook{book: model.OrderBook{Symbol: "XRPUSDT", PricePrecision: 4}}
	_ = pool.ScanSymbol(context.Background(), "XRPUSDT", emptyBook) // kills fp; the symbol is empty after processing, empty_scans=1
	_ = fp

	if len(releaser.released) != 0 {
		t.Fatalf("should not release before cleanup_scans empty scans accumulate")
	}

	_ = pool.ScanSymbol(context.Background(), "XRPUSDT", emptyBook) // empty_scans=2, hits cleanupScans=2 and releases
	_ = pool.ScanSymbol(context.Background(), "XRPUSDT", emptyBook) // symbol already dropped; a new countdown starts at 1
	if len(releaser.released) != 1 {
		t.Fatalf("expected symbol released after reaching cleanup_scans threshold, got %d releases", len(releaser.released))
	}
}
