package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wallsentry/wallsentry/internal/detector"
	"github.com/wallsentry/wallsentry/internal/exchange"
	"github.com/wallsentry/wallsentry/internal/model"
)

type fakeClient struct {
	symbols []string
	books   map[string]model.OrderBook
	last    map[string]decimal.Decimal
	stats   map[string]exchange.Stats24h
}

func (f *fakeClient) GetFuturesSymbols(ctx context.Context) ([]string, error) {
	return f.symbols, nil
}

func (f *fakeClient) Get24hStats(ctx context.Context, symbols []string) (map[string]exchange.Stats24h, error) {
	return f.stats, nil
}

func (f *fakeClient) GetTopByQuoteVolume(ctx context.Context, n int) ([]string, error) {
	if n < len(f.symbols) {
		return f.symbols[:n], nil
	}
	return f.symbols, nil
}

func (f *fakeClient) GetOrderBook(ctx context.Context, symbol string, depth int) (model.OrderBook, error) {
	return f.books[symbol], nil
}

func (f *fakeClient) GetLastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return f.last[symbol], nil
}

func (f *fakeClient) GetVolatility(ctx context.Context, symbol string, tf exchange.Timeframe) (exchange.Volatility, error) {
	return exchange.Volatility{Symbol: symbol, Timeframe: tf}, nil
}

func (f *fakeClient) GetPricePrecision(ctx context.Context, symbol string) (int32, error) {
	return 2, nil
}

type recordingIngestor struct {
	candidates []model.WallCandidate
}

func (r *recordingIngestor) Ingest(c model.WallCandidate) model.Fingerprint {
	r.candidates = append(r.candidates, c)
	return model.Fingerprint("fp")
}

func wallBook(symbol string, wallQty float64) model.OrderBook {
	entries := make([]model.BookEntry, 0, 11)
	for i := 0; i < 10; i++ {
		entries = append(entries, model.BookEntry{
			Price:    decimal.NewFromFloat(100 + float64(i)),
			Quantity: decimal.NewFromFloat(1),
		})
	}
	entries = append(entries, model.BookEntry{
		Price:    decimal.NewFromFloat(111),
		Quantity: decimal.NewFromFloat(wallQty),
	})
	return model.OrderBook{Symbol: symbol, Asks: entries, Bids: entries, PricePrecision: 2}
}

func TestPrimarySweepIngestsCandidatesAcrossWorkers(t *testing.T) {
	client := &fakeClient{
		symbols: []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"},
		books: map[string]model.OrderBook{
			"BTCUSDT": wallBook("BTCUSDT", 500),
			"ETHUSDT": wallBook("ETHUSDT", 1),
			"SOLUSDT": wallBook("SOLUSDT", 500),
		},
		last: map[string]decimal.Decimal{
			"BTCUSDT": decimal.NewFromFloat(105),
			"ETHUSDT": decimal.NewFromFloat(105),
			"SOLUSDT": decimal.NewFromFloat(105),
		},
	}
	det := detector.New(detector.DefaultKMult)
	ingestor := &recordingIngestor{}
	primary := NewPrimary(client, det, ingestor, 10, 3, detector.DefaultDepth, 0)

	report, err := primary.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if report.SweptSymbols != 3 {
		t.Fatalf("expected 3 symbols swept, got %d", report.SweptSymbols)
	}
	if len(ingestor.candidates) == 0 {
		t.Fatalf("expected at least one candidate ingested from wall books")
	}
}

func TestGeneralScanExcludesSymbolAfterWallFoundAndReleasesLater(t *testing.T) {
	client := &fakeClient{
		symbols: []string{"BTCUSDT", "ETHUSDT"},
		books: map[string]model.OrderBook{
			"BTCUSDT": wallBook("BTCUSDT", 500),
			"ETHUSDT": wallBook("ETHUSDT", 1),
		},
		last: map[string]decimal.Decimal{
			"BTCUSDT": decimal.NewFromFloat(105),
			"ETHUSDT": decimal.NewFromFloat(105),
		},
	}
	det := detector.New(detector.DefaultKMult)
	ingestor := &recordingIngestor{}
	general := NewGeneral(client, det, ingestor, 10, time.Second, detector.DefaultDepth)

	if err := general.refreshUniverse(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	general.scanBatch(context.Background(), general.nextBatch())

	general.mu.Lock()
	_, excluded := general.excluded["BTCUSDT"]
	general.mu.Unlock()
	if !excluded {
		t.Fatalf("expected BTCUSDT excluded after a wall was found")
	}

	general.Release("BTCUSDT")
	general.mu.Lock()
	_, stillExcluded := general.excluded["BTCUSDT"]
	general.mu.Unlock()
	if stillExcluded {
		t.Fatalf("expected BTCUSDT released back into rotation")
	}
}
