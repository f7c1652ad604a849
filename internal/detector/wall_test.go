package detector

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wallsentry/wallsentry/internal/model"
)

func entry(price, qty float64) model.BookEntry {
	return model.BookEntry{Price: decimal.NewFromFloat(price), Quantity: decimal.NewFromFloat(qty)}
}

func TestScanEmptyWhenFewerThanTenEntries(t *testing.T) {
	d := New(DefaultKMult)
	entries := []model.BookEntry{entry(100, 1), entry(101, 1)}
	got := d.Scan("BTCUSDT", model.Ask, entries, decimal.NewFromInt(100), time.Now())
	if len(got) != 0 {
		t.Fatalf("expected no candidates for <10 entries, got %d", len(got))
	}
}

func TestScanFlagsAboveThreshold(t *testing.T) {
	d := New(3.5)
	entries := make([]model.BookEntry, 0, 11)
	// top 10 entries notional 3000..3270 -> mean 3135, threshold 10972.5
	for i := 0; i < 10; i++ {
		entries = append(entries, entry(100+float64(i), 30))
	}
	// the wall: price 51000 * qty 5 = 255000, far above threshold
	entries = append(entries, entry(51000, 5))

	got := d.Scan("BTCUSDT", model.Ask, entries, decimal.NewFromInt(51000), time.Now())
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 candidate, got %d", len(got))
	}
	if got[0].Notional.Cmp(decimal.NewFromInt(255000)) != 0 {
		t.Fatalf("unexpected notional: %v", got[0].Notional)
	}
}

func TestScanMonotoneInKMult(t *testing.T) {
	entries := make([]model.BookEntry, 0, 11)
	for i := 0; i < 10; i++ {
		entries = append(entries, entry(100+float64(i), 30))
	}
	entries = append(entries, entry(200, 40)) // notional 8000, mean ~3000

	low := New(1.0).Scan("ETHUSDT", model.Bid, entries, decimal.NewFromInt(150), time.Now())
	high := New(5.0).Scan("ETHUSDT", model.Bid, entries, decimal.NewFromInt(150), time.Now())
	if len(high) > len(low) {
		t.Fatalf("raising K_mult should never grow the emitted set: low=%d high=%d", len(low), len(high))
	}
}

func TestRoundLevelFlag(t *testing.T) {
	entries := make([]model.BookEntry, 0, 11)
	for i := 0; i < 10; i++ {
		entries = append(entries, entry(40+float64(i)*0.1, 30))
	}
	entries = append(entries, entry(50000.2, 10)) // near the 50000 round level

	d := New(1.0)
	got := d.Scan("BTCUSDT", model.Ask, entries, decimal.NewFromInt(50000), time.Now())
	found := false
	for _, c := range got {
		if c.Price.Equal(decimal.NewFromFloat(50000.2)) {
			if !c.IsRoundLevel {
				t.Fatalf("expected round-level flag for price near 50000")
			}
			found = true
		}
	}
	if !found {
		t.Fatalf("expected candidate at 50000.2")
	}
}
