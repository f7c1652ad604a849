// Package detector implements the wall detector (C2): a pure function
// over one side of an order book that flags entries whose notional
// substantially exceeds the local book average.
package detector

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wallsentry/wallsentry/internal/model"
)

const (
	DefaultKMult = 3.5
	DefaultDepth = 20
	topNForMean  = 10
)

// Detector is configured with K_mult and holds no per-call state; it
// never suspends (pure CPU, per the concurrency model).
type Detector struct {
	KMult float64
}

func New(kMult float64) *Detector {
	if kMult <= 0 {
		kMult = DefaultKMult
	}
	return &Detector{KMult: kMult}
}

// Scan flags wall candidates on one side of the book. Returns an
// empty slice if the side has fewer than 10 entries.
func (d *Detector) Scan(symbol string, side model.Side, entries []model.BookEntry, referencePrice decimal.Decimal, observedAt time.Time) []model.WallCandidate {
	if len(entries) < topNForMean {
		return nil
	}

	mean := meanNotional(entries[:topNForMean])
	if mean.IsZero() {
		return nil
	}
	threshold := mean.Mul(decimal.NewFromFloat(d.KMult))

	var candidates []model.WallCandidate
	for _, e := range entries {
		notional := e.Notional()
		if notional.Cmp(threshold) < 0 {
			continue
		}

		sizeVsAvg, _ := notional.Div(mean).Float64()
		distance := distancePercent(e.Price, referencePrice)

		priceF, _ := e.Price.Float64()
		_, _, isRound := model.NearestRoundLevel(priceF)

		candidates = append(candidates, model.WallCandidate{
			Symbol:           symbol,
			Side:             side,
			Price:            e.Price,
			Quantity:         e.Quantity,
			Notional:         notional,
			ReferencePrice:   referencePrice,
			DistancePercent:  distance,
			SizeVsAverage:    sizeVsAvg,
			AverageOrderSize: mean,
			IsRoundLevel:     isRound,
			ObservedAt:       observedAt,
		})
	}
	return candidates
}

func meanNotional(entries []model.BookEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Notional())
	}
	return sum.Div(decimal.NewFromInt(int64(len(entries))))
}

func distancePercent(price, reference decimal.Decimal) float64 {
	if reference.IsZero() {
		return 0
	}
	diff := price.Sub(reference).Abs()
	pct, _ := diff.Div(reference).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}
