// Package model holds the data types that cross component boundaries:
// book entries, wall candidates, tracked/hot orders, market context and
// the weight-engine output. Nothing in this package performs I/O.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is which side of the book an entry or order sits on.
type Side string

const (
	Ask Side = "ASK"
	Bid Side = "BID"
)

// OrderState is the lifecycle stage of a TrackedOrder.
type OrderState string

const (
	StateLive     OrderState = "LIVE"
	StatePromoted OrderState = "PROMOTED"
	StateDead     OrderState = "DEAD"
)

// CauseOfDeath explains why a TrackedOrder or HotOrder was removed.
type CauseOfDeath string

const (
	CauseDisappeared CauseOfDeath = "disappeared"
	CauseVolumeLoss  CauseOfDeath = "volume_loss"
)

// GrowthTrend summarizes the direction of a HotOrder's recent notional.
type GrowthTrend string

const (
	TrendIncreasing GrowthTrend = "INC"
	TrendDecreasing GrowthTrend = "DEC"
	TrendStable     GrowthTrend = "STABLE"
)

// Category is the bucket a recommended weight falls into.
type Category string

const (
	CategoryBasic   Category = "basic"
	CategoryGold    Category = "gold"
	CategoryDiamond Category = "diamond"
)

// BookEntry is one resting order at a price level.
type BookEntry struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Notional returns price * quantity.
func (e BookEntry) Notional() decimal.Decimal {
	return e.Price.Mul(e.Quantity)
}

// OrderBook is a normalized read of one symbol's book, best price first
// on each side.
type OrderBook struct {
	Symbol        string
	Asks          []BookEntry
	Bids          []BookEntry
	LastUpdateID  int64
	PricePrecision int32
}

// Side returns the requested side of the book.
func (b OrderBook) Side(s Side) []BookEntry {
	if s == Ask {
		return b.Asks
	}
	return b.Bids
}

// WallCandidate is emitted by the wall detector (C2). It is stateless —
// it carries no identity of its own until the observer pool mints a
// Fingerprint for it.
type WallCandidate struct {
	Symbol          string
	Side            Side
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	Notional        decimal.Decimal
	ReferencePrice  decimal.Decimal
	DistancePercent float64
	SizeVsAverage   float64
	AverageOrderSize decimal.Decimal
	IsRoundLevel    bool
	ObservedAt      time.Time
}

// Fingerprint is the process-local identity of a tracked order. Two
// reappearances of the "same" price/quantity at different times mint
// distinct fingerprints (resurrection).
type Fingerprint string

// TrackedOrder is the observer pool's (C5) view of a candidate order.
type TrackedOrder struct {
	Fingerprint    Fingerprint
	Symbol         string
	Side           Side
	AnchorPrice    decimal.Decimal
	AnchorQuantity decimal.Decimal
	AnchorNotional decimal.Decimal
	FirstSeen      time.Time
	LastSeen       time.Time
	ScanCount      int
	CurrentQuantity decimal.Decimal
	CurrentNotional decimal.Decimal
	State          OrderState
	CauseOfDeath   CauseOfDeath
}

// LifetimeSeconds returns how long the order has been tracked, as of now.
func (t *TrackedOrder) LifetimeSeconds(now time.Time) float64 {
	return now.Sub(t.FirstSeen).Seconds()
}

// SurvivalRatio returns current/anchor quantity, the signal used to
// decide volume-loss death and promotion eligibility.
func (t *TrackedOrder) SurvivalRatio() float64 {
	if t.AnchorQuantity.IsZero() {
		return 0
	}
	ratio, _ := t.CurrentQuantity.Div(t.AnchorQuantity).Float64()
	return ratio
}

// Snapshot is one historical observation of a HotOrder, kept in a
// bounded ring to derive trend and stability.
type Snapshot struct {
	At              time.Time
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	Notional        decimal.Decimal
	DistancePercent float64
}

// MarketTemperature buckets volatility into a coarse band, used both
// by the weight engine's market modifier and the public fan-out tier.
type MarketTemperature string

const (
	TempCold    MarketTemperature = "cold"
	TempWarm    MarketTemperature = "warm"
	TempHot     MarketTemperature = "hot"
	TempExtreme MarketTemperature = "extreme"
)

// MarketContext is a per-symbol, lazily refreshed view of market
// conditions used as input to the weight engine.
type MarketContext struct {
	Symbol            string
	Volatility1h      float64
	Volatility24h     float64
	Temperature       MarketTemperature
	TimeOfDayFactor   float64
	DayOfWeekFactor   float64
	UpdatedAt         time.Time
}

// Algorithm names a weight-engine scoring method.
type Algorithm string

const (
	AlgoConservative    Algorithm = "conservative"
	AlgoAggressive      Algorithm = "aggressive"
	AlgoVolumeWeighted  Algorithm = "volume_weighted"
	AlgoTimeWeighted    Algorithm = "time_weighted"
	AlgoHybrid          Algorithm = "hybrid"
)

// WeightResult is the weight engine's (C7) single output struct, per
// the "single struct" guidance for cross-boundary values.
type WeightResult struct {
	TimeFactors    map[string]float64
	Blend          float64 // T, the blended time factor
	SizeFactor     float64
	RoundFactor    float64
	VolatilityFactor float64
	GrowthFactor   float64
	ModTime        float64
	ModDay         float64
	ModVolatility  float64
	Weights        map[Algorithm]float64
	Categories     map[Algorithm]Category
	Recommended    Algorithm
	RecommendedWeight float64
	RecommendedCategory Category
}

// HotOrder (C6) is a TrackedOrder enriched with history, market
// context and the last computed weight-engine output.
type HotOrder struct {
	TrackedOrder
	History       []Snapshot
	Context        MarketContext
	GrowthTrend    GrowthTrend
	StabilityScore float64
	LifetimeSeconds float64
	DistancePercent float64
	Weight         WeightResult
}

// HotOrderProjection is the persisted / broadcast shape of a HotOrder,
// sorted by recommended weight descending in hot_orders.json.
type HotOrderProjection struct {
	Symbol              string    `json:"symbol"`
	Side                Side      `json:"side"`
	AnchorPrice         string    `json:"anchor_price"`
	CurrentQuantity     string    `json:"current_quantity"`
	CurrentNotional     string    `json:"current_notional"`
	LifetimeSeconds     float64   `json:"lifetime_seconds"`
	ScanCount           int       `json:"scan_count"`
	GrowthTrend         GrowthTrend `json:"growth_trend"`
	StabilityScore      float64   `json:"stability_score"`
	DistancePercent     float64   `json:"distance_percent"`
	RecommendedWeight   float64   `json:"recommended_weight"`
	RecommendedCategory Category  `json:"recommended_category"`
}
