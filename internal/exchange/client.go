// Package exchange defines the narrow read-only capability the core
// pipeline consumes from a venue, and a Binance USDT-M futures
// implementation of it. Nothing above this package talks to an
// exchange directly.
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wallsentry/wallsentry/internal/model"
)

// Stats24h is one symbol's 24h ticker window.
type Stats24h struct {
	Symbol           string
	Volume           float64
	QuoteVolume      float64
	LastPrice        decimal.Decimal
	PriceChangePct   float64
}

// Timeframe selects the window get_volatility is computed over.
type Timeframe string

const (
	Timeframe1h  Timeframe = "1h"
	Timeframe24h Timeframe = "24h"
)

// Volatility is the OHLC-derived volatility reading for a symbol.
type Volatility struct {
	Symbol       string
	Timeframe    Timeframe
	Volatility   float64 // normalized stdev-of-returns style figure
	PriceChange  float64
}

// Client is the normalized, read-only view of a venue that C3–C6
// consume. Implementations must rate-limit themselves, normalize
// monetary values to decimal.Decimal, and classify failures per the
// error kinds in errors.go.
type Client interface {
	GetFuturesSymbols(ctx context.Context) ([]string, error)
	Get24hStats(ctx context.Context, symbols []string) (map[string]Stats24h, error)
	GetTopByQuoteVolume(ctx context.Context, n int) ([]string, error)
	GetOrderBook(ctx context.Context, symbol string, depth int) (model.OrderBook, error)
	GetLastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetVolatility(ctx context.Context, symbol string, tf Timeframe) (Volatility, error)
	GetPricePrecision(ctx context.Context, symbol string) (int32, error)
}

// Name returns a label used in logs and the persisted snapshot's
// "exchange" field.
type Named interface {
	Name() string
}

const defaultCallTimeout = 10 * time.Second
