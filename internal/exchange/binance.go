package exchange

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/wallsentry/wallsentry/internal/model"
)

// BinanceFutures is the Client implementation for Binance USDT-M
// futures. It owns a token bucket (one per client, per §5) and
// retries transient failures with exponential backoff before
// classifying the last error.
type BinanceFutures struct {
	client    *futures.Client
	limiter   *rate.Limiter
	maxRetries int
	callTimeout time.Duration

	precisionMu sync.RWMutex
	precision   map[string]int32

	excludedSuffixes []string
	excludedPrefixes []string
}

// NewBinanceFutures builds a Client against the real or testnet
// Binance USDT-M futures API depending on testnet.
func NewBinanceFutures(apiKey, secretKey string, testnet bool, requestsPerSecond float64, maxRetries int, callTimeout time.Duration) *BinanceFutures {
	futures.UseTestnet = testnet
	client := futures.NewClient(apiKey, secretKey)

	return &BinanceFutures{
		client:      client,
		limiter:     rate.NewLimiter(rate.Limit(requestsPerSecond), int(math.Max(1, requestsPerSecond))),
		maxRetries:  maxRetries,
		callTimeout: callTimeout,
		precision:   make(map[string]int32),
		excludedSuffixes: []string{"_240329", "_240628"}, // quarterly/delivery contracts
		excludedPrefixes: []string{"1000000", "1000"},    // rebased leveraged-token style prefixes
	}
}

func (b *BinanceFutures) Name() string { return "binance-futures" }

// withRetry runs fn, retrying TransientError-classified failures with
// exponential backoff up to maxRetries, mirroring the reference's
// retry loop around kline fetches.
func (b *BinanceFutures) withRetry(ctx context.Context, symbol string, fn func(ctx context.Context) error) error {
	var lastErr error
	backoff := 250 * time.Millisecond
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, b.callTimeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			return &PermanentError{Symbol: symbol, Err: err}
		}
		lastErr = err
		if attempt < b.maxRetries {
			log.Printf("⚠️  %s: transient error (attempt %d/%d): %v", symbol, attempt+1, b.maxRetries, err)
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return &TransientError{Symbol: symbol, Err: lastErr}
}

// isPermanent makes a best-effort classification of Binance API
// errors: anything that looks like a malformed-symbol / bad-request
// style failure is permanent, everything else is retried.
func isPermanent(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid symbol") || strings.Contains(msg, "bad symbol") || strings.Contains(msg, "does not exist")
}

func (b *BinanceFutures) included(symbol string) bool {
	for _, suf := range b.excludedSuffixes {
		if strings.HasSuffix(symbol, suf) {
			return false
		}
	}
	for _, pre := range b.excludedPrefixes {
		if strings.HasPrefix(symbol, pre) {
			return false
		}
	}
	return strings.HasSuffix(symbol, "USDT")
}

func (b *BinanceFutures) GetFuturesSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := b.withRetry(ctx, "exchangeInfo", func(ctx context.Context) error {
		info, err := b.client.NewExchangeInfoService().Do(ctx)
		if err != nil {
			return err
		}
		b.precisionMu.Lock()
		for _, s := range info.Symbols {
			if s.Status != "TRADING" {
				continue
			}
			if !b.included(s.Symbol) {
				continue
			}
			symbols = append(symbols, s.Symbol)
			b.precision[s.Symbol] = int32(s.PricePrecision)
		}
		b.precisionMu.Unlock()
		return nil
	})
	return symbols, err
}

func (b *BinanceFutures) Get24hStats(ctx context.Context, symbols []string) (map[string]Stats24h, error) {
	result := make(map[string]Stats24h)
	err := b.withRetry(ctx, "24hStats", func(ctx context.Context) error {
		stats, err := b.client.NewListPriceChangeStatsService().Do(ctx)
		if err != nil {
			return err
		}
		wanted := make(map[string]bool, len(symbols))
		for _, s := range symbols {
			wanted[s] = true
		}
		for _, s := range stats {
			if len(symbols) > 0 && !wanted[s.Symbol] {
				continue
			}
			qv, _ := strconv.ParseFloat(s.QuoteVolume, 64)
			v, _ := strconv.ParseFloat(s.Volume, 64)
			pc, _ := strconv.ParseFloat(s.PriceChangePercent, 64)
			last, _ := decimal.NewFromString(s.LastPrice)
			result[s.Symbol] = Stats24h{
				Symbol:         s.Symbol,
				Volume:         v,
				QuoteVolume:    qv,
				LastPrice:      last,
				PriceChangePct: pc,
			}
		}
		return nil
	})
	return result, err
}

func (b *BinanceFutures) GetTopByQuoteVolume(ctx context.Context, n int) ([]string, error) {
	symbols, err := b.GetFuturesSymbols(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := b.Get24hStats(ctx, symbols)
	if err != nil {
		return nil, err
	}
	ranked := make([]Stats24h, 0, len(stats))
	for _, s := range stats {
		ranked = append(ranked, s)
	}
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].QuoteVolume > ranked[j-1].QuoteVolume; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	top := make([]string, 0, n)
	for i := 0; i < n; i++ {
		top = append(top, ranked[i].Symbol)
	}
	return top, nil
}

func (b *BinanceFutures) GetOrderBook(ctx context.Context, symbol string, depth int) (model.OrderBook, error) {
	var book model.OrderBook
	precision, _ := b.GetPricePrecision(ctx, symbol)
	err := b.withRetry(ctx, symbol, func(ctx context.Context) error {
		resp, err := b.client.NewDepthService().Symbol(symbol).Limit(depth).Do(ctx)
		if err != nil {
			return err
		}
		book = model.OrderBook{
			Symbol:         symbol,
			LastUpdateID:   resp.LastUpdateID,
			PricePrecision: precision,
		}
		for _, a := range resp.Asks {
			price, _ := decimal.NewFromString(a.Price)
			qty, _ := decimal.NewFromString(a.Quantity)
			book.Asks = append(book.Asks, model.BookEntry{Price: price, Quantity: qty})
		}
		for _, bid := range resp.Bids {
			price, _ := decimal.NewFromString(bid.Price)
			qty, _ := decimal.NewFromString(bid.Quantity)
			book.Bids = append(book.Bids, model.BookEntry{Price: price, Quantity: qty})
		}
		return nil
	})
	return book, err
}

func (b *BinanceFutures) GetLastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := b.withRetry(ctx, symbol, func(ctx context.Context) error {
		prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
		if err != nil {
			return err
		}
		if len(prices) == 0 {
			return fmt.Errorf("no price returned for %s", symbol)
		}
		price, err = decimal.NewFromString(prices[0].Price)
		return err
	})
	return price, err
}

// GetVolatility derives a normalized volatility figure from recent
// klines: stdev of close-to-close returns over the requested window,
// the same shape the reference computes ATR/EMA from kline history.
func (b *BinanceFutures) GetVolatility(ctx context.Context, symbol string, tf Timeframe) (Volatility, error) {
	interval := "1h"
	limit := 24
	if tf == Timeframe24h {
		interval = "1d"
		limit = 30
	}

	var closes []float64
	err := b.withRetry(ctx, symbol, func(ctx context.Context) error {
		klines, err := b.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
		if err != nil {
			return err
		}
		closes = closes[:0]
		for _, k := range klines {
			c, err := strconv.ParseFloat(k.Close, 64)
			if err != nil {
				continue
			}
			closes = append(closes, c)
		}
		return nil
	})
	if err != nil {
		return Volatility{}, err
	}
	if len(closes) < 2 {
		return Volatility{Symbol: symbol, Timeframe: tf}, nil
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	priceChange := (closes[len(closes)-1] - closes[0]) / closes[0]

	return Volatility{
		Symbol:      symbol,
		Timeframe:   tf,
		Volatility:  math.Sqrt(variance),
		PriceChange: priceChange,
	}, nil
}

func (b *BinanceFutures) GetPricePrecision(ctx context.Context, symbol string) (int32, error) {
	b.precisionMu.RLock()
	p, ok := b.precision[symbol]
	b.precisionMu.RUnlock()
	if ok {
		return p, nil
	}
	if _, err := b.GetFuturesSymbols(ctx); err != nil {
		return 0, err
	}
	b.precisionMu.RLock()
	p, ok = b.precision[symbol]
	b.precisionMu.RUnlock()
	if !ok {
		return 0, &PrecisionError{Symbol: symbol, Err: fmt.Errorf("precision unknown for %s", symbol)}
	}
	return p, nil
}
