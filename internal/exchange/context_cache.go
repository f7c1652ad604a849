package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/wallsentry/wallsentry/internal/model"
)

// ContextCache is a cache-through, lazily-refreshed MarketContext
// store keyed by symbol, single-flighted per key so concurrent
// callers on the same symbol share one fetch. The bounded-map-plus-
// lazy-cleanup shape mirrors the reference's time-windowed event
// store, generalized here to a TTL-based read-through cache instead
// of an append-only window.
type ContextCache struct {
	client Client
	ttl    time.Duration

	mu      sync.Mutex
	entries map[string]model.MarketContext
	inflight map[string]chan struct{}
}

func NewContextCache(client Client, ttl time.Duration) *ContextCache {
	return &ContextCache{
		client:   client,
		ttl:      ttl,
		entries:  make(map[string]model.MarketContext),
		inflight: make(map[string]chan struct{}),
	}
}

// Get returns the cached MarketContext for symbol, refreshing it if
// stale or absent. Only one refresh runs per symbol at a time;
// concurrent callers wait on the in-flight refresh rather than
// issuing duplicate exchange calls.
func (c *ContextCache) Get(ctx context.Context, symbol string) (model.MarketContext, error) {
	c.mu.Lock()
	if mc, ok := c.entries[symbol]; ok && time.Since(mc.UpdatedAt) < c.ttl {
		c.mu.Unlock()
		return mc, nil
	}
	if wait, ok := c.inflight[symbol]; ok {
		c.mu.Unlock()
		<-wait
		c.mu.Lock()
		mc := c.entries[symbol]
		c.mu.Unlock()
		return mc, nil
	}
	done := make(chan struct{})
	c.inflight[symbol] = done
	c.mu.Unlock()

	mc, err := c.refresh(ctx, symbol)

	c.mu.Lock()
	if err == nil {
		c.entries[symbol] = mc
	}
	delete(c.inflight, symbol)
	c.mu.Unlock()
	close(done)

	return mc, err
}

func (c *ContextCache) refresh(ctx context.Context, symbol string) (model.MarketContext, error) {
	vol1h, err := c.client.GetVolatility(ctx, symbol, Timeframe1h)
	if err != nil {
		return model.MarketContext{}, err
	}
	vol24h, err := c.client.GetVolatility(ctx, symbol, Timeframe24h)
	if err != nil {
		return model.MarketContext{}, err
	}

	now := time.Now()
	return model.MarketContext{
		Symbol:          symbol,
		Volatility1h:    vol1h.Volatility,
		Volatility24h:   vol24h.Volatility,
		Temperature:     temperatureBand(vol1h.Volatility),
		TimeOfDayFactor: timeOfDayFactor(now),
		DayOfWeekFactor: dayOfWeekFactor(now),
		UpdatedAt:       now,
	}, nil
}

// temperatureBand buckets 1h volatility into the four market
// temperature bands used by the weight engine's market modifier and
// the public fan-out projection.
func temperatureBand(volatility1h float64) model.MarketTemperature {
	switch {
	case volatility1h < 0.01:
		return model.TempCold
	case volatility1h < 0.03:
		return model.TempWarm
	case volatility1h < 0.06:
		return model.TempHot
	default:
		return model.TempExtreme
	}
}

// timeOfDayFactor bands UTC hour into Asian/London/NY session
// weighting in [0.5, 1.5], heavier during the London/NY overlap.
func timeOfDayFactor(t time.Time) float64 {
	hour := t.UTC().Hour()
	switch {
	case hour >= 13 && hour < 16: // London/NY overlap
		return 1.5
	case hour >= 7 && hour < 13: // London session
		return 1.2
	case hour >= 16 && hour < 21: // NY session
		return 1.2
	case hour >= 0 && hour < 7: // Asian session
		return 0.8
	default:
		return 0.5
	}
}

// dayOfWeekFactor down-weights weekends, when futures volume and
// wall persistence both tend to thin out.
func dayOfWeekFactor(t time.Time) float64 {
	switch t.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return 0.6
	case time.Friday:
		return 1.1
	default:
		return 1.0
	}
}
