package hotpool

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wallsentry/wallsentry/internal/model"
)

// snapshotDocument is the on-disk shape of hot_orders.json.
type snapshotDocument struct {
	Timestamp     string                      `json:"timestamp"`
	Exchange      string                      `json:"exchange"`
	TotalOrders   int                         `json:"total_orders"`
	ActiveSymbols int                         `json:"active_symbols"`
	Orders        []model.HotOrderProjection  `json:"orders"`
}

// Persister flushes the hot pool's current catalog to a single JSON
// file via write-temp-then-rename, rate-limited to at most one write
// per flushMinInterval. Coalesced significant events ride the next
// flush rather than each triggering their own write.
type Persister struct {
	pool     *Pool
	exchange string
	path     string
	minInterval time.Duration

	mu       sync.Mutex
	lastFlush time.Time
}

func NewPersister(pool *Pool, exchangeName, path string, minInterval time.Duration) *Persister {
	return &Persister{pool: pool, exchange: exchangeName, path: path, minInterval: minInterval}
}

// Run periodically checks for a pending flush until ctx is cancelled.
// Flushing on a fixed tick (rather than per-event) is what makes the
// rate limit and delta coalescing work without extra bookkeeping.
func (pr *Persister) Run(ctx context.Context) {
	ticker := time.NewTicker(pr.minInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := pr.FlushIfDirty(); err != nil {
				log.Printf("⚠️  hot_orders.json flush failed, retrying next window: %v", err)
			}
		}
	}
}

// FlushIfDirty writes the snapshot if the pool has changed since the
// last successful flush. It does no rate limiting itself; Run's ticker
// bounds how often it is called.
func (pr *Persister) FlushIfDirty() error {
	pr.pool.mu.Lock()
	dirty := pr.pool.dirty
	pr.pool.mu.Unlock()
	if !dirty {
		return nil
	}
	return pr.Flush()
}

// Flush writes the current snapshot unconditionally, atomically.
func (pr *Persister) Flush() error {
	orders := pr.pool.Snapshot()
	doc := snapshotDocument{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Exchange:      pr.exchange,
		TotalOrders:   len(orders),
		ActiveSymbols: len(pr.pool.OwnedSymbols()),
	}
	for _, o := range orders {
		doc.Orders = append(doc.Orders, project(o))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(pr.path)
	tmp, err := os.CreateTemp(dir, ".hot_orders_*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, pr.path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	pr.pool.mu.Lock()
	pr.pool.dirty = false
	pr.pool.mu.Unlock()
	return nil
}

func project(o model.HotOrder) model.HotOrderProjection {
	return model.HotOrderProjection{
		Symbol:              o.Symbol,
		Side:                o.Side,
		AnchorPrice:         o.AnchorPrice.String(),
		CurrentQuantity:     o.CurrentQuantity.String(),
		CurrentNotional:     o.CurrentNotional.String(),
		LifetimeSeconds:     o.LifetimeSeconds,
		ScanCount:           o.ScanCount,
		GrowthTrend:         o.GrowthTrend,
		StabilityScore:      o.StabilityScore,
		DistancePercent:     o.DistancePercent,
		RecommendedWeight:   o.Weight.RecommendedWeight,
		RecommendedCategory: o.Weight.RecommendedCategory,
	}
}
