package scanner

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/wallsentry/wallsentry/internal/detector"
	"github.com/wallsentry/wallsentry/internal/exchange"
	"github.com/wallsentry/wallsentry/internal/model"
)

// General is the continuous, single-worker scanner (C4): it walks the
// full futures universe in fixed-size batches, skipping any symbol
// currently owned by the observer pool, and hands new wall candidates
// over to it. A symbol stays excluded from C4's rotation until the
// observer pool releases it (its last tracked order died or was
// promoted and no other order on that symbol remains live).
type General struct {
	client   exchange.Client
	detector *detector.Detector
	ingestor Ingestor

	batchSize int
	interval  time.Duration
	depth     int

	mu        sync.Mutex
	universe  []string
	cursor    int
	excluded  map[string]struct{}
}

func NewGeneral(client exchange.Client, det *detector.Detector, ingestor Ingestor, batchSize int, interval time.Duration, depth int) *General {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &General{
		client:    client,
		detector:  det,
		ingestor:  ingestor,
		batchSize: batchSize,
		interval:  interval,
		depth:     depth,
		excluded:  make(map[string]struct{}),
	}
}

// SetIngestor assigns the observer pool to hand candidates to. Split
// from construction because the observer pool itself needs a General
// as its ExclusionReleaser — the two are wired in two steps to break
// the cycle.
func (g *General) SetIngestor(ingestor Ingestor) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ingestor = ingestor
}

func (g *General) ingestorLocked() Ingestor {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ingestor
}

// Release implements observer.ExclusionReleaser: once the observer
// pool no longer holds any tracked order for a symbol, it is eligible
// for C4's rotation again.
func (g *General) Release(symbol string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.excluded, symbol)
}

// Exclude marks a symbol as owned elsewhere (observer or hot pool) so
// C4 stops scanning it until it is released.
func (g *General) Exclude(symbol string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.excluded[symbol] = struct{}{}
}

// Run refreshes the universe once, then loops batch_size symbols at a
// time, sleeping interval between batches, until ctx is cancelled.
func (g *General) Run(ctx context.Context) {
	if err := g.refreshUniverse(ctx); err != nil {
		log.Printf("⚠️  general scan: failed to load universe: %v", err)
	}

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch := g.nextBatch()
			if len(batch) == 0 {
				if err := g.refreshUniverse(ctx); err != nil {
					log.Printf("⚠️  general scan: failed to refresh universe: %v", err)
				}
				continue
			}
			g.scanBatch(ctx, batch)
		}
	}
}

// refreshUniverse rebuilds the ordered list §4.3 describes:
// top-by-volume symbols first, the rest of the universe appended
// after (alphabetically, for determinism) so each pass of the
// round-robin cursor reaches high-volume symbols first.
func (g *General) refreshUniverse(ctx context.Context) error {
	all, err := g.client.GetFuturesSymbols(ctx)
	if err != nil {
		return err
	}
	top, err := g.client.GetTopByQuoteVolume(ctx, len(all))
	if err != nil {
		log.Printf("⚠️  general scan: top-by-volume unavailable, falling back to alphabetical: %v", err)
		top = nil
	}

	seen := make(map[string]struct{}, len(all))
	ordered := make([]string, 0, len(all))
	for _, s := range top {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		ordered = append(ordered, s)
	}
	rest := make([]string, 0, len(all))
	for _, s := range all {
		if _, ok := seen[s]; !ok {
			rest = append(rest, s)
		}
	}
	sort.Strings(rest)
	ordered = append(ordered, rest...)

	g.mu.Lock()
	g.universe = ordered
	g.cursor = 0
	g.mu.Unlock()
	return nil
}

// nextBatch returns the next batch_size eligible (non-excluded)
// symbols, round-robining through the universe so every symbol gets
// revisited roughly as often as any other.
func (g *General) nextBatch() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.universe) == 0 {
		return nil
	}

	var batch []string
	start := g.cursor
	for len(batch) < g.batchSize {
		symbol := g.universe[g.cursor]
		g.cursor = (g.cursor + 1) % len(g.universe)
		if _, excluded := g.excluded[symbol]; !excluded {
			batch = append(batch, symbol)
		}
		if g.cursor == start {
			break
		}
	}
	return batch
}

func (g *General) scanBatch(ctx context.Context, symbols []string) {
	ingestor := g.ingestorLocked()
	if ingestor == nil {
		return
	}
	for _, symbol := range symbols {
		ob, err := g.client.GetOrderBook(ctx, symbol, g.depth)
		if err != nil {
			log.Printf("⚠️  general scan: %s: %v", symbol, err)
			continue
		}
		last, err := g.client.GetLastPrice(ctx, symbol)
		if err != nil {
			log.Printf("⚠️  general scan: %s: %v", symbol, err)
			continue
		}

		now := time.Now()
		var found bool
		for _, c := range g.detector.Scan(symbol, model.Ask, ob.Asks, last, now) {
			ingestor.Ingest(c)
			found = true
		}
		for _, c := range g.detector.Scan(symbol, model.Bid, ob.Bids, last, now) {
			ingestor.Ingest(c)
			found = true
		}
		if found {
			g.Exclude(symbol)
		}
	}
}
