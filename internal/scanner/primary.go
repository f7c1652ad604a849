// Package scanner implements the primary scanner (C3) and the general
// scanner (C4): the pipeline's two symbol-discovery entry points. C3
// runs a bounded one-shot sweep of the top-N symbols by quote volume
// and seeds the observer pool; C4 is a continuous low-rate sweep of
// the remaining universe, handing symbols over to the observer pool
// as they develop a wall and taking them back once the observer pool
// releases them.
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
	"github.com/wallsentry/wallsentry/internal/weight"
)

// Ingestor is how a scanner hands a wall candidate to the observer
// pool. Matches observer.Pool.Ingest.
type Ingestor interface {
	Ingest(candidate model.WallCandidate) model.Fingerprint
}

// PrimaryReport is what a single sweep returns: the candidates found,
// plus an adaptive category report over their notionals, for
// observability only — it never feeds back into the weight engine.
type PrimaryReport struct {
	SweptSymbols int
	Candidates   int
	Thresholds   weight.AdaptiveThresholds
}

// Primary is the one-shot, bounded-fan-out scanner (C3): it pulls the
// top-N symbols by quote volume, runs the wall detector on both sides
// of each book concurrently across a fixed worker count, and ingests
// every candidate it finds.
type Primary struct {
	client   exchange.Client
	detector *detector.Detector
	ingestor Ingestor

	topN        int
	workers     int
	depth       int
	minQuoteVol float64
}

func NewPrimary(client exchange.Client, det *detector.Detector, ingestor Ingestor, topN, workers, depth int, minQuoteVol float64) *Primary {
	if workers <= 0 {
		workers = 1
	}
	return &Primary{
		client:      client,
		detector:    det,
		ingestor:    ingestor,
		topN:        topN,
		workers:     workers,
		depth:       depth,
		minQuoteVol: minQuoteVol,
	}
}

// Sweep runs one bounded pass: resolve the universe, fan out across a
// fixed worker count, scan each symbol's book on both sides, ingest
// every candidate found, and return a report summarizing the pass.
func (p *Primary) Sweep(ctx context.Context) (PrimaryReport, error) {
	symbols, err := p.client.GetTopByQuoteVolume(ctx, p.topN)
	if err != nil {
		return PrimaryReport{}, err
	}
	if p.minQuoteVol > 0 {
		symbols = p.filterByMinQuoteVolume(ctx, symbols)
	}

	jobs := make(chan string)
	var mu sync.Mutex
	var allCandidates []model.WallCandidate

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				candidates, err := p.scanOne(ctx, symbol)
				if err != nil {
					log.Printf("⚠️  primary scan: %s: %v", symbol, err)
					continue
				}
				if len(candidates) == 0 {
					continue
				}
				mu.Lock()
				allCandidates = append(allCandidates, candidates...)
				mu.Unlock()
			}
		}()
	}

	for _, symbol := range symbols {
		select {
		case jobs <- symbol:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return PrimaryReport{}, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	notionals := make([]float64, 0, len(allCandidates))
	for _, c := range allCandidates {
		f, _ := c.Notional.Float64()
		notionals = append(notionals, f)
		p.ingestor.Ingest(c)
	}

	return PrimaryReport{
		SweptSymbols: len(symbols),
		Candidates:   len(allCandidates),
		Thresholds:   weight.AdaptiveReport(notionals),
	}, nil
}

func (p *Primary) scanOne(ctx context.Context, symbol string) ([]model.WallCandidate, error) {
	ob, err := p.client.GetOrderBook(ctx, symbol, p.depth)
	if err != nil {
		return nil, err
	}
	last, err := p.client.GetLastPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var out []model.WallCandidate
	out = append(out, p.detector.Scan(symbol, model.Ask, ob.Asks, last, now)...)
	out = append(out, p.detector.Scan(symbol, model.Bid, ob.Bids, last, now)...)
	return out, nil
}

func (p *Primary) filterByMinQuoteVolume(ctx context.Context, symbols []string) []string {
	stats, err := p.client.Get24hStats(ctx, symbols)
	if err != nil {
		log.Printf("⚠️  primary scan: 24h stats unavailable, skipping volume filter: %v", err)
		return symbols
	}
	filtered := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if st, ok := stats[s]; ok && st.QuoteVolume >= p.minQuoteVol {
			filtered = append(filtered, s)
		}
	}
	sort.Strings(filtered)
	return filtered
}
