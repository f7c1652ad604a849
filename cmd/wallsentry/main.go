// Command wallsentry wires the wall-detection pipeline together: it
// loads configuration, constructs the exchange client, runs the
// primary scanner once, then starts the general scanner, observer
// pool, hot pool and fan-out server as long-lived workers.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"net/http"
	"syscall"
	"time"

	"github.com/wallsentry/wallsentry/internal/auth"
	"github.com/wallsentry/wallsentry/internal/config"
	"github.com/wallsentry/wallsentry/internal/detector"
	"github.com/wallsentry/wallsentry/internal/exchange"
	"github.com/wallsentry/wallsentry/internal/fanout"
	"github.com/wallsentry/wallsentry/internal/hotpool"
	"github.com/wallsentry/wallsentry/internal/model"
	"github.com/wallsentry/wallsentry/internal/notify"
	"github.com/wallsentry/wallsentry/internal/observer"
	"github.com/wallsentry/wallsentry/internal/push"
	"github.com/wallsentry/wallsentry/internal/scanner"
	"github.com/wallsentry/wallsentry/internal/weight"
	"github.com/wallsentry/wallsentry/internal/workerpool"
)

// bookAdapter fixes a depth for callers (observer/hot pool workers)
// that only need a symbol's current book, not the primary scanner's
// depth parameter.
type bookAdapter struct {
	client exchange.Client
	depth  int
}

func (b bookAdapter) GetOrderBook(ctx context.Context, symbol string) (model.OrderBook, error) {
	return b.client.GetOrderBook(ctx, symbol, b.depth)
}

// alertingBroadcaster forwards every delta to the fan-out hub, and
// additionally fires Telegram/push alerts for every admit or update
// delta whose order is currently diamond, plus a Telegram alert on
// removal. Alerts are not limited to the update on which an order
// first becomes diamond, so a diamond order alerts on each
// significant update.
type alertingBroadcaster struct {
	hub      *fanout.Hub
	notifier *notify.Telegram
	pusher   *push.Service
}

func (a alertingBroadcaster) Publish(delta model.BroadcastDelta) {
	a.hub.Publish(delta)
	if delta.Order == nil {
		return
	}
	switch delta.Event {
	case model.HotAdmit, model.HotUpdate:
		if delta.Order.Weight.RecommendedCategory == model.CategoryDiamond {
			a.notifier.AnnounceDiamond(*delta.Order)
			a.pusher.NotifyDiamondAdmission(*delta.Order)
		}
	case model.HotRemove:
		a.notifier.AnnounceRemoval(*delta.Order)
	}
}

func main() {
	primaryScanOnly := flag.Bool("primary-scan-only", false, "run one primary scan pass, print its report, and exit")
	httpAddr := flag.String("http-addr", ":8081", "fan-out HTTP/WebSocket listen address")
	flag.Parse()

	log.Println("🛡️  wallsentry starting")
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	client := exchange.NewBinanceFutures(cfg.BinanceAPIKey, cfg.BinanceSecretKey, cfg.IsTestnet, cfg.RequestsPerSecond, cfg.MaxRetries, cfg.IOTimeout)
	book := bookAdapter{client: client, depth: cfg.Depth}
	det := detector.New(cfg.KMult)
	contextCache := exchange.NewContextCache(client, cfg.HotCycleMinInterval*10)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	notifier := notify.New()
	if notifier != nil {
		notifier.Notify("🚀 wallsentry restarted, watching for walls.")
		go notifier.Listen(func() string { return "📊 wallsentry is running." })
	}
	pusher := push.New()
	if pusher != nil {
		go pusher.Run(ctx)
	}

	verifier := auth.New(cfg.FirebaseCredentialsFile)
	hub := fanout.NewHub(cfg.PublicDelay, client.Name())
	server := fanout.NewServer(hub, verifier)

	engine := weight.New(model.Algorithm(cfg.RecommendedAlgorithm))
	broadcaster := alertingBroadcaster{hub: hub, notifier: notifier, pusher: pusher}

	general := scanner.NewGeneral(client, det, nil, cfg.GeneralBatchSize, cfg.GeneralInterval, cfg.Depth)
	hotPool := hotpool.New(engine, cfg.SnapshotCap, cfg.WeightChangeThreshold, cfg.NotionalChangeThreshold, cfg.FlushMinInterval, cfg.PersistPath, broadcaster, general)
	defer hotPool.Close()

	observerPool := observer.New(hotPool, general, cfg.SurvivalRatio, cfg.PromoteAfter, cfg.CleanupScans)
	general.SetIngestor(observerPool)

	primary := scanner.NewPrimary(client, det, observerPool, cfg.PrimaryTopN, cfg.PrimaryWorkers, cfg.Depth, cfg.MinQuoteVolume24h)

	report, err := primary.Sweep(ctx)
	if err != nil {
		log.Printf("⚠️  primary sweep failed: %v", err)
	} else {
		log.Printf("🔍 primary sweep: %d symbols, %d candidates, thresholds=%+v", report.SweptSymbols, report.Candidates, report.Thresholds)
	}
	if *primaryScanOnly {
		return
	}

	observerManager := workerpool.New(ctx, func() workerpool.Worker {
		return observer.NewWorker(observerPool, book, 2*time.Second)
	}, workerpool.Staircase{0: 1, 50: 2, 150: 4, 400: 8}, 1, 16)
	defer observerManager.Shutdown()

	hotManager := workerpool.New(ctx, func() workerpool.Worker {
		return hotpool.NewWorker(hotPool, book, contextCache, cfg.HotCycleMinInterval)
	}, workerpool.Staircase{0: 1, 25: 2, 75: 4}, 1, 8)
	defer hotManager.Shutdown()

	persister := hotpool.NewPersister(hotPool, client.Name(), cfg.PersistPath, cfg.FlushMinInterval)
	go persister.Run(ctx)

	go general.Run(ctx)

	go rebalance(ctx, observerPool.OwnedSymbols, observerManager)
	go rebalance(ctx, hotPool.OwnedSymbols, hotManager)

	srv := &http.Server{Addr: *httpAddr, Handler: server.Routes()}
	go func() {
		log.Printf("🌐 fan-out server listening on %s", *httpAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("⚠️  fan-out server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

// rebalance periodically resizes and redistributes a pool's worker
// set to match its current owned-symbol load, the adaptive worker
// manager's intended use per §4.7. Used for both the observer pool
// and the hot pool, each with their own staircase and symbol source.
func rebalance(ctx context.Context, ownedSymbols func() []string, manager *workerpool.Manager) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			symbols := ownedSymbols()
			manager.ResizeForLoad(len(symbols))
			manager.Distribute(symbols)
		}
	}
}
