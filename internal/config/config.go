// Package config loads the tunables of the wall-tracking pipeline from
// a .env file (if present) and the process environment, the same way
// the rest of this codebase's ambient stack does: godotenv first,
// os.Getenv with hardcoded defaults after.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable named in the pipeline design: detector
// thresholds, promotion/death thresholds, scan cadences, worker
// staircases and exchange credentials.
type Config struct {
	BinanceAPIKey    string
	BinanceSecretKey string
	IsTestnet        bool

	// Wall detector (C2)
	KMult float64
	Depth int

	// Primary scanner (C3)
	PrimaryTopN     int
	PrimaryWorkers  int
	MinQuoteVolume24h float64

	// General scanner (C4)
	GeneralBatchSize int
	GeneralInterval  time.Duration

	// Observer pool (C5)
	SurvivalRatio  float64
	PromoteAfter   time.Duration
	CleanupScans   int

	// Hot pool (C6)
	HotCycleMinInterval time.Duration
	SnapshotCap         int
	WeightChangeThreshold float64
	NotionalChangeThreshold float64
	FlushMinInterval    time.Duration
	PersistPath         string

	// Weight engine (C7)
	RecommendedAlgorithm string

	// Rate limiting & retry (§5, §7)
	RequestsPerSecond float64
	IOTimeout         time.Duration
	MaxRetries        int

	// Fan-out (C9)
	PublicDelay time.Duration

	// Auth (collaborator concern, optional)
	FirebaseCredentialsFile string
}

// Load reads .env (if present) then the OS environment, applying the
// same defaults-with-override pattern the rest of this codebase uses.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, relying on system environment variables")
	}

	apiKey := os.Getenv("BINANCE_API_KEY")
	apiSecret := os.Getenv("BINANCE_SECRET_KEY")
	if apiKey == "" || apiSecret == "" {
		log.Println("⚠️  Binance credentials missing — read-only public endpoints only")
	}

	cfg := &Config{
		BinanceAPIKey:    apiKey,
		BinanceSecretKey: apiSecret,
		IsTestnet:        envBool("BINANCE_TESTNET", false),

		KMult: envFloat("WALL_K_MULT", 3.5),
		Depth: envInt("WALL_DEPTH", 20),

		PrimaryTopN:       envInt("PRIMARY_TOP_N", 250),
		PrimaryWorkers:    envInt("PRIMARY_WORKERS", 5),
		MinQuoteVolume24h: envFloat("MIN_QUOTE_VOLUME_24H", 0),

		GeneralBatchSize: envInt("GENERAL_BATCH_SIZE", 50),
		GeneralInterval:  envDuration("GENERAL_INTERVAL_SECONDS", 2*time.Second),

		SurvivalRatio: envFloat("SURVIVAL_RATIO", 0.7),
		PromoteAfter:  envDuration("PROMOTE_AFTER_SECONDS", 60*time.Second),
		CleanupScans:  envInt("CLEANUP_SCANS", 10),

		HotCycleMinInterval:     envDuration("HOT_CYCLE_MIN_SECONDS", 500*time.Millisecond),
		SnapshotCap:             envInt("SNAPSHOT_CAP", 64),
		WeightChangeThreshold:   envFloat("WEIGHT_CHANGE_THRESHOLD", 0.05),
		NotionalChangeThreshold: envFloat("NOTIONAL_CHANGE_THRESHOLD", 0.05),
		FlushMinInterval:        envDuration("FLUSH_MIN_SECONDS", 1*time.Second),
		PersistPath:             envString("HOT_ORDERS_PATH", "hot_orders.json"),

		RecommendedAlgorithm: envString("RECOMMENDED_ALGORITHM", "hybrid"),

		RequestsPerSecond: envFloat("EXCHANGE_REQUESTS_PER_SECOND", 10),
		IOTimeout:         envDuration("IO_TIMEOUT_SECONDS", 10*time.Second),
		MaxRetries:        envInt("MAX_RETRIES", 3),

		PublicDelay: envDuration("PUBLIC_DELAY_SECONDS", 2*time.Second),

		FirebaseCredentialsFile: envString("FIREBASE_CREDENTIALS_FILE", ""),
	}

	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return def
}
