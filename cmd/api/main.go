package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"leaseflow/auth"
	"leaseflow/blob"
	"leaseflow/contract"
	"leaseflow/db"
	"leaseflow/dispute"
	"leaseflow/metrics"
	"leaseflow/outbox"
)

type config struct {
	Addr               string
	DatabaseURL        string
	JWTSecret          string
	WalrusPublisherURL string
	WalrusAggregator   string
	WalrusEpochs       int
	EscrowAuthorityKey string
	SweepInterval      time.Duration
	OutboxInterval     time.Duration
}

func loadConfig() config {
	_ = godotenv.Load()

	cfg := config{
		Addr:               getenv("ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		WalrusPublisherURL: getenv("WALRUS_PUBLISHER_URL", "https://publisher.walrus-testnet.walrus.space"),
		WalrusAggregator:   getenv("WALRUS_AGGREGATOR_URL", "https://aggregator.walrus-testnet.walrus.space"),
		WalrusEpochs:       getenvInt("WALRUS_EPOCHS", 5),
		EscrowAuthorityKey: os.Getenv("ESCROW_AUTHORITY_KEY"),
		SweepInterval:      getenvDuration("SWEEP_INTERVAL", time.Minute),
		OutboxInterval:     getenvDuration("OUTBOX_INTERVAL", time.Second),
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func main() {
	cfg := loadConfig()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("bootstrap logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("bootstrap database pool", zap.Error(err))
	}
	defer pool.Close()

	verifier, err := dispute.NewAttestedVerifier(cfg.EscrowAuthorityKey)
	if err != nil {
		logger.Fatal("bootstrap stake verifier", zap.Error(err))
	}

	met := metrics.NewMetrics()
	disputeService := dispute.NewService(pool, verifier)

	server := &Server{
		contractService:  contract.NewService(pool),
		lifecycleService: contract.NewLifecycleService(pool),
		disputeService:   disputeService,
		authService:      auth.NewService(cfg.JWTSecret),
		blobStore:        blob.NewClient(cfg.WalrusPublisherURL, cfg.WalrusAggregator, cfg.WalrusEpochs),
		log:              logger,
		met:              met,
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sweeper := dispute.NewSweeper(pool, disputeService, logger, cfg.SweepInterval)
	worker := outbox.NewWorker(pool, outbox.DispatcherFunc(func(_ context.Context, msg outbox.Message) error {
		// The settlement executor is external; until it subscribes, dispatch
		// just logs the handoff.
		logger.Info("outbox dispatch",
			zap.String("topic", msg.Topic),
			zap.String("outbox_id", msg.ID))
		return nil
	}), logger, met, cfg.OutboxInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return ignoreCancel(sweeper.Run(gctx)) })
	g.Go(func() error { return ignoreCancel(worker.Run(gctx)) })

	if err := g.Wait(); err != nil {
		logger.Fatal("shutdown with error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
