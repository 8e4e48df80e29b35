// Ballpark Orchestrator — выполняет pipeline runs.
//
// Orchestrator:
//   - Получает новые runs из RabbitMQ (и через polling fallback)
//   - Строит фиксированный DAG варианта pipeline
//   - Выполняет узлы пулом воркеров с retry по backoff-политике
//   - Финализирует runs (SUCCEEDED/DEGRADED/FAILED)
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Ballpark/internal/config"
	"github.com/shaiso/Ballpark/internal/mq"
	"github.com/shaiso/Ballpark/internal/orchestrator"
	"github.com/shaiso/Ballpark/internal/rules"
	"github.com/shaiso/Ballpark/internal/telemetry"
	"github.com/shaiso/Ballpark/internal/upstream"
	"github.com/shaiso/Ballpark/internal/warehouse"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting ballpark-orchestrator")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	pool, err := warehouse.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	runRepo := warehouse.NewRunRepo(pool)
	anomalyRepo := warehouse.NewAnomalyRepo(pool)
	loader := warehouse.NewLoader(pool, logger)
	reader := warehouse.NewReader(pool)

	extractor := upstream.New(upstream.Config{
		BaseURL:    cfg.UpstreamBaseURL,
		TimeoutSec: cfg.UpstreamTimeoutSec,
	})

	// RabbitMQ опционален: без него orchestrator работает в
	// polling-only режиме, а алерты не публикуются.
	var mqConn *mq.Connection
	var alertSink orchestrator.AlertSink
	if cfg.MQURL != "" {
		mqConn, err = mq.Dial(cfg.MQURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
			mqConn = nil
		} else {
			defer mqConn.Close()
			logger.Info("RabbitMQ connected")

			if err := mq.SetupTopology(mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			alertSink = mq.NewPublisher(mqConn, logger)
		}
	}

	orch := orchestrator.New(orchestrator.Config{
		RunStore:       runRepo,
		AnomalyStore:   anomalyRepo,
		Extractor:      extractor,
		Loader:         loader,
		Reader:         reader,
		Validator:      rules.New(cfg.DisabledRules),
		AlertSink:      alertSink,
		Conn:           mqConn,
		PollInterval:   cfg.PollInterval(),
		BatchSize:      cfg.BatchSize,
		Workers:        cfg.Workers,
		ExtractWorkers: cfg.ExtractWorkers,
		RunTimeout:     cfg.RunTimeout(),
		Retry:          cfg.RetryPolicy(),
		Freshness:      cfg.Freshness(),
		Logger:         logger,
	})

	if err := orch.Start(ctx); err != nil {
		logger.Error("failed to start orchestrator", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := http.ListenAndServe(cfg.HTTPAddr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	orch.Stop()
	logger.Info("ballpark-orchestrator stopped")
}
