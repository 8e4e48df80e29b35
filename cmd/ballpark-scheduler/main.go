// Ballpark Scheduler — cadence-демон pipeline.
//
// Scheduler периодически проверяет расписания с истекшим next_due_at,
// создаёт pending runs (идемпотентно по слоту времени) и публикует
// события run.pending в RabbitMQ.
//
// Leader election реализован через pg_try_advisory_lock: при нескольких
// репликах тикает только одна.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Ballpark/internal/config"
	"github.com/shaiso/Ballpark/internal/mq"
	"github.com/shaiso/Ballpark/internal/scheduler"
	"github.com/shaiso/Ballpark/internal/telemetry"
	"github.com/shaiso/Ballpark/internal/warehouse"
)

// schedLockKey — ключ advisory lock для leader election.
const schedLockKey int64 = 727272

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting ballpark-scheduler")

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

	var publisher scheduler.Publisher
	if cfg.MQURL != "" {
		mqConn, err := mq.Dial(cfg.MQURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, runs will rely on orchestrator polling", "error", err)
		} else {
			defer mqConn.Close()
			logger.Info("RabbitMQ connected")

			if err := mq.SetupTopology(mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			publisher = mq.NewPublisher(mqConn, logger)
		}
	}

	sched := scheduler.New(scheduler.Config{
		Schedules: warehouse.NewScheduleRepo(pool),
		Runs:      warehouse.NewRunRepo(pool),
		Publisher: publisher,
		Logger:    logger,
		BatchSize: cfg.BatchSize,
	})

	// scheduler loop
	go func() {
		tk := time.NewTicker(cfg.SchedulerTick())
		defer tk.Stop()

		var hasLock bool
		defer func() {
			if hasLock {
				_, _ = pool.Exec(context.Background(), "select pg_advisory_unlock($1)", schedLockKey)
			}
		}()

		for {
			select {
			case <-tk.C:
				if !hasLock {
					var ok bool
					if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", schedLockKey).Scan(&ok); err != nil {
						logger.Error("advisory lock error", "error", err)
						continue
					}
					hasLock = ok
					if ok {
						logger.Info("acquired scheduler leadership")
					}
				}

				if !hasLock {
					// не лидер — пропускаем тик
					continue
				}

				if err := sched.Tick(ctx); err != nil {
					logger.Error("scheduler tick failed", "error", err)
				}

			case <-ctx.Done():
				return
			}
		}
	}()

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
	logger.Info("ballpark-scheduler stopped")
}
