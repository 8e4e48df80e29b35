package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Ballpark/internal/domain"
	"github.com/shaiso/Ballpark/internal/mq"
	"github.com/shaiso/Ballpark/internal/rules"
	"github.com/shaiso/Ballpark/internal/warehouse"
)

// Default configuration values.
const (
	defaultPollInterval   = 10 * time.Second
	defaultBatchSize      = 100
	defaultWorkers        = 8
	defaultExtractWorkers = 3
	defaultRunTimeout     = 30 * time.Minute
)

// Extractor — источник данных pipeline. Каждый вызов делает одну
// попытку; повторы организует orchestrator.
type Extractor interface {
	FetchGames(ctx context.Context, date time.Time) (*domain.Batch, error)
	FetchStandings(ctx context.Context, date time.Time, season int) (*domain.Batch, error)
	FetchTeams(ctx context.Context, season int) (*domain.Batch, error)
	FetchPlayers(ctx context.Context, season int) (*domain.Batch, error)
	FetchPlayerStats(ctx context.Context, season int) (*domain.Batch, error)
	FetchGameEvents(ctx context.Context, gameID int64, date time.Time) (*domain.Batch, error)
}

// Loader — идемпотентная запись батчей в хранилище.
type Loader interface {
	Load(ctx context.Context, batch *domain.Batch) (*warehouse.LoadSummary, error)
}

// WarehouseReader — чтение загруженных данных для валидации.
type WarehouseReader interface {
	GamesByDate(ctx context.Context, date time.Time) ([]domain.GameRecord, error)
	StandingsByDate(ctx context.Context, date time.Time) ([]domain.StandingRecord, error)
	PlayerStatsBySeason(ctx context.Context, season int) ([]domain.PlayerStatRecord, error)
	LiveGameIDs(ctx context.Context, date time.Time) ([]int64, error)
	LastLoadedAt(ctx context.Context, entity domain.EntityType) (*time.Time, error)
}

// RunStore — персистенция runs и tasks.
type RunStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	Update(ctx context.Context, run *domain.Run) error
	ListPending(ctx context.Context, limit int) ([]domain.Run, error)
	CreateTasks(ctx context.Context, tasks []*domain.Task) error
	UpdateTask(ctx context.Context, t *domain.Task) error
}

// AnomalyStore — персистенция аномалий.
type AnomalyStore interface {
	RecordDetected(ctx context.Context, anomalies []*domain.Anomaly) error
}

// AlertSink — приёмник critical-аномалий (fire-and-forget).
type AlertSink interface {
	PublishAlert(ctx context.Context, a *domain.Anomaly) error
}

// Orchestrator управляет выполнением pipeline runs.
//
// Orchestrator — центральный компонент системы, который:
//   - Получает новые runs из очереди RabbitMQ (event-driven)
//   - Периодически проверяет pending runs в БД (polling fallback)
//   - Строит фиксированный DAG для каждого run
//   - Выполняет готовые узлы пулом воркеров, с retry по backoff-политике
//   - Финализирует runs (SUCCEEDED/DEGRADED/FAILED)
type Orchestrator struct {
	runStore     RunStore
	anomalyStore AnomalyStore

	extractor Extractor
	loader    Loader
	reader    WarehouseReader
	validator *rules.Validator
	alertSink AlertSink

	// MQ (опционально: без подключения работает только polling)
	conn        *mq.Connection
	runConsumer *mq.Consumer

	// Active runs — runs в процессе выполнения (runID → state)
	activeRuns map[uuid.UUID]*RunState
	mu         sync.RWMutex

	// Configuration
	pollInterval   time.Duration
	batchSize      int
	workers        int
	extractWorkers int
	runTimeout     time.Duration
	retry          domain.RetryPolicy
	freshness      rules.FreshnessThresholds

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Orchestrator.
type Config struct {
	RunStore     RunStore
	AnomalyStore AnomalyStore

	Extractor Extractor
	Loader    Loader
	Reader    WarehouseReader
	Validator *rules.Validator
	AlertSink AlertSink

	// Conn — подключение к MQ для consumer'а runs.pending.
	// Nil допустим: остаётся только polling fallback.
	Conn *mq.Connection

	// PollInterval — интервал polling fallback (default: 10s).
	PollInterval time.Duration

	// BatchSize — количество runs за один poll (default: 100).
	BatchSize int

	// Workers — общий размер пула воркеров (default: 8).
	Workers int

	// ExtractWorkers — ограничение одновременных extract-узлов,
	// чтобы не перегружать upstream API (default: 3).
	ExtractWorkers int

	// RunTimeout — предельное время выполнения одного run (default: 30m).
	RunTimeout time.Duration

	// Retry — политика повторов transient-ошибок.
	Retry domain.RetryPolicy

	// Freshness — пороги свежести по сущностям.
	Freshness rules.FreshnessThresholds

	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.ExtractWorkers <= 0 {
		cfg.ExtractWorkers = defaultExtractWorkers
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = domain.DefaultRetryPolicy()
	}
	if cfg.Freshness == nil {
		cfg.Freshness = rules.DefaultFreshnessThresholds()
	}
	if cfg.Validator == nil {
		cfg.Validator = rules.New(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Orchestrator{
		runStore:       cfg.RunStore,
		anomalyStore:   cfg.AnomalyStore,
		extractor:      cfg.Extractor,
		loader:         cfg.Loader,
		reader:         cfg.Reader,
		validator:      cfg.Validator,
		alertSink:      cfg.AlertSink,
		conn:           cfg.Conn,
		activeRuns:     make(map[uuid.UUID]*RunState),
		pollInterval:   cfg.PollInterval,
		batchSize:      cfg.BatchSize,
		workers:        cfg.Workers,
		extractWorkers: cfg.ExtractWorkers,
		runTimeout:     cfg.RunTimeout,
		retry:          cfg.Retry,
		freshness:      cfg.Freshness,
		logger:         cfg.Logger,
	}
}

// Start запускает Orchestrator: consumer runs.pending (если есть MQ)
// и polling-горутину.
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	o.logger.Info("starting orchestrator",
		"poll_interval", o.pollInterval,
		"workers", o.workers,
		"extract_workers", o.extractWorkers,
		"run_timeout", o.runTimeout,
	)

	if o.conn != nil {
		o.runConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueRunsPending),
			Handler:  o.handleRunPending,
			Prefetch: 10,
		})
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.runConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("run consumer error", "error", err)
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.pollLoop(ctx)
	}()

	o.logger.Info("orchestrator started")
	return nil
}

// Stop останавливает Orchestrator и ждёт завершения горутин.
func (o *Orchestrator) Stop() {
	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}
	if o.runConsumer != nil {
		o.runConsumer.Stop()
	}
	o.wg.Wait()

	o.logger.Info("orchestrator stopped", "active_runs", o.ActiveRunsCount())
}

// handleRunPending обрабатывает событие runs.pending из MQ.
func (o *Orchestrator) handleRunPending(ctx context.Context, d *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunPendingPayload](&d.Message)
	if err != nil {
		// Невалидный payload перевыдачей не лечится.
		o.logger.Error("invalid run pending payload", "message_id", d.Message.ID, "error", err)
		return nil
	}

	if err := o.ProcessRun(ctx, payload.RunID); err != nil {
		if errors.Is(err, ErrRunAlreadyActive) {
			return nil
		}
		return fmt.Errorf("process run %s: %w", payload.RunID, err)
	}
	return nil
}

// pollLoop — цикл polling fallback.
func (o *Orchestrator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем runs, созданные пока
	// процесс был выключен).
	o.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (o *Orchestrator) poll(ctx context.Context) {
	runs, err := o.runStore.ListPending(ctx, o.batchSize)
	if err != nil {
		o.logger.Error("failed to list pending runs", "error", err)
		return
	}

	for i := range runs {
		run := &runs[i]
		if o.isRunActive(run.ID) {
			continue
		}
		if err := o.ProcessRun(ctx, run.ID); err != nil && !errors.Is(err, ErrRunAlreadyActive) {
			o.logger.Error("failed to process run from poll", "run_id", run.ID, "error", err)
		}
	}
}

func (o *Orchestrator) isRunActive(runID uuid.UUID) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, exists := o.activeRuns[runID]
	return exists
}

func (o *Orchestrator) addActiveRun(state *RunState) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.activeRuns[state.RunID()]; exists {
		return ErrRunAlreadyActive
	}
	o.activeRuns[state.RunID()] = state
	return nil
}

func (o *Orchestrator) removeActiveRun(runID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.activeRuns, runID)
}

// ActiveRunsCount возвращает количество активных runs.
func (o *Orchestrator) ActiveRunsCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.activeRuns)
}

// GetActiveRunStats возвращает статистику по активному run.
func (o *Orchestrator) GetActiveRunStats(runID uuid.UUID) (RunStats, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	state, exists := o.activeRuns[runID]
	if !exists {
		return RunStats{}, false
	}
	return state.Stats(), true
}
