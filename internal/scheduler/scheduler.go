package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Ballpark/internal/domain"
	"github.com/shaiso/Ballpark/internal/telemetry"
	"github.com/shaiso/Ballpark/internal/warehouse"
)

// ScheduleStore — доступ к расписаниям.
type ScheduleStore interface {
	ListDue(ctx context.Context, limit int) ([]domain.Schedule, error)
	Update(ctx context.Context, s *domain.Schedule) error
}

// RunStore — создание runs с проверкой идемпотентности.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Run, error)
}

// Publisher — публикация события о новом run. Nil допустим:
// orchestrator подхватит run через polling.
type Publisher interface {
	PublishRunPending(ctx context.Context, runID uuid.UUID) error
}

// Scheduler — планировщик, обрабатывающий due schedules.
type Scheduler struct {
	schedules ScheduleStore
	runs      RunStore
	publisher Publisher
	logger    *slog.Logger
	batchSize int
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules ScheduleStore
	Runs      RunStore
	Publisher Publisher
	Logger    *slog.Logger
	BatchSize int // количество schedules за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		schedules: cfg.Schedules,
		runs:      cfg.Runs,
		publisher: cfg.Publisher,
		logger:    logger,
		batchSize: batchSize,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due schedules (enabled=true, next_due_at <= now)
// 2. Для каждого schedule создаёт run с идемпотентным ключом
// 3. Обновляет next_due_at
// 4. Публикует run.pending в RabbitMQ
//
// Ошибки одного schedule не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now()

	schedules, err := s.schedules.ListDue(ctx, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(schedules) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(schedules))

	var processed, created int
	for i := range schedules {
		sched := &schedules[i]

		runCreated, err := s.processSchedule(ctx, sched, now)
		if err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			continue
		}

		processed++
		if runCreated {
			created++
		}
	}

	s.logger.Info("scheduler tick completed",
		"due", len(schedules),
		"processed", processed,
		"runs_created", created,
	)

	return nil
}

// processSchedule обрабатывает один due schedule.
// Возвращает true, если run был создан (не был дубликатом).
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	dueAt := *sched.NextDueAt

	// Один ключ на (schedule, слот времени): повторный тик по тому же
	// слоту не создаст второй run.
	idempKey := domain.ScheduledIdempotencyKey(sched.ID, dueAt)

	existing, err := s.runs.GetByIdempotencyKey(ctx, idempKey)
	if err != nil && !errors.Is(err, warehouse.ErrNotFound) {
		return false, fmt.Errorf("check idempotency: %w", err)
	}

	var runCreated bool
	var runID uuid.UUID

	if existing != nil {
		s.logger.Debug("run already exists (idempotency)",
			"schedule_id", sched.ID,
			"run_id", existing.ID,
			"idempotency_key", idempKey,
		)
		runID = existing.ID
	} else {
		run := domain.NewRun(sched.Kind, sched.Trigger(), BuildRunParams(sched.Kind, dueAt))
		run.IdempotencyKey = idempKey

		if err := s.runs.Create(ctx, run); err != nil {
			return false, fmt.Errorf("create run: %w", err)
		}

		telemetry.ScheduledRuns.WithLabelValues(string(sched.Kind)).Inc()
		s.logger.Info("created run from schedule",
			"run_id", run.ID,
			"schedule_id", sched.ID,
			"schedule_name", sched.Name,
			"kind", sched.Kind,
		)

		runID = run.ID
		runCreated = true
	}

	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		// Schedule некорректный — next_due_at не трогаем, чтобы не
		// зациклить создание runs.
		s.logger.Error("failed to calculate next due",
			"schedule_id", sched.ID,
			"error", err,
		)
		return runCreated, nil
	}

	sched.RecordRun(runID, nextDue)
	if err := s.schedules.Update(ctx, sched); err != nil {
		return runCreated, fmt.Errorf("update schedule: %w", err)
	}

	if s.publisher != nil && runCreated {
		if err := s.publisher.PublishRunPending(ctx, runID); err != nil {
			// Не фатально: run уже в БД, orchestrator заберёт его polling'ом.
			s.logger.Warn("failed to publish run.pending",
				"run_id", runID,
				"error", err,
			)
		}
	}

	return runCreated, nil
}

// BuildRunParams строит параметры run для запуска по расписанию.
//
// Daily pipeline обрабатывает предыдущий день: игры завершаются ночью,
// и утренний запуск должен видеть финальные счёта. Live и quality
// работают с текущей датой. Сезон выводится из целевой даты.
func BuildRunParams(kind domain.PipelineKind, dueAt time.Time) domain.RunParams {
	target := dueAt.UTC().Truncate(24 * time.Hour)
	if kind == domain.PipelineDaily {
		target = target.AddDate(0, 0, -1)
	}
	return domain.RunParams{
		Season:     target.Year(),
		TargetDate: &target,
	}
}
