package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunParams — параметры запуска pipeline run.
//
// Для daily/live/quality задаётся одна дата (TargetDate), для backfill —
// замкнутый диапазон [FromDate, ToDate].
type RunParams struct {
	// Season — сезон, к которому относится run.
	Season int `json:"season"`

	// TargetDate — дата данных для daily/live/quality run.
	TargetDate *time.Time `json:"target_date,omitempty"`

	// FromDate, ToDate — границы диапазона backfill (включительно).
	FromDate *time.Time `json:"from_date,omitempty"`
	ToDate   *time.Time `json:"to_date,omitempty"`

	// Entities — сущности, которые перезагружает backfill. Пустой
	// список означает набор по умолчанию: games и standings.
	Entities []EntityType `json:"entities,omitempty"`
}

// Dates возвращает список дат, которые покрывает run, в порядке
// возрастания. Для backfill — каждую дату диапазона, иначе TargetDate.
func (p RunParams) Dates() []time.Time {
	if p.FromDate != nil && p.ToDate != nil {
		var dates []time.Time
		for d := *p.FromDate; !d.After(*p.ToDate); d = d.AddDate(0, 0, 1) {
			dates = append(dates, d)
		}
		return dates
	}
	if p.TargetDate != nil {
		return []time.Time{*p.TargetDate}
	}
	return nil
}

// Run — экземпляр выполнения pipeline.
//
// Run создаётся когда:
// - Scheduler находит due-расписание (daily, live, quality)
// - Оператор запускает backfill через CLI
//
// Каждый run выполняет фиксированный DAG своего PipelineKind и имеет
// свой набор tasks.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Kind — вариант DAG, который выполняет run.
	Kind PipelineKind `json:"kind"`

	// Trigger — способ запуска.
	Trigger TriggerType `json:"trigger"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Params — параметры запуска (даты, сезон).
	Params RunParams `json:"params"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	// Nil, если run ещё не начался.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения (в любом терминальном статусе).
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки, если run завершился с FAILED.
	Error string `json:"error,omitempty"`

	// IdempotencyKey — ключ идемпотентности для предотвращения дубликатов.
	// Для scheduled runs: "{schedule_id}_{next_due_at_unix}".
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт run в статусе PENDING.
func NewRun(kind PipelineKind, trigger TriggerType, params RunParams) *Run {
	return &Run{
		ID:        uuid.New(),
		Kind:      kind,
		Trigger:   trigger,
		Status:    RunStatusPending,
		Params:    params,
		CreatedAt: time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkSucceeded переводит run в статус SUCCEEDED.
func (r *Run) MarkSucceeded() {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.FinishedAt = &now
}

// MarkDegraded переводит run в статус DEGRADED: pipeline отработал,
// но валидация нашла critical-аномалию.
func (r *Run) MarkDegraded(reason string) {
	now := time.Now()
	r.Status = RunStatusDegraded
	r.FinishedAt = &now
	r.Error = reason
}

// MarkFailed переводит run в статус FAILED с ошибкой.
func (r *Run) MarkFailed(err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.Error = err
}

// ScheduledIdempotencyKey строит ключ идемпотентности для run,
// созданного scheduler'ом: один ключ на (schedule, слот времени).
func ScheduledIdempotencyKey(scheduleID uuid.UUID, dueAt time.Time) string {
	return fmt.Sprintf("%s_%d", scheduleID, dueAt.Unix())
}
