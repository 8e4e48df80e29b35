package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskKind — тип узла DAG.
type TaskKind string

const (
	// TaskExtract — извлечение сущности из upstream API.
	TaskExtract TaskKind = "extract"

	// TaskLoad — идемпотентная запись батча в хранилище.
	TaskLoad TaskKind = "load"

	// TaskValidate — прогон правил валидации по свежезагруженным данным.
	TaskValidate TaskKind = "validate"

	// TaskFreshness — проверка свежести данных; зависит только от load.
	TaskFreshness TaskKind = "freshness"

	// TaskAlert — публикация накопленных critical-аномалий в alert sink.
	TaskAlert TaskKind = "alert"
)

// TaskParams — параметры узла DAG.
type TaskParams struct {
	// Entity — сущность, с которой работает узел (extract/load).
	Entity EntityType `json:"entity,omitempty"`

	// Date — дата данных, к которой привязан узел.
	Date *time.Time `json:"date,omitempty"`

	// Season — сезон (для справочников и статистики).
	Season int `json:"season,omitempty"`
}

// Task — отдельный узел DAG внутри run.
//
// Task создаётся Orchestrator'ом при старте run — сразу весь DAG,
// в статусе PENDING. Узел становится ready, когда все его зависимости
// в SUCCEEDED.
type Task struct {
	// ID — уникальный идентификатор task.
	ID uuid.UUID `json:"id"`

	// RunID — ссылка на родительский run.
	RunID uuid.UUID `json:"run_id"`

	// NodeID — ID узла в DAG (уникален в рамках run).
	NodeID string `json:"node_id"`

	// Kind — тип узла.
	Kind TaskKind `json:"kind"`

	// Params — параметры узла.
	Params TaskParams `json:"params"`

	// Attempt — номер попытки (начиная с 1).
	// Увеличивается при retry.
	Attempt int `json:"attempt"`

	// Status — текущий статус task.
	Status TaskStatus `json:"status"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// NextAttemptAt — время следующей попытки для RETRYING task.
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания task.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(*t.StartedAt)
}

// IsFinished возвращает true, если task завершён.
func (t *Task) IsFinished() bool {
	return t.Status.IsTerminal()
}

// MarkRunning переводит task в статус RUNNING.
func (t *Task) MarkRunning() {
	now := time.Now()
	t.Status = TaskStatusRunning
	t.StartedAt = &now
	t.NextAttemptAt = nil
	t.Attempt++
}

// MarkSucceeded переводит task в статус SUCCEEDED.
func (t *Task) MarkSucceeded() {
	now := time.Now()
	t.Status = TaskStatusSucceeded
	t.FinishedAt = &now
	t.Error = ""
}

// MarkRetrying переводит task в статус RETRYING: попытка упала с
// transient-ошибкой, следующая — не раньше nextAttempt.
func (t *Task) MarkRetrying(err string, nextAttempt time.Time) {
	t.Status = TaskStatusRetrying
	t.Error = err
	t.NextAttemptAt = &nextAttempt
}

// MarkFailed переводит task в статус FAILED с ошибкой.
func (t *Task) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.FinishedAt = &now
	t.Error = err
}

// MarkSkipped переводит task в статус SKIPPED: зависимость упала
// или run прерван по таймауту.
func (t *Task) MarkSkipped(reason string) {
	now := time.Now()
	t.Status = TaskStatusSkipped
	t.FinishedAt = &now
	t.Error = reason
}

// CanRetry проверяет, можно ли сделать ещё одну попытку.
func (t *Task) CanRetry(maxAttempts int) bool {
	return t.Attempt < maxAttempts
}

// RetryPolicy — политика повторов для transient-ошибок.
//
// Задержка перед попыткой n (n >= 2):
//
//	min(BaseDelayMs * Multiplier^(n-2), MaxDelayMs) + jitter,
//
// где jitter — равномерная добавка из [0, JitterMs]. Permanent-ошибки
// повторов не получают независимо от политики.
type RetryPolicy struct {
	// MaxAttempts — максимум попыток, включая первую.
	MaxAttempts int `json:"max_attempts"`

	// BaseDelayMs — задержка перед второй попыткой.
	BaseDelayMs int `json:"base_delay_ms"`

	// Multiplier — множитель экспоненциального роста задержки.
	Multiplier float64 `json:"multiplier"`

	// MaxDelayMs — потолок задержки до добавления jitter.
	MaxDelayMs int `json:"max_delay_ms"`

	// JitterMs — верхняя граница случайной добавки.
	JitterMs int `json:"jitter_ms"`
}

// DefaultRetryPolicy — политика по умолчанию: 5 попыток,
// 1s → 2s → 4s → 8s, потолок 60s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelayMs: 1000,
		Multiplier:  2,
		MaxDelayMs:  60000,
		JitterMs:    500,
	}
}

// Delay возвращает детерминированную часть задержки перед попыткой
// attempt (нумерация с 1). Jitter добавляет вызывающая сторона.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	delay := float64(p.BaseDelayMs)
	for i := 2; i < attempt; i++ {
		delay *= p.Multiplier
	}
	if delay > float64(p.MaxDelayMs) {
		delay = float64(p.MaxDelayMs)
	}
	return time.Duration(delay) * time.Millisecond
}
