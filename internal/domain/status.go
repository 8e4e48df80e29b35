package domain

// RunStatus — статус выполнения pipeline run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ DEGRADED (выполнен, но найдена critical-аномалия)
//	                  ↘ FAILED
type RunStatus string

const (
	// RunStatusPending — run создан, но ещё не начал выполняться.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — run успешно завершён, аномалий уровня critical нет.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusDegraded — run выполнен полностью, но валидация нашла
	// critical-аномалию. Отличается от FAILED: pipeline отработал,
	// проблема в самих данных.
	RunStatusDegraded RunStatus = "DEGRADED"

	// RunStatusFailed — run завершился с ошибкой (упал обязательный task).
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusDegraded, RunStatusFailed:
		return true
	default:
		return false
	}
}

// TaskStatus — статус выполнения отдельного узла DAG.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ RETRYING → RUNNING (пока не исчерпаны попытки)
//	                  ↘ FAILED
//	PENDING → SKIPPED (зависимость упала или истёк run-level timeout)
type TaskStatus string

const (
	// TaskStatusPending — task ожидает выполнения зависимостей.
	TaskStatusPending TaskStatus = "PENDING"

	// TaskStatusRunning — task выполняется воркером.
	TaskStatusRunning TaskStatus = "RUNNING"

	// TaskStatusRetrying — task упал с transient-ошибкой и ждёт
	// следующей попытки по backoff-политике.
	TaskStatusRetrying TaskStatus = "RETRYING"

	// TaskStatusSucceeded — task успешно завершён.
	TaskStatusSucceeded TaskStatus = "SUCCEEDED"

	// TaskStatusFailed — task завершился с ошибкой: после исчерпания
	// retry либо сразу при permanent-ошибке.
	TaskStatusFailed TaskStatus = "FAILED"

	// TaskStatusSkipped — task не выполнялся: упала его зависимость
	// или run был прерван по таймауту.
	TaskStatusSkipped TaskStatus = "SKIPPED"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// Severity — уровень серьёзности аномалии данных.
//
// Маппинг severity фиксирован на уровне правила (rule id) и не
// вычисляется динамически, поэтому поведение детерминировано.
type Severity string

const (
	// SeverityWarning — подозрительно, но не блокирует (например,
	// расхождение standings с суммой финальных игр).
	SeverityWarning Severity = "warning"

	// SeverityError — нарушение инварианта данных (отрицательный счёт,
	// batting average вне [0,1]).
	SeverityError Severity = "error"

	// SeverityCritical — данные непригодны для потребителей; run
	// помечается DEGRADED, аномалия уходит в alert sink.
	SeverityCritical Severity = "critical"
)

// TriggerType — способ запуска pipeline run.
type TriggerType string

const (
	// TriggerScheduled — запуск по cron-расписанию (ежедневный batch).
	TriggerScheduled TriggerType = "scheduled"

	// TriggerInterval — запуск по короткому интервалу (live-игры).
	TriggerInterval TriggerType = "interval"

	// TriggerManual — ручной запуск (backfill за диапазон дат).
	TriggerManual TriggerType = "manual"
)

// PipelineKind — вариант DAG, который выполняет run.
type PipelineKind string

const (
	// PipelineDaily — полный цикл: extract → load → validate → alert,
	// параллельно freshness-check после load.
	PipelineDaily PipelineKind = "daily"

	// PipelineLive — облегчённый цикл для live-игр: extract → load.
	// Полная валидация отложена до дневного batch.
	PipelineLive PipelineKind = "live"

	// PipelineQuality — только контроль качества: validate + freshness
	// → alert, без извлечения.
	PipelineQuality PipelineKind = "quality"

	// PipelineBackfill — независимые цепочки extract → load → validate
	// на каждую дату диапазона.
	PipelineBackfill PipelineKind = "backfill"
)

// EntityType — тип сущности хранилища.
type EntityType string

const (
	EntityGames       EntityType = "games"
	EntityTeams       EntityType = "teams"
	EntityPlayers     EntityType = "players"
	EntityStandings   EntityType = "standings"
	EntityPlayerStats EntityType = "player_stats"
	EntityGameEvents  EntityType = "game_events"
)
