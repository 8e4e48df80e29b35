package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Ballpark/internal/domain"
	"github.com/shaiso/Ballpark/internal/telemetry"
	"github.com/shaiso/Ballpark/internal/upstream"
)

// wakeInterval — страховочный интервал пробуждения цикла run.
const wakeInterval = time.Second

// nodeResult — результат выполнения одного узла.
type nodeResult struct {
	nodeID string
	err    error
}

// ProcessRun выполняет один run от начала до терминального статуса.
//
// Идемпотентен: run не в статусе PENDING пропускается, повторный
// вызов для активного run возвращает ErrRunAlreadyActive.
func (o *Orchestrator) ProcessRun(ctx context.Context, runID uuid.UUID) error {
	run, err := o.runStore.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if run.Status != domain.RunStatusPending {
		return nil
	}

	dag, err := BuildDAG(run.Kind, run.Params)
	if err != nil {
		run.MarkFailed(err.Error())
		if uerr := o.runStore.Update(ctx, run); uerr != nil {
			o.logger.Error("failed to persist run failure", "run_id", run.ID, "error", uerr)
		}
		return err
	}

	state := NewRunState(run, dag)
	if err := o.addActiveRun(state); err != nil {
		return err
	}
	defer o.removeActiveRun(run.ID)

	if err := o.runStore.CreateTasks(ctx, state.Tasks()); err != nil {
		return fmt.Errorf("create tasks: %w", err)
	}

	run.MarkRunning()
	if err := o.runStore.Update(ctx, run); err != nil {
		return fmt.Errorf("mark run running: %w", err)
	}

	logger := o.logger.With("run_id", run.ID, "kind", run.Kind)
	logger.Info("run started", "nodes", dag.Size())

	o.executeRun(ctx, state, logger)
	return nil
}

// executeRun — цикл выполнения run. Единственный владелец переходов
// статусов: все изменения state происходят в этой горутине, воркеры
// только возвращают результаты через канал.
func (o *Orchestrator) executeRun(ctx context.Context, state *RunState, logger *slog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, o.runTimeout)
	defer cancel()

	results := make(chan nodeResult)
	inFlight := 0
	extractInFlight := 0
	timedOut := false
	done := runCtx.Done()

	for {
		// Запускаем готовые узлы, пока есть слоты.
		if !timedOut {
			for _, task := range state.ReadyTasks(time.Now()) {
				if inFlight >= o.workers {
					break
				}
				if task.Kind == domain.TaskExtract && extractInFlight >= o.extractWorkers {
					continue
				}

				task.MarkRunning()
				o.persistTask(ctx, task)

				inFlight++
				if task.Kind == domain.TaskExtract {
					extractInFlight++
				}
				go o.dispatch(runCtx, state, task, results)
			}
		}

		if inFlight == 0 && state.AllTerminal() {
			break
		}
		if inFlight == 0 && timedOut {
			break
		}
		if inFlight == 0 && state.NextRetryAt() == nil && len(state.ReadyTasks(time.Now())) == 0 && !state.AllTerminal() {
			// Нечего выполнять и нечего ждать: незавершённые узлы
			// недостижимы (их зависимости упали без skip-прохода).
			for _, t := range state.SkipRemaining("unreachable: dependency not satisfied") {
				o.persistTask(ctx, t)
			}
			break
		}

		// Ждём: результат воркера, время следующего retry, таймаут run.
		wake := wakeInterval
		if next := state.NextRetryAt(); next != nil {
			if d := time.Until(*next); d < wake {
				wake = d
			}
		}
		if wake < 0 {
			wake = 0
		}
		timer := time.NewTimer(wake)

		select {
		case res := <-results:
			timer.Stop()
			inFlight--
			task := state.Task(res.nodeID)
			if task.Kind == domain.TaskExtract {
				extractInFlight--
			}
			if timedOut {
				task.MarkSkipped("run timeout exceeded")
				o.persistTask(ctx, task)
				continue
			}
			o.handleResult(ctx, state, task, res.err, logger)

		case <-timer.C:
			// Пробуждение для retry или страховочный tick.

		case <-done:
			timer.Stop()
			done = nil
			timedOut = true
			logger.Warn("run timeout exceeded, skipping remaining tasks",
				"timeout", o.runTimeout)
			for _, t := range state.SkipRemaining("run timeout exceeded") {
				o.persistTask(ctx, t)
			}
		}
	}

	o.finalizeRun(ctx, state, timedOut, logger)
}

// dispatch выполняет узел в воркере и возвращает результат в канал.
func (o *Orchestrator) dispatch(ctx context.Context, state *RunState, task *domain.Task, results chan<- nodeResult) {
	started := time.Now()
	err := o.executeNode(ctx, state, task)
	telemetry.NodeDuration.WithLabelValues(string(task.Kind)).Observe(time.Since(started).Seconds())
	results <- nodeResult{nodeID: task.NodeID, err: err}
}

// handleResult применяет результат узла: успех, retry либо провал
// с каскадным SKIPPED зависимых.
func (o *Orchestrator) handleResult(ctx context.Context, state *RunState, task *domain.Task, err error, logger *slog.Logger) {
	if err == nil {
		task.MarkSucceeded()
		o.persistTask(ctx, task)
		telemetry.TaskAttempts.WithLabelValues(string(task.Kind), "success").Inc()
		return
	}

	if isTransient(err) {
		telemetry.TaskAttempts.WithLabelValues(string(task.Kind), "transient").Inc()
		if task.CanRetry(o.retry.MaxAttempts) {
			delay := o.retry.Delay(task.Attempt+1) + o.jitter()
			task.MarkRetrying(err.Error(), time.Now().Add(delay))
			o.persistTask(ctx, task)
			logger.Warn("task failed, will retry",
				"node", task.NodeID,
				"attempt", task.Attempt,
				"max_attempts", o.retry.MaxAttempts,
				"delay", delay,
				"error", err,
			)
			return
		}
		logger.Error("task exhausted retries", "node", task.NodeID, "attempts", task.Attempt, "error", err)
	} else {
		telemetry.TaskAttempts.WithLabelValues(string(task.Kind), "permanent").Inc()
		logger.Error("task failed permanently", "node", task.NodeID, "error", err)
	}

	task.MarkFailed(err.Error())
	o.persistTask(ctx, task)

	for _, t := range state.SkipDependents(task.NodeID, "dependency failed: "+task.NodeID) {
		o.persistTask(ctx, t)
		logger.Info("task skipped", "node", t.NodeID, "reason", t.Error)
	}
}

// finalizeRun переводит run в терминальный статус.
//
// FAILED — упал обязательный узел либо истёк таймаут run.
// DEGRADED — pipeline отработал, но найдена critical-аномалия.
// SUCCEEDED — всё остальное.
func (o *Orchestrator) finalizeRun(ctx context.Context, state *RunState, timedOut bool, logger *slog.Logger) {
	run := state.Run()
	stats := state.Stats()

	switch {
	case timedOut:
		run.MarkFailed(fmt.Sprintf("run timeout %s exceeded", o.runTimeout))
	case state.AnyFailed():
		run.MarkFailed(state.firstFailure())
	case len(state.Criticals()) > 0:
		run.MarkDegraded(fmt.Sprintf("%d critical anomalies detected", len(state.Criticals())))
	default:
		run.MarkSucceeded()
	}

	if err := o.runStore.Update(ctx, run); err != nil {
		logger.Error("failed to persist run finish", "error", err)
	}

	telemetry.RunsFinished.WithLabelValues(string(run.Kind), string(run.Status)).Inc()
	logger.Info("run finished",
		"status", run.Status,
		"duration", run.Duration(),
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
	)
}

// firstFailure возвращает ошибку первого упавшего узла.
func (s *RunState) firstFailure() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, node := range s.dag.Order {
		t := s.tasks[node.ID]
		if t.Status == domain.TaskStatusFailed {
			return fmt.Sprintf("%s: %s", t.NodeID, t.Error)
		}
	}
	return "task failed"
}

// persistTask сохраняет task, не прерывая run при ошибке БД:
// состояние в памяти первично, polling восстановит рассинхрон.
func (o *Orchestrator) persistTask(ctx context.Context, t *domain.Task) {
	if err := o.runStore.UpdateTask(ctx, t); err != nil {
		o.logger.Error("failed to persist task", "task_id", t.ID, "node", t.NodeID, "error", err)
	}
}

// isTransient относит ошибку узла к transient-классу: явная
// классификация extractor'а либо истечение дедлайна попытки.
func isTransient(err error) bool {
	if upstream.IsTransient(err) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// jitter возвращает случайную добавку к задержке retry.
func (o *Orchestrator) jitter() time.Duration {
	if o.retry.JitterMs <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(o.retry.JitterMs)+1)) * time.Millisecond
}
