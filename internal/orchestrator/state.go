package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Ballpark/internal/domain"
)

// RunState — состояние одного активного run в памяти orchestrator'а.
//
// Единственный владелец состояния — цикл executeRun: все переходы
// статусов выполняются из него. Мьютекс защищает только конкурентное
// чтение (Stats, метрики).
type RunState struct {
	mu sync.RWMutex

	run   *domain.Run
	dag   *DAG
	tasks map[string]*domain.Task // nodeID → task

	// batches — результаты extract-узлов, живут только в памяти run'а.
	batches map[string]*domain.Batch // extract nodeID → batch

	// criticals — critical-аномалии, найденные validate/freshness
	// узлами; alert-узел публикует их в alert sink.
	criticals []*domain.Anomaly
}

// NewRunState создаёт состояние run: по одному task на узел DAG,
// все в статусе PENDING.
func NewRunState(run *domain.Run, dag *DAG) *RunState {
	tasks := make(map[string]*domain.Task, dag.Size())
	for _, node := range dag.Order {
		tasks[node.ID] = &domain.Task{
			ID:        uuid.New(),
			RunID:     run.ID,
			NodeID:    node.ID,
			Kind:      node.Kind,
			Params:    node.Params,
			Status:    domain.TaskStatusPending,
			CreatedAt: time.Now(),
		}
	}
	return &RunState{
		run:     run,
		dag:     dag,
		tasks:   tasks,
		batches: make(map[string]*domain.Batch),
	}
}

// RunID возвращает ID run.
func (s *RunState) RunID() uuid.UUID {
	return s.run.ID
}

// Run возвращает run.
func (s *RunState) Run() *domain.Run {
	return s.run
}

// DAG возвращает DAG run.
func (s *RunState) DAG() *DAG {
	return s.dag
}

// Task возвращает task узла.
func (s *RunState) Task(nodeID string) *domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tasks[nodeID]
}

// Tasks возвращает все tasks в топологическом порядке.
func (s *RunState) Tasks() []*domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Task, 0, len(s.tasks))
	for _, node := range s.dag.Order {
		out = append(out, s.tasks[node.ID])
	}
	return out
}

// ReadyTasks возвращает tasks, готовые к запуску на момент now:
// PENDING с выполненными зависимостями и RETRYING, у которых подошло
// время следующей попытки.
func (s *RunState) ReadyTasks(now time.Time) []*domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	succeeded := make(map[string]bool, len(s.tasks))
	for id, t := range s.tasks {
		if t.Status == domain.TaskStatusSucceeded {
			succeeded[id] = true
		}
	}

	var ready []*domain.Task
	for _, node := range s.dag.Order {
		t := s.tasks[node.ID]
		switch t.Status {
		case domain.TaskStatusPending:
			ok := true
			for _, dep := range node.DependsOn {
				if !succeeded[dep.ID] {
					ok = false
					break
				}
			}
			if ok {
				ready = append(ready, t)
			}
		case domain.TaskStatusRetrying:
			if t.NextAttemptAt != nil && !now.Before(*t.NextAttemptAt) {
				ready = append(ready, t)
			}
		}
	}
	return ready
}

// NextRetryAt возвращает ближайшее время следующей попытки среди
// RETRYING tasks. Nil, если таких нет.
func (s *RunState) NextRetryAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var next *time.Time
	for _, t := range s.tasks {
		if t.Status != domain.TaskStatusRetrying || t.NextAttemptAt == nil {
			continue
		}
		if next == nil || t.NextAttemptAt.Before(*next) {
			next = t.NextAttemptAt
		}
	}
	return next
}

// AllTerminal возвращает true, когда все tasks в терминальном статусе.
func (s *RunState) AllTerminal() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if !t.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// AnyFailed возвращает true, если хоть один task FAILED.
func (s *RunState) AnyFailed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.Status == domain.TaskStatusFailed {
			return true
		}
	}
	return false
}

// SkipDependents помечает SKIPPED всех прямых и косвенных зависимых
// упавшего узла. Возвращает затронутые tasks для персистенции.
func (s *RunState) SkipDependents(nodeID, reason string) []*domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var skipped []*domain.Task
	for _, node := range s.dag.TransitiveDependents(nodeID) {
		t := s.tasks[node.ID]
		if t.Status.IsTerminal() || t.Status == domain.TaskStatusRunning {
			continue
		}
		t.MarkSkipped(reason)
		skipped = append(skipped, t)
	}
	return skipped
}

// SkipRemaining помечает SKIPPED все незавершённые tasks (кроме
// выполняющихся прямо сейчас). Используется при run-level timeout.
func (s *RunState) SkipRemaining(reason string) []*domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var skipped []*domain.Task
	for _, node := range s.dag.Order {
		t := s.tasks[node.ID]
		if t.Status.IsTerminal() || t.Status == domain.TaskStatusRunning {
			continue
		}
		t.MarkSkipped(reason)
		skipped = append(skipped, t)
	}
	return skipped
}

// PutBatch сохраняет результат extract-узла.
func (s *RunState) PutBatch(extractNodeID string, batch *domain.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[extractNodeID] = batch
}

// BatchFor возвращает батч для load-узла: результат его
// extract-зависимости.
func (s *RunState) BatchFor(loadNodeID string) (*domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.dag.Nodes[loadNodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingBatch, loadNodeID)
	}
	for _, dep := range node.DependsOn {
		if dep.Kind != domain.TaskExtract {
			continue
		}
		if batch, ok := s.batches[dep.ID]; ok {
			return batch, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrMissingBatch, loadNodeID)
}

// AddCriticals запоминает critical-аномалии для alert-узла.
func (s *RunState) AddCriticals(anomalies []*domain.Anomaly) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criticals = append(s.criticals, anomalies...)
}

// Criticals возвращает накопленные critical-аномалии.
func (s *RunState) Criticals() []*domain.Anomaly {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Anomaly, len(s.criticals))
	copy(out, s.criticals)
	return out
}

// RunStats — срез состояния run.
type RunStats struct {
	Total     int
	Pending   int
	Running   int
	Retrying  int
	Succeeded int
	Failed    int
	Skipped   int
}

// Stats возвращает статистику по tasks run.
func (s *RunState) Stats() RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := RunStats{Total: len(s.tasks)}
	for _, t := range s.tasks {
		switch t.Status {
		case domain.TaskStatusPending:
			stats.Pending++
		case domain.TaskStatusRunning:
			stats.Running++
		case domain.TaskStatusRetrying:
			stats.Retrying++
		case domain.TaskStatusSucceeded:
			stats.Succeeded++
		case domain.TaskStatusFailed:
			stats.Failed++
		case domain.TaskStatusSkipped:
			stats.Skipped++
		}
	}
	return stats
}
