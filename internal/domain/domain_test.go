package domain

import (
	"testing"
	"time"
)

// --- RetryPolicy Tests ---

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts: 5,
		BaseDelayMs: 1000,
		Multiplier:  2,
		MaxDelayMs:  60000,
		JitterMs:    0,
	}

	if d := p.Delay(1); d != 0 {
		t.Errorf("Delay(1) = %v, want 0 (первая попытка без задержки)", d)
	}
	if d := p.Delay(2); d != 1*time.Second {
		t.Errorf("Delay(2) = %v, want 1s", d)
	}
	if d := p.Delay(3); d != 2*time.Second {
		t.Errorf("Delay(3) = %v, want 2s", d)
	}
	if d := p.Delay(4); d != 4*time.Second {
		t.Errorf("Delay(4) = %v, want 4s", d)
	}
	if d := p.Delay(5); d != 8*time.Second {
		t.Errorf("Delay(5) = %v, want 8s", d)
	}
}

func TestRetryPolicyDelayCapped(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts: 10,
		BaseDelayMs: 1000,
		Multiplier:  2,
		MaxDelayMs:  5000,
	}

	if d := p.Delay(9); d != 5*time.Second {
		t.Errorf("Delay(9) = %v, want потолок 5s", d)
	}
}

func TestRetryPolicyDelayMonotonic(t *testing.T) {
	p := DefaultRetryPolicy()

	prev := time.Duration(0)
	for attempt := 2; attempt <= p.MaxAttempts; attempt++ {
		d := p.Delay(attempt)
		if d < prev {
			t.Errorf("Delay(%d) = %v < Delay(%d) = %v: задержка убывает", attempt, d, attempt-1, prev)
		}
		prev = d
	}
}

// --- RunParams Tests ---

func TestRunParamsDatesRange(t *testing.T) {
	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 7, 3, 0, 0, 0, 0, time.UTC)
	p := RunParams{Season: 2026, FromDate: &from, ToDate: &to}

	dates := p.Dates()
	if len(dates) != 3 {
		t.Fatalf("len(Dates()) = %d, want 3", len(dates))
	}
	for i, want := range []string{"2026-07-01", "2026-07-02", "2026-07-03"} {
		if got := dates[i].Format(DateLayout); got != want {
			t.Errorf("dates[%d] = %s, want %s", i, got, want)
		}
	}
}

func TestRunParamsDatesSingle(t *testing.T) {
	target := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)
	p := RunParams{Season: 2026, TargetDate: &target}

	dates := p.Dates()
	if len(dates) != 1 {
		t.Fatalf("len(Dates()) = %d, want 1", len(dates))
	}
	if !dates[0].Equal(target) {
		t.Errorf("dates[0] = %v, want %v", dates[0], target)
	}
}

// --- Run Transition Tests ---

func TestRunLifecycle(t *testing.T) {
	r := NewRun(PipelineDaily, TriggerScheduled, RunParams{Season: 2026})

	if r.Status != RunStatusPending {
		t.Errorf("новый run имеет статус %s, want PENDING", r.Status)
	}
	if r.IsFinished() {
		t.Error("PENDING run не должен быть finished")
	}

	r.MarkRunning()
	if r.Status != RunStatusRunning || r.StartedAt == nil {
		t.Errorf("после MarkRunning: status=%s, startedAt=%v", r.Status, r.StartedAt)
	}

	r.MarkDegraded("critical anomaly: negative_score")
	if r.Status != RunStatusDegraded {
		t.Errorf("status = %s, want DEGRADED", r.Status)
	}
	if !r.IsFinished() {
		t.Error("DEGRADED run должен быть terminal")
	}
	if r.Error == "" {
		t.Error("DEGRADED run должен сохранить причину")
	}
}

func TestRunStatusTerminal(t *testing.T) {
	terminal := []RunStatus{RunStatusSucceeded, RunStatusDegraded, RunStatusFailed}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s должен быть terminal", s)
		}
	}
	for _, s := range []RunStatus{RunStatusPending, RunStatusRunning} {
		if s.IsTerminal() {
			t.Errorf("%s не должен быть terminal", s)
		}
	}
}

// --- Task Transition Tests ---

func TestTaskRetryFlow(t *testing.T) {
	task := &Task{NodeID: "extract_games", Kind: TaskExtract, Status: TaskStatusPending}

	task.MarkRunning()
	if task.Attempt != 1 {
		t.Errorf("Attempt = %d, want 1", task.Attempt)
	}

	next := time.Now().Add(time.Second)
	task.MarkRetrying("upstream: 503", next)
	if task.Status != TaskStatusRetrying {
		t.Errorf("status = %s, want RETRYING", task.Status)
	}
	if task.Status.IsTerminal() {
		t.Error("RETRYING не должен быть terminal")
	}
	if task.NextAttemptAt == nil {
		t.Error("RETRYING task должен хранить время следующей попытки")
	}

	task.MarkRunning()
	if task.Attempt != 2 {
		t.Errorf("Attempt = %d, want 2", task.Attempt)
	}
	if task.NextAttemptAt != nil {
		t.Error("MarkRunning должен сбросить NextAttemptAt")
	}

	task.MarkSucceeded()
	if task.Status != TaskStatusSucceeded || task.Error != "" {
		t.Errorf("после MarkSucceeded: status=%s, error=%q", task.Status, task.Error)
	}
}

func TestTaskCanRetry(t *testing.T) {
	task := &Task{Attempt: 4}
	if !task.CanRetry(5) {
		t.Error("4 попытки из 5: retry ещё возможен")
	}
	task.Attempt = 5
	if task.CanRetry(5) {
		t.Error("5 попыток из 5: retry исчерпан")
	}
}

// --- Schedule Tests ---

func TestScheduleIsDue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	s := &Schedule{Enabled: true, NextDueAt: &past}
	if !s.IsDue(now) {
		t.Error("schedule с прошедшим NextDueAt должен быть due")
	}

	s.NextDueAt = &future
	if s.IsDue(now) {
		t.Error("schedule с будущим NextDueAt не должен быть due")
	}

	s.NextDueAt = &past
	s.Enabled = false
	if s.IsDue(now) {
		t.Error("выключенный schedule не должен быть due")
	}
}

func TestScheduleTrigger(t *testing.T) {
	cron := &Schedule{CronExpr: "0 6 * * *"}
	if cron.Trigger() != TriggerScheduled {
		t.Errorf("cron schedule: trigger = %s, want scheduled", cron.Trigger())
	}
	interval := &Schedule{IntervalSec: 900}
	if interval.Trigger() != TriggerInterval {
		t.Errorf("interval schedule: trigger = %s, want interval", interval.Trigger())
	}
}

// --- Anomaly Tests ---

func TestAnomalySeverity(t *testing.T) {
	a := NewAnomaly(
		NewRun(PipelineDaily, TriggerScheduled, RunParams{}).ID,
		"negative_score", SeverityCritical, EntityGames,
		"game:776431", "home_score = -2",
	)
	if !a.IsCritical() {
		t.Error("critical-аномалия должна определяться как critical")
	}
	if a.Resolved {
		t.Error("новая аномалия не должна быть resolved")
	}
}
