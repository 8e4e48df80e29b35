package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Ballpark/internal/domain"
	"github.com/shaiso/Ballpark/internal/warehouse"
)

// --- CalculateNextDue Tests ---

func TestCalculateNextDueCron(t *testing.T) {
	next := time.Date(2025, 7, 1, 3, 0, 0, 0, time.UTC)
	sched := &domain.Schedule{
		CronExpr:  "0 6 * * *",
		Timezone:  "UTC",
		NextDueAt: &next,
	}

	from := time.Date(2025, 7, 1, 3, 0, 0, 0, time.UTC)
	got, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("CalculateNextDue: %v", err)
	}

	want := time.Date(2025, 7, 1, 6, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("next due = %v, want %v", got, want)
	}
}

func TestCalculateNextDueCronRollsToNextDay(t *testing.T) {
	sched := &domain.Schedule{CronExpr: "0 6 * * *", Timezone: "UTC"}

	from := time.Date(2025, 7, 1, 7, 30, 0, 0, time.UTC)
	got, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("CalculateNextDue: %v", err)
	}

	want := time.Date(2025, 7, 2, 6, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("next due = %v, want %v", got, want)
	}
}

func TestCalculateNextDueInterval(t *testing.T) {
	sched := &domain.Schedule{IntervalSec: 120, Timezone: "UTC"}

	from := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	got, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("CalculateNextDue: %v", err)
	}

	want := from.Add(2 * time.Minute)
	if !got.Equal(want) {
		t.Errorf("next due = %v, want %v", got, want)
	}
}

func TestCalculateNextDueInvalidSchedule(t *testing.T) {
	sched := &domain.Schedule{Timezone: "UTC"}

	if _, err := CalculateNextDue(sched, time.Now()); err == nil {
		t.Error("expected error for schedule without cron_expr and interval_sec")
	}
}

func TestCalculateNextDueInvalidTimezoneFallsBackToUTC(t *testing.T) {
	sched := &domain.Schedule{IntervalSec: 60, Timezone: "Not/AZone"}

	from := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	got, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("CalculateNextDue: %v", err)
	}
	if !got.Equal(from.Add(time.Minute)) {
		t.Errorf("next due = %v, want %v", got, from.Add(time.Minute))
	}
}

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("0 */4 * * *"); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := ValidateCronExpr("not a cron"); err == nil {
		t.Error("expected error for invalid expression")
	}
}

// --- BuildRunParams Tests ---

func TestBuildRunParamsDailyTargetsPreviousDay(t *testing.T) {
	dueAt := time.Date(2025, 7, 2, 6, 0, 0, 0, time.UTC)

	params := BuildRunParams(domain.PipelineDaily, dueAt)
	if params.TargetDate == nil {
		t.Fatal("expected target date")
	}

	want := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	if !params.TargetDate.Equal(want) {
		t.Errorf("target date = %v, want %v", params.TargetDate, want)
	}
	if params.Season != 2025 {
		t.Errorf("season = %d, want 2025", params.Season)
	}
}

func TestBuildRunParamsLiveTargetsSameDay(t *testing.T) {
	dueAt := time.Date(2025, 7, 2, 19, 42, 0, 0, time.UTC)

	params := BuildRunParams(domain.PipelineLive, dueAt)
	want := time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC)
	if params.TargetDate == nil || !params.TargetDate.Equal(want) {
		t.Errorf("target date = %v, want %v", params.TargetDate, want)
	}
}

// --- Tick Tests ---

type fakeScheduleStore struct {
	due     []domain.Schedule
	updated []domain.Schedule
}

func (f *fakeScheduleStore) ListDue(ctx context.Context, limit int) ([]domain.Schedule, error) {
	return f.due, nil
}

func (f *fakeScheduleStore) Update(ctx context.Context, s *domain.Schedule) error {
	f.updated = append(f.updated, *s)
	return nil
}

type fakeRunStore struct {
	byKey   map[string]*domain.Run
	created []*domain.Run
}

func (f *fakeRunStore) Create(ctx context.Context, run *domain.Run) error {
	f.created = append(f.created, run)
	if f.byKey == nil {
		f.byKey = make(map[string]*domain.Run)
	}
	f.byKey[run.IdempotencyKey] = run
	return nil
}

func (f *fakeRunStore) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Run, error) {
	if run, ok := f.byKey[key]; ok {
		return run, nil
	}
	return nil, warehouse.ErrNotFound
}

type fakePublisher struct {
	published []uuid.UUID
	err       error
}

func (f *fakePublisher) PublishRunPending(ctx context.Context, runID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, runID)
	return nil
}

func dueSchedule(kind domain.PipelineKind, dueAt time.Time) domain.Schedule {
	return domain.Schedule{
		ID:        uuid.New(),
		Kind:      kind,
		Name:      "test-schedule",
		CronExpr:  "0 6 * * *",
		Timezone:  "UTC",
		Enabled:   true,
		NextDueAt: &dueAt,
	}
}

func TestTickCreatesRunAndAdvancesSchedule(t *testing.T) {
	dueAt := time.Date(2025, 7, 2, 6, 0, 0, 0, time.UTC)
	sched := dueSchedule(domain.PipelineDaily, dueAt)

	schedules := &fakeScheduleStore{due: []domain.Schedule{sched}}
	runs := &fakeRunStore{}
	pub := &fakePublisher{}

	s := New(Config{
		Schedules: schedules,
		Runs:      runs,
		Publisher: pub,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if len(runs.created) != 1 {
		t.Fatalf("created %d runs, want 1", len(runs.created))
	}
	run := runs.created[0]
	if run.Kind != domain.PipelineDaily {
		t.Errorf("run kind = %s, want daily", run.Kind)
	}
	if run.Status != domain.RunStatusPending {
		t.Errorf("run status = %s, want PENDING", run.Status)
	}
	wantKey := fmt.Sprintf("%s_%d", sched.ID, dueAt.Unix())
	if run.IdempotencyKey != wantKey {
		t.Errorf("idempotency key = %q, want %q", run.IdempotencyKey, wantKey)
	}

	if len(schedules.updated) != 1 {
		t.Fatalf("updated %d schedules, want 1", len(schedules.updated))
	}
	upd := schedules.updated[0]
	if upd.NextDueAt == nil || !upd.NextDueAt.After(dueAt) {
		t.Errorf("next due not advanced: %v", upd.NextDueAt)
	}
	if upd.LastRunID == nil || *upd.LastRunID != run.ID {
		t.Errorf("last run id = %v, want %s", upd.LastRunID, run.ID)
	}

	if len(pub.published) != 1 || pub.published[0] != run.ID {
		t.Errorf("published = %v, want [%s]", pub.published, run.ID)
	}
}

func TestTickIdempotentForSameSlot(t *testing.T) {
	dueAt := time.Date(2025, 7, 2, 6, 0, 0, 0, time.UTC)
	sched := dueSchedule(domain.PipelineDaily, dueAt)

	existing := domain.NewRun(domain.PipelineDaily, domain.TriggerScheduled, domain.RunParams{})
	existing.IdempotencyKey = domain.ScheduledIdempotencyKey(sched.ID, dueAt)

	schedules := &fakeScheduleStore{due: []domain.Schedule{sched}}
	runs := &fakeRunStore{byKey: map[string]*domain.Run{existing.IdempotencyKey: existing}}
	pub := &fakePublisher{}

	s := New(Config{
		Schedules: schedules,
		Runs:      runs,
		Publisher: pub,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if len(runs.created) != 0 {
		t.Errorf("created %d runs, want 0 (duplicate slot)", len(runs.created))
	}
	if len(pub.published) != 0 {
		t.Errorf("published %d events, want 0 (duplicate slot)", len(pub.published))
	}
	// next_due_at всё равно должен сдвинуться
	if len(schedules.updated) != 1 {
		t.Fatalf("updated %d schedules, want 1", len(schedules.updated))
	}
}

func TestTickPublishFailureDoesNotFail(t *testing.T) {
	dueAt := time.Date(2025, 7, 2, 6, 0, 0, 0, time.UTC)
	sched := dueSchedule(domain.PipelineQuality, dueAt)

	schedules := &fakeScheduleStore{due: []domain.Schedule{sched}}
	runs := &fakeRunStore{}
	pub := &fakePublisher{err: fmt.Errorf("broker down")}

	s := New(Config{
		Schedules: schedules,
		Runs:      runs,
		Publisher: pub,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(runs.created) != 1 {
		t.Errorf("created %d runs, want 1", len(runs.created))
	}
}

func TestTickWithoutPublisher(t *testing.T) {
	dueAt := time.Date(2025, 7, 2, 6, 0, 0, 0, time.UTC)
	sched := dueSchedule(domain.PipelineLive, dueAt)

	schedules := &fakeScheduleStore{due: []domain.Schedule{sched}}
	runs := &fakeRunStore{}

	s := New(Config{
		Schedules: schedules,
		Runs:      runs,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(runs.created) != 1 {
		t.Errorf("created %d runs, want 1", len(runs.created))
	}
}
