package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Ballpark/internal/domain"
	"github.com/shaiso/Ballpark/internal/rules"
	"github.com/shaiso/Ballpark/internal/telemetry"
)

// executeNode выполняет один узел DAG. Вызывается из воркера;
// изменения статусов task здесь не делаются.
func (o *Orchestrator) executeNode(ctx context.Context, state *RunState, task *domain.Task) error {
	switch task.Kind {
	case domain.TaskExtract:
		return o.executeExtract(ctx, state, task)
	case domain.TaskLoad:
		return o.executeLoad(ctx, state, task)
	case domain.TaskValidate:
		return o.executeValidate(ctx, state, task)
	case domain.TaskFreshness:
		return o.executeFreshness(ctx, state, task)
	case domain.TaskAlert:
		return o.executeAlert(ctx, state, task)
	default:
		return fmt.Errorf("unknown task kind: %s", task.Kind)
	}
}

// executeExtract извлекает сущность из upstream и кладёт батч в память run.
func (o *Orchestrator) executeExtract(ctx context.Context, state *RunState, task *domain.Task) error {
	var (
		batch *domain.Batch
		err   error
	)

	switch task.Params.Entity {
	case domain.EntityGames:
		batch, err = o.extractor.FetchGames(ctx, *task.Params.Date)
	case domain.EntityStandings:
		batch, err = o.extractor.FetchStandings(ctx, *task.Params.Date, task.Params.Season)
	case domain.EntityTeams:
		batch, err = o.extractor.FetchTeams(ctx, task.Params.Season)
	case domain.EntityPlayers:
		batch, err = o.extractor.FetchPlayers(ctx, task.Params.Season)
	case domain.EntityPlayerStats:
		batch, err = o.extractor.FetchPlayerStats(ctx, task.Params.Season)
	case domain.EntityGameEvents:
		batch, err = o.extractGameEvents(ctx, *task.Params.Date)
	default:
		return fmt.Errorf("extract: unknown entity %s", task.Params.Entity)
	}
	if err != nil {
		return err
	}

	state.PutBatch(task.NodeID, batch)
	return nil
}

// extractGameEvents собирает play-by-play всех live-игр даты в один
// батч. Список игр берётся из уже загруженного расписания.
func (o *Orchestrator) extractGameEvents(ctx context.Context, date time.Time) (*domain.Batch, error) {
	ids, err := o.reader.LiveGameIDs(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("live game ids: %w", err)
	}

	merged := &domain.Batch{
		Entity:       domain.EntityGameEvents,
		PartitionKey: date.Format(domain.DateLayout),
		ExtractedAt:  time.Now(),
	}
	for _, id := range ids {
		batch, err := o.extractor.FetchGameEvents(ctx, id, date)
		if err != nil {
			return nil, err
		}
		merged.GameEvents = append(merged.GameEvents, batch.GameEvents...)
	}
	return merged, nil
}

// executeLoad пишет батч extract-зависимости в хранилище.
func (o *Orchestrator) executeLoad(ctx context.Context, state *RunState, task *domain.Task) error {
	batch, err := state.BatchFor(task.NodeID)
	if err != nil {
		return err
	}

	summary, err := o.loader.Load(ctx, batch)
	if err != nil {
		return fmt.Errorf("load %s: %w", batch.Entity, err)
	}

	telemetry.WarehouseRows.WithLabelValues(string(summary.Entity), "inserted").Add(float64(summary.Inserted))
	telemetry.WarehouseRows.WithLabelValues(string(summary.Entity), "updated").Add(float64(summary.Updated))
	telemetry.WarehouseRows.WithLabelValues(string(summary.Entity), "rejected").Add(float64(summary.Rejected))

	o.logger.Info("batch loaded",
		"run_id", state.RunID(),
		"entity", summary.Entity,
		"partition", summary.PartitionKey,
		"inserted", summary.Inserted,
		"updated", summary.Updated,
		"rejected", summary.Rejected,
	)
	return nil
}

// executeValidate прогоняет правила по свежезагруженным данным
// и записывает найденные аномалии.
func (o *Orchestrator) executeValidate(ctx context.Context, state *RunState, task *domain.Task) error {
	var findings []rules.Finding

	switch task.Params.Entity {
	case domain.EntityGames:
		games, err := o.reader.GamesByDate(ctx, *task.Params.Date)
		if err != nil {
			return fmt.Errorf("read games: %w", err)
		}
		findings = o.validator.CheckGames(games)

	case domain.EntityStandings:
		standings, err := o.reader.StandingsByDate(ctx, *task.Params.Date)
		if err != nil {
			return fmt.Errorf("read standings: %w", err)
		}
		// Сверка с играми — best-effort: её отказ не валит узел.
		games, err := o.reader.GamesByDate(ctx, *task.Params.Date)
		if err != nil {
			o.logger.Warn("standings reconciliation skipped",
				"run_id", state.RunID(), "error", err)
			games = nil
		}
		findings = o.validator.CheckStandings(standings, games)

	case domain.EntityPlayerStats:
		stats, err := o.reader.PlayerStatsBySeason(ctx, task.Params.Season)
		if err != nil {
			return fmt.Errorf("read player stats: %w", err)
		}
		findings = o.validator.CheckPlayerStats(stats)

	default:
		return fmt.Errorf("validate: unknown entity %s", task.Params.Entity)
	}

	return o.recordFindings(ctx, state, findings)
}

// executeFreshness проверяет возраст последних загрузок.
func (o *Orchestrator) executeFreshness(ctx context.Context, state *RunState, task *domain.Task) error {
	now := time.Now()
	var findings []rules.Finding

	for entity, maxAge := range o.freshness {
		lastLoaded, err := o.reader.LastLoadedAt(ctx, entity)
		if err != nil {
			return fmt.Errorf("last loaded at %s: %w", entity, err)
		}
		findings = append(findings, o.validator.CheckFreshness(entity, lastLoaded, maxAge, now)...)
	}

	return o.recordFindings(ctx, state, findings)
}

// recordFindings превращает нарушения в аномалии, персистит их и
// откладывает critical для alert-узла.
func (o *Orchestrator) recordFindings(ctx context.Context, state *RunState, findings []rules.Finding) error {
	if len(findings) == 0 {
		return nil
	}

	anomalies := make([]*domain.Anomaly, 0, len(findings))
	var criticals []*domain.Anomaly
	for _, f := range findings {
		a := domain.NewAnomaly(state.RunID(), f.RuleID, f.Severity, f.Entity, f.EntityKey, f.Message)
		anomalies = append(anomalies, a)
		if a.IsCritical() {
			criticals = append(criticals, a)
		}
		telemetry.AnomaliesDetected.WithLabelValues(string(f.Severity), f.RuleID).Inc()
	}

	if err := o.anomalyStore.RecordDetected(ctx, anomalies); err != nil {
		return fmt.Errorf("record anomalies: %w", err)
	}

	state.AddCriticals(criticals)
	o.logger.Warn("anomalies detected",
		"run_id", state.RunID(),
		"total", len(anomalies),
		"critical", len(criticals),
	)
	return nil
}

// executeAlert публикует накопленные critical-аномалии в alert sink.
// Fire-and-forget: отказ публикации логируется, узел не падает.
func (o *Orchestrator) executeAlert(ctx context.Context, state *RunState, task *domain.Task) error {
	criticals := state.Criticals()
	if len(criticals) == 0 {
		return nil
	}
	if o.alertSink == nil {
		o.logger.Warn("no alert sink configured, critical anomalies not forwarded",
			"run_id", state.RunID(), "count", len(criticals))
		return nil
	}

	for _, a := range criticals {
		if err := o.alertSink.PublishAlert(ctx, a); err != nil {
			o.logger.Error("failed to publish alert",
				"run_id", state.RunID(),
				"rule", a.RuleID,
				"entity_key", a.EntityKey,
				"error", err,
			)
		}
	}
	return nil
}
