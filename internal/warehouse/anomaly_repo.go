package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Ballpark/internal/domain"
)

// AnomalyRepo — репозиторий аномалий данных.
type AnomalyRepo struct {
	pool *pgxpool.Pool
}

// NewAnomalyRepo создаёт новый AnomalyRepo.
func NewAnomalyRepo(pool *pgxpool.Pool) *AnomalyRepo {
	return &AnomalyRepo{pool: pool}
}

// RecordDetected записывает аномалии нового цикла проверки.
//
// В одной транзакции: старые неразрешённые аномалии тех же пар
// (rule_id, entity_key) помечаются resolved, затем вставляются новые.
// Строки никогда не удаляются — история обнаружений сохраняется.
func (r *AnomalyRepo) RecordDetected(ctx context.Context, anomalies []*domain.Anomaly) error {
	if len(anomalies) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	supersede := `
		UPDATE anomalies
		SET resolved = true, resolved_at = now()
		WHERE rule_id = $1 AND entity_key = $2 AND NOT resolved
	`
	insert := `
		INSERT INTO anomalies (id, run_id, rule_id, severity, entity, entity_key,
		                       message, resolved, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)
	`
	for _, a := range anomalies {
		if _, err := tx.Exec(ctx, supersede, a.RuleID, a.EntityKey); err != nil {
			return fmt.Errorf("supersede anomalies: %w", err)
		}
		if _, err := tx.Exec(ctx, insert,
			a.ID, a.RunID, a.RuleID, a.Severity, a.Entity, a.EntityKey,
			a.Message, a.DetectedAt,
		); err != nil {
			return fmt.Errorf("insert anomaly: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// AnomalyFilter — параметры фильтрации аномалий.
type AnomalyFilter struct {
	Severity   domain.Severity
	Entity     domain.EntityType
	Unresolved bool
	Limit      int
}

// List возвращает аномалии по фильтру, новейшие первыми.
func (r *AnomalyRepo) List(ctx context.Context, filter AnomalyFilter) ([]domain.Anomaly, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, run_id, rule_id, severity, entity, entity_key,
		       message, resolved, detected_at, resolved_at
		FROM anomalies
		WHERE ($1::text IS NULL OR severity = $1::severity)
		  AND ($2::text IS NULL OR entity = $2::entity_type)
		  AND (NOT $3::bool OR NOT resolved)
		ORDER BY detected_at DESC
		LIMIT $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(string(filter.Severity)),
		nullString(string(filter.Entity)),
		filter.Unresolved,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list anomalies: %w", err)
	}
	defer rows.Close()

	var anomalies []domain.Anomaly
	for rows.Next() {
		a, err := scanAnomaly(rows)
		if err != nil {
			return nil, err
		}
		anomalies = append(anomalies, *a)
	}
	return anomalies, rows.Err()
}

func scanAnomaly(row pgx.Row) (*domain.Anomaly, error) {
	var a domain.Anomaly
	err := row.Scan(
		&a.ID,
		&a.RunID,
		&a.RuleID,
		&a.Severity,
		&a.Entity,
		&a.EntityKey,
		&a.Message,
		&a.Resolved,
		&a.DetectedAt,
		&a.ResolvedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan anomaly: %w", err)
	}
	return &a, nil
}
