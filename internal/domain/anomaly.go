package domain

import (
	"time"

	"github.com/google/uuid"
)

// Anomaly — нарушение правила валидации, найденное в данных.
//
// Аномалии никогда не удаляются: новый цикл проверки той же пары
// (RuleID, EntityKey) помечает старые неразрешённые записи resolved
// в той же транзакции, что вставляет новые.
type Anomaly struct {
	// ID — уникальный идентификатор аномалии.
	ID uuid.UUID `json:"id"`

	// RunID — run, в котором аномалия обнаружена.
	RunID uuid.UUID `json:"run_id"`

	// RuleID — идентификатор правила (стабильный, используется для
	// отключения правил и для supersession).
	RuleID string `json:"rule_id"`

	// Severity — уровень серьёзности; фиксирован на уровне правила.
	Severity Severity `json:"severity"`

	// Entity — тип сущности, к которой относится аномалия.
	Entity EntityType `json:"entity"`

	// EntityKey — натуральный ключ проблемной записи
	// (например, "game:776431" или "team:147:2026-08-22").
	EntityKey string `json:"entity_key"`

	// Message — человекочитаемое описание с фактическими значениями.
	Message string `json:"message"`

	// Resolved — true, если аномалию заместил более свежий цикл проверки.
	Resolved bool `json:"resolved"`

	// DetectedAt — время обнаружения.
	DetectedAt time.Time `json:"detected_at"`

	// ResolvedAt — время замещения.
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// NewAnomaly создаёт неразрешённую аномалию.
func NewAnomaly(runID uuid.UUID, ruleID string, severity Severity, entity EntityType, entityKey, message string) *Anomaly {
	return &Anomaly{
		ID:         uuid.New(),
		RunID:      runID,
		RuleID:     ruleID,
		Severity:   severity,
		Entity:     entity,
		EntityKey:  entityKey,
		Message:    message,
		DetectedAt: time.Now(),
	}
}

// IsCritical возвращает true для аномалии уровня critical.
func (a *Anomaly) IsCritical() bool {
	return a.Severity == SeverityCritical
}
