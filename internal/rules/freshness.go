package rules

import (
	"fmt"
	"time"

	"github.com/shaiso/Ballpark/internal/domain"
)

// Пороги свежести по умолчанию: игры обновляются чаще standings.
const (
	DefaultGamesMaxAge     = time.Hour
	DefaultStandingsMaxAge = 2 * time.Hour
)

// hardStaleMultiplier — во сколько раз возраст должен превысить порог,
// чтобы нарушение стало critical и ушло в alert sink.
const hardStaleMultiplier = 3

// FreshnessThresholds — максимальный допустимый возраст данных
// по сущности. Сущности без порога не проверяются.
type FreshnessThresholds map[domain.EntityType]time.Duration

// DefaultFreshnessThresholds возвращает пороги по умолчанию.
func DefaultFreshnessThresholds() FreshnessThresholds {
	return FreshnessThresholds{
		domain.EntityGames:     DefaultGamesMaxAge,
		domain.EntityStandings: DefaultStandingsMaxAge,
	}
}

// CheckFreshness проверяет возраст последней загрузки сущности.
//
// lastLoaded == nil (таблица пуста) тоже считается нарушением:
// потребители ожидают данные, а их нет вовсе. Возраст выше жёсткого
// порога (hardStaleMultiplier × maxAge) и пустая таблица дают critical.
func (v *Validator) CheckFreshness(entity domain.EntityType, lastLoaded *time.Time, maxAge time.Duration, now time.Time) []Finding {
	if !v.enabled(RuleFreshness) {
		return nil
	}

	key := fmt.Sprintf("%s:freshness", entity)

	if lastLoaded == nil {
		return []Finding{{
			RuleID:    RuleFreshness,
			Severity:  domain.SeverityCritical,
			Entity:    entity,
			EntityKey: key,
			Message:   "no data has ever been loaded",
		}}
	}

	age := now.Sub(*lastLoaded)
	if age <= maxAge {
		return nil
	}

	severity := domain.SeverityError
	if age > hardStaleMultiplier*maxAge {
		severity = domain.SeverityCritical
	}
	return []Finding{{
		RuleID:    RuleFreshness,
		Severity:  severity,
		Entity:    entity,
		EntityKey: key,
		Message:   fmt.Sprintf("data is %s old, threshold %s", age.Round(time.Minute), maxAge),
	}}
}
