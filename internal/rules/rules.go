package rules

import (
	"fmt"
	"math"

	"github.com/shaiso/Ballpark/internal/domain"
)

// Идентификаторы правил. Стабильны: используются для отключения
// правил через конфигурацию и для supersession аномалий.
const (
	RuleMissingFinalScore   = "missing_final_score"
	RuleNegativeScore       = "negative_score"
	RuleImpossibleGameState = "impossible_game_state"

	RuleWinPctMismatch     = "win_pct_mismatch"
	RuleNegativeWinsLosses = "negative_wins_losses"
	RuleRunDiffMismatch    = "run_differential_mismatch"
	RuleStandingsReconcile = "standings_reconciliation"
	RuleBattingAvgMismatch = "batting_avg_mismatch"
	RuleBattingAvgRange    = "batting_avg_range"
	RuleERARange           = "era_range"
	RuleWHIPRange          = "whip_range"
	RuleFreshness          = "freshness"
)

// epsilon — допуск сравнения пересчитанных показателей.
const epsilon = 0.001

// Границы диапазонов показателей.
const (
	eraMax  = 20.0
	whipMax = 5.0
)

// Finding — одно нарушение правила.
//
// Severity зафиксирована на уровне правила и не зависит от данных,
// поэтому одно и то же нарушение всегда даёт один и тот же уровень.
type Finding struct {
	RuleID    string
	Severity  domain.Severity
	Entity    domain.EntityType
	EntityKey string
	Message   string
}

// Validator — фиксированный набор правил качества данных.
//
// Правила не настраиваются, но каждое можно отключить по ID.
// Отключённое правило просто не выполняется и не даёт аномалий.
type Validator struct {
	disabled map[string]bool
}

// New создаёт Validator с отключёнными правилами disabledIDs.
func New(disabledIDs []string) *Validator {
	disabled := make(map[string]bool, len(disabledIDs))
	for _, id := range disabledIDs {
		disabled[id] = true
	}
	return &Validator{disabled: disabled}
}

func (v *Validator) enabled(id string) bool {
	return !v.disabled[id]
}

// CheckGames проверяет игры: финальные без счёта, отрицательные счета,
// счёт у незапланированных игр.
func (v *Validator) CheckGames(games []domain.GameRecord) []Finding {
	var findings []Finding
	for i := range games {
		g := &games[i]
		key := fmt.Sprintf("game:%d", g.GameID)

		if v.enabled(RuleMissingFinalScore) && g.IsFinal() {
			if g.HomeScore == nil || g.AwayScore == nil {
				findings = append(findings, Finding{
					RuleID:    RuleMissingFinalScore,
					Severity:  domain.SeverityError,
					Entity:    domain.EntityGames,
					EntityKey: key,
					Message:   "final game has no recorded score",
				})
			}
		}

		if v.enabled(RuleNegativeScore) {
			if (g.HomeScore != nil && *g.HomeScore < 0) || (g.AwayScore != nil && *g.AwayScore < 0) {
				findings = append(findings, Finding{
					RuleID:    RuleNegativeScore,
					Severity:  domain.SeverityCritical,
					Entity:    domain.EntityGames,
					EntityKey: key,
					Message:   fmt.Sprintf("negative score: home=%v away=%v", intOrNil(g.HomeScore), intOrNil(g.AwayScore)),
				})
			}
		}

		if v.enabled(RuleImpossibleGameState) && g.Status == domain.GameScheduled {
			if g.HomeScore != nil || g.AwayScore != nil {
				findings = append(findings, Finding{
					RuleID:    RuleImpossibleGameState,
					Severity:  domain.SeverityError,
					Entity:    domain.EntityGames,
					EntityKey: key,
					Message:   "scheduled game already has a score",
				})
			}
		}
	}
	return findings
}

// CheckStandings проверяет турнирную таблицу: отрицательные wins/losses,
// расхождение win percentage и run differential с пересчётом, сверку
// standings с финальными играми дня (best-effort, уровень warning).
func (v *Validator) CheckStandings(standings []domain.StandingRecord, finals []domain.GameRecord) []Finding {
	var findings []Finding
	for i := range standings {
		s := &standings[i]
		key := fmt.Sprintf("team:%d:%s", s.TeamID, s.PartitionKey())

		if v.enabled(RuleNegativeWinsLosses) && (s.Wins < 0 || s.Losses < 0) {
			findings = append(findings, Finding{
				RuleID:    RuleNegativeWinsLosses,
				Severity:  domain.SeverityCritical,
				Entity:    domain.EntityStandings,
				EntityKey: key,
				Message:   fmt.Sprintf("negative record: wins=%d losses=%d", s.Wins, s.Losses),
			})
		}

		if v.enabled(RuleWinPctMismatch) && s.Wins+s.Losses > 0 {
			expected := float64(s.Wins) / float64(s.Wins+s.Losses)
			if math.Abs(s.WinPercentage-expected) > epsilon {
				findings = append(findings, Finding{
					RuleID:    RuleWinPctMismatch,
					Severity:  domain.SeverityError,
					Entity:    domain.EntityStandings,
					EntityKey: key,
					Message:   fmt.Sprintf("win_percentage %.3f, recomputed %.3f", s.WinPercentage, expected),
				})
			}
		}

		if v.enabled(RuleRunDiffMismatch) {
			if s.RunDifferential != s.RunsScored-s.RunsAllowed {
				findings = append(findings, Finding{
					RuleID:    RuleRunDiffMismatch,
					Severity:  domain.SeverityError,
					Entity:    domain.EntityStandings,
					EntityKey: key,
					Message: fmt.Sprintf("run_differential %d, recomputed %d",
						s.RunDifferential, s.RunsScored-s.RunsAllowed),
				})
			}
		}

		// Перенесённые игры легитимно сдвигают games_played, поэтому
		// сверка — warning, а не error.
		if v.enabled(RuleStandingsReconcile) && s.Wins+s.Losses != s.GamesPlayed {
			findings = append(findings, Finding{
				RuleID:    RuleStandingsReconcile,
				Severity:  domain.SeverityWarning,
				Entity:    domain.EntityStandings,
				EntityKey: key,
				Message: fmt.Sprintf("wins+losses = %d, games_played = %d",
					s.Wins+s.Losses, s.GamesPlayed),
			})
		}
	}

	// Команда сыграла финальную игру дня, но строки standings за день нет.
	if v.enabled(RuleStandingsReconcile) && len(finals) > 0 {
		present := make(map[int64]bool, len(standings))
		for i := range standings {
			present[standings[i].TeamID] = true
		}
		seen := make(map[int64]bool)
		for i := range finals {
			g := &finals[i]
			if !g.IsFinal() {
				continue
			}
			for _, teamID := range []int64{g.HomeTeamID, g.AwayTeamID} {
				if present[teamID] || seen[teamID] {
					continue
				}
				seen[teamID] = true
				findings = append(findings, Finding{
					RuleID:    RuleStandingsReconcile,
					Severity:  domain.SeverityWarning,
					Entity:    domain.EntityStandings,
					EntityKey: fmt.Sprintf("team:%d:%s", teamID, g.PartitionKey()),
					Message:   "team played a final game but has no standings row for the date",
				})
			}
		}
	}
	return findings
}

// CheckPlayerStats проверяет статистику игроков: пересчёт batting
// average и диапазоны показателей. Nil-значения не проверяются.
func (v *Validator) CheckPlayerStats(stats []domain.PlayerStatRecord) []Finding {
	var findings []Finding
	for i := range stats {
		s := &stats[i]
		key := fmt.Sprintf("player:%d:%d:%s", s.PlayerID, s.Season, s.Group)

		if s.BattingAvg != nil {
			if v.enabled(RuleBattingAvgRange) && (*s.BattingAvg < 0 || *s.BattingAvg > 1) {
				findings = append(findings, Finding{
					RuleID:    RuleBattingAvgRange,
					Severity:  domain.SeverityError,
					Entity:    domain.EntityPlayerStats,
					EntityKey: key,
					Message:   fmt.Sprintf("batting_avg %.3f outside [0,1]", *s.BattingAvg),
				})
			}
			if v.enabled(RuleBattingAvgMismatch) && s.AtBats != nil && s.Hits != nil && *s.AtBats > 0 {
				expected := float64(*s.Hits) / float64(*s.AtBats)
				if math.Abs(*s.BattingAvg-expected) > epsilon {
					findings = append(findings, Finding{
						RuleID:    RuleBattingAvgMismatch,
						Severity:  domain.SeverityError,
						Entity:    domain.EntityPlayerStats,
						EntityKey: key,
						Message:   fmt.Sprintf("batting_avg %.3f, recomputed %.3f", *s.BattingAvg, expected),
					})
				}
			}
		}

		if v.enabled(RuleERARange) && s.ERA != nil && (*s.ERA < 0 || *s.ERA > eraMax) {
			findings = append(findings, Finding{
				RuleID:    RuleERARange,
				Severity:  domain.SeverityError,
				Entity:    domain.EntityPlayerStats,
				EntityKey: key,
				Message:   fmt.Sprintf("era %.2f outside [0,%.0f]", *s.ERA, eraMax),
			})
		}

		if v.enabled(RuleWHIPRange) && s.WHIP != nil && (*s.WHIP < 0 || *s.WHIP > whipMax) {
			findings = append(findings, Finding{
				RuleID:    RuleWHIPRange,
				Severity:  domain.SeverityError,
				Entity:    domain.EntityPlayerStats,
				EntityKey: key,
				Message:   fmt.Sprintf("whip %.2f outside [0,%.0f]", *s.WHIP, whipMax),
			})
		}
	}
	return findings
}

func intOrNil(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
