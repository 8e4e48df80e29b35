package rules

import (
	"testing"
	"time"

	"github.com/shaiso/Ballpark/internal/domain"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func findByRule(findings []Finding, ruleID string) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.RuleID == ruleID {
			out = append(out, f)
		}
	}
	return out
}

// --- Game Rules Tests ---

func TestCheckGamesMissingFinalScore(t *testing.T) {
	v := New(nil)
	games := []domain.GameRecord{
		{GameID: 1, Status: domain.GameFinal, HomeScore: intPtr(5), AwayScore: intPtr(3)},
		{GameID: 2, Status: domain.GameFinal}, // без счёта
		{GameID: 3, Status: domain.GameScheduled},
	}

	findings := findByRule(v.CheckGames(games), RuleMissingFinalScore)
	if len(findings) != 1 {
		t.Fatalf("нарушений = %d, want 1", len(findings))
	}
	if findings[0].EntityKey != "game:2" {
		t.Errorf("entity key = %s, want game:2", findings[0].EntityKey)
	}
	if findings[0].Severity != domain.SeverityError {
		t.Errorf("severity = %s, want error", findings[0].Severity)
	}
}

func TestCheckGamesNegativeScoreIsCritical(t *testing.T) {
	v := New(nil)
	games := []domain.GameRecord{
		{GameID: 1, Status: domain.GameFinal, HomeScore: intPtr(-2), AwayScore: intPtr(3)},
	}

	findings := findByRule(v.CheckGames(games), RuleNegativeScore)
	if len(findings) != 1 {
		t.Fatalf("нарушений = %d, want 1", len(findings))
	}
	if findings[0].Severity != domain.SeverityCritical {
		t.Errorf("severity = %s, want critical", findings[0].Severity)
	}
}

func TestCheckGamesImpossibleState(t *testing.T) {
	v := New(nil)
	games := []domain.GameRecord{
		{GameID: 1, Status: domain.GameScheduled, HomeScore: intPtr(4)},
	}

	if got := len(findByRule(v.CheckGames(games), RuleImpossibleGameState)); got != 1 {
		t.Errorf("нарушений = %d, want 1", got)
	}
}

func TestCheckGamesDisabledRule(t *testing.T) {
	v := New([]string{RuleMissingFinalScore})
	games := []domain.GameRecord{{GameID: 1, Status: domain.GameFinal}}

	if got := len(findByRule(v.CheckGames(games), RuleMissingFinalScore)); got != 0 {
		t.Errorf("отключённое правило дало %d нарушений", got)
	}
}

// --- Standings Rules Tests ---

func TestCheckStandingsWinPctEpsilon(t *testing.T) {
	v := New(nil)
	date := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)

	// 76/(76+52) = 0.59375: значение в пределах epsilon проходит.
	ok := domain.StandingRecord{
		TeamID: 147, Date: date, Wins: 76, Losses: 52,
		WinPercentage: 0.594, GamesPlayed: 128,
		RunsScored: 650, RunsAllowed: 520, RunDifferential: 130,
	}
	if got := findByRule(v.CheckStandings([]domain.StandingRecord{ok}, nil), RuleWinPctMismatch); len(got) != 0 {
		t.Errorf("значение в пределах допуска дало нарушение: %v", got)
	}

	bad := ok
	bad.WinPercentage = 0.612
	if got := findByRule(v.CheckStandings([]domain.StandingRecord{bad}, nil), RuleWinPctMismatch); len(got) != 1 {
		t.Errorf("расхождение win pct не найдено")
	}
}

func TestCheckStandingsNegativeWinsCritical(t *testing.T) {
	v := New(nil)
	s := domain.StandingRecord{TeamID: 147, Date: time.Now(), Wins: -1, Losses: 52}

	findings := findByRule(v.CheckStandings([]domain.StandingRecord{s}, nil), RuleNegativeWinsLosses)
	if len(findings) != 1 || findings[0].Severity != domain.SeverityCritical {
		t.Errorf("отрицательные wins должны давать critical: %v", findings)
	}
}

func TestCheckStandingsRunDiffMismatch(t *testing.T) {
	v := New(nil)
	s := domain.StandingRecord{
		TeamID: 147, Date: time.Now(), Wins: 60, Losses: 60, WinPercentage: 0.5,
		GamesPlayed: 120, RunsScored: 650, RunsAllowed: 520, RunDifferential: 100,
	}

	if got := len(findByRule(v.CheckStandings([]domain.StandingRecord{s}, nil), RuleRunDiffMismatch)); got != 1 {
		t.Errorf("расхождение run differential не найдено")
	}
}

func TestCheckStandingsReconciliationIsWarning(t *testing.T) {
	v := New(nil)
	date := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)

	// wins+losses != games_played: перенесённая игра, только warning.
	s := domain.StandingRecord{
		TeamID: 147, Date: date, Wins: 60, Losses: 60, WinPercentage: 0.5,
		GamesPlayed: 121, RunsScored: 1, RunsAllowed: 1,
	}
	findings := findByRule(v.CheckStandings([]domain.StandingRecord{s}, nil), RuleStandingsReconcile)
	if len(findings) != 1 {
		t.Fatalf("нарушений = %d, want 1", len(findings))
	}
	if findings[0].Severity != domain.SeverityWarning {
		t.Errorf("severity = %s, want warning", findings[0].Severity)
	}
}

func TestCheckStandingsMissingTeamRow(t *testing.T) {
	v := New(nil)
	date := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)

	standings := []domain.StandingRecord{
		{TeamID: 147, Date: date, Wins: 60, Losses: 60, WinPercentage: 0.5, GamesPlayed: 120},
	}
	finals := []domain.GameRecord{
		{GameID: 1, GameDate: date, Status: domain.GameFinal, HomeTeamID: 147, AwayTeamID: 111,
			HomeScore: intPtr(5), AwayScore: intPtr(3)},
	}

	findings := findByRule(v.CheckStandings(standings, finals), RuleStandingsReconcile)
	if len(findings) != 1 {
		t.Fatalf("нарушений = %d, want 1 (команда 111 без строки standings)", len(findings))
	}
	if findings[0].EntityKey != "team:111:2026-08-22" {
		t.Errorf("entity key = %s", findings[0].EntityKey)
	}
}

// --- Player Stats Rules Tests ---

func TestCheckPlayerStatsBattingAvg(t *testing.T) {
	v := New(nil)

	// 150/500 = 0.300 — корректно.
	ok := domain.PlayerStatRecord{
		PlayerID: 1, Season: 2026, Group: domain.StatHitting,
		AtBats: intPtr(500), Hits: intPtr(150), BattingAvg: floatPtr(0.300),
	}
	if got := v.CheckPlayerStats([]domain.PlayerStatRecord{ok}); len(got) != 0 {
		t.Errorf("корректная статистика дала нарушения: %v", got)
	}

	mismatch := ok
	mismatch.BattingAvg = floatPtr(0.350)
	if got := len(findByRule(v.CheckPlayerStats([]domain.PlayerStatRecord{mismatch}), RuleBattingAvgMismatch)); got != 1 {
		t.Error("расхождение batting avg не найдено")
	}

	outOfRange := ok
	outOfRange.BattingAvg = floatPtr(1.2)
	if got := len(findByRule(v.CheckPlayerStats([]domain.PlayerStatRecord{outOfRange}), RuleBattingAvgRange)); got != 1 {
		t.Error("batting avg вне [0,1] не найден")
	}
}

func TestCheckPlayerStatsPitchingRanges(t *testing.T) {
	v := New(nil)
	s := domain.PlayerStatRecord{
		PlayerID: 2, Season: 2026, Group: domain.StatPitching,
		ERA: floatPtr(25.0), WHIP: floatPtr(6.0),
	}

	findings := v.CheckPlayerStats([]domain.PlayerStatRecord{s})
	if got := len(findByRule(findings, RuleERARange)); got != 1 {
		t.Error("ERA вне диапазона не найден")
	}
	if got := len(findByRule(findings, RuleWHIPRange)); got != 1 {
		t.Error("WHIP вне диапазона не найден")
	}
}

func TestCheckPlayerStatsNilFieldsSkipped(t *testing.T) {
	v := New(nil)
	s := domain.PlayerStatRecord{PlayerID: 3, Season: 2026, Group: domain.StatPitching}

	if got := v.CheckPlayerStats([]domain.PlayerStatRecord{s}); len(got) != 0 {
		t.Errorf("nil-показатели не должны проверяться: %v", got)
	}
}

// --- Freshness Tests ---

func TestCheckFreshnessStale(t *testing.T) {
	v := New(nil)
	now := time.Now()
	old := now.Add(-3 * time.Hour)

	findings := v.CheckFreshness(domain.EntityGames, &old, time.Hour, now)
	if len(findings) != 1 {
		t.Fatalf("нарушений = %d, want 1", len(findings))
	}
	if findings[0].Severity != domain.SeverityError {
		t.Errorf("severity = %s, want error", findings[0].Severity)
	}
}

func TestCheckFreshnessFresh(t *testing.T) {
	v := New(nil)
	now := time.Now()
	recent := now.Add(-10 * time.Minute)

	if got := v.CheckFreshness(domain.EntityGames, &recent, time.Hour, now); len(got) != 0 {
		t.Errorf("свежие данные дали нарушение: %v", got)
	}
}

func TestCheckFreshnessHardStaleIsCritical(t *testing.T) {
	v := New(nil)
	now := time.Now()
	ancient := now.Add(-4 * time.Hour)

	findings := v.CheckFreshness(domain.EntityGames, &ancient, time.Hour, now)
	if len(findings) != 1 {
		t.Fatalf("нарушений = %d, want 1", len(findings))
	}
	if findings[0].Severity != domain.SeverityCritical {
		t.Errorf("severity = %s, want critical", findings[0].Severity)
	}
}

func TestCheckFreshnessEmptyTable(t *testing.T) {
	v := New(nil)
	findings := v.CheckFreshness(domain.EntityStandings, nil, 2*time.Hour, time.Now())
	if len(findings) != 1 {
		t.Fatal("пустая таблица должна давать нарушение свежести")
	}
	if findings[0].Severity != domain.SeverityCritical {
		t.Errorf("severity = %s, want critical", findings[0].Severity)
	}
}

func TestCheckFreshnessDisabled(t *testing.T) {
	v := New([]string{RuleFreshness})
	if got := v.CheckFreshness(domain.EntityGames, nil, time.Hour, time.Now()); len(got) != 0 {
		t.Error("отключённое правило свежести дало нарушение")
	}
}
