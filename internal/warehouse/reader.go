package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Ballpark/internal/domain"
)

// Reader — чтение загруженных данных для валидации и freshness-проверок.
type Reader struct {
	pool *pgxpool.Pool
}

// NewReader создаёт новый Reader.
func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{pool: pool}
}

// GamesByDate возвращает все игры за дату.
func (r *Reader) GamesByDate(ctx context.Context, date time.Time) ([]domain.GameRecord, error) {
	query := `
		SELECT game_id, game_date, game_time, home_team_id, away_team_id,
		       home_score, away_score, status, detailed_status, venue_name
		FROM games
		WHERE game_date = $1
		ORDER BY game_id
	`
	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("games by date: %w", err)
	}
	defer rows.Close()

	var games []domain.GameRecord
	for rows.Next() {
		var g domain.GameRecord
		if err := rows.Scan(
			&g.GameID, &g.GameDate, &g.GameTime, &g.HomeTeamID, &g.AwayTeamID,
			&g.HomeScore, &g.AwayScore, &g.Status, &g.DetailedStatus, &g.VenueName,
		); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// LiveGameIDs возвращает ID незавершённых игр за дату.
func (r *Reader) LiveGameIDs(ctx context.Context, date time.Time) ([]int64, error) {
	query := `
		SELECT game_id FROM games
		WHERE game_date = $1 AND status = 'live'
		ORDER BY game_id
	`
	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("live game ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan game id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// StandingsByDate возвращает турнирную таблицу на дату.
func (r *Reader) StandingsByDate(ctx context.Context, date time.Time) ([]domain.StandingRecord, error) {
	query := `
		SELECT team_id, date, season, division_id, division_name, league_id,
		       wins, losses, win_percentage, games_back,
		       runs_scored, runs_allowed, run_differential, games_played
		FROM standings
		WHERE date = $1
		ORDER BY division_id, win_percentage DESC
	`
	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("standings by date: %w", err)
	}
	defer rows.Close()

	var standings []domain.StandingRecord
	for rows.Next() {
		var s domain.StandingRecord
		if err := rows.Scan(
			&s.TeamID, &s.Date, &s.Season, &s.DivisionID, &s.DivisionName, &s.LeagueID,
			&s.Wins, &s.Losses, &s.WinPercentage, &s.GamesBack,
			&s.RunsScored, &s.RunsAllowed, &s.RunDifferential, &s.GamesPlayed,
		); err != nil {
			return nil, fmt.Errorf("scan standing: %w", err)
		}
		standings = append(standings, s)
	}
	return standings, rows.Err()
}

// PlayerStatsBySeason возвращает статистику игроков за сезон.
func (r *Reader) PlayerStatsBySeason(ctx context.Context, season int) ([]domain.PlayerStatRecord, error) {
	query := `
		SELECT player_id, season, stat_group, team_id, games_played,
		       at_bats, hits, home_runs, rbi, batting_avg,
		       wins, losses, innings_pitched, earned_runs, era, whip
		FROM player_stats
		WHERE season = $1
		ORDER BY player_id
	`
	rows, err := r.pool.Query(ctx, query, season)
	if err != nil {
		return nil, fmt.Errorf("player stats by season: %w", err)
	}
	defer rows.Close()

	var stats []domain.PlayerStatRecord
	for rows.Next() {
		var s domain.PlayerStatRecord
		if err := rows.Scan(
			&s.PlayerID, &s.Season, &s.Group, &s.TeamID, &s.GamesPlayed,
			&s.AtBats, &s.Hits, &s.HomeRuns, &s.RBI, &s.BattingAvg,
			&s.Wins, &s.Losses, &s.InningsPitched, &s.EarnedRuns, &s.ERA, &s.WHIP,
		); err != nil {
			return nil, fmt.Errorf("scan player stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// LastLoadedAt возвращает время последней записи в таблицу сущности.
// Nil, если таблица пуста.
func (r *Reader) LastLoadedAt(ctx context.Context, entity domain.EntityType) (*time.Time, error) {
	table, ok := entityTables[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	// table приходит из фиксированной таблицы, не из ввода.
	query := fmt.Sprintf(`SELECT max(loaded_at) FROM %s`, table)

	var ts *time.Time
	if err := r.pool.QueryRow(ctx, query).Scan(&ts); err != nil {
		return nil, fmt.Errorf("last loaded at %s: %w", entity, err)
	}
	return ts, nil
}

var entityTables = map[domain.EntityType]string{
	domain.EntityGames:       "games",
	domain.EntityTeams:       "teams",
	domain.EntityPlayers:     "players",
	domain.EntityStandings:   "standings",
	domain.EntityPlayerStats: "player_stats",
	domain.EntityGameEvents:  "game_events",
}
