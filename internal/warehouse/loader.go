package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Ballpark/internal/domain"
)

// maxRejectReasons — сколько причин отбраковки попадает в сводку и лог.
const maxRejectReasons = 10

// LoadSummary — итог одной загрузки батча.
type LoadSummary struct {
	// Entity и PartitionKey — что и куда грузили.
	Entity       domain.EntityType
	PartitionKey string

	// Inserted — количество новых строк.
	Inserted int

	// Updated — количество обновлённых строк.
	Updated int

	// Rejected — количество отбракованных строк (без натурального
	// ключа либо отклонённых БД).
	Rejected int

	// RejectReasons — первые maxRejectReasons причин отбраковки.
	RejectReasons []string
}

// Written возвращает общее число записанных строк.
func (s *LoadSummary) Written() int {
	return s.Inserted + s.Updated
}

func (s *LoadSummary) addReject(reason string) {
	s.Rejected++
	if len(s.RejectReasons) < maxRejectReasons {
		s.RejectReasons = append(s.RejectReasons, reason)
	}
}

// LoadError — провал загрузки: непустой батч не дал ни одной
// записанной строки. Несёт причины отбраковки для диагностики.
type LoadError struct {
	Entity    domain.EntityType
	Partition string
	Rejected  int
	Reasons   []string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s/%s: %d rows rejected, none written: %s",
		e.Entity, e.Partition, e.Rejected, strings.Join(e.Reasons, "; "))
}

func (e *LoadError) Unwrap() error { return ErrAllRowsRejected }

// Loader — идемпотентная запись батчей в хранилище.
//
// Семантика: merge по натуральному ключу (INSERT ... ON CONFLICT DO
// UPDATE), повторная загрузка того же батча не создаёт дубликатов.
// Строки пишутся по одной, best-effort: отбраковка одной строки не
// прерывает загрузку остальных. Партиция в каждый момент пишется
// не более чем одним load'ом (keyed lock).
type Loader struct {
	pool   *pgxpool.Pool
	locks  *partitionLocks
	logger *slog.Logger
}

// NewLoader создаёт Loader.
func NewLoader(pool *pgxpool.Pool, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		pool:   pool,
		locks:  newPartitionLocks(),
		logger: logger,
	}
}

// Load записывает батч в хранилище и возвращает сводку.
//
// Пустой батч валиден (в этот день могло не быть игр) — возвращается
// нулевая сводка. Частичная отбраковка попадает в сводку, а не в
// ошибку; но если непустой батч не записал ни одной строки, load
// считается провалившимся и возвращает ErrAllRowsRejected.
func (l *Loader) Load(ctx context.Context, batch *domain.Batch) (*LoadSummary, error) {
	summary := &LoadSummary{Entity: batch.Entity, PartitionKey: batch.PartitionKey}

	if batch.Len() == 0 {
		return summary, nil
	}

	unlock := l.locks.acquire(string(batch.Entity) + ":" + batch.PartitionKey)
	defer unlock()

	var err error
	switch batch.Entity {
	case domain.EntityGames:
		err = l.loadGames(ctx, batch, summary)
	case domain.EntityTeams:
		err = l.loadTeams(ctx, batch, summary)
	case domain.EntityPlayers:
		err = l.loadPlayers(ctx, batch, summary)
	case domain.EntityStandings:
		err = l.loadStandings(ctx, batch, summary)
	case domain.EntityPlayerStats:
		err = l.loadPlayerStats(ctx, batch, summary)
	case domain.EntityGameEvents:
		err = l.loadGameEvents(ctx, batch, summary)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, batch.Entity)
	}
	if err != nil {
		return nil, err
	}

	if summary.Rejected > 0 {
		if summary.Written() == 0 {
			return nil, &LoadError{
				Entity:    batch.Entity,
				Partition: batch.PartitionKey,
				Rejected:  summary.Rejected,
				Reasons:   summary.RejectReasons,
			}
		}
		l.logger.Warn("rows rejected during load",
			"entity", batch.Entity,
			"partition", batch.PartitionKey,
			"rejected", summary.Rejected,
			"reasons", summary.RejectReasons,
		)
	}
	return summary, nil
}

// upsertRow выполняет один merge и учитывает результат в сводке.
// Ошибка БД по конкретной строке — отбраковка, не отказ загрузки.
func (l *Loader) upsertRow(ctx context.Context, summary *LoadSummary, key, query string, args ...any) {
	var inserted bool
	if err := l.pool.QueryRow(ctx, query, args...).Scan(&inserted); err != nil {
		summary.addReject(fmt.Sprintf("%s: %v", key, err))
		return
	}
	if inserted {
		summary.Inserted++
	} else {
		summary.Updated++
	}
}

func (l *Loader) loadGames(ctx context.Context, batch *domain.Batch, summary *LoadSummary) error {
	query := `
		INSERT INTO games (game_id, game_date, game_time, home_team_id, away_team_id,
		                   home_score, away_score, status, detailed_status, venue_name, loaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (game_id) DO UPDATE SET
			game_date = EXCLUDED.game_date,
			game_time = EXCLUDED.game_time,
			home_team_id = EXCLUDED.home_team_id,
			away_team_id = EXCLUDED.away_team_id,
			home_score = EXCLUDED.home_score,
			away_score = EXCLUDED.away_score,
			status = EXCLUDED.status,
			detailed_status = EXCLUDED.detailed_status,
			venue_name = EXCLUDED.venue_name,
			loaded_at = now()
		RETURNING (xmax = 0)
	`
	for i := range batch.Games {
		g := &batch.Games[i]
		if reason, ok := screenGame(g); !ok {
			summary.addReject(reason)
			continue
		}
		l.upsertRow(ctx, summary, fmt.Sprintf("game:%d", g.GameID), query,
			g.GameID, g.GameDate, g.GameTime, g.HomeTeamID, g.AwayTeamID,
			g.HomeScore, g.AwayScore, g.Status, g.DetailedStatus, g.VenueName,
		)
	}
	return nil
}

func (l *Loader) loadTeams(ctx context.Context, batch *domain.Batch, summary *LoadSummary) error {
	query := `
		INSERT INTO teams (team_id, season, name, abbreviation, location_name,
		                   division_id, division_name, league_id, league_name, active, loaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (team_id, season) DO UPDATE SET
			name = EXCLUDED.name,
			abbreviation = EXCLUDED.abbreviation,
			location_name = EXCLUDED.location_name,
			division_id = EXCLUDED.division_id,
			division_name = EXCLUDED.division_name,
			league_id = EXCLUDED.league_id,
			league_name = EXCLUDED.league_name,
			active = EXCLUDED.active,
			loaded_at = now()
		RETURNING (xmax = 0)
	`
	for i := range batch.Teams {
		t := &batch.Teams[i]
		if reason, ok := screenTeam(t); !ok {
			summary.addReject(reason)
			continue
		}
		l.upsertRow(ctx, summary, fmt.Sprintf("team:%d", t.TeamID), query,
			t.TeamID, t.Season, t.Name, t.Abbreviation, t.LocationName,
			t.DivisionID, t.DivisionName, t.LeagueID, t.LeagueName, t.Active,
		)
	}
	return nil
}

func (l *Loader) loadPlayers(ctx context.Context, batch *domain.Batch, summary *LoadSummary) error {
	query := `
		INSERT INTO players (player_id, season, full_name, first_name, last_name,
		                     position, team_id, active, loaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (player_id, season) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			position = EXCLUDED.position,
			team_id = EXCLUDED.team_id,
			active = EXCLUDED.active,
			loaded_at = now()
		RETURNING (xmax = 0)
	`
	for i := range batch.Players {
		p := &batch.Players[i]
		if reason, ok := screenPlayer(p); !ok {
			summary.addReject(reason)
			continue
		}
		l.upsertRow(ctx, summary, fmt.Sprintf("player:%d", p.PlayerID), query,
			p.PlayerID, p.Season, p.FullName, p.FirstName, p.LastName,
			p.Position, p.TeamID, p.Active,
		)
	}
	return nil
}

func (l *Loader) loadStandings(ctx context.Context, batch *domain.Batch, summary *LoadSummary) error {
	query := `
		INSERT INTO standings (team_id, date, season, division_id, division_name, league_id,
		                       wins, losses, win_percentage, games_back,
		                       runs_scored, runs_allowed, run_differential, games_played, loaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now())
		ON CONFLICT (team_id, date) DO UPDATE SET
			season = EXCLUDED.season,
			division_id = EXCLUDED.division_id,
			division_name = EXCLUDED.division_name,
			league_id = EXCLUDED.league_id,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			win_percentage = EXCLUDED.win_percentage,
			games_back = EXCLUDED.games_back,
			runs_scored = EXCLUDED.runs_scored,
			runs_allowed = EXCLUDED.runs_allowed,
			run_differential = EXCLUDED.run_differential,
			games_played = EXCLUDED.games_played,
			loaded_at = now()
		RETURNING (xmax = 0)
	`
	for i := range batch.Standings {
		s := &batch.Standings[i]
		if reason, ok := screenStanding(s); !ok {
			summary.addReject(reason)
			continue
		}
		l.upsertRow(ctx, summary, fmt.Sprintf("standing:%d:%s", s.TeamID, s.PartitionKey()), query,
			s.TeamID, s.Date, s.Season, s.DivisionID, s.DivisionName, s.LeagueID,
			s.Wins, s.Losses, s.WinPercentage, s.GamesBack,
			s.RunsScored, s.RunsAllowed, s.RunDifferential, s.GamesPlayed,
		)
	}
	return nil
}

func (l *Loader) loadPlayerStats(ctx context.Context, batch *domain.Batch, summary *LoadSummary) error {
	query := `
		INSERT INTO player_stats (player_id, season, stat_group, team_id, games_played,
		                          at_bats, hits, home_runs, rbi, batting_avg,
		                          wins, losses, innings_pitched, earned_runs, era, whip, loaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, now())
		ON CONFLICT (player_id, season, stat_group) DO UPDATE SET
			team_id = EXCLUDED.team_id,
			games_played = EXCLUDED.games_played,
			at_bats = EXCLUDED.at_bats,
			hits = EXCLUDED.hits,
			home_runs = EXCLUDED.home_runs,
			rbi = EXCLUDED.rbi,
			batting_avg = EXCLUDED.batting_avg,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			innings_pitched = EXCLUDED.innings_pitched,
			earned_runs = EXCLUDED.earned_runs,
			era = EXCLUDED.era,
			whip = EXCLUDED.whip,
			loaded_at = now()
		RETURNING (xmax = 0)
	`
	for i := range batch.PlayerStats {
		s := &batch.PlayerStats[i]
		if reason, ok := screenPlayerStat(s); !ok {
			summary.addReject(reason)
			continue
		}
		l.upsertRow(ctx, summary, fmt.Sprintf("stat:%d:%d:%s", s.PlayerID, s.Season, s.Group), query,
			s.PlayerID, s.Season, s.Group, s.TeamID, s.GamesPlayed,
			s.AtBats, s.Hits, s.HomeRuns, s.RBI, s.BattingAvg,
			s.Wins, s.Losses, s.InningsPitched, s.EarnedRuns, s.ERA, s.WHIP,
		)
	}
	return nil
}

func (l *Loader) loadGameEvents(ctx context.Context, batch *domain.Batch, summary *LoadSummary) error {
	query := `
		INSERT INTO game_events (game_id, seq, inning, inning_half, event_type,
		                         description, home_score, away_score, event_ts, loaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (game_id, seq) DO UPDATE SET
			inning = EXCLUDED.inning,
			inning_half = EXCLUDED.inning_half,
			event_type = EXCLUDED.event_type,
			description = EXCLUDED.description,
			home_score = EXCLUDED.home_score,
			away_score = EXCLUDED.away_score,
			event_ts = EXCLUDED.event_ts,
			loaded_at = now()
		RETURNING (xmax = 0)
	`
	for i := range batch.GameEvents {
		e := &batch.GameEvents[i]
		if reason, ok := screenGameEvent(e); !ok {
			summary.addReject(reason)
			continue
		}
		l.upsertRow(ctx, summary, fmt.Sprintf("event:%d:%d", e.GameID, e.Seq), query,
			e.GameID, e.Seq, e.Inning, e.InningHalf, e.EventType,
			e.Description, e.HomeScore, e.AwayScore, e.Timestamp,
		)
	}
	return nil
}
