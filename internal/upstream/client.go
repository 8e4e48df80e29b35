package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shaiso/Ballpark/internal/domain"
)

const (
	// DefaultBaseURL — публичный MLB Stats API.
	DefaultBaseURL = "https://statsapi.mlb.com"

	// Значения по умолчанию.
	defaultTimeout  = 30 * time.Second
	maxResponseBody = 10 * 1024 * 1024 // 10 MB
	maxErrorSummary = 256
)

// Config — конфигурация клиента.
type Config struct {
	// BaseURL — адрес API. По умолчанию DefaultBaseURL.
	BaseURL string

	// TimeoutSec — таймаут одного запроса в секундах.
	TimeoutSec int

	// UserAgent — значение заголовка User-Agent.
	UserAgent string
}

// Client — клиент MLB Stats API.
//
// Каждый Fetch* делает ровно одну попытку и возвращает либо батч,
// либо классифицированную *Error. Политику повторов применяет
// вызывающая сторона.
type Client struct {
	baseURL   string
	userAgent string
	httpc     *http.Client
}

// New создаёт клиент с применёнными значениями по умолчанию.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	timeout := defaultTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ballpark/1.0"
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		httpc:     &http.Client{Timeout: timeout},
	}
}

// FetchGames извлекает расписание и счета игр за дату.
func (c *Client) FetchGames(ctx context.Context, date time.Time) (*domain.Batch, error) {
	q := url.Values{}
	q.Set("sportId", "1")
	q.Set("date", date.Format(domain.DateLayout))

	var resp scheduleResponse
	if err := c.get(ctx, "/api/v1/schedule", q, &resp); err != nil {
		return nil, err
	}

	batch := &domain.Batch{
		Entity:       domain.EntityGames,
		PartitionKey: date.Format(domain.DateLayout),
		ExtractedAt:  time.Now(),
	}
	for _, d := range resp.Dates {
		for _, g := range d.Games {
			batch.Games = append(batch.Games, domain.GameRecord{
				GameID:         g.GamePk,
				GameDate:       date,
				GameTime:       parseGameTime(g.GameDate),
				HomeTeamID:     g.Teams.Home.Team.ID,
				AwayTeamID:     g.Teams.Away.Team.ID,
				HomeScore:      g.Teams.Home.Score,
				AwayScore:      g.Teams.Away.Score,
				Status:         gameStatus(g.Status.AbstractGameState),
				DetailedStatus: g.Status.DetailedState,
				VenueName:      g.Venue.Name,
			})
		}
	}
	return batch, nil
}

// FetchStandings извлекает турнирные таблицы обеих лиг на дату.
func (c *Client) FetchStandings(ctx context.Context, date time.Time, season int) (*domain.Batch, error) {
	q := url.Values{}
	q.Set("leagueId", "103,104")
	q.Set("season", strconv.Itoa(season))
	q.Set("standingsTypes", "regularSeason")
	q.Set("date", date.Format(domain.DateLayout))

	var resp standingsResponse
	if err := c.get(ctx, "/api/v1/standings", q, &resp); err != nil {
		return nil, err
	}

	batch := &domain.Batch{
		Entity:       domain.EntityStandings,
		PartitionKey: date.Format(domain.DateLayout),
		ExtractedAt:  time.Now(),
	}
	for _, rec := range resp.Records {
		for _, tr := range rec.TeamRecords {
			row := domain.StandingRecord{
				TeamID:          tr.Team.ID,
				Season:          season,
				DivisionID:      rec.Division.ID,
				DivisionName:    rec.Division.Name,
				LeagueID:        rec.League.ID,
				Wins:            tr.Wins,
				Losses:          tr.Losses,
				RunsScored:      tr.RunsScored,
				RunsAllowed:     tr.RunsAllowed,
				RunDifferential: tr.RunDifferential,
				GamesPlayed:     tr.GamesPlayed,
				Date:            date,
			}
			if v := parseStatFloat(tr.WinningPercentage); v != nil {
				row.WinPercentage = *v
			}
			// "-" у лидера дивизиона означает 0 games back.
			if v := parseStatFloat(tr.GamesBack); v != nil {
				row.GamesBack = *v
			}
			batch.Standings = append(batch.Standings, row)
		}
	}
	return batch, nil
}

// FetchTeams извлекает справочник команд сезона.
func (c *Client) FetchTeams(ctx context.Context, season int) (*domain.Batch, error) {
	q := url.Values{}
	q.Set("sportId", "1")
	q.Set("season", strconv.Itoa(season))

	var resp teamsResponse
	if err := c.get(ctx, "/api/v1/teams", q, &resp); err != nil {
		return nil, err
	}

	batch := &domain.Batch{
		Entity:       domain.EntityTeams,
		PartitionKey: strconv.Itoa(season),
		ExtractedAt:  time.Now(),
	}
	for _, t := range resp.Teams {
		batch.Teams = append(batch.Teams, domain.TeamRecord{
			TeamID:       t.ID,
			Name:         t.Name,
			Abbreviation: t.Abbreviation,
			LocationName: t.LocationName,
			DivisionID:   t.Division.ID,
			DivisionName: t.Division.Name,
			LeagueID:     t.League.ID,
			LeagueName:   t.League.Name,
			Active:       t.Active,
			Season:       season,
		})
	}
	return batch, nil
}

// FetchPlayers извлекает справочник игроков сезона.
func (c *Client) FetchPlayers(ctx context.Context, season int) (*domain.Batch, error) {
	q := url.Values{}
	q.Set("season", strconv.Itoa(season))

	var resp playersResponse
	if err := c.get(ctx, "/api/v1/sports/1/players", q, &resp); err != nil {
		return nil, err
	}

	batch := &domain.Batch{
		Entity:       domain.EntityPlayers,
		PartitionKey: strconv.Itoa(season),
		ExtractedAt:  time.Now(),
	}
	for _, p := range resp.People {
		rec := domain.PlayerRecord{
			PlayerID:  p.ID,
			FullName:  p.FullName,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Position:  p.PrimaryPosition.Abbreviation,
			Active:    p.Active,
			Season:    season,
		}
		if p.CurrentTeam != nil {
			teamID := p.CurrentTeam.ID
			rec.TeamID = &teamID
		}
		batch.Players = append(batch.Players, rec)
	}
	return batch, nil
}

// FetchPlayerStats извлекает сезонную статистику по обеим группам
// (hitting и pitching) в один батч.
func (c *Client) FetchPlayerStats(ctx context.Context, season int) (*domain.Batch, error) {
	batch := &domain.Batch{
		Entity:       domain.EntityPlayerStats,
		PartitionKey: strconv.Itoa(season),
		ExtractedAt:  time.Now(),
	}

	for _, group := range []domain.StatGroup{domain.StatHitting, domain.StatPitching} {
		q := url.Values{}
		q.Set("stats", "season")
		q.Set("group", string(group))
		q.Set("season", strconv.Itoa(season))
		q.Set("sportIds", "1")

		var resp statsResponse
		if err := c.get(ctx, "/api/v1/stats", q, &resp); err != nil {
			return nil, err
		}

		for _, s := range resp.Stats {
			for _, split := range s.Splits {
				rec := domain.PlayerStatRecord{
					PlayerID:    split.Player.ID,
					TeamID:      split.Team.ID,
					Season:      season,
					Group:       group,
					GamesPlayed: split.Stat.GamesPlayed,
				}
				switch group {
				case domain.StatHitting:
					rec.AtBats = split.Stat.AtBats
					rec.Hits = split.Stat.Hits
					rec.HomeRuns = split.Stat.HomeRuns
					rec.RBI = split.Stat.RBI
					rec.BattingAvg = parseStatFloat(split.Stat.Avg)
				case domain.StatPitching:
					rec.Wins = split.Stat.Wins
					rec.Losses = split.Stat.Losses
					rec.InningsPitched = parseStatFloat(split.Stat.InningsPitched)
					rec.EarnedRuns = split.Stat.EarnedRuns
					rec.ERA = parseStatFloat(split.Stat.ERA)
					rec.WHIP = parseStatFloat(split.Stat.WHIP)
				}
				batch.PlayerStats = append(batch.PlayerStats, rec)
			}
		}
	}
	return batch, nil
}

// FetchGameEvents извлекает play-by-play одной игры.
func (c *Client) FetchGameEvents(ctx context.Context, gameID int64, date time.Time) (*domain.Batch, error) {
	path := fmt.Sprintf("/api/v1.1/game/%d/feed/live", gameID)

	var resp feedResponse
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}

	batch := &domain.Batch{
		Entity:       domain.EntityGameEvents,
		PartitionKey: date.Format(domain.DateLayout),
		ExtractedAt:  time.Now(),
	}
	for _, play := range resp.LiveData.Plays.AllPlays {
		ev := domain.GameEventRecord{
			GameID:      gameID,
			Seq:         play.About.AtBatIndex,
			Inning:      play.About.Inning,
			InningHalf:  play.About.HalfInning,
			EventType:   play.Result.Event,
			Description: play.Result.Description,
			HomeScore:   play.Result.HomeScore,
			AwayScore:   play.Result.AwayScore,
		}
		if t := parseGameTime(play.About.EndTime); t != nil {
			ev.Timestamp = *t
		}
		batch.GameEvents = append(batch.GameEvents, ev)
	}
	return batch, nil
}

// get выполняет один GET-запрос и декодирует JSON-ответ в out.
// Все ошибки возвращаются как *Error с классификацией.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &Error{Kind: KindPermanent, Endpoint: path, Summary: err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpc.Do(req)
	if err != nil {
		// Сетевые сбои и таймауты — transient.
		return &Error{Kind: KindTransient, Endpoint: path, Summary: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &Error{Kind: KindTransient, StatusCode: resp.StatusCode, Endpoint: path, Summary: err.Error(), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return &Error{
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Endpoint:   path,
			Summary:    truncate(string(body)),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		// Неразбираемый ответ при 200 — повтор бесполезен.
		return &Error{
			Kind:       KindPermanent,
			StatusCode: resp.StatusCode,
			Endpoint:   path,
			Summary:    fmt.Sprintf("decode: %v; body: %s", err, truncate(string(body))),
			Err:        err,
		}
	}
	return nil
}

// classifyStatus относит HTTP-статус к классу ошибки:
// 5xx и 429 — transient, остальные 4xx — permanent.
func classifyStatus(code int) ErrorKind {
	if code >= 500 || code == http.StatusTooManyRequests {
		return KindTransient
	}
	return KindPermanent
}

// gameStatus переводит abstractGameState API в доменный статус.
func gameStatus(s string) domain.GameStatus {
	switch s {
	case "Final":
		return domain.GameFinal
	case "Live":
		return domain.GameLive
	default:
		return domain.GameScheduled
	}
}

// truncate усекает тело ответа для диагностики.
func truncate(s string) string {
	if len(s) > maxErrorSummary {
		return s[:maxErrorSummary] + "..."
	}
	return s
}
