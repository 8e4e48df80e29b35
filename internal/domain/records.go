package domain

import "time"

// DateLayout — формат partition key для дат ("2006-01-02").
const DateLayout = "2006-01-02"

// GameStatus — состояние игры по данным upstream.
type GameStatus string

const (
	GameScheduled GameStatus = "scheduled"
	GameLive      GameStatus = "live"
	GameFinal     GameStatus = "final"
)

// GameRecord — одна игра расписания/боксскора.
//
// Ключ: GameID. Partition key: дата игры.
type GameRecord struct {
	GameID         int64      `json:"game_id"`
	GameDate       time.Time  `json:"game_date"`
	GameTime       *time.Time `json:"game_time,omitempty"`
	HomeTeamID     int64      `json:"home_team_id"`
	AwayTeamID     int64      `json:"away_team_id"`
	HomeScore      *int       `json:"home_score,omitempty"`
	AwayScore      *int       `json:"away_score,omitempty"`
	Status         GameStatus `json:"status"`
	DetailedStatus string     `json:"detailed_status,omitempty"`
	VenueName      string     `json:"venue_name,omitempty"`
}

// PartitionKey возвращает partition key записи (дата игры).
func (g *GameRecord) PartitionKey() string {
	return g.GameDate.Format(DateLayout)
}

// IsFinal возвращает true для завершённой игры.
func (g *GameRecord) IsFinal() bool {
	return g.Status == GameFinal
}

// TeamRecord — справочная запись о команде (slowly changing).
//
// Ключ: TeamID. Partition key: сезон.
type TeamRecord struct {
	TeamID       int64  `json:"team_id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation,omitempty"`
	LocationName string `json:"location_name,omitempty"`
	DivisionID   int64  `json:"division_id"`
	DivisionName string `json:"division_name,omitempty"`
	LeagueID     int64  `json:"league_id"`
	LeagueName   string `json:"league_name,omitempty"`
	Active       bool   `json:"active"`
	Season       int    `json:"season"`
}

// PlayerRecord — справочная запись об игроке (slowly changing).
//
// Ключ: PlayerID. Partition key: сезон.
type PlayerRecord struct {
	PlayerID  int64  `json:"player_id"`
	FullName  string `json:"full_name"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Position  string `json:"position,omitempty"`
	TeamID    *int64 `json:"team_id,omitempty"`
	Active    bool   `json:"active"`
	Season    int    `json:"season"`
}

// StandingRecord — строка турнирной таблицы на конкретную дату.
//
// Ключ: (TeamID, Date). Снимок по дивизиону — упорядоченный набор
// таких строк с общими (DivisionID, Date).
type StandingRecord struct {
	TeamID          int64     `json:"team_id"`
	Season          int       `json:"season"`
	DivisionID      int64     `json:"division_id"`
	DivisionName    string    `json:"division_name,omitempty"`
	LeagueID        int64     `json:"league_id"`
	Wins            int       `json:"wins"`
	Losses          int       `json:"losses"`
	WinPercentage   float64   `json:"win_percentage"`
	GamesBack       float64   `json:"games_back"`
	RunsScored      int       `json:"runs_scored"`
	RunsAllowed     int       `json:"runs_allowed"`
	RunDifferential int       `json:"run_differential"`
	GamesPlayed     int       `json:"games_played"`
	Date            time.Time `json:"date"`
}

// PartitionKey возвращает partition key записи (дата снимка).
func (s *StandingRecord) PartitionKey() string {
	return s.Date.Format(DateLayout)
}

// StatGroup — группа статистики игрока.
type StatGroup string

const (
	StatHitting  StatGroup = "hitting"
	StatPitching StatGroup = "pitching"
)

// PlayerStatRecord — агрегированная статистика игрока за сезон.
//
// Ключ: (PlayerID, Season, Group). Partition key: сезон.
// Поля батарей и питчеров объединены в одну запись; незаполненные
// значения остаются nil и не участвуют в валидации.
type PlayerStatRecord struct {
	PlayerID    int64     `json:"player_id"`
	TeamID      int64     `json:"team_id"`
	Season      int       `json:"season"`
	Group       StatGroup `json:"group"`
	GamesPlayed int       `json:"games_played"`

	// Hitting
	AtBats     *int     `json:"at_bats,omitempty"`
	Hits       *int     `json:"hits,omitempty"`
	HomeRuns   *int     `json:"home_runs,omitempty"`
	RBI        *int     `json:"rbi,omitempty"`
	BattingAvg *float64 `json:"batting_avg,omitempty"`

	// Pitching
	Wins           *int     `json:"wins,omitempty"`
	Losses         *int     `json:"losses,omitempty"`
	InningsPitched *float64 `json:"innings_pitched,omitempty"`
	EarnedRuns     *int     `json:"earned_runs,omitempty"`
	ERA            *float64 `json:"era,omitempty"`
	WHIP           *float64 `json:"whip,omitempty"`
}

// GameEventRecord — событие внутри игры (play-by-play).
//
// Ключ: (GameID, Seq), append-only в рамках игры.
type GameEventRecord struct {
	GameID      int64     `json:"game_id"`
	Seq         int       `json:"seq"`
	Inning      int       `json:"inning"`
	InningHalf  string    `json:"inning_half"` // top, bottom
	EventType   string    `json:"event_type"`
	Description string    `json:"description,omitempty"`
	HomeScore   int       `json:"home_score"`
	AwayScore   int       `json:"away_score"`
	Timestamp   time.Time `json:"timestamp"`
}

// Batch — результат одного извлечения: типизированные записи одной
// сущности для одного partition key.
//
// Extractor возвращает Batch, Loader принимает его на запись; между
// ними Batch живёт только в памяти run'а.
type Batch struct {
	Entity       EntityType
	PartitionKey string
	ExtractedAt  time.Time

	Games       []GameRecord
	Teams       []TeamRecord
	Players     []PlayerRecord
	Standings   []StandingRecord
	PlayerStats []PlayerStatRecord
	GameEvents  []GameEventRecord
}

// Len возвращает количество записей в батче.
func (b *Batch) Len() int {
	switch b.Entity {
	case EntityGames:
		return len(b.Games)
	case EntityTeams:
		return len(b.Teams)
	case EntityPlayers:
		return len(b.Players)
	case EntityStandings:
		return len(b.Standings)
	case EntityPlayerStats:
		return len(b.PlayerStats)
	case EntityGameEvents:
		return len(b.GameEvents)
	default:
		return 0
	}
}
