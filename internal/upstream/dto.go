package upstream

import (
	"strconv"
	"strings"
	"time"
)

// Сырые JSON-формы ответов MLB Stats API. Числовые показатели
// (winningPercentage, avg, era, whip, gamesBack) API отдаёт строками
// вида ".543" или "-"; конвертация в домен идёт через parseStatFloat.

// scheduleResponse — ответ GET /api/v1/schedule.
type scheduleResponse struct {
	Dates []struct {
		Date  string         `json:"date"`
		Games []scheduleGame `json:"games"`
	} `json:"dates"`
}

type scheduleGame struct {
	GamePk   int64  `json:"gamePk"`
	GameDate string `json:"gameDate"`
	Status   struct {
		AbstractGameState string `json:"abstractGameState"`
		DetailedState     string `json:"detailedState"`
	} `json:"status"`
	Teams struct {
		Home scheduleSide `json:"home"`
		Away scheduleSide `json:"away"`
	} `json:"teams"`
	Venue struct {
		Name string `json:"name"`
	} `json:"venue"`
}

type scheduleSide struct {
	Team struct {
		ID int64 `json:"id"`
	} `json:"team"`
	Score *int `json:"score,omitempty"`
}

// standingsResponse — ответ GET /api/v1/standings.
type standingsResponse struct {
	Records []struct {
		Division struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"division"`
		League struct {
			ID int64 `json:"id"`
		} `json:"league"`
		TeamRecords []struct {
			Team struct {
				ID int64 `json:"id"`
			} `json:"team"`
			Wins              int    `json:"wins"`
			Losses            int    `json:"losses"`
			WinningPercentage string `json:"winningPercentage"`
			GamesBack         string `json:"gamesBack"`
			RunsScored        int    `json:"runsScored"`
			RunsAllowed       int    `json:"runsAllowed"`
			RunDifferential   int    `json:"runDifferential"`
			GamesPlayed       int    `json:"gamesPlayed"`
		} `json:"teamRecords"`
	} `json:"records"`
}

// teamsResponse — ответ GET /api/v1/teams.
type teamsResponse struct {
	Teams []struct {
		ID           int64  `json:"id"`
		Name         string `json:"name"`
		Abbreviation string `json:"abbreviation"`
		LocationName string `json:"locationName"`
		Division     struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"division"`
		League struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"league"`
		Active bool `json:"active"`
	} `json:"teams"`
}

// playersResponse — ответ GET /api/v1/sports/1/players.
type playersResponse struct {
	People []struct {
		ID              int64  `json:"id"`
		FullName        string `json:"fullName"`
		FirstName       string `json:"firstName"`
		LastName        string `json:"lastName"`
		PrimaryPosition struct {
			Abbreviation string `json:"abbreviation"`
		} `json:"primaryPosition"`
		CurrentTeam *struct {
			ID int64 `json:"id"`
		} `json:"currentTeam,omitempty"`
		Active bool `json:"active"`
	} `json:"people"`
}

// statsResponse — ответ GET /api/v1/stats.
type statsResponse struct {
	Stats []struct {
		Group struct {
			DisplayName string `json:"displayName"`
		} `json:"group"`
		Splits []struct {
			Player struct {
				ID int64 `json:"id"`
			} `json:"player"`
			Team struct {
				ID int64 `json:"id"`
			} `json:"team"`
			Stat statLine `json:"stat"`
		} `json:"splits"`
	} `json:"stats"`
}

type statLine struct {
	GamesPlayed int `json:"gamesPlayed"`

	AtBats   *int   `json:"atBats,omitempty"`
	Hits     *int   `json:"hits,omitempty"`
	HomeRuns *int   `json:"homeRuns,omitempty"`
	RBI      *int   `json:"rbi,omitempty"`
	Avg      string `json:"avg,omitempty"`

	Wins           *int   `json:"wins,omitempty"`
	Losses         *int   `json:"losses,omitempty"`
	InningsPitched string `json:"inningsPitched,omitempty"`
	EarnedRuns     *int   `json:"earnedRuns,omitempty"`
	ERA            string `json:"era,omitempty"`
	WHIP           string `json:"whip,omitempty"`
}

// feedResponse — ответ GET /api/v1.1/game/{gamePk}/feed/live
// (только нужная часть play-by-play).
type feedResponse struct {
	GamePk   int64 `json:"gamePk"`
	LiveData struct {
		Plays struct {
			AllPlays []struct {
				About struct {
					Inning     int    `json:"inning"`
					HalfInning string `json:"halfInning"`
					AtBatIndex int    `json:"atBatIndex"`
					EndTime    string `json:"endTime"`
				} `json:"about"`
				Result struct {
					Event       string `json:"event"`
					Description string `json:"description"`
					HomeScore   int    `json:"homeScore"`
					AwayScore   int    `json:"awayScore"`
				} `json:"result"`
			} `json:"allPlays"`
		} `json:"plays"`
	} `json:"liveData"`
}

// parseStatFloat разбирает строковый показатель API (".543", "3.21",
// "-"). Для пустых и нечисловых значений возвращает nil.
func parseStatFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return nil
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseGameTime разбирает время игры из ISO-строки API.
func parseGameTime(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
