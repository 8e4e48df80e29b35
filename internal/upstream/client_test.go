package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Ballpark/internal/domain"
)

// --- Error Classification Tests ---

func TestFetchGamesServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.FetchGames(context.Background(), time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatal("ожидалась ошибка при 503")
	}
	if !IsTransient(err) {
		t.Errorf("503 должен классифицироваться как transient: %v", err)
	}
}

func TestFetchGamesRateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.FetchGames(context.Background(), time.Now())
	if !IsTransient(err) {
		t.Errorf("429 должен классифицироваться как transient: %v", err)
	}
}

func TestFetchGamesNotFoundIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such endpoint", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.FetchGames(context.Background(), time.Now())
	if err == nil {
		t.Fatal("ожидалась ошибка при 404")
	}
	if IsTransient(err) {
		t.Errorf("404 не должен классифицироваться как transient: %v", err)
	}
}

func TestFetchGamesBadJSONIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>definitely not json" + strings.Repeat("x", 1000)))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.FetchGames(context.Background(), time.Now())
	if err == nil {
		t.Fatal("ожидалась ошибка декодирования")
	}
	if IsTransient(err) {
		t.Error("неразбираемый ответ — permanent")
	}
	// Summary усечён, а не содержит всё тело.
	if len(err.Error()) > 600 {
		t.Errorf("summary ошибки не усечён: len=%d", len(err.Error()))
	}
}

func TestFetchGamesConnectionRefusedIsTransient(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := c.FetchGames(context.Background(), time.Now())
	if !IsTransient(err) {
		t.Errorf("сетевой сбой должен быть transient: %v", err)
	}
}

// --- Decode Tests ---

const scheduleFixture = `{
  "dates": [{
    "date": "2026-08-22",
    "games": [
      {
        "gamePk": 776431,
        "gameDate": "2026-08-22T23:05:00Z",
        "status": {"abstractGameState": "Final", "detailedState": "Final"},
        "teams": {
          "home": {"team": {"id": 147}, "score": 5},
          "away": {"team": {"id": 111}, "score": 3}
        },
        "venue": {"name": "Yankee Stadium"}
      },
      {
        "gamePk": 776432,
        "gameDate": "2026-08-23T01:10:00Z",
        "status": {"abstractGameState": "Preview", "detailedState": "Scheduled"},
        "teams": {
          "home": {"team": {"id": 119}},
          "away": {"team": {"id": 137}}
        },
        "venue": {"name": "Dodger Stadium"}
      }
    ]
  }]
}`

func TestFetchGamesDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/schedule" {
			t.Errorf("неожиданный путь: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("date"); got != "2026-08-22" {
			t.Errorf("date = %s, want 2026-08-22", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(scheduleFixture))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	date := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)
	batch, err := c.FetchGames(context.Background(), date)
	if err != nil {
		t.Fatalf("FetchGames: %v", err)
	}

	if batch.Entity != domain.EntityGames {
		t.Errorf("entity = %s, want games", batch.Entity)
	}
	if batch.PartitionKey != "2026-08-22" {
		t.Errorf("partition key = %s, want 2026-08-22", batch.PartitionKey)
	}
	if len(batch.Games) != 2 {
		t.Fatalf("len(Games) = %d, want 2", len(batch.Games))
	}

	final := batch.Games[0]
	if final.GameID != 776431 || !final.IsFinal() {
		t.Errorf("первая игра: id=%d status=%s", final.GameID, final.Status)
	}
	if final.HomeScore == nil || *final.HomeScore != 5 {
		t.Errorf("home score = %v, want 5", final.HomeScore)
	}

	scheduled := batch.Games[1]
	if scheduled.Status != domain.GameScheduled {
		t.Errorf("вторая игра: status = %s, want scheduled", scheduled.Status)
	}
	if scheduled.HomeScore != nil {
		t.Error("у незавершённой игры не должно быть счёта")
	}
}

const standingsFixture = `{
  "records": [{
    "division": {"id": 201, "name": "American League East"},
    "league": {"id": 103},
    "teamRecords": [
      {
        "team": {"id": 147},
        "wins": 76, "losses": 52,
        "winningPercentage": ".594",
        "gamesBack": "-",
        "runsScored": 650, "runsAllowed": 520,
        "runDifferential": 130, "gamesPlayed": 128
      },
      {
        "team": {"id": 141},
        "wins": 70, "losses": 58,
        "winningPercentage": ".547",
        "gamesBack": "6.0",
        "runsScored": 600, "runsAllowed": 560,
        "runDifferential": 40, "gamesPlayed": 128
      }
    ]
  }]
}`

func TestFetchStandingsDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(standingsFixture))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	date := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)
	batch, err := c.FetchStandings(context.Background(), date, 2026)
	if err != nil {
		t.Fatalf("FetchStandings: %v", err)
	}
	if len(batch.Standings) != 2 {
		t.Fatalf("len(Standings) = %d, want 2", len(batch.Standings))
	}

	leader := batch.Standings[0]
	if leader.WinPercentage != 0.594 {
		t.Errorf("win pct = %v, want 0.594", leader.WinPercentage)
	}
	if leader.GamesBack != 0 {
		t.Errorf("games back лидера = %v, want 0 (API отдаёт \"-\")", leader.GamesBack)
	}
	if leader.DivisionID != 201 || leader.LeagueID != 103 {
		t.Errorf("division=%d league=%d", leader.DivisionID, leader.LeagueID)
	}

	second := batch.Standings[1]
	if second.GamesBack != 6.0 {
		t.Errorf("games back = %v, want 6.0", second.GamesBack)
	}
}

// --- Helper Tests ---

func TestParseStatFloat(t *testing.T) {
	if v := parseStatFloat(".301"); v == nil || *v != 0.301 {
		t.Errorf("parseStatFloat(.301) = %v", v)
	}
	if v := parseStatFloat("3.21"); v == nil || *v != 3.21 {
		t.Errorf("parseStatFloat(3.21) = %v", v)
	}
	if v := parseStatFloat("-"); v != nil {
		t.Errorf("parseStatFloat(-) = %v, want nil", v)
	}
	if v := parseStatFloat(""); v != nil {
		t.Errorf("parseStatFloat(\"\") = %v, want nil", v)
	}
}
