package warehouse

import (
	"fmt"

	"github.com/shaiso/Ballpark/internal/domain"
)

// Предзаписная проверка строк: строка без натурального ключа
// отбраковывается индивидуально и не попадает в merge.

func screenGame(g *domain.GameRecord) (string, bool) {
	if g.GameID == 0 {
		return "game: missing game_id", false
	}
	if g.GameDate.IsZero() {
		return fmt.Sprintf("game:%d: missing game_date", g.GameID), false
	}
	if g.HomeTeamID == 0 || g.AwayTeamID == 0 {
		return fmt.Sprintf("game:%d: missing team ids", g.GameID), false
	}
	return "", true
}

func screenTeam(t *domain.TeamRecord) (string, bool) {
	if t.TeamID == 0 {
		return "team: missing team_id", false
	}
	if t.Season == 0 {
		return fmt.Sprintf("team:%d: missing season", t.TeamID), false
	}
	if t.Name == "" {
		return fmt.Sprintf("team:%d: missing name", t.TeamID), false
	}
	return "", true
}

func screenPlayer(p *domain.PlayerRecord) (string, bool) {
	if p.PlayerID == 0 {
		return "player: missing player_id", false
	}
	if p.Season == 0 {
		return fmt.Sprintf("player:%d: missing season", p.PlayerID), false
	}
	if p.FullName == "" {
		return fmt.Sprintf("player:%d: missing full_name", p.PlayerID), false
	}
	return "", true
}

func screenStanding(s *domain.StandingRecord) (string, bool) {
	if s.TeamID == 0 {
		return "standing: missing team_id", false
	}
	if s.Date.IsZero() {
		return fmt.Sprintf("standing:%d: missing date", s.TeamID), false
	}
	return "", true
}

func screenPlayerStat(s *domain.PlayerStatRecord) (string, bool) {
	if s.PlayerID == 0 {
		return "stat: missing player_id", false
	}
	if s.Season == 0 {
		return fmt.Sprintf("stat:%d: missing season", s.PlayerID), false
	}
	if s.Group != domain.StatHitting && s.Group != domain.StatPitching {
		return fmt.Sprintf("stat:%d: unknown group %q", s.PlayerID, s.Group), false
	}
	return "", true
}

func screenGameEvent(e *domain.GameEventRecord) (string, bool) {
	if e.GameID == 0 {
		return "event: missing game_id", false
	}
	if e.Seq < 0 {
		return fmt.Sprintf("event:%d: negative seq", e.GameID), false
	}
	return "", true
}
