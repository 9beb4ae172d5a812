package stats

import (
	"encoding/json"
	"time"

	"github.com/yourname/paceman-leaderboard-bot/internal/store"
	"github.com/yourname/paceman-leaderboard-bot/internal/timeutil"
)

type Split struct {
	Count int    `json:"count"`
	Avg   string `json:"avg"`
}

// SessionStats is the paceman.gg 24h session summary.
type SessionStats struct {
	Nether          *Split `json:"nether"`
	Bastion         *Split `json:"bastion"`
	Fortress        *Split `json:"fortress"`
	FirstStructure  *Split `json:"first_structure"`
	SecondStructure *Split `json:"second_structure"`
	FirstPortal     *Split `json:"first_portal"`
	Stronghold      *Split `json:"stronghold"`
	End             *Split `json:"end"`
	Finish          *Split `json:"finish"`
}

func (s SessionStats) ResetCount() int { return s.Nether.count() }

func (s SessionStats) FinishCount() int { return s.Finish.count() }

// AvgFinish is store.NoCompletions when there is no finished run or the
// reported average cannot be parsed.
func (s SessionStats) AvgFinish() time.Duration {
	if s.Finish.count() == 0 {
		return store.NoCompletions
	}
	d, ok := timeutil.ParseClock(s.Finish.Avg)
	if !ok {
		return store.NoCompletions
	}
	return d
}

// Apply copies the observed counters onto p.
func (s SessionStats) Apply(p *store.Player) {
	p.ResetCount = s.ResetCount()
	p.FinishCount = s.FinishCount()
	p.AvgFinish = s.AvgFinish()
}

func (sp *Split) count() int {
	if sp == nil || sp.Count < 0 {
		return 0
	}
	return sp.Count
}

// RankStats is the subset of the mcsrranked user profile the bot shows.
type RankStats struct {
	UUID     string
	Nickname string
	EloRate  *int
	EloRank  *int
	// SeasonBest is nil when the player has no ranked completion this season.
	SeasonBest *time.Duration
}

type rankResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type rankProfile struct {
	UUID       string `json:"uuid"`
	Nickname   string `json:"nickname"`
	EloRate    *int   `json:"eloRate"`
	EloRank    *int   `json:"eloRank"`
	Statistics struct {
		Season struct {
			BestTime struct {
				Ranked *int64 `json:"ranked"`
			} `json:"bestTime"`
		} `json:"season"`
	} `json:"statistics"`
}
