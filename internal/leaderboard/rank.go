package leaderboard

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/yourname/paceman-leaderboard-bot/internal/store"
)

var ErrUnknownMetric = errors.New("unknown leaderboard type")

// Metric selects one of the ranking strategies.
type Metric int

const (
	Resets Metric = iota
	Finishes
	FinishTime
)

// Metrics lists every view of a full board, in report order.
var Metrics = []Metric{Resets, Finishes, FinishTime}

type strategy struct {
	name  string
	title string
	keep  func(p store.Player) bool
	less  func(a, b store.Player) bool
}

var strategies = map[Metric]strategy{
	Resets: {
		name:  "nether",
		title: "Most resets (nether entries)",
		less:  func(a, b store.Player) bool { return a.ResetCount > b.ResetCount },
	},
	Finishes: {
		name:  "finishcount",
		title: "Most completions",
		less:  func(a, b store.Player) bool { return a.FinishCount > b.FinishCount },
	},
	FinishTime: {
		name:  "finishtime",
		title: "Fastest average finish",
		keep:  store.Player.HasCompletions,
		less:  func(a, b store.Player) bool { return a.AvgFinish < b.AvgFinish },
	},
}

func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nether", "resets":
		return Resets, nil
	case "finishcount", "finishes":
		return Finishes, nil
	case "finishtime":
		return FinishTime, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

func (m Metric) String() string {
	if st, ok := strategies[m]; ok {
		return st.name
	}
	return fmt.Sprintf("Metric(%d)", int(m))
}

func (m Metric) Title() string { return strategies[m].title }

// Rank orders players for m. Ties keep their input order. Players with no
// completions are left out of the FinishTime ranking.
func Rank(players []store.Player, m Metric) []store.Player {
	st, ok := strategies[m]
	if !ok {
		return nil
	}
	out := make([]store.Player, 0, len(players))
	for _, p := range players {
		if st.keep != nil && !st.keep(p) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return st.less(out[i], out[j]) })
	return out
}

// Top returns at most n players of Rank(players, m).
func Top(players []store.Player, m Metric, n int) []store.Player {
	ranked := Rank(players, m)
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

type View struct {
	Metric  Metric
	Players []store.Player
}

type Board struct {
	Views []View
}

// Build ranks one snapshot of players for every metric.
func Build(players []store.Player, n int) Board {
	b := Board{Views: make([]View, 0, len(Metrics))}
	for _, m := range Metrics {
		b.Views = append(b.Views, View{Metric: m, Players: Top(players, m, n)})
	}
	return b
}
