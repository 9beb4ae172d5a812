package leaderboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/yourname/paceman-leaderboard-bot/internal/store"
	"github.com/yourname/paceman-leaderboard-bot/internal/timeutil"
)

func formatValue(m Metric, p store.Player) string {
	switch m {
	case Resets:
		return fmt.Sprintf("%d nether entries", p.ResetCount)
	case Finishes:
		return fmt.Sprintf("%d completions", p.FinishCount)
	default:
		return "avg " + timeutil.FormatClock(p.AvgFinish)
	}
}

// FormatView renders one ranked view as numbered lines.
func FormatView(v View) string {
	if len(v.Players) == 0 {
		return "No data yet."
	}
	var b strings.Builder
	for i, p := range v.Players {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, p.Username, formatValue(v.Metric, p))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatBoard renders the daily report for the date of at.
func FormatBoard(board Board, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Paceman leaderboard %s (last 24h)\n", at.Format("2006-01-02"))
	for _, v := range board.Views {
		fmt.Fprintf(&b, "\n%s\n%s\n", v.Metric.Title(), FormatView(v))
	}
	return strings.TrimRight(b.String(), "\n")
}
