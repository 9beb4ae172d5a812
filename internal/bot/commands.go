package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yourname/paceman-leaderboard-bot/internal/leaderboard"
	"github.com/yourname/paceman-leaderboard-bot/internal/stats"
	"github.com/yourname/paceman-leaderboard-bot/internal/store"
	"github.com/yourname/paceman-leaderboard-bot/internal/timeutil"
)

const adhocTopN = 10

const helpText = `Paceman leaderboard bot
/adduser <name> - track a player
/ldb <nether|finishcount|finishtime> - current top 10
/paceman <name> - last 24h session stats
/rank <name> - ranked elo and season best
/schedule - show this chat's daily leaderboard time
/settime HH:MM - post the leaderboard here daily (operator)
/stop - stop the daily leaderboard (operator)`

const operatorOnly = "Only the bot operator can change the schedule."

func (a *BotApp) addUser(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: /adduser <name>"
	}
	p, created, err := a.LB.Register(ctx, args[0])
	if err != nil {
		return a.statsReply(err, args[0])
	}
	if !created {
		return fmt.Sprintf("%s is already tracked.", p.Username)
	}
	return fmt.Sprintf("Now tracking %s.", p.Username)
}

func (a *BotApp) board(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: /ldb <nether|finishcount|finishtime>"
	}
	m, err := leaderboard.ParseMetric(args[0])
	if err != nil {
		return "Unknown leaderboard. Use nether, finishcount or finishtime."
	}
	v, res := a.LB.View(ctx, m, adhocTopN)
	text := m.Title() + "\n" + leaderboard.FormatView(v)
	if n := len(res.Failed); n > 0 {
		text += fmt.Sprintf("\n\n(%d player(s) could not be refreshed, showing older data)", n)
	}
	return text
}

func (a *BotApp) session(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: /paceman <name>"
	}
	st, err := a.Stats.FetchSessionStats(ctx, args[0])
	if err != nil {
		return a.statsReply(err, args[0])
	}
	return formatSession(args[0], st)
}

func (a *BotApp) rank(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: /rank <name>"
	}
	rs, err := a.Stats.FetchRankStats(ctx, args[0])
	if err != nil {
		return a.statsReply(err, args[0])
	}
	return formatRank(args[0], rs)
}

func (a *BotApp) setTime(group string, args []string) string {
	if len(args) != 1 {
		return "Usage: /settime HH:MM"
	}
	h, m, ok := timeutil.ParseHHMM(args[0])
	if !ok {
		return "Time must be HH:MM, for example 08:00."
	}
	if err := a.Sch.Reschedule(group, store.Schedule{Hour: h, Minute: m, Target: group}); err != nil {
		a.log.Error("reschedule", zap.String("group", group), zap.Error(err))
		return "Could not save the schedule, try again later."
	}
	return fmt.Sprintf("Daily leaderboard scheduled at %02d:%02d (%s).", h, m, a.Location)
}

func (a *BotApp) stop(group string) string {
	subscribed, err := a.Sch.Cancel(group)
	if err != nil {
		a.log.Error("cancel", zap.String("group", group), zap.Error(err))
		return "Could not stop the daily leaderboard, try again later."
	}
	if !subscribed {
		return "This chat has no daily leaderboard."
	}
	return "Daily leaderboard stopped."
}

func (a *BotApp) showSchedule(group string) string {
	rec, ok := a.Sch.Schedules()[group]
	if !ok {
		return "This chat has no daily leaderboard. An operator can set one with /settime HH:MM."
	}
	return fmt.Sprintf("Daily leaderboard at %02d:%02d (%s).", rec.Hour, rec.Minute, a.Location)
}

func (a *BotApp) statsReply(err error, username string) string {
	switch {
	case errors.Is(err, stats.ErrNotFound):
		return fmt.Sprintf("Player %s was not found.", username)
	case errors.Is(err, stats.ErrTimeout):
		return "The stats service did not answer in time, try again later."
	case stats.Transient(err):
		return "Could not reach the stats service, try again later."
	}
	a.log.Error("command failed", zap.String("player", username), zap.Error(err))
	return "Something went wrong, try again later."
}

var sessionSplits = []struct {
	label string
	split func(stats.SessionStats) *stats.Split
}{
	{"Nether", func(s stats.SessionStats) *stats.Split { return s.Nether }},
	{"Bastion", func(s stats.SessionStats) *stats.Split { return s.Bastion }},
	{"Fortress", func(s stats.SessionStats) *stats.Split { return s.Fortress }},
	{"First portal", func(s stats.SessionStats) *stats.Split { return s.FirstPortal }},
	{"Stronghold", func(s stats.SessionStats) *stats.Split { return s.Stronghold }},
	{"End", func(s stats.SessionStats) *stats.Split { return s.End }},
	{"Finish", func(s stats.SessionStats) *stats.Split { return s.Finish }},
}

func formatSession(username string, st stats.SessionStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (last 24h)", username)
	for _, s := range sessionSplits {
		sp := s.split(st)
		if sp == nil || sp.Count == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s: %d", s.label, sp.Count)
		if sp.Avg != "" {
			fmt.Fprintf(&b, " (avg %s)", sp.Avg)
		}
	}
	if st.ResetCount() == 0 {
		b.WriteString("\nNo nether entries yet.")
	}
	return b.String()
}

func formatRank(username string, rs stats.RankStats) string {
	name := rs.Nickname
	if name == "" {
		name = username
	}
	var b strings.Builder
	b.WriteString(name)
	if rs.EloRate != nil {
		fmt.Fprintf(&b, ": elo %d", *rs.EloRate)
		if rs.EloRank != nil {
			fmt.Fprintf(&b, " (#%d)", *rs.EloRank)
		}
	} else {
		b.WriteString(": unrated")
	}
	if rs.SeasonBest != nil {
		fmt.Fprintf(&b, "\nSeason best: %s", timeutil.FormatClock(*rs.SeasonBest))
	} else {
		b.WriteString("\nNo ranked completion this season.")
	}
	return b.String()
}
