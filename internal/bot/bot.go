package bot

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gopkg.in/telebot.v3"
	"gopkg.in/telebot.v3/middleware"

	"github.com/yourname/paceman-leaderboard-bot/internal/leaderboard"
	"github.com/yourname/paceman-leaderboard-bot/internal/notify"
	"github.com/yourname/paceman-leaderboard-bot/internal/store"
)

const commandTimeout = time.Minute

type Leaderboard interface {
	Register(ctx context.Context, username string) (store.Player, bool, error)
	View(ctx context.Context, m leaderboard.Metric, n int) (leaderboard.View, leaderboard.RefreshResult)
}

type Schedules interface {
	Reschedule(group string, rec store.Schedule) error
	Cancel(group string) (bool, error)
	Schedules() map[string]store.Schedule
}

type BotApp struct {
	Bot   *telebot.Bot
	LB    Leaderboard
	Stats leaderboard.Fetcher
	Sch   Schedules

	OperatorID int64
	Location   *time.Location

	log *zap.Logger
}

func NewBot(token string, debug bool) (*telebot.Bot, error) {
	return telebot.NewBot(telebot.Settings{
		Token:   token,
		Poller:  &telebot.LongPoller{Timeout: 10 * time.Second},
		Verbose: debug,
		OnError: func(err error, c telebot.Context) {
			zap.L().Named("bot").Error("handler failed", zap.Error(err))
		},
	})
}

func New(b *telebot.Bot, lb Leaderboard, st leaderboard.Fetcher, sch Schedules, operatorID int64, loc *time.Location) *BotApp {
	if loc == nil {
		loc = time.UTC
	}
	return &BotApp{
		Bot:        b,
		LB:         lb,
		Stats:      st,
		Sch:        sch,
		OperatorID: operatorID,
		Location:   loc,
		log:        zap.L().Named("bot"),
	}
}

func (a *BotApp) SetupHandlers() {
	a.Bot.Handle("/bothelp", func(c telebot.Context) error { return c.Send(helpText) })
	a.Bot.Handle("/adduser", a.withArgs(a.addUser))
	a.Bot.Handle("/ldb", a.withArgs(a.board))
	a.Bot.Handle("/paceman", a.withArgs(a.session))
	a.Bot.Handle("/rank", a.withArgs(a.rank))
	a.Bot.Handle("/schedule", func(c telebot.Context) error {
		return c.Send(a.showSchedule(notify.Target(c.Chat().ID)))
	})

	operator := a.Bot.Group()
	operator.Use(middleware.Restrict(middleware.RestrictConfig{
		Chats: []int64{a.OperatorID},
		Out:   func(c telebot.Context) error { return c.Send(operatorOnly) },
	}))
	operator.Handle("/settime", func(c telebot.Context) error {
		return c.Send(a.setTime(notify.Target(c.Chat().ID), c.Args()))
	})
	operator.Handle("/stop", func(c telebot.Context) error {
		return c.Send(a.stop(notify.Target(c.Chat().ID)))
	})
}

func (a *BotApp) withArgs(fn func(ctx context.Context, args []string) string) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return c.Send(fn(ctx, c.Args()), &telebot.SendOptions{DisableWebPagePreview: true})
	}
}

// Run polls for updates until ctx is done.
func (a *BotApp) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		a.log.Info("stopping poller")
		a.Bot.Stop()
	}()
	a.log.Info("poller started")
	a.Bot.Start()
	return nil
}
