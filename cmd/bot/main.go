package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yourname/paceman-leaderboard-bot/internal/bot"
	"github.com/yourname/paceman-leaderboard-bot/internal/config"
	"github.com/yourname/paceman-leaderboard-bot/internal/leaderboard"
	"github.com/yourname/paceman-leaderboard-bot/internal/logger"
	"github.com/yourname/paceman-leaderboard-bot/internal/notify"
	"github.com/yourname/paceman-leaderboard-bot/internal/scheduler"
	"github.com/yourname/paceman-leaderboard-bot/internal/stats"
	"github.com/yourname/paceman-leaderboard-bot/internal/store"
)

func main() {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config.yml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("can't load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	loc, _ := cfg.Location()
	reconcileHour, reconcileMinute, _ := cfg.ReconcileTime()

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("can't open store", zap.Error(err))
	}
	defer st.Close()

	schedules := store.NewScheduleStore(st)
	records, err := schedules.Load()
	if err != nil {
		loadFailed(log, err)
	}
	players := store.NewPlayerStore(st)
	tracked, err := players.Load()
	if err != nil {
		loadFailed(log, err)
	}
	log.Info("state loaded", zap.Int("groups", len(records)), zap.Int("players", len(tracked)))

	client := stats.New(stats.Config{
		SessionURL: cfg.Stats.SessionURL,
		RankedURL:  cfg.Stats.RankedURL,
		Timeout:    cfg.StatsTimeout(),
		RatePerSec: cfg.Stats.RatePerSec,
	})

	tb, err := bot.NewBot(cfg.Bot.Token, cfg.Bot.Debug)
	if err != nil {
		log.Fatal("can't init bot", zap.Error(err))
	}

	svc := leaderboard.NewService(players, client, notify.NewTelegram(tb), leaderboard.Config{
		TopN:        cfg.Leaderboard.TopN,
		Concurrency: cfg.Stats.Concurrency,
		Location:    loc,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sup := scheduler.New(ctx, schedules, svc,
		scheduler.WithLocation(loc),
		scheduler.WithStopGrace(cfg.StopGrace()),
	)
	sup.StartAll(records)

	rec, err := scheduler.NewReconciler(sup, schedules, loc, reconcileHour, reconcileMinute)
	if err != nil {
		log.Fatal("can't init reconciler", zap.Error(err))
	}

	app := bot.New(tb, svc, client, sup, cfg.Bot.OperatorID, loc)
	app.SetupHandlers()
	if cfg.Bot.OperatorID == 0 {
		log.Warn("OPERATOR_ID is not set, /settime and /stop are disabled")
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("running telegram poller")
		return app.Run(gCtx)
	})
	g.Go(func() error {
		log.Info("running reconciler")
		return rec.Run(gCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("app terminated", zap.Error(err))
	}
	sup.Shutdown()
	log.Info("stopped")
}

// loadFailed keeps the bot running on a corrupt document; that store stays
// empty and refuses writes until the document is repaired.
func loadFailed(log *zap.Logger, err error) {
	var corrupt *store.CorruptStateError
	if errors.As(err, &corrupt) {
		log.Error("persisted state is corrupt", zap.String("document", corrupt.Document), zap.Error(err))
		return
	}
	log.Fatal("can't load state", zap.Error(err))
}
