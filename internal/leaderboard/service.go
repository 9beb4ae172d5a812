package leaderboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yourname/paceman-leaderboard-bot/internal/stats"
	"github.com/yourname/paceman-leaderboard-bot/internal/store"
)

type Fetcher interface {
	FetchSessionStats(ctx context.Context, username string) (stats.SessionStats, error)
	FetchRankStats(ctx context.Context, username string) (stats.RankStats, error)
}

type Notifier interface {
	Send(ctx context.Context, target, text string) error
}

type Config struct {
	TopN        int
	Concurrency int
	Location    *time.Location
}

// Service refreshes tracked players and builds, formats and delivers
// leaderboards. It is safe for concurrent use by several group loops.
type Service struct {
	players  *store.PlayerStore
	fetcher  Fetcher
	notifier Notifier
	cfg      Config
	now      func() time.Time
	log      *zap.Logger
}

func NewService(players *store.PlayerStore, fetcher Fetcher, notifier Notifier, cfg Config) *Service {
	if cfg.TopN <= 0 {
		cfg.TopN = 3
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		players:  players,
		fetcher:  fetcher,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		log:      zap.L().Named("leaderboard"),
	}
}

type RefreshResult struct {
	Updated int
	// Failed maps player key to the fetch or persist error.
	Failed map[string]error
}

// Refresh fetches every tracked player once. A failed player keeps its
// previous record; the others are still updated.
func (s *Service) Refresh(ctx context.Context) RefreshResult {
	res := RefreshResult{Failed: map[string]error{}}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, p := range s.players.Snapshot() {
		g.Go(func() error {
			err := s.refreshOne(ctx, p)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed[p.Key] = err
				return nil
			}
			res.Updated++
			return nil
		})
	}
	_ = g.Wait()
	return res
}

func (s *Service) refreshOne(ctx context.Context, p store.Player) error {
	st, err := s.fetcher.FetchSessionStats(ctx, p.Username)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		s.log.Warn("stats fetch failed, keeping previous values",
			zap.String("player", p.Username), zap.Error(err))
		return err
	}
	if _, _, err := s.players.Update(p.Key, st.Apply); err != nil {
		s.log.Error("persist player", zap.String("player", p.Username), zap.Error(err))
		return err
	}
	return nil
}

// Board refreshes all players and ranks the resulting snapshot.
func (s *Service) Board(ctx context.Context) (Board, RefreshResult) {
	res := s.Refresh(ctx)
	return Build(s.players.Snapshot(), s.cfg.TopN), res
}

// View refreshes all players and returns the top n for one metric.
func (s *Service) View(ctx context.Context, m Metric, n int) (View, RefreshResult) {
	res := s.Refresh(ctx)
	return View{Metric: m, Players: Top(s.players.Snapshot(), m, n)}, res
}

// RunCycle is one scheduled leaderboard run for a group. Nothing is sent if
// ctx is cancelled before delivery.
func (s *Service) RunCycle(ctx context.Context, group string, sched store.Schedule) error {
	log := s.log.With(zap.String("group", group))
	started := s.now()

	board, res := s.Board(ctx)
	if err := ctx.Err(); err != nil {
		log.Info("cycle cancelled before delivery")
		return err
	}
	text := FormatBoard(board, started.In(s.cfg.Location))
	if err := s.notifier.Send(ctx, sched.Target, text); err != nil {
		return err
	}
	log.Info("leaderboard delivered",
		zap.Int("updated", res.Updated),
		zap.Int("failed", len(res.Failed)),
		zap.Duration("took", s.now().Sub(started)))
	return nil
}

// Register starts tracking username. A player already tracked under the
// same name keeps its key. New players are keyed by mcsrranked UUID when it
// resolves and by the lowercased name when mcsrranked does not know them.
// Any other rank lookup failure is returned so the caller can retry.
func (s *Service) Register(ctx context.Context, username string) (store.Player, bool, error) {
	username = strings.TrimSpace(username)
	st, err := s.fetcher.FetchSessionStats(ctx, username)
	if err != nil {
		return store.Player{}, false, err
	}

	key, display := s.trackedKey(username), username
	if key == "" {
		rs, err := s.fetcher.FetchRankStats(ctx, username)
		switch {
		case err == nil && rs.UUID != "":
			key = "uuid:" + rs.UUID
			if rs.Nickname != "" {
				display = rs.Nickname
			}
		case err == nil, errors.Is(err, stats.ErrNotFound):
			key = nameKey(username)
		default:
			return store.Player{}, false, err
		}
	} else if p, ok := s.players.Get(key); ok {
		display = p.Username
	}

	p := store.Player{Key: key, Username: display}
	st.Apply(&p)
	return s.players.Register(p)
}

// trackedKey finds the key of a player already tracked as username,
// ignoring case.
func (s *Service) trackedKey(username string) string {
	if _, ok := s.players.Get(nameKey(username)); ok {
		return nameKey(username)
	}
	for _, p := range s.players.Snapshot() {
		if strings.EqualFold(p.Username, username) {
			return p.Key
		}
	}
	return ""
}

func nameKey(username string) string {
	return "name:" + strings.ToLower(username)
}
