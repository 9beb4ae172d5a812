package scheduler

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/yourname/paceman-leaderboard-bot/internal/store"
	"github.com/yourname/paceman-leaderboard-bot/internal/timeutil"
)

// run fires the group's cycle every day at sched's wall-clock time until
// ctx is cancelled. Cycle failures are logged and never end the loop.
func (s *Supervisor) run(ctx context.Context, group string, sched store.Schedule) {
	log := s.log.With(zap.String("group", group))
	for {
		next := timeutil.NextFire(s.clock.Now(), sched.Hour, sched.Minute, s.loc)
		log.Debug("next leaderboard", zap.Time("at", next))
		if !sleepUntil(ctx, s.clock, next) {
			log.Debug("loop stopped")
			return
		}
		s.fire(ctx, log, group, sched)
	}
}

// sleepUntil blocks until t or until ctx is done. It reports false on
// cancellation, including a cancellation that races with the deadline.
func sleepUntil(ctx context.Context, clock clockwork.Clock, t time.Time) bool {
	timer := clock.NewTimer(t.Sub(clock.Now()))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return ctx.Err() == nil
	}
}

func (s *Supervisor) fire(ctx context.Context, log *zap.Logger, group string, sched store.Schedule) {
	defer recoverCycle(log)
	if err := s.cycle.RunCycle(ctx, group, sched); err != nil && ctx.Err() == nil {
		log.Warn("leaderboard cycle failed", zap.Error(err))
	}
}

func recoverCycle(log *zap.Logger) {
	if r := recover(); r != nil {
		log.Error("leaderboard cycle panicked", zap.Any("recover", r), zap.Stack("stack"))
	}
}
