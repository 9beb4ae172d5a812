package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/yourname/paceman-leaderboard-bot/internal/store"
)

const reconcileTag = "reconcile"

type Snapshotter interface {
	Snapshot() map[string]store.Schedule
}

// Reconciler re-derives the running loops from the stored schedules once a
// day, restarting anything that drifted.
type Reconciler struct {
	S   gocron.Scheduler
	Sup *Supervisor
	St  Snapshotter

	log *zap.Logger
}

func NewReconciler(sup *Supervisor, st Snapshotter, loc *time.Location, hour, minute int) (*Reconciler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, err
	}
	r := &Reconciler{S: s, Sup: sup, St: st, log: zap.L().Named("reconcile")}
	_, err = s.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(hour), uint(minute), 0))),
		gocron.NewTask(func() { r.Reconcile() }),
		gocron.WithTags(reconcileTag),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, err
	}
	return r, nil
}

func (r *Reconciler) Reconcile() (started, stopped int) {
	started, stopped = r.Sup.Reconcile(r.St.Snapshot())
	if started > 0 || stopped > 0 {
		r.log.Warn("schedule loops repaired", zap.Int("started", started), zap.Int("stopped", stopped))
	} else {
		r.log.Debug("schedule loops consistent")
	}
	return started, stopped
}

// Run starts the daily job and blocks until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	r.S.Start()
	<-ctx.Done()
	return r.S.Shutdown()
}
