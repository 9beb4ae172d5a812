package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/yourname/paceman-leaderboard-bot/internal/store"
)

var ErrStopped = errors.New("supervisor stopped")

// ScheduleStore is where the supervisor persists schedule changes before
// applying them.
type ScheduleStore interface {
	Upsert(group string, rec store.Schedule) error
	Remove(group string) error
}

// Cycle is the work run each time a group's schedule fires.
type Cycle interface {
	RunCycle(ctx context.Context, group string, sched store.Schedule) error
}

type CycleFunc func(ctx context.Context, group string, sched store.Schedule) error

func (f CycleFunc) RunCycle(ctx context.Context, group string, sched store.Schedule) error {
	return f(ctx, group, sched)
}

type Option func(*Supervisor)

func WithClock(c clockwork.Clock) Option {
	return func(s *Supervisor) { s.clock = c }
}

func WithLocation(loc *time.Location) Option {
	return func(s *Supervisor) { s.loc = loc }
}

// WithStopGrace bounds how long cancelling a group waits for its loop to
// exit, e.g. while a cycle is still fetching.
func WithStopGrace(d time.Duration) Option {
	return func(s *Supervisor) { s.grace = d }
}

// Supervisor owns one loop per subscribed group. It is the only code that
// starts or cancels those loops, and every transition happens under mu
// together with the matching schedule store write.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	store ScheduleStore
	cycle Cycle
	clock clockwork.Clock
	loc   *time.Location
	grace time.Duration
	log   *zap.Logger

	mu    sync.Mutex
	tasks map[string]*task
	wg    sync.WaitGroup
}

type task struct {
	sched  store.Schedule
	cancel context.CancelFunc
	done   chan struct{}
}

func New(parent context.Context, st ScheduleStore, cycle Cycle, opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		store:  st,
		cycle:  cycle,
		clock:  clockwork.NewRealClock(),
		loc:    time.UTC,
		grace:  5 * time.Second,
		log:    zap.L().Named("scheduler"),
		tasks:  map[string]*task{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// StartAll starts a loop for every schedule, replacing any loop already
// running for the same group. The store is not written.
func (s *Supervisor) StartAll(schedules map[string]store.Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return
	}
	for _, group := range sortedGroups(schedules) {
		s.stopLocked(group)
		s.startLocked(group, schedules[group])
	}
	s.log.Info("schedules started", zap.Int("groups", len(s.tasks)))
}

// Reschedule persists rec for group and replaces the group's loop. If the
// write fails the previous loop, if any, keeps running.
func (s *Supervisor) Reschedule(group string, rec store.Schedule) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return ErrStopped
	}
	if err := s.store.Upsert(group, rec); err != nil {
		return err
	}
	s.stopLocked(group)
	s.startLocked(group, rec)
	s.log.Info("group rescheduled", zap.String("group", group),
		zap.Int("hour", rec.Hour), zap.Int("minute", rec.Minute))
	return nil
}

// Cancel removes the group's record and stops its loop. subscribed is false
// if the group had no loop; that is not an error.
func (s *Supervisor) Cancel(group string) (subscribed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, subscribed = s.tasks[group]
	if err := s.store.Remove(group); err != nil {
		return subscribed, err
	}
	s.stopLocked(group)
	if subscribed {
		s.log.Info("group unsubscribed", zap.String("group", group))
	}
	return subscribed, nil
}

// Reconcile makes the running set match records exactly without touching
// the store. It returns how many loops were (re)started and stopped.
func (s *Supervisor) Reconcile(records map[string]store.Schedule) (started, stopped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return 0, 0
	}
	for group := range s.tasks {
		if _, ok := records[group]; !ok {
			s.stopLocked(group)
			stopped++
		}
	}
	for _, group := range sortedGroups(records) {
		rec := records[group]
		if t, ok := s.tasks[group]; ok && t.sched == rec {
			continue
		}
		s.stopLocked(group)
		s.startLocked(group, rec)
		started++
	}
	return started, stopped
}

func (s *Supervisor) Running(group string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[group]
	return ok
}

// Schedules returns the schedule each running loop is bound to.
func (s *Supervisor) Schedules() map[string]store.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]store.Schedule, len(s.tasks))
	for group, t := range s.tasks {
		out[group] = t.sched
	}
	return out
}

// Shutdown cancels every loop and waits up to the stop grace for them.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	s.cancel()
	s.tasks = map[string]*task{}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.grace):
		s.log.Warn("loops still running after shutdown grace", zap.Duration("grace", s.grace))
	}
}

func (s *Supervisor) startLocked(group string, rec store.Schedule) {
	ctx, cancel := context.WithCancel(s.ctx)
	t := &task{sched: rec, cancel: cancel, done: make(chan struct{})}
	s.tasks[group] = t

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(t.done)
		s.run(ctx, group, rec)
	}()
}

func (s *Supervisor) stopLocked(group string) {
	t, ok := s.tasks[group]
	if !ok {
		return
	}
	delete(s.tasks, group)
	t.cancel()

	timer := time.NewTimer(s.grace)
	defer timer.Stop()
	select {
	case <-t.done:
	case <-timer.C:
		// the loop's context is cancelled, so it can neither deliver nor re-arm
		s.log.Warn("loop slow to stop", zap.String("group", group), zap.Duration("grace", s.grace))
	}
}

func sortedGroups(m map[string]store.Schedule) []string {
	out := make([]string, 0, len(m))
	for g := range m {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
