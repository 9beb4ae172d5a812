package leaderboard

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yourname/paceman-leaderboard-bot/internal/stats"
	"github.com/yourname/paceman-leaderboard-bot/internal/store"
)

type fakeFetcher struct {
	mu      sync.Mutex
	session map[string]stats.SessionStats
	rank     map[string]stats.RankStats
	fail     map[string]error
	rankFail map[string]error
	calls   int
}

func (f *fakeFetcher) FetchSessionStats(ctx context.Context, username string) (stats.SessionStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.fail[username]; ok {
		return stats.SessionStats{}, err
	}
	s, ok := f.session[username]
	if !ok {
		return stats.SessionStats{}, &stats.Error{Kind: stats.ErrNotFound, Op: "session stats", Username: username}
	}
	return s, nil
}

func (f *fakeFetcher) FetchRankStats(ctx context.Context, username string) (stats.RankStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.rankFail[username]; ok {
		return stats.RankStats{}, err
	}
	r, ok := f.rank[username]
	if !ok {
		return stats.RankStats{}, &stats.Error{Kind: stats.ErrNotFound, Op: "rank stats", Username: username}
	}
	return r, nil
}

type sent struct {
	target string
	text   string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (n *fakeNotifier) Send(ctx context.Context, target, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sent{target: target, text: text})
	return nil
}

func session(resets, finishes int, avg string) stats.SessionStats {
	return stats.SessionStats{
		Nether: &stats.Split{Count: resets},
		Finish: &stats.Split{Count: finishes, Avg: avg},
	}
}

func newTestService(t *testing.T, f *fakeFetcher, n *fakeNotifier) (*Service, *store.PlayerStore) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	players := store.NewPlayerStore(st)
	if _, err := players.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return NewService(players, f, n, Config{TopN: 3, Concurrency: 2}), players
}

func TestRegisterKeysByUUIDWhenAvailable(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{
		session: map[string]stats.SessionStats{"doogile": session(3, 1, "9:00"), "casual": session(1, 0, "")},
		rank:    map[string]stats.RankStats{"doogile": {UUID: "abc", Nickname: "Doogile"}},
	}
	svc, players := newTestService(t, f, &fakeNotifier{})

	p, created, err := svc.Register(context.Background(), "doogile")
	if err != nil || !created {
		t.Fatalf("Register: created=%v err=%v", created, err)
	}
	if p.Key != "uuid:abc" || p.Username != "Doogile" || p.ResetCount != 3 || p.AvgFinish != 9*time.Minute {
		t.Fatalf("player = %+v", p)
	}

	p, _, err = svc.Register(context.Background(), "Casual")
	if err == nil {
		t.Fatalf("expected not found for unknown casing, got %+v", p)
	}
	p, _, err = svc.Register(context.Background(), "casual")
	if err != nil || p.Key != "name:casual" || p.HasCompletions() {
		t.Fatalf("casual = %+v, err %v", p, err)
	}

	if _, _, err := svc.Register(context.Background(), "ghost"); !errors.Is(err, stats.ErrNotFound) {
		t.Fatalf("ghost err = %v", err)
	}
	if got := len(players.Snapshot()); got != 2 {
		t.Fatalf("tracked = %d, want 2", got)
	}
}

func TestRefreshKeepsStaleRecordOnFailure(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{session: map[string]stats.SessionStats{
		"a": session(1, 1, "10:00"),
		"b": session(2, 0, ""),
		"c": session(3, 2, "8:00"),
	}}
	svc, players := newTestService(t, f, &fakeNotifier{})
	for _, name := range []string{"a", "b", "c"} {
		if _, _, err := svc.Register(context.Background(), name); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}

	f.mu.Lock()
	f.session["a"] = session(10, 4, "9:00")
	f.session["c"] = session(30, 5, "7:00")
	f.fail = map[string]error{"b": &stats.Error{Kind: stats.ErrTimeout, Op: "session stats", Username: "b"}}
	f.mu.Unlock()

	res := svc.Refresh(context.Background())
	if res.Updated != 2 || len(res.Failed) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if !errors.Is(res.Failed["name:b"], stats.ErrTimeout) {
		t.Fatalf("failure for b = %v", res.Failed["name:b"])
	}

	byName := map[string]store.Player{}
	for _, p := range players.Snapshot() {
		byName[p.Username] = p
	}
	if byName["b"].ResetCount != 2 {
		t.Fatalf("b should keep stale values, got %+v", byName["b"])
	}
	if byName["a"].ResetCount != 10 || byName["c"].FinishCount != 5 || byName["c"].AvgFinish != 7*time.Minute {
		t.Fatalf("refreshed players = %+v %+v", byName["a"], byName["c"])
	}
}

func TestRunCycleDeliversToTarget(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{session: map[string]stats.SessionStats{"a": session(5, 1, "9:59"), "b": session(7, 0, "")}}
	n := &fakeNotifier{}
	svc, _ := newTestService(t, f, n)
	for _, name := range []string{"a", "b"} {
		if _, _, err := svc.Register(context.Background(), name); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}

	if err := svc.RunCycle(context.Background(), "g1", store.Schedule{Hour: 8, Target: "-100123"}); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(n.sent) != 1 || n.sent[0].target != "-100123" {
		t.Fatalf("sent = %+v", n.sent)
	}
	text := n.sent[0].text
	if !strings.Contains(text, "1. b: 7 nether entries") || !strings.Contains(text, "1. a: avg 9:59") {
		t.Fatalf("unexpected report:\n%s", text)
	}
}

func TestRunCycleReportsDeliveryError(t *testing.T) {
	t.Parallel()
	n := &fakeNotifier{err: errors.New("chat not found")}
	svc, _ := newTestService(t, &fakeFetcher{}, n)
	if err := svc.RunCycle(context.Background(), "g1", store.Schedule{Target: "1"}); err == nil {
		t.Fatalf("expected delivery error")
	}
}

func TestRunCycleSkipsDeliveryWhenCancelled(t *testing.T) {
	t.Parallel()
	n := &fakeNotifier{}
	svc, _ := newTestService(t, &fakeFetcher{}, n)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.RunCycle(ctx, "g1", store.Schedule{Target: "1"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(n.sent) != 0 {
		t.Fatalf("cancelled cycle delivered %d messages", len(n.sent))
	}
}

func TestRegisterAgainKeepsKeyWhenRankLookupFails(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{
		session: map[string]stats.SessionStats{"doogile": session(3, 1, "9:00")},
		rank:    map[string]stats.RankStats{"doogile": {UUID: "abc", Nickname: "Doogile"}},
	}
	svc, players := newTestService(t, f, &fakeNotifier{})
	if _, _, err := svc.Register(context.Background(), "doogile"); err != nil {
		t.Fatalf("first Register: %v", err)
	}

	f.mu.Lock()
	f.session["doogile"] = session(8, 2, "8:30")
	f.rankFail = map[string]error{"doogile": &stats.Error{Kind: stats.ErrTimeout, Op: "rank stats", Username: "doogile"}}
	f.mu.Unlock()

	p, created, err := svc.Register(context.Background(), "doogile")
	if err != nil || created {
		t.Fatalf("second Register: created=%v err=%v", created, err)
	}
	if p.Key != "uuid:abc" || p.Username != "Doogile" || p.ResetCount != 8 {
		t.Fatalf("player = %+v", p)
	}
	if got := players.Snapshot(); len(got) != 1 {
		t.Fatalf("tracked %d records for one player: %+v", len(got), got)
	}
}

func TestRegisterReturnsTransientRankError(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{
		session:  map[string]stats.SessionStats{"newcomer": session(1, 0, "")},
		rankFail: map[string]error{"newcomer": &stats.Error{Kind: stats.ErrNetwork, Op: "rank stats", Username: "newcomer"}},
	}
	svc, players := newTestService(t, f, &fakeNotifier{})

	if _, _, err := svc.Register(context.Background(), "newcomer"); !errors.Is(err, stats.ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}
	if got := len(players.Snapshot()); got != 0 {
		t.Fatalf("tracked = %d, want 0", got)
	}
}

func TestCancelledRefreshAndFailedDeliveryLogQuietly(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{session: map[string]stats.SessionStats{"a": session(1, 0, "")}}
	n := &fakeNotifier{err: errors.New("chat not found")}
	svc, _ := newTestService(t, f, n)
	if _, _, err := svc.Register(context.Background(), "a"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	core, logs := observer.New(zapcore.DebugLevel)
	svc.log = zap.New(core)

	if err := svc.RunCycle(context.Background(), "g1", store.Schedule{Target: "1"}); err == nil {
		t.Fatalf("expected delivery error")
	}
	if got := logs.FilterLevelExact(zapcore.ErrorLevel).Len(); got != 0 {
		t.Fatalf("delivery failure logged %d times at error level", got)
	}

	f.mu.Lock()
	f.fail = map[string]error{"a": &stats.Error{Kind: context.Canceled, Op: "session stats", Username: "a", Err: context.Canceled}}
	f.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Refresh(ctx)
	if got := logs.FilterMessage("stats fetch failed, keeping previous values").Len(); got != 0 {
		t.Fatalf("cancelled refresh logged %d fetch failures", got)
	}
}
