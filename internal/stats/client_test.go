package stats

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yourname/paceman-leaderboard-bot/internal/store"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{SessionURL: srv.URL, RankedURL: srv.URL, Timeout: 200 * time.Millisecond, RatePerSec: 100})
}

func TestFetchSessionStats(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/getSessionStats/" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("name") != "doogile" || q.Get("hours") != "24" || q.Get("hoursBetween") != "2" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"nether":{"count":12,"avg":"2:10"},"first_portal":{"count":3,"avg":"6:40"},"finish":{"count":2,"avg":"9:32"}}`))
	})

	got, err := c.FetchSessionStats(context.Background(), "doogile")
	if err != nil {
		t.Fatalf("FetchSessionStats: %v", err)
	}
	if got.ResetCount() != 12 || got.FinishCount() != 2 {
		t.Fatalf("counts = %d, %d", got.ResetCount(), got.FinishCount())
	}
	if got.AvgFinish() != 9*time.Minute+32*time.Second {
		t.Fatalf("AvgFinish = %v", got.AvgFinish())
	}

	var p store.Player
	got.Apply(&p)
	if p.ResetCount != 12 || p.FinishCount != 2 || !p.HasCompletions() {
		t.Fatalf("Apply = %+v", p)
	}
}

func TestSessionStatsNoCompletions(t *testing.T) {
	t.Parallel()
	s := SessionStats{Nether: &Split{Count: 4}, Finish: &Split{Count: 0, Avg: "0:00"}}
	if s.AvgFinish() != store.NoCompletions {
		t.Fatalf("AvgFinish = %v, want NoCompletions", s.AvgFinish())
	}
	s = SessionStats{Nether: &Split{Count: 4}}
	if s.AvgFinish() != store.NoCompletions || s.FinishCount() != 0 {
		t.Fatalf("missing finish split should be NoCompletions")
	}
}

func TestFetchErrorKinds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    error
	}{
		{name: "not found status", kind: ErrNotFound, handler: func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusNotFound)
		}},
		{name: "empty session", kind: ErrNotFound, handler: func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}},
		{name: "server error", kind: ErrNetwork, handler: func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		}},
		{name: "bad json", kind: ErrMalformedResponse, handler: func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"nether":`))
		}},
		{name: "slow", kind: ErrTimeout, handler: func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, tt.handler)
			_, err := c.FetchSessionStats(context.Background(), "someone")
			if !errors.Is(err, tt.kind) {
				t.Fatalf("err = %v, want kind %v", err, tt.kind)
			}
			var se *Error
			if !errors.As(err, &se) || se.Username != "someone" {
				t.Fatalf("err %v is not a *Error for the player", err)
			}
			if Transient(err) == (tt.kind == ErrNotFound) {
				t.Fatalf("Transient(%v) = %v", err, Transient(err))
			}
		})
	}
}

func TestFetchRankStats(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/doogile":
			_, _ = w.Write([]byte(`{"status":"success","data":{"uuid":"abc123","nickname":"Doogile","eloRate":1820,"eloRank":14,"statistics":{"season":{"bestTime":{"ranked":512345}}}}}`))
		case "/users/casual":
			_, _ = w.Write([]byte(`{"status":"success","data":{"uuid":"def456","nickname":"casual","eloRate":null,"eloRank":null,"statistics":{"season":{"bestTime":{"ranked":null}}}}}`))
		default:
			_, _ = w.Write([]byte(`{"status":"error","data":"User is not exists"}`))
		}
	})

	got, err := c.FetchRankStats(context.Background(), "doogile")
	if err != nil {
		t.Fatalf("FetchRankStats: %v", err)
	}
	if got.UUID != "abc123" || got.Nickname != "Doogile" || *got.EloRate != 1820 || *got.EloRank != 14 {
		t.Fatalf("got %+v", got)
	}
	if got.SeasonBest == nil || *got.SeasonBest != 512345*time.Millisecond {
		t.Fatalf("SeasonBest = %v", got.SeasonBest)
	}

	casual, err := c.FetchRankStats(context.Background(), "casual")
	if err != nil || casual.SeasonBest != nil || casual.EloRate != nil {
		t.Fatalf("casual = %+v, err %v", casual, err)
	}

	if _, err := c.FetchRankStats(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ghost err = %v", err)
	}
}

func TestFetchCancelledIsNotNetworkError(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"nether":{"count":1}}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchSessionStats(ctx, "someone")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrNetwork) || Transient(err) {
		t.Fatalf("cancellation reported as transient failure: %v", err)
	}
}
