package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultSessionURL = "https://paceman.gg/stats/api/"
	DefaultRankedURL  = "https://api.mcsrranked.com/"

	maxBody = 1 << 20
)

type Config struct {
	SessionURL string
	RankedURL  string
	Timeout    time.Duration
	// RatePerSec bounds outgoing requests across all callers.
	RatePerSec int
}

// Client fetches player statistics. It keeps no per-player state; callers
// decide whether and when to retry.
type Client struct {
	httpClient *http.Client
	sessionURL string
	rankedURL  string
	limiter    *rate.Limiter
}

func New(cfg Config) *Client {
	if cfg.SessionURL == "" {
		cfg.SessionURL = DefaultSessionURL
	}
	if cfg.RankedURL == "" {
		cfg.RankedURL = DefaultRankedURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 5
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		sessionURL: withSlash(cfg.SessionURL),
		rankedURL:  withSlash(cfg.RankedURL),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

// FetchSessionStats returns the last 24h of paceman.gg runs for username.
func (c *Client) FetchSessionStats(ctx context.Context, username string) (SessionStats, error) {
	q := url.Values{}
	q.Set("name", username)
	q.Set("hours", "24")
	q.Set("hoursBetween", "2")
	u := c.sessionURL + "getSessionStats/?" + q.Encode()

	var out SessionStats
	if err := c.getJSON(ctx, "session stats", username, u, &out); err != nil {
		return SessionStats{}, err
	}
	if out.Nether == nil {
		return SessionStats{}, &Error{Kind: ErrNotFound, Op: "session stats", Username: username}
	}
	return out, nil
}

// FetchRankStats returns the mcsrranked profile for username.
func (c *Client) FetchRankStats(ctx context.Context, username string) (RankStats, error) {
	u := c.rankedURL + "users/" + url.PathEscape(username)

	var resp rankResponse
	if err := c.getJSON(ctx, "rank stats", username, u, &resp); err != nil {
		return RankStats{}, err
	}
	// unknown players come back as {"status":"error","data":"<message>"}
	if resp.Status != "success" {
		return RankStats{}, &Error{Kind: ErrNotFound, Op: "rank stats", Username: username}
	}
	var prof rankProfile
	if err := json.Unmarshal(resp.Data, &prof); err != nil {
		return RankStats{}, &Error{Kind: ErrMalformedResponse, Op: "rank stats", Username: username, Err: err}
	}
	out := RankStats{
		UUID:     prof.UUID,
		Nickname: prof.Nickname,
		EloRate:  prof.EloRate,
		EloRank:  prof.EloRank,
	}
	if ms := prof.Statistics.Season.BestTime.Ranked; ms != nil {
		d := time.Duration(*ms) * time.Millisecond
		out.SeasonBest = &d
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, op, username, u string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &Error{Kind: classify(err), Op: op, Username: username, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &Error{Kind: ErrNetwork, Op: op, Username: username, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "paceman-leaderboard-bot")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: classify(err), Op: op, Username: username, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		return &Error{Kind: ErrNotFound, Op: op, Username: username, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &Error{Kind: ErrNetwork, Op: op, Username: username, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return &Error{Kind: classify(err), Op: op, Username: username, Err: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: ErrMalformedResponse, Op: op, Username: username, Err: err}
	}
	return nil
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrTimeout
	}
	return ErrNetwork
}

func withSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
