// Package bridge talks to the robot-bridge daemon that owns the physical
// robot, the cameras, and the dataset writer. The HTTP API drives episodes;
// the WebSocket stream delivers operator pendant events back.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/lechess/lechess-record/internal/session"
)

type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int

	fps      int
	resumeCh chan struct{}
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithFPS(fps int) Option {
	return func(c *Client) { c.fps = fps }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 8},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
		fps:            30,
		resumeCh:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type recordRequest struct {
	Task      string `json:"task"`
	DurationS int    `json:"duration_s"`
	FPS       int    `json:"fps"`
}

type recordResponse struct {
	Outcome string `json:"outcome"`
}

// Record asks the bridge to capture one teleoperation episode labeled with
// task. The call blocks for the whole episode; the request deadline is the
// episode duration plus a grace period, never the default timeout.
func (c *Client) Record(ctx context.Context, task string, duration time.Duration) (session.Outcome, error) {
	req := recordRequest{
		Task:      task,
		DurationS: int(duration / time.Second),
		FPS:       c.fps,
	}
	var resp recordResponse
	deadline := time.Now().Add(duration + 30*time.Second)
	if err := c.doJSON(ctx, "/teleop/record", req, &resp, deadline, false); err != nil {
		return session.OutcomeStop, err
	}
	switch strings.ToLower(strings.TrimSpace(resp.Outcome)) {
	case "committed", "done":
		return session.OutcomeCommitted, nil
	case "rerecord":
		return session.OutcomeRerecord, nil
	case "stop":
		return session.OutcomeStop, nil
	default:
		return session.OutcomeStop, fmt.Errorf("bridge: unknown record outcome %q", resp.Outcome)
	}
}

func (c *Client) CommitEpisode(ctx context.Context) error {
	return c.doJSON(ctx, "/episode/commit", nil, nil, time.Time{}, false)
}

func (c *Client) DiscardEpisode(ctx context.Context) error {
	return c.doJSON(ctx, "/episode/discard", nil, nil, time.Time{}, false)
}

type sayRequest struct {
	Text string `json:"text"`
}

// Say plays a spoken announcement on the rig; best effort with retries.
func (c *Client) Say(ctx context.Context, text string) error {
	return c.doJSON(ctx, "/say", sayRequest{Text: text}, nil, time.Time{}, true)
}

// Observe streams live observations to the viewer until the operator raises
// a resume event or ctx is canceled. Modeled as a single blocking call with
// one exit signal rather than a polled duty cycle.
func (c *Client) Observe(ctx context.Context) error {
	if err := c.doJSON(ctx, "/observe/start", nil, nil, time.Time{}, true); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.doJSON(stopCtx, "/observe/stop", nil, nil, time.Time{}, true)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.resumeCh:
		return nil
	}
}

// NotifyResume releases a pending Observe call. Safe to call at any time;
// a resume with no waiter is remembered once.
func (c *Client) NotifyResume() {
	select {
	case c.resumeCh <- struct{}{}:
	default:
	}
}

func (c *Client) doJSON(ctx context.Context, path string, in, out any, deadline time.Time, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		dl := deadline
		if dl.IsZero() {
			dl = c.computeDeadline(ctx)
		}
		err := c.http.DoDeadline(req, resp, dl)
		if err != nil {
			lastErr = fmt.Errorf("bridge request %s: %w", path, err)
		} else if status := resp.StatusCode(); status < 200 || status >= 300 {
			lastErr = fmt.Errorf("bridge api %s: status=%d body=%s", path, status, truncate(string(resp.Body()), 512))
			if !shouldRetryStatus(status) {
				return lastErr
			}
		} else {
			if out != nil {
				if err := json.Unmarshal(resp.Body(), out); err != nil {
					return fmt.Errorf("decode response: %w", err)
				}
			}
			return nil
		}
		if attempt < attempts {
			if err := sleepWithContext(ctx, backoffDuration(attempt)); err != nil {
				return lastErr
			}
		}
	}
	if lastErr == nil {
		lastErr = errors.New("bridge: unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
