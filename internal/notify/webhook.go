package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-chess-rooms/internal/domain"
	"github.com/park285/cheese-chess-rooms/internal/msgcat"
	"github.com/valyala/fasthttp"
)

// HeaderProvider supplies per-request headers (auth tokens).
type HeaderProvider func() map[string]string

// Webhook posts finished-game summaries to a single URL.
type Webhook struct {
	url     string
	http    *fasthttp.Client
	headers HeaderProvider
	catalog *msgcat.Catalog

	timeout  time.Duration
	retryMax int
	backoff  time.Duration
}

type Option func(*Webhook)

func WithTimeout(d time.Duration) Option { return func(w *Webhook) { w.timeout = d } }

func WithRetry(max int) Option { return func(w *Webhook) { w.retryMax = max } }

func WithBackoff(base time.Duration) Option { return func(w *Webhook) { w.backoff = base } }

func WithHeaderProvider(h HeaderProvider) Option { return func(w *Webhook) { w.headers = h } }

func WithCatalog(c *msgcat.Catalog) Option { return func(w *Webhook) { w.catalog = c } }

func NewWebhook(url string, opts ...Option) *Webhook {
	w := &Webhook{
		url:      strings.TrimSpace(url),
		http:     &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		timeout:  5 * time.Second,
		retryMax: 3,
		backoff:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// GameFinishedPayload is the webhook body.
type GameFinishedPayload struct {
	Event       string    `json:"event"`
	GameID      string    `json:"gameId"`
	RoomID      string    `json:"roomId"`
	White       string    `json:"white"`
	Black       string    `json:"black"`
	Outcome     string    `json:"outcome"`
	Reason      string    `json:"reason"`
	Winner      string    `json:"winner,omitempty"`
	Moves       string    `json:"moves"`
	ECO         string    `json:"eco,omitempty"`
	Opening     string    `json:"opening,omitempty"`
	PGN         string    `json:"pgn"`
	Summary     string    `json:"summary,omitempty"`
	TimeControl string    `json:"timeControl,omitempty"`
	FinishedAt  time.Time `json:"finishedAt"`
}

func (w *Webhook) GameFinished(ctx context.Context, rec *domain.GameRecord) error {
	if rec == nil {
		return nil
	}
	p := GameFinishedPayload{
		Event:       "game_finished",
		GameID:      rec.ID,
		RoomID:      rec.RoomID,
		White:       rec.White.Name,
		Black:       rec.Black.Name,
		Outcome:     rec.Outcome,
		Reason:      rec.Reason,
		Winner:      rec.Winner,
		Moves:       rec.Moves(),
		ECO:         rec.ECOCode,
		Opening:     rec.ECOName,
		PGN:         rec.PGN,
		TimeControl: rec.TimeControl,
		FinishedAt:  rec.FinishedAt,
	}
	// a broken summary template still delivers the event, without the summary
	var renderErr error
	if w.catalog != nil {
		summary, err := w.catalog.Render("webhook.finished", map[string]string{
			"White": rec.White.Name, "Black": rec.Black.Name,
			"Outcome": rec.Outcome, "Reason": rec.Reason, "RoomID": rec.RoomID,
		})
		if err != nil {
			renderErr = fmt.Errorf("render webhook summary: %w", err)
		} else {
			p.Summary = summary
		}
	}
	return errors.Join(renderErr, w.postJSON(ctx, p))
}

func (w *Webhook) postJSON(ctx context.Context, in any) error {
	if w.url == "" {
		return errors.New("webhook url is empty")
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(w.url)
	req.Header.SetContentType("application/json")
	if w.headers != nil {
		for k, v := range w.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}
	req.SetBody(payload)

	attempts := w.retryMax
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := w.http.DoDeadline(req, resp, w.deadline(ctx))
		switch {
		case err != nil:
			lastErr = fmt.Errorf("webhook request failed: %w", err)
		case resp.StatusCode() < 200 || resp.StatusCode() >= 300:
			status := resp.StatusCode()
			lastErr = fmt.Errorf("webhook error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
			if !shouldRetryStatus(status) {
				return lastErr
			}
		default:
			return nil
		}
		if attempt == attempts {
			break
		}
		if err := sleepWithContext(ctx, w.backoffFor(attempt)); err != nil {
			return lastErr
		}
	}
	return lastErr
}

func (w *Webhook) deadline(ctx context.Context) time.Time {
	own := time.Now().Add(w.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}

func (w *Webhook) backoffFor(attempt int) time.Duration {
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * w.backoff
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

func shouldRetryStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
