package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"autoshutdown/internal/types"
)

// RetryPolicy configures webhook retries.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy keeps the total retry time well inside one minute, the
// gap between the two most urgent warnings that still matters.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    250 * time.Millisecond,
		MaxWait:    2 * time.Second,
	}
}

// WebhookOption configures a WebhookSink.
type WebhookOption func(*WebhookSink)

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p RetryPolicy) WebhookOption {
	return func(s *WebhookSink) { s.retry = p }
}

// WithSleepFunc overrides the wait between retries. Intended for tests.
func WithSleepFunc(fn func(context.Context, time.Duration) error) WebhookOption {
	return func(s *WebhookSink) { s.sleep = fn }
}

// WithBreaker replaces the circuit breaker, e.g. to share one across sinks.
func WithBreaker(cb *gobreaker.CircuitBreaker[*http.Response]) WebhookOption {
	return func(s *WebhookSink) { s.breaker = cb }
}

// WebhookSink posts warnings to a chat webhook (Slack, Discord, or any
// endpoint accepting JSON). Calls go through a circuit breaker; 429 and 5xx
// responses are retried with jittered exponential backoff honouring
// Retry-After.
type WebhookSink struct {
	url     string
	server  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	retry   RetryPolicy
	sleep   func(context.Context, time.Duration) error
	logger  *slog.Logger
}

// NewWebhookSink creates a WebhookSink posting to rawURL.
func NewWebhookSink(rawURL, server string, client *http.Client, logger *slog.Logger, opts ...WebhookOption) (*WebhookSink, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("webhook sink: invalid url %q", rawURL)
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultDeliveryTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &WebhookSink{
		url:    rawURL,
		server: server,
		client: client,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        "webhook",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		}),
		retry:  DefaultRetryPolicy(),
		sleep:  sleepCtx,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *WebhookSink) Name() string { return "webhook" }

// Deliver formats ev for the target platform and posts it.
func (s *WebhookSink) Deliver(ctx context.Context, ev types.NotificationEvent) error {
	body, err := s.format(ev)
	if err != nil {
		return err
	}

	var lastStatus int
	var lastErr error

	attempts := 1 + s.retry.MaxRetries
	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := s.breaker.Execute(func() (*http.Response, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("User-Agent", "autoshutdown")
			if reqID := types.GetRequestID(ctx); reqID != "" {
				req.Header.Set("X-Request-ID", reqID)
			}

			r, err := s.client.Do(req)
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("webhook returned %d", r.StatusCode)
			}
			return r, nil
		})

		if err == nil {
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			if resp.StatusCode >= 400 {
				return types.NewAppError(types.ErrCodeUpstreamUnavailable,
					fmt.Sprintf("webhook rejected payload with %d", resp.StatusCode), nil)
			}
			return nil
		}

		lastErr = err
		s.logger.Debug("webhook attempt failed", "attempt", attempt+1, "error", err)
		wait := s.backoff(attempt, resp)
		if resp != nil {
			lastStatus = resp.StatusCode
			resp.Body.Close()
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if attempt < attempts-1 {
			if err := s.sleep(ctx, wait); err != nil {
				lastErr = err
				break
			}
		}
	}

	return s.mapError(lastStatus, lastErr)
}

// backoff prefers Retry-After (seconds) and otherwise uses full jitter in
// [MinWait, min(MaxWait, MinWait*2^attempt)].
func (s *WebhookSink) backoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			return min(time.Duration(secs)*time.Second, s.retry.MaxWait)
		}
	}

	base := min(float64(s.retry.MinWait)*math.Pow(2, float64(attempt)), float64(s.retry.MaxWait))
	lo := float64(s.retry.MinWait)
	if base <= lo {
		return s.retry.MinWait
	}
	return time.Duration(lo + rand.Float64()*(base-lo))
}

// mapError translates the last failure into an AppError. status is zero when
// no response was received.
func (s *WebhookSink) mapError(status int, err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "circuit breaker is open; webhook unavailable", err)
	case status == http.StatusTooManyRequests:
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "webhook rate limit exceeded", err)
	case status >= 500:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("webhook returned %d after retries", status), err)
	default:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "webhook request failed", err)
	}
}

// --- Payloads ---

// SlackPayload is a minimal Slack incoming-webhook message.
type SlackPayload struct {
	Text   string       `json:"text"`
	Blocks []SlackBlock `json:"blocks"`
}

// SlackBlock is a single Block Kit block.
type SlackBlock struct {
	Type string    `json:"type"`
	Text SlackText `json:"text"`
}

// SlackText is a Block Kit text object.
type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// DiscordPayload is a Discord webhook message.
type DiscordPayload struct {
	Content string `json:"content"`
	TTS     bool   `json:"tts"`
}

// GenericPayload is posted to endpoints of unknown type.
type GenericPayload struct {
	Server string                  `json:"server"`
	Text   string                  `json:"text"`
	Event  types.NotificationEvent `json:"event"`
}

func (s *WebhookSink) format(ev types.NotificationEvent) ([]byte, error) {
	text := fmt.Sprintf("[%s] %s", s.server, ev.Message)

	var payload any
	switch host := hostOf(s.url); {
	case strings.HasSuffix(host, "slack.com"):
		mrkdwn := text
		if ev.Bold {
			mrkdwn = "*" + text + "*"
		}
		payload = SlackPayload{
			Text: text,
			Blocks: []SlackBlock{
				{Type: "section", Text: SlackText{Type: "mrkdwn", Text: mrkdwn}},
			},
		}
	case strings.HasSuffix(host, "discord.com"), strings.HasSuffix(host, "discordapp.com"):
		content := text
		if ev.Bold {
			content = "**" + text + "**"
		}
		payload = DiscordPayload{Content: content, TTS: ev.Sound && ev.Severity == types.SeverityUrgent}
	default:
		payload = GenericPayload{Server: s.server, Text: text, Event: ev}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("webhook sink: failed to marshal payload: %w", err)
	}
	return body, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
