package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/badgrhq/badgr-server/badgr"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
)

// ErrDeliveryFailed is returned when the mail endpoint rejects a message.
var ErrDeliveryFailed = errors.New("mail: delivery failed")

// DeliveryError carries the relay's HTTP status for a rejected message.
type DeliveryError struct {
	Status int
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: status %d", ErrDeliveryFailed, e.Status)
}

func (e *DeliveryError) Unwrap() error { return ErrDeliveryFailed }

// relayHealthy reports whether err leaves the relay itself in good standing.
// A 4xx rejects one message, not the relay, so it does not count toward tripping.
func relayHealthy(err error) bool {
	if err == nil {
		return true
	}
	var rejected *DeliveryError
	return errors.As(err, &rejected) && rejected.Status < http.StatusInternalServerError
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	Logger badgr.Logger
}

// Send implements badgr.Mailer.
func (m *LogMailer) Send(_ context.Context, msg badgr.Message) error {
	if m.Logger != nil {
		m.Logger.Info("email not delivered (no mail endpoint configured)", "to", msg.To, "subject", msg.Subject)
	}
	return nil
}

// HTTPMailerOptions configures an HTTPMailer.
type HTTPMailerOptions struct {
	Endpoint   string
	From       string
	Timeout    time.Duration
	MaxRetries int
	Logger     badgr.Logger
}

// HTTPMailer posts messages as JSON to a mail relay endpoint.
type HTTPMailer struct {
	endpoint string
	from     string
	client   *retryablehttp.Client
	breaker  *gobreaker.CircuitBreaker
	logger   badgr.Logger
}

type relayPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// NewHTTPMailer creates a mailer with retries and a circuit breaker.
func NewHTTPMailer(opts HTTPMailerOptions) (*HTTPMailer, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("mail endpoint required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	client := retryablehttp.NewClient()
	client.RetryMax = opts.MaxRetries
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = opts.Timeout
	client.Logger = nil

	settings := gobreaker.Settings{
		Name:        "mail-relay",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: relayHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			if opts.Logger != nil {
				opts.Logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			}
		},
	}

	return &HTTPMailer{
		endpoint: opts.Endpoint,
		from:     opts.From,
		client:   client,
		breaker:  gobreaker.NewCircuitBreaker(settings),
		logger:   opts.Logger,
	}, nil
}

// Send implements badgr.Mailer.
func (m *HTTPMailer) Send(ctx context.Context, msg badgr.Message) error {
	body, err := json.Marshal(relayPayload{From: m.from, To: msg.To, Subject: msg.Subject, Text: msg.Body})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	_, err = m.breaker.Execute(func() (interface{}, error) {
		return nil, m.post(ctx, body)
	})
	if err != nil {
		if m.logger != nil {
			m.logger.Error("email delivery failed", "to", msg.To, "error", err)
		}
		return err
	}
	return nil
}

func (m *HTTPMailer) post(ctx context.Context, body []byte) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{Status: resp.StatusCode}
	}
	return nil
}

// QueuedMailer hands messages to a worker pool so callers never block on delivery.
type QueuedMailer struct {
	next   badgr.Mailer
	pool   badgr.WorkerPool
	logger badgr.Logger
}

// NewQueuedMailer wraps next so that Send runs on pool.
func NewQueuedMailer(next badgr.Mailer, pool badgr.WorkerPool, logger badgr.Logger) *QueuedMailer {
	return &QueuedMailer{next: next, pool: pool, logger: logger}
}

// Send enqueues the message; delivery errors are logged.
func (q *QueuedMailer) Send(ctx context.Context, msg badgr.Message) error {
	// Delivery outlives the request that triggered it.
	deliveryCtx := context.WithoutCancel(ctx)
	return q.pool.Submit(func() {
		if err := q.next.Send(deliveryCtx, msg); err != nil && q.logger != nil {
			q.logger.Warn("queued email failed", "to", msg.To, "error", err)
		}
	})
}
