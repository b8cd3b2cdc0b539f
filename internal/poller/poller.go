package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/jpalmerr/landingboard/internal/metrics"
	"github.com/jpalmerr/landingboard/internal/store"
)

const defaultTimeout = 10 * time.Second

// TokenSource supplies a bearer token before each authenticated request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Sink receives successful poll results. Send must not block.
type Sink interface {
	Send(u store.Update) bool
}

// Config describes one poller.
type Config struct {
	Category store.Category
	URL      string
	Interval time.Duration

	// Timeout bounds a single request. Defaults to 10s.
	Timeout time.Duration

	// Auth is nil for unauthenticated endpoints.
	Auth TokenSource

	// SkipClientErrors drops 4xx responses instead of installing their body.
	// Any other status with a JSON body is forwarded.
	SkipClientErrors bool
}

// Poller repeatedly fetches one endpoint and forwards its parsed body.
type Poller struct {
	category store.Category
	url      string
	interval time.Duration
	timeout  time.Duration
	auth     TokenSource
	skip4xx  bool
	client   *Client
	sink     Sink
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New creates a Poller. m may be nil.
func New(cfg Config, client *Client, sink Sink, logger *slog.Logger, m *metrics.Metrics) (*Poller, error) {
	if !cfg.Category.Valid() {
		return nil, fmt.Errorf("unknown category %q", cfg.Category)
	}
	if cfg.URL == "" {
		return nil, errors.New("url is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if client == nil {
		client = NewClient()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		category: cfg.Category,
		url:      cfg.URL,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		auth:     cfg.Auth,
		skip4xx:  cfg.SkipClientErrors,
		client:   client,
		sink:     sink,
		logger:   logger.With("category", cfg.Category.String()),
		metrics:  m,
	}, nil
}

// Run sleeps for the interval, polls once, and repeats until ctx is done.
// Every poll failure is logged and absorbed. Run always returns nil.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "url", p.url, "interval", p.interval.String())
	defer p.logger.Info("poller stopped")

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		p.pollAndSend(ctx)
		timer.Reset(p.interval)
	}
}

// Poll performs a single iteration without sending the result.
func (p *Poller) Poll(ctx context.Context) (store.Update, error) {
	headers := map[string]string{"Accept": "application/json"}
	if p.auth != nil {
		token, err := p.auth.Token(ctx)
		if err != nil {
			return store.Update{}, &TokenError{Err: err}
		}
		headers["Authorization"] = "Bearer " + token
	}

	resp := p.client.Get(ctx, p.url, headers, p.timeout)
	if resp.Error != nil {
		outcome := metrics.OutcomeNetworkError
		if errors.Is(resp.Error, ErrBodyTooLarge) {
			outcome = metrics.OutcomeBodyTooLarge
		}
		p.metrics.ObservePoll(p.category.String(), outcome, resp.Latency)
		return store.Update{}, &NetworkError{URL: p.url, StatusCode: resp.StatusCode, Err: resp.Error}
	}
	if p.skip4xx && resp.StatusCode >= 400 && resp.StatusCode < 500 {
		p.metrics.ObservePoll(p.category.String(), metrics.OutcomeClientError, resp.Latency)
		return store.Update{}, &ClientError{URL: p.url, StatusCode: resp.StatusCode}
	}

	doc, err := store.Compact(resp.Body)
	if err != nil {
		p.metrics.ObservePoll(p.category.String(), metrics.OutcomeParseError, resp.Latency)
		return store.Update{}, &ParseError{URL: p.url, Err: err}
	}

	p.metrics.ObservePoll(p.category.String(), metrics.OutcomeSuccess, resp.Latency)
	p.logger.Debug("poll completed",
		"status", resp.StatusCode,
		"latency_ms", resp.Latency.Milliseconds(),
		"size", humanize.Bytes(uint64(len(resp.Body))),
	)
	return store.Update{Category: p.category, Document: doc}, nil
}

// pollAndSend runs one iteration with panic recovery. A panic is logged with
// a correlation ID and the loop carries on at the next tick.
func (p *Poller) pollAndSend(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.metrics.ObservePoll(p.category.String(), metrics.OutcomePanic, 0)
			p.logger.Error("poll panic",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()

	u, err := p.Poll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		var tokenErr *TokenError
		if errors.As(err, &tokenErr) {
			p.metrics.ObservePoll(p.category.String(), metrics.OutcomeAuthError, 0)
		}
		p.logger.Warn("poll failed", "url", p.url, "error", err.Error())
		return
	}

	if !p.sink.Send(u) {
		p.logger.Debug("update dropped, sink closed")
	}
}
