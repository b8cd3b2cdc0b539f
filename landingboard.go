package landingboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/landingboard/internal/aggregator"
	"github.com/jpalmerr/landingboard/internal/credential"
	"github.com/jpalmerr/landingboard/internal/metrics"
	"github.com/jpalmerr/landingboard/internal/poller"
	"github.com/jpalmerr/landingboard/internal/server"
	"github.com/jpalmerr/landingboard/internal/store"
)

const (
	defaultPort           = 8080
	defaultRequestTimeout = 10 * time.Second
)

// Category identifies one field of the snapshot.
type Category = store.Category

const (
	CategoryStatus     = store.CategoryStatus
	CategoryCapacities = store.CategoryCapacities
	CategoryStats      = store.CategoryStats
	CategoryJobs       = store.CategoryJobs
)

// Snapshot is a consistent copy of every category, stamped with the read time.
type Snapshot = store.Snapshot

// Update describes one snapshot write, as passed to [WithUpdateCallback].
type Update struct {
	Category  Category
	Document  json.RawMessage
	AppliedAt time.Time
}

// Board polls the platform and serves the aggregated snapshot.
//
// A Board is started once; the caller controls its lifetime through the
// context passed to [Board.Start].
type Board struct {
	apiURL          string
	credentials     Credentials
	intervals       map[Category]time.Duration
	requestTimeout  time.Duration
	tokenTTL        time.Duration
	maxBodySize     int64
	addr            string
	logger          *slog.Logger
	registry        *prometheus.Registry
	updateCallbacks []func(Update)

	store *store.Store

	mu       sync.Mutex
	httpAddr net.Addr
}

// New creates a [Board]. [WithAPIURL] and [WithCredentials] are required;
// everything else has defaults.
func New(opts ...Option) (*Board, error) {
	cfg := &boardConfig{
		intervals:      make(map[Category]time.Duration, len(store.Categories)),
		requestTimeout: defaultRequestTimeout,
		tokenTTL:       credential.DefaultTTL,
		maxBodySize:    poller.DefaultMaxBodySize,
		addr:           fmt.Sprintf(":%d", defaultPort),
	}
	for c, d := range poller.DefaultIntervals {
		cfg.intervals[c] = d
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.apiURL == "" {
		return nil, errors.New("api url is required")
	}
	if cfg.credentials.TokenURL == "" {
		return nil, errors.New("credentials are required")
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	return &Board{
		apiURL:          cfg.apiURL,
		credentials:     cfg.credentials,
		intervals:       cfg.intervals,
		requestTimeout:  cfg.requestTimeout,
		tokenTTL:        cfg.tokenTTL,
		maxBodySize:     cfg.maxBodySize,
		addr:            cfg.addr,
		logger:          logger,
		registry:        registry,
		updateCallbacks: cfg.updateCallbacks,
		store:           store.New(),
	}, nil
}

// Start polls all categories and serves the snapshot until ctx is cancelled.
//
// Start blocks. It returns nil after a clean shutdown, an error if the HTTP
// server cannot bind, and an error wrapping [store.ErrLockFailure] if the
// snapshot becomes unwritable, in which case every task is stopped. A Board
// can only be started once.
func (b *Board) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	writer, err := b.store.Writer()
	if err != nil {
		return fmt.Errorf("board already started: %w", err)
	}

	b.logger.Info("landingboard starting", "api_url", b.apiURL, "addr", b.addr)

	m := metrics.New(b.registry)
	client := poller.NewClient(poller.WithMaxBodySize(b.maxBodySize))
	defer client.Close()

	inbox := aggregator.NewMailbox()
	agg := aggregator.New(inbox, writer, b.logger, m)
	if len(b.updateCallbacks) > 0 {
		agg.OnApply(b.notifyUpdate)
	}

	pollers, err := b.buildPollers(client, inbox, m)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	httpServer := server.New(b.store, b.addr, b.registry, b.logger)
	if err := httpServer.Start(gctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	b.mu.Lock()
	b.httpAddr = httpServer.Addr()
	b.mu.Unlock()

	g.Go(func() error {
		<-httpServer.Done()
		return nil
	})
	g.Go(func() error {
		return agg.Run(gctx)
	})
	for _, p := range pollers {
		g.Go(func() error {
			return p.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		inbox.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		b.logger.Error("landingboard stopped", "error", err)
		return err
	}
	b.logger.Info("landingboard stopped")
	return nil
}

// Snapshot returns the current snapshot, stamped with the time of this call.
func (b *Board) Snapshot() Snapshot {
	return b.store.Read()
}

// Addr returns the HTTP server's bound address, or nil before [Board.Start]
// has bound it.
func (b *Board) Addr() net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.httpAddr
}

// Interval returns the poll interval configured for c.
func (b *Board) Interval(c Category) time.Duration {
	return b.intervals[c]
}

// buildPollers creates one poller per category. Only the jobs poller gets a
// credential source, and it is the sole owner of that credential. It is also
// the only poller that drops 4xx responses; the others install any JSON body.
func (b *Board) buildPollers(client *poller.Client, sink poller.Sink, m *metrics.Metrics) ([]*poller.Poller, error) {
	manager := credential.NewManager(credential.Config{
		TokenURL:     b.credentials.TokenURL,
		ClientID:     b.credentials.ClientID,
		ClientSecret: b.credentials.ClientSecret,
		Username:     b.credentials.Username,
		Password:     b.credentials.Password,
		TTL:          b.tokenTTL,
		Timeout:      b.requestTimeout,
	}, credential.WithHTTPClient(client.HTTPClient()), credential.WithMetrics(m))

	pollers := make([]*poller.Poller, 0, len(store.Categories))
	for _, c := range store.Categories {
		cfg := poller.Config{
			Category: c,
			URL:      poller.EndpointURL(b.apiURL, c),
			Interval: b.Interval(c),
			Timeout:  b.requestTimeout,
		}
		if poller.RequiresAuth(c) {
			cfg.Auth = credential.NewSource(manager, b.logger.With("category", c.String()))
			cfg.SkipClientErrors = true
		}

		p, err := poller.New(cfg, client, sink, b.logger, m)
		if err != nil {
			return nil, fmt.Errorf("%s poller: %w", c, err)
		}
		pollers = append(pollers, p)
	}
	return pollers, nil
}

// notifyUpdate invokes the update callbacks for a completed write.
func (b *Board) notifyUpdate(u store.Update, at time.Time) {
	ev := Update{
		Category:  u.Category,
		Document:  append(json.RawMessage(nil), u.Document...),
		AppliedAt: at,
	}
	for _, cb := range b.updateCallbacks {
		invokeCallbackSafe(cb, ev, b.logger)
	}
}

// invokeCallbackSafe calls an update callback with panic recovery.
func invokeCallbackSafe(cb func(Update), ev Update, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("update callback panicked",
				"panic", r,
				"category", ev.Category.String(),
			)
		}
	}()
	cb(ev)
}
