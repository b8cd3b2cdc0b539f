package credential

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/jpalmerr/landingboard/internal/metrics"
)

const defaultTimeout = 10 * time.Second

// Config holds the password-grant parameters.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string

	// TTL defaults to DefaultTTL.
	TTL time.Duration

	// Timeout bounds a single token request. Defaults to 10s.
	Timeout time.Duration
}

// Manager exchanges the configured credentials for a bearer token.
//
// Manager holds no token itself; callers own the [Credential] and pass it
// back in on every call. It is safe for concurrent use.
type Manager struct {
	oauth      *oauth2.Config
	username   string
	password   string
	ttl        time.Duration
	timeout    time.Duration
	httpClient *http.Client
	now        func() time.Time
	metrics    *metrics.Metrics
}

// Option configures a [Manager].
type Option func(*Manager)

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) {
		if c != nil {
			m.httpClient = c
		}
	}
}

// WithClock overrides the time source used for TTL checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithMetrics records token fetch outcomes in mt.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// NewManager creates a Manager for cfg.
func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		username:   cfg.Username,
		password:   cfg.Password,
		ttl:        cfg.TTL,
		timeout:    cfg.Timeout,
		httpClient: http.DefaultClient,
		now:        time.Now,
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	if m.timeout <= 0 {
		m.timeout = defaultTimeout
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AcquireOrReuse returns current unchanged if it is still valid, without any
// network call. Otherwise it fetches a new token, stamped with the time the
// fetch was initiated.
//
// On failure it returns current unchanged together with an [*AuthError]; a
// stale token is never cleared.
func (m *Manager) AcquireOrReuse(ctx context.Context, current Credential) (Credential, error) {
	now := m.now()
	if current.State(now, m.ttl) == StateValid {
		return current, nil
	}

	token, err := m.fetch(ctx)
	m.metrics.ObserveTokenFetch(err)
	if err != nil {
		return current, err
	}
	return Credential{Token: token, FetchedAt: now}, nil
}

// fetch performs one form-encoded password-grant POST.
func (m *Manager) fetch(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)

	tok, err := m.oauth.PasswordCredentialsToken(ctx, m.username, m.password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			authErr := &AuthError{Body: string(retrieveErr.Body), Err: err}
			if retrieveErr.Response != nil {
				authErr.StatusCode = retrieveErr.Response.StatusCode
			}
			return "", authErr
		}
		// x/oauth2 also rejects 2xx responses without access_token here
		return "", &AuthError{Err: err}
	}
	return tok.AccessToken, nil
}

// Source keeps one [Credential] on behalf of a single consumer.
//
// A Source is owned by exactly one goroutine and is not safe for concurrent use.
type Source struct {
	manager *Manager
	current Credential
	logger  *slog.Logger
}

// NewSource creates a Source that starts unset.
func NewSource(m *Manager, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{manager: m, logger: logger}
}

// Token returns a bearer token that was valid when this call started,
// refreshing it through the manager when needed. On failure the previous
// credential is kept for the next attempt.
func (s *Source) Token(ctx context.Context) (string, error) {
	cred, err := s.manager.AcquireOrReuse(ctx, s.current)
	if err != nil {
		return "", err
	}
	if cred != s.current {
		s.logger.Info("bearer token refreshed", "fetched_at", cred.FetchedAt)
	}
	s.current = cred
	return cred.Token, nil
}
