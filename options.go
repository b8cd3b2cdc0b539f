package landingboard

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// boardConfig holds mutable state during Board construction.
type boardConfig struct {
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
}

// Credentials are the OIDC password-grant parameters used for the jobs endpoint.
type Credentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

// Option configures a [Board] during construction.
//
// Options return an error if validation fails.
type Option func(*boardConfig) error

// WithAPIURL sets the platform REST API base URL. Required.
func WithAPIURL(raw string) Option {
	return func(cfg *boardConfig) error {
		if err := validateHTTPURL(raw); err != nil {
			return fmt.Errorf("api url: %w", err)
		}
		cfg.apiURL = raw
		return nil
	}
}

// WithCredentials sets the password-grant credentials. Required.
func WithCredentials(c Credentials) Option {
	return func(cfg *boardConfig) error {
		if err := validateHTTPURL(c.TokenURL); err != nil {
			return fmt.Errorf("token url: %w", err)
		}
		if c.ClientID == "" {
			return errors.New("client id is required")
		}
		if c.Username == "" {
			return errors.New("username is required")
		}
		cfg.credentials = c
		return nil
	}
}

// WithInterval overrides the poll interval of one category.
//
// Defaults: 100ms for status, capacities and stats; 300ms for jobs.
func WithInterval(c Category, d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if !c.Valid() {
			return fmt.Errorf("unknown category %q", string(c))
		}
		if d <= 0 {
			return fmt.Errorf("%s interval must be positive", c)
		}
		cfg.intervals[c] = d
		return nil
	}
}

// WithRequestTimeout bounds every upstream and token request. Defaults to 10s.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithTokenTTL sets the age after which the bearer token is fetched again.
// Defaults to one hour.
func WithTokenTTL(d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d <= 0 {
			return errors.New("token ttl must be positive")
		}
		cfg.tokenTTL = d
		return nil
	}
}

// WithMaxBodySize sets the largest upstream response body accepted, in
// bytes. Larger responses are skipped and logged. Defaults to 16 MiB.
func WithMaxBodySize(n int64) Option {
	return func(cfg *boardConfig) error {
		if n <= 0 {
			return errors.New("max body size must be positive")
		}
		cfg.maxBodySize = n
		return nil
	}
}

// WithPort sets the HTTP port, listening on all interfaces. Defaults to 8080.
func WithPort(port int) Option {
	return func(cfg *boardConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.addr = fmt.Sprintf(":%d", port)
		return nil
	}
}

// WithAddr sets the HTTP listen address directly, for example
// "127.0.0.1:0" to bind an ephemeral port.
func WithAddr(addr string) Option {
	return func(cfg *boardConfig) error {
		if addr == "" {
			return errors.New("addr cannot be empty")
		}
		cfg.addr = addr
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default] is used.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *boardConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithRegistry registers the board's metrics on reg and serves reg at
// /metrics. By default a private registry is used.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(cfg *boardConfig) error {
		if reg == nil {
			return errors.New("registry cannot be nil")
		}
		cfg.registry = reg
		return nil
	}
}

// WithUpdateCallback registers a function called after every snapshot write.
//
// Callbacks run synchronously on the aggregator goroutine, in registration
// order, so they must not block. Panics are recovered and logged. Nil
// callbacks are ignored.
func WithUpdateCallback(cb func(Update)) Option {
	return func(cfg *boardConfig) error {
		if cb == nil {
			return nil
		}
		cfg.updateCallbacks = append(cfg.updateCallbacks, cb)
		return nil
	}
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url must have a host")
	}
	return nil
}
