// Package config loads landingboard's runtime configuration.
//
// Tuning values come from an optional YAML file:
//
//	port: 8080
//	request_timeout: 10s
//	token_ttl: 1h
//	max_body_size: 16MiB
//	intervals:
//	  status: 100ms
//	  capacities: 100ms
//	  stats: 100ms
//	  jobs: 300ms
//
// The platform URL and OIDC credentials come from the environment (or a .env
// file) and are read once at startup by [Config.LoadEnv]:
//
//	api_url, oidc_resource, oidc_secret, oidc_auth_server_url, username, password
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = 8080
	defaultRequestTimeout = 10 * time.Second
	defaultTokenTTL       = 3600 * time.Second
	defaultMaxBodySize    = 16 << 20
)

// Config is the complete runtime configuration.
type Config struct {
	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// RequestTimeout bounds every upstream and token request. Defaults to 10s.
	RequestTimeout Duration `yaml:"request_timeout"`

	// TokenTTL is the age after which the bearer token is fetched again.
	// Defaults to 1h.
	TokenTTL Duration `yaml:"token_ttl"`

	// MaxBodySize caps one upstream response body. Defaults to 16MiB.
	MaxBodySize ByteSize `yaml:"max_body_size"`

	// Intervals are the per-category poll cadences.
	Intervals Intervals `yaml:"intervals"`

	// APIURL is the platform REST API base URL. Environment only.
	APIURL string `yaml:"-"`

	// OIDC holds the password-grant credentials. Environment only.
	OIDC OIDC `yaml:"-"`
}

// Intervals holds one poll interval per snapshot category.
type Intervals struct {
	Status     Duration `yaml:"status"`
	Capacities Duration `yaml:"capacities"`
	Stats      Duration `yaml:"stats"`
	Jobs       Duration `yaml:"jobs"`
}

// OIDC holds the password-grant parameters for the token endpoint.
type OIDC struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Username     string
	Password     string
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// ByteSize is a byte count written as "512KB", "16MiB" or a plain number.
type ByteSize uint64

// UnmarshalYAML implements yaml.Unmarshaler for ByteSize.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := humanize.ParseBytes(s)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", s, err)
	}

	*b = ByteSize(parsed)
	return nil
}

// Bytes returns the size as an int64.
func (b ByteSize) Bytes() int64 {
	return int64(b)
}

// String renders the size in IEC units.
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Default returns a Config with every tuning default applied and no
// environment values.
func Default() *Config {
	return &Config{
		Port:           defaultPort,
		RequestTimeout: Duration(defaultRequestTimeout),
		TokenTTL:       Duration(defaultTokenTTL),
		MaxBodySize:    ByteSize(defaultMaxBodySize),
		Intervals: Intervals{
			Status:     Duration(100 * time.Millisecond),
			Capacities: Duration(100 * time.Millisecond),
			Stats:      Duration(100 * time.Millisecond),
			Jobs:       Duration(300 * time.Millisecond),
		},
	}
}

// Load reads a YAML tuning file. An empty path yields [Default].
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML tuning data on top of [Default].
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.validateTuning(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the whole configuration, including environment values.
func (c *Config) Validate() error {
	if err := c.validateTuning(); err != nil {
		return err
	}

	if err := validateURL("api_url", c.APIURL); err != nil {
		return err
	}
	if err := validateURL("oidc_auth_server_url", c.OIDC.TokenURL); err != nil {
		return err
	}

	missing := []struct {
		name  string
		value string
	}{
		{"oidc_resource", c.OIDC.ClientID},
		{"oidc_secret", c.OIDC.ClientSecret},
		{"username", c.OIDC.Username},
		{"password", c.OIDC.Password},
	}
	for _, m := range missing {
		if m.value == "" {
			return fmt.Errorf("%s is required", m.name)
		}
	}
	return nil
}

func (c *Config) validateTuning() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.RequestTimeout.Duration() <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout.Duration())
	}
	if c.TokenTTL.Duration() <= 0 {
		return fmt.Errorf("token_ttl must be positive, got %s", c.TokenTTL.Duration())
	}
	if c.MaxBodySize.Bytes() <= 0 {
		return fmt.Errorf("max_body_size must be positive, got %d", uint64(c.MaxBodySize))
	}

	intervals := []struct {
		name  string
		value Duration
	}{
		{"intervals.status", c.Intervals.Status},
		{"intervals.capacities", c.Intervals.Capacities},
		{"intervals.stats", c.Intervals.Stats},
		{"intervals.jobs", c.Intervals.Jobs},
	}
	for _, iv := range intervals {
		if iv.value.Duration() <= 0 {
			return fmt.Errorf("%s must be positive, got %s", iv.name, iv.value.Duration())
		}
	}
	return nil
}

func validateURL(name, raw string) error {
	if raw == "" {
		return errors.New(name + " is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid url: %w", name, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s: url scheme must be http or https, got %q", name, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s: url must have a host", name)
	}
	return nil
}
