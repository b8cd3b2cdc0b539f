package credential

import (
	"fmt"
	"time"
)

// DefaultTTL is the age after which a cached token is fetched again.
const DefaultTTL = 3600 * time.Second

// State classifies a [Credential] at a point in time.
type State int

const (
	StateUnset State = iota
	StateValid
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateUnset:
		return "unset"
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Credential is a bearer token and the time it was obtained.
// The zero value is unset.
type Credential struct {
	Token     string
	FetchedAt time.Time
}

// State reports whether c is unset, still valid at now, or expired.
// A credential whose age equals ttl is still valid.
func (c Credential) State(now time.Time, ttl time.Duration) State {
	if c.Token == "" {
		return StateUnset
	}
	if now.Sub(c.FetchedAt) > ttl {
		return StateExpired
	}
	return StateValid
}

// AuthError reports a failed token exchange.
type AuthError struct {
	// StatusCode is the token endpoint's HTTP status, or 0 if no response
	// carried a status (transport failure, missing access_token).
	StatusCode int

	// Body is the token endpoint's response body, if any.
	Body string

	Err error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("auth: token endpoint returned %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("auth: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
