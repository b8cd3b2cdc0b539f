package poller

import "fmt"

// NetworkError means no response body was received: the request could not be
// sent, or the body could not be read in full. StatusCode is set when the
// failure happened after the status line arrived.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ClientError means the upstream answered 4xx on an endpoint configured to
// skip client errors.
type ClientError struct {
	URL        string
	StatusCode int
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("GET %s: client error status %d", e.URL, e.StatusCode)
}

// ParseError means the response body is not valid JSON.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("GET %s: invalid JSON body: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TokenError means no bearer token was available, so no request was made.
type TokenError struct {
	Err error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("bearer token unavailable: %v", e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }
