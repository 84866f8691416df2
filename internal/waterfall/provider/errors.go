package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/fetcher"
	"github.com/sells-group/leads-cli/internal/resilience"
)

// Kind classifies a provider failure.
type Kind string

const (
	KindTimeout      Kind = "timeout"
	KindRateLimited  Kind = "rate_limited"
	KindParseFailure Kind = "parse_failure"
	KindNoMatch      Kind = "no_match"
	KindUnavailable  Kind = "unavailable"
)

var (
	// ErrNoMatch means the provider answered but did not know the lead.
	ErrNoMatch = eris.New("provider: no match")
	// ErrMalformed means the provider answered with something unreadable.
	ErrMalformed = eris.New("provider: malformed response")
)

// Error is a classified, non-fatal provider failure.
type Error struct {
	Provider string
	Kind     Kind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Classify maps err to a provider Error. An err that already is an Error is
// returned as is.
func Classify(providerName string, err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return &Error{Provider: providerName, Kind: kindOf(err), Err: err}
}

func kindOf(err error) Kind {
	if errors.Is(err, ErrNoMatch) {
		return KindNoMatch
	}
	if errors.Is(err, ErrMalformed) {
		return KindParseFailure
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return KindUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}

	var se *fetcher.StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusTooManyRequests:
			return KindRateLimited
		case http.StatusNotFound:
			return KindNoMatch
		}
		return KindUnavailable
	}

	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	if errors.As(err, &syn) || errors.As(err, &typ) {
		return KindParseFailure
	}
	return KindUnavailable
}

// TripsBreaker reports whether err should count toward opening the
// provider's circuit breaker. Misses and unreadable answers do not; the
// provider is up.
func TripsBreaker(err error) bool {
	if err == nil {
		return false
	}
	switch Classify("", err).Kind {
	case KindNoMatch, KindParseFailure:
		return false
	}
	return true
}
