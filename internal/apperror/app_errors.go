package apperror

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMalformedRequest   = errors.New("malformed request")
	ErrRateLimited        = errors.New("too many requests")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrIllegalMove        = errors.New("invalid move")
	ErrDownstreamInit     = errors.New("match could not be created, please retry")
	ErrTransport          = errors.New("transport failure")
	ErrAlreadyInitialized = errors.New("match already initialized")
	ErrMatchNotFound      = errors.New("match not found")
	ErrActorStopped       = errors.New("actor stopped")
)

// RateLimitError tells the caller when the current window resets.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (that *RateLimitError) Error() string {
	return fmt.Sprintf("%s, retry in %s", ErrRateLimited, that.RetryAfter.Round(time.Second))
}

func (that *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// RetryAfterSeconds rounds up so a client never retries too early.
func (that *RateLimitError) RetryAfterSeconds() int {
	seconds := int(that.RetryAfter / time.Second)
	if that.RetryAfter%time.Second != 0 {
		seconds++
	}

	return seconds
}
