package identity

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials indicates the email/password pair was rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRateLimited indicates the backend or the local cooldown refused the attempt.
	ErrRateLimited = errors.New("rate limited")
	// ErrNetwork indicates the backend could not be reached.
	ErrNetwork = errors.New("network error")
	// ErrNotAuthenticated indicates no identity is active.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrEmailTaken indicates sign-up with an already registered email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrProfileNotFound indicates the identity has no backing profile record.
	ErrProfileNotFound = errors.New("profile not found")
)

// RateLimitedError carries the remaining cooldown alongside the
// rate-limited classification. errors.Is(err, ErrRateLimited) matches it.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}
