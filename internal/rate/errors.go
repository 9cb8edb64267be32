package rate

import "errors"

var (
	// ErrRateLimited is returned once a subject has exhausted its attempts in the current window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps counter read/write failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
