package domain

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrNoData      = errors.New("no data available")
	ErrCircuitOpen = errors.New("circuit breaker open")
	ErrBadPayload  = errors.New("malformed upstream payload")
)
