package security

import "errors"

var (
	ErrInvalidIP         = errors.New("invalid ip address")
	ErrInvalidThresholds = errors.New("thresholds must be positive")
	ErrNotBlocked        = errors.New("ip is not blocked")
)
