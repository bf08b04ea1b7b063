package security

import (
	"sync"

	"ivisionary/pkg/domain"
)

// Thresholds holds the current detection limits.
type Thresholds struct {
	mu  sync.RWMutex
	cur domain.SecurityThresholds
}

func NewThresholds(initial domain.SecurityThresholds) *Thresholds {
	if ValidateThresholds(initial) != nil {
		initial = domain.DefaultSecurityThresholds()
	}
	return &Thresholds{cur: initial}
}

func (t *Thresholds) Get() domain.SecurityThresholds {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cur
}

func (t *Thresholds) Update(next domain.SecurityThresholds) (domain.SecurityThresholds, error) {
	if err := ValidateThresholds(next); err != nil {
		return t.Get(), err
	}
	t.mu.Lock()
	t.cur = next
	t.mu.Unlock()
	return next, nil
}

func ValidateThresholds(v domain.SecurityThresholds) error {
	if v.LoginAttempts <= 0 || v.TimeWindow <= 0 || v.SuspiciousRequests <= 0 {
		return ErrInvalidThresholds
	}
	return nil
}
