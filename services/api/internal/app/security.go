package app

import (
	"errors"
	"time"

	"ivisionary/pkg/domain"
	"ivisionary/services/api/internal/security"
)

// SecuritySnapshot is the security panel's view of the audit trail.
type SecuritySnapshot struct {
	Thresholds domain.SecurityThresholds   `json:"thresholds"`
	Suspicious []domain.SuspiciousActivity `json:"suspicious"`
	Blocked    []domain.BlockedIP          `json:"blocked"`
}

// AuditLogQuery selects audit entries. Zero fields match everything.
type AuditLogQuery struct {
	IP   string
	From time.Time
	To   time.Time
}

// AuditLogs returns audit entries newest first.
func (a *App) AuditLogs(q AuditLogQuery) []domain.AuditEntry {
	var entries []domain.AuditEntry
	if q.From.IsZero() && q.To.IsZero() {
		entries = a.audit.List()
	} else {
		to := q.To
		if to.IsZero() {
			to = a.now()
		}
		entries = a.audit.ByDateRange(q.From, to)
	}
	if q.IP == "" {
		return entries
	}
	out := entries[:0]
	for _, e := range entries {
		if e.IPAddress == q.IP {
			out = append(out, e)
		}
	}
	return out
}

func (a *App) ClearAuditLogs() {
	a.audit.Clear()
}

// Security computes the suspicious-activity snapshot on request.
func (a *App) Security() SecuritySnapshot {
	thresholds := a.thresholds.Get()
	return SecuritySnapshot{
		Thresholds: thresholds,
		Suspicious: security.Detect(a.audit.List(), thresholds, a.now()),
		Blocked:    a.blocklist.List(),
	}
}

func (a *App) SecurityThresholds() domain.SecurityThresholds {
	return a.thresholds.Get()
}

func (a *App) UpdateSecurityThresholds(next domain.SecurityThresholds) (domain.SecurityThresholds, error) {
	updated, err := a.thresholds.Update(next)
	if errors.Is(err, security.ErrInvalidThresholds) {
		verr := &ValidationError{}
		verr.add("thresholds", "Login attempts, time window and request limit must be positive")
		return updated, verr
	}
	return updated, err
}

func (a *App) BlockedIPs() []domain.BlockedIP {
	return a.blocklist.List()
}

func (a *App) BlockIP(ip, reason string) (domain.BlockedIP, error) {
	entry, err := a.blocklist.Block(ip, reason)
	if errors.Is(err, security.ErrInvalidIP) {
		verr := &ValidationError{}
		verr.add("ip", "Valid IP address is required")
		return domain.BlockedIP{}, verr
	}
	return entry, err
}

func (a *App) UnblockIP(ip string) error {
	if err := a.blocklist.Unblock(ip); errors.Is(err, security.ErrNotBlocked) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return nil
}
