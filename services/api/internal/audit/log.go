package audit

import (
	"context"
	"sync"
	"time"

	"ivisionary/internal/util"
	"ivisionary/pkg/domain"
)

// Actions recorded by the auth flow.
const (
	ActionLogin       = "Login"
	ActionLoginFailed = "Login Failed"
	ActionLogout      = "Logout"
)

// UnknownIP is recorded when the caller address cannot be resolved.
const UnknownIP = "0.0.0.0"

const sinkTimeout = 3 * time.Second

// Log is the append-only, newest-first audit trail.
type Log struct {
	mu       sync.RWMutex
	entries  []domain.AuditEntry
	resolver IPResolver
	sink     Sink
	now      func() time.Time
}

// NewLog builds a log. A nil resolver reads the request context; a nil sink discards.
func NewLog(resolver IPResolver, sink Sink) *Log {
	if resolver == nil {
		resolver = ContextResolver{}
	}
	if sink == nil {
		sink = NoopSink{}
	}
	return &Log{
		resolver: resolver,
		sink:     sink,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Add records exactly one entry. A failed IP lookup still records the entry
// with UnknownIP and an error status.
func (l *Log) Add(ctx context.Context, action string, details any) domain.AuditEntry {
	entry := domain.AuditEntry{
		ID:        util.NewUUID(),
		Timestamp: l.now(),
		Action:    action,
		Details:   details,
		Status:    domain.AuditSuccess,
	}
	ip, err := l.resolver.ResolveIP(ctx)
	if err != nil || ip == "" {
		entry.IPAddress = UnknownIP
		entry.Status = domain.AuditError
	} else {
		entry.IPAddress = ip
	}

	l.mu.Lock()
	l.entries = append([]domain.AuditEntry{entry}, l.entries...)
	l.mu.Unlock()

	if entry.Status == domain.AuditSuccess {
		sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
		defer cancel()
		if err := l.sink.Publish(sinkCtx, entry); err != nil {
			util.LoggerFromContext(ctx).Warn("audit sink publish failed", "action", action, "err", err)
		}
	} else {
		util.LoggerFromContext(ctx).Debug("audit ip lookup failed", "action", action, "err", err)
	}
	return entry
}

// Clear drops every entry.
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// List returns a copy of all entries, newest first.
func (l *Log) List() []domain.AuditEntry {
	return l.filter(func(domain.AuditEntry) bool { return true })
}

// ByIP returns entries recorded for ip.
func (l *Log) ByIP(ip string) []domain.AuditEntry {
	return l.filter(func(e domain.AuditEntry) bool { return e.IPAddress == ip })
}

// ByDateRange returns entries whose timestamp lies in [start, end].
func (l *Log) ByDateRange(start, end time.Time) []domain.AuditEntry {
	return l.filter(func(e domain.AuditEntry) bool {
		return !e.Timestamp.Before(start) && !e.Timestamp.After(end)
	})
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Log) filter(keep func(domain.AuditEntry) bool) []domain.AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.AuditEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
