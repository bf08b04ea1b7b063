package security

import (
	"net"
	"strings"
	"sync"
	"time"

	"ivisionary/pkg/domain"
)

// DefaultBlockReason is recorded when Block is called without a reason.
const DefaultBlockReason = "Manual block"

// Blocklist keeps manually blocked addresses. It does not enforce anything.
type Blocklist struct {
	mu      sync.Mutex
	entries []domain.BlockedIP
	now     func() time.Time
}

func NewBlocklist() *Blocklist {
	return &Blocklist{now: func() time.Time { return time.Now().UTC() }}
}

// Block adds ip. Blocking an already blocked ip refreshes its reason and time.
func (b *Blocklist) Block(ip, reason string) (domain.BlockedIP, error) {
	ip = strings.TrimSpace(ip)
	if net.ParseIP(ip) == nil {
		return domain.BlockedIP{}, ErrInvalidIP
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultBlockReason
	}
	entry := domain.BlockedIP{IP: ip, BlockedAt: b.now(), Reason: reason}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.entries {
		if b.entries[i].IP == ip {
			b.entries[i] = entry
			return entry, nil
		}
	}
	b.entries = append(b.entries, entry)
	return entry, nil
}

func (b *Blocklist) Unblock(ip string) error {
	ip = strings.TrimSpace(ip)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.entries {
		if b.entries[i].IP == ip {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			return nil
		}
	}
	return ErrNotBlocked
}

func (b *Blocklist) IsBlocked(ip string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.entries {
		if e.IP == ip {
			return true
		}
	}
	return false
}

// List returns blocked addresses in the order they were first blocked.
func (b *Blocklist) List() []domain.BlockedIP {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.BlockedIP(nil), b.entries...)
}
