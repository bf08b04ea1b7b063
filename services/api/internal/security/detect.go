package security

import (
	"sort"
	"time"

	"ivisionary/pkg/domain"
)

// ActionLoginFailed is the audit action counted as a failed login.
const ActionLoginFailed = "Login Failed"

type ipStats struct {
	failedLogins int
	requests     int
	lastActivity time.Time
}

// Detect groups entries by IP and flags addresses active within the
// threshold window whose failed logins or total requests reach the limits.
// Entries without an IP are skipped. The result is sorted by IP.
func Detect(entries []domain.AuditEntry, thresholds domain.SecurityThresholds, now time.Time) []domain.SuspiciousActivity {
	stats := make(map[string]*ipStats)
	for _, e := range entries {
		if e.IPAddress == "" {
			continue
		}
		s, ok := stats[e.IPAddress]
		if !ok {
			s = &ipStats{}
			stats[e.IPAddress] = s
		}
		if e.Action == ActionLoginFailed {
			s.failedLogins++
		}
		s.requests++
		if e.Timestamp.After(s.lastActivity) {
			s.lastActivity = e.Timestamp
		}
	}

	ips := make([]string, 0, len(stats))
	for ip := range stats {
		ips = append(ips, ip)
	}
	sort.Strings(ips)

	window := thresholds.Window()
	out := make([]domain.SuspiciousActivity, 0)
	for _, ip := range ips {
		s := stats[ip]
		if now.Sub(s.lastActivity) > window {
			continue
		}
		if s.failedLogins >= thresholds.LoginAttempts {
			out = append(out, domain.SuspiciousActivity{
				IP:           ip,
				Type:         domain.ActivityLoginAttempts,
				Count:        s.failedLogins,
				LastActivity: s.lastActivity,
			})
		}
		if s.requests >= thresholds.SuspiciousRequests {
			out = append(out, domain.SuspiciousActivity{
				IP:           ip,
				Type:         domain.ActivityHighRequests,
				Count:        s.requests,
				LastActivity: s.lastActivity,
			})
		}
	}
	return out
}
