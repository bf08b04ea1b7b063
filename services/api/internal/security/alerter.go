package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"ivisionary/pkg/domain"
)

var alertCounterScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Observed events.
const (
	EventLogin    = "auth.login"
	EventRegister = "auth.register"

	OutcomeFail        = "fail"
	OutcomeRateLimited = "rate_limited"
)

// AlertResult contains alert evaluation output.
// First is set only on the observation that reaches the threshold.
type AlertResult struct {
	Triggered bool
	First     bool
	Count     int64
	Threshold int64
	Window    time.Duration
}

// AuditAlerter aggregates security events per IP and window in Redis.
// Failed logins use the live login threshold and window.
type AuditAlerter struct {
	redisClient redis.UniversalClient
	prefix      string
	thresholds  *Thresholds
	now         func() time.Time
}

// NewAuditAlerter returns nil when client is nil.
func NewAuditAlerter(client redis.UniversalClient, prefix string, thresholds *Thresholds) *AuditAlerter {
	if client == nil {
		return nil
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "ivisionary:alerts"
	}
	if thresholds == nil {
		thresholds = NewThresholds(domain.DefaultSecurityThresholds())
	}
	return &AuditAlerter{
		redisClient: client,
		prefix:      prefix,
		thresholds:  thresholds,
		now:         time.Now,
	}
}

// Observe records a security event and returns whether the alert threshold is reached.
func (a *AuditAlerter) Observe(ctx context.Context, event, outcome, ip string) (AlertResult, error) {
	result := AlertResult{}
	if a == nil || a.redisClient == nil {
		return result, nil
	}
	threshold, window, ok := a.alertRule(event, outcome)
	if !ok {
		return result, nil
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}
	windowMs := window.Milliseconds()
	if windowMs <= 0 {
		return result, nil
	}
	slot := a.now().UTC().UnixMilli() / windowMs
	key := fmt.Sprintf("%s:%s:%s:%s:%d", a.prefix, sanitizeSegment(event), sanitizeSegment(outcome), sanitizeSegment(ip), slot)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := alertCounterScript.Run(ctx, a.redisClient, []string{key}, windowMs).Int64()
	if err != nil {
		return result, err
	}
	result.Count = count
	result.Threshold = threshold
	result.Window = window
	result.Triggered = count >= threshold
	result.First = count == threshold
	return result, nil
}

func (a *AuditAlerter) alertRule(event, outcome string) (threshold int64, window time.Duration, ok bool) {
	event = strings.TrimSpace(event)
	outcome = strings.TrimSpace(outcome)
	if outcome == OutcomeRateLimited {
		return 20, time.Minute, true
	}
	if outcome != OutcomeFail {
		return 0, 0, false
	}
	switch event {
	case EventLogin:
		t := a.thresholds.Get()
		return int64(t.LoginAttempts), t.Window(), true
	case EventRegister:
		return 10, 5 * time.Minute, true
	default:
		return 0, 0, false
	}
}

func sanitizeSegment(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}
	replacer := strings.NewReplacer(":", "_", "|", "_", " ", "_")
	return replacer.Replace(in)
}
