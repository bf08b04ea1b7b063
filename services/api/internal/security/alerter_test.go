package security

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"ivisionary/pkg/domain"
)

func newTestAlerter(t *testing.T, thresholds *Thresholds) *AuditAlerter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewAuditAlerter(client, "test:alerts", thresholds)
}

func TestAuditAlerterObserveTriggers(t *testing.T) {
	alerter := newTestAlerter(t, NewThresholds(domain.SecurityThresholds{LoginAttempts: 3, TimeWindow: 15, SuspiciousRequests: 100}))
	ctx := context.Background()
	firsts := 0
	var last AlertResult
	for i := 0; i < 5; i++ {
		result, err := alerter.Observe(ctx, EventLogin, OutcomeFail, "127.0.0.1")
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
		if result.First {
			firsts++
			if result.Count != 3 {
				t.Fatalf("first trigger at count %d, want 3", result.Count)
			}
		}
		last = result
	}
	if !last.Triggered || firsts != 1 {
		t.Fatalf("expected one first trigger and a triggered state, got firsts=%d last=%+v", firsts, last)
	}
}

func TestAuditAlerterSeparatesIPs(t *testing.T) {
	alerter := newTestAlerter(t, NewThresholds(domain.SecurityThresholds{LoginAttempts: 2, TimeWindow: 5, SuspiciousRequests: 10}))
	ctx := context.Background()
	if _, err := alerter.Observe(ctx, EventLogin, OutcomeFail, "10.0.0.1"); err != nil {
		t.Fatalf("observe: %v", err)
	}
	result, err := alerter.Observe(ctx, EventLogin, OutcomeFail, "10.0.0.2")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if result.Triggered {
		t.Fatalf("counts must be kept per ip")
	}
}

func TestAuditAlerterObserveIgnoresUnknownRule(t *testing.T) {
	alerter := newTestAlerter(t, nil)
	result, err := alerter.Observe(context.Background(), "auth.custom", "success", "127.0.0.1")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if result.Triggered {
		t.Fatalf("unexpected trigger for unknown rule")
	}
}

func TestNilAlerterIsNoop(t *testing.T) {
	alerter := NewAuditAlerter(nil, "", nil)
	if alerter != nil {
		t.Fatalf("expected nil alerter without redis")
	}
	if _, err := alerter.Observe(context.Background(), EventLogin, OutcomeFail, "1.2.3.4"); err != nil {
		t.Fatalf("nil alerter should not fail: %v", err)
	}
}
