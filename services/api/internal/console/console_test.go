package console

import (
	"testing"

	"ivisionary/pkg/domain"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		p    Principal
		want Decision
	}{
		{name: "anonymous", p: Principal{}, want: RedirectToLogin},
		{name: "regular user", p: Principal{Authenticated: true, Role: domain.RoleUser}, want: RedirectToLogin},
		{name: "admin", p: Principal{Authenticated: true, Role: domain.RoleAdmin}, want: Allow},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Decide(tc.p, domain.RoleAdmin); got != tc.want {
				t.Fatalf("Decide = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPrincipalFromSession(t *testing.T) {
	if p := PrincipalFromSession(nil); p.Authenticated {
		t.Fatalf("nil session must be anonymous")
	}
	p := PrincipalFromSession(&domain.Session{Role: domain.RoleAdmin})
	if !p.Authenticated || p.Role != domain.RoleAdmin {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestResolveTab(t *testing.T) {
	if got := ResolveTab(""); got.ID != DefaultTab {
		t.Fatalf("empty tab should resolve to dashboard, got %q", got.ID)
	}
	if got := ResolveTab("nope"); got.ID != DefaultTab {
		t.Fatalf("unknown tab should resolve to dashboard, got %q", got.ID)
	}
	if got := ResolveTab(" Security "); got.ID != "security" {
		t.Fatalf("expected security tab, got %q", got.ID)
	}
	if n := len(Tabs()); n != 13 {
		t.Fatalf("expected 13 tabs, got %d", n)
	}
}
