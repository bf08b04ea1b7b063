// Package console holds the admin back-office guard and panel selection.
package console

import (
	"strings"

	"ivisionary/pkg/domain"
)

// LoginPath is where rejected console visitors are sent.
const LoginPath = "/login"

// Decision is the outcome of a guard check.
type Decision int

const (
	Allow Decision = iota
	RedirectToLogin
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "redirect_to_login"
}

// Principal is the caller as seen by the guard.
type Principal struct {
	Authenticated bool
	Role          domain.UserRole
}

// PrincipalFromSession builds a principal; a nil session is anonymous.
func PrincipalFromSession(s *domain.Session) Principal {
	if s == nil {
		return Principal{}
	}
	return Principal{Authenticated: true, Role: s.Role}
}

// Decide allows an authenticated principal holding the required role.
func Decide(p Principal, required domain.UserRole) Decision {
	if !p.Authenticated {
		return RedirectToLogin
	}
	if required == "" || p.Role == required {
		return Allow
	}
	return RedirectToLogin
}

// Tab is one admin panel.
type Tab struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Resource string `json:"resource,omitempty"`
}

// DefaultTab is shown when no or an unknown tab is requested.
const DefaultTab = "dashboard"

var tabs = []Tab{
	{ID: "dashboard", Title: "Dashboard", Resource: "/api/admin/dashboard"},
	{ID: "users", Title: "Users", Resource: "/api/admin/users"},
	{ID: "categories", Title: "Categories", Resource: "/api/admin/categories"},
	{ID: "subscriptions", Title: "Subscriptions", Resource: "/api/stripe/config"},
	{ID: "audit", Title: "Audit log", Resource: "/api/admin/audit-logs"},
	{ID: "settings", Title: "Settings"},
	{ID: "reports", Title: "Reports", Resource: "/api/admin/reports"},
	{ID: "videos", Title: "Videos", Resource: "/api/admin/videos"},
	{ID: "stripe", Title: "Stripe", Resource: "/api/stripe/products"},
	{ID: "security", Title: "Security", Resource: "/api/admin/security"},
	{ID: "analytics", Title: "Analytics", Resource: "/api/admin/dashboard"},
	{ID: "requests", Title: "Video requests"},
	{ID: "notifications", Title: "Notifications", Resource: "/api/admin/notifications"},
}

// Tabs returns the panels in sidebar order.
func Tabs() []Tab {
	return append([]Tab(nil), tabs...)
}

// ResolveTab maps a requested tab id to a known panel, falling back to the dashboard.
func ResolveTab(requested string) Tab {
	requested = strings.ToLower(strings.TrimSpace(requested))
	for _, t := range tabs {
		if t.ID == requested {
			return t
		}
	}
	return tabs[0]
}

// Shell is the payload of the console entry point.
type Shell struct {
	User   domain.Session `json:"user"`
	Active Tab            `json:"active"`
	Tabs   []Tab          `json:"tabs"`
}

func NewShell(s domain.Session, requestedTab string) Shell {
	return Shell{User: s, Active: ResolveTab(requestedTab), Tabs: Tabs()}
}
