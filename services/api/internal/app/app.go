package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"ivisionary/internal/util"
	"ivisionary/pkg/billing"
	"ivisionary/pkg/domain"
	"ivisionary/pkg/mail"
	"ivisionary/pkg/storage"
	"ivisionary/pkg/store"
	"ivisionary/pkg/streaming"
	"ivisionary/services/api/internal/audit"
	"ivisionary/services/api/internal/security"
)

// Config holds runtime configuration for the core application.
// Nil collaborators fall back to in-memory implementations.
type Config struct {
	AdminEmail     string
	AdminPassword  string
	SessionTTL     time.Duration
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	JWTLeeway      time.Duration
	FrontendURL    string
	PublishableKey string
	Store          store.Store
	Sessions       store.SessionStore
	Audit          *audit.Log
	Mailer         mail.Mailer
	Objects        storage.ObjectStore
	Uploader       streaming.Uploader
	Billing        billing.Gateway
	Thresholds     *security.Thresholds
	Blocklist      *security.Blocklist
	Alerter        *security.AuditAlerter
	Now            func() time.Time
}

// App is the core application service wiring together storage, sessions and the admin domain.
type App struct {
	store         store.Store
	sessions      store.SessionStore
	signer        *store.TokenSigner
	audit         *audit.Log
	mailer        mail.Mailer
	objects       storage.ObjectStore
	uploader      streaming.Uploader
	billing       billing.Gateway
	thresholds    *security.Thresholds
	blocklist     *security.Blocklist
	alerter       *security.AuditAlerter
	adminEmail    string
	adminPassword string
	frontendURL   string
	now           func() time.Time

	// categoryMu serializes category mutations so orders stay 1..N.
	categoryMu sync.Mutex

	billingMu     sync.RWMutex
	billingConfig domain.BillingConfig
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	signer, err := store.NewTokenSigner(cfg.JWTSecret, store.JWTOptions{
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Leeway:   cfg.JWTLeeway,
		TTL:      cfg.SessionTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("init token signer: %w", err)
	}

	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	dataStore := cfg.Store
	if dataStore == nil {
		dataStore = store.NewSeededMemoryStore(now())
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = store.NewMemorySessionStore()
	}
	auditLog := cfg.Audit
	if auditLog == nil {
		auditLog = audit.NewLog(nil, nil)
	}
	objects := cfg.Objects
	if objects == nil {
		objects = storage.NewMemoryStore()
	}
	gateway := cfg.Billing
	if gateway == nil {
		gateway = billing.NewMemoryGateway()
	}
	thresholds := cfg.Thresholds
	if thresholds == nil {
		thresholds = security.NewThresholds(domain.DefaultSecurityThresholds())
	}
	blocklist := cfg.Blocklist
	if blocklist == nil {
		blocklist = security.NewBlocklist()
	}

	adminEmail := normalizeEmail(cfg.AdminEmail)
	if adminEmail == "" {
		adminEmail = "admin@example.es"
	}
	adminPassword := cfg.AdminPassword
	if adminPassword == "" {
		adminPassword = "admin"
	}

	return &App{
		store:         dataStore,
		sessions:      sessions,
		signer:        signer,
		audit:         auditLog,
		mailer:        cfg.Mailer,
		objects:       objects,
		uploader:      cfg.Uploader,
		billing:       gateway,
		thresholds:    thresholds,
		blocklist:     blocklist,
		alerter:       cfg.Alerter,
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
		frontendURL:   strings.TrimRight(strings.TrimSpace(cfg.FrontendURL), "/"),
		now:           now,
		billingConfig: defaultBillingConfig(cfg.PublishableKey),
	}, nil
}

// Audit exposes the audit trail.
func (a *App) Audit() *audit.Log {
	return a.audit
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// notify adds an admin notification. Failures are logged, never returned.
func (a *App) notify(ctx context.Context, kind, message string, priority domain.Priority, data map[string]any) {
	if _, err := a.AddNotification(ctx, domain.Notification{
		Type:     kind,
		Message:  message,
		Priority: priority,
		Data:     data,
	}); err != nil {
		util.LoggerFromContext(ctx).Warn("add notification failed", "type", kind, "err", err)
	}
}

// observeFailure feeds the alert counters and raises a notification the
// first time a window's threshold is reached.
func (a *App) observeFailure(ctx context.Context, event, outcome string) {
	if a.alerter == nil {
		return
	}
	ip, _ := util.ClientIPFromContext(ctx)
	result, err := a.alerter.Observe(ctx, event, outcome, ip)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("security alert observe failed", "event", event, "err", err)
		return
	}
	if !result.First {
		return
	}
	a.notify(ctx, "security_alert", fmt.Sprintf("%d %s events from %s", result.Count, event, ip), domain.PriorityHigh, map[string]any{
		"event":     event,
		"outcome":   outcome,
		"ip":        ip,
		"count":     result.Count,
		"windowSec": int64(result.Window.Seconds()),
	})
}

// RateLimited records a throttled request against event for the caller IP.
func (a *App) RateLimited(ctx context.Context, event string) {
	a.observeFailure(ctx, event, security.OutcomeRateLimited)
}
