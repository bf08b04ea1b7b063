package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"ivisionary/internal/ratelimit"
	"ivisionary/internal/util"
	"ivisionary/pkg/domain"
	"ivisionary/services/api/internal/app"
	"ivisionary/services/api/internal/security"
)

const (
	tokenCookie      = "token"
	serviceKeyHeader = "X-Service-Key"
	maxBodyBytes     = 1 << 20
	maxUploadBytes   = 10 << 20
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                        *app.App
	Redis                      redis.UniversalClient
	LoginRateLimitPerMinute    int
	RegisterRateLimitPerMinute int
	ServiceKey                 string
	CORSOrigins                []string
	TrustedProxies             *util.TrustedProxies
	SecureCookies              bool
	Reporter                   util.ErrorReporter
}

// Server exposes HTTP endpoints for the iVisionary API.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	serviceKey      string
	corsOrigins     []string
	trustedProxies  *util.TrustedProxies
	secureCookies   bool
	reporter        util.ErrorReporter
	loginLimiter    ratelimit.Limiter
	registerLimiter ratelimit.Limiter
}

// New constructs the server with routes configured.
// Rate limits are shared through Redis when a client is given.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires an app")
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	registerLimit := cfg.RegisterRateLimitPerMinute
	if registerLimit <= 0 {
		registerLimit = 5
	}
	newLimiter := func(name string, limit int) (ratelimit.Limiter, error) {
		var (
			limiter *ratelimit.FixedWindowLimiter
			err     error
		)
		if cfg.Redis != nil {
			limiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.Redis, "ivisionary:ratelimit:"+name, limit, time.Minute)
		} else {
			limiter, err = ratelimit.NewMemoryFixedWindowLimiter(limit, time.Minute)
		}
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	registerLimiter, err := newLimiter("register", registerLimit)
	if err != nil {
		return nil, err
	}

	s := &Server{
		app:             cfg.App,
		mux:             http.NewServeMux(),
		serviceKey:      strings.TrimSpace(cfg.ServiceKey),
		corsOrigins:     cfg.CORSOrigins,
		trustedProxies:  cfg.TrustedProxies,
		secureCookies:   cfg.SecureCookies,
		reporter:        cfg.Reporter,
		loginLimiter:    loginLimiter,
		registerLimiter: registerLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithCORS(s.corsOrigins, h)
	h = util.WithSecurityHeaders([]string{"/api/auth/", "/api/admin/", "/api/stripe/", "/admin"}, h)
	h = util.WithRecovery(s.reporter, h)
	h = util.WithRequestLog("api", h)
	h = util.WithClientIP(s.trustedProxies, h)
	return util.WithRequestID(h)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/auth/me", s.authenticated(s.handleMe))
	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/verify-email/", s.handleVerifyEmail)
	s.mux.HandleFunc("/api/auth/identity", s.handleIdentity)

	// public catalogue
	s.mux.HandleFunc("/api/videos", s.handleVideos)
	s.mux.HandleFunc("/api/videos/", s.handleVideoByID)
	s.mux.HandleFunc("/api/categories", s.handleCategories)
	s.mux.HandleFunc("/api/reports", s.handleSubmitReport)

	// console
	s.mux.HandleFunc("/admin", s.handleConsole)
	s.mux.HandleFunc("/admin/", s.handleConsole)

	// admin
	s.mux.Handle("/api/admin/dashboard", s.adminOnly(s.handleDashboard))
	s.mux.Handle("/api/admin/users", s.adminOnly(s.handleAdminUsers))
	s.mux.Handle("/api/admin/users/", s.adminOnly(s.handleAdminUserByID))
	s.mux.Handle("/api/admin/videos", s.adminOnly(s.handleAdminVideos))
	s.mux.Handle("/api/admin/videos/", s.adminOnly(s.handleAdminVideoByID))
	s.mux.Handle("/api/admin/categories", s.adminOnly(s.handleAdminCategories))
	s.mux.Handle("/api/admin/categories/", s.adminOnly(s.handleAdminCategoryByID))
	s.mux.Handle("/api/admin/reports", s.adminOnly(s.handleAdminReports))
	s.mux.Handle("/api/admin/reports/", s.adminOnly(s.handleAdminReportByID))
	s.mux.Handle("/api/admin/notifications", s.adminOnly(s.handleAdminNotifications))
	s.mux.Handle("/api/admin/notifications/", s.adminOnly(s.handleAdminNotificationByID))
	s.mux.Handle("/api/admin/audit-logs", s.adminOnly(s.handleAuditLogs))
	s.mux.Handle("/api/admin/security", s.adminOnly(s.handleSecurity))
	s.mux.Handle("/api/admin/security/", s.adminOnly(s.handleSecuritySub))

	// payments
	s.mux.HandleFunc("/api/stripe/config", s.handleStripeConfig)
	s.mux.Handle("/api/stripe/products", s.adminOnly(s.handleStripeProducts))
	s.mux.Handle("/api/stripe/products/", s.adminOnly(s.handleStripeProductByID))
	s.mux.Handle("/api/stripe/sync", s.adminOnly(s.handleStripeSync))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.Session)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, session)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, session domain.Session) {
		if session.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, session)
	})
}

func (s *Server) authorize(r *http.Request) (domain.Session, bool) {
	token, ok := requestToken(r)
	if !ok {
		return domain.Session{}, false
	}
	return s.app.SessionFromToken(r.Context(), token)
}

// requestToken reads the bearer token, falling back to the token cookie.
func requestToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if !strings.HasPrefix(authHeader, "Bearer ") {
			util.LoggerFromContext(r.Context()).Warn("missing bearer prefix", "path", r.URL.Path)
			return "", false
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		return token, token != ""
	}
	if c, err := r.Cookie(tokenCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter ratelimit.Limiter, event, msg string) bool {
	ip, _ := util.ClientIPFromContext(r.Context())
	if limiter.Allow(r.Context(), r.URL.Path+"|"+ip) {
		return true
	}
	s.app.RateLimited(r.Context(), event)
	util.LoggerFromContext(r.Context()).Warn("security_event", "event", event, "outcome", security.OutcomeRateLimited, "ip", ip)
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// pathID returns the single path segment after prefix, or "".
func pathID(path, prefix string) string {
	id := strings.TrimPrefix(path, prefix)
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}

// pathSegments splits the remainder of path after prefix.
func pathSegments(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type validationResponse struct {
	Error  string           `json:"error"`
	Errors []app.FieldError `json:"errors"`
}

// writeAppError maps application errors to status codes. Unknown errors
// are logged and answered with a generic 500.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *app.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Error: "validation failed", Errors: verr.Fields})
	case errors.Is(err, app.ErrInvalidCredentials), errors.Is(err, app.ErrEmailNotVerified), errors.Is(err, app.ErrNoActiveSession):
		writeError(w, http.StatusUnauthorized, rootMessage(err))
	case errors.Is(err, app.ErrUserAlreadyExists), errors.Is(err, app.ErrInvalidVerificationToken):
		writeError(w, http.StatusBadRequest, rootMessage(err))
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, app.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, app.ErrVerificationEmail):
		writeError(w, http.StatusInternalServerError, app.ErrVerificationEmail.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// rootMessage returns the display text of the sentinel wrapped in err.
func rootMessage(err error) string {
	for _, sentinel := range []error{
		app.ErrInvalidCredentials,
		app.ErrEmailNotVerified,
		app.ErrNoActiveSession,
		app.ErrUserAlreadyExists,
		app.ErrInvalidVerificationToken,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
