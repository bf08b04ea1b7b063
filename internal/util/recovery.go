package util

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"
)

// ErrorReporter forwards recovered panics to an error tracker.
type ErrorReporter interface {
	Report(r *http.Request, recovered any)
}

// SentryReporter reports panics through the global sentry hub.
// Authorization and Cookie headers never leave the process.
type SentryReporter struct {
	FlushTimeout time.Duration
}

// InitSentry configures the sentry client. An empty dsn disables reporting.
func InitSentry(dsn, environment, release string) (*SentryReporter, error) {
	if dsn == "" {
		return nil, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			if event.Request != nil {
				scrubHeaders(event.Request.Headers)
				event.Request.Cookies = ""
			}
			return event
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init sentry: %w", err)
	}
	return &SentryReporter{FlushTimeout: 2 * time.Second}, nil
}

func (s *SentryReporter) Report(r *http.Request, recovered any) {
	hub := sentry.CurrentHub().Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		req := r.Clone(r.Context())
		req.Header.Del("Authorization")
		req.Header.Del("Cookie")
		scope.SetRequest(req)
		scope.SetTag("request_id", RequestIDFromRequest(r))
		hub.Recover(recovered)
	})
	hub.Flush(s.FlushTimeout)
}

func scrubHeaders(headers map[string]string) {
	for k := range headers {
		switch http.CanonicalHeaderKey(k) {
		case "Authorization", "Cookie", "Set-Cookie", "X-Service-Key":
			delete(headers, k)
		}
	}
}

// WithRecovery turns handler panics into 500 responses. reporter may be nil.
func WithRecovery(reporter ErrorReporter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			LoggerFromContext(r.Context()).Error("panic recovered",
				"panic", fmt.Sprint(rec),
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)
			if reporter != nil {
				reporter.Report(r, rec)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		}()
		next.ServeHTTP(w, r)
	})
}
