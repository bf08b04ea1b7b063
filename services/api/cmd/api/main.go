package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"

	"ivisionary/internal/util"
	"ivisionary/pkg/billing"
	"ivisionary/pkg/domain"
	"ivisionary/pkg/mail"
	"ivisionary/pkg/storage"
	"ivisionary/pkg/store"
	"ivisionary/pkg/streaming"
	"ivisionary/services/api/internal/app"
	"ivisionary/services/api/internal/audit"
	"ivisionary/services/api/internal/config"
	"ivisionary/services/api/internal/security"
	"ivisionary/services/api/internal/server"
)

var version = "dev"

func main() {
	config.LoadDotEnv()
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	jwtLeeway, err := config.ParseJWTLeeway(cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse jwt leeway: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	var reporter util.ErrorReporter
	if cfg.IsProduction() {
		sentryReporter, err := util.InitSentry(cfg.SentryDSN, cfg.Environment, version)
		if err != nil {
			log.Fatalf("failed to init sentry: %v", err)
		}
		if sentryReporter != nil {
			reporter = sentryReporter
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx := context.Background()
	var closers []io.Closer

	var redisClient redis.UniversalClient
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		redisClient = client
		closers = append(closers, client)
	}

	var (
		dataStore store.Store
		archive   store.AuditArchive
	)
	if cfg.DatabaseURL != "" {
		gormStore, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to init database: %v", err)
		}
		if err := gormStore.Seed(ctx, time.Now().UTC()); err != nil {
			log.Fatalf("failed to seed database: %v", err)
		}
		dataStore, archive = gormStore, gormStore
		closers = append(closers, gormStore)
	} else {
		slog.Warn("DATABASE_URL not set, using seeded in-memory store")
	}

	var sessions store.SessionStore
	if redisClient != nil {
		sessions = store.NewRedisSessionStore(redisClient, "ivisionary:session")
	}

	sink, err := buildAuditSink(cfg, redisClient, archive, &closers)
	if err != nil {
		log.Fatalf("failed to init audit sink: %v", err)
	}
	resolver := audit.ChainResolver{audit.ContextResolver{}}
	if cfg.IPLookupURL != "" {
		resolver = append(resolver, audit.NewLookupResolver(cfg.IPLookupURL))
	}
	auditLog := audit.NewLog(resolver, sink)

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		minioStore, err := storage.NewMinioStore(ctx, storage.MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("failed to init object storage: %v", err)
		}
		objects = minioStore
	}

	var mailer mail.Mailer
	tlsPolicy := "opportunistic"
	if cfg.SMTPTLS {
		tlsPolicy = "mandatory"
	}
	smtpMailer, err := mail.NewSMTPMailer(mail.SMTPOptions{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		TLS:      tlsPolicy,
	})
	switch {
	case err == nil:
		mailer = smtpMailer
	case errors.Is(err, mail.ErrMailerNotConfigured):
		slog.Warn("SMTP not configured, verification mail will fail")
	default:
		log.Fatalf("failed to init mailer: %v", err)
	}

	var uploader streaming.Uploader
	if cfg.CloudflareAccountID != "" {
		cf, err := streaming.NewCloudflareClient(cfg.CloudflareAccountID, cfg.CloudflareAPIToken)
		if err != nil {
			log.Fatalf("failed to init video hosting: %v", err)
		}
		uploader = cf
	}

	var gateway billing.Gateway
	if cfg.StripeSecretKey != "" {
		sg, err := billing.NewStripeGateway(cfg.StripeSecretKey)
		if err != nil {
			log.Fatalf("failed to init stripe: %v", err)
		}
		gateway = sg
	}

	thresholds := security.NewThresholds(domain.DefaultSecurityThresholds())
	appCore, err := app.New(app.Config{
		AdminEmail:     cfg.AdminEmail,
		AdminPassword:  cfg.AdminPassword,
		SessionTTL:     sessionTTL,
		JWTSecret:      cfg.JWTSecret,
		JWTIssuer:      cfg.JWTIssuer,
		JWTAudience:    cfg.JWTAudience,
		JWTLeeway:      jwtLeeway,
		FrontendURL:    cfg.FrontendURL,
		PublishableKey: cfg.StripePublishableKey,
		Store:          dataStore,
		Sessions:       sessions,
		Audit:          auditLog,
		Mailer:         mailer,
		Objects:        objects,
		Uploader:       uploader,
		Billing:        gateway,
		Thresholds:     thresholds,
		Alerter:        security.NewAuditAlerter(redisClient, "ivisionary:alerts", thresholds),
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}
	httpServer, err := server.New(server.Config{
		App:                        appCore,
		Redis:                      redisClient,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMinute,
		RegisterRateLimitPerMinute: cfg.RegisterRateLimitPerMinute,
		ServiceKey:                 cfg.ServiceKey,
		CORSOrigins:                cfg.CORSOrigins,
		TrustedProxies:             trusted,
		SecureCookies:              cfg.IsProduction(),
		Reporter:                   reporter,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutdown signal received, draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Warn("close failed", "err", err)
		}
	}
	slog.Info("server stopped")
}

// buildAuditSink selects the configured audit pipeline. Entries are also
// archived to the database when one is configured.
func buildAuditSink(cfg config.FileConfig, redisClient redis.UniversalClient, archive store.AuditArchive, closers *[]io.Closer) (audit.Sink, error) {
	var sinks audit.MultiSink
	if archive != nil {
		sinks = append(sinks, audit.NewArchiveSink(archive))
	}
	switch cfg.AuditSink {
	case config.AuditSinkNone, "":
	case config.AuditSinkHTTP:
		sinks = append(sinks, audit.NewHTTPSink(cfg.AuditSinkURL))
	case config.AuditSinkRedis:
		if redisClient == nil {
			return nil, errors.New("redis audit sink requires redisAddr")
		}
		sinks = append(sinks, audit.NewRedisStreamSink(redisClient, cfg.AuditStream))
	case config.AuditSinkAMQP:
		amqpSink, err := audit.NewAMQPSink(cfg.AMQPURL, cfg.AuditQueue)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, amqpSink)
		sinks = append(sinks, amqpSink)
	default:
		return nil, fmt.Errorf("unknown audit sink %q", cfg.AuditSink)
	}
	if len(sinks) == 0 {
		return audit.NoopSink{}, nil
	}
	return sinks, nil
}
