package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the YAML file read by Load when no path is given.
var ConfigPath = configPathFromEnv()

// Audit sink kinds.
const (
	AuditSinkNone  = "none"
	AuditSinkHTTP  = "http"
	AuditSinkRedis = "redis"
	AuditSinkAMQP  = "amqp"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                       string   `yaml:"port"`
	Environment                string   `yaml:"environment"`
	LogLevel                   string   `yaml:"logLevel"`
	DatabaseURL                string   `yaml:"databaseURL"`
	RedisAddr                  string   `yaml:"redisAddr"`
	RedisPassword              string   `yaml:"redisPassword"`
	SessionTTL                 string   `yaml:"sessionTTL"`
	JWTSecret                  string   `yaml:"jwtSecret"`
	JWTIssuer                  string   `yaml:"jwtIssuer"`
	JWTAudience                string   `yaml:"jwtAudience"`
	JWTLeeway                  string   `yaml:"jwtLeeway"`
	AdminEmail                 string   `yaml:"adminEmail"`
	AdminPassword              string   `yaml:"adminPassword"`
	ServiceKey                 string   `yaml:"serviceKey"`
	FrontendURL                string   `yaml:"frontendURL"`
	CORSOrigins                []string `yaml:"corsOrigins"`
	TrustedProxies             []string `yaml:"trustedProxies"`
	LoginRateLimitPerMinute    int      `yaml:"loginRateLimitPerMinute"`
	RegisterRateLimitPerMinute int      `yaml:"registerRateLimitPerMinute"`
	SMTPHost                   string   `yaml:"smtpHost"`
	SMTPPort                   int      `yaml:"smtpPort"`
	SMTPUsername               string   `yaml:"smtpUsername"`
	SMTPPassword               string   `yaml:"smtpPassword"`
	SMTPFrom                   string   `yaml:"smtpFrom"`
	SMTPTLS                    bool     `yaml:"smtpTLS"`
	MinioEndpoint              string   `yaml:"minioEndpoint"`
	MinioAccessKey             string   `yaml:"minioAccessKey"`
	MinioSecretKey             string   `yaml:"minioSecretKey"`
	MinioBucket                string   `yaml:"minioBucket"`
	MinioUseSSL                bool     `yaml:"minioUseSSL"`
	StripeSecretKey            string   `yaml:"stripeSecretKey"`
	StripePublishableKey       string   `yaml:"stripePublishableKey"`
	CloudflareAccountID        string   `yaml:"cloudflareAccountID"`
	CloudflareAPIToken         string   `yaml:"cloudflareAPIToken"`
	IPLookupURL                string   `yaml:"ipLookupURL"`
	AuditSink                  string   `yaml:"auditSink"`
	AuditSinkURL               string   `yaml:"auditSinkURL"`
	AuditStream                string   `yaml:"auditStream"`
	AMQPURL                    string   `yaml:"amqpURL"`
	AuditQueue                 string   `yaml:"auditQueue"`
	SentryDSN                  string   `yaml:"sentryDSN"`
}

// IsProduction reports whether the service runs with production settings.
func (c FileConfig) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// LoadDotEnv reads .env into the process environment outside production.
// A missing file is not an error.
func LoadDotEnv() {
	if strings.EqualFold(os.Getenv("APP_ENV"), "production") {
		return
	}
	_ = godotenv.Load()
}

// Load reads config from path (defaults to ConfigPath).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	overrides := map[string]*string{
		"PORT":                   &cfg.Port,
		"APP_ENV":                &cfg.Environment,
		"LOG_LEVEL":              &cfg.LogLevel,
		"DATABASE_URL":           &cfg.DatabaseURL,
		"REDIS_ADDR":             &cfg.RedisAddr,
		"REDIS_PASSWORD":         &cfg.RedisPassword,
		"SESSION_TTL":            &cfg.SessionTTL,
		"JWT_SECRET":             &cfg.JWTSecret,
		"JWT_ISSUER":             &cfg.JWTIssuer,
		"JWT_AUDIENCE":           &cfg.JWTAudience,
		"JWT_LEEWAY":             &cfg.JWTLeeway,
		"ADMIN_EMAIL":            &cfg.AdminEmail,
		"ADMIN_PASSWORD":         &cfg.AdminPassword,
		"IVISIONARY_SERVICE_KEY": &cfg.ServiceKey,
		"FRONTEND_URL":           &cfg.FrontendURL,
		"SMTP_HOST":              &cfg.SMTPHost,
		"SMTP_USERNAME":          &cfg.SMTPUsername,
		"SMTP_PASSWORD":          &cfg.SMTPPassword,
		"SMTP_FROM":              &cfg.SMTPFrom,
		"MINIO_ENDPOINT":         &cfg.MinioEndpoint,
		"MINIO_ACCESS_KEY":       &cfg.MinioAccessKey,
		"MINIO_SECRET_KEY":       &cfg.MinioSecretKey,
		"MINIO_BUCKET":           &cfg.MinioBucket,
		"STRIPE_SECRET_KEY":      &cfg.StripeSecretKey,
		"STRIPE_PUBLISHABLE_KEY": &cfg.StripePublishableKey,
		"CLOUDFLARE_ACCOUNT_ID":  &cfg.CloudflareAccountID,
		"CLOUDFLARE_API_TOKEN":   &cfg.CloudflareAPIToken,
		"IP_LOOKUP_URL":          &cfg.IPLookupURL,
		"AUDIT_SINK":             &cfg.AuditSink,
		"AUDIT_SINK_URL":         &cfg.AuditSinkURL,
		"AUDIT_STREAM":           &cfg.AuditStream,
		"AMQP_URL":               &cfg.AMQPURL,
		"AUDIT_QUEUE":            &cfg.AuditQueue,
		"SENTRY_DSN":             &cfg.SentryDSN,
	}
	for key, dst := range overrides {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitCSV(v)
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SMTPPort = n
		}
	}
	if v := os.Getenv("SMTP_TLS"); v == "true" {
		cfg.SMTPTLS = true
	}
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	if v := os.Getenv("LOGIN_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LoginRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("REGISTER_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RegisterRateLimitPerMinute = n
		}
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.AdminEmail == "" {
		cfg.AdminEmail = "admin@example.es"
	}
	if cfg.AdminPassword == "" {
		cfg.AdminPassword = "admin"
	}
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = "http://localhost:5173"
	}
	if cfg.AuditSink == "" {
		cfg.AuditSink = AuditSinkNone
	}
	cfg.AuditSink = strings.ToLower(strings.TrimSpace(cfg.AuditSink))
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if len(strings.TrimSpace(cfg.JWTSecret)) < 16 {
		return errors.New("config: jwtSecret must be at least 16 characters (set JWT_SECRET)")
	}
	if cfg.IsProduction() {
		if cfg.DatabaseURL == "" {
			return errors.New("config: databaseURL is required in production")
		}
		if cfg.RedisAddr == "" {
			return errors.New("config: redisAddr is required in production")
		}
	}
	if cfg.LoginRateLimitPerMinute < 0 || cfg.RegisterRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	switch cfg.AuditSink {
	case AuditSinkNone:
	case AuditSinkHTTP:
		if cfg.AuditSinkURL == "" {
			return errors.New("config: auditSinkURL is required for the http audit sink")
		}
	case AuditSinkRedis:
		if cfg.RedisAddr == "" {
			return errors.New("config: redisAddr is required for the redis audit sink")
		}
	case AuditSinkAMQP:
		if cfg.AMQPURL == "" {
			return errors.New("config: amqpURL is required for the amqp audit sink")
		}
	default:
		return fmt.Errorf("config: unknown auditSink %q", cfg.AuditSink)
	}
	return nil
}

// ParseSessionTTL parses optional session TTL duration string.
// Empty means sessions never expire.
func ParseSessionTTL(ttlStr string) (time.Duration, error) {
	return parseOptionalDuration("sessionTTL", ttlStr)
}

// ParseJWTLeeway parses optional JWT leeway duration string.
func ParseJWTLeeway(leewayStr string) (time.Duration, error) {
	return parseOptionalDuration("jwtLeeway", leewayStr)
}

func parseOptionalDuration(name, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", name, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("invalid %s duration: must be >= 0", name)
	}
	return dur, nil
}

func configPathFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("IVISIONARY_CONFIG")); v != "" {
		return v
	}
	return "config.yaml"
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
