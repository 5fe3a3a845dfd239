// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Port           string
	AppEnv         string
	RequestTimeout time.Duration

	// Object storage (any S3-compatible provider)
	StorageEndpoint  string // host[:port], no scheme
	StorageUseSSL    bool
	StorageBucket    string
	StorageRegion    string
	StorageAccessKey string
	StorageSecretKey string
	StoragePathStyle bool

	ScanStatusKey string // user metadata key written by the antivirus scanner

	PresignDefaultExpiry time.Duration
	PresignMaxExpiry     time.Duration
	MaxUploadBytes       int64

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitPrefix   string

	// TrustedIPHeader names a client IP header set by a fronting proxy.
	// Leave empty unless that proxy overwrites the header on every request.
	TrustedIPHeader string

	CORSAllowedOrigins []string

	NotifyWebhookURL string // optional

	AuthJWTSecret  string
	AllowAnonymous bool
}

// Load reads configuration from a .env file (if present) and environment variables.
// It returns an error when required settings are missing or malformed.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config using lookup for every variable.
func FromEnv(lookup func(string) string) (*Config, error) {
	e := &env{lookup: lookup}

	cfg := &Config{
		Port:           e.str("PORT", "8080"),
		AppEnv:         e.str("APP_ENV", "development"),
		RequestTimeout: e.duration("REQUEST_TIMEOUT", 10*time.Second),

		StorageEndpoint:  e.str("STORAGE_ENDPOINT", ""),
		StorageUseSSL:    e.boolean("STORAGE_USE_SSL", true),
		StorageBucket:    e.str("STORAGE_BUCKET", ""),
		StorageRegion:    e.str("STORAGE_REGION", ""),
		StorageAccessKey: e.str("STORAGE_ACCESS_KEY", ""),
		StorageSecretKey: e.str("STORAGE_SECRET_KEY", ""),
		StoragePathStyle: e.boolean("STORAGE_PATH_STYLE", true),

		ScanStatusKey: e.str("SCAN_STATUS_KEY", "scan-status"),

		PresignDefaultExpiry: e.duration("PRESIGN_DEFAULT_EXPIRY", 300*time.Second),
		PresignMaxExpiry:     e.duration("PRESIGN_MAX_EXPIRY", time.Hour),
		MaxUploadBytes:       e.int64("MAX_UPLOAD_BYTES", 5<<30),

		RedisAddr:     e.str("REDIS_ADDR", ""),
		RedisPassword: e.str("REDIS_PASSWORD", ""),
		RedisDB:       int(e.int64("REDIS_DB", 0)),

		RateLimitRequests: int(e.int64("RATE_LIMIT_REQUESTS", 60)),
		RateLimitWindow:   e.duration("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitPrefix:   e.str("RATE_LIMIT_PREFIX", "ratelimit"),
		TrustedIPHeader:   e.str("TRUSTED_IP_HEADER", ""),

		CORSAllowedOrigins: e.list("CORS_ALLOWED_ORIGINS", []string{"*"}),

		NotifyWebhookURL: e.str("NOTIFY_WEBHOOK_URL", ""),

		AuthJWTSecret:  e.str("AUTH_JWT_SECRET", ""),
		AllowAnonymous: e.boolean("ALLOW_ANONYMOUS", true),
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every missing or inconsistent required setting.
func (c *Config) Validate() error {
	var errs []error
	required := map[string]string{
		"STORAGE_ENDPOINT":   c.StorageEndpoint,
		"STORAGE_BUCKET":     c.StorageBucket,
		"STORAGE_REGION":     c.StorageRegion,
		"STORAGE_ACCESS_KEY": c.StorageAccessKey,
		"STORAGE_SECRET_KEY": c.StorageSecretKey,
		"REDIS_ADDR":         c.RedisAddr,
	}
	for _, name := range []string{"STORAGE_ENDPOINT", "STORAGE_BUCKET", "STORAGE_REGION", "STORAGE_ACCESS_KEY", "STORAGE_SECRET_KEY", "REDIS_ADDR"} {
		if required[name] == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	if strings.Contains(c.StorageEndpoint, "://") {
		errs = append(errs, errors.New("STORAGE_ENDPOINT must be host[:port] without a scheme"))
	}
	if c.PresignDefaultExpiry <= 0 || c.PresignMaxExpiry <= 0 {
		errs = append(errs, errors.New("presign expiry settings must be positive"))
	}
	if c.PresignDefaultExpiry > c.PresignMaxExpiry {
		errs = append(errs, errors.New("PRESIGN_DEFAULT_EXPIRY must not exceed PRESIGN_MAX_EXPIRY"))
	}
	// S3 rejects presigned URLs valid for longer than seven days.
	if c.PresignMaxExpiry > 7*24*time.Hour {
		errs = append(errs, errors.New("PRESIGN_MAX_EXPIRY must not exceed 7 days"))
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("rate limit settings must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if !c.AllowAnonymous && c.AuthJWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required when ALLOW_ANONYMOUS=false"))
	}
	return errors.Join(errs...)
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// AuthEnabled reports whether bearer tokens are verified.
func (c *Config) AuthEnabled() bool {
	return c.AuthJWTSecret != ""
}

type env struct {
	lookup func(string) string
	errs   []error
}

func (e *env) str(key, fallback string) string {
	if v := strings.TrimSpace(e.lookup(key)); v != "" {
		return v
	}
	return fallback
}

func (e *env) boolean(key string, fallback bool) bool {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func (e *env) int64(key string, fallback int64) int64 {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

// duration accepts Go duration strings ("90s") or a bare number of seconds.
func (e *env) duration(key string, fallback time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func (e *env) list(key string, fallback []string) []string {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
