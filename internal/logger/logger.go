// Package logger builds the process-wide zap logger.
package logger

import (
	"context"
	"sync"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	lg   *zap.Logger
	once sync.Once
)

// New returns a singleton zap.Logger configured for structured logging.
// Outside production it logs human-readable coloured lines.
func New(production bool) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		if !production {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}

		lg, err = cfg.Build()
	})

	return lg, err
}

// WithContext attaches request scoped fields to the logger.
func WithContext(ctx context.Context) *zap.Logger {
	base := lg
	if base == nil {
		base = zap.NewNop()
	}
	if ctx == nil {
		return base
	}
	if id := middleware.GetReqID(ctx); id != "" {
		return base.With(zap.String("request_id", id))
	}
	return base
}

// MaskIP keeps the first two octets of an IPv4 address, or the first four
// groups of an IPv6 address.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}
	dots, colons := 0, 0
	for i := 0; i < len(ip); i++ {
		switch ip[i] {
		case '.':
			dots++
			if dots == 2 {
				return ip[:i] + ".*.*"
			}
		case ':':
			colons++
			if colons == 4 {
				return ip[:i] + ":*:*:*:*"
			}
		}
	}
	return "***"
}
