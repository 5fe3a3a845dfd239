//	@title			Upload Broker API
//	@version		1.0
//	@description	Issues presigned S3 URLs, coordinates multipart uploads and gates downloads on virus scan results.
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Optional JWT Bearer token. Format: **Bearer {token}**

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/uploadbroker/service/internal/config"
	"github.com/uploadbroker/service/internal/logger"
	"github.com/uploadbroker/service/internal/metrics"
	"github.com/uploadbroker/service/internal/multipart"
	"github.com/uploadbroker/service/internal/notify"
	"github.com/uploadbroker/service/internal/presign"
	"github.com/uploadbroker/service/internal/ratelimit"
	"github.com/uploadbroker/service/internal/scan"
	"github.com/uploadbroker/service/internal/server"
	"github.com/uploadbroker/service/internal/signer"
	"github.com/uploadbroker/service/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	lg, err := logger.New(cfg.IsProduction())
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		// The limiter applies its fail-open/fail-closed policy per request.
		lg.Warn("redis unreachable at startup", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	cancel()

	store, err := storage.NewMinioStorage(storage.Options{
		Endpoint:  cfg.StorageEndpoint,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Bucket:    cfg.StorageBucket,
		Region:    cfg.StorageRegion,
		UseSSL:    cfg.StorageUseSSL,
		PathStyle: cfg.StoragePathStyle,
	})
	if err != nil {
		lg.Fatal("object storage init failed", zap.Error(err))
	}

	sig, err := signer.New(signer.Config{
		Endpoint:      cfg.StorageEndpoint,
		UseSSL:        cfg.StorageUseSSL,
		Bucket:        cfg.StorageBucket,
		Region:        cfg.StorageRegion,
		AccessKey:     cfg.StorageAccessKey,
		SecretKey:     cfg.StorageSecretKey,
		PathStyle:     cfg.StoragePathStyle,
		DefaultExpiry: cfg.PresignDefaultExpiry,
		MaxExpiry:     cfg.PresignMaxExpiry,
	})
	if err != nil {
		lg.Fatal("signer init failed", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		lg.Fatal("metrics init failed", zap.Error(err))
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.NotifyWebhookURL != "" {
		hook := notify.NewWebhook(cfg.NotifyWebhookURL, cfg.StorageBucket, &http.Client{Timeout: 10 * time.Second}, lg, m)
		defer hook.Wait()
		notifier = hook
	}

	// Wire dependencies: store → service → handler
	gate := scan.NewGate(store, cfg.ScanStatusKey)
	limiter := ratelimit.New(ratelimit.NewRedisStore(rdb, cfg.RateLimitPrefix, cfg.RateLimitWindow))

	presignHandler := presign.NewHandler(presign.NewService(sig, gate, notifier, m, cfg.MaxUploadBytes))
	multipartHandler := multipart.NewHandler(multipart.NewService(store, sig, notifier, m))

	router := server.NewRouter(server.Deps{
		Config:    cfg,
		Presign:   presignHandler,
		Multipart: multipartHandler,
		Limiter:   limiter,
		Metrics:   m,
		Gatherer:  reg,
		Redis:     server.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.AppEnv),
			zap.String("bucket", cfg.StorageBucket),
			zap.Bool("auth", cfg.AuthEnabled()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		lg.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	lg.Info("server stopped")
}
