package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uploadbroker/service/internal/config"
	"github.com/uploadbroker/service/internal/metrics"
	"github.com/uploadbroker/service/internal/multipart"
	"github.com/uploadbroker/service/internal/presign"
	"github.com/uploadbroker/service/internal/ratelimit"
	"github.com/uploadbroker/service/internal/response"
	"github.com/uploadbroker/service/internal/scan"
	"github.com/uploadbroker/service/internal/signer"
	"github.com/uploadbroker/service/internal/storage"
	"github.com/uploadbroker/service/internal/storage/storagetest"
)

type testEnv struct {
	handler http.Handler
	fake    *storagetest.Server
	redis   *miniredis.Miniredis
}

func newTestConfig(endpoint, redisAddr string) *config.Config {
	return &config.Config{
		Port:                 "0",
		AppEnv:               "test",
		RequestTimeout:       5 * time.Second,
		StorageEndpoint:      endpoint,
		StorageBucket:        "uploads",
		StorageRegion:        "us-east-1",
		StorageAccessKey:     "AKIDEXAMPLE",
		StorageSecretKey:     "secret",
		StoragePathStyle:     true,
		ScanStatusKey:        "scan-status",
		PresignDefaultExpiry: 300 * time.Second,
		PresignMaxExpiry:     time.Hour,
		MaxUploadBytes:       5 << 30,
		RedisAddr:            redisAddr,
		RateLimitRequests:    60,
		RateLimitWindow:      time.Minute,
		RateLimitPrefix:      "ratelimit",
		TrustedIPHeader:      "CF-Connecting-IP",
		CORSAllowedOrigins:   []string{"*"},
		AllowAnonymous:       true,
	}
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	fake := storagetest.NewServer("uploads")
	t.Cleanup(fake.Close)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := newTestConfig(fake.Endpoint(), mr.Addr())
	if mutate != nil {
		mutate(cfg)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	store, err := storage.NewMinioStorage(storage.Options{
		Endpoint:  cfg.StorageEndpoint,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Bucket:    cfg.StorageBucket,
		Region:    cfg.StorageRegion,
		PathStyle: cfg.StoragePathStyle,
	})
	require.NoError(t, err)

	sig, err := signer.New(signer.Config{
		Endpoint:      cfg.StorageEndpoint,
		Bucket:        cfg.StorageBucket,
		Region:        cfg.StorageRegion,
		AccessKey:     cfg.StorageAccessKey,
		SecretKey:     cfg.StorageSecretKey,
		PathStyle:     cfg.StoragePathStyle,
		DefaultExpiry: cfg.PresignDefaultExpiry,
		MaxExpiry:     cfg.PresignMaxExpiry,
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	gate := scan.NewGate(store, cfg.ScanStatusKey)
	limiter := ratelimit.New(ratelimit.NewRedisStore(client, cfg.RateLimitPrefix, cfg.RateLimitWindow))

	h := NewRouter(Deps{
		Config:    cfg,
		Presign:   presign.NewHandler(presign.NewService(sig, gate, nil, m, cfg.MaxUploadBytes)),
		Multipart: multipart.NewHandler(multipart.NewService(store, sig, nil, m)),
		Limiter:   limiter,
		Metrics:   m,
		Gatherer:  reg,
		Redis:     PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() }),
	})

	return &testEnv{handler: h, fake: fake, redis: mr}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func putTo(t *testing.T, rawURL, contentType string, data []byte) string {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, rawURL, bytes.NewReader(data))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return resp.Header.Get("ETag")
}

func TestUploadScanDownloadScenario(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/s3/presign-put", `{"key":"uploads/a.pdf","contentType":"application/pdf"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	put := decode(t, rec)
	assert.Equal(t, "uploads/a.pdf", put["key"])
	assert.Equal(t, "uploads", put["bucket"])
	assert.EqualValues(t, 300, put["expiresIn"])
	assert.Contains(t, put["url"], "/uploads/uploads/a.pdf?")

	putTo(t, put["url"].(string), "application/pdf", []byte("%PDF-1.7"))

	// No verdict yet.
	rec = env.do(t, http.MethodPost, "/s3/presign-get", `{"key":"uploads/a.pdf"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "pending", decode(t, rec)["error"])

	env.fake.SetMetadata("uploads/a.pdf", "scan-status", "pending")
	rec = env.do(t, http.MethodPost, "/s3/presign", `{"key":"uploads/a.pdf"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotContains(t, rec.Body.String(), "url")

	env.fake.SetMetadata("uploads/a.pdf", "scan-status", "clean")
	rec = env.do(t, http.MethodPost, "/s3/presign-get", `{"key":"uploads/a.pdf","expiresIn":120}`)
	require.Equal(t, http.StatusOK, rec.Code)
	get := decode(t, rec)
	assert.Equal(t, "uploads/a.pdf", get["key"])
	assert.EqualValues(t, 120, get["expiresIn"])
	assert.Contains(t, get["url"], "X-Amz-Signature=")

	env.fake.SetMetadata("uploads/a.pdf", "scan-status", "infected")
	rec = env.do(t, http.MethodPost, "/s3/presign-get", `{"key":"uploads/a.pdf"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "infected", decode(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/s3/presign-get", `{"key":"uploads/missing.pdf"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMultipartOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/s3/create", `{"key":"videos/talk.mp4","contentType":"video/mp4"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	uploadID := decode(t, rec)["uploadId"].(string)

	var parts []multipart.Part
	for i, chunk := range []string{"aaa", "bbb"} {
		body, _ := json.Marshal(map[string]interface{}{"key": "videos/talk.mp4", "uploadId": uploadID, "partNumber": i + 1})
		rec = env.do(t, http.MethodPost, "/s3/sign", string(body))
		require.Equal(t, http.StatusOK, rec.Code)
		signed := decode(t, rec)
		assert.EqualValues(t, i+1, signed["partNumber"])
		parts = append(parts, multipart.Part{PartNumber: i + 1, ETag: putTo(t, signed["url"].(string), "", []byte(chunk))})
	}

	body, _ := json.Marshal(map[string]interface{}{"key": "videos/talk.mp4", "uploadId": uploadID, "parts": parts})
	rec = env.do(t, http.MethodPost, "/s3/complete", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"ok":true,"key":"videos/talk.mp4"}`, rec.Body.String())

	data, ok := env.fake.Object("videos/talk.mp4")
	require.True(t, ok)
	assert.Equal(t, "aaabbb", string(data))

	// Retry and a stray abort both succeed.
	rec = env.do(t, http.MethodPost, "/s3/complete", string(body))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/s3/abort", `{"key":"videos/talk.mp4","uploadId":"`+uploadID+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestRateLimitPerClient(t *testing.T) {
	env := newTestEnv(t, nil)
	body := `{"key":"a.txt","contentType":"text/plain"}`

	for i := 1; i <= 60; i++ {
		rec := env.do(t, http.MethodPost, "/s3/presign-put", body, "CF-Connecting-IP", "198.51.100.1")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	rec := env.do(t, http.MethodPost, "/s3/presign-put", body, "CF-Connecting-IP", "198.51.100.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decode(t, rec)["error"])
	assert.Equal(t, "60", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Another client has its own budget.
	rec = env.do(t, http.MethodPost, "/s3/presign-put", body, "CF-Connecting-IP", "198.51.100.2")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "59", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestRedisOutagePolicy(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fake.PutObject("clean.pdf", []byte("x"), map[string]string{"scan-status": "clean"})
	env.redis.Close()

	rec := env.do(t, http.MethodPost, "/s3/presign-put", `{"key":"a.txt","contentType":"text/plain"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", decode(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/s3/presign-get", `{"key":"clean.pdf"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStoreTimeout(t *testing.T) {
	release := make(chan struct{})
	stalled := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(stalled.Close)
	t.Cleanup(func() { close(release) })

	env := newTestEnv(t, func(c *config.Config) {
		c.StorageEndpoint = strings.TrimPrefix(stalled.URL, "http://")
		c.RequestTimeout = 200 * time.Millisecond
	})

	start := time.Now()
	rec := env.do(t, http.MethodPost, "/s3/presign-get", `{"key":"a.pdf"}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "timeout", decode(t, rec)["error"])
	assert.Less(t, time.Since(start), 5*time.Second)

	rec = env.do(t, http.MethodPost, "/s3/create", `{"key":"a.bin","contentType":"text/plain"}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "timeout", decode(t, rec)["error"])
}

func TestMalformedJSON(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/s3/presign-put", "/s3/presign-get", "/s3/create", "/s3/sign", "/s3/complete", "/s3/abort"} {
		rec := env.do(t, http.MethodPost, path, `{"key":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "invalid_json", decode(t, rec)["error"], path)
	}

	rec := env.do(t, http.MethodPost, "/s3/presign-put", `{"contentType":"text/plain"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["message"], "key")

	big := `{"key":"` + strings.Repeat("a", response.MaxBodyBytes) + `"}`
	rec = env.do(t, http.MethodPost, "/s3/presign-put", big)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreflight(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/s3/presign-put", "/s3/complete", "/anything/else", "/health"} {
		rec := env.do(t, http.MethodOptions, path, "",
			"Origin", "https://app.example.com",
			"Access-Control-Request-Method", "POST",
		)
		assert.Equal(t, http.StatusNoContent, rec.Code, path)
		assert.Empty(t, rec.Body.Bytes(), path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), path)
		assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"), path)
		assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"), path)
		assert.NotEmpty(t, rec.Header().Get("Access-Control-Max-Age"), path)
	}
}

func TestRoutingErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["error"])

	rec = env.do(t, http.MethodGet, "/s3/presign-put", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method_not_allowed", decode(t, rec)["error"])
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","redis":"ok"}`, rec.Body.String())

	env.do(t, http.MethodPost, "/s3/presign-put", `{"key":"a.txt","contentType":"text/plain"}`)

	rec = env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `upload_broker_presigned_urls_total{operation="put"} 1`)
	assert.Contains(t, rec.Body.String(), `route="/s3/presign-put"`)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.AuthJWTSecret = "secret"
		c.AllowAnonymous = false
	})

	rec := env.do(t, http.MethodPost, "/s3/presign-put", `{"key":"a.txt","contentType":"text/plain"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodOptions, "/s3/presign-put", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "Content-Type, Authorization", rec.Header().Get("Access-Control-Allow-Headers"))

	rec = env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
