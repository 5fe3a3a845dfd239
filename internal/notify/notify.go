// Package notify sends best-effort event notifications to an outbound webhook.
// Delivery never blocks or fails the request that triggered it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uploadbroker/service/internal/metrics"
)

// Event types.
const (
	UploadPresigned = "upload.presigned"
	UploadCompleted = "upload.completed"
)

// Event is the JSON payload posted to the webhook.
type Event struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	Key    string    `json:"key"`
	Bucket string    `json:"bucket"`
	At     time.Time `json:"at"`
}

// Notifier publishes events.
type Notifier interface {
	Notify(eventType, key string)
}

// Nop discards every event.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(string, string) {}

// Webhook posts events as JSON to a URL in a background goroutine.
type Webhook struct {
	url     string
	bucket  string
	client  *http.Client
	logger  *zap.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewWebhook returns a Webhook notifier. A nil client uses http.DefaultClient.
func NewWebhook(url, bucket string, client *http.Client, logger *zap.Logger, m *metrics.Metrics) *Webhook {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Webhook{url: url, bucket: bucket, client: client, logger: logger, metrics: m, timeout: 5 * time.Second}
}

// Notify schedules delivery of one event and returns immediately.
func (w *Webhook) Notify(eventType, key string) {
	ev := Event{
		ID:     uuid.NewString(),
		Type:   eventType,
		Key:    key,
		Bucket: w.bucket,
		At:     time.Now().UTC(),
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()

		if err := w.send(ctx, ev); err != nil {
			w.metrics.Notify.WithLabelValues("failed").Inc()
			w.logger.Warn("notification failed", zap.String("type", ev.Type), zap.String("key", ev.Key), zap.Error(err))
			return
		}
		w.metrics.Notify.WithLabelValues("sent").Inc()
	}()
}

// Wait blocks until in-flight deliveries finish.
func (w *Webhook) Wait() {
	w.wg.Wait()
}

func (w *Webhook) send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
