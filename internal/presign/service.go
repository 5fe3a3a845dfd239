// Package presign issues single-shot upload and download URLs.
package presign

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/uploadbroker/service/internal/apperr"
	"github.com/uploadbroker/service/internal/metrics"
	"github.com/uploadbroker/service/internal/notify"
	"github.com/uploadbroker/service/internal/scan"
	"github.com/uploadbroker/service/internal/signer"
)

// PutInput is a request for an upload URL.
type PutInput struct {
	Key           string
	ContentType   string
	ContentLength int64
	ExpiresIn     int
}

// PutResult is a signed upload URL.
type PutResult struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	Bucket      string `json:"bucket"`
	ContentType string `json:"contentType"`
	ExpiresIn   int    `json:"expiresIn"`
}

// GetInput is a request for a download URL.
type GetInput struct {
	Key       string
	ExpiresIn int
}

// GetResult is a signed download URL.
type GetResult struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	ExpiresIn int    `json:"expiresIn"`
}

// Service contains the presign business logic.
type Service struct {
	signer         *signer.Signer
	gate           *scan.Gate
	notifier       notify.Notifier
	metrics        *metrics.Metrics
	maxUploadBytes int64
}

// NewService creates a new presign Service.
func NewService(s *signer.Signer, gate *scan.Gate, n notify.Notifier, m *metrics.Metrics, maxUploadBytes int64) *Service {
	if n == nil {
		n = notify.Nop{}
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Service{signer: s, gate: gate, notifier: n, metrics: m, maxUploadBytes: maxUploadBytes}
}

// PresignPut returns a URL allowing exactly one PUT of in.Key with in.ContentType.
func (s *Service) PresignPut(ctx context.Context, in PutInput) (*PutResult, error) {
	if err := signer.ValidateKey(in.Key); err != nil {
		return nil, err
	}
	contentType := strings.TrimSpace(in.ContentType)
	if contentType == "" {
		return nil, apperr.Missing("contentType")
	}
	if in.ContentLength < 0 {
		return nil, apperr.Validation("contentLength", "must not be negative")
	}
	if s.maxUploadBytes > 0 && in.ContentLength > s.maxUploadBytes {
		return nil, apperr.Validation("contentLength", fmt.Sprintf("must not exceed %d bytes", s.maxUploadBytes))
	}
	expires, err := s.signer.Expiry(in.ExpiresIn)
	if err != nil {
		return nil, err
	}

	p, err := s.signer.Presign(signer.Request{
		Method:        http.MethodPut,
		Key:           in.Key,
		ContentType:   contentType,
		ContentLength: in.ContentLength,
		Expires:       expires,
	})
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}

	s.metrics.Presigned.WithLabelValues("put").Inc()
	s.notifier.Notify(notify.UploadPresigned, in.Key)

	return &PutResult{
		URL:         p.URL,
		Key:         in.Key,
		Bucket:      s.signer.Bucket(),
		ContentType: contentType,
		ExpiresIn:   p.ExpiresIn(),
	}, nil
}

// PresignGet returns a download URL for in.Key only when its scan verdict is
// clean. Pending and infected objects yield the gate's error and no URL.
func (s *Service) PresignGet(ctx context.Context, in GetInput) (*GetResult, error) {
	if err := signer.ValidateKey(in.Key); err != nil {
		return nil, err
	}
	expires, err := s.signer.Expiry(in.ExpiresIn)
	if err != nil {
		return nil, err
	}

	verdict, err := s.gate.Authorize(ctx, in.Key)
	switch {
	case apperr.Is(err, apperr.KindInfected), apperr.Is(err, apperr.KindScanPending):
		s.metrics.ScanResults.WithLabelValues(verdict.String()).Inc()
		return nil, err
	case err != nil:
		return nil, err
	}
	s.metrics.ScanResults.WithLabelValues(verdict.String()).Inc()

	p, err := s.signer.Presign(signer.Request{
		Method:  http.MethodGet,
		Key:     in.Key,
		Expires: expires,
	})
	if err != nil {
		return nil, fmt.Errorf("presign get: %w", err)
	}

	s.metrics.Presigned.WithLabelValues("get").Inc()

	return &GetResult{URL: p.URL, Key: in.Key, ExpiresIn: p.ExpiresIn()}, nil
}
