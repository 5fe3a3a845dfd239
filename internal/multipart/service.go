// Package multipart coordinates S3 multipart uploads on behalf of clients.
// It keeps no session state; the object store is the source of truth.
package multipart

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/uploadbroker/service/internal/apperr"
	"github.com/uploadbroker/service/internal/logger"
	"github.com/uploadbroker/service/internal/metrics"
	"github.com/uploadbroker/service/internal/notify"
	"github.com/uploadbroker/service/internal/signer"
	"github.com/uploadbroker/service/internal/storage"
)

// MaxPartNumber is the highest part number S3 accepts.
const MaxPartNumber = 10000

// Part is one uploaded part as reported by the client.
type Part struct {
	PartNumber int    `json:"PartNumber" example:"1"`
	ETag       string `json:"ETag"       example:"\"9b2cf535f27731c974343645a3985328\""`
}

// CreateResult identifies a new multipart upload.
type CreateResult struct {
	UploadID string `json:"uploadId"`
	Key      string `json:"key"`
}

// SignResult is a presigned URL for one part.
type SignResult struct {
	URL        string `json:"url"`
	PartNumber int    `json:"partNumber"`
}

// CompleteResult acknowledges a completed upload.
type CompleteResult struct {
	OK  bool   `json:"ok"`
	Key string `json:"key"`
}

// AbortResult acknowledges an aborted upload.
type AbortResult struct {
	OK bool `json:"ok"`
}

// Service contains the multipart business logic.
type Service struct {
	store    storage.ObjectStore
	signer   *signer.Signer
	notifier notify.Notifier
	metrics  *metrics.Metrics
}

// NewService creates a new multipart Service.
func NewService(store storage.ObjectStore, s *signer.Signer, n notify.Notifier, m *metrics.Metrics) *Service {
	if n == nil {
		n = notify.Nop{}
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Service{store: store, signer: s, notifier: n, metrics: m}
}

// Create starts a multipart upload for key.
func (s *Service) Create(ctx context.Context, key, contentType string) (*CreateResult, error) {
	if err := signer.ValidateKey(key); err != nil {
		return nil, err
	}
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return nil, apperr.Missing("contentType")
	}

	uploadID, err := s.store.CreateMultipartUpload(ctx, key, contentType)
	if err != nil {
		s.observe("create", "error")
		return nil, apperr.Upstream("create multipart upload", err)
	}
	s.observe("create", "ok")

	return &CreateResult{UploadID: uploadID, Key: key}, nil
}

// SignPart presigns a PUT of one part. The upload ID is not checked against
// the store; a stale ID fails when the client uses the URL.
func (s *Service) SignPart(ctx context.Context, key, uploadID string, partNumber int) (*SignResult, error) {
	if err := signer.ValidateKey(key); err != nil {
		return nil, err
	}
	if uploadID == "" {
		return nil, apperr.Missing("uploadId")
	}
	if partNumber < 1 || partNumber > MaxPartNumber {
		return nil, apperr.Validation("partNumber", fmt.Sprintf("must be between 1 and %d", MaxPartNumber))
	}

	p, err := s.signer.Presign(signer.Request{
		Method: http.MethodPut,
		Key:    key,
		Query: url.Values{
			"partNumber": {strconv.Itoa(partNumber)},
			"uploadId":   {uploadID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sign part %d: %w", partNumber, err)
	}
	s.observe("sign", "ok")
	s.metrics.Presigned.WithLabelValues("part").Inc()

	return &SignResult{URL: p.URL, PartNumber: partNumber}, nil
}

// Complete stitches parts into the final object. Parts are forwarded in
// ascending order. A retry of an upload that already completed with the same
// parts succeeds; an aborted or unknown upload is reported as not found.
func (s *Service) Complete(ctx context.Context, key, uploadID string, parts []Part) (*CompleteResult, error) {
	if err := signer.ValidateKey(key); err != nil {
		return nil, err
	}
	if uploadID == "" {
		return nil, apperr.Missing("uploadId")
	}
	sorted, err := normalizeParts(parts)
	if err != nil {
		return nil, err
	}

	etag, err := s.store.CompleteMultipartUpload(ctx, key, uploadID, sorted)
	switch {
	case errors.Is(err, storage.ErrNoSuchUpload):
		// Only an object assembled from exactly these parts proves an earlier
		// complete succeeded. An aborted or unknown upload leaves whatever was
		// stored before, whose ETag will not match.
		info, statErr := s.store.Stat(ctx, key)
		if statErr != nil && !errors.Is(statErr, storage.ErrNotFound) {
			s.observe("complete", "error")
			return nil, apperr.Upstream("complete multipart upload", statErr)
		}
		if statErr != nil || !sameETag(info.ETag, MultipartETag(sorted)) {
			s.observe("complete", "error")
			return nil, apperr.NotFound("upload not found")
		}
		logger.WithContext(ctx).Info("complete retried after success",
			zap.String("key", key),
			zap.String("upload_id", uploadID),
		)
		s.observe("complete", "retried")
		return &CompleteResult{OK: true, Key: key}, nil
	case err != nil:
		s.observe("complete", "error")
		return nil, apperr.Upstream("complete multipart upload", err)
	}

	logger.WithContext(ctx).Info("multipart upload completed",
		zap.String("key", key),
		zap.Int("parts", len(sorted)),
		zap.String("etag", etag),
	)
	s.observe("complete", "ok")
	s.notifier.Notify(notify.UploadCompleted, key)

	return &CompleteResult{OK: true, Key: key}, nil
}

// Abort discards an upload. Unknown uploads are logged and treated as aborted.
func (s *Service) Abort(ctx context.Context, key, uploadID string) (*AbortResult, error) {
	if err := signer.ValidateKey(key); err != nil {
		return nil, err
	}
	if uploadID == "" {
		return nil, apperr.Missing("uploadId")
	}

	err := s.store.AbortMultipartUpload(ctx, key, uploadID)
	switch {
	case errors.Is(err, storage.ErrNoSuchUpload):
		logger.WithContext(ctx).Warn("abort of unknown upload",
			zap.String("key", key),
			zap.String("upload_id", uploadID),
		)
		s.observe("abort", "missing")
	case err != nil:
		s.observe("abort", "error")
		return nil, apperr.Upstream("abort multipart upload", err)
	default:
		s.observe("abort", "ok")
	}

	return &AbortResult{OK: true}, nil
}

func (s *Service) observe(operation, result string) {
	s.metrics.Multipart.WithLabelValues(operation, result).Inc()
}

func normalizeParts(parts []Part) ([]storage.Part, error) {
	if len(parts) == 0 {
		return nil, apperr.Validation("parts", "must not be empty")
	}

	seen := make(map[int]struct{}, len(parts))
	out := make([]storage.Part, 0, len(parts))
	for i, p := range parts {
		if p.PartNumber < 1 || p.PartNumber > MaxPartNumber {
			return nil, apperr.Validation(fmt.Sprintf("parts[%d].PartNumber", i), fmt.Sprintf("must be between 1 and %d", MaxPartNumber))
		}
		if strings.TrimSpace(p.ETag) == "" {
			return nil, apperr.Missing(fmt.Sprintf("parts[%d].ETag", i))
		}
		if _, dup := seen[p.PartNumber]; dup {
			return nil, apperr.Validation("parts", fmt.Sprintf("duplicate part number %d", p.PartNumber))
		}
		seen[p.PartNumber] = struct{}{}
		out = append(out, storage.Part{PartNumber: p.PartNumber, ETag: p.ETag})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].PartNumber < out[j].PartNumber })
	return out, nil
}

// MultipartETag returns the ETag S3 assigns to an object completed from parts:
// the MD5 of the concatenated binary part digests, then "-" and the part count.
// It returns "" when a part ETag is not a hex MD5 digest.
func MultipartETag(parts []storage.Part) string {
	digests := make([]byte, 0, len(parts)*md5.Size)
	for _, p := range parts {
		raw, err := hex.DecodeString(strings.Trim(p.ETag, `"`))
		if err != nil || len(raw) != md5.Size {
			return ""
		}
		digests = append(digests, raw...)
	}
	sum := md5.Sum(digests)
	return fmt.Sprintf("%s-%d", hex.EncodeToString(sum[:]), len(parts))
}

func sameETag(stored, expected string) bool {
	return expected != "" && strings.EqualFold(strings.Trim(stored, `"`), expected)
}
