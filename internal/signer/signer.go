// Package signer produces SigV4 presigned URLs for an S3-compatible endpoint.
// It performs no network I/O.
package signer

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/minio/minio-go/v7/pkg/s3utils"
	v4 "github.com/minio/minio-go/v7/pkg/signer"

	"github.com/uploadbroker/service/internal/apperr"
)

// Config describes the endpoint and long-lived credentials used for signing.
type Config struct {
	Endpoint      string // host[:port]
	UseSSL        bool
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	PathStyle     bool
	DefaultExpiry time.Duration
	MaxExpiry     time.Duration
}

// Request is a single URL to sign.
type Request struct {
	Method        string
	Key           string
	ContentType   string
	ContentLength int64
	Expires       time.Duration // zero selects the default expiry
	Query         url.Values    // extra query parameters, e.g. partNumber and uploadId
}

// Presigned is a signed URL and the lifetime it was signed for.
type Presigned struct {
	URL     string
	Method  string
	Expires time.Duration
}

// ExpiresIn returns the lifetime in whole seconds.
func (p *Presigned) ExpiresIn() int {
	return int(p.Expires / time.Second)
}

// Signer signs object-store requests. It is safe for concurrent use.
type Signer struct {
	cfg    Config
	scheme string
}

// New validates cfg and returns a Signer.
func New(cfg Config) (*Signer, error) {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"endpoint", cfg.Endpoint},
		{"bucket", cfg.Bucket},
		{"region", cfg.Region},
		{"access key", cfg.AccessKey},
		{"secret key", cfg.SecretKey},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.Config("signer: missing " + strings.Join(missing, ", "))
	}
	if cfg.DefaultExpiry <= 0 {
		cfg.DefaultExpiry = 300 * time.Second
	}
	if cfg.MaxExpiry <= 0 {
		cfg.MaxExpiry = cfg.DefaultExpiry
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return &Signer{cfg: cfg, scheme: scheme}, nil
}

// Bucket returns the bucket every URL is scoped to.
func (s *Signer) Bucket() string { return s.cfg.Bucket }

// Expiry resolves a requested lifetime in seconds against the configured
// default and maximum.
func (s *Signer) Expiry(seconds int) (time.Duration, error) {
	if seconds == 0 {
		return s.cfg.DefaultExpiry, nil
	}
	d := time.Duration(seconds) * time.Second
	if seconds < 0 || d > s.cfg.MaxExpiry {
		return 0, apperr.Validation("expiresIn", fmt.Sprintf("must be between 1 and %d seconds", int(s.cfg.MaxExpiry/time.Second)))
	}
	return d, nil
}

// Presign signs req and returns a URL valid for exactly req.Method on req.Key.
func (s *Signer) Presign(req Request) (*Presigned, error) {
	if err := ValidateKey(req.Key); err != nil {
		return nil, err
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	expires := req.Expires
	if expires == 0 {
		expires = s.cfg.DefaultExpiry
	}
	if expires < time.Second || expires > s.cfg.MaxExpiry {
		return nil, apperr.Validation("expiresIn", fmt.Sprintf("must be between 1 and %d seconds", int(s.cfg.MaxExpiry/time.Second)))
	}

	u := s.objectURL(req.Key)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	httpReq, err := http.NewRequest(req.Method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %q: %w", req.Key, err)
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if req.ContentLength > 0 {
		httpReq.Header.Set("Content-Length", strconv.FormatInt(req.ContentLength, 10))
	}

	signed := v4.PreSignV4(*httpReq, s.cfg.AccessKey, s.cfg.SecretKey, "", s.cfg.Region, int64(expires/time.Second))
	return &Presigned{URL: signed.URL.String(), Method: req.Method, Expires: expires}, nil
}

func (s *Signer) objectURL(key string) *url.URL {
	u := &url.URL{Scheme: s.scheme, Host: s.cfg.Endpoint}
	if s.cfg.PathStyle {
		u.Path = "/" + s.cfg.Bucket + "/" + key
	} else {
		u.Host = s.cfg.Bucket + "." + s.cfg.Endpoint
		u.Path = "/" + key
	}
	u.RawPath = s3utils.EncodePath(u.Path)
	return u
}

// ValidateKey rejects object keys the broker will not sign.
func ValidateKey(key string) error {
	switch {
	case key == "":
		return apperr.Missing("key")
	case len(key) > 1024:
		return apperr.Validation("key", "must be at most 1024 bytes")
	case strings.HasPrefix(key, "/"):
		return apperr.Validation("key", "must not start with '/'")
	case !utf8.ValidString(key):
		return apperr.Validation("key", "must be valid UTF-8")
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return apperr.Validation("key", "must not contain '..' segments")
		}
	}
	return nil
}
