package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uploadbroker/service/internal/apperr"
)

const (
	testAccessKey = "AKIDEXAMPLE"
	testSecretKey = "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY"
)

func newTestSigner(t *testing.T, pathStyle bool) *Signer {
	t.Helper()
	s, err := New(Config{
		Endpoint:      "s3.example.test",
		UseSSL:        true,
		Bucket:        "uploads",
		Region:        "us-east-1",
		AccessKey:     testAccessKey,
		SecretKey:     testSecretKey,
		PathStyle:     pathStyle,
		DefaultExpiry: 300 * time.Second,
		MaxExpiry:     time.Hour,
	})
	require.NoError(t, err)
	return s
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

// verify recomputes the SigV4 query signature of rawURL as a server would for
// an incoming request with the given method and headers.
func verify(t *testing.T, method, rawURL string, headers http.Header) bool {
	t.Helper()

	u, err := url.Parse(rawURL)
	require.NoError(t, err)

	q := u.Query()
	signature := q.Get("X-Amz-Signature")
	q.Del("X-Amz-Signature")

	signedHeaders := strings.Split(q.Get("X-Amz-SignedHeaders"), ";")
	sort.Strings(signedHeaders)
	var canonicalHeaders strings.Builder
	for _, name := range signedHeaders {
		value := headers.Get(name)
		if name == "host" {
			value = u.Host
		}
		canonicalHeaders.WriteString(name + ":" + strings.TrimSpace(value) + "\n")
	}

	canonicalRequest := strings.Join([]string{
		method,
		u.EscapedPath(),
		strings.ReplaceAll(q.Encode(), "+", "%20"),
		canonicalHeaders.String(),
		strings.Join(signedHeaders, ";"),
		"UNSIGNED-PAYLOAD",
	}, "\n")
	crHash := sha256.Sum256([]byte(canonicalRequest))

	credential := strings.Split(q.Get("X-Amz-Credential"), "/")
	require.Len(t, credential, 5)
	scope := strings.Join(credential[1:], "/")
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		q.Get("X-Amz-Date"),
		scope,
		hex.EncodeToString(crHash[:]),
	}, "\n")

	kDate := hmacSHA256([]byte("AWS4"+testSecretKey), credential[1])
	kRegion := hmacSHA256(kDate, credential[2])
	kService := hmacSHA256(kRegion, credential[3])
	kSigning := hmacSHA256(kService, "aws4_request")
	computed := hex.EncodeToString(hmacSHA256(kSigning, stringToSign))

	return hmac.Equal([]byte(computed), []byte(signature))
}

func TestNewRequiresConfiguration(t *testing.T) {
	_, err := New(Config{Endpoint: "s3.example.test", Bucket: "uploads"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfig))
	assert.Contains(t, err.Error(), "missing region, access key, secret key")

	_, err = New(Config{Region: "auto", AccessKey: "AKIDEXAMPLE", SecretKey: "secret"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing endpoint, bucket")
}

func TestPresignPutScopedToMethodAndKey(t *testing.T) {
	s := newTestSigner(t, true)

	for _, key := range []string{"uploads/a.pdf", "uploads/b.pdf", "reports/2026/q3.csv"} {
		p, err := s.Presign(Request{Method: http.MethodPut, Key: key, ContentType: "application/pdf"})
		require.NoError(t, err)

		u, err := url.Parse(p.URL)
		require.NoError(t, err)
		assert.Equal(t, "https", u.Scheme)
		assert.Equal(t, "s3.example.test", u.Host)
		assert.Equal(t, "/uploads/"+key, u.Path)
		assert.Equal(t, "300", u.Query().Get("X-Amz-Expires"))
		assert.Equal(t, "AWS4-HMAC-SHA256", u.Query().Get("X-Amz-Algorithm"))
		assert.True(t, strings.HasPrefix(u.Query().Get("X-Amz-Credential"), testAccessKey+"/"))
		assert.Equal(t, "content-type;host", u.Query().Get("X-Amz-SignedHeaders"))
		assert.Equal(t, 300, p.ExpiresIn())

		headers := http.Header{"Content-Type": []string{"application/pdf"}}
		assert.True(t, verify(t, http.MethodPut, p.URL, headers), "PUT must verify")
		assert.False(t, verify(t, http.MethodGet, p.URL, headers), "GET must not verify")

		wrongType := http.Header{"Content-Type": []string{"text/html"}}
		assert.False(t, verify(t, http.MethodPut, p.URL, wrongType), "content type is signed")
	}
}

func TestPresignSignsContentLength(t *testing.T) {
	s := newTestSigner(t, true)

	p, err := s.Presign(Request{Method: http.MethodPut, Key: "uploads/a.pdf", ContentType: "application/pdf", ContentLength: 1024})
	require.NoError(t, err)

	u, err := url.Parse(p.URL)
	require.NoError(t, err)
	assert.Equal(t, "content-length;content-type;host", u.Query().Get("X-Amz-SignedHeaders"))

	headers := http.Header{"Content-Type": []string{"application/pdf"}, "Content-Length": []string{"1024"}}
	assert.True(t, verify(t, http.MethodPut, p.URL, headers))
	headers.Set("Content-Length", "2048")
	assert.False(t, verify(t, http.MethodPut, p.URL, headers))
}

func TestPresignPartIncludesUploadQuery(t *testing.T) {
	s := newTestSigner(t, false)

	p, err := s.Presign(Request{
		Method: http.MethodPut,
		Key:    "big/video.mp4",
		Query:  url.Values{"partNumber": {"3"}, "uploadId": {"abc-123"}},
	})
	require.NoError(t, err)

	u, err := url.Parse(p.URL)
	require.NoError(t, err)
	assert.Equal(t, "uploads.s3.example.test", u.Host)
	assert.Equal(t, "/big/video.mp4", u.Path)
	assert.Equal(t, "3", u.Query().Get("partNumber"))
	assert.Equal(t, "abc-123", u.Query().Get("uploadId"))
	assert.True(t, verify(t, http.MethodPut, p.URL, http.Header{}))
}

func TestPresignValidation(t *testing.T) {
	s := newTestSigner(t, true)

	_, err := s.Presign(Request{Method: http.MethodGet})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Contains(t, err.Error(), "key")

	_, err = s.Presign(Request{Method: http.MethodGet, Key: "a", Expires: 2 * time.Hour})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestExpiry(t *testing.T) {
	s := newTestSigner(t, true)

	d, err := s.Expiry(0)
	require.NoError(t, err)
	assert.Equal(t, 300*time.Second, d)

	d, err = s.Expiry(60)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)

	_, err = s.Expiry(-1)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = s.Expiry(3601)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestValidateKey(t *testing.T) {
	require.NoError(t, ValidateKey("uploads/a.pdf"))
	for _, key := range []string{"", "/abs", "a/../b", strings.Repeat("k", 1025), "bad\xff"} {
		err := ValidateKey(key)
		assert.True(t, apperr.Is(err, apperr.KindValidation), "%q", key)
	}
}
