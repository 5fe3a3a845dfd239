package presign

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uploadbroker/service/internal/response"
)

func TestHandlerPresignPut(t *testing.T) {
	h := NewHandler(newTestService(t, &fakeStore{}, nil, nil))

	req := httptest.NewRequest(http.MethodPost, "/s3/presign-put",
		strings.NewReader(`{"key":"uploads/a.pdf","contentType":"application/pdf"}`))
	rec := httptest.NewRecorder()
	h.PresignPut(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "uploads/a.pdf", body["key"])
	assert.Equal(t, "uploads", body["bucket"])
	assert.Equal(t, "application/pdf", body["contentType"])
	assert.EqualValues(t, 300, body["expiresIn"])
	assert.Contains(t, body["url"], "X-Amz-Signature=")
}

func TestHandlerErrors(t *testing.T) {
	store := &fakeStore{meta: map[string]map[string]string{
		"infected.pdf": {"scan-status": "infected"},
		"pending.pdf":  {"scan-status": "pending"},
	}}
	h := NewHandler(newTestService(t, store, nil, nil))

	tests := []struct {
		name    string
		handler http.HandlerFunc
		body    string
		status  int
		code    string
	}{
		{"malformed json", h.PresignPut, `{"key":`, http.StatusBadRequest, "invalid_json"},
		{"trailing data", h.PresignPut, `{"key":"a"} {}`, http.StatusBadRequest, "invalid_json"},
		{"missing key", h.PresignPut, `{"contentType":"text/plain"}`, http.StatusBadRequest, "bad_request"},
		{"pending", h.PresignGet, `{"key":"pending.pdf"}`, http.StatusAccepted, "pending"},
		{"infected", h.PresignGet, `{"key":"infected.pdf"}`, http.StatusForbidden, "infected"},
		{"missing object", h.PresignGet, `{"key":"nope.pdf"}`, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)))

			assert.Equal(t, tt.status, rec.Code)
			var body response.ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error)
			assert.NotEmpty(t, body.Message)
		})
	}
}
