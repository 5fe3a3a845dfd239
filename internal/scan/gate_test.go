package scan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uploadbroker/service/internal/apperr"
	"github.com/uploadbroker/service/internal/storage"
)

type fakeStater struct {
	objects map[string]map[string]string
	err     error
	calls   int
}

func (f *fakeStater) Stat(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	meta, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.ObjectInfo{Key: key, Metadata: meta}, nil
}

func TestParseVerdict(t *testing.T) {
	assert.Equal(t, VerdictClean, ParseVerdict("clean"))
	assert.Equal(t, VerdictClean, ParseVerdict(" CLEAN "))
	assert.Equal(t, VerdictInfected, ParseVerdict("infected"))
	assert.Equal(t, VerdictPending, ParseVerdict("pending"))
	assert.Equal(t, VerdictPending, ParseVerdict(""))
	assert.Equal(t, VerdictPending, ParseVerdict("quarantined"))
}

func TestAuthorize(t *testing.T) {
	store := &fakeStater{objects: map[string]map[string]string{
		"clean.pdf":    {"scan-status": "clean"},
		"infected.pdf": {"scan-status": "infected"},
		"pending.pdf":  {"scan-status": "pending"},
		"untagged.pdf": {},
		"weird.pdf":    {"scan-status": "skipped"},
	}}
	gate := NewGate(store, "Scan-Status")
	ctx := context.Background()

	v, err := gate.Authorize(ctx, "clean.pdf")
	require.NoError(t, err)
	assert.Equal(t, VerdictClean, v)

	v, err = gate.Authorize(ctx, "infected.pdf")
	assert.Equal(t, VerdictInfected, v)
	assert.True(t, apperr.Is(err, apperr.KindInfected))

	for _, key := range []string{"pending.pdf", "untagged.pdf", "weird.pdf"} {
		v, err = gate.Authorize(ctx, key)
		assert.Equal(t, VerdictPending, v, key)
		assert.True(t, apperr.Is(err, apperr.KindScanPending), key)
	}

	_, err = gate.Authorize(ctx, "missing.pdf")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCheckNeverCaches(t *testing.T) {
	store := &fakeStater{objects: map[string]map[string]string{"a": {}}}
	gate := NewGate(store, "")

	v, err := gate.Check(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, VerdictPending, v)

	store.objects["a"]["scan-status"] = "clean"
	v, err = gate.Check(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, VerdictClean, v)
	assert.Equal(t, 2, store.calls)
}

func TestCheckUpstreamFailure(t *testing.T) {
	gate := NewGate(&fakeStater{err: errors.New("dial tcp: refused")}, "")

	_, err := gate.Check(context.Background(), "a")
	assert.True(t, apperr.Is(err, apperr.KindUpstream))

	_, err = gate.Check(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
