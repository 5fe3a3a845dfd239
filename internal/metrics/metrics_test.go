package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Presigned.WithLabelValues("put").Inc()
	m.Multipart.WithLabelValues("complete", "ok").Add(2)

	n, err := testutil.GatherAndCount(reg, "upload_broker_presigned_urls_total", "upload_broker_multipart_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Multipart.WithLabelValues("complete", "ok")))

	_, err = New(reg)
	assert.Error(t, err, "registering twice must fail")
}

func TestNewNopIsIndependent(t *testing.T) {
	a, b := NewNop(), NewNop()
	a.Notify.WithLabelValues("sent").Inc()
	assert.Equal(t, float64(0), testutil.ToFloat64(b.Notify.WithLabelValues("sent")))
}
