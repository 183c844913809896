package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(aggregationsTotal.WithLabelValues("complete"))
	RecordAggregation("complete", 10*time.Millisecond, 4096)
	assert.Equal(t, before+1, testutil.ToFloat64(aggregationsTotal.WithLabelValues("complete")))

	bytesBefore := testutil.ToFloat64(aggregatedBytes)
	RecordAggregation("inaccessible", time.Millisecond, 0)
	assert.Equal(t, bytesBefore, testutil.ToFloat64(aggregatedBytes), "failed walks add no bytes")

	invBefore := testutil.ToFloat64(cacheInvalidations)
	RecordInvalidation(0)
	RecordInvalidation(3)
	assert.Equal(t, invBefore+3, testutil.ToFloat64(cacheInvalidations))

	SetPending(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(pendingRequests))
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordRequest("dispatched")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "diskdash_size_requests_total")
}
