package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRequest(t *testing.T) {
	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("audio", "success", ""))
	RecordRequest("audio", "success", "", 2*time.Second)
	after := testutil.ToFloat64(RequestsTotal.WithLabelValues("audio", "success", ""))
	assert.Equal(t, before+1, after)
}

func TestAddBytesRelayed_IgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(BytesRelayed.WithLabelValues("video"))
	AddBytesRelayed("video", 0)
	AddBytesRelayed("video", -5)
	assert.Equal(t, before, testutil.ToFloat64(BytesRelayed.WithLabelValues("video")))

	AddBytesRelayed("video", 2048)
	assert.Equal(t, before+2048, testutil.ToFloat64(BytesRelayed.WithLabelValues("video")))
}

func TestStreamStarted_Balances(t *testing.T) {
	g := ActiveStreams.WithLabelValues("audio")
	base := testutil.ToFloat64(g)

	done := StreamStarted("audio")
	assert.Equal(t, base+1, testutil.ToFloat64(g))
	done()
	assert.Equal(t, base, testutil.ToFloat64(g))
}

func TestExposition(t *testing.T) {
	ObserveTimeToFirstByte("audio", 1500*time.Millisecond)
	RecordRequest("video", "failed_before_headers", "resolve", time.Second)
	StreamStarted("video")()

	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{
		"tubestream_requests_total",
		"tubestream_time_to_first_byte_seconds",
		"tubestream_active_streams",
	} {
		assert.True(t, strings.Contains(body, name), "missing %s", name)
	}
}
