package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExported(t *testing.T) {
	reg := NewRegistry()
	m := New(reg)

	m.Commands.WithLabelValues("sta", "0").Inc()
	m.Events.WithLabelValues("sta_got_ip").Inc()
	m.Connected.Set(1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("sta", "0")))

	rr := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `wifictl_commands_total{command="sta",status="0"} 1`))
	assert.Contains(t, body, "wifictl_sta_connected 1")
}

func TestNewWithoutRegistry(t *testing.T) {
	m := New(nil)
	m.Events.WithLabelValues("scan_done").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("scan_done")))
}
