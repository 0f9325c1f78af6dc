package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservePool(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObservePool("redis", func() float64 { return 8 }, func() float64 { return 3 })

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			if metric.GetGauge() != nil && len(metric.GetLabel()) == 1 && metric.GetLabel()[0].GetValue() == "redis" {
				values[f.GetName()] = metric.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, map[string]float64{"pool_open_connections": 8, "pool_idle_connections": 3}, values)
}

func TestPush(t *testing.T) {
	var method, path string
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RebuildsTotal.WithLabelValues("ok").Inc()

	require.NoError(t, Push(context.Background(), gateway.URL, "snapshot-builder", reg))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/snapshot-builder", path)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RebuildsTotal.WithLabelValues("ok")))
}

func TestPushReportsGatewayFailure(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gateway.Close()

	err := Push(context.Background(), gateway.URL, "snapshot-builder", prometheus.NewRegistry())
	assert.ErrorContains(t, err, "pushing metrics")
}
