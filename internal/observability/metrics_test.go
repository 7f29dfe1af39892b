package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistry_GathersAllCollectors(t *testing.T) {
	m := NewMetricsForTesting()
	m.RunsTotal.WithLabelValues("detected").Inc()
	m.CoverageRatio.Set(0.15)

	reg := m.Registry()

	n, err := testutil.GatherAndCount(reg, "rain_alert_runs_total", "rain_alert_coverage_ratio")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RunsTotal.WithLabelValues("detected")), 0)
}

func TestPusher_NilWhenUnconfigured(t *testing.T) {
	p := NewPusher("", NewMetricsForTesting().Registry())

	assert.Nil(t, p)
	assert.NoError(t, p.Push(context.Background()))
}

func TestPusher_PutsToJobPath(t *testing.T) {
	var gotMethod, gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotMethod, gotPath, gotBody = r.Method, r.URL.Path, string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMetricsForTesting()
	m.RunsTotal.WithLabelValues("clear").Inc()

	err := NewPusher(srv.URL, m.Registry()).Push(context.Background())

	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/metrics/job/"+PushJob, gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestPusher_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewPusher(srv.URL, NewMetricsForTesting().Registry()).Push(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "push metrics")
}
