package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/registry-crawler/internal/api"
	"github.com/JakeFAU/registry-crawler/internal/metrics"
	"github.com/JakeFAU/registry-crawler/internal/monitor"
	"github.com/JakeFAU/registry-crawler/internal/scheduler"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

func newTestServer(cfg api.Config) *api.Server {
	return api.NewServer(monitor.New(), cfg, zap.NewNop())
}

func doRequest(t *testing.T, srv *api.Server, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(api.Config{})

	rec := doRequest(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = doRequest(t, srv, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusReportsMonitorAndSummary(t *testing.T) {
	mon := monitor.New()
	mon.RecordRequest(true, "")
	mon.RecordRequest(false, "HTTP 502")
	srv := api.NewServer(mon, api.Config{}, zap.NewNop())

	rec := doRequest(t, srv, http.MethodGet, "/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Contains(t, payload, "requests")
	assert.NotContains(t, payload, "last_run", "no summary before the first run")

	srv.SetSummary(scheduler.Summary{RunID: "run-1", Accepted: 7})
	rec = doRequest(t, srv, http.MethodGet, "/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var withRun struct {
		LastRun scheduler.Summary `json:"last_run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &withRun))
	assert.Equal(t, "run-1", withRun.LastRun.RunID)
	assert.Equal(t, 7, withRun.LastRun.Accepted)
}

func TestCategoriesEndpoint(t *testing.T) {
	srv := newTestServer(api.Config{})

	rec := doRequest(t, srv, http.MethodGet, "/v1/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Categories []struct {
			Code string `json:"code"`
		} `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.NotEmpty(t, payload.Categories)
}

func TestMetricsEndpointServesPrometheus(t *testing.T) {
	srv := newTestServer(api.Config{})

	rec := doRequest(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAPIKeyMiddleware(t *testing.T) {
	srv := newTestServer(api.Config{APIKey: "sekrit"})

	rec := doRequest(t, srv, http.MethodGet, "/v1/status", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/v1/status", http.Header{"X-Api-Key": {"sekrit"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/v1/status?api_key=sekrit", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
