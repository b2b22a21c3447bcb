package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fyrsmithlabs/corethink/internal/constraint"
	"github.com/fyrsmithlabs/corethink/internal/orchestrator"
	"github.com/fyrsmithlabs/corethink/internal/reasoning"
	"github.com/fyrsmithlabs/corethink/internal/scoring"
)

type point struct {
	attrs attribute.Set
	value int64
}

func collect(t *testing.T, reader *metric.ManualReader) map[string][]point {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string][]point{}
	for _, sm := range rm.ScopeMetrics {
		for _, mt := range sm.Metrics {
			switch data := mt.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					found[mt.Name] = append(found[mt.Name], point{dp.Attributes, dp.Value})
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					found[mt.Name] = append(found[mt.Name], point{dp.Attributes, int64(dp.Count)})
				}
			}
		}
	}
	return found
}

func value(points []point, key, want string) int64 {
	var n int64
	for _, p := range points {
		if v, ok := p.attrs.Value(attribute.Key(key)); ok && v.AsString() == want {
			n += p.value
		}
	}
	return n
}

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m := NewHTTPMetrics(mp.Meter(httpInstrumentationName), nil)

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/api/v1/reason", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "request field is required")
	})

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/health"},
		{http.MethodGet, "/health"},
		{http.MethodPost, "/api/v1/reason"},
	} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(r.method, r.path, nil))
	}

	found := collect(t, reader)
	requests := found["corethink.http.requests_total"]
	assert.Equal(t, int64(2), value(requests, "route", "/health"))
	assert.Equal(t, int64(1), value(requests, "route", "/api/v1/reason"))
	assert.Equal(t, int64(2), value(requests, "status_class", "2xx"))
	assert.Equal(t, int64(1), value(requests, "status_class", "4xx"))
	assert.Equal(t, int64(3), value(found["corethink.http.request_duration_seconds"], "method", "GET")+
		value(found["corethink.http.request_duration_seconds"], "method", "POST"))
	assert.Equal(t, int64(0), value(found["corethink.http.active_requests"], "route", "/health"))
}

func TestHTTPMetrics_RecordVerdict(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m := NewHTTPMetrics(mp.Meter(httpInstrumentationName), nil)

	ctx := context.Background()
	m.RecordVerdict(ctx, orchestrator.Verdict{Disposition: reasoning.Reject, Confidence: scoring.High, Domain: constraint.Engineering})
	m.RecordVerdict(ctx, orchestrator.Verdict{Disposition: reasoning.Proceed, Confidence: scoring.Low, Domain: constraint.General})
	m.RecordVerdict(ctx, orchestrator.Verdict{Disposition: reasoning.Reject, Confidence: scoring.Medium, Domain: constraint.Engineering})

	verdicts := collect(t, reader)["corethink.http.verdicts_total"]
	assert.Equal(t, int64(2), value(verdicts, "disposition", "REJECT"))
	assert.Equal(t, int64(1), value(verdicts, "disposition", "PROCEED"))
	assert.Equal(t, int64(2), value(verdicts, "domain", "engineering"))
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, unmatchedRoute, routeLabel(""))
	assert.Equal(t, unmatchedRoute, routeLabel("/*"))
	assert.Equal(t, "/api/v1/reason", routeLabel("/api/v1/reason"))
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{200: "2xx", 204: "2xx", 400: "4xx", 503: "5xx", 0: "unknown"}
	for code, want := range tests {
		assert.Equal(t, want, statusClass(code))
	}
}
