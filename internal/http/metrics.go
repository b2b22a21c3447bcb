package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/corethink/internal/orchestrator"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/corethink/internal/http"

// unmatchedRoute labels requests echo could not route, so arbitrary paths
// never become label values.
const unmatchedRoute = "unmatched"

// HTTPMetrics records API traffic and the verdicts returned by /api/v1/reason.
type HTTPMetrics struct {
	logger   *zap.Logger
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
	verdicts metric.Int64Counter
}

// NewHTTPMetrics creates HTTP metrics on meter. A nil meter uses the global
// provider.
func NewHTTPMetrics(meter metric.Meter, logger *zap.Logger) *HTTPMetrics {
	if meter == nil {
		meter = otel.Meter(httpInstrumentationName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &HTTPMetrics{logger: logger}

	var err error
	if m.requests, err = meter.Int64Counter("corethink.http.requests_total",
		metric.WithDescription("API requests by route, method and status class"),
		metric.WithUnit("{request}")); err != nil {
		logger.Warn("failed to create requests counter", zap.Error(err))
	}
	// Buckets extend past the comprehensive collection timeout.
	if m.latency, err = meter.Float64Histogram("corethink.http.request_duration_seconds",
		metric.WithDescription("API request latency by route"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 20, 30)); err != nil {
		logger.Warn("failed to create duration histogram", zap.Error(err))
	}
	if m.inFlight, err = meter.Int64UpDownCounter("corethink.http.active_requests",
		metric.WithDescription("API requests in flight by route"),
		metric.WithUnit("{request}")); err != nil {
		logger.Warn("failed to create active requests gauge", zap.Error(err))
	}
	if m.verdicts, err = meter.Int64Counter("corethink.http.verdicts_total",
		metric.WithDescription("Verdicts returned over HTTP by disposition, confidence and domain"),
		metric.WithUnit("{verdict}")); err != nil {
		logger.Warn("failed to create verdicts counter", zap.Error(err))
	}
	return m
}

// MetricsMiddleware returns an echo middleware that records request metrics.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := c.Request().Context()
			route := attribute.String("route", routeLabel(c.Path()))

			if m.inFlight != nil {
				m.inFlight.Add(ctx, 1, metric.WithAttributes(route))
				defer m.inFlight.Add(ctx, -1, metric.WithAttributes(route))
			}

			err := next(c)

			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				status = http.StatusInternalServerError
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}
			attrs := metric.WithAttributes(route,
				attribute.String("method", c.Request().Method),
				attribute.String("status_class", statusClass(status)))
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.latency != nil {
				m.latency.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			return err
		}
	}
}

// RecordVerdict counts one verdict returned to an API client.
func (m *HTTPMetrics) RecordVerdict(ctx context.Context, v orchestrator.Verdict) {
	if m.verdicts == nil {
		return
	}
	m.verdicts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("disposition", string(v.Disposition)),
		attribute.String("confidence", string(v.Confidence)),
		attribute.String("domain", string(v.Domain)),
		attribute.Bool("degraded", v.Degraded()),
	))
}

func routeLabel(path string) string {
	if path == "" || path == "/*" {
		return unmatchedRoute
	}
	return path
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
