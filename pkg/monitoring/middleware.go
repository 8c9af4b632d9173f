package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/medrex/portal-authz/pkg/logger"
)

// RequestIDHeader carries the request ID in and out of the gateway
const RequestIDHeader = "X-Request-ID"

// RouteNamer maps a request to a low-cardinality route label
type RouteNamer func(r *http.Request) string

// MonitoringMiddleware combines metrics, tracing, and logging
type MonitoringMiddleware struct {
	metrics   *MetricsCollector
	tracing   *TracingManager
	logger    *logger.Logger
	routeName RouteNamer
}

// NewMonitoringMiddleware creates a new monitoring middleware. routeName may be
// nil, in which case the raw URL path is used as the route label.
func NewMonitoringMiddleware(metrics *MetricsCollector, tracing *TracingManager, log *logger.Logger, routeName RouteNamer) *MonitoringMiddleware {
	if routeName == nil {
		routeName = func(r *http.Request) string { return r.URL.Path }
	}
	return &MonitoringMiddleware{
		metrics:   metrics,
		tracing:   tracing,
		logger:    log,
		routeName: routeName,
	}
}

// HTTPMiddleware assigns a request ID, traces, measures and logs each request
func (mm *MonitoringMiddleware) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx := logger.ContextWithRequestID(r.Context(), requestID)

		wrapper := &monitoringResponseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		wrapper.Header().Set(RequestIDHeader, requestID)

		route := mm.routeName(r)

		if mm.tracing != nil {
			ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(r.Header))
			var span trace.Span
			ctx, span = mm.tracing.StartHTTPSpan(ctx, r.Method, route)
			span.SetAttributes(
				semconv.HTTPUserAgent(r.UserAgent()),
				attribute.String("request.id", requestID),
			)
			otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(wrapper.Header()))

			defer func() {
				span.SetAttributes(
					semconv.HTTPStatusCode(wrapper.statusCode),
					attribute.Int64("http.response_size", wrapper.bytesWritten),
				)
				if wrapper.statusCode >= 500 {
					span.SetStatus(codes.Error, http.StatusText(wrapper.statusCode))
				}
				span.End()
			}()
		}

		next.ServeHTTP(wrapper, r.WithContext(ctx))

		duration := time.Since(start)
		if mm.metrics != nil {
			mm.metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(wrapper.statusCode), duration)
		}
		if mm.logger != nil {
			mm.logger.HTTPRequest(ctx, r.Method, r.URL.Path, r.UserAgent(), r.RemoteAddr, wrapper.statusCode, duration.Milliseconds())
		}
	})
}

// monitoringResponseWriter wraps http.ResponseWriter to capture metrics
type monitoringResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (mrw *monitoringResponseWriter) WriteHeader(code int) {
	mrw.statusCode = code
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *monitoringResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.bytesWritten += int64(n)
	return n, err
}
