package httpapi

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kompox/sandboxops/internal/logging"
	"github.com/kompox/sandboxops/internal/metrics"
)

const tracerName = "github.com/kompox/sandboxops/adapters/httpapi"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// instrument stores the logger in the request context, opens a server span,
// logs one line per request and records request metrics by route pattern.
func instrument(logger logging.Logger, next http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := tracer.Start(r.Context(), "HTTP "+r.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		ctx = logging.WithLogger(ctx, logger)
		r = r.WithContext(ctx)
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		span.SetName(route)
		span.SetAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", rec.status),
		)
		elapsed := time.Since(start)
		metrics.ObserveHTTP(r.Method, route, rec.status, elapsed)

		msg := "HTTP:" + r.Method + " " + r.URL.Path
		kv := []any{"status", rec.status, "duration", elapsed, "remote", r.RemoteAddr}
		if sc := span.SpanContext(); sc.HasTraceID() {
			kv = append(kv, "traceId", sc.TraceID().String())
		}
		switch {
		case rec.status >= 500:
			logger.Error(ctx, msg, kv...)
		case route == "GET /metrics" || route == "GET /api/health" || route == "GET /api/status":
			logger.Debug(ctx, msg, kv...)
		default:
			logger.Info(ctx, msg, kv...)
		}
	})
}
