package middleware

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// unmatchedRoute labels requests no mux pattern claimed, keeping metric
// cardinality bounded.
const unmatchedRoute = "unmatched"

var (
	httpTracer          = otel.Tracer("finlink/http")
	httpMeter           = otel.Meter("finlink/http")
	httpServerDuration  metric.Float64Histogram
	httpServerRequests  metric.Int64Counter
	httpServerRespBytes metric.Int64Histogram
)

func init() {
	httpServerDuration, _ = httpMeter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of inbound HTTP requests"),
		metric.WithUnit("s"),
	)
	httpServerRequests, _ = httpMeter.Int64Counter("http.server.requests",
		metric.WithDescription("Inbound HTTP requests by route and status"),
	)
	httpServerRespBytes, _ = httpMeter.Int64Histogram("http.server.response.body.size",
		metric.WithDescription("Size of HTTP response bodies"),
		metric.WithUnit("By"),
	)
}

// Tracing starts a server span per request and records request metrics
// labelled by the matched ServeMux pattern rather than the raw path, so
// /api/accounts/{id} is a single series.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := httpTracer.Start(r.Context(), r.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
				attribute.String("user_agent.original", r.UserAgent()),
			),
		)
		defer span.End()

		start := time.Now()
		rw := wrapResponseWriter(w)
		req := r.WithContext(ctx)
		next.ServeHTTP(rw, req)

		// The mux records the matched pattern on the request it was handed.
		route := req.Pattern
		if route == "" {
			route = unmatchedRoute
		} else {
			span.SetName(r.Method + " " + route)
		}

		status := rw.StatusOrOK()
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", status),
			attribute.Int64("http.response.body.size", rw.Written()),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		attrs := metric.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", status),
		)
		httpServerDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		httpServerRequests.Add(ctx, 1, attrs)
		httpServerRespBytes.Record(ctx, rw.Written(), attrs)
	})
}
