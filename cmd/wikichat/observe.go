package main

import (
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/BaSui01/wikichat/api/handlers"
	"github.com/BaSui01/wikichat/types"
)

const httpTracerName = "wikichat/http"

// knownRoutes 原样作为指标标签与 span 名
var knownRoutes = map[string]bool{
	"/": true, "/health": true, "/healthz": true, "/ready": true, "/version": true, "/metrics": true,
	"/documents": true, "/documents/": true, "/search": true, "/search/": true,
	"/collection/info": true, "/ws/chat": true,
}

// routeLabel 把文档 ID 折叠成 :id，未知路径归为 other，控制标签基数
func routeLabel(path string) string {
	switch {
	case knownRoutes[path]:
		return path
	case strings.HasPrefix(path, "/documents/"):
		return "/documents/:id"
	default:
		return "other"
	}
}

// MetricsMiddleware 记录方法、路由、状态码、耗时与请求/响应大小
func MetricsMiddleware(collector HTTPMetrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := handlers.NewResponseWriter(w)
			next.ServeHTTP(rw, r)

			collector.RecordHTTPRequest(r.Method, routeLabel(r.URL.Path), rw.StatusCode,
				time.Since(start), max(r.ContentLength, 0), rw.BytesWritten)
		})
	}
}

// OTelTracing 从请求头提取上游 trace 上下文并开启 server span；
// trace id 写进 context，日志可据此关联
func OTelTracing() Middleware {
	tracer := otel.Tracer(httpTracerName)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+routeLabel(r.URL.Path),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				))
			defer span.End()

			if sc := span.SpanContext(); sc.HasTraceID() {
				ctx = types.WithTraceID(ctx, sc.TraceID().String())
			}

			rw := handlers.NewResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.response.status_code", rw.StatusCode))
			if rw.StatusCode >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rw.StatusCode))
			}
		})
	}
}
