package types

import "context"

type ctxKey int

const (
	traceIDKey ctxKey = iota
	requestIDKey
	userIDKey
)

func withString(ctx context.Context, key ctxKey, v string) context.Context {
	return context.WithValue(ctx, key, v)
}

// 空字符串视为未设置。
func stringFrom(ctx context.Context, key ctxKey) (string, bool) {
	v, _ := ctx.Value(key).(string)
	return v, v != ""
}

// WithTraceID 记录当前 span 的 trace id，日志与响应头从这里取。
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return withString(ctx, traceIDKey, traceID)
}

func TraceID(ctx context.Context) (string, bool) { return stringFrom(ctx, traceIDKey) }

// WithRequestID 记录 X-Request-ID。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, requestIDKey, requestID)
}

func RequestID(ctx context.Context) (string, bool) { return stringFrom(ctx, requestIDKey) }

// WithUserID 记录 JWT 中解析出的调用方身份。
func WithUserID(ctx context.Context, userID string) context.Context {
	return withString(ctx, userIDKey, userID)
}

func UserID(ctx context.Context) (string, bool) { return stringFrom(ctx, userIDKey) }
