// Package kit holds the request-scoped values shared across packages:
// correlation IDs, the client address the gate judged, and the route.
package kit

import "context"

type contextKey string

const (
	RequestIDKey contextKey = "kit_request_id"
	TraceIDKey   contextKey = "kit_trace_id"
	ClientIPKey  contextKey = "kit_client_ip"
	RouteKey     contextKey = "kit_route"
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}
func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(TraceIDKey).(string)
	return v
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}
func GetClientIP(ctx context.Context) string {
	v, _ := ctx.Value(ClientIPKey).(string)
	return v
}

// WithRoute stores the action part of the request path ("row.get").
func WithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, RouteKey, route)
}
func GetRoute(ctx context.Context) string {
	v, _ := ctx.Value(RouteKey).(string)
	return v
}
