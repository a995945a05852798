package appctx

import "context"

// ContextKey is the shared type for all context keys in this codebase.
// It lives in its own package so utils and middlewares can share keys without an import cycle.
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeyCorrelationId = ContextKey("CorrelationId")
	// ContextKeyActor is the free-form caller name sent in x-actor, used only for audit log fields.
	ContextKeyActor = ContextKey("Actor")
)

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}
