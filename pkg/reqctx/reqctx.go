// Package reqctx carries request-scoped values through context.Context:
// request metadata set by the HTTP middleware, the verified token claims of
// HTTP requests and socket sessions, and the active trace ids.
//
// The logs package reads all three to annotate records, so code that logs
// with a context gets request_id, user_id and trace_id for free.
package reqctx

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ctxKey int

const (
	keyRequestMeta ctxKey = iota
	keyClaims
	keyTrace
)

// RequestMeta is captured once per HTTP request.
type RequestMeta struct {
	RequestID   string
	ClientIP    string
	UserAgent   string
	RequestedAt time.Time
}

func WithRequestMeta(ctx context.Context, meta *RequestMeta) context.Context {
	return context.WithValue(ctx, keyRequestMeta, meta)
}

func RequestMetaFromContext(ctx context.Context) (*RequestMeta, bool) {
	meta, ok := ctx.Value(keyRequestMeta).(*RequestMeta)
	return meta, ok && meta != nil
}

// RequestIDFromContext returns "" outside an HTTP request.
func RequestIDFromContext(ctx context.Context) string {
	if meta, ok := RequestMetaFromContext(ctx); ok {
		return meta.RequestID
	}
	return ""
}

// AuthClaims is the verified principal. pasetotoken.Claims implements it.
type AuthClaims interface {
	GetUserID() uuid.UUID
	// GetRole is the users.role value: client, agent, manager or admin.
	GetRole() string
	GetTokenType() string
}

func WithClaims(ctx context.Context, claims AuthClaims) context.Context {
	return context.WithValue(ctx, keyClaims, claims)
}

// ClaimsFromContext returns nil for unauthenticated contexts.
func ClaimsFromContext(ctx context.Context) AuthClaims {
	claims, _ := ctx.Value(keyClaims).(AuthClaims)
	return claims
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return uuid.Nil, false
	}
	id := claims.GetUserID()
	return id, id != uuid.Nil
}

// TraceInfo mirrors the active OpenTelemetry span for log correlation.
type TraceInfo struct {
	TraceID string
	SpanID  string
	Sampled bool
}

func WithTrace(ctx context.Context, trace *TraceInfo) context.Context {
	return context.WithValue(ctx, keyTrace, trace)
}

func TraceFromContext(ctx context.Context) (*TraceInfo, bool) {
	trace, ok := ctx.Value(keyTrace).(*TraceInfo)
	return trace, ok && trace != nil
}
