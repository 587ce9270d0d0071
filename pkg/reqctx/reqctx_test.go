package reqctx

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

type claims struct{ id uuid.UUID }

func (c claims) GetUserID() uuid.UUID { return c.id }
func (c claims) GetRole() string      { return "agent" }
func (c claims) GetTokenType() string { return "access" }

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()
	if RequestIDFromContext(ctx) != "" {
		t.Error("request id on empty context")
	}
	if ClaimsFromContext(ctx) != nil {
		t.Error("claims on empty context")
	}
	if _, ok := UserIDFromContext(ctx); ok {
		t.Error("user id on empty context")
	}
	if _, ok := TraceFromContext(ctx); ok {
		t.Error("trace on empty context")
	}
}

func TestRoundTrip(t *testing.T) {
	id := uuid.New()
	ctx := WithRequestMeta(context.Background(), &RequestMeta{RequestID: "req-1"})
	ctx = WithClaims(ctx, claims{id: id})
	ctx = WithTrace(ctx, &TraceInfo{TraceID: "t", SpanID: "s"})

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("request id = %q", got)
	}
	if got, ok := UserIDFromContext(ctx); !ok || got != id {
		t.Errorf("user id = %v, %v", got, ok)
	}
	if tr, ok := TraceFromContext(ctx); !ok || tr.TraceID != "t" {
		t.Errorf("trace = %+v", tr)
	}
}

func TestNilUserIDIsAnonymous(t *testing.T) {
	ctx := WithClaims(context.Background(), claims{})
	if _, ok := UserIDFromContext(ctx); ok {
		t.Error("nil user id reported as authenticated")
	}
}
