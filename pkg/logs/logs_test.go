package logs

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/autodealer/dealer_backend/config"
	"github.com/autodealer/dealer_backend/pkg/reqctx"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLevel(tt.in); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMultiHandlerRespectsLevels(t *testing.T) {
	var debugBuf, warnBuf bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}}

	logger := slog.New(h).With("component", "test")
	logger.Info("hello")
	logger.Warn("careful")

	if !strings.Contains(debugBuf.String(), "hello") || !strings.Contains(debugBuf.String(), "careful") {
		t.Errorf("debug handler missing records: %q", debugBuf.String())
	}
	if strings.Contains(warnBuf.String(), "hello") {
		t.Errorf("warn handler should skip info records: %q", warnBuf.String())
	}
	if !strings.Contains(warnBuf.String(), "component=test") {
		t.Errorf("attrs not propagated: %q", warnBuf.String())
	}
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected multi handler to be enabled for debug")
	}
}

func TestNewFallsBackToStdout(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Environment = "production"
	cfg.Logging.Level = "warn"

	logger := New(cfg)
	if logger == nil {
		t.Fatal("expected logger")
	}
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
}

type testClaims struct{ id uuid.UUID }

func (c testClaims) GetUserID() uuid.UUID { return c.id }
func (c testClaims) GetRole() string      { return "agent" }
func (c testClaims) GetTokenType() string { return "access" }

func TestContextHandlerAddsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(withContext(slog.NewTextHandler(&buf, nil))).With("component", "gateway")

	uid := uuid.New()
	ctx := reqctx.WithRequestMeta(context.Background(), &reqctx.RequestMeta{RequestID: "req-42"})
	ctx = reqctx.WithClaims(ctx, testClaims{id: uid})
	ctx = reqctx.WithTrace(ctx, &reqctx.TraceInfo{TraceID: "abc", SpanID: "def"})

	logger.InfoContext(ctx, "appended")
	out := buf.String()
	for _, want := range []string{"request_id=req-42", "user_id=" + uid.String(), "trace_id=abc", "span_id=def", "component=gateway"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}

	buf.Reset()
	logger.Info("plain")
	if strings.Contains(buf.String(), "request_id") {
		t.Errorf("context-free record got request fields: %q", buf.String())
	}
}
