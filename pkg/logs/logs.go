// Package logs builds the process slog.Logger. Records fan out to stdout, a
// rotated file and Loki, and carry request scoped fields from pkg/reqctx.
package logs

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/autodealer/dealer_backend/config"
	"github.com/autodealer/dealer_backend/pkg/constants"
)

func New(cfg *config.Config) *slog.Logger {
	level := parseLevel(cfg.Logging.Level)
	dev := strings.EqualFold(cfg.Server.Environment, "development")

	var sinks []slog.Handler
	if w := writerFor(cfg.Logging); w != nil {
		opts := &slog.HandlerOptions{Level: level, AddSource: dev}
		if dev && !strings.EqualFold(cfg.Logging.Format, "json") {
			sinks = append(sinks, slog.NewTextHandler(w, opts))
		} else {
			sinks = append(sinks, slog.NewJSONHandler(w, opts))
		}
	}
	if cfg.Logging.Output.Loki.Enabled {
		h, err := newLokiHandler(cfg, level)
		if err != nil {
			slog.Error("loki handler disabled", "error", err)
		} else {
			sinks = append(sinks, h)
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}

	var h slog.Handler = sinks[0]
	if len(sinks) > 1 {
		h = &multiHandler{handlers: sinks}
	}

	service := cfg.Observability.ServiceName
	if service == "" {
		service = constants.ServiceName
	}
	return slog.New(withContext(h)).With(
		slog.String("service", service),
		slog.String("version", cfg.Observability.ServiceVersion),
		slog.String("env", cfg.Server.Environment),
	)
}

// writerFor returns nil when only Loki is configured.
func writerFor(lc config.LoggingConfig) io.Writer {
	var ws []io.Writer
	if lc.Output.Stdout || (!lc.Output.File.Enabled && !lc.Output.Loki.Enabled) {
		ws = append(ws, os.Stdout)
	}
	if f := lc.Output.File; f.Enabled {
		ws = append(ws, &lumberjack.Logger{
			Filename:   f.Path,
			MaxSize:    f.MaxSizeMB,
			MaxBackups: f.MaxBackups,
			MaxAge:     f.MaxAgeDays,
			Compress:   f.Compress,
		})
	}
	switch len(ws) {
	case 0:
		return nil
	case 1:
		return ws[0]
	}
	return io.MultiWriter(ws...)
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}
