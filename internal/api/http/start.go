package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/autodealer/dealer_backend/config"
	"github.com/autodealer/dealer_backend/internal/api/http/router"
	"github.com/autodealer/dealer_backend/internal/api/socket"
	"github.com/autodealer/dealer_backend/internal/app"
)

// Options assembles the full server graph: infrastructure, services, the
// mail worker and the REST plus websocket surface.
func Options(cfg *config.Config, stopTimeout time.Duration) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		app.InfraModule,
		app.ServiceModule,
		app.WorkerModule,
		socket.Module,
		router.Module,
		Module,
		// Requesting the app is what schedules its listen hook.
		fx.Invoke(func(*fiber.App) {}),
		fx.StopTimeout(stopTimeout),
	)
}

// Start runs the server until SIGINT or SIGTERM.
func Start(cfg *config.Config, stopTimeout time.Duration) {
	fx.New(
		Options(cfg, stopTimeout),
		fx.WithLogger(func() fxevent.Logger {
			if cfg.Logging.Level != "debug" {
				return fxevent.NopLogger
			}
			l := &fxevent.SlogLogger{Logger: slog.Default()}
			l.UseLogLevel(slog.LevelDebug)
			return l
		}),
	).Run()
}
