package http

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/logger"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"go.uber.org/fx"

	"github.com/autodealer/dealer_backend/config"
	"github.com/autodealer/dealer_backend/internal/api/http/handler"
	"github.com/autodealer/dealer_backend/internal/api/http/middleware"
	"github.com/autodealer/dealer_backend/internal/api/http/router"
	"github.com/autodealer/dealer_backend/pkg/observability"
)

// Module provides the HTTP Server to the fx graph.
var Module = fx.Module("http", fx.Provide(NewServer))

const accessLogFormat = "${ip} - [${time}] [req_id=${locals:request_id}] ${method} ${url} ${status} ${latency}\n"

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Cfg       *config.Config
	Router    *router.Router
	OTel      *observability.Provider `optional:"true"`
}

func NewServer(p Params) *fiber.App {
	app := fiber.New(appConfig(p.Cfg))
	useGlobalMiddleware(app, p.Cfg, p.OTel != nil)
	p.Router.Register(app)

	p.Lifecycle.Append(fx.Hook{
		// Binding here makes a taken port fail startup instead of a log line.
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", fmt.Sprintf(":%d", p.Cfg.Server.Port))
			if err != nil {
				return fmt.Errorf("http listen: %w", err)
			}
			go func() {
				if err := app.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
					slog.Error("http server stopped", "error", err)
				}
			}()
			slog.Info("http server listening", "addr", ln.Addr().String())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})

	return app
}

func appConfig(cfg *config.Config) fiber.Config {
	fc := fiber.Config{
		AppName:      cfg.Observability.ServiceName,
		ErrorHandler: handler.ErrorHandler,
	}
	if cfg.Server.TimeoutSeconds > 0 {
		d := time.Duration(cfg.Server.TimeoutSeconds) * time.Second
		fc.ReadTimeout = d
		fc.WriteTimeout = d
	}
	return fc
}

// useGlobalMiddleware installs the chain every route shares. Request ids come
// first so spans, panics and access logs all carry them.
func useGlobalMiddleware(app *fiber.App, cfg *config.Config, telemetry bool) {
	prod := strings.EqualFold(cfg.Server.Environment, "production")

	app.Use(middleware.RequestID())
	if telemetry && cfg.Observability.Tracing.Enabled {
		app.Use(observability.FiberMiddleware(cfg.Observability.ServiceName))
	}
	app.Use(recoverer.New(recoverer.Config{EnableStackTrace: !prod}))

	if cfg.Server.CORS.Enabled {
		app.Use(cors.New(corsConfig(cfg.Server.CORS)))
	}
	if prod {
		app.Use(helmet.New())
	}

	app.Use(logger.New(logger.Config{Format: accessLogFormat}))
}

func corsConfig(c config.CORSConfig) cors.Config {
	return cors.Config{
		AllowOrigins:     c.AllowOrigins,
		AllowMethods:     c.AllowMethods,
		AllowHeaders:     c.AllowHeaders,
		ExposeHeaders:    append([]string{middleware.HeaderRequestID, observability.HeaderTraceID}, c.ExposeHeaders...),
		AllowCredentials: c.AllowCredentials,
		MaxAge:           c.MaxAgeSeconds,
	}
}
