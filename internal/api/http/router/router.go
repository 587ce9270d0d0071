package router

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/autodealer/dealer_backend/config"
	"github.com/autodealer/dealer_backend/internal/api/http/handler"
	"github.com/autodealer/dealer_backend/internal/api/http/middleware"
	"github.com/autodealer/dealer_backend/internal/api/socket"
	"github.com/autodealer/dealer_backend/internal/service/conversation"
	"github.com/autodealer/dealer_backend/pkg/authorize"
	pasetotoken "github.com/autodealer/dealer_backend/pkg/paseto"
)

// Module provides the Router to the fx graph.
var Module = fx.Module("router", fx.Provide(NewRouter))

type Params struct {
	fx.In

	Cfg             *config.Config
	Redis           *redis.Client
	Auth            authorize.IAuthorization
	ConversationSvc conversation.Service
	PasetoMgr       *pasetotoken.Manager
	Socket          *socket.Gateway
}

type Router struct {
	p Params
}

func NewRouter(p Params) *Router {
	return &Router{p: p}
}

// Register mounts health checks, metrics, the socket upgrade and the versioned REST
// API. The socket route verifies its own token so it sits outside the auth
// group.
func (r *Router) Register(app *fiber.App) {
	r.registerSystemRoutes(app)
	app.Get(socket.Path, r.p.Socket.Handle)

	api := app.Group("/api/v1")
	r.registerConversationRoutes(api,
		handler.NewConversationHandler(r.p.ConversationSvc),
		middleware.AuthRequired(r.p.PasetoMgr, r.p.Redis, r.p.Cfg.Authentication.CheckSession),
		r.rateLimit(),
		r.permission,
	)
}

// rateLimit runs after authentication so the window is per user. Nil outside
// production.
func (r *Router) rateLimit() fiber.Handler {
	if !strings.EqualFold(r.p.Cfg.Server.Environment, "production") || r.p.Redis == nil {
		return nil
	}
	return middleware.NewLimiterWithRedis(r.p.Redis, r.p.Cfg.Server.RateLimit)
}

func (r *Router) permission(res authorize.Resource, act authorize.Action) fiber.Handler {
	return middleware.RequirePermission(r.p.Auth, res, act)
}

func (r *Router) registerSystemRoutes(app *fiber.App) {
	alive := healthcheck.New()
	app.Get(healthcheck.LivenessEndpoint, alive)
	app.Get(healthcheck.StartupEndpoint, alive)
	app.Get(healthcheck.ReadinessEndpoint, healthcheck.New(healthcheck.Config{Probe: r.ready}))

	if m := r.p.Cfg.Observability.Metrics; r.p.Cfg.Observability.Enabled && m.Enabled {
		path := m.Path
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}
}

// ready fails while the Casbin policy is stale or Redis is unreachable.
func (r *Router) ready(c fiber.Ctx) bool {
	if r.p.Cfg.Authorization.HealthCheckEnabled && !authorize.IsPolicyHealthy() {
		return false
	}
	if r.p.Redis == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()
	return r.p.Redis.Ping(ctx).Err() == nil
}
