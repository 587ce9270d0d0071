// Package socket serves the realtime conversation gateway over websockets.
package socket

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/valyala/fasthttp"
	"go.uber.org/fx"

	"github.com/autodealer/dealer_backend/config"
	"github.com/autodealer/dealer_backend/internal/realtime"
	"github.com/autodealer/dealer_backend/internal/service/conversation"
	"github.com/autodealer/dealer_backend/pkg/authorize"
	pasetotoken "github.com/autodealer/dealer_backend/pkg/paseto"
)

// Module provides the Gateway to the fx graph.
var Module = fx.Module("socket", fx.Provide(NewGateway))

// Path is the socket upgrade route.
const Path = "/ws"

// Options bound a single connection.
type Options struct {
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	MaxMessageBytes int64
	AllowOrigins    []string
}

func OptionsFromConfig(cfg *config.Config) Options {
	rt := cfg.Realtime
	opts := Options{
		WriteTimeout:    time.Duration(rt.WriteTimeoutSeconds) * time.Second,
		PingInterval:    time.Duration(rt.PingIntervalSeconds) * time.Second,
		MaxMessageBytes: int64(rt.MaxMessageBytes),
	}
	if cfg.Server.CORS.Enabled {
		opts.AllowOrigins = cfg.Server.CORS.AllowOrigins
	}
	return opts.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 16 << 10
	}
	return o
}

// Verifier checks access tokens.
type Verifier interface {
	Verify(token string) (*pasetotoken.Claims, error)
}

type Params struct {
	fx.In

	Cfg    *config.Config
	Tokens *pasetotoken.Manager
	Auth   authorize.IAuthorization
	Convs  conversation.Service
	Hub    *realtime.Hub
	Fanout *realtime.Fanout
}

// Gateway authenticates socket handshakes and runs one session per connection.
type Gateway struct {
	tokens Verifier
	auth   authorize.IAuthorization
	convs  conversation.Service
	hub    *realtime.Hub
	fanout *realtime.Fanout
	opts   Options

	upgrader websocket.FastHTTPUpgrader
}

func NewGateway(p Params) *Gateway {
	return New(p.Tokens, p.Auth, p.Convs, p.Hub, p.Fanout, OptionsFromConfig(p.Cfg))
}

func New(tokens Verifier, auth authorize.IAuthorization, convs conversation.Service,
	hub *realtime.Hub, fanout *realtime.Fanout, opts Options) *Gateway {
	g := &Gateway{
		tokens: tokens,
		auth:   auth,
		convs:  convs,
		hub:    hub,
		fanout: fanout,
		opts:   opts.withDefaults(),
	}
	g.upgrader = websocket.FastHTTPUpgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(ctx *fasthttp.RequestCtx) bool {
	if len(g.opts.AllowOrigins) == 0 || slices.Contains(g.opts.AllowOrigins, "*") {
		return true
	}
	origin := string(ctx.Request.Header.Peek(fiber.HeaderOrigin))
	return origin == "" || slices.Contains(g.opts.AllowOrigins, origin)
}

// Handle verifies the access token and upgrades the connection. Nothing is
// joined before the token checks out.
func (g *Gateway) Handle(c fiber.Ctx) error {
	tok, ok := pasetotoken.TokenFromFiber(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	claims, err := g.tokens.Verify(tok)
	if err != nil || claims.Type != pasetotoken.TokenTypeAccess {
		slog.DebugContext(c.Context(), "socket handshake rejected", "ip", c.IP(), "error", err)
		return fiber.ErrUnauthorized
	}

	if !websocket.FastHTTPIsWebSocketUpgrade(c.RequestCtx()) {
		return fiber.ErrUpgradeRequired
	}

	return g.upgrader.Upgrade(c.RequestCtx(), func(conn *websocket.Conn) {
		g.Serve(context.Background(), conn, claims)
	})
}
