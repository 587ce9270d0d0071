package middleware

import (
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"

	pasetotoken "github.com/autodealer/dealer_backend/pkg/paseto"
	"github.com/autodealer/dealer_backend/pkg/reqctx"
)

// SessionKey is the Redis key holding a live session issued by the identity provider.
func SessionKey(sessionID string) string {
	return "session:" + sessionID
}

// AuthRequired validates a PASETO access token taken from the Authorization header
// (or the token query parameter) and optionally checks the session in Redis.
// On success, stores *pasetotoken.Claims in c.Locals(pasetotoken.CtxKeyClaims)
// and on the request context.
func AuthRequired(mgr *pasetotoken.Manager, rdb *redis.Client, checkSession bool) fiber.Handler {
	return func(c fiber.Ctx) error {
		tok, ok := pasetotoken.TokenFromFiber(c)
		if !ok {
			return fiber.ErrUnauthorized
		}

		claims, err := mgr.Verify(tok)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		// Only access tokens are accepted on protected routes
		if claims.Type != pasetotoken.TokenTypeAccess {
			return fiber.ErrUnauthorized
		}

		if checkSession && rdb != nil && claims.SessionID != nil {
			if err := rdb.Get(c.Context(), SessionKey(claims.SessionID.String())).Err(); err != nil {
				return fiber.ErrUnauthorized
			}
		}

		c.Locals(pasetotoken.CtxKeyClaims, claims)
		c.SetContext(reqctx.WithClaims(c.Context(), claims))
		return c.Next()
	}
}
