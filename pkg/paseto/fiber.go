package pasetotoken

import (
	"strings"

	"github.com/gofiber/fiber/v3"
)

// CtxKeyClaims is the fiber.Locals key holding *Claims after AuthRequired.
const CtxKeyClaims = "auth.claims"

// BearerToken pulls the token out of an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	scheme, tok, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// TokenFromFiber reads the Authorization header, falling back to the token
// query parameter that browser socket handshakes use.
func TokenFromFiber(c fiber.Ctx) (string, bool) {
	if tok, ok := BearerToken(c.Get(fiber.HeaderAuthorization)); ok {
		return tok, true
	}
	tok := strings.TrimSpace(c.Query("token"))
	return tok, tok != ""
}

func ClaimsFromFiber(c fiber.Ctx) (*Claims, bool) {
	cl, ok := c.Locals(CtxKeyClaims).(*Claims)
	return cl, ok && cl != nil
}
