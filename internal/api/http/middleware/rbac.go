package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/autodealer/dealer_backend/pkg/authorize"
)

// RequirePermission checks that the authenticated user, or the role carried by
// their token, holds the given permission in the sys domain.
func RequirePermission(auth authorize.IAuthorization, resource authorize.Resource, action authorize.Action) fiber.Handler {
	return func(c fiber.Ctx) error {
		err := authorize.EnforceAny(c.Context(), auth, authorize.DomainSys, resource, action)
		switch {
		case err == nil:
			return c.Next()
		case errors.Is(err, authorize.ErrNoSubjectInContext):
			return fiber.ErrUnauthorized
		case errors.Is(err, authorize.ErrForbidden):
			return fiber.ErrForbidden
		default:
			return err
		}
	}
}
