package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/MagnunAVF/shortlink/internal/logger"
)

type ctxKey struct{}

const ownerLocal = "owner_id"

// Middleware requires "Authorization: Bearer <token>" and makes the token's
// subject available through OwnerID.
func (s *Service) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		ownerID, err := s.ParseToken(strings.TrimSpace(raw))
		if err != nil {
			logger.FromContext(c.UserContext()).Debug("rejected token", "err", err)
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}

		c.Locals(ownerLocal, ownerID)
		c.SetUserContext(WithOwner(c.UserContext(), ownerID))
		return c.Next()
	}
}

func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, ownerID)
}

// OwnerID returns the authenticated owner of the request, or "".
func OwnerID(c *fiber.Ctx) string {
	if id, ok := c.Locals(ownerLocal).(string); ok {
		return id
	}
	return OwnerFromContext(c.UserContext())
}

func OwnerFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
