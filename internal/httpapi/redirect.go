package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/MagnunAVF/shortlink/internal/redirect"
)

func (s *server) redirect(c *fiber.Ctx) error {
	link, err := s.deps.Resolver.Resolve(c.UserContext(), redirect.Visit{
		Code:      c.Params("code"),
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return err
	}
	return c.Redirect(link.OriginalURL, fiber.StatusFound)
}
