package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/MagnunAVF/shortlink/internal/auth"
)

func (s *server) register(c *fiber.Ctx) error {
	var req auth.Credentials
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	user, err := s.deps.Accounts.Register(c.UserContext(), req)
	if err != nil {
		return err
	}
	return created(c, user)
}

func (s *server) login(c *fiber.Ctx) error {
	var req auth.Credentials
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	token, err := s.deps.Accounts.Login(c.UserContext(), req)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"token": token})
}
