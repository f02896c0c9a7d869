package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string                 `json:"status"`
	Checks    map[string]checkResult `json:"checks,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

func (s *server) healthz(c *fiber.Ctx) error {
	return c.JSON(healthResponse{Status: "ok", Timestamp: time.Now().Format(time.RFC3339)})
}

func (s *server) readyz(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), s.cfg.ReadyTimeout)
	defer cancel()

	resp := healthResponse{
		Status:    "up",
		Checks:    make(map[string]checkResult, len(s.deps.Checks)),
		Timestamp: time.Now().Format(time.RFC3339),
	}
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			resp.Status = "down"
			resp.Checks[name] = checkResult{Status: "down", Message: err.Error()}
			continue
		}
		resp.Checks[name] = checkResult{Status: "up"}
	}

	if resp.Status != "up" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}
