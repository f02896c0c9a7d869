package httpapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/MagnunAVF/shortlink/internal"
	"github.com/MagnunAVF/shortlink/internal/analytics"
	"github.com/MagnunAVF/shortlink/internal/auth"
)

func (s *server) summary(c *fiber.Ctx) error {
	out, err := s.deps.Reports.Summary(c.UserContext(), auth.OwnerID(c))
	if err != nil {
		return err
	}
	return ok(c, out)
}

func (s *server) clicksOverTime(c *fiber.Ctx) error {
	days, err := queryDays(c, analytics.DefaultTimelineDays)
	if err != nil {
		return err
	}
	out, err := s.deps.Reports.ClicksOverTime(c.UserContext(), auth.OwnerID(c), days)
	if err != nil {
		return err
	}
	return ok(c, out)
}

func (s *server) dailyStats(c *fiber.Ctx) error {
	out, err := s.deps.Reports.DailyStats(c.UserContext(), auth.OwnerID(c))
	if err != nil {
		return err
	}
	return ok(c, out)
}

func (s *server) deviceBreakdown(c *fiber.Ctx) error {
	out, err := s.deps.Reports.DeviceBreakdown(c.UserContext(), auth.OwnerID(c))
	if err != nil {
		return err
	}
	return ok(c, out)
}

func (s *server) linkPerformance(c *fiber.Ctx) error {
	days, err := queryDays(c, analytics.DefaultPerformanceDays)
	if err != nil {
		return err
	}
	out, err := s.deps.Reports.LinkPerformance(c.UserContext(), auth.OwnerID(c), days)
	if err != nil {
		return err
	}
	return ok(c, out)
}

// queryDays reads ?days=. Range checks belong to the aggregator; this only
// rejects values that are not integers.
func queryDays(c *fiber.Ctx, def int) (int, error) {
	raw := c.Query("days")
	if raw == "" {
		return def, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, internal.NewValidationError("days", "days must be an integer")
	}
	return days, nil
}
