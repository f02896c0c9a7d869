package httpapi

import (
	"fmt"
	"math"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/MagnunAVF/shortlink/internal"
	"github.com/MagnunAVF/shortlink/internal/auth"
	"github.com/MagnunAVF/shortlink/internal/links"
)

type shortenRequest struct {
	OriginalURL string     `json:"originalUrl"`
	CustomAlias string     `json:"customAlias"`
	Title       string     `json:"title"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

type updateRequest struct {
	Title       *string    `json:"title"`
	CustomAlias *string    `json:"customAlias"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	ClearExpiry bool       `json:"clearExpiry"`
}

type linkResponse struct {
	ID               string                    `json:"id"`
	OriginalURL      string                    `json:"originalUrl"`
	ShortCode        string                    `json:"shortCode"`
	ShortURL         string                    `json:"shortUrl"`
	Title            string                    `json:"title"`
	CreatedAt        time.Time                 `json:"createdAt"`
	ExpiresAt        *time.Time                `json:"expiresAt"`
	Clicks           *int64                    `json:"clicks,omitempty"`
	ExpirationStatus internal.ExpirationStatus `json:"expirationStatus"`
}

// toLinkResponse leaves clicks out when the caller has no live count.
func (s *server) toLinkResponse(l *internal.Link, clicks *int64) linkResponse {
	return linkResponse{
		ID:               l.PublicID(),
		OriginalURL:      l.OriginalURL,
		ShortCode:        l.ShortCode,
		ShortURL:         s.cfg.AppDomain + "/" + l.ShortCode,
		Title:            l.Title,
		CreatedAt:        l.CreatedAt,
		ExpiresAt:        l.ExpiresAt,
		Clicks:           clicks,
		ExpirationStatus: l.ExpirationStatus(s.cfg.Now()),
	}
}

func (s *server) shorten(c *fiber.Ctx) error {
	var req shortenRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	link, err := s.deps.Links.Create(c.UserContext(), links.CreateInput{
		OriginalURL: req.OriginalURL,
		Code:        req.CustomAlias,
		OwnerID:     auth.OwnerID(c),
		Title:       req.Title,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		return err
	}
	return created(c, s.toLinkResponse(link, lo.ToPtr(int64(0))))
}

func (s *server) listLinks(c *fiber.Ctx) error {
	rows, err := s.deps.Links.ListByOwner(c.UserContext(), auth.OwnerID(c))
	if err != nil {
		return err
	}
	return ok(c, lo.Map(rows, func(r internal.LinkClicks, _ int) linkResponse {
		return s.toLinkResponse(&r.Link, lo.ToPtr(r.ClickCount))
	}))
}

func (s *server) updateLink(c *fiber.Ctx) error {
	id, err := linkID(c)
	if err != nil {
		return err
	}
	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	link, err := s.deps.Links.Update(c.UserContext(), id, auth.OwnerID(c), links.UpdateInput{
		Title:       req.Title,
		Code:        req.CustomAlias,
		ExpiresAt:   req.ExpiresAt,
		ClearExpiry: req.ClearExpiry,
	})
	if err != nil {
		return err
	}
	return ok(c, s.toLinkResponse(link, nil))
}

func (s *server) deleteLink(c *fiber.Ctx) error {
	id, err := linkID(c)
	if err != nil {
		return err
	}
	if err := s.deps.Links.Delete(c.UserContext(), id, auth.OwnerID(c)); err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(Response{Success: true, Message: "Link deleted"})
}

func (s *server) linkStats(c *fiber.Ctx) error {
	id, err := linkID(c)
	if err != nil {
		return err
	}
	detail, err := s.deps.Reports.LinkDetail(c.UserContext(), auth.OwnerID(c), id)
	if err != nil {
		return err
	}
	return ok(c, detail)
}

// linkID decodes the base58 :id parameter. Anything undecodable cannot name
// a link, so it is reported as not found.
func linkID(c *fiber.Ctx) (int64, error) {
	raw := c.Params("id")
	id, err := internal.DecodeID(raw)
	if err != nil || id > math.MaxInt64 {
		return 0, fmt.Errorf("link id %q: %w", raw, internal.ErrNotFound)
	}
	return int64(id), nil
}
