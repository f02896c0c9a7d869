package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MagnunAVF/shortlink/internal"
)

type Links struct {
	db *gorm.DB
}

func NewLinks(db *gorm.DB) *Links {
	return &Links{db: db}
}

// Insert writes the link only if its short code is free. The conflict check
// and the write are one statement, so concurrent inserts of the same code
// leave exactly one row and every other caller gets ErrDuplicateCode.
func (s *Links) Insert(ctx context.Context, link *internal.Link) error {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "short_code"}},
			DoNothing: true,
		}).
		Create(link)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return fmt.Errorf("insert %q: %w", link.ShortCode, internal.ErrDuplicateCode)
		}
		return storageErr("insert link", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("insert %q: %w", link.ShortCode, internal.ErrDuplicateCode)
	}
	return nil
}

func (s *Links) CodeExists(ctx context.Context, code string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&internal.Link{}).Where("short_code = ?", code).Limit(1).Count(&n).Error
	if err != nil {
		return false, storageErr("check code", err)
	}
	return n > 0, nil
}

func (s *Links) FindByCode(ctx context.Context, code string) (*internal.Link, error) {
	var link internal.Link
	err := s.db.WithContext(ctx).Where("short_code = ?", code).First(&link).Error
	if err != nil {
		return nil, s.lookupErr("find link by code", err)
	}
	return &link, nil
}

func (s *Links) FindByID(ctx context.Context, id int64) (*internal.Link, error) {
	var link internal.Link
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&link).Error
	if err != nil {
		return nil, s.lookupErr("find link by id", err)
	}
	return &link, nil
}

func (s *Links) lookupErr(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, internal.ErrNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, internal.ErrUnavailable)
	default:
		return storageErr(op, err)
	}
}

// Update persists title, short code and expiration. When the short code
// changes, the click history is moved to the new code in the same
// transaction so it stays attached to the link.
func (s *Links) Update(ctx context.Context, link *internal.Link, previousCode string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&internal.Link{ID: link.ID}).
			Select("short_code", "title", "expires_at").
			Updates(link)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return internal.ErrNotFound
		}
		if previousCode != "" && previousCode != link.ShortCode {
			if err := tx.Model(&internal.Click{}).
				Where("short_code = ?", previousCode).
				Update("short_code", link.ShortCode).Error; err != nil {
				return err
			}
		}
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, internal.ErrNotFound):
		return fmt.Errorf("update link: %w", err)
	case isUniqueViolation(err):
		return fmt.Errorf("update link %q: %w", link.ShortCode, internal.ErrDuplicateCode)
	default:
		return storageErr("update link", err)
	}
}

// Delete removes the link and, in the same transaction, every click recorded
// against its short code.
func (s *Links) Delete(ctx context.Context, link *internal.Link) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&internal.Link{}, link.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return internal.ErrNotFound
		}
		return tx.Where("short_code = ?", link.ShortCode).Delete(&internal.Click{}).Error
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, internal.ErrNotFound):
		return fmt.Errorf("delete link: %w", err)
	default:
		return storageErr("delete link", err)
	}
}

// ListByOwner returns the owner's links, newest first, each with its live
// click count.
func (s *Links) ListByOwner(ctx context.Context, ownerID string) ([]internal.LinkClicks, error) {
	var rows []internal.LinkClicks
	err := s.db.WithContext(ctx).
		Table("links AS l").
		Select("l.*, COUNT(c.id) AS click_count").
		Joins("LEFT JOIN clicks AS c ON c.short_code = l.short_code").
		Where("l.owner_id = ?", ownerID).
		Group("l.id").
		Order("l.created_at DESC, l.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr("list links", err)
	}
	return rows, nil
}
