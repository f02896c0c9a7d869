package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/MagnunAVF/shortlink/internal"
)

type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

func (s *Users) Create(ctx context.Context, user *internal.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return fmt.Errorf("create user: %w", internal.ErrDuplicateEmail)
	default:
		return storageErr("create user", err)
	}
}

func (s *Users) FindByEmail(ctx context.Context, email string) (*internal.User, error) {
	var user internal.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("find user: %w", internal.ErrNotFound)
	default:
		return nil, storageErr("find user", err)
	}
}
