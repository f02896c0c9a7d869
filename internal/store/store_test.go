package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/MagnunAVF/shortlink/internal"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_links_short_code"}

	assert.True(t, isUniqueViolation(pgErr))
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", pgErr)))
	assert.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestStorageErrHidesDriverError(t *testing.T) {
	err := storageErr("insert link", errors.New("connection reset"))

	assert.True(t, errors.Is(err, internal.ErrStorage))
	assert.Contains(t, err.Error(), "connection reset")
}
