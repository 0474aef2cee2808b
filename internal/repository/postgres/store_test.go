package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"repcirAPI/internal/repository"
)

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(pgx.ErrNoRows), repository.ErrNotFound)
	assert.ErrorIs(t, translate(fmt.Errorf("scan: %w", pgx.ErrNoRows)), repository.ErrNotFound)
	assert.ErrorIs(t, translate(&pgconn.PgError{Code: "23505"}), repository.ErrDuplicate)
	assert.ErrorIs(t, translate(&pgconn.PgError{Code: "23503"}), repository.ErrNotFound)

	other := errors.New("connection reset")
	assert.Equal(t, other, translate(other))
}

func TestMigrationsAreOrdered(t *testing.T) {
	for i, m := range migrations {
		assert.Equal(t, i+1, m.version)
		assert.NotEmpty(t, m.up)
	}
}
