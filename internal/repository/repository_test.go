package repository

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, notFound(pgx.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, notFound(fmt.Errorf("scan: %w", pgx.ErrNoRows)), ErrNotFound)

	other := errors.New("connection reset")
	assert.Equal(t, other, notFound(other))
}

func TestExpenseRangeQuery(t *testing.T) {
	userID := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	cols := strings.Join(expenseColumns, ", ")
	// squirrel binds uuid.UUID through its driver.Valuer.

	tests := []struct {
		name     string
		from, to time.Time
		where    string
		args     []interface{}
	}{
		{
			name:  "open range",
			where: "user_id = $1",
			args:  []interface{}{userID.String()},
		},
		{
			name:  "from only",
			from:  from,
			where: "user_id = $1 AND date >= $2",
			args:  []interface{}{userID.String(), from},
		},
		{
			name:  "bounded",
			from:  from,
			to:    to,
			where: "user_id = $1 AND date >= $2 AND date < $3",
			args:  []interface{}{userID.String(), from, to},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := expenseRangeQuery(userID, tt.from, tt.to).PlaceholderFormat(squirrel.Dollar).ToSql()
			require.NoError(t, err)
			assert.Equal(t, "SELECT "+cols+" FROM expenses WHERE "+tt.where+" ORDER BY date ASC, created_at ASC", sql)
			assert.Equal(t, tt.args, args)
		})
	}
}
