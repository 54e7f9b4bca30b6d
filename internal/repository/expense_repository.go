package repository

import (
	"context"
	"time"

	"expense-tracker/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var expenseColumns = []string{
	"id", "receipt_id", "user_id", "merchant", "description", "category",
	"amount", "currency", "date", "created_at", "updated_at",
}

type ExpenseRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewExpenseRepository(db *pgxpool.Pool, logger *zap.Logger) *ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		logger: logger,
	}
}

func (r *ExpenseRepository) CreateBatch(ctx context.Context, expenses []*models.Expense) error {
	if len(expenses) == 0 {
		return nil
	}

	builder := squirrel.Insert("expenses").
		Columns(expenseColumns...).
		PlaceholderFormat(squirrel.Dollar)

	for _, e := range expenses {
		builder = builder.Values(
			e.ID, e.ReceiptID, e.UserID, e.Merchant, e.Description, e.Category,
			e.Amount, e.Currency, e.Date, e.CreatedAt, e.UpdatedAt,
		)
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *ExpenseRepository) ListByReceiptID(ctx context.Context, receiptID uuid.UUID) ([]*models.Expense, error) {
	return r.list(ctx, squirrel.Select(expenseColumns...).
		From("expenses").
		Where(squirrel.Eq{"receipt_id": receiptID}).
		OrderBy("date DESC"))
}

// ListByUserBetween returns expenses dated in [from, to), oldest first.
// A zero bound is open.
func (r *ExpenseRepository) ListByUserBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*models.Expense, error) {
	return r.list(ctx, expenseRangeQuery(userID, from, to))
}

func expenseRangeQuery(userID uuid.UUID, from, to time.Time) squirrel.SelectBuilder {
	query := squirrel.Select(expenseColumns...).
		From("expenses").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("date ASC", "created_at ASC")
	if !from.IsZero() {
		query = query.Where(squirrel.GtOrEq{"date": from})
	}
	if !to.IsZero() {
		query = query.Where(squirrel.Lt{"date": to})
	}
	return query
}

func (r *ExpenseRepository) list(ctx context.Context, query squirrel.SelectBuilder) ([]*models.Expense, error) {
	sql, args, err := query.PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		var e models.Expense
		if err := rows.Scan(
			&e.ID, &e.ReceiptID, &e.UserID, &e.Merchant, &e.Description, &e.Category,
			&e.Amount, &e.Currency, &e.Date, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		expenses = append(expenses, &e)
	}

	return expenses, rows.Err()
}
