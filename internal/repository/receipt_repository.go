package repository

import (
	"context"

	"expense-tracker/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var receiptColumns = []string{
	"id", "user_id", "file_name", "file_size", "content_type", "storage_key",
	"status", "extracted_text", "created_at", "updated_at",
}

type ReceiptRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewReceiptRepository(db *pgxpool.Pool, logger *zap.Logger) *ReceiptRepository {
	return &ReceiptRepository{
		db:     db,
		logger: logger,
	}
}

func (r *ReceiptRepository) Create(ctx context.Context, receipt *models.Receipt) error {
	query := squirrel.Insert("receipts").
		Columns(receiptColumns...).
		Values(
			receipt.ID, receipt.UserID, receipt.FileName, receipt.FileSize, receipt.ContentType, receipt.StorageKey,
			receipt.Status, receipt.ExtractedText, receipt.CreatedAt, receipt.UpdatedAt,
		).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// GetByID only returns receipts owned by userID.
func (r *ReceiptRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Receipt, error) {
	query := squirrel.Select(receiptColumns...).
		From("receipts").
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	receipt, err := scanReceipt(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err)
	}
	return receipt, nil
}

func (r *ReceiptRepository) UpdateResult(ctx context.Context, id uuid.UUID, status models.ReceiptStatus, text string) error {
	query := squirrel.Update("receipts").
		Set("status", status).
		Set("extracted_text", text).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *ReceiptRepository) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Receipt, error) {
	query := squirrel.Select(receiptColumns...).
		From("receipts").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []*models.Receipt
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}

	return receipts, rows.Err()
}

func scanReceipt(row pgx.Row) (*models.Receipt, error) {
	var receipt models.Receipt
	err := row.Scan(
		&receipt.ID, &receipt.UserID, &receipt.FileName, &receipt.FileSize, &receipt.ContentType, &receipt.StorageKey,
		&receipt.Status, &receipt.ExtractedText, &receipt.CreatedAt, &receipt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}
