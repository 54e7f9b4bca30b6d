package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"expense-tracker/internal/dto"
	"expense-tracker/internal/models"
	"expense-tracker/internal/repository"
	"expense-tracker/pkg/blobstore"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrReceiptNotFound = errors.New("receipt not found")
	ErrEmptyFile       = errors.New("empty file")
)

type ReceiptStore interface {
	Create(ctx context.Context, receipt *models.Receipt) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Receipt, error)
	UpdateResult(ctx context.Context, id uuid.UUID, status models.ReceiptStatus, text string) error
	ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Receipt, error)
}

type ExpenseStore interface {
	CreateBatch(ctx context.Context, expenses []*models.Expense) error
	ListByReceiptID(ctx context.Context, receiptID uuid.UUID) ([]*models.Expense, error)
	ListByUserBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*models.Expense, error)
}

type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, fileName string) (string, error)
}

type ExpenseParser interface {
	ParseExpenses(ctx context.Context, text string) ([]*ExpenseLine, error)
}

// ReceiptService stores receipt files in the blob store and turns them into
// expenses: extract text, parse lines, persist.
type ReceiptService struct {
	receipts  ReceiptStore
	expenses  ExpenseStore
	blobs     blobstore.Store
	extractor TextExtractor
	parser    ExpenseParser
	logger    *zap.Logger
}

func NewReceiptService(
	receipts ReceiptStore,
	expenses ExpenseStore,
	blobs blobstore.Store,
	extractor TextExtractor,
	parser ExpenseParser,
	logger *zap.Logger,
) *ReceiptService {
	return &ReceiptService{
		receipts:  receipts,
		expenses:  expenses,
		blobs:     blobs,
		extractor: extractor,
		parser:    parser,
		logger:    logger,
	}
}

func (s *ReceiptService) Upload(ctx context.Context, userID uuid.UUID, fileName string, data []byte) (*dto.ReceiptResponse, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	contentType, err := ReceiptContentType(fileName)
	if err != nil {
		return nil, err
	}

	receiptID := uuid.New()
	key := receiptKey(userID, receiptID, fileName)
	if err := s.blobs.Put(ctx, key, data); err != nil {
		return nil, fmt.Errorf("failed to store receipt file: %w", err)
	}

	now := time.Now()
	receipt := &models.Receipt{
		ID:          receiptID,
		UserID:      userID,
		FileName:    filepath.Base(fileName),
		FileSize:    int64(len(data)),
		ContentType: contentType,
		StorageKey:  key,
		Status:      models.ReceiptStatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.receipts.Create(ctx, receipt); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn("Failed to remove orphaned receipt file", zap.String("key", key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to create receipt record: %w", err)
	}

	s.logger.Info("Receipt uploaded",
		zap.String("receipt_id", receiptID.String()),
		zap.String("user_id", userID.String()),
		zap.Int64("size", receipt.FileSize),
	)

	resp := toReceiptResponse(receipt)
	return &resp, nil
}

// Process extracts and stores the expenses of one receipt. Extraction and
// parsing failures mark the receipt failed and are not returned as errors.
func (s *ReceiptService) Process(ctx context.Context, userID, receiptID uuid.UUID) (*dto.ProcessReceiptResponse, error) {
	receipt, err := s.receipts.GetByID(ctx, receiptID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReceiptNotFound
		}
		return nil, fmt.Errorf("failed to load receipt: %w", err)
	}

	data, err := s.blobs.Get(ctx, receipt.StorageKey)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrReceiptNotFound
		}
		return nil, fmt.Errorf("failed to read receipt file: %w", err)
	}

	expenses, status := s.extract(ctx, receipt, data)

	if len(expenses) > 0 {
		if err := s.expenses.CreateBatch(ctx, expenses); err != nil {
			return nil, fmt.Errorf("failed to save expenses: %w", err)
		}
	}

	receipt.Status = status
	if err := s.receipts.UpdateResult(ctx, receipt.ID, status, receipt.ExtractedText); err != nil {
		return nil, fmt.Errorf("failed to update receipt: %w", err)
	}

	resp := &dto.ProcessReceiptResponse{
		Receipt:  toReceiptResponse(receipt),
		Expenses: make([]dto.ExpenseResponse, len(expenses)),
	}
	for i, e := range expenses {
		resp.Expenses[i] = toExpenseResponse(e)
	}
	return resp, nil
}

func (s *ReceiptService) extract(ctx context.Context, receipt *models.Receipt, data []byte) ([]*models.Expense, models.ReceiptStatus) {
	log := s.logger.With(zap.String("receipt_id", receipt.ID.String()))

	text, err := s.extractor.ExtractText(ctx, data, receipt.FileName)
	if err != nil {
		log.Warn("Receipt text extraction failed", zap.Error(err))
		return nil, models.ReceiptStatusFailed
	}
	receipt.ExtractedText = text
	if text == "" {
		log.Warn("No text found on receipt")
		return nil, models.ReceiptStatusFailed
	}

	lines, err := s.parser.ParseExpenses(ctx, text)
	if err != nil {
		log.Warn("Receipt parsing failed", zap.Error(err))
		return nil, models.ReceiptStatusFailed
	}

	now := time.Now()
	expenses := make([]*models.Expense, 0, len(lines))
	for _, line := range lines {
		date := receipt.CreatedAt
		if d, err := time.Parse(time.DateOnly, line.Date); err == nil {
			date = d
		}
		currency := line.Currency
		if currency == "" {
			currency = "USD"
		}
		expenses = append(expenses, &models.Expense{
			ID:          uuid.New(),
			ReceiptID:   receipt.ID,
			UserID:      receipt.UserID,
			Merchant:    line.Merchant,
			Description: line.Description,
			Category:    models.ParseExpenseCategory(line.Category),
			Amount:      line.Amount,
			Currency:    currency,
			Date:        date,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	log.Info("Receipt processed", zap.Int("expenses", len(expenses)))
	return expenses, models.ReceiptStatusProcessed
}

func (s *ReceiptService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]dto.ReceiptResponse, error) {
	receipts, err := s.receipts.ListByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}

	responses := make([]dto.ReceiptResponse, len(receipts))
	for i, r := range receipts {
		responses[i] = toReceiptResponse(r)
	}
	return responses, nil
}

func receiptKey(userID, receiptID uuid.UUID, fileName string) string {
	return userID.String() + "/" + receiptID.String() + strings.ToLower(filepath.Ext(fileName))
}

func toReceiptResponse(r *models.Receipt) dto.ReceiptResponse {
	return dto.ReceiptResponse{
		ID:            r.ID.String(),
		FileName:      r.FileName,
		FileSize:      r.FileSize,
		ContentType:   r.ContentType,
		Status:        string(r.Status),
		ExtractedText: r.ExtractedText,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
	}
}

func toExpenseResponse(e *models.Expense) dto.ExpenseResponse {
	return dto.ExpenseResponse{
		ID:          e.ID.String(),
		ReceiptID:   e.ReceiptID.String(),
		Merchant:    e.Merchant,
		Description: e.Description,
		Category:    string(e.Category),
		Amount:      e.Amount.StringFixed(2),
		Currency:    e.Currency,
		Date:        e.Date.Format(time.DateOnly),
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
}
