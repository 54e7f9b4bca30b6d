package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrInvalidRange = errors.New("invalid date range")

var reportHeader = []string{"date", "merchant", "description", "category", "amount", "currency"}

type ReportService struct {
	expenses ExpenseStore
	logger   *zap.Logger
}

func NewReportService(expenses ExpenseStore, logger *zap.Logger) *ReportService {
	return &ReportService{
		expenses: expenses,
		logger:   logger,
	}
}

// ExportCSV writes the user's expenses dated in [from, to) followed by one
// TOTAL row per currency. Zero bounds are open.
func (s *ReportService) ExportCSV(ctx context.Context, w io.Writer, userID uuid.UUID, from, to time.Time) error {
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return ErrInvalidRange
	}

	expenses, err := s.expenses.ListByUserBetween(ctx, userID, from, to)
	if err != nil {
		return fmt.Errorf("failed to list expenses: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return err
	}

	totals := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		totals[e.Currency] = totals[e.Currency].Add(e.Amount)
		if err := cw.Write([]string{
			e.Date.Format(time.DateOnly),
			e.Merchant,
			e.Description,
			string(e.Category),
			e.Amount.StringFixed(2),
			e.Currency,
		}); err != nil {
			return err
		}
	}

	currencies := make([]string, 0, len(totals))
	for c := range totals {
		currencies = append(currencies, c)
	}
	slices.Sort(currencies)
	for _, c := range currencies {
		if err := cw.Write([]string{"TOTAL", "", "", "", totals[c].StringFixed(2), c}); err != nil {
			return err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	s.logger.Info("Expense report exported",
		zap.String("user_id", userID.String()),
		zap.Int("rows", len(expenses)),
	)
	return nil
}
