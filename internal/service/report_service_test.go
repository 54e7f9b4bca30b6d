package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"expense-tracker/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReportService_ExportCSV(t *testing.T) {
	ctx := context.Background()
	store := new(MockExpenseStore)
	svc := NewReportService(store, zap.NewNop())
	userID := uuid.New()
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	store.On("ListByUserBetween", ctx, userID, from, to).Return([]*models.Expense{
		{Date: from, Merchant: "Cafe Luna", Description: "Lunch, two people", Category: models.CategoryMeals, Amount: decimal.RequireFromString("12.5"), Currency: "EUR"},
		{Date: from.AddDate(0, 0, 3), Merchant: "Shell", Category: models.CategoryFuel, Amount: decimal.RequireFromString("40.10"), Currency: "USD"},
		{Date: from.AddDate(0, 0, 4), Merchant: "Hotel", Category: models.CategoryLodging, Amount: decimal.RequireFromString("0.2"), Currency: "EUR"},
	}, nil)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(ctx, &buf, userID, from, to))

	want := "date,merchant,description,category,amount,currency\n" +
		"2025-03-01,Cafe Luna,\"Lunch, two people\",meals,12.50,EUR\n" +
		"2025-03-04,Shell,,fuel,40.10,USD\n" +
		"2025-03-05,Hotel,,lodging,0.20,EUR\n" +
		"TOTAL,,,,12.70,EUR\n" +
		"TOTAL,,,,40.10,USD\n"
	assert.Equal(t, want, buf.String())
}

func TestReportService_ExportCSVEmpty(t *testing.T) {
	ctx := context.Background()
	store := new(MockExpenseStore)
	svc := NewReportService(store, zap.NewNop())
	userID := uuid.New()
	store.On("ListByUserBetween", ctx, userID, time.Time{}, time.Time{}).Return([]*models.Expense{}, nil)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(ctx, &buf, userID, time.Time{}, time.Time{}))
	assert.Equal(t, "date,merchant,description,category,amount,currency\n", buf.String())
}

func TestReportService_ExportCSVErrors(t *testing.T) {
	ctx := context.Background()
	store := new(MockExpenseStore)
	svc := NewReportService(store, zap.NewNop())
	userID := uuid.New()
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	err := svc.ExportCSV(ctx, &bytes.Buffer{}, userID, day, day)
	assert.ErrorIs(t, err, ErrInvalidRange)

	dbErr := errors.New("db down")
	store.On("ListByUserBetween", ctx, userID, day, time.Time{}).Return([]*models.Expense(nil), dbErr)
	err = svc.ExportCSV(ctx, &bytes.Buffer{}, userID, day, time.Time{})
	assert.ErrorIs(t, err, dbErr)
}
