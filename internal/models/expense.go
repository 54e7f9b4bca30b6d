package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ExpenseCategory string

const (
	CategoryMeals         ExpenseCategory = "meals"
	CategoryTravel        ExpenseCategory = "travel"
	CategoryLodging       ExpenseCategory = "lodging"
	CategoryFuel          ExpenseCategory = "fuel"
	CategoryOffice        ExpenseCategory = "office"
	CategoryUtilities     ExpenseCategory = "utilities"
	CategoryEntertainment ExpenseCategory = "entertainment"
	CategoryOther         ExpenseCategory = "other"
)

// ParseExpenseCategory maps free-form model output onto a known category.
func ParseExpenseCategory(s string) ExpenseCategory {
	switch c := ExpenseCategory(s); c {
	case CategoryMeals, CategoryTravel, CategoryLodging, CategoryFuel,
		CategoryOffice, CategoryUtilities, CategoryEntertainment:
		return c
	}
	return CategoryOther
}

type Expense struct {
	ID          uuid.UUID       `db:"id"`
	ReceiptID   uuid.UUID       `db:"receipt_id"`
	UserID      uuid.UUID       `db:"user_id"`
	Merchant    string          `db:"merchant"`
	Description string          `db:"description"`
	Category    ExpenseCategory `db:"category"`
	Amount      decimal.Decimal `db:"amount"`
	Currency    string          `db:"currency"`
	Date        time.Time       `db:"date"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}
