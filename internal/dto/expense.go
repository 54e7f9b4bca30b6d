package dto

type ExpenseResponse struct {
	ID          string `json:"id"`
	ReceiptID   string `json:"receipt_id"`
	Merchant    string `json:"merchant"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Date        string `json:"date"`
	CreatedAt   string `json:"created_at"`
}
