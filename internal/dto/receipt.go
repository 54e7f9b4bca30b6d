package dto

type ReceiptResponse struct {
	ID            string `json:"id"`
	FileName      string `json:"file_name"`
	FileSize      int64  `json:"file_size"`
	ContentType   string `json:"content_type"`
	Status        string `json:"status"`
	ExtractedText string `json:"extracted_text,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type ProcessReceiptResponse struct {
	Receipt  ReceiptResponse   `json:"receipt"`
	Expenses []ExpenseResponse `json:"expenses"`
}
