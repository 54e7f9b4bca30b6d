package models

import (
	"time"

	"github.com/google/uuid"
)

type ReceiptStatus string

const (
	ReceiptStatusUploaded  ReceiptStatus = "uploaded"
	ReceiptStatusProcessed ReceiptStatus = "processed"
	ReceiptStatusFailed    ReceiptStatus = "failed"
)

type Receipt struct {
	ID            uuid.UUID     `db:"id"`
	UserID        uuid.UUID     `db:"user_id"`
	FileName      string        `db:"file_name"`
	FileSize      int64         `db:"file_size"`
	ContentType   string        `db:"content_type"`
	StorageKey    string        `db:"storage_key"` // key inside the receipt blob container
	Status        ReceiptStatus `db:"status"`
	ExtractedText string        `db:"extracted_text"`
	CreatedAt     time.Time     `db:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at"`
}
