package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// ImageReader turns a receipt image into text. VisionService implements it.
type ImageReader interface {
	ExtractTextFromImage(ctx context.Context, data []byte, fileName string) (string, error)
}

var receiptFormats = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
}

// ReceiptContentType returns the MIME type for a supported receipt file name.
func ReceiptContentType(fileName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	ct, ok := receiptFormats[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q (supported: jpg, jpeg, png, pdf)", ErrUnsupportedFormat, ext)
	}
	return ct, nil
}

type OCRService struct {
	images ImageReader
	logger *zap.Logger
}

func NewOCRService(images ImageReader, logger *zap.Logger) *OCRService {
	return &OCRService{
		images: images,
		logger: logger,
	}
}

// ExtractText reads a receipt. PDFs are parsed locally with MuPDF; images go
// to the vision model. A model refusal counts as no text.
func (s *OCRService) ExtractText(ctx context.Context, data []byte, fileName string) (string, error) {
	contentType, err := ReceiptContentType(fileName)
	if err != nil {
		return "", err
	}

	var text, method string
	if contentType == "application/pdf" {
		method = "go-fitz"
		text, err = s.extractTextFromPDF(data, fileName)
		if err != nil {
			return "", fmt.Errorf("failed to extract text from PDF: %w", err)
		}
	} else {
		method = "vision"
		text, err = s.images.ExtractTextFromImage(ctx, data, fileName)
		if err != nil {
			return "", fmt.Errorf("failed to extract text from image: %w", err)
		}
	}

	text = strings.TrimSpace(sanitizeUTF8(text))
	if isRefusal(text) {
		s.logger.Warn("Extraction returned a refusal instead of text",
			zap.String("file", fileName),
			zap.String("text", text),
		)
		text = ""
	}

	s.logger.Info("OCR extraction completed",
		zap.String("file", fileName),
		zap.String("method", method),
		zap.Int("text_length", len(text)),
	)

	return text, nil
}

func (s *OCRService) extractTextFromPDF(data []byte, fileName string) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			s.logger.Warn("Failed to extract text from page",
				zap.Int("page", i+1),
				zap.String("file", fileName),
				zap.Error(err),
			)
			continue
		}
		if pageText != "" {
			sb.WriteString(pageText)
			sb.WriteString("\n")
		}
	}

	return sb.String(), nil
}

var refusalPhrases = []string{
	"cannot help",
	"can't help",
	"cannot process",
	"unable to read",
	"please provide",
	"не могу помочь",
	"не могу обработать",
	"не могу извлечь",
	"предоставьте содержимое",
	"предоставь содержимое",
}

// isRefusal reports whether model output is an apology rather than document text.
func isRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
