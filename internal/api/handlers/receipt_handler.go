package handlers

import (
	"errors"
	"io"

	"expense-tracker/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxListLimit = 100

type ReceiptHandler struct {
	receiptService *service.ReceiptService
	logger         *zap.Logger
}

func NewReceiptHandler(receiptService *service.ReceiptService, logger *zap.Logger) *ReceiptHandler {
	return &ReceiptHandler{
		receiptService: receiptService,
		logger:         logger,
	}
}

// UploadReceipt godoc
// @Summary Upload a receipt
// @Description Upload a receipt image or PDF for expense extraction
// @Tags receipts
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Receipt file (jpg, png or pdf)"
// @Security Bearer
// @Success 201 {object} dto.ReceiptResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/v1/receipts/upload [post]
func (h *ReceiptHandler) UploadReceipt(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "File is required",
		})
	}

	src, err := file.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to open file",
		})
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to read file",
		})
	}

	receipt, err := h.receiptService.Upload(c.Context(), userID, file.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedFormat):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unsupported file format",
			})
		case errors.Is(err, service.ErrEmptyFile):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "File is empty",
			})
		}
		h.logger.Error("Failed to upload receipt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to upload receipt",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(receipt)
}

// ProcessReceipt godoc
// @Summary Process a receipt
// @Description Extract text from a receipt and store the expenses found on it
// @Tags receipts
// @Produce json
// @Param id path string true "Receipt ID"
// @Security Bearer
// @Success 200 {object} dto.ProcessReceiptResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/receipts/{id}/process [post]
func (h *ReceiptHandler) ProcessReceipt(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	receiptID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid receipt ID",
		})
	}

	result, err := h.receiptService.Process(c.Context(), userID, receiptID)
	if err != nil {
		if errors.Is(err, service.ErrReceiptNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Receipt not found",
			})
		}
		h.logger.Error("Failed to process receipt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process receipt",
		})
	}

	return c.JSON(result)
}

// ListReceipts godoc
// @Summary List receipts
// @Tags receipts
// @Produce json
// @Param limit query int false "Limit" default(10)
// @Param offset query int false "Offset" default(0)
// @Security Bearer
// @Success 200 {array} dto.ReceiptResponse
// @Failure 401 {object} map[string]string
// @Router /api/v1/receipts [get]
func (h *ReceiptHandler) ListReceipts(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	limit := c.QueryInt("limit", 10)
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	receipts, err := h.receiptService.List(c.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list receipts", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list receipts",
		})
	}

	return c.JSON(receipts)
}
