package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"expense-tracker/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ExpenseHandler struct {
	reportService *service.ReportService
	logger        *zap.Logger
}

func NewExpenseHandler(reportService *service.ReportService, logger *zap.Logger) *ExpenseHandler {
	return &ExpenseHandler{
		reportService: reportService,
		logger:        logger,
	}
}

// ExportCSV godoc
// @Summary Export expenses as CSV
// @Description Expenses dated in [from, to) with a total row per currency
// @Tags expenses
// @Produce text/csv
// @Param from query string false "First day, YYYY-MM-DD"
// @Param to query string false "Day after the last day, YYYY-MM-DD"
// @Security Bearer
// @Success 200 {string} string "CSV report"
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/v1/expenses/export [get]
func (h *ExpenseHandler) ExportCSV(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	from, err := parseDay(c.Query("from"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid from date, expected YYYY-MM-DD",
		})
	}
	to, err := parseDay(c.Query("to"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid to date, expected YYYY-MM-DD",
		})
	}

	var buf bytes.Buffer
	if err := h.reportService.ExportCSV(c.Context(), &buf, userID, from, to); err != nil {
		if errors.Is(err, service.ErrInvalidRange) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "from must be before to",
			})
		}
		h.logger.Error("Failed to export expenses", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to export expenses",
		})
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="expenses-%s.csv"`, time.Now().UTC().Format("20060102")))
	return c.Send(buf.Bytes())
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}
