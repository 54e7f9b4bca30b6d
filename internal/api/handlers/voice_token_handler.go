package handlers

import (
	"errors"
	"strings"

	"expense-tracker/internal/dto"
	"expense-tracker/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// isoTimestamp is ISO-8601 in UTC with millisecond precision.
const isoTimestamp = "2006-01-02T15:04:05.000Z07:00"

type VoiceTokenHandler struct {
	voiceService *service.VoiceTokenService
	logger       *zap.Logger
}

func NewVoiceTokenHandler(voiceService *service.VoiceTokenService, logger *zap.Logger) *VoiceTokenHandler {
	return &VoiceTokenHandler{
		voiceService: voiceService,
		logger:       logger,
	}
}

// IssueToken godoc
// @Summary Issue a voice token
// @Description Issue a spoken one-word token valid for 15 minutes. Any previous token of the caller is revoked.
// @Tags voice
// @Produce json
// @Security Bearer
// @Success 201 {object} dto.VoiceTokenIssueResponse
// @Failure 401 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/v1/voice-token [post]
func (h *VoiceTokenHandler) IssueToken(c *fiber.Ctx) error {
	email, err := getEmail(c)
	if err != nil {
		return unauthorized(c)
	}

	issued, err := h.voiceService.Generate(c.Context(), email, email)
	if err != nil {
		return h.serviceError(c, "Failed to issue voice token", err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.VoiceTokenIssueResponse{
		Token:           strings.ToUpper(issued.Token),
		ExpiresAt:       issued.ExpiresAt.UTC().Format(isoTimestamp),
		ValidForMinutes: issued.ValidForMinutes,
	})
}

// GetStatus godoc
// @Summary Get the active voice token
// @Tags voice
// @Produce json
// @Security Bearer
// @Success 200 {object} dto.VoiceTokenStatusResponse
// @Failure 401 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/v1/voice-token [get]
func (h *VoiceTokenHandler) GetStatus(c *fiber.Ctx) error {
	email, err := getEmail(c)
	if err != nil {
		return unauthorized(c)
	}

	active, err := h.voiceService.GetActiveForUser(c.Context(), email)
	if err != nil {
		return h.serviceError(c, "Failed to get voice token", err)
	}
	if active == nil {
		return c.JSON(dto.VoiceTokenStatusResponse{HasActiveToken: false})
	}

	remaining := active.RemainingSeconds
	return c.JSON(dto.VoiceTokenStatusResponse{
		HasActiveToken:   true,
		Token:            strings.ToUpper(active.Token),
		ExpiresAt:        active.ExpiresAt.UTC().Format(isoTimestamp),
		RemainingSeconds: &remaining,
	})
}

// RevokeToken godoc
// @Summary Revoke the active voice token
// @Tags voice
// @Produce json
// @Security Bearer
// @Success 200 {object} dto.VoiceTokenRevokeResponse
// @Failure 401 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/v1/voice-token [delete]
func (h *VoiceTokenHandler) RevokeToken(c *fiber.Ctx) error {
	email, err := getEmail(c)
	if err != nil {
		return unauthorized(c)
	}

	removed, err := h.voiceService.InvalidateUser(c.Context(), email)
	if err != nil {
		return h.serviceError(c, "Failed to revoke voice token", err)
	}

	return c.JSON(dto.VoiceTokenRevokeResponse{WasInvalidated: removed})
}

// ValidateToken godoc
// @Summary Validate a voice token
// @Description Resolve a spoken token to its owner. Unknown and expired tokens are both reported as valid=false.
// @Tags voice
// @Accept json
// @Produce json
// @Param request body dto.ValidateVoiceTokenRequest true "Spoken token"
// @Success 200 {object} dto.ValidateVoiceTokenResponse
// @Failure 400 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /voice/validate [post]
func (h *VoiceTokenHandler) ValidateToken(c *fiber.Ctx) error {
	var req dto.ValidateVoiceTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if strings.TrimSpace(req.Token) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Token is required",
		})
	}

	identity, err := h.voiceService.Validate(c.Context(), req.Token)
	if err != nil {
		if errors.Is(err, service.ErrTokenNotFound) || errors.Is(err, service.ErrTokenExpired) {
			return c.JSON(dto.ValidateVoiceTokenResponse{Valid: false})
		}
		return h.serviceError(c, "Failed to validate voice token", err)
	}

	return c.JSON(dto.ValidateVoiceTokenResponse{
		Valid:     true,
		UserID:    identity.UserID,
		UserEmail: identity.UserEmail,
	})
}

func (h *VoiceTokenHandler) serviceError(c *fiber.Ctx, msg string, err error) error {
	h.logger.Error(msg, zap.Error(err))
	if errors.Is(err, service.ErrServiceUnavailable) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Voice token service unavailable",
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": msg,
	})
}

