package handlers

import (
	"errors"
	"strings"

	"expense-tracker/internal/dto"
	"expense-tracker/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthHandler issues the session JWTs that every /api/v1 route, including
// voice token issue and revoke, is gated on.
type AuthHandler struct {
	authService *service.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Register godoc
// @Summary Create an account
// @Description Create an account. The email is stored lowercased and doubles as the voice token identity.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Account details"
// @Success 201 {object} dto.AuthResponse
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Router /user/auth/register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	resp, err := h.authService.Register(c.Context(), &req)
	if err != nil {
		return h.authFailure(c, "register", service.NormalizeEmail(req.Email), err)
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Login godoc
// @Summary Sign in
// @Description Exchange email and password for an access and refresh token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Router /user/auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	resp, err := h.authService.Login(c.Context(), &req)
	if err != nil {
		return h.authFailure(c, "login", service.NormalizeEmail(req.Email), err)
	}

	return c.JSON(resp)
}

// RefreshToken godoc
// @Summary Refresh a session
// @Description Trade a refresh token for a new token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} dto.AuthResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /user/auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token is required")
	}

	resp, err := h.authService.RefreshToken(c.Context(), req.RefreshToken)
	if err != nil {
		return h.authFailure(c, "refresh", "", err)
	}

	return c.JSON(resp)
}

// authFailure turns an AuthService error into a client response. Credential
// errors never reveal whether the account exists.
func (h *AuthHandler) authFailure(c *fiber.Ctx, action, email string, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return badRequest(c, "Username, email and password are required")
	case errors.Is(err, service.ErrUserExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "An account with this email already exists",
		})
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrUserNotFound):
		h.logger.Warn("Authentication rejected",
			zap.String("action", action),
			zap.String("email", email),
			zap.String("ip", c.IP()),
		)
		msg := "Invalid email or password"
		if action == "refresh" {
			msg = "Invalid refresh token"
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": msg,
		})
	}

	h.logger.Error("Authentication failed", zap.String("action", action), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Authentication failed",
	})
}
