package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"expense-tracker/internal/api/handlers"
	"expense-tracker/internal/dto"
	"expense-tracker/internal/service"
	"expense-tracker/pkg/auth"
	"expense-tracker/pkg/blobstore"
	"expense-tracker/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRouter_VoiceTokenRoutes(t *testing.T) {
	log := zap.NewNop()
	jwtManager := auth.NewJWTManager("test-secret", time.Hour, time.Hour)
	voice := service.NewVoiceTokenService(blobstore.NewMemoryStore(), log)

	app := SetupRouter(Handlers{
		Auth:       handlers.NewAuthHandler(service.NewAuthService(nil, jwtManager, log), log),
		Receipt:    handlers.NewReceiptHandler(nil, log),
		Expense:    handlers.NewExpenseHandler(nil, log),
		VoiceToken: handlers.NewVoiceTokenHandler(voice, log),
	}, RouterConfig{
		BodyLimit:        1 << 20,
		JWTManager:       jwtManager,
		ValidateLimiter:  middleware.NewRateLimiter(1000, 1000),
		DisableAccessLog: true,
	}, log)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/voice-token", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "issuing requires a session")

	access, err := jwtManager.GenerateToken("6f1c1d1e-0000-4000-8000-000000000001", "alice", "alice@example.com")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/voice-token", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var issued dto.VoiceTokenIssueResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&issued))

	body, _ := json.Marshal(dto.ValidateVoiceTokenRequest{Token: issued.Token})
	req = httptest.NewRequest(http.MethodPost, "/voice/validate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "validation needs no session")

	var v dto.ValidateVoiceTokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.True(t, v.Valid)
	assert.Equal(t, "alice@example.com", v.UserEmail)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_AuthRoutesAreRateLimited(t *testing.T) {
	log := zap.NewNop()
	jwtManager := auth.NewJWTManager("test-secret", time.Hour, time.Hour)

	app := SetupRouter(Handlers{
		Auth:       handlers.NewAuthHandler(service.NewAuthService(nil, jwtManager, log), log),
		Receipt:    handlers.NewReceiptHandler(nil, log),
		Expense:    handlers.NewExpenseHandler(nil, log),
		VoiceToken: handlers.NewVoiceTokenHandler(service.NewVoiceTokenService(blobstore.NewMemoryStore(), log), log),
	}, RouterConfig{
		JWTManager:       jwtManager,
		ValidateLimiter:  middleware.NewRateLimiter(1000, 1000),
		AuthLimiter:      middleware.NewRateLimiter(0.001, 1),
		DisableAccessLog: true,
	}, log)

	login := func() int {
		req := httptest.NewRequest(http.MethodPost, "/user/auth/login", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusBadRequest, login())
	assert.Equal(t, http.StatusTooManyRequests, login())
}

func TestHealthHandler(t *testing.T) {
	app := fiber.New()
	down := errors.New("connection refused")
	app.Get("/ok", healthHandler(map[string]func(context.Context) error{
		"database": func(context.Context) error { return nil },
	}))
	app.Get("/degraded", healthHandler(map[string]func(context.Context) error{
		"database":     func(context.Context) error { return nil },
		"voice_tokens": func(context.Context) error { return down },
	}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/degraded", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Equal(t, "connection refused", body.Checks["voice_tokens"])
}
