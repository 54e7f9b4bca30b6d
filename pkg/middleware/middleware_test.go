package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"expense-tracker/pkg/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuthApp(jwtManager *auth.JWTManager) *fiber.App {
	app := fiber.New()
	app.Get("/me", AuthMiddleware(jwtManager, zap.NewNop()), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"user_id": c.Locals(LocalUserID),
			"email":   c.Locals(LocalEmail),
		})
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour, time.Hour)
	app := newAuthApp(jwtManager)

	access, err := jwtManager.GenerateToken("user-1", "alice", "alice@example.com")
	require.NoError(t, err)
	refresh, err := jwtManager.GenerateRefreshToken("user-1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "refresh token", header: "Bearer " + refresh, status: http.StatusUnauthorized},
		{name: "bearer access token", header: "Bearer " + access, status: http.StatusOK},
		{name: "bare access token", header: access, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestRateLimitByIP(t *testing.T) {
	limiter := NewRateLimiter(0.001, 2)
	app := fiber.New()
	app.Post("/validate", RateLimitByIP(limiter), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	codes := make([]int, 0, 3)
	for range 3 {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/validate", nil))
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiter_Prune(t *testing.T) {
	limiter := NewRateLimiter(1000, 1)
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"))
	assert.Equal(t, 2, limiter.size())

	time.Sleep(5 * time.Millisecond)
	limiter.Prune()
	assert.Equal(t, 0, limiter.size())
}
