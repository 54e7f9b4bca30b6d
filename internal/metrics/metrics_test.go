package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Idempotent(t *testing.T) {
	require.NoError(t, Init())
	require.NoError(t, Init())
}

func TestMiddleware_CountsRequests(t *testing.T) {
	require.NoError(t, Init())

	app := fiber.New()
	app.Use(Middleware())
	app.Get("/items/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/metrics", Handler())

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/items/:id", "204"))

	resp, err := app.Test(httptest.NewRequest("GET", "/items/42", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/items/:id", "204"))
	assert.Equal(t, before+1, after)

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "expense_http_requests_total")
	assert.Contains(t, string(body), "expense_voice_tokens_issued_total")
}
