package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"expense-tracker/pkg/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseExpenseLines(t *testing.T) {
	t.Run("fenced json with chatter", func(t *testing.T) {
		content := "Here you go:\n```json\n" +
			`[{"merchant":" Cafe Luna ","description":"Lunch","category":"Meals","amount":12.50,"currency":"eur","date":"2025-03-01"},` +
			`{"merchant":"Shell","description":"Fuel","category":"fuel","amount":"40.10","currency":"USD","date":""}]` +
			"\n```"

		lines, err := parseExpenseLines(content)
		require.NoError(t, err)
		require.Len(t, lines, 2)

		assert.Equal(t, "Cafe Luna", lines[0].Merchant)
		assert.Equal(t, "meals", lines[0].Category)
		assert.Equal(t, "EUR", lines[0].Currency)
		assert.True(t, decimal.RequireFromString("12.5").Equal(lines[0].Amount))
		assert.True(t, decimal.RequireFromString("40.10").Equal(lines[1].Amount))
	})

	t.Run("unknown category and non-positive amounts", func(t *testing.T) {
		lines, err := parseExpenseLines(`[{"merchant":"A","category":"gadgets","amount":5},{"merchant":"B","amount":0},{"merchant":"C","amount":-3}]`)
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, "other", lines[0].Category)
	})

	t.Run("empty array", func(t *testing.T) {
		lines, err := parseExpenseLines("[]")
		require.NoError(t, err)
		assert.Empty(t, lines)
	})

	t.Run("refusal", func(t *testing.T) {
		lines, err := parseExpenseLines("I cannot process this document.")
		require.NoError(t, err)
		assert.Empty(t, lines)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := parseExpenseLines("the total is twelve")
		assert.Error(t, err)

		_, err = parseExpenseLines("[not json]")
		assert.Error(t, err)
	})
}

func newFakeGigaChat(t *testing.T, rejectFirst bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var oauthCalls atomic.Int32
	var rejected atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth", func(w http.ResponseWriter, r *http.Request) {
		n := oauthCalls.Add(1)
		assert.Equal(t, "Basic key", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("RqUID"))
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-" + string(rune('0'+n))})
	})
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		if rejectFirst && rejected.CompareAndSwap(false, true) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "general", r.FormValue("purpose"))
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		data, _ := io.ReadAll(f)
		assert.Equal(t, "receipt.png", hdr.Filename)
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
		assert.Equal(t, "PNGDATA", string(data))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "file-1"})
	})
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Attachments []string `json:"attachments"`
			} `json:"messages"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) || !assert.Len(t, req.Messages, 1) {
			return
		}
		assert.Equal(t, []string{"file-1"}, req.Messages[0].Attachments)
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer tok-"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  CAFE LUNA\nTOTAL 12.50  "}}]}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &oauthCalls
}

func newTestVisionService(srv *httptest.Server) *VisionService {
	return &VisionService{
		config:     &config.GigaChatConfig{APIKey: "key", Scope: "GIGACHAT_API_PERS"},
		logger:     zap.NewNop(),
		httpClient: srv.Client(),
		baseURL:    srv.URL,
		oauthURL:   srv.URL + "/oauth",
	}
}

func TestVisionService_ExtractTextFromImage(t *testing.T) {
	srv, oauthCalls := newFakeGigaChat(t, false)
	svc := newTestVisionService(srv)

	text, err := svc.ExtractTextFromImage(context.Background(), []byte("PNGDATA"), "receipt.png")
	require.NoError(t, err)
	assert.Equal(t, "CAFE LUNA\nTOTAL 12.50", text)
	assert.Equal(t, int32(1), oauthCalls.Load(), "token is cached between calls")
}

func TestVisionService_RefreshesRejectedToken(t *testing.T) {
	srv, oauthCalls := newFakeGigaChat(t, true)
	svc := newTestVisionService(srv)

	_, err := svc.ExtractTextFromImage(context.Background(), []byte("PNGDATA"), "receipt.png")
	require.NoError(t, err)
	assert.Equal(t, int32(2), oauthCalls.Load())
}

func TestVisionService_RejectsUnsupportedFile(t *testing.T) {
	srv, oauthCalls := newFakeGigaChat(t, false)
	svc := newTestVisionService(srv)

	_, err := svc.ExtractTextFromImage(context.Background(), []byte("x"), "receipt.bmp")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, int32(0), oauthCalls.Load())
}
