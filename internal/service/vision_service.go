package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"expense-tracker/internal/models"
	"expense-tracker/pkg/config"

	"github.com/Role1776/gigago"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	gigaChatModel    = "GigaChat"
	gigaChatBaseURL  = "https://gigachat.devices.sberbank.ru/api/v1"
	gigaChatOAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"

	minParsableTextLength = 10
	maxDescriptionLength  = 200
)

var errUnauthorized = errors.New("gigachat: unauthorized")

const expenseSystemInstruction = `You are a bookkeeping assistant. You read the text of purchase receipts and invoices and turn every purchase into a structured expense line.

Rules:
- Return only a JSON array, no markdown and no commentary.
- One element per receipt (not per item) unless the document clearly contains several separate payments.
- Amounts are positive numbers with the exact value printed on the document.
- Currency is an ISO 4217 code. Infer it from symbols ($, €, £, ₽) or words when not printed as a code.
- Dates use YYYY-MM-DD. Leave the field empty when the document has no date.
- Category is one of: meals, travel, lodging, fuel, office, utilities, entertainment, other.
- If the text contains no purchase, return [].`

// ExpenseLine is one expense as read from receipt text.
type ExpenseLine struct {
	Merchant    string          `json:"merchant"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Date        string          `json:"date"`
}

// VisionService talks to GigaChat: the SDK for text generation and the REST
// API directly for file upload and vision completions, which the SDK lacks.
type VisionService struct {
	client     *gigago.Client
	model      *gigago.GenerativeModel
	config     *config.GigaChatConfig
	logger     *zap.Logger
	httpClient *http.Client
	baseURL    string
	oauthURL   string

	mu          sync.Mutex
	accessToken string
}

func NewVisionService(ctx context.Context, cfg *config.GigaChatConfig, logger *zap.Logger) (*VisionService, error) {
	opts := []gigago.Option{
		gigago.WithCustomScope(cfg.Scope),
	}
	if cfg.InsecureSkipVerify {
		opts = append(opts, gigago.WithCustomInsecureSkipVerify(true))
		logger.Warn("GigaChat TLS certificate verification is disabled")
	}

	client, err := gigago.NewClient(ctx, cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GigaChat client: %w", err)
	}

	model := client.GenerativeModel(gigaChatModel)
	model.SystemInstruction = expenseSystemInstruction
	model.Temperature = 0.1

	httpClient := &http.Client{Timeout: 60 * time.Second}
	if cfg.InsecureSkipVerify {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	logger.Info("GigaChat client initialized", zap.String("model", gigaChatModel))

	return &VisionService{
		client:     client,
		model:      model,
		config:     cfg,
		logger:     logger,
		httpClient: httpClient,
		baseURL:    gigaChatBaseURL,
		oauthURL:   gigaChatOAuthURL,
	}, nil
}

// ParseExpenses asks the model to structure receipt text into expense lines.
func (s *VisionService) ParseExpenses(ctx context.Context, text string) ([]*ExpenseLine, error) {
	text = strings.TrimSpace(text)
	if len(text) < minParsableTextLength {
		s.logger.Warn("Receipt text is too short, skipping analysis", zap.Int("length", len(text)))
		return nil, nil
	}

	prompt := "Extract the expenses from this receipt text and answer with the JSON array only.\n\n" +
		"Receipt text:\n" + text + "\n\n" +
		`Format: [{"merchant": "...", "description": "...", "category": "...", "amount": 0.00, "currency": "USD", "date": "YYYY-MM-DD"}]`

	resp, err := s.model.Generate(ctx, []gigago.Message{
		{Role: gigago.RoleUser, Content: prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from model")
	}

	lines, err := parseExpenseLines(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Receipt text parsed", zap.Int("expenses", len(lines)))
	return lines, nil
}

// parseExpenseLines pulls the JSON array out of a model reply, tolerating
// code fences and chatter around it. Lines without a positive amount are
// dropped.
func parseExpenseLines(content string) ([]*ExpenseLine, error) {
	content = strings.TrimSpace(content)
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end < start {
		if isRefusal(content) || content == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("invalid response format: %s", truncate(content, 200))
	}

	var raw []*ExpenseLine
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse expense JSON: %w", err)
	}

	lines := raw[:0]
	for _, l := range raw {
		if l == nil || !l.Amount.IsPositive() {
			continue
		}
		l.Merchant = truncate(strings.TrimSpace(sanitizeUTF8(l.Merchant)), maxDescriptionLength)
		l.Description = truncate(strings.TrimSpace(sanitizeUTF8(l.Description)), maxDescriptionLength)
		l.Category = string(models.ParseExpenseCategory(strings.ToLower(strings.TrimSpace(l.Category))))
		l.Currency = strings.ToUpper(strings.TrimSpace(l.Currency))
		lines = append(lines, l)
	}
	return lines, nil
}

// ExtractTextFromImage uploads the image and asks the vision model to
// transcribe it.
func (s *VisionService) ExtractTextFromImage(ctx context.Context, data []byte, fileName string) (string, error) {
	contentType, err := ReceiptContentType(fileName)
	if err != nil {
		return "", err
	}

	var fileID string
	err = s.withToken(ctx, func(token string) error {
		fileID, err = s.uploadFile(ctx, token, data, fileName, contentType)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	prompt := "Transcribe all text on this receipt. Keep line breaks and the order of lines. " +
		"Return only the text, no comments. If nothing is legible, return an empty answer."

	var text string
	err = s.withToken(ctx, func(token string) error {
		text, err = s.visionCompletion(ctx, token, fileID, prompt)
		return err
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("Text extracted via GigaChat vision", zap.String("file_id", fileID), zap.Int("text_length", len(text)))
	return text, nil
}

// withToken runs call with a cached access token, refreshing it once when
// the API answers 401.
func (s *VisionService) withToken(ctx context.Context, call func(token string) error) error {
	token, err := s.token(ctx, false)
	if err != nil {
		return err
	}
	err = call(token)
	if !errors.Is(err, errUnauthorized) {
		return err
	}

	s.logger.Info("GigaChat access token rejected, refreshing")
	token, err = s.token(ctx, true)
	if err != nil {
		return err
	}
	return call(token)
}

func (s *VisionService) token(ctx context.Context, refresh bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != "" && !refresh {
		return s.accessToken, nil
	}

	token, err := s.fetchAccessToken(ctx)
	if err != nil {
		return "", err
	}
	s.accessToken = token
	return token, nil
}

// fetchAccessToken exchanges the base64 API key for a bearer token.
func (s *VisionService) fetchAccessToken(ctx context.Context) (string, error) {
	rqUID := uuid.New().String()
	form := url.Values{}
	form.Set("scope", s.config.Scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.oauthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create OAuth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", rqUID)
	req.Header.Set("Authorization", "Basic "+s.config.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.logger.Error("OAuth request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("response", string(body)),
			zap.String("rq_uid", rqUID),
		)
		return "", fmt.Errorf("OAuth failed with status %d", resp.StatusCode)
	}

	var oauthResp struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   int64  `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&oauthResp); err != nil {
		return "", fmt.Errorf("failed to decode OAuth response: %w", err)
	}
	if oauthResp.AccessToken == "" {
		return "", errors.New("empty access token in OAuth response")
	}

	return oauthResp.AccessToken, nil
}

func (s *VisionService) uploadFile(ctx context.Context, token string, data []byte, fileName, contentType string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	// "general" makes the file usable as a chat attachment.
	if err := writer.WriteField("purpose", "general"); err != nil {
		return "", fmt.Errorf("failed to write purpose field: %w", err)
	}
	part, err := writer.CreatePart(map[string][]string{
		"Content-Type":        {contentType},
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to copy file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/files", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	var uploadResp struct {
		ID string `json:"id"`
	}
	if err := s.doJSON(req, &uploadResp); err != nil {
		return "", err
	}
	if uploadResp.ID == "" {
		return "", errors.New("upload response has no file id")
	}
	return uploadResp.ID, nil
}

func (s *VisionService) visionCompletion(ctx context.Context, token, fileID, prompt string) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"model": gigaChatModel,
		"messages": []map[string]interface{}{
			{
				"role":        "user",
				"content":     prompt,
				"attachments": []string{fileID},
			},
		},
		"temperature": 0.1,
		"stream":      false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := s.doJSON(req, &completion); err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("no response from vision model")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

func (s *VisionService) doJSON(req *http.Request, out interface{}) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errUnauthorized
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%s: file exceeds the upload size limit", req.URL.Path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s failed with status %d: %s", req.URL.Path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (s *VisionService) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}
