// Package gateway issues structured-output requests to the Gemini API.
// Each method performs exactly one network round trip with a declared
// response schema; retry policy belongs to the caller, so a retried
// attempt re-sends the entire request including context.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"sentilytics/internal/logging"
	"sentilytics/internal/types"
)

// minRequestSpacing is the minimum gap between consecutive requests.
const minRequestSpacing = 100 * time.Millisecond

// Client talks to the Gemini generateContent endpoint. The model may be
// switched at runtime (config reloads) while requests are in flight, so
// model reads and writes go through the mutex.
type Client struct {
	apiKey          string
	baseURL         string
	model           string
	maxOutputTokens int
	httpClient      *http.Client
	mu              sync.Mutex
	lastRequest     time.Time
}

// NewClient creates a Gemini client with default settings.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(DefaultConfig(apiKey))
}

// NewClientWithConfig creates a Gemini client with custom config.
func NewClientWithConfig(config Config) *Client {
	model := strings.TrimSpace(config.Model)
	if model == "" {
		model = "gemini-3-flash-preview"
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens <= 0 {
		maxOutputTokens = 8192
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		apiKey:          config.APIKey,
		baseURL:         baseURL,
		model:           model,
		maxOutputTokens: maxOutputTokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetModel changes the model used for subsequent completions. Safe to
// call while requests are in flight; in-flight requests keep the model
// they started with.
func (c *Client) SetModel(model string) {
	c.mu.Lock()
	c.model = model
	c.mu.Unlock()
}

// GetModel returns the current model.
func (c *Client) GetModel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// generate performs one generateContent round trip. A nil schema means
// free-text output; otherwise the response mime type and schema are
// declared in the generation config. An empty candidate list yields an
// empty string, not an error - the caller decides what absence means.
func (c *Client) generate(ctx context.Context, systemPrompt, userPrompt string, schema map[string]interface{}) (string, error) {
	// Auto-apply timeout if context has no deadline
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	if c.apiKey == "" {
		logging.GatewayError("[Gemini] generate: API key not configured")
		return "", fmt.Errorf("API key not configured")
	}

	// Rate limiting: reserve the next send slot under the lock, then
	// wait outside it so cancellation is honored and concurrent callers
	// are not serialized on the mutex while sleeping.
	c.mu.Lock()
	model := c.model
	wait := minRequestSpacing - time.Since(c.lastRequest)
	if wait < 0 {
		wait = 0
	}
	c.lastRequest = time.Now().Add(wait)
	c.mu.Unlock()
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	reqBody := GeminiRequest{
		Contents: []GeminiContent{
			{
				Role:  "user",
				Parts: []GeminiPart{{Text: userPrompt}},
			},
		},
		GenerationConfig: GeminiGenerationConfig{
			Temperature:     1.0,
			MaxOutputTokens: c.maxOutputTokens,
		},
	}
	if systemPrompt != "" {
		reqBody.SystemInstruction = &GeminiContent{
			Parts: []GeminiPart{{Text: systemPrompt}},
		}
	}
	if schema != nil {
		reqBody.GenerationConfig.ResponseMimeType = "application/json"
		reqBody.GenerationConfig.ResponseSchema = schema
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	// Construct URL with API key
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Status: resp.StatusCode, Message: errorMessage(body)}
	}

	var geminiResp GeminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if geminiResp.Error != nil {
		return "", &APIError{Status: geminiResp.Error.Code, Message: geminiResp.Error.Message}
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}

	var result strings.Builder
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		result.WriteString(part.Text)
	}

	return strings.TrimSpace(result.String()), nil
}

// errorMessage extracts the error message from a Gemini error body,
// falling back to the raw body when it is not the standard shape.
func errorMessage(body []byte) string {
	var payload struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// ClassifySentiment classifies one comment into Positive/Neutral/Negative
// with a brief summary. An empty or malformed payload decodes as the
// zero result rather than an error; the orchestrator applies defaults.
func (c *Client) ClassifySentiment(ctx context.Context, comment string) (types.AnalysisResult, error) {
	startTime := time.Now()
	logging.GatewayDebug("[Gemini] ClassifySentiment: model=%s comment_len=%d", c.GetModel(), len(comment))

	prompt := fmt.Sprintf("Analyze feedback. Sentiment: Positive, Neutral, or Negative. Brief summary. Feedback: %q", comment)

	text, err := c.generate(ctx, "", prompt, sentimentSchema())
	if err != nil {
		logging.GatewayError("[Gemini] ClassifySentiment: failed after %v: %v", time.Since(startTime), err)
		return types.AnalysisResult{}, err
	}

	if strings.TrimSpace(text) == "" {
		text = "{}"
	}
	var payload struct {
		Sentiment string `json:"sentiment"`
		Summary   string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		// Tolerate malformed structured output: both fields absent.
		logging.GatewayWarn("[Gemini] ClassifySentiment: payload not well-formed, treating as empty: %v", err)
		payload.Sentiment, payload.Summary = "", ""
	}

	sentiment, _ := types.ParseSentiment(payload.Sentiment)

	logging.Gateway("[Gemini] ClassifySentiment: completed in %v sentiment=%q summary_len=%d",
		time.Since(startTime), sentiment, len(payload.Summary))
	return types.AnalysisResult{Sentiment: sentiment, Summary: payload.Summary}, nil
}

// GenerateInsights asks for the top 3 themes and 3 recommendations over
// a pre-assembled corpus excerpt. The service may return fewer or more
// entries; the decoded arrays are passed through as-is.
func (c *Client) GenerateInsights(ctx context.Context, data string) (types.InsightSummary, error) {
	startTime := time.Now()
	logging.GatewayDebug("[Gemini] GenerateInsights: model=%s data_len=%d", c.GetModel(), len(data))

	prompt := fmt.Sprintf("Identify top 3 themes and 3 recommendations. Data:\n%s", data)

	text, err := c.generate(ctx, "", prompt, insightSchema())
	if err != nil {
		logging.GatewayError("[Gemini] GenerateInsights: failed after %v: %v", time.Since(startTime), err)
		return types.InsightSummary{}, err
	}

	if strings.TrimSpace(text) == "" {
		text = "{}"
	}
	var summary types.InsightSummary
	if err := json.Unmarshal([]byte(text), &summary); err != nil {
		return types.InsightSummary{}, fmt.Errorf("failed to parse insight payload: %w", err)
	}

	logging.Gateway("[Gemini] GenerateInsights: completed in %v themes=%d recommendations=%d",
		time.Since(startTime), len(summary.TopThemes), len(summary.Recommendations))
	return summary, nil
}

// ChatQuery sends a user query grounded by a corpus briefing installed
// as the system instruction. An empty reply is surfaced as "" and is
// not a gateway failure.
func (c *Client) ChatQuery(ctx context.Context, briefing, query string) (string, error) {
	startTime := time.Now()
	logging.GatewayDebug("[Gemini] ChatQuery: model=%s briefing_len=%d query_len=%d", c.GetModel(), len(briefing), len(query))

	systemPrompt := fmt.Sprintf("You are the Sentilytics feedback assistant. Data Context:\n%s\nAnswer questions concisely.", briefing)

	text, err := c.generate(ctx, systemPrompt, query, nil)
	if err != nil {
		logging.GatewayError("[Gemini] ChatQuery: failed after %v: %v", time.Since(startTime), err)
		return "", err
	}

	logging.Gateway("[Gemini] ChatQuery: completed in %v reply_len=%d", time.Since(startTime), len(text))
	return text, nil
}
