package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/ZaguanLabs/transcache"
	"github.com/sashabaranov/go-openai"
)

// DefaultModel is the model identifier used when none is configured.
const DefaultModel = "facebook/nllb-200-distilled-600M"

// OpenAIEngine implements Engine against an OpenAI-compatible chat completion
// endpoint. Any server exposing that API (OpenAI, vLLM, llama.cpp, TGI) works.
type OpenAIEngine struct {
	client      *openai.Client
	model       string
	temperature float32
}

// OpenAIConfig holds configuration for the OpenAI-compatible engine.
type OpenAIConfig struct {
	APIKey      string       // API key, may be empty for local servers
	Model       string       // Model to use (default: DefaultModel)
	Temperature float32      // Temperature for generation (default: 0.2)
	BaseURL     string       // Custom base URL (optional)
	HTTPClient  *http.Client // Optional HTTP client
}

// NewOpenAIEngine creates a new OpenAI-compatible engine.
func NewOpenAIEngine(cfg OpenAIConfig) *OpenAIEngine {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	httpClient := http.Client{}
	if cfg.HTTPClient != nil {
		httpClient = *cfg.HTTPClient
	}
	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	httpClient.Transport = userAgentTransport{base: base}
	config.HTTPClient = &httpClient

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.2
	}

	return &OpenAIEngine{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		temperature: temperature,
	}
}

// Model returns the configured model identifier.
func (e *OpenAIEngine) Model() string {
	return e.model
}

// Translate translates a batch of texts in one chat completion call.
func (e *OpenAIEngine) Translate(ctx context.Context, req TranslateRequest) ([]string, error) {
	if len(req.Texts) == 0 {
		return []string{}, nil
	}
	if !transcache.IsSupported(req.SourceLang) || !transcache.IsSupported(req.TargetLang) {
		return nil, &transcache.ProviderError{
			Message: fmt.Sprintf("unsupported language pair %s->%s", req.SourceLang, req.TargetLang),
		}
	}
	for i, text := range req.Texts {
		if text == "" {
			return nil, &transcache.ProviderError{Message: fmt.Sprintf("empty text at position %d", i)}
		}
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildSystemPrompt(req)},
			{Role: openai.ChatMessageRoleUser, Content: buildUserMessage(req)},
		},
		Temperature: e.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, classifyError("chat completion failed", err)
	}

	if len(resp.Choices) == 0 {
		return nil, &transcache.ProviderError{
			Message:   "no choices in engine response",
			Retryable: true,
		}
	}

	return parseResponse(resp.Choices[0].Message.Content, len(req.Texts))
}

// Ping reports whether the endpoint is reachable and serves the configured model.
func (e *OpenAIEngine) Ping(ctx context.Context) error {
	if _, err := e.client.GetModel(ctx, e.model); err != nil {
		return classifyError("model "+e.model+" not available", err)
	}
	return nil
}

// userAgentTransport identifies the service to the engine server.
type userAgentTransport struct {
	base http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", transcache.UserAgent())
	return t.base.RoundTrip(req)
}

func buildSystemPrompt(req TranslateRequest) string {
	source := transcache.GetLanguageName(req.SourceLang)
	target := transcache.GetLanguageName(req.TargetLang)
	sourceCode, _ := transcache.GetModelCode(req.SourceLang)
	targetCode, _ := transcache.GetModelCode(req.TargetLang)

	return fmt.Sprintf(`# Role
You are a machine translation system translating %s (%s) into %s (%s).

# Task
Translate each input string independently. Do not merge, split, reorder or drop strings.

# Rules
- Preserve placeholders (e.g. {{name}}, {count}, %%s, $1), URLs and markup exactly.
- Preserve leading and trailing whitespace and line breaks.
- Do not add explanations, notes or quotes.

# Format
Return a valid JSON object with a single key "translations" containing an array of strings in the exact same order as the input.
Example: { "translations": ["translated string 1", "translated string 2"] }
- Do NOT wrap in Markdown code blocks.`,
		source, sourceCode,
		target, targetCode)
}

func buildUserMessage(req TranslateRequest) string {
	data, _ := json.Marshal(req.Texts)
	return string(data)
}

func parseResponse(content string, expectedCount int) ([]string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	// Try parsing as object first
	var objResult map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &objResult); err == nil {
		if raw, ok := objResult["translations"]; ok {
			return decodeArray(raw, expectedCount)
		}

		// Fallback: some models pick their own key
		for _, raw := range objResult {
			if strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
				return decodeArray(raw, expectedCount)
			}
		}
	}

	// Try parsing as direct array
	if strings.HasPrefix(strings.TrimSpace(content), "[") {
		return decodeArray(json.RawMessage(content), expectedCount)
	}

	return nil, &transcache.ProviderError{
		Message: "invalid response format from engine",
	}
}

func decodeArray(raw json.RawMessage, expectedCount int) ([]string, error) {
	var arr []interface{}
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, &transcache.ProviderError{Message: "translations is not an array", Cause: err}
	}

	result := make([]string, len(arr))
	for i, v := range arr {
		if s, ok := v.(string); ok {
			result[i] = s
		} else {
			result[i] = fmt.Sprintf("%v", v)
		}
	}

	if len(result) != expectedCount {
		return nil, &transcache.CountMismatchError{
			Expected: expectedCount,
			Got:      len(result),
		}
	}

	return result, nil
}

// classifyError maps client errors onto ProviderError flags: throttling and
// server faults are retryable, transport failures also mark the engine unavailable.
func classifyError(msg string, err error) error {
	perr := &transcache.ProviderError{Message: msg, Cause: err}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return perr
	}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	status := 0
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status != 0 {
		switch {
		case status == http.StatusTooManyRequests:
			perr.Retryable = true
		case status == http.StatusBadGateway, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
			perr.Retryable = true
			perr.Unavailable = true
		case status >= 500:
			perr.Retryable = true
		}
		return perr
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		perr.Retryable = true
		perr.Unavailable = true
	}
	return perr
}

// Verify OpenAIEngine implements Engine and HealthChecker
var (
	_ Engine                   = (*OpenAIEngine)(nil)
	_ transcache.HealthChecker = (*OpenAIEngine)(nil)
)
