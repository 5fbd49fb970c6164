package openrouter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"nav-agent/internal/application/port/output"
	"nav-agent/internal/infrastructure/llm"

	"github.com/sashabaranov/go-openai"
)

const providerName = "openrouter"

var _ output.VisionModelPort = (*OpenRouterAdapter)(nil)

type OpenRouterAdapter struct {
	client   *openai.Client
	model    string
	jsonMode bool
	logger   output.LoggerPort
}

type Config struct {
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
	JSONMode bool
	Logger   output.LoggerPort
	// LogRequests adds a debug line per HTTP exchange. Image payloads are never logged.
	LogRequests bool
}

func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey:   apiKey,
		Model:    model,
		BaseURL:  "https://openrouter.ai/api/v1",
		Timeout:  60 * time.Second,
		JSONMode: true,
	}
}

type loggingTransport struct {
	base   http.RoundTripper
	logger output.LoggerPort
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	size := 0
	if req.Body != nil {
		body, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(body))
		size = len(body)
	}
	t.logger.Debug("HTTP Request", "method", req.Method, "url", req.URL.String(), "bodyBytes", size)

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.logger.Debug("HTTP Request failed", "error", err, "duration", time.Since(start))
		return resp, err
	}
	t.logger.Debug("HTTP Response", "status", resp.Status, "statusCode", resp.StatusCode, "duration", time.Since(start))
	return resp, nil
}

func NewOpenRouterAdapter(cfg Config) *OpenRouterAdapter {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	var transport http.RoundTripper = http.DefaultTransport
	if cfg.Logger != nil && cfg.LogRequests {
		transport = &loggingTransport{base: transport, logger: cfg.Logger}
	}
	config.HTTPClient = &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}

	return &OpenRouterAdapter{
		client:   openai.NewClientWithConfig(config),
		model:    cfg.Model,
		jsonMode: cfg.JSONMode,
		logger:   cfg.Logger,
	}
}

func (a *OpenRouterAdapter) Name() string {
	return providerName
}

func (a *OpenRouterAdapter) DescribeScreen(ctx context.Context, req output.VisionRequest) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, a.buildRequest(req))
	if err != nil {
		return "", convertError(err)
	}

	if len(resp.Choices) == 0 {
		return "", llm.InvalidResponse(providerName, "no choices in response")
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", llm.Refused(providerName, "response blocked by content filter")
	}
	if choice.Message.Refusal != "" {
		return "", llm.Refused(providerName, choice.Message.Refusal)
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return "", llm.InvalidResponse(providerName, "empty message content")
	}

	if a.logger != nil {
		a.logger.Debug("Vision model responded",
			"model", a.model,
			"finishReason", choice.FinishReason,
			"promptTokens", resp.Usage.PromptTokens,
			"completionTokens", resp.Usage.CompletionTokens)
	}
	return choice.Message.Content, nil
}

func (a *OpenRouterAdapter) buildRequest(req output.VisionRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeText,
				Text: req.UserPrompt,
			},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    llm.DataURL(req.Image),
					Detail: openai.ImageURLDetailHigh,
				},
			},
		},
	})

	out := openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: req.Temperature,
	}
	if a.jsonMode {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return out
}

func convertError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return llm.NewProviderError(providerName, apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return llm.NewProviderError(providerName, reqErr.HTTPStatusCode, msg, err)
	}
	return llm.NewProviderError(providerName, 0, "", err)
}
