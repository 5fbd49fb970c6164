package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"nav-agent/internal/application/port/output"
	"nav-agent/internal/domain/entity"
	"nav-agent/internal/infrastructure/llm"

	"google.golang.org/genai"
)

const providerName = "gemini"

var _ output.VisionModelPort = (*GeminiAdapter)(nil)

type GeminiAdapter struct {
	client   *genai.Client
	model    string
	jsonMode bool
	logger   output.LoggerPort
}

type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the Gemini API endpoint, mostly for tests.
	BaseURL  string
	Timeout  time.Duration
	JSONMode bool
	Logger   output.LoggerPort
}

func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:   apiKey,
		Model:    "gemini-2.5-pro",
		Timeout:  60 * time.Second,
		JSONMode: true,
	}
}

func NewGeminiAdapter(ctx context.Context, cfg Config) (*GeminiAdapter, error) {
	if cfg.APIKey == "" {
		return nil, &entity.ConfigurationError{Key: "GEMINI_API_KEY", Reason: "is required for the gemini provider"}
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiAdapter{
		client:   client,
		model:    cfg.Model,
		jsonMode: cfg.JSONMode,
		logger:   cfg.Logger,
	}, nil
}

func (a *GeminiAdapter) Name() string {
	return providerName
}

func (a *GeminiAdapter) DescribeScreen(ctx context.Context, req output.VisionRequest) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(req.UserPrompt),
			genai.NewPartFromBytes(req.Image.Data, req.Image.MimeType),
		}, genai.RoleUser),
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, a.generationConfig(req))
	if err != nil {
		return "", convertError(err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", llm.Refused(providerName, "prompt blocked: "+string(resp.PromptFeedback.BlockReason))
	}
	if len(resp.Candidates) == 0 {
		return "", llm.InvalidResponse(providerName, "no candidates in response")
	}
	if reason := resp.Candidates[0].FinishReason; blocked(reason) {
		return "", llm.Refused(providerName, "response blocked: "+string(reason))
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", llm.InvalidResponse(providerName, "empty response text")
	}

	if a.logger != nil {
		a.logger.Debug("Vision model responded",
			"model", a.model,
			"finishReason", resp.Candidates[0].FinishReason,
			"textLen", len(text))
	}
	return text, nil
}

func (a *GeminiAdapter) generationConfig(req output.VisionRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if a.jsonMode {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

func blocked(reason genai.FinishReason) bool {
	switch reason {
	case genai.FinishReasonSafety, genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent, genai.FinishReasonRecitation:
		return true
	}
	return false
}

func convertError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return llm.NewProviderError(providerName, apiErr.Code, apiErr.Message, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return llm.NewProviderError(providerName, apiErrPtr.Code, apiErrPtr.Message, err)
	}
	return llm.NewProviderError(providerName, 0, "", err)
}
