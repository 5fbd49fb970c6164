package output

import (
	"context"

	"nav-agent/internal/domain/entity"
)

// VisionModelPort is the narrow capability a turn needs from a hosted
// multimodal model: one image plus prompts in, raw reply text out. Failures are
// returned as *entity.ProviderError and are never retried by the adapter.
type VisionModelPort interface {
	Name() string
	DescribeScreen(ctx context.Context, req VisionRequest) (string, error)
}

type VisionRequest struct {
	Image        entity.Screenshot
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
}
