package insights

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"

	"github.com/wolfman30/appointment-insights/pkg/logging"
)

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// LLMRequest is a single-turn completion. A negative Temperature leaves the
// provider default in place.
type LLMRequest struct {
	System      []string
	Prompt      string
	MaxTokens   int32
	Temperature float32
	// ResponseSchema asks for a JSON response of this shape.
	ResponseSchema *genai.Schema
}

type LLMResponse struct {
	Text       string
	Model      string
	Usage      TokenUsage
	StopReason string
}

type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// FallbackClient sends a request to a second provider when the first one
// errors. With no fallback configured it is a plain pass-through, and a
// request whose ctx is already done is never retried.
type FallbackClient struct {
	primary  LLMClient
	fallback LLMClient
	logger   *logging.Logger
}

func NewFallbackClient(primary, fallback LLMClient, logger *logging.Logger) *FallbackClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClient{primary: primary, fallback: fallback, logger: logger}
}

func (c *FallbackClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, primaryErr := c.primary.Complete(ctx, req)
	if primaryErr == nil {
		return resp, nil
	}
	if c.fallback == nil || ctx.Err() != nil {
		return LLMResponse{}, primaryErr
	}

	c.logger.Warn("fact provider failed, switching to fallback", "error", primaryErr)
	resp, err := c.fallback.Complete(ctx, req)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("insights: all providers failed: %w", errors.Join(primaryErr, err))
	}
	c.logger.Debug("fallback provider answered", "model", resp.Model)
	return resp, nil
}
