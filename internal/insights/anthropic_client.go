package insights

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when no Anthropic model ID is configured.
const DefaultAnthropicModel = "claude-3-5-haiku-latest"

const defaultAnthropicMaxTokens = 1024

// AnthropicClient implements LLMClient with the Anthropic Messages API.
type AnthropicClient struct {
	client  anthropic.Client
	modelID string
}

func NewAnthropicClient(apiKey, modelID string, opts ...anthropicoption.RequestOption) (*AnthropicClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("insights: anthropic api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = DefaultAnthropicModel
	}
	opts = append([]anthropicoption.RequestOption{anthropicoption.WithAPIKey(apiKey)}, opts...)
	return &AnthropicClient{
		client:  anthropic.NewClient(opts...),
		modelID: strings.TrimSpace(modelID),
	}, nil
}

func (c *AnthropicClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return LLMResponse{}, errors.New("insights: anthropic requires a prompt")
	}

	system := append([]string(nil), req.System...)
	if req.ResponseSchema != nil {
		system = append(system, jsonInstruction)
	}
	var systemBlocks []anthropic.TextBlockParam
	for _, block := range system {
		if strings.TrimSpace(block) == "" {
			continue
		}
		systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: block})
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.modelID),
		MaxTokens: maxTokens,
		System:    systemBlocks,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if req.Temperature >= 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("insights: anthropic: %w", err)
	}

	var builder strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			builder.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(builder.String()) == "" {
		return LLMResponse{}, errors.New("insights: anthropic response contained no text content")
	}

	return LLMResponse{
		Text:       stripCodeFence(builder.String()),
		Model:      string(message.Model),
		StopReason: string(message.StopReason),
		Usage: TokenUsage{
			InputTokens:  int32(message.Usage.InputTokens),
			OutputTokens: int32(message.Usage.OutputTokens),
			TotalTokens:  int32(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
	}, nil
}
