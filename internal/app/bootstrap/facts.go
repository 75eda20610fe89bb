package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/appointment-insights/internal/config"
	"github.com/wolfman30/appointment-insights/internal/insights"
	"github.com/wolfman30/appointment-insights/pkg/logging"
)

// BuildFactClient wires Gemini as the fact provider. A configured Bedrock model
// (with AWS config) or an Anthropic API key supplies the fallback, Bedrock
// first. The returned close func releases the Gemini client.
func BuildFactClient(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (insights.LLMClient, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	gemini, err := insights.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: %w", err)
	}
	closeFn := func() { _ = gemini.Close() }

	fallback, provider := buildFallback(cfg, awsCfg, logger)
	if fallback == nil {
		logger.Info("using gemini fact provider", "model", cfg.GeminiModelID)
		return gemini, closeFn, nil
	}
	logger.Info("using gemini fact provider with fallback",
		"model", cfg.GeminiModelID,
		"fallback", provider,
	)
	return insights.NewFallbackClient(gemini, fallback, logger), closeFn, nil
}

func buildFallback(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (insights.LLMClient, string) {
	if bedrock := buildBedrockFallback(cfg, awsCfg, logger); bedrock != nil {
		return bedrock, "bedrock"
	}
	if strings.TrimSpace(cfg.AnthropicAPIKey) == "" {
		return nil, ""
	}
	client, err := insights.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModelID)
	if err != nil {
		logger.Warn("anthropic fallback disabled", "error", err)
		return nil, ""
	}
	return client, "anthropic"
}

func buildBedrockFallback(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) insights.LLMClient {
	model := strings.TrimSpace(cfg.BedrockModelID)
	if model == "" {
		return nil
	}
	if awsCfg == nil {
		logger.Warn("bedrock model configured without aws config; fallback disabled")
		return nil
	}
	return insights.NewBedrockClient(bedrockruntime.NewFromConfig(*awsCfg), model)
}
