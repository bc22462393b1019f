package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/chatdesk/internal/config"
	"github.com/wolfman30/chatdesk/internal/responder"
	"github.com/wolfman30/chatdesk/pkg/logging"
)

// BuildCompletionClient wires the configured completion provider and an
// optional fallback. A nil client means no provider is configured and the
// responder answers with its fixed fallback text.
func BuildCompletionClient(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (responder.LLMClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	primary, err := buildProvider(ctx, cfg.LLMProvider, cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	if primary == nil {
		logger.Warn("no completion provider configured; free-form questions get the fallback reply", "provider", cfg.LLMProvider)
		return nil, nil
	}
	logger.Info("completion provider enabled", "provider", cfg.LLMProvider)

	fallbackName := strings.TrimSpace(cfg.LLMFallbackProvider)
	if fallbackName == "" || fallbackName == cfg.LLMProvider {
		return primary, nil
	}
	fallback, err := buildProvider(ctx, fallbackName, cfg, awsCfg)
	if err != nil {
		logger.Warn("fallback completion provider unavailable", "provider", fallbackName, "error", err)
		return primary, nil
	}
	if fallback == nil {
		return primary, nil
	}
	logger.Info("fallback completion provider enabled", "provider", fallbackName)
	return responder.NewFallbackClient(primary, fallback, logger), nil
}

func buildProvider(ctx context.Context, name string, cfg *appconfig.Config, awsCfg *aws.Config) (responder.LLMClient, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, nil
		}
		return responder.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	case "bedrock":
		if cfg.BedrockModelID == "" || awsCfg == nil {
			return nil, nil
		}
		return responder.NewBedrockClient(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockModelID), nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, nil
		}
		client, err := responder.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		return client, nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown LLM provider %q", name)
	}
}
