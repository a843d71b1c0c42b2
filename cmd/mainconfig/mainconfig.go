package mainconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	openai "github.com/sashabaranov/go-openai"
	"github.com/wolfman30/salesbot/internal/advice"
	appconfig "github.com/wolfman30/salesbot/internal/config"
	"github.com/wolfman30/salesbot/pkg/logging"
)

// LoadAWSConfig centralizes AWS SDK initialization so the API server and the
// advice smoke test share the same credentials wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	return config.LoadDefaultConfig(ctx, loaders...)
}

// NewProviderClient builds the LLM client for one provider name.
// The returned closer releases provider connections and is never nil.
func NewProviderClient(ctx context.Context, cfg *appconfig.Config, provider string) (advice.LLMClient, func(), error) {
	noop := func() {}
	switch provider {
	case "bedrock":
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, noop, fmt.Errorf("load aws config: %w", err)
		}
		return advice.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID), noop, nil
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, noop, fmt.Errorf("openai: OPENAI_API_KEY is required")
		}
		return advice.NewOpenAIClient(openai.NewClient(cfg.OpenAIAPIKey), cfg.OpenAIModel), noop, nil
	case "gemini":
		client, err := advice.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, noop, err
		}
		return client, func() { _ = client.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unsupported llm provider %q", provider)
	}
}

// NewLLMClient builds the primary provider, wrapped with the fallback provider
// when one is configured. A fallback that cannot be built is logged and skipped.
func NewLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (advice.LLMClient, func(), error) {
	primary, closePrimary, err := NewProviderClient(ctx, cfg, cfg.LLMProvider)
	if err != nil {
		return nil, func() {}, err
	}
	if cfg.LLMFallbackProvider == "" || cfg.LLMFallbackProvider == cfg.LLMProvider {
		return primary, closePrimary, nil
	}

	fallback, closeFallback, err := NewProviderClient(ctx, cfg, cfg.LLMFallbackProvider)
	if err != nil {
		logger.Warn("llm fallback provider unavailable", "provider", cfg.LLMFallbackProvider, "error", err)
		return primary, closePrimary, nil
	}
	logger.Info("llm fallback configured", "primary", cfg.LLMProvider, "fallback", cfg.LLMFallbackProvider)
	return advice.NewFallbackClient(primary, fallback, logger), func() {
		closePrimary()
		closeFallback()
	}, nil
}
