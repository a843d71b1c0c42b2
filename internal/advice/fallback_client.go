package advice

import (
	"context"

	"github.com/wolfman30/salesbot/pkg/logging"
)

// FallbackClient wraps a primary LLM client with a fallback provider.
// If the primary fails, the same request is retried once on the fallback.
type FallbackClient struct {
	primary  LLMClient
	fallback LLMClient
	logger   *logging.Logger
}

// NewFallbackClient returns a client that retries on fallback when primary fails.
// A nil fallback makes it a passthrough.
func NewFallbackClient(primary, fallback LLMClient, logger *logging.Logger) *FallbackClient {
	if primary == nil {
		panic("advice: primary llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClient{primary: primary, fallback: fallback, logger: logger}
}

// Complete sends the request to the primary provider and, when that fails
// and a fallback is configured, to the fallback. A caller whose context is
// already done gets the primary error without a second attempt.
func (c *FallbackClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	// Log the primary failure
	c.logger.Warn("primary LLM failed, attempting fallback",
		"error", err,
		"fallback_available", c.fallback != nil,
	)
	// No fallback, or no time left to use it: return the original error.
	if c.fallback == nil || ctx.Err() != nil {
		return LLMResponse{}, err
	}

	fallbackResp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback LLM also failed",
			"primary_error", err,
			"fallback_error", fallbackErr,
		)
		// The fallback error is the one from the last attempt.
		return LLMResponse{}, fallbackErr
	}
	c.logger.Info("fallback LLM succeeded after primary failure")
	return fallbackResp, nil
}
