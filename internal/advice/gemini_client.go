package advice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.5-flash"

// geminiCall is one GenerateContent invocation with its model settings.
type geminiCall struct {
	Model       string
	Temperature *float32
	MaxTokens   *int32
	System      *genai.Content
	Parts       []genai.Part
}

type geminiContentAPI interface {
	GenerateContent(ctx context.Context, call geminiCall) (*genai.GenerateContentResponse, error)
}

// genaiContentAPI applies a geminiCall to a fresh GenerativeModel.
type genaiContentAPI struct {
	client *genai.Client
}

func (a genaiContentAPI) GenerateContent(ctx context.Context, call geminiCall) (*genai.GenerateContentResponse, error) {
	model := a.client.GenerativeModel(call.Model)
	if call.Temperature != nil {
		model.SetTemperature(*call.Temperature)
	}
	if call.MaxTokens != nil {
		model.SetMaxOutputTokens(*call.MaxTokens)
	}
	model.SystemInstruction = call.System
	return model.GenerateContent(ctx, call.Parts...)
}

// GeminiClient implements LLMClient using Google's Gemini API.
type GeminiClient struct {
	api     geminiContentAPI
	modelID string
	close   func() error
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(ctx context.Context, apiKey, modelID string) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("advice: gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("advice: failed to create gemini client: %w", err)
	}
	c := newGeminiClient(genaiContentAPI{client: client}, modelID)
	c.close = client.Close
	return c, nil
}

func newGeminiClient(api geminiContentAPI, modelID string) *GeminiClient {
	if api == nil {
		panic("advice: gemini client cannot be nil")
	}
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		modelID = defaultGeminiModel
	}
	return &GeminiClient{api: api, modelID: modelID, close: func() error { return nil }}
}

// Close releases the underlying gRPC connection.
func (c *GeminiClient) Close() error {
	return c.close()
}

func (c *GeminiClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	call := geminiCall{Model: modelOr(req.Model, c.modelID)}
	if req.Temperature >= 0 {
		temperature := req.Temperature
		call.Temperature = &temperature
	}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		call.MaxTokens = &maxTokens
	}
	var system []string
	for _, block := range req.System {
		if block = strings.TrimSpace(block); block != "" {
			system = append(system, block)
		}
	}
	if len(system) > 0 {
		call.System = genai.NewUserContent(genai.Text(strings.Join(system, "\n\n")))
	}

	// Gemini takes a single turn here; assistant history is not replayed.
	for _, msg := range req.Messages {
		if msg.Role != ChatRoleUser {
			continue
		}
		if content := strings.TrimSpace(msg.Content); content != "" {
			call.Parts = append(call.Parts, genai.Text(content))
		}
	}
	if len(call.Parts) == 0 {
		return LLMResponse{}, errors.New("advice: gemini requires at least one user message")
	}

	resp, err := c.api.GenerateContent(ctx, call)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("advice: gemini completion failed: %w", err)
	}
	return geminiResponse(resp)
}

func geminiResponse(resp *genai.GenerateContentResponse) (LLMResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return LLMResponse{}, errors.New("advice: gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	out := LLMResponse{
		Text:       strings.TrimSpace(text.String()),
		StopReason: candidate.FinishReason.String(),
	}
	if out.Text == "" {
		return LLMResponse{}, errors.New("advice: gemini returned empty content")
	}
	if resp.UsageMetadata != nil {
		out.Usage = TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}
