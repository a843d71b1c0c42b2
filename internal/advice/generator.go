package advice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/salesbot/internal/observability/metrics"
	"github.com/wolfman30/salesbot/internal/records"
	"github.com/wolfman30/salesbot/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ApologyMessage is returned whenever the model call fails or yields nothing.
	ApologyMessage = "Sorry, something went wrong while generating advice. Please try again later. 🙏"
	// NoHistoryMessage is returned for an empty appointment list.
	NoHistoryMessage = "There is no appointment history yet. Start by sending \"record\" to log an appointment."

	// MaxAdviceAppointments caps how many appointments go into one prompt.
	MaxAdviceAppointments = 10

	defaultMaxTokens = 1500
	unknownField     = "unknown"
)

const systemPrompt = "You are a sales support assistant. You analyze a salesperson's appointment history and give concise, practical advice."

type Config struct {
	Model     string
	MaxTokens int32
	Logger    *logging.Logger
	Metrics   *metrics.BotMetrics
}

// Generator turns an appointment history into sales advice text.
type Generator struct {
	client    LLMClient
	model     string
	maxTokens int32
	logger    *logging.Logger
	metrics   *metrics.BotMetrics
	tracer    trace.Tracer
}

func NewGenerator(client LLMClient, cfg Config) *Generator {
	if client == nil {
		panic("advice: llm client cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &Generator{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		tracer:    otel.Tracer("salesbot.internal.advice"),
	}
}

// GenerateAdvice never returns an error; failures degrade to ApologyMessage.
// Appointments are expected newest first.
func (g *Generator) GenerateAdvice(ctx context.Context, appointments []records.Appointment) string {
	if len(appointments) == 0 {
		return NoHistoryMessage
	}
	if len(appointments) > MaxAdviceAppointments {
		appointments = appointments[:MaxAdviceAppointments]
	}

	ctx, span := g.tracer.Start(ctx, "advice.generate")
	defer span.End()
	span.SetAttributes(
		attribute.Int("advice.appointments", len(appointments)),
		attribute.String("advice.model", g.model),
	)

	start := time.Now()
	resp, err := g.client.Complete(ctx, LLMRequest{
		Model:       g.model,
		System:      []string{systemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: BuildPrompt(appointments)}},
		MaxTokens:   g.maxTokens,
		Temperature: 0,
	})
	elapsed := time.Since(start).Seconds()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "llm completion failed")
		g.metrics.ObserveAdviceLatency("error", elapsed)
		g.logger.Error("advice generation failed", "error", err, "appointments", len(appointments))
		return ApologyMessage
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		g.metrics.ObserveAdviceLatency("empty", elapsed)
		g.logger.Warn("advice generation returned empty text", "stop_reason", resp.StopReason)
		return ApologyMessage
	}
	span.SetAttributes(
		attribute.Int("llm.input_tokens", int(resp.Usage.InputTokens)),
		attribute.Int("llm.output_tokens", int(resp.Usage.OutputTokens)),
	)
	g.metrics.ObserveAdviceLatency("ok", elapsed)
	g.logger.Info("sales advice generated",
		"appointments", len(appointments),
		"output_tokens", resp.Usage.OutputTokens,
		"duration_ms", int64(elapsed*1000),
	)
	return text
}

// BuildPrompt renders the analysis prompt for up to MaxAdviceAppointments entries.
func BuildPrompt(appointments []records.Appointment) string {
	var b strings.Builder
	b.WriteString("Analyze the following appointment history and give advice to the salesperson.\n\n")
	b.WriteString("[Appointment history]\n")
	b.WriteString(formatAppointments(appointments))
	b.WriteString("\nCover these angles:\n")
	b.WriteString("- 📊 Progress of the sales stage\n")
	b.WriteString("- 🎯 Concrete next actions\n")
	b.WriteString("- 💡 Likelihood of closing\n")
	b.WriteString("- ⚠️ Cautions and risks\n")
	b.WriteString("- ✨ What is going well\n\n")
	b.WriteString("Keep it concise and practical, and use emojis to make it easy to read.")
	return b.String()
}

func formatAppointments(appointments []records.Appointment) string {
	if len(appointments) > MaxAdviceAppointments {
		appointments = appointments[:MaxAdviceAppointments]
	}
	blocks := make([]string, 0, len(appointments))
	for i, apt := range appointments {
		blocks = append(blocks, fmt.Sprintf(
			"[Appointment %d]\nDate: %s\nTime: %s\nCustomer: %s\nDetail: %s\n",
			i+1,
			orUnknown(apt.Date),
			orUnknown(apt.Time),
			orUnknown(apt.Customer),
			orUnknown(apt.Detail),
		))
	}
	return strings.Join(blocks, "\n")
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return unknownField
	}
	return v
}
