package line

import (
	"context"
	"net/http"
	"time"

	"github.com/wolfman30/salesbot/internal/dialogue"
	"github.com/wolfman30/salesbot/internal/observability/metrics"
	"github.com/wolfman30/salesbot/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MessageHandler answers one inbound text for a user.
type MessageHandler interface {
	Handle(ctx context.Context, userID, text string) dialogue.Reply
}

// Replier sends the reply for a webhook event.
type Replier interface {
	ReplyText(ctx context.Context, replyToken, text string) error
}

type AdapterConfig struct {
	ChannelSecret      string
	ChannelAccessToken string
	APIBase            string
	Handler            MessageHandler
	// Replier overrides the Messaging API client built from ChannelAccessToken.
	Replier Replier
	Logger  *logging.Logger
	Metrics *metrics.BotMetrics
}

// Adapter connects the LINE webhook to the dialogue machine.
type Adapter struct {
	handler MessageHandler
	replier Replier
	webhook *WebhookHandler
	logger  *logging.Logger
	metrics *metrics.BotMetrics
	tracer  trace.Tracer
}

func NewAdapter(cfg AdapterConfig) *Adapter {
	if cfg.Handler == nil {
		panic("line: message handler cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	replier := cfg.Replier
	if replier == nil {
		client := NewClient(cfg.ChannelAccessToken)
		client.SetAPIBase(cfg.APIBase)
		replier = client
	}
	a := &Adapter{
		handler: cfg.Handler,
		replier: replier,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		tracer:  otel.Tracer("salesbot.internal.channels.line"),
	}
	a.webhook = NewWebhookHandler(cfg.ChannelSecret, a.handleEvent)
	return a
}

// HandleWebhook handles POST /webhook.
func (a *Adapter) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	a.webhook.HandleInbound(rec, r)
	status := "ok"
	if rec.status != http.StatusOK {
		status = "rejected"
		a.logger.Warn("line: webhook rejected", "status", rec.status, "request_id", r.Header.Get("X-Request-Id"))
	}
	a.metrics.ObserveWebhookLatency(status, time.Since(start).Seconds())
}

func (a *Adapter) handleEvent(ctx context.Context, event Event) {
	if event.Type != EventTypeMessage || event.Message == nil || event.Message.Type != MessageTypeText {
		a.metrics.ObserveWebhookEvent(event.Type, "ignored")
		a.logger.Debug("line: ignoring event", "type", event.Type)
		return
	}
	userID := event.Source.UserID
	if userID == "" {
		a.metrics.ObserveWebhookEvent(event.Type, "ignored")
		a.logger.Warn("line: message without user id", "source_type", event.Source.Type)
		return
	}

	ctx, span := a.tracer.Start(ctx, "line.message")
	defer span.End()
	span.SetAttributes(
		attribute.String("line.user_id", userID),
		attribute.String("line.message_id", event.Message.ID),
		attribute.Bool("line.redelivery", event.DeliveryContext.IsRedelivery),
	)

	a.logger.Info("line: inbound message",
		"user_id", userID,
		"message_id", event.Message.ID,
		"redelivery", event.DeliveryContext.IsRedelivery,
		"timestamp", event.Time(),
	)
	reply := a.handler.Handle(ctx, userID, event.Message.Text)
	a.metrics.ObserveWebhookEvent(event.Type, "handled")

	if err := a.replier.ReplyText(ctx, event.ReplyToken, reply.Text); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reply failed")
		a.metrics.ObserveReply("error")
		a.logger.Error("line: failed to send reply", "user_id", userID, "error", err)
		return
	}
	a.metrics.ObserveReply("sent")
	a.logger.Info("line: reply sent", "user_id", userID, "outcome", reply.Outcome)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
