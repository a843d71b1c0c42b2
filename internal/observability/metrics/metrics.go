package metrics

import "github.com/prometheus/client_golang/prometheus"

// BotMetrics exposes counters/histograms for the LINE bot flows.
type BotMetrics struct {
	dialogueTurns  *prometheus.CounterVec
	webhookEvents  *prometheus.CounterVec
	repliesTotal   *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
	adviceLatency  *prometheus.HistogramVec
}

func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		dialogueTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salesbot",
			Subsystem: "dialogue",
			Name:      "turns_total",
			Help:      "Dialogue turns handled, by mode before the turn and outcome",
		}, []string{"mode", "outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salesbot",
			Subsystem: "line",
			Name:      "webhook_events_total",
			Help:      "LINE webhook events received",
		}, []string{"event_type", "status"}),
		repliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salesbot",
			Subsystem: "line",
			Name:      "replies_total",
			Help:      "LINE reply API calls",
		}, []string{"status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "salesbot",
			Subsystem: "line",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of LINE webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		adviceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "salesbot",
			Subsystem: "advice",
			Name:      "latency_seconds",
			Help:      "Latency of LLM advice generation",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.dialogueTurns, m.webhookEvents, m.repliesTotal, m.webhookLatency, m.adviceLatency)
	return m
}

func (m *BotMetrics) ObserveTurn(mode, outcome string) {
	if m == nil {
		return
	}
	m.dialogueTurns.WithLabelValues(mode, outcome).Inc()
}

func (m *BotMetrics) ObserveWebhookEvent(eventType, status string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, status).Inc()
}

func (m *BotMetrics) ObserveReply(status string) {
	if m == nil {
		return
	}
	m.repliesTotal.WithLabelValues(status).Inc()
}

func (m *BotMetrics) ObserveWebhookLatency(status string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(status).Observe(seconds)
}

func (m *BotMetrics) ObserveAdviceLatency(status string, seconds float64) {
	if m == nil {
		return
	}
	m.adviceLatency.WithLabelValues(status).Observe(seconds)
}
