package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditchat_chat_turns_total",
			Help: "Total number of chat turns by terminal status.",
		},
		[]string{"status"},
	)
	guardrailRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auditchat_guardrail_rejections_total",
			Help: "Total number of user queries rejected by the guardrail.",
		},
	)
	llmCallDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auditchat_llm_call_duration_seconds",
			Help:    "Language model call latency by purpose.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"purpose"},
	)
	warehouseQueryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auditchat_warehouse_query_duration_seconds",
			Help:    "Warehouse query execution latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)
	artifactUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditchat_artifact_uploads_total",
			Help: "Total number of raw-data artifacts uploaded to the object store.",
		},
		[]string{"format"},
	)
)

func init() {
	prometheus.MustRegister(
		chatTurnsTotal,
		guardrailRejectionsTotal,
		llmCallDurationSeconds,
		warehouseQueryDurationSeconds,
		artifactUploadsTotal,
	)
}

func ObserveChatTurn(status string) {
	chatTurnsTotal.WithLabelValues(status).Inc()
}

func IncrementGuardrailRejection() {
	guardrailRejectionsTotal.Inc()
}

func ObserveLLMCall(purpose string, elapsed time.Duration) {
	llmCallDurationSeconds.WithLabelValues(purpose).Observe(elapsed.Seconds())
}

func ObserveWarehouseQuery(elapsed time.Duration) {
	warehouseQueryDurationSeconds.Observe(elapsed.Seconds())
}

func IncrementArtifactUpload(format string) {
	artifactUploadsTotal.WithLabelValues(format).Inc()
}
