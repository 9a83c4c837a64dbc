package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the message-handling
// pipeline.
type PipelineMetrics struct {
	handledTotal    *prometheus.CounterVec
	replyLatency    *prometheus.HistogramVec
	llmFallback     prometheus.Counter
	jobsEnqueued    *prometheus.CounterVec
	enqueueFailures *prometheus.CounterVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		handledTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shiftly",
			Subsystem: "agent",
			Name:      "messages_handled_total",
			Help:      "Total inbound messages handled, by resulting action",
		}, []string{"action", "channel"}),
		replyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shiftly",
			Subsystem: "agent",
			Name:      "reply_latency_seconds",
			Help:      "Latency of full message handling",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		llmFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shiftly",
			Subsystem: "agent",
			Name:      "llm_fallback_total",
			Help:      "Replies served by the deterministic fallback",
		}),
		jobsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shiftly",
			Subsystem: "jobs",
			Name:      "enqueued_total",
			Help:      "Background jobs enqueued, by queue",
		}, []string{"queue"}),
		enqueueFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shiftly",
			Subsystem: "jobs",
			Name:      "enqueue_failures_total",
			Help:      "Background job enqueue failures, by queue",
		}, []string{"queue"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.handledTotal, m.replyLatency, m.llmFallback, m.jobsEnqueued, m.enqueueFailures)
	return m
}

func (m *PipelineMetrics) ObserveHandled(action, channel string, seconds float64) {
	if m == nil {
		return
	}
	m.handledTotal.WithLabelValues(action, channel).Inc()
	m.replyLatency.WithLabelValues(action).Observe(seconds)
}

func (m *PipelineMetrics) ObserveFallback() {
	if m == nil {
		return
	}
	m.llmFallback.Inc()
}

func (m *PipelineMetrics) ObserveEnqueue(queue string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.enqueueFailures.WithLabelValues(queue).Inc()
		return
	}
	m.jobsEnqueued.WithLabelValues(queue).Inc()
}
