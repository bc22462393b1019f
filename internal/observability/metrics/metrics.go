package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ChatMetrics exposes counters and histograms for the chat pipeline.
type ChatMetrics struct {
	messagesTotal      *prometheus.CounterVec
	handoffsTotal      *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	completionTotal    *prometheus.CounterVec
	completionLatency  prometheus.Histogram
	cacheEntries       prometheus.Gauge
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatdesk",
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Inbound customer messages by handling branch",
		}, []string{"branch"}),
		handoffsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatdesk",
			Subsystem: "chat",
			Name:      "handoffs_total",
			Help:      "Handoff state transitions",
		}, []string{"transition"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatdesk",
			Subsystem: "chat",
			Name:      "notifications_total",
			Help:      "Outbound operator and customer notifications",
		}, []string{"channel", "status"}),
		completionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatdesk",
			Subsystem: "chat",
			Name:      "completion_total",
			Help:      "Language model completions by outcome",
		}, []string{"status"}),
		completionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chatdesk",
			Subsystem: "chat",
			Name:      "completion_latency_seconds",
			Help:      "Latency of language model completions",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatdesk",
			Subsystem: "session",
			Name:      "cache_entries",
			Help:      "Sessions currently held in the prompt history cache",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.messagesTotal, m.handoffsTotal, m.notificationsTotal,
		m.completionTotal, m.completionLatency, m.cacheEntries)
	return m
}

func (m *ChatMetrics) ObserveMessage(branch string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(branch).Inc()
}

// ObserveHandoff records a state change as "from->to".
func (m *ChatMetrics) ObserveHandoff(from, to string) {
	if m == nil || from == to {
		return
	}
	m.handoffsTotal.WithLabelValues(from + "->" + to).Inc()
}

func (m *ChatMetrics) ObserveNotification(channel string, ok bool) {
	if m == nil {
		return
	}
	status := "sent"
	if !ok {
		status = "failed"
	}
	m.notificationsTotal.WithLabelValues(channel, status).Inc()
}

func (m *ChatMetrics) ObserveCompletion(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.completionTotal.WithLabelValues(status).Inc()
	m.completionLatency.Observe(elapsed.Seconds())
}

func (m *ChatMetrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.cacheEntries.Set(float64(n))
}

// TrackCacheEntries refreshes the cache gauge from size every interval until
// ctx is done. size may be slow (a Redis SCAN), so it never runs per request.
func (m *ChatMetrics) TrackCacheEntries(ctx context.Context, size func() int, every time.Duration) {
	if m == nil || size == nil {
		return
	}
	if every <= 0 {
		every = time.Minute
	}
	m.SetCacheEntries(size())
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SetCacheEntries(size())
		}
	}
}
