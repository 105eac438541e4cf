// Package metrics exposes Prometheus instrumentation for the HTTP surface,
// the webhook pipeline and the billing engine.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	WebhooksReceived  *prometheus.CounterVec
	SignatureRejected prometheus.Counter
	UnknownTopics     *prometheus.CounterVec
	JobsEnqueued      *prometheus.CounterVec
	JobsProcessed     *prometheus.CounterVec
	JobRetries        *prometheus.CounterVec
	JobDuration       *prometheus.HistogramVec
	DedupHits         *prometheus.CounterVec
	DeadLetters       *prometheus.CounterVec

	SubscriptionTransitions *prometheus.CounterVec
	ChargeAttempts          *prometheus.CounterVec
	CapExceeded             prometheus.Counter

	SchedulerJobRuns   *prometheus.CounterVec
	SchedulerJobErrors *prometheus.CounterVec
	SchedulerDuration  *prometheus.HistogramVec
}

// New registers the metric set on the default Prometheus registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metric set on the given registerer. Tests pass a
// fresh registry to avoid duplicate registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),

		WebhooksReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhooks_received_total",
			Help: "Inbound webhook deliveries by topic and outcome.",
		}, []string{"topic", "outcome"}),
		SignatureRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "webhook_signature_rejected_total",
			Help: "Webhook deliveries rejected by HMAC verification.",
		}),
		UnknownTopics: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_unknown_topics_total",
			Help: "Acknowledged-but-ignored webhook topics.",
		}, []string{"topic"}),
		JobsEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_jobs_enqueued_total",
			Help: "Jobs pushed to the delivery queue by topic.",
		}, []string{"topic"}),
		JobsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_jobs_processed_total",
			Help: "Executed jobs by topic and result.",
		}, []string{"topic", "result"}),
		JobRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_job_retries_total",
			Help: "Retry attempts scheduled by topic.",
		}, []string{"topic"}),
		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "webhook_job_duration_seconds",
			Help:    "Handler execution time by topic.",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
		DedupHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_dedup_hits_total",
			Help: "Deliveries short-circuited because the delivery id was already processed.",
		}, []string{"topic"}),
		DeadLetters: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_dead_letters_total",
			Help: "Jobs moved to the dead-letter store by topic.",
		}, []string{"topic"}),

		SubscriptionTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "subscription_transitions_total",
			Help: "Subscription state transitions.",
		}, []string{"from", "to"}),
		ChargeAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_charge_attempts_total",
			Help: "Gateway charge attempts by result.",
		}, []string{"result"}),
		CapExceeded: factory.NewCounter(prometheus.CounterOpts{
			Name: "billing_cap_exceeded_total",
			Help: "Usage charges rejected by the capped amount.",
		}),

		SchedulerJobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_job_runs_total",
			Help: "Scheduler job executions.",
		}, []string{"job"}),
		SchedulerJobErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_job_errors_total",
			Help: "Scheduler job failures.",
		}, []string{"job"}),
		SchedulerDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Scheduler job run time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		m.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
