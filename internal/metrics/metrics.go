// Package metrics exposes application counters in Prometheus format.
//
// A nil *Metrics is valid and records nothing, so services can be built
// without instrumentation in tests and tools.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leadscout"

type Metrics struct {
	registry *prometheus.Registry

	otpIssued       prometheus.Counter
	signupsVerified prometheus.Counter
	logins          *prometheus.CounterVec
	scrapeJobs      *prometheus.CounterVec
	queueTasks      *prometheus.CounterVec
	llmRequests     *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.otpIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "otp_issued_total",
		Help: "One-time codes issued by signup initiate and resend.",
	})
	m.signupsVerified = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "signups_verified_total",
		Help: "Accounts created after successful OTP verification.",
	})
	m.logins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "logins_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})
	m.scrapeJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "scrape_jobs_total",
		Help: "Scrape job status transitions.",
	}, []string{"status"})
	m.queueTasks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "queue_tasks_total",
		Help: "Background tasks processed by the worker pool.",
	}, []string{"type", "outcome"})
	m.llmRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "llm_requests_total",
		Help: "Completion requests sent to LLM providers.",
	}, []string{"provider", "outcome"})
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "http_requests_total",
		Help: "HTTP requests served.",
	}, []string{"method", "code"})
	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	m.registry.MustRegister(
		m.otpIssued, m.signupsVerified, m.logins, m.scrapeJobs,
		m.queueTasks, m.llmRequests, m.httpRequests, m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) OTPIssued() {
	if m != nil {
		m.otpIssued.Inc()
	}
}

func (m *Metrics) SignupVerified() {
	if m != nil {
		m.signupsVerified.Inc()
	}
}

func (m *Metrics) Login(outcome string) {
	if m != nil {
		m.logins.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ScrapeJob(status string) {
	if m != nil {
		m.scrapeJobs.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) QueueTask(taskType, outcome string) {
	if m != nil {
		m.queueTasks.WithLabelValues(taskType, outcome).Inc()
	}
}

func (m *Metrics) LLMRequest(provider string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.llmRequests.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) HTTPRequest(method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(d.Seconds())
}
