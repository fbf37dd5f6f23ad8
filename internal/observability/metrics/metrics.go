package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	JobReasonDeadlineExceeded = "deadline_exceeded"
	JobReasonDBLockTimeout    = "db_lock_timeout"
	JobReasonUniqueViolation  = "unique_violation"
	JobReasonProvider         = "provider"
	JobReasonUnknown          = "unknown"
)

// Config carries the constant labels stamped on every metric.
type Config struct {
	ServiceName string
	Environment string
}

// Metrics captures sweep, gateway and webhook health signals.
type Metrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	batchProcessed *prometheus.CounterVec

	webhooksReceived  *prometheus.CounterVec
	webhooksUnmatched *prometheus.CounterVec

	payinsVerified  *prometheus.CounterVec
	payoutsSettled  *prometheus.CounterVec
	escrowMovements *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// Default returns the singleton metrics registry.
func Default() *Metrics {
	return WithConfig(Config{})
}

// WithConfig returns the singleton metrics registry using config labels.
func WithConfig(cfg Config) *Metrics {
	metricsOnce.Do(func() {
		metrics = newMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return metrics
}

// ResetForTest resets the metrics singleton for tests.
func ResetForTest() {
	metricsOnce = sync.Once{}
	metrics = nil
}

func newMetrics(registerer prometheus.Registerer, cfg Config) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "kolopay"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "kolopay_sweep_job_runs_total",
		Help:        "Sweep job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "kolopay_sweep_job_duration_seconds",
		Help:        "Sweep job latency to protect settlement freshness.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "kolopay_sweep_job_timeouts_total",
		Help:        "Sweep job timeouts that threaten settlement SLAs.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "kolopay_sweep_job_errors_total",
		Help:        "Sweep job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	batchProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "kolopay_sweep_batch_processed_total",
		Help:        "Sweep batch items processed to gauge settlement throughput.",
		ConstLabels: constLabels,
	}, []string{"job", "resource"})

	webhooksReceived := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "kolopay_webhooks_received_total",
		Help:        "Gateway webhook deliveries by provider and outcome.",
		ConstLabels: constLabels,
	}, []string{"provider", "outcome"})
	webhooksUnmatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "kolopay_webhooks_unmatched_total",
		Help:        "Webhook deliveries that referenced no known transaction.",
		ConstLabels: constLabels,
	}, []string{"provider"})

	payinsVerified := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "kolopay_payins_verified_total",
		Help:        "Pay-in verifications by provider and resulting status.",
		ConstLabels: constLabels,
	}, []string{"provider", "status"})
	payoutsSettled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "kolopay_payouts_settled_total",
		Help:        "Payout settlements by provider and resulting status.",
		ConstLabels: constLabels,
	}, []string{"provider", "status"})
	escrowMovements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "kolopay_escrow_movements_total",
		Help:        "Escrow lock and release movements by kind.",
		ConstLabels: constLabels,
	}, []string{"kind"})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobTimeouts,
		jobErrors,
		batchProcessed,
		webhooksReceived,
		webhooksUnmatched,
		payinsVerified,
		payoutsSettled,
		escrowMovements,
	)

	return &Metrics{
		jobRuns:           jobRuns,
		jobDuration:       jobDuration,
		jobTimeouts:       jobTimeouts,
		jobErrors:         jobErrors,
		batchProcessed:    batchProcessed,
		webhooksReceived:  webhooksReceived,
		webhooksUnmatched: webhooksUnmatched,
		payinsVerified:    payinsVerified,
		payoutsSettled:    payoutsSettled,
		escrowMovements:   escrowMovements,
	}
}

// IncJobRun increments the run counter for a sweep job.
func (m *Metrics) IncJobRun(job string) {
	if m == nil || m.jobRuns == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records sweep job latency in seconds.
func (m *Metrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// IncJobTimeout increments the timeout counter for the sweep job.
func (m *Metrics) IncJobTimeout(job string) {
	if m == nil || m.jobTimeouts == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the sweep job error counter with classification.
func (m *Metrics) IncJobError(job string, err error) {
	if m == nil || m.jobErrors == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyJobReason(err)).Inc()
}

// AddBatchProcessed increments the batch processed counter for a resource by count.
func (m *Metrics) AddBatchProcessed(job, resource string, count int) {
	if m == nil || m.batchProcessed == nil || count <= 0 {
		return
	}
	m.batchProcessed.WithLabelValues(job, resource).Add(float64(count))
}

// IncWebhookReceived increments webhook delivery counters.
func (m *Metrics) IncWebhookReceived(provider, outcome string) {
	if m == nil || m.webhooksReceived == nil {
		return
	}
	m.webhooksReceived.WithLabelValues(provider, outcome).Inc()
}

// IncWebhookUnmatched increments the unmatched webhook counter.
func (m *Metrics) IncWebhookUnmatched(provider string) {
	if m == nil || m.webhooksUnmatched == nil {
		return
	}
	m.webhooksUnmatched.WithLabelValues(provider).Inc()
}

// IncPayinVerified increments pay-in verification counters.
func (m *Metrics) IncPayinVerified(provider, status string) {
	if m == nil || m.payinsVerified == nil {
		return
	}
	m.payinsVerified.WithLabelValues(provider, status).Inc()
}

// IncPayoutSettled increments payout settlement counters.
func (m *Metrics) IncPayoutSettled(provider, status string) {
	if m == nil || m.payoutsSettled == nil {
		return
	}
	m.payoutsSettled.WithLabelValues(provider, status).Inc()
}

// IncEscrowMovement increments escrow movement counters by kind.
func (m *Metrics) IncEscrowMovement(kind string) {
	if m == nil || m.escrowMovements == nil {
		return
	}
	m.escrowMovements.WithLabelValues(kind).Inc()
}

// ClassifyJobReason maps sweep job errors to low-cardinality reasons.
func ClassifyJobReason(err error) string {
	if err == nil {
		return JobReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return JobReasonDeadlineExceeded
	}
	if hasPGCode(err, "55P03") {
		return JobReasonDBLockTimeout
	}
	if isUniqueViolation(err) {
		return JobReasonUniqueViolation
	}
	return JobReasonUnknown
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return hasPGCode(err, "23505")
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
