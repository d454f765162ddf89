package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/astro-bot/internal/session"
)

var (
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_turns_total",
			Help: "Total number of conversational turns labeled by channel and status",
		},
		[]string{"channel", "status"},
	)
	turnDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turn_duration_seconds",
			Help:    "Duration of conversational turns in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)
	sessionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_transitions_total",
			Help: "Total number of session mode/stage transitions",
		},
		[]string{"from", "to"},
	)
	sessionResetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_resets_total",
			Help: "Sessions reset because they expired or were corrupt",
		},
		[]string{"reason"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of handled errors split by kind and code",
		},
		[]string{"kind", "code"},
	)
	collaboratorCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collaborator_calls_total",
			Help: "Calls to external collaborators by service and result",
		},
		[]string{"service", "result"},
	)
	collaboratorDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collaborator_call_duration_seconds",
			Help:    "Duration of external collaborator calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbound_deliveries_total",
			Help: "Outbound payload deliveries by channel and result",
		},
		[]string{"channel", "result"},
	)
	duplicatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbound_duplicates_total",
			Help: "Redelivered inbound messages dropped by message id",
		},
		[]string{"channel"},
	)
	rateLimitChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_checks_total",
			Help: "Total number of rate limit checks by backend and result",
		},
		[]string{"backend", "result"},
	)
	rateLimitBackendErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ratelimit_redis_errors_total",
			Help: "Total number of Redis errors encountered by the limiter",
		},
	)
	activeMailboxes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatcher_active_mailboxes",
			Help: "Phones with queued or running turns",
		},
	)
	sessionsByMode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sessions_by_mode",
			Help: "Number of stored sessions per mode",
		},
		[]string{"mode"},
	)
)

var trackedModes = []session.Mode{
	session.ModeOnboarding,
	session.ModeIdle,
	session.ModeAwaitingInput,
	session.ModeError,
}

func init() {
	session.RegisterTransitionRecorder(RecordSessionTransition)
	session.RegisterResetRecorder(RecordSessionReset)
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// RecordTurn counts a finished turn and its duration.
func RecordTurn(channel, status string, duration time.Duration) {
	channel = orUnknown(channel)
	turnsTotal.WithLabelValues(channel, orUnknown(status)).Inc()
	turnDurationSeconds.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordSessionTransition tracks session transitions.
func RecordSessionTransition(from, to string) {
	sessionTransitionsTotal.WithLabelValues(orUnknown(from), orUnknown(to)).Inc()
}

// RecordSessionReset counts expired or corrupt sessions replaced by a fresh one.
func RecordSessionReset(reason string) {
	sessionResetsTotal.WithLabelValues(orUnknown(reason)).Inc()
}

// RecordError increments error counters; it matches errors.Handler.OnHandled.
func RecordError(kind, code string) {
	errorsTotal.WithLabelValues(orUnknown(kind), orUnknown(code)).Inc()
}

// ObserveCollaborator matches collaborator.Observer.
func ObserveCollaborator(service string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	collaboratorCallsTotal.WithLabelValues(orUnknown(service), result).Inc()
	collaboratorDurationSeconds.WithLabelValues(orUnknown(service)).Observe(elapsed.Seconds())
}

// RecordDelivery counts an outbound payload.
func RecordDelivery(channel, result string) {
	deliveriesTotal.WithLabelValues(orUnknown(channel), orUnknown(result)).Inc()
}

// RecordDuplicate counts a dropped redelivery.
func RecordDuplicate(channel string) {
	duplicatesTotal.WithLabelValues(orUnknown(channel)).Inc()
}

// RecordRateLimit matches ratelimit.Observer.
func RecordRateLimit(backend string, allowed bool) {
	result := "rejected"
	if allowed {
		result = "allowed"
	}
	rateLimitChecksTotal.WithLabelValues(orUnknown(backend), result).Inc()
}

// RecordRateLimitBackendError counts a failed primary limiter call.
func RecordRateLimitBackendError() {
	rateLimitBackendErrorsTotal.Inc()
}

// SetActiveMailboxes updates the dispatcher gauge.
func SetActiveMailboxes(n int) {
	activeMailboxes.Set(float64(n))
}

// SetSessionsByMode updates the gauge for the given mode.
func SetSessionsByMode(mode string, count int) {
	sessionsByMode.WithLabelValues(orUnknown(mode)).Set(float64(count))
}

// SessionCollector periodically counts stored sessions by mode.
type SessionCollector struct {
	store    session.Store
	interval time.Duration
	log      *slog.Logger
}

// NewSessionCollector builds a metrics collector bound to the session store.
func NewSessionCollector(store session.Store, interval time.Duration, log *slog.Logger) *SessionCollector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &SessionCollector{store: store, interval: interval, log: log}
}

// Run polls the store every interval until ctx is cancelled.
func (c *SessionCollector) Run(ctx context.Context) {
	if c == nil || c.store == nil {
		return
	}

	for {
		if err := c.collect(ctx); err != nil && ctx.Err() == nil {
			c.log.Warn("session metrics collection failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.interval):
		}
	}
}

func (c *SessionCollector) collect(ctx context.Context) error {
	phones, err := c.store.List(ctx)
	if err != nil {
		return err
	}

	counts := make(map[string]int, len(trackedModes))
	for _, phone := range phones {
		sess, err := c.store.Load(ctx, phone)
		if err != nil {
			// Deleted or corrupt since List; the manager deals with those.
			continue
		}
		counts[modeLabel(sess.Mode)]++
	}

	sessionsByMode.Reset()

	for _, tracked := range trackedModes {
		label := string(tracked)
		SetSessionsByMode(label, counts[label])
		delete(counts, label)
	}

	for label, count := range counts {
		SetSessionsByMode(label, count)
	}

	return nil
}

func modeLabel(m session.Mode) string {
	if m == "" {
		return "fresh"
	}
	return string(m)
}
