// Package metrics defines and registers all custom Prometheus metrics of the
// shipping-central BFF. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics register with the default Prometheus registry on import; Recorder
// adapts them to the observer interfaces of the services and clients.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/99minutos/shipping-central/internal/infrastructure/sse"
)

const namespace = "central"

// ── Event metrics ─────────────────────────────────────────────────────────────

// EventsProcessedTotal counts SSE events routed successfully.
// Label:
//   - kind: short event kind (e.g. "quote_received")
var EventsProcessedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_processed_total",
		Help:      "Total number of upstream events successfully processed.",
	},
	[]string{"kind"},
)

// EventsErrorsTotal counts events whose processing failed.
var EventsErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_errors_total",
		Help:      "Total number of upstream events that failed processing.",
	},
	[]string{"kind"},
)

// EventsDedupTotal counts events skipped as already delivered.
var EventsDedupTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dedup_total",
		Help:      "Total number of duplicate upstream events skipped.",
	},
	[]string{"kind"},
)

// FramesIgnoredTotal counts stream frames dropped before dispatch.
// Label:
//   - reason: "malformed", "unknown_kind", "unsubscribed_kind" or "handler_panic"
var FramesIgnoredTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sse_frames_ignored_total",
		Help:      "Total number of upstream frames ignored, by reason.",
	},
	[]string{"reason"},
)

// StreamsByStatus tracks upstream subscriptions per connection status.
var StreamsByStatus = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sse_streams",
		Help:      "Current number of upstream SSE subscriptions, by status.",
	},
	[]string{"status"},
)

// ── Wizard metrics ────────────────────────────────────────────────────────────

// WizardTransitionsTotal counts wizard step changes.
var WizardTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wizard_transitions_total",
		Help:      "Total number of guide wizard step transitions.",
	},
	[]string{"from", "to"},
)

// BalanceGuardBlockedTotal counts confirmations refused for insufficient balance.
var BalanceGuardBlockedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wizard_balance_blocked_total",
		Help:      "Total number of guide confirmations blocked by the wallet balance guard.",
	},
)

// ── Backend metrics ───────────────────────────────────────────────────────────

// BackendRequestDuration measures platform API calls.
// Labels:
//   - op: client operation (e.g. "quote", "generate_guide")
//   - status: HTTP status code, or "0" when no response arrived
var BackendRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_request_duration_seconds",
		Help:      "Duration of platform API calls.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"op", "status"},
)

// Recorder implements the observer interfaces of the wizard, the event
// pipeline, the backend client and the SSE manager.
type Recorder struct {
	mu      sync.Mutex
	streams map[uint]sse.Status
}

func NewRecorder() *Recorder {
	return &Recorder{streams: make(map[uint]sse.Status)}
}

func (r *Recorder) WizardTransition(from, to string) {
	WizardTransitionsTotal.WithLabelValues(from, to).Inc()
}

func (r *Recorder) BalanceGuardBlocked() {
	BalanceGuardBlockedTotal.Inc()
}

func (r *Recorder) EventProcessed(kind string) {
	EventsProcessedTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) EventDuplicate(kind string) {
	EventsDedupTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) EventFailed(kind string) {
	EventsErrorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) BackendCall(op string, status int, elapsed time.Duration) {
	BackendRequestDuration.WithLabelValues(op, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (r *Recorder) FrameIgnored(reason string) {
	FramesIgnoredTotal.WithLabelValues(reason).Inc()
}

// StreamStatus moves a subscription between status buckets. A stopped
// subscription leaves the gauge.
func (r *Recorder) StreamStatus(businessID uint, status sse.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.streams[businessID]; ok {
		StreamsByStatus.WithLabelValues(string(prev)).Dec()
	}
	if status == sse.StatusStopped {
		delete(r.streams, businessID)
		return
	}
	r.streams[businessID] = status
	StreamsByStatus.WithLabelValues(string(status)).Inc()
}
