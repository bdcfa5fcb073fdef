// Package metrics defines and registers all custom Prometheus metrics for the
// Sui-Ichiba marketplace API. It is the single source of truth for metric
// names, labels, and help strings.
//
// Collectors are created with promauto and register themselves with the
// default Prometheus registry on package initialisation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "suiichiba"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthAttemptsTotal counts sign-in submissions.
// Labels:
//   - mode: the sign-in mode (e.g. "email", "phone")
//   - outcome: the resulting flow state, or the failure kind on failure
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of sign-in submissions, by mode and outcome.",
	},
	[]string{"mode", "outcome"},
)

// OTPDispatchTotal counts one-time password dispatch attempts.
// Label:
//   - result: "sent", "throttled" or "failed"
var OTPDispatchTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "otp_dispatch_total",
		Help:      "Total number of OTP dispatch attempts, by result.",
	},
	[]string{"result"},
)

// ── Deposit metrics ───────────────────────────────────────────────────────────

// DepositsTotal counts deposit applications.
// Labels:
//   - source: "paystack", "sui" or "manual"
//   - result: "credited", "replay" or "failed"
var DepositsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deposits_total",
		Help:      "Total number of deposit applications, by source and result.",
	},
	[]string{"source", "result"},
)

// DepositCreditFailuresTotal counts confirmed payments whose balance write
// failed and were left pending for the reconciler.
var DepositCreditFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deposit_credit_failures_total",
		Help:      "Total number of confirmed deposits left pending after a failed balance write.",
	},
	[]string{"source"},
)

// DepositsDedupTotal counts fast-path idempotency checks.
// Label:
//   - result: "hit" (already applied, skipped) or "miss"
var DepositsDedupTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deposits_dedup_total",
		Help:      "Total number of deposit deduplication checks, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// DepositsQueueDepth tracks the jobs waiting in each dispatcher worker channel.
var DepositsQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "deposits_queue_depth",
		Help:      "Current number of deposit jobs pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// DepositProcessingDuration measures a queued deposit job from dequeue to
// ledger update.
var DepositProcessingDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "deposit_processing_duration_seconds",
		Help:      "Duration of queued deposit processing from dequeue to ledger update.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"result"},
)

// ConversionErrorsTotal counts failed price lookups.
var ConversionErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conversion_errors_total",
		Help:      "Total number of failed currency to SUI rate lookups.",
	},
	[]string{"currency"},
)

// ── Marketplace metrics ───────────────────────────────────────────────────────

// EscrowsTotal counts escrow state changes.
// Label:
//   - status: "active", "completed" or "failed"
var EscrowsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "escrows_total",
		Help:      "Total number of escrows entering each status.",
	},
	[]string{"status"},
)

// ProductsCreatedTotal counts listed products by category.
var ProductsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "products_created_total",
		Help:      "Total number of products listed, by category.",
	},
	[]string{"category"},
)

// MessagesSentTotal counts chat messages.
// Label:
//   - thread: "product" or "lobby"
var MessagesSentTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_sent_total",
		Help:      "Total number of chat messages sent, by thread kind.",
	},
	[]string{"thread"},
)
