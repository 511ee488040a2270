// Package observability defines the Prometheus metrics for the core:
// ledger deductions, sync coordinator traffic, agent tool dispatch, and
// store fallbacks. Served on /metrics when enabled in config.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// DeductionsTotal counts successful token deductions by feature.
var DeductionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "focusdeck",
	Subsystem: "ledger",
	Name:      "deductions_total",
	Help:      "Total successful token deductions by feature.",
}, []string{"feature"})

// DeductionsRefused counts deductions refused for insufficient balance.
var DeductionsRefused = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "focusdeck",
	Subsystem: "ledger",
	Name:      "deductions_refused_total",
	Help:      "Total deductions refused for insufficient balance.",
}, []string{"feature"})

// IdempotentHits counts deduction calls answered from an existing
// transaction without charging again.
var IdempotentHits = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "focusdeck",
	Subsystem: "ledger",
	Name:      "idempotent_hits_total",
	Help:      "Total deduction retries answered without a second charge.",
})

// WeeklyResets counts lazy weekly balance resets.
var WeeklyResets = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "focusdeck",
	Subsystem: "ledger",
	Name:      "weekly_resets_total",
	Help:      "Total lazy weekly balance resets applied during deduction.",
})

// ─── Sync Metrics ───────────────────────────────────────────────────────────

// LocalMutations counts local optimistic mutations by record kind and op.
var LocalMutations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "focusdeck",
	Subsystem: "sync",
	Name:      "local_mutations_total",
	Help:      "Total local optimistic mutations applied to the snapshot.",
}, []string{"kind", "op"})

// RemoteEvents counts inbound realtime events by op.
var RemoteEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "focusdeck",
	Subsystem: "sync",
	Name:      "remote_events_total",
	Help:      "Total inbound realtime change events merged into the snapshot.",
}, []string{"op"})

// EchoesDropped counts self-write echoes ignored during merge.
var EchoesDropped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "focusdeck",
	Subsystem: "sync",
	Name:      "echoes_dropped_total",
	Help:      "Total INSERT echoes of this session's own writes ignored.",
})

// PersistFailures counts async persistence failures kept as local-only state.
var PersistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "focusdeck",
	Subsystem: "sync",
	Name:      "persist_failures_total",
	Help:      "Total durable persistence failures absorbed as local-only state.",
}, []string{"kind"})

// ─── Store Metrics ──────────────────────────────────────────────────────────

// FallbackReads counts durable-read failures served from the local cache.
var FallbackReads = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "focusdeck",
	Subsystem: "store",
	Name:      "fallback_reads_total",
	Help:      "Total reads served from the local cache after a durable failure.",
})

// ─── Agent Metrics ──────────────────────────────────────────────────────────

// ToolCalls counts executed tool calls by tool name and outcome.
var ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "focusdeck",
	Subsystem: "agent",
	Name:      "tool_calls_total",
	Help:      "Total agent tool calls executed, by tool and outcome.",
}, []string{"tool", "outcome"})

// TurnsCancelled counts chat turns abandoned by user cancellation.
var TurnsCancelled = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "focusdeck",
	Subsystem: "agent",
	Name:      "turns_cancelled_total",
	Help:      "Total chat turns cancelled before completion.",
})
