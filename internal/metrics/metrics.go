package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RegistrationsTotal counts name registrations started, by status
	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attestor_registrations_total",
			Help: "Total number of name registrations started",
		},
		[]string{"status"},
	)

	// ReconcileTicks counts reconciliation ticks by outcome
	ReconcileTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attestor_reconcile_ticks_total",
			Help: "Total number of reconciliation ticks",
		},
		[]string{"status"},
	)

	// ReconcileDuration tracks reconciliation tick duration
	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attestor_reconcile_duration_seconds",
			Help:    "Reconciliation tick duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// PendingBindings tracks the number of in-flight name bindings
	PendingBindings = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "attestor_pending_bindings",
			Help: "Number of name bindings awaiting activation",
		},
	)

	// UnlockPrompts counts wallet passphrase prompts shown
	UnlockPrompts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attestor_unlock_prompts_total",
			Help: "Total number of wallet passphrase prompts",
		},
	)

	// ActivationsTotal counts name activations by status
	ActivationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attestor_activations_total",
			Help: "Total number of name activations",
		},
		[]string{"status"},
	)

	// UpdatesTotal counts credential attestation updates by status
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attestor_updates_total",
			Help: "Total number of attestation name updates",
		},
		[]string{"status"},
	)

	// VerificationsTotal counts credential verifications by result
	VerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attestor_verifications_total",
			Help: "Total number of credential verifications",
		},
		[]string{"result"},
	)
)
