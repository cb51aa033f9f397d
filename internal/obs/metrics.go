package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics centralizes the runtime's Prometheus instrumentation. One instance
// is constructed per process and passed by constructor injection rather than
// package-level globals. In this module only meshexec records into it (the
// call-pipeline and policy-decision vectors); the scheduler, registration and
// memory vectors are registered but no component updates them.
type Metrics struct {
	// SchedulerPermitsInUse tracks in-flight tasks holding a scheduler permit.
	// Labels: agent_id.
	SchedulerPermitsInUse *prometheus.GaugeVec

	// SchedulerSpawnTotal counts spawn attempts by outcome.
	// Labels: agent_id, outcome (accepted|closed).
	SchedulerSpawnTotal *prometheus.CounterVec

	// CallPipelineDuration measures end-to-end call-executor latency.
	// Labels: agent_id, outcome (success|denied|escalated|error).
	CallPipelineDuration *prometheus.HistogramVec

	// CallPipelineStageDuration measures a single pipeline stage's latency.
	// Labels: stage (tool|inference, the stages meshexec records), outcome.
	CallPipelineStageDuration *prometheus.HistogramVec

	// PolicyDecisionsTotal counts policy evaluations by kind.
	// Labels: kind (allow|deny|escalate), subject_kind (tool|model|event).
	PolicyDecisionsTotal *prometheus.CounterVec

	// RegistrationAttemptsTotal counts register/heartbeat attempts.
	// Labels: op (register|heartbeat|deregister), outcome (success|error).
	RegistrationAttemptsTotal *prometheus.CounterVec

	// MemoryRecordsTotal counts memory-bus writes by channel.
	// Labels: channel (input|output|tool|system|custom).
	MemoryRecordsTotal *prometheus.CounterVec
}

// NewMetrics registers the runtime's vectors against reg. Pass
// prometheus.NewRegistry() in tests to avoid collisions with the default
// global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SchedulerPermitsInUse: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mesh_scheduler_permits_in_use",
			Help: "Number of scheduler permits currently held by in-flight tasks.",
		}, []string{"agent_id"}),
		SchedulerSpawnTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mesh_scheduler_spawn_total",
			Help: "Scheduler spawn attempts by outcome.",
		}, []string{"agent_id", "outcome"}),
		CallPipelineDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mesh_call_pipeline_duration_seconds",
			Help:    "End-to-end call-executor pipeline latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"agent_id", "outcome"}),
		CallPipelineStageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mesh_call_pipeline_stage_duration_seconds",
			Help:    "Per-stage call-executor pipeline latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"stage", "outcome"}),
		PolicyDecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mesh_policy_decisions_total",
			Help: "Policy evaluations by decision kind and subject kind.",
		}, []string{"kind", "subject_kind"}),
		RegistrationAttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mesh_registration_attempts_total",
			Help: "Registration-controller operations by outcome.",
		}, []string{"op", "outcome"}),
		MemoryRecordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mesh_memory_records_total",
			Help: "Memory bus records written by channel.",
		}, []string{"channel"}),
	}
}
