package metrics

import (
	"net/http"
	"time"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	"pentarchy/contexts/governance/proposal-voting/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Governance records proposal lifecycle metrics on its own registry.
type Governance struct {
	registry        *prometheus.Registry
	proposals       *prometheus.CounterVec
	votes           *prometheus.CounterVec
	voterFailures   *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
	votingDurations *prometheus.HistogramVec
}

func NewGovernance() *Governance {
	registry := prometheus.NewRegistry()
	m := &Governance{
		registry: registry,
		proposals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "governance",
			Name:      "proposals_created_total",
			Help:      "Proposals created, by risk level.",
		}, []string{"risk_level"}),
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "governance",
			Name:      "votes_total",
			Help:      "Votes recorded, by voter and decision.",
		}, []string{"agent", "decision"}),
		voterFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "governance",
			Name:      "voter_failures_total",
			Help:      "Voter evaluations that failed and were recorded as abstentions.",
		}, []string{"agent"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "governance",
			Name:      "proposals_resolved_total",
			Help:      "Proposals resolved, by status and trigger.",
		}, []string{"status", "trigger"}),
		votingDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "governance",
			Name:      "voting_duration_seconds",
			Help:      "Time from proposal creation to resolution.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"trigger"}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.proposals,
		m.votes,
		m.voterFailures,
		m.outcomes,
		m.votingDurations,
	)
	return m
}

func (m *Governance) ProposalCreated(risk entities.RiskLevel) {
	m.proposals.With(prometheus.Labels{"risk_level": string(risk)}).Inc()
}

func (m *Governance) VoteRecorded(agent entities.VoterID, decision entities.Decision) {
	m.votes.With(prometheus.Labels{"agent": string(agent), "decision": string(decision)}).Inc()
}

func (m *Governance) VoterFailed(agent entities.VoterID) {
	m.voterFailures.With(prometheus.Labels{"agent": string(agent)}).Inc()
}

func (m *Governance) ProposalResolved(status entities.ProposalStatus, trigger entities.ResolutionTrigger, votingDuration time.Duration) {
	m.outcomes.With(prometheus.Labels{"status": string(status), "trigger": string(trigger)}).Inc()
	m.votingDurations.With(prometheus.Labels{"trigger": string(trigger)}).Observe(votingDuration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Governance) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Governance) Registry() *prometheus.Registry {
	return m.registry
}

var _ ports.Telemetry = (*Governance)(nil)
