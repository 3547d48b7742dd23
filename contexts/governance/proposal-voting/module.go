package proposalvoting

import (
	"log/slog"
	"time"

	httpadapter "pentarchy/contexts/governance/proposal-voting/adapters/http"
	"pentarchy/contexts/governance/proposal-voting/adapters/memory"
	"pentarchy/contexts/governance/proposal-voting/adapters/voters"
	"pentarchy/contexts/governance/proposal-voting/application/commands"
	"pentarchy/contexts/governance/proposal-voting/application/queries"
	"pentarchy/contexts/governance/proposal-voting/application/workers"
	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	"pentarchy/contexts/governance/proposal-voting/domain/policy"
	"pentarchy/contexts/governance/proposal-voting/ports"
)

type Module struct {
	Handler      httpadapter.Handler
	Orchestrator *commands.Orchestrator
	Queries      queries.ProposalQueries
	Store        *memory.Store

	proposals ports.ProposalRepository
	outbox    ports.OutboxRepository
	clock     ports.Clock
	logger    *slog.Logger
}

type Dependencies struct {
	Proposals     ports.ProposalRepository
	Outbox        ports.OutboxRepository
	Voters        []ports.Voter
	Thresholds    policy.ThresholdTable
	CostOverride  policy.CostOverride
	VotingTimeout time.Duration
	Clock         ports.Clock
	Telemetry     ports.Telemetry
	Logger        *slog.Logger
}

func NewModule(deps Dependencies) (Module, error) {
	committee := deps.Voters
	if len(committee) == 0 {
		committee = voters.HeuristicCommittee()
	}
	orchestrator, err := commands.NewOrchestrator(commands.OrchestratorConfig{
		Proposals:     deps.Proposals,
		Voters:        committee,
		Thresholds:    deps.Thresholds,
		CostOverride:  deps.CostOverride,
		VotingTimeout: deps.VotingTimeout,
		Clock:         deps.Clock,
		Telemetry:     deps.Telemetry,
		Logger:        deps.Logger,
	})
	if err != nil {
		return Module{}, err
	}
	proposalQueries := queries.ProposalQueries{
		Proposals:    deps.Proposals,
		Thresholds:   orchestrator.Thresholds(),
		CostOverride: orchestrator.CostOverride(),
	}
	return Module{
		Handler: httpadapter.Handler{
			Orchestrator: orchestrator,
			Queries:      proposalQueries,
			Logger:       deps.Logger,
		},
		Orchestrator: orchestrator,
		Queries:      proposalQueries,
		proposals:    deps.Proposals,
		outbox:       deps.Outbox,
		clock:        deps.Clock,
		logger:       deps.Logger,
	}, nil
}

// NewInMemoryModule wires the module on the in-process store. A nil committee
// uses the built-in heuristic voters.
func NewInMemoryModule(seed []entities.Proposal, committee []ports.Voter, logger *slog.Logger) (Module, error) {
	store := memory.NewStore(seed)
	module, err := NewModule(Dependencies{
		Proposals:    store,
		Outbox:       store,
		Voters:       committee,
		CostOverride: policy.DefaultCostOverride(),
		Clock:        store,
		Logger:       logger,
	})
	if err != nil {
		return Module{}, err
	}
	module.Store = store
	return module, nil
}

// OutboxRelay returns a relay draining this module's outbox into publisher.
func (m Module) OutboxRelay(publisher ports.EventPublisher, batchSize int) workers.OutboxRelay {
	return workers.OutboxRelay{
		Outbox:    m.outbox,
		Publisher: publisher,
		Clock:     m.clock,
		BatchSize: batchSize,
		Logger:    m.logger,
	}
}

// PendingSweeper returns a sweeper expiring ballots older than the voting
// timeout plus grace.
func (m Module) PendingSweeper(grace time.Duration, batchSize int) workers.PendingSweeper {
	return workers.PendingSweeper{
		Proposals:     m.proposals,
		Expirer:       m.Orchestrator,
		Clock:         m.clock,
		VotingTimeout: m.Orchestrator.VotingTimeout(),
		Grace:         grace,
		BatchSize:     batchSize,
		Logger:        m.logger,
	}
}

func (m Module) Close() {
	if m.Orchestrator != nil {
		m.Orchestrator.Close()
	}
}
