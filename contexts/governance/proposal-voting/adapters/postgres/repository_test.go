package postgresadapter

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	domainerrors "pentarchy/contexts/governance/proposal-voting/domain/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(domainerrors.ErrConflict))
}

func TestProposalModelKeepsVoteOrder(t *testing.T) {
	score := 4.5
	resolvedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	row := proposalModelFromEntity(entities.Proposal{
		ProposalID:        "p-1",
		Title:             "Ship",
		Description:       "Ship it",
		RiskLevel:         entities.RiskLevelMedium,
		Status:            entities.ProposalStatusApproved,
		FinalScore:        &score,
		Threshold:         4.5,
		ResolutionTrigger: entities.TriggerAllVotes,
		ResolvedAt:        &resolvedAt,
	})
	require.Equal(t, time.UTC, row.ResolvedAt.Location())

	votes := []voteModel{
		voteModelFromEntity("p-1", 0, entities.Vote{Agent: entities.VoterHermes, Decision: entities.DecisionApprove, Score: 1}),
		voteModelFromEntity("p-1", 1, entities.Vote{Agent: entities.VoterAegis, Decision: entities.DecisionReject, Score: 2, Reasoning: []string{"risky"}}),
	}
	assert.Equal(t, []string{}, votes[0].Reasoning)

	proposal := row.toEntity(votes)
	require.Len(t, proposal.Votes, 2)
	assert.Equal(t, entities.VoterHermes, proposal.Votes[0].Agent)
	assert.Equal(t, entities.VoterAegis, proposal.Votes[1].Agent)
	assert.Equal(t, []string{"risky"}, proposal.Votes[1].Reasoning)
	require.NotNil(t, proposal.FinalScore)
	assert.Equal(t, 4.5, *proposal.FinalScore)
}

// The integration tests below run against a disposable database named by
// GOVERNANCE_TEST_POSTGRES_DSN.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("GOVERNANCE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GOVERNANCE_TEST_POSTGRES_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := NewRepository(db, nil)
	require.NoError(t, repo.Migrate(context.Background()))
	require.NoError(t, db.Exec("TRUNCATE governance_votes, governance_proposals, governance_outbox").Error)
	return repo
}

func createPending(t *testing.T, repo *Repository) entities.Proposal {
	t.Helper()
	proposal, err := repo.CreateProposal(context.Background(), entities.NewProposal{
		Title:       "Rotate keys",
		Description: "Rotate the signing keys for the payment gateway",
		Cost:        250,
		RiskLevel:   entities.RiskLevelHigh,
		Context:     map[string]any{"team": "platform"},
	})
	require.NoError(t, err)
	return proposal
}

func TestRepositoryAppendVoteRejectsMalformedVotes(t *testing.T) {
	repo := NewRepository(nil, nil)

	_, err := repo.AppendVote(context.Background(), "p-1", entities.Vote{
		Agent: "zeus", Decision: entities.DecisionApprove, Score: 1,
	})
	require.ErrorIs(t, err, domainerrors.ErrValidation)
	require.ErrorIs(t, err, domainerrors.ErrUnknownVoter)

	_, err = repo.AppendVote(context.Background(), "p-1", entities.Vote{
		Agent: entities.VoterAegis, Decision: "MAYBE", Score: 1,
	})
	require.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestRepositoryVoteLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	proposal := createPending(t, repo)
	assert.Equal(t, "anonymous", proposal.InitiatedBy)

	updated, err := repo.AppendVote(ctx, proposal.ProposalID, entities.Vote{
		Agent:    entities.VoterAthena,
		Decision: entities.DecisionApprove,
		Score:    2,
	})
	require.NoError(t, err)
	require.Len(t, updated.Votes, 1)

	_, err = repo.AppendVote(ctx, proposal.ProposalID, entities.Vote{
		Agent:    entities.VoterAthena,
		Decision: entities.DecisionReject,
		Score:    1,
	})
	require.ErrorIs(t, err, domainerrors.ErrDuplicateVoter)

	resolution := entities.Resolution{
		Status:     entities.ProposalStatusEscalated,
		FinalScore: 2,
		Threshold:  6,
		Reason:     "insufficient_votes",
		Trigger:    entities.TriggerTimeout,
	}
	resolved, transitioned, err := repo.ResolveProposal(ctx, proposal.ProposalID, resolution)
	require.NoError(t, err)
	assert.True(t, transitioned)
	assert.Equal(t, entities.ProposalStatusEscalated, resolved.Status)

	_, transitioned, err = repo.ResolveProposal(ctx, proposal.ProposalID, resolution)
	require.NoError(t, err)
	assert.False(t, transitioned)

	resolution.Status = entities.ProposalStatusApproved
	_, _, err = repo.ResolveProposal(ctx, proposal.ProposalID, resolution)
	require.ErrorIs(t, err, domainerrors.ErrConflict)

	_, err = repo.AppendVote(ctx, proposal.ProposalID, entities.Vote{
		Agent:    entities.VoterAegis,
		Decision: entities.DecisionApprove,
		Score:    1,
	})
	require.ErrorIs(t, err, domainerrors.ErrConflict)

	pending, err := repo.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "vote", pending[0].EventType)
	assert.Equal(t, "resolved", pending[1].EventType)
	require.NoError(t, repo.MarkOutboxPublished(ctx, pending[0].OutboxID, time.Now()))
	require.ErrorIs(t, repo.MarkOutboxPublished(ctx, pending[0].OutboxID, time.Now()), domainerrors.ErrConflict)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalProposals)
	assert.Equal(t, 1, stats.ByStatus[entities.ProposalStatusEscalated])
	assert.Equal(t, 1, stats.TotalVotes)
	assert.Equal(t, 2.0, stats.AverageScore)
}

func TestRepositoryConcurrentResolveTransitionsOnce(t *testing.T) {
	repo := newTestRepository(t)
	proposal := createPending(t, repo)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, transitioned, err := repo.ResolveProposal(context.Background(), proposal.ProposalID, entities.Resolution{
				Status:     entities.ProposalStatusRejected,
				FinalScore: -7,
				Threshold:  6,
				Reason:     "reject_threshold",
				Trigger:    entities.TriggerManual,
			})
			assert.NoError(t, err)
			if transitioned {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func TestRepositoryListAndPending(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	first := createPending(t, repo)
	second := createPending(t, repo)
	_, _, err := repo.ResolveProposal(ctx, second.ProposalID, entities.Resolution{
		Status:     entities.ProposalStatusApproved,
		FinalScore: 7,
		Threshold:  6,
		Reason:     "approve_threshold",
		Trigger:    entities.TriggerManual,
	})
	require.NoError(t, err)

	items, err := repo.ListProposals(ctx, entities.ProposalFilter{Status: entities.ProposalStatusPending})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, first.ProposalID, items[0].ProposalID)

	_, err = repo.ListProposals(ctx, entities.ProposalFilter{Status: "open"})
	require.ErrorIs(t, err, domainerrors.ErrInvalidListFilter)

	stale, err := repo.ListPendingProposals(ctx, time.Now().Add(time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "platform", stale[0].Context["team"])

	_, err = repo.GetProposal(ctx, "missing")
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}
