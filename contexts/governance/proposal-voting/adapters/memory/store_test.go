package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	domainerrors "pentarchy/contexts/governance/proposal-voting/domain/errors"
	contractsv1 "pentarchy/contracts/gen/events/v1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProposal(title string, risk entities.RiskLevel) entities.NewProposal {
	return entities.NewProposal{
		Title:       title,
		Description: "adopt a new vendor",
		Cost:        120,
		RiskLevel:   risk,
	}
}

func TestCreateProposalStartsPending(t *testing.T) {
	store := NewStore(nil)
	created, err := store.CreateProposal(context.Background(), newProposal("Vendor", entities.RiskLevelMedium))
	require.NoError(t, err)

	assert.NotEmpty(t, created.ProposalID)
	assert.Equal(t, entities.ProposalStatusPending, created.Status)
	assert.Empty(t, created.Votes)
	assert.Nil(t, created.FinalScore)
	assert.Nil(t, created.ResolvedAt)
	assert.Equal(t, "anonymous", created.InitiatedBy)

	loaded, err := store.GetProposal(context.Background(), created.ProposalID)
	require.NoError(t, err)
	assert.Equal(t, created.ProposalID, loaded.ProposalID)
}

func TestCreateProposalRejectsInvalidInput(t *testing.T) {
	store := NewStore(nil)
	cases := map[string]entities.NewProposal{
		"empty title":   {Title: "  ", Cost: 1, RiskLevel: entities.RiskLevelLow},
		"negative cost": {Title: "x", Cost: -1, RiskLevel: entities.RiskLevelLow},
		"unknown risk":  {Title: "x", Cost: 1, RiskLevel: "extreme"},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := store.CreateProposal(context.Background(), input)
			require.ErrorIs(t, err, domainerrors.ErrValidation)
		})
	}
	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalProposals)
}

func TestCreateProposalWithOverrideIsTerminal(t *testing.T) {
	store := NewStore(nil)
	input := newProposal("Coffee", entities.RiskLevelLow)
	input.Override = &entities.Resolution{
		Status:    entities.ProposalStatusApproved,
		Threshold: 3,
		Reason:    "cost_override_auto_approve",
		Trigger:   entities.TriggerCostOverride,
	}
	created, err := store.CreateProposal(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, entities.ProposalStatusApproved, created.Status)
	require.NotNil(t, created.FinalScore)
	assert.Zero(t, *created.FinalScore)
	require.NotNil(t, created.ResolvedAt)
	assert.Equal(t, entities.TriggerCostOverride, created.ResolutionTrigger)

	outbox, err := store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, outbox, 1)
	assert.Equal(t, contractsv1.EventTypeResolved, outbox[0].EventType)
}

func TestGetProposalNotFound(t *testing.T) {
	store := NewStore(nil)
	_, err := store.GetProposal(context.Background(), "missing")
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestAppendVoteQueuesOutboxEvent(t *testing.T) {
	store := NewStore(nil)
	created, err := store.CreateProposal(context.Background(), newProposal("Vendor", entities.RiskLevelMedium))
	require.NoError(t, err)

	updated, err := store.AppendVote(context.Background(), created.ProposalID, entities.Vote{
		Agent:     entities.VoterAthena,
		Decision:  entities.DecisionApprove,
		Score:     2,
		Reasoning: []string{"compliant"},
	})
	require.NoError(t, err)
	require.Len(t, updated.Votes, 1)
	assert.False(t, updated.Votes[0].Timestamp.IsZero())

	outbox, err := store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, outbox, 1)

	var envelope contractsv1.Envelope
	require.NoError(t, json.Unmarshal(outbox[0].Payload, &envelope))
	var data contractsv1.VoteData
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, created.ProposalID, data.ProposalID)
	assert.Equal(t, "athena", data.Agent)
	assert.Equal(t, 1, data.VoteCount)

	require.NoError(t, store.MarkOutboxPublished(context.Background(), outbox[0].OutboxID, time.Now()))
	remaining, err := store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.ErrorIs(t, store.MarkOutboxPublished(context.Background(), outbox[0].OutboxID, time.Now()), domainerrors.ErrConflict)
}

func TestAppendVoteSameAgentRaceKeepsOneVote(t *testing.T) {
	store := NewStore(nil)
	created, err := store.CreateProposal(context.Background(), newProposal("Race", entities.RiskLevelHigh))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, duplicates := 0, 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.AppendVote(context.Background(), created.ProposalID, entities.Vote{
				Agent:    entities.VoterAegis,
				Decision: entities.DecisionReject,
				Score:    1,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domainerrors.ErrDuplicateVoter):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 4, duplicates)
	loaded, err := store.GetProposal(context.Background(), created.ProposalID)
	require.NoError(t, err)
	assert.Len(t, loaded.Votes, 1)
}

func TestResolveProposalIsIdempotentAndGuardsConflicts(t *testing.T) {
	store := NewStore(nil)
	created, err := store.CreateProposal(context.Background(), newProposal("Resolve", entities.RiskLevelLow))
	require.NoError(t, err)

	resolution := entities.Resolution{
		Status:     entities.ProposalStatusApproved,
		FinalScore: 4.5,
		Threshold:  3,
		Reason:     "threshold_met",
		Trigger:    entities.TriggerAllVotes,
	}
	resolved, transitioned, err := store.ResolveProposal(context.Background(), created.ProposalID, resolution)
	require.NoError(t, err)
	assert.True(t, transitioned)
	assert.Equal(t, entities.ProposalStatusApproved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	resolution.Trigger = entities.TriggerTimeout
	again, transitioned, err := store.ResolveProposal(context.Background(), created.ProposalID, resolution)
	require.NoError(t, err)
	assert.False(t, transitioned)
	assert.Equal(t, entities.TriggerAllVotes, again.ResolutionTrigger)
	assert.Equal(t, *resolved.ResolvedAt, *again.ResolvedAt)

	_, _, err = store.ResolveProposal(context.Background(), created.ProposalID, entities.Resolution{
		Status:     entities.ProposalStatusRejected,
		FinalScore: -4,
		Threshold:  3,
	})
	require.ErrorIs(t, err, domainerrors.ErrConflict)

	_, err = store.AppendVote(context.Background(), created.ProposalID, entities.Vote{
		Agent:    entities.VoterHermes,
		Decision: entities.DecisionApprove,
		Score:    1,
	})
	require.ErrorIs(t, err, domainerrors.ErrConflict)

	_, _, err = store.ResolveProposal(context.Background(), created.ProposalID, entities.Resolution{Status: entities.ProposalStatusPending})
	require.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestConcurrentResolveTransitionsOnce(t *testing.T) {
	store := NewStore(nil)
	created, err := store.CreateProposal(context.Background(), newProposal("Once", entities.RiskLevelLow))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	transitions := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, transitioned, err := store.ResolveProposal(context.Background(), created.ProposalID, entities.Resolution{
				Status:     entities.ProposalStatusEscalated,
				FinalScore: 1,
				Threshold:  3,
				Trigger:    entities.TriggerTimeout,
			})
			if err != nil {
				t.Errorf("resolve: %v", err)
				return
			}
			if transitioned {
				mu.Lock()
				transitions++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, transitions)

	outbox, err := store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, outbox, 1)
}

func TestListProposalsFiltersInCreationOrder(t *testing.T) {
	store := NewStore(nil)
	ids := make([]string, 0, 4)
	for _, title := range []string{"one", "two", "three", "four"} {
		created, err := store.CreateProposal(context.Background(), newProposal(title, entities.RiskLevelLow))
		require.NoError(t, err)
		ids = append(ids, created.ProposalID)
	}
	for _, id := range []string{ids[1], ids[3]} {
		_, _, err := store.ResolveProposal(context.Background(), id, entities.Resolution{
			Status:     entities.ProposalStatusRejected,
			FinalScore: -3,
			Threshold:  3,
			Trigger:    entities.TriggerManual,
		})
		require.NoError(t, err)
	}

	all, err := store.ListProposals(context.Background(), entities.ProposalFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, summary := range all {
		assert.Equal(t, ids[i], summary.ProposalID)
	}

	rejected, err := store.ListProposals(context.Background(), entities.ProposalFilter{Status: entities.ProposalStatusRejected})
	require.NoError(t, err)
	require.Len(t, rejected, 2)
	assert.Equal(t, ids[1], rejected[0].ProposalID)
	assert.Equal(t, ids[3], rejected[1].ProposalID)

	page, err := store.ListProposals(context.Background(), entities.ProposalFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[1], page[0].ProposalID)
	assert.Equal(t, ids[2], page[1].ProposalID)

	_, err = store.ListProposals(context.Background(), entities.ProposalFilter{Status: "archived"})
	require.ErrorIs(t, err, domainerrors.ErrInvalidListFilter)
}

func TestListPendingProposalsHonoursCutoff(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore(nil)
	old := newProposal("old", entities.RiskLevelLow)
	old.CreatedAt = base
	fresh := newProposal("fresh", entities.RiskLevelLow)
	fresh.CreatedAt = base.Add(time.Hour)

	oldCreated, err := store.CreateProposal(context.Background(), old)
	require.NoError(t, err)
	_, err = store.CreateProposal(context.Background(), fresh)
	require.NoError(t, err)

	stale, err := store.ListPendingProposals(context.Background(), base.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, oldCreated.ProposalID, stale[0].ProposalID)

	everything, err := store.ListPendingProposals(context.Background(), time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, everything, 2)
}

func TestStatsAveragesResolvedScores(t *testing.T) {
	store := NewStore(nil)
	first, err := store.CreateProposal(context.Background(), newProposal("a", entities.RiskLevelLow))
	require.NoError(t, err)
	second, err := store.CreateProposal(context.Background(), newProposal("b", entities.RiskLevelLow))
	require.NoError(t, err)
	_, err = store.CreateProposal(context.Background(), newProposal("c", entities.RiskLevelLow))
	require.NoError(t, err)

	_, err = store.AppendVote(context.Background(), first.ProposalID, entities.Vote{Agent: entities.VoterHermes, Decision: entities.DecisionApprove, Score: 3})
	require.NoError(t, err)
	_, _, err = store.ResolveProposal(context.Background(), first.ProposalID, entities.Resolution{Status: entities.ProposalStatusApproved, FinalScore: 3, Threshold: 3})
	require.NoError(t, err)
	_, _, err = store.ResolveProposal(context.Background(), second.ProposalID, entities.Resolution{Status: entities.ProposalStatusEscalated, FinalScore: 1, Threshold: 3})
	require.NoError(t, err)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalProposals)
	assert.Equal(t, 1, stats.ByStatus[entities.ProposalStatusPending])
	assert.Equal(t, 1, stats.ByStatus[entities.ProposalStatusApproved])
	assert.Equal(t, 1, stats.ByStatus[entities.ProposalStatusEscalated])
	assert.Equal(t, 0, stats.ByStatus[entities.ProposalStatusRejected])
	assert.Equal(t, 1, stats.TotalVotes)
	assert.InDelta(t, 2.0, stats.AverageScore, 1e-9)
}

func TestReturnedProposalsAreCopies(t *testing.T) {
	store := NewStore(nil)
	created, err := store.CreateProposal(context.Background(), newProposal("copy", entities.RiskLevelLow))
	require.NoError(t, err)
	updated, err := store.AppendVote(context.Background(), created.ProposalID, entities.Vote{
		Agent: entities.VoterHephaestus, Decision: entities.DecisionApprove, Score: 1, Reasoning: []string{"ok"},
	})
	require.NoError(t, err)
	updated.Votes[0].Reasoning[0] = "mutated"

	loaded, err := store.GetProposal(context.Background(), created.ProposalID)
	require.NoError(t, err)
	assert.Equal(t, "ok", loaded.Votes[0].Reasoning[0])
}

func TestAppendVoteRejectsMalformedVotes(t *testing.T) {
	store := NewStore(nil)
	created, err := store.CreateProposal(context.Background(), newProposal("malformed", entities.RiskLevelLow))
	require.NoError(t, err)

	_, err = store.AppendVote(context.Background(), created.ProposalID, entities.Vote{
		Agent: "zeus", Decision: entities.DecisionApprove, Score: 1,
	})
	require.ErrorIs(t, err, domainerrors.ErrValidation)
	require.ErrorIs(t, err, domainerrors.ErrUnknownVoter)

	_, err = store.AppendVote(context.Background(), created.ProposalID, entities.Vote{
		Agent: entities.VoterAegis, Decision: "MAYBE", Score: 1,
	})
	require.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = store.AppendVote(context.Background(), created.ProposalID, entities.Vote{
		Agent: entities.VoterAegis, Decision: entities.DecisionReject, Score: -1,
	})
	require.ErrorIs(t, err, domainerrors.ErrValidation)

	loaded, err := store.GetProposal(context.Background(), created.ProposalID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Votes)
	pending, err := store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
