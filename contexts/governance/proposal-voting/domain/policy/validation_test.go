package policy

import (
	"math"
	"strings"
	"testing"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	domainerrors "pentarchy/contexts/governance/proposal-voting/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateNewProposal(t *testing.T) {
	valid := entities.NewProposal{Title: "Ship it", Cost: 0, RiskLevel: entities.RiskLevelLow}
	require.NoError(t, ValidateNewProposal(valid))

	long := valid
	long.Title = strings.Repeat("é", MaxTitleLength)
	require.NoError(t, ValidateNewProposal(long))
	long.Title += "x"
	require.ErrorIs(t, ValidateNewProposal(long), domainerrors.ErrValidation)

	nan := valid
	nan.Cost = math.NaN()
	require.ErrorIs(t, ValidateNewProposal(nan), domainerrors.ErrValidation)

	description := valid
	description.Description = strings.Repeat("a", MaxDescriptionLength+1)
	require.ErrorIs(t, ValidateNewProposal(description), domainerrors.ErrValidation)
}

func TestValidateVote(t *testing.T) {
	ok := entities.Vote{Agent: entities.VoterHermes, Decision: entities.DecisionAbstain, Score: 0}
	require.NoError(t, ValidateVote(ok, 3))

	top := ok
	top.Score = 3
	require.NoError(t, ValidateVote(top, 3))

	over := ok
	over.Score = 3.01
	require.ErrorIs(t, ValidateVote(over, 3), domainerrors.ErrValidation)

	unknown := ok
	unknown.Agent = "zeus"
	err := ValidateVote(unknown, 3)
	require.ErrorIs(t, err, domainerrors.ErrValidation)
	require.ErrorIs(t, err, domainerrors.ErrUnknownVoter)

	chatty := ok
	chatty.Reasoning = make([]string, MaxReasoningEntries+1)
	require.ErrorIs(t, ValidateVote(chatty, 3), domainerrors.ErrValidation)
}

func TestValidateStoredVote(t *testing.T) {
	require.NoError(t, ValidateStoredVote(entities.Vote{Agent: entities.VoterAthena, Decision: entities.DecisionApprove, Score: 42}))

	err := ValidateStoredVote(entities.Vote{Agent: "zeus", Decision: entities.DecisionApprove})
	require.ErrorIs(t, err, domainerrors.ErrUnknownVoter)
	require.ErrorIs(t, ValidateStoredVote(entities.Vote{Agent: entities.VoterAthena, Decision: "approve"}), domainerrors.ErrValidation)
	require.ErrorIs(t, ValidateStoredVote(entities.Vote{Agent: entities.VoterAthena, Decision: entities.DecisionReject, Score: math.Inf(1)}), domainerrors.ErrValidation)
	require.ErrorIs(t, ValidateStoredVote(entities.Vote{Agent: entities.VoterAthena, Decision: entities.DecisionReject, Score: math.NaN()}), domainerrors.ErrValidation)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "café", NormalizeText("  café "))
}
