package policy

import (
	"testing"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	domainerrors "pentarchy/contexts/governance/proposal-voting/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCostOverrideBands(t *testing.T) {
	override := CostOverride{AutoApproveBelow: 50, AutoRejectAtOrAbove: 10000}

	decision, ok := override.Evaluate(49.99)
	require.True(t, ok)
	assert.Equal(t, entities.ProposalStatusApproved, decision.Status)
	assert.Equal(t, ReasonCostAutoApprove, decision.Reason)

	_, ok = override.Evaluate(50)
	assert.False(t, ok)
	_, ok = override.Evaluate(9999.99)
	assert.False(t, ok)

	decision, ok = override.Evaluate(10000)
	require.True(t, ok)
	assert.Equal(t, entities.ProposalStatusRejected, decision.Status)
	assert.Equal(t, ReasonCostAutoReject, decision.Reason)
	assert.NotEmpty(t, decision.Note)
}

func TestCostOverrideZeroDisablesBand(t *testing.T) {
	_, ok := CostOverride{}.Evaluate(0)
	assert.False(t, ok)
	_, ok = CostOverride{AutoApproveBelow: 50}.Evaluate(1e9)
	assert.False(t, ok)
}

func TestCostOverrideValidate(t *testing.T) {
	require.NoError(t, DefaultCostOverride().Validate())
	require.NoError(t, CostOverride{AutoApproveBelow: 100, AutoRejectAtOrAbove: 100}.Validate())
	require.ErrorIs(t, CostOverride{AutoApproveBelow: -1}.Validate(), domainerrors.ErrConfiguration)
	require.ErrorIs(t, CostOverride{AutoApproveBelow: 200, AutoRejectAtOrAbove: 100}.Validate(), domainerrors.ErrConfiguration)
}
