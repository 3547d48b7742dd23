package policy

import (
	"fmt"
	"math"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	domainerrors "pentarchy/contexts/governance/proposal-voting/domain/errors"
)

const (
	ReasonCostAutoApprove = "cost_override_auto_approve"
	ReasonCostAutoReject  = "cost_override_auto_reject"
)

// DefaultAutoApproveBelow is the cost under which proposals skip voting.
const DefaultAutoApproveBelow = 50.0

// CostOverride is the fast path evaluated before any voter is contacted.
// A zero bound disables that band.
type CostOverride struct {
	AutoApproveBelow    float64
	AutoRejectAtOrAbove float64
}

type OverrideDecision struct {
	Status entities.ProposalStatus
	Reason string
	Note   string
}

func DefaultCostOverride() CostOverride {
	return CostOverride{AutoApproveBelow: DefaultAutoApproveBelow}
}

func (c CostOverride) Validate() error {
	for _, bound := range []float64{c.AutoApproveBelow, c.AutoRejectAtOrAbove} {
		if bound < 0 || math.IsNaN(bound) || math.IsInf(bound, 0) {
			return fmt.Errorf("%w: cost override bounds must be finite and non-negative", domainerrors.ErrConfiguration)
		}
	}
	if c.AutoApproveBelow > 0 && c.AutoRejectAtOrAbove > 0 && c.AutoApproveBelow > c.AutoRejectAtOrAbove {
		return fmt.Errorf("%w: auto-approve band overlaps auto-reject band", domainerrors.ErrConfiguration)
	}
	return nil
}

// Evaluate returns the override outcome for cost, if any band matches.
func (c CostOverride) Evaluate(cost float64) (OverrideDecision, bool) {
	if c.AutoRejectAtOrAbove > 0 && cost >= c.AutoRejectAtOrAbove {
		return OverrideDecision{
			Status: entities.ProposalStatusRejected,
			Reason: ReasonCostAutoReject,
			Note:   fmt.Sprintf("cost %.2f is at or above auto-reject limit %.2f", cost, c.AutoRejectAtOrAbove),
		}, true
	}
	if c.AutoApproveBelow > 0 && cost < c.AutoApproveBelow {
		return OverrideDecision{
			Status: entities.ProposalStatusApproved,
			Reason: ReasonCostAutoApprove,
			Note:   fmt.Sprintf("cost %.2f is below auto-approve limit %.2f", cost, c.AutoApproveBelow),
		}, true
	}
	return OverrideDecision{}, false
}
