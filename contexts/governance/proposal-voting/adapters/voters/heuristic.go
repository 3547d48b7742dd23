package voters

import (
	"context"
	"fmt"
	"strings"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	domainerrors "pentarchy/contexts/governance/proposal-voting/domain/errors"
	"pentarchy/contexts/governance/proposal-voting/ports"
)

// FinanceBudget is the reference budget the finance voter weighs costs against.
const FinanceBudget = 1000.0

var (
	legalTerms      = []string{"gdpr", "legal", "lawsuit", "personal data", "regulator"}
	complexityTerms = []string{"complex", "rewrite", "migration", "re-architecture"}
	securityTerms   = []string{"credential", "secret", "password", "permission", "firewall", "root access"}
)

// HeuristicVoter scores proposals with fixed keyword and cost rules.
type HeuristicVoter struct {
	id   entities.VoterID
	rule func(entities.Proposal) ports.VoteDraft
}

func NewHeuristicVoter(id entities.VoterID) (HeuristicVoter, error) {
	var rule func(entities.Proposal) ports.VoteDraft
	switch id {
	case entities.VoterAthena:
		rule = complianceRule
	case entities.VoterHephaestus:
		rule = feasibilityRule
	case entities.VoterHermes:
		rule = communicationRule
	case entities.VoterNurPrometheus:
		rule = financeRule
	case entities.VoterAegis:
		rule = securityRule
	default:
		return HeuristicVoter{}, fmt.Errorf("%w %q", domainerrors.ErrUnknownVoter, id)
	}
	return HeuristicVoter{id: id, rule: rule}, nil
}

// HeuristicCommittee returns one heuristic voter per seat in dispatch order.
func HeuristicCommittee() []ports.Voter {
	committee := make([]ports.Voter, 0, entities.CommitteeSize)
	for _, id := range entities.Committee() {
		voter, _ := NewHeuristicVoter(id)
		committee = append(committee, voter)
	}
	return committee
}

func (v HeuristicVoter) ID() entities.VoterID {
	return v.id
}

func (v HeuristicVoter) Evaluate(ctx context.Context, proposal entities.Proposal) (ports.VoteDraft, error) {
	if err := ctx.Err(); err != nil {
		return ports.VoteDraft{}, err
	}
	return v.rule(proposal), nil
}

func complianceRule(proposal entities.Proposal) ports.VoteDraft {
	reasoning := []string{"Compliant with internal policies"}
	score := 1.0
	if term, found := findTerm(proposal, legalTerms); found {
		reasoning = append(reasoning, fmt.Sprintf("Legal implications (%s) require review", term))
	} else {
		score++
		reasoning = append(reasoning, "No immediate legal risks found")
	}
	return twoCheckDraft(score, reasoning)
}

func feasibilityRule(proposal entities.Proposal) ports.VoteDraft {
	reasoning := []string{"Resources available"}
	score := 1.0
	if term, found := findTerm(proposal, complexityTerms); found {
		reasoning = append(reasoning, fmt.Sprintf("High complexity detected (%s)", term))
	} else {
		score++
		reasoning = append(reasoning, "Low implementation risk")
	}
	return twoCheckDraft(score, reasoning)
}

func communicationRule(proposal entities.Proposal) ports.VoteDraft {
	words := len(strings.Fields(proposal.Description))
	if words >= 8 {
		return ports.VoteDraft{
			Decision:  entities.DecisionApprove,
			Score:     1,
			Reasoning: []string{"Proposal is clearly described"},
		}
	}
	return ports.VoteDraft{
		Decision:  entities.DecisionAbstain,
		Score:     0,
		Reasoning: []string{fmt.Sprintf("Description too short to assess stakeholder impact (%d words)", words)},
	}
}

func financeRule(proposal entities.Proposal) ports.VoteDraft {
	switch {
	case proposal.Cost > FinanceBudget:
		return ports.VoteDraft{
			Decision:  entities.DecisionReject,
			Score:     2,
			Reasoning: []string{fmt.Sprintf("Cost %.2f exceeds remaining budget %.2f", proposal.Cost, FinanceBudget)},
		}
	case proposal.Cost < FinanceBudget*0.1:
		return ports.VoteDraft{
			Decision:  entities.DecisionApprove,
			Score:     2,
			Reasoning: []string{"Cost within budget parameters", "ROI analysis positive"},
		}
	default:
		return ports.VoteDraft{
			Decision:  entities.DecisionApprove,
			Score:     1,
			Reasoning: []string{"Cost within budget parameters"},
		}
	}
}

func securityRule(proposal entities.Proposal) ports.VoteDraft {
	reasoning := []string{}
	score := 2.0
	if term, found := findTerm(proposal, securityTerms); found {
		score--
		reasoning = append(reasoning, fmt.Sprintf("Touches sensitive surface (%s)", term))
	}
	if proposal.RiskLevel == entities.RiskLevelCritical {
		score--
		reasoning = append(reasoning, "Critical risk level requires security sign-off")
	}
	if score == 2 {
		reasoning = append(reasoning, "No security concerns identified")
	}
	if score <= 0 {
		return ports.VoteDraft{Decision: entities.DecisionReject, Score: 2, Reasoning: reasoning}
	}
	return twoCheckDraft(score, reasoning)
}

// twoCheckDraft approves when both checks passed and rejects otherwise.
func twoCheckDraft(score float64, reasoning []string) ports.VoteDraft {
	decision := entities.DecisionReject
	if score >= 2 {
		decision = entities.DecisionApprove
	}
	return ports.VoteDraft{Decision: decision, Score: score, Reasoning: reasoning}
}

func findTerm(proposal entities.Proposal, terms []string) (string, bool) {
	text := strings.ToLower(proposal.Title + " " + proposal.Description)
	for _, term := range terms {
		if strings.Contains(text, term) {
			return term, true
		}
	}
	return "", false
}
