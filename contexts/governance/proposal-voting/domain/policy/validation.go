package policy

import (
	"fmt"
	"math"
	"strings"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	domainerrors "pentarchy/contexts/governance/proposal-voting/domain/errors"

	"golang.org/x/text/unicode/norm"
)

const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 10000
	MaxReasoningEntries  = 32
)

// NormalizeText trims and NFC-normalizes free text so equal titles compare
// equal regardless of how the client composed them.
func NormalizeText(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}

func ValidateNewProposal(input entities.NewProposal) error {
	title := NormalizeText(input.Title)
	if title == "" || len([]rune(title)) > MaxTitleLength {
		return fmt.Errorf("%w: title must be 1-%d characters", domainerrors.ErrValidation, MaxTitleLength)
	}
	if len([]rune(input.Description)) > MaxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", domainerrors.ErrValidation, MaxDescriptionLength)
	}
	if math.IsNaN(input.Cost) || math.IsInf(input.Cost, 0) || input.Cost < 0 {
		return fmt.Errorf("%w: cost must be a non-negative number", domainerrors.ErrValidation)
	}
	if !input.RiskLevel.Valid() {
		return fmt.Errorf("%w: risk level %q is not one of low, medium, high, critical", domainerrors.ErrValidation, input.RiskLevel)
	}
	return nil
}

// ValidateStoredVote checks what a store can verify without the threshold
// table: voter set, decision, a finite non-negative score and the reasoning cap.
func ValidateStoredVote(vote entities.Vote) error {
	if !vote.Agent.Valid() {
		return fmt.Errorf("%w: %w %q", domainerrors.ErrValidation, domainerrors.ErrUnknownVoter, vote.Agent)
	}
	if !vote.Decision.Valid() {
		return fmt.Errorf("%w: decision %q must be APPROVE, REJECT or ABSTAIN", domainerrors.ErrValidation, vote.Decision)
	}
	if math.IsNaN(vote.Score) || math.IsInf(vote.Score, 0) || vote.Score < 0 {
		return fmt.Errorf("%w: score %v must be a finite non-negative number", domainerrors.ErrValidation, vote.Score)
	}
	if len(vote.Reasoning) > MaxReasoningEntries {
		return fmt.Errorf("%w: at most %d reasoning entries", domainerrors.ErrValidation, MaxReasoningEntries)
	}
	return nil
}

// ValidateVote checks a vote against the closed voter set and the score range
// of the proposal's risk level.
func ValidateVote(vote entities.Vote, maxScore float64) error {
	if err := ValidateStoredVote(vote); err != nil {
		return err
	}
	if vote.Score > maxScore {
		return fmt.Errorf("%w: score %v outside [0, %v]", domainerrors.ErrValidation, vote.Score, maxScore)
	}
	return nil
}
