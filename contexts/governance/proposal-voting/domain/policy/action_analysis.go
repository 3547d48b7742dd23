package policy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// VotingCostFloor is the estimated cost from which an action needs a vote.
	VotingCostFloor = 50.0
	// HumanReviewCostFloor marks actions that need the high-risk bar.
	HumanReviewCostFloor = 100.0
)

type ActionAnalysis struct {
	RequiresVoting bool
	EstimatedCost  float64
	RiskLevel      entities.RiskLevel
	ActionType     string
	Description    string
}

type costKeyword struct {
	keyword string
	cost    float64
}

// Checked in order; the first match names the action.
var costKeywords = []costKeyword{
	{"purchase", 75}, {"buy", 75}, {"subscribe", 60}, {"deploy", 80},
	{"provision", 100}, {"scale", 70}, {"upgrade", 85}, {"migrate", 150},
	{"delete", 50}, {"remove", 40}, {"transfer", 90}, {"payment", 100},
	{"invoice", 50}, {"hire", 200}, {"contract", 150},
}

var (
	securityKeywords = []string{"security", "access", "permission", "credential", "secret", "key", "password"}
	legalKeywords    = []string{"legal", "compliance", "gdpr", "contract", "agreement", "terms"}

	costPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\$(\d+(?:,\d{3})*(?:\.\d{2})?)`),
		regexp.MustCompile(`(\d+(?:,\d{3})*(?:\.\d{2})?)\s*(?:dollars?|usd)`),
		regexp.MustCompile(`cost(?:s|ing)?\s*(?:about|around|approximately)?\s*\$?(\d+)`),
	}
)

// AnalyzeAction estimates cost and risk of a free-text action request and
// decides whether it must go through a committee vote.
func AnalyzeAction(message string) ActionAnalysis {
	lower := strings.ToLower(message)

	detected := 0.0
	for _, pattern := range costPatterns {
		for _, match := range pattern.FindAllStringSubmatch(lower, -1) {
			value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
			if err == nil && value > detected {
				detected = value
			}
		}
	}

	actionType := "general"
	estimated := detected
	for _, candidate := range costKeywords {
		if strings.Contains(lower, candidate.keyword) {
			actionType = candidate.keyword
			if estimated == 0 {
				estimated = candidate.cost
			}
			break
		}
	}

	switch {
	case containsAny(lower, securityKeywords):
		actionType = "security"
		estimated = max(estimated, HumanReviewCostFloor)
	case containsAny(lower, legalKeywords):
		actionType = "legal"
		estimated = max(estimated, HumanReviewCostFloor)
	}

	risk := entities.RiskLevelLow
	switch {
	case estimated >= HumanReviewCostFloor:
		risk = entities.RiskLevelHigh
	case estimated >= VotingCostFloor:
		risk = entities.RiskLevelMedium
	}

	return ActionAnalysis{
		RequiresVoting: estimated >= VotingCostFloor,
		EstimatedCost:  estimated,
		RiskLevel:      risk,
		ActionType:     actionType,
		Description:    fmt.Sprintf("Action '%s' with estimated cost $%.2f", actionType, estimated),
	}
}

func containsAny(value string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(value, needle) {
			return true
		}
	}
	return false
}

// ProposalTitle is the title used when an analysed action is turned into a
// proposal automatically.
func (a ActionAnalysis) ProposalTitle() string {
	return fmt.Sprintf("Auto-generated: %s Action", cases.Title(language.English).String(a.ActionType))
}
