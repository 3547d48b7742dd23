package governctl

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	governancehttp "pentarchy/contexts/governance/proposal-voting/transport/http"

	"github.com/fatih/color"
)

func statusLabel(status string) string {
	upper := strings.ToUpper(status)
	switch status {
	case "approved":
		return color.New(color.FgHiGreen).Sprintf("✓ %s", upper)
	case "rejected":
		return color.New(color.FgRed).Sprintf("✗ %s", upper)
	case "escalated":
		return color.New(color.FgYellow).Sprintf("⚠ %s", upper)
	case "pending":
		return color.New(color.FgCyan).Sprint(upper)
	default:
		return upper
	}
}

func decisionLabel(decision string) string {
	switch decision {
	case "APPROVE":
		return color.New(color.FgGreen).Sprint(decision)
	case "REJECT":
		return color.New(color.FgRed).Sprint(decision)
	default:
		return color.New(color.FgHiBlack).Sprint(decision)
	}
}

// voterLabel paints an agent with its palette colour.
func voterLabel(agent string) string {
	id, ok := entities.ParseVoterID(agent)
	if !ok {
		return agent
	}
	attribute := color.FgWhite
	switch id.Color() {
	case "purple":
		attribute = color.FgMagenta
	case "orange":
		attribute = color.FgHiYellow
	case "blue":
		attribute = color.FgBlue
	case "yellow":
		attribute = color.FgYellow
	case "red":
		attribute = color.FgRed
	}
	return color.New(attribute).Sprintf("%s %s", id.Icon(), id.Label())
}

func printJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func printProposal(w io.Writer, p governancehttp.ProposalResponse) {
	fmt.Fprintf(w, "%s  %s  [%s]\n", p.ProposalID, p.Title, statusLabel(p.Status))
	fmt.Fprintf(w, "  risk: %s  cost: %.2f  threshold: %.2f  initiated by: %s\n", p.RiskLevel, p.Cost, p.Threshold, p.InitiatedBy)
	if p.Description != "" {
		fmt.Fprintf(w, "  %s\n", p.Description)
	}
	for _, vote := range p.Votes {
		fmt.Fprintf(w, "  - %s %s %.2f\n", voterLabel(vote.Agent), decisionLabel(vote.Vote), vote.Score)
		for _, reason := range vote.Reasoning {
			fmt.Fprintf(w, "      %s\n", reason)
		}
	}
	if p.FinalScore.Valid {
		fmt.Fprintf(w, "  final score: %.2f", p.FinalScore.Float64)
		if p.ResolutionTrigger != "" {
			fmt.Fprintf(w, " (%s)", p.ResolutionTrigger)
		}
		fmt.Fprintln(w)
	}
	if p.Resolution != "" {
		fmt.Fprintf(w, "  resolution: %s\n", p.Resolution)
	}
}

func printSummaries(w io.Writer, items []governancehttp.ProposalSummaryResponse) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no proposals")
		return
	}
	for _, item := range items {
		score := "-"
		if item.FinalScore.Valid {
			score = fmt.Sprintf("%.2f", item.FinalScore.Float64)
		}
		fmt.Fprintf(w, "%s  %-40s  %s  votes=%d  score=%s\n", item.ProposalID, item.Title, statusLabel(item.Status), item.VoteCount, score)
	}
}

func printPending(w io.Writer, items []governancehttp.PendingProposalResponse) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no pending proposals")
		return
	}
	for _, item := range items {
		fmt.Fprintf(w, "%s  %-40s  %s  cost=%.2f  votes %d/%d\n",
			item.ProposalID, item.Title, item.RiskLevel, item.Cost,
			item.VotesCollected, item.VotesCollected+item.VotesNeeded)
	}
}

func printStats(w io.Writer, stats governancehttp.StatsResponse) {
	fmt.Fprintf(w, "proposals: %d  votes: %d  average score: %.2f\n", stats.TotalProposals, stats.TotalVotes, stats.AverageScore)
	statuses := make([]string, 0, len(stats.ByStatus))
	for status := range stats.ByStatus {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Fprintf(w, "  %s %d\n", statusLabel(status), stats.ByStatus[status])
	}
}

func printThresholds(w io.Writer, rules governancehttp.ThresholdsResponse) {
	fmt.Fprintln(w, "thresholds:")
	for _, entry := range rules.Thresholds {
		fmt.Fprintf(w, "  %-8s  threshold %.2f  max score %.2f\n", entry.RiskLevel, entry.Threshold, entry.MaxScore)
	}
	fmt.Fprintln(w, "committee:")
	for _, voter := range rules.Voters {
		fmt.Fprintf(w, "  %s  %s\n", voterLabel(voter.ID), voter.Domain)
	}
	fmt.Fprintln(w, "cost override:")
	fmt.Fprintf(w, "  auto approve below: %s\n", bound(rules.CostOverride.AutoApproveBelow.Valid, rules.CostOverride.AutoApproveBelow.Float64))
	fmt.Fprintf(w, "  auto reject at or above: %s\n", bound(rules.CostOverride.AutoRejectAtOrAbove.Valid, rules.CostOverride.AutoRejectAtOrAbove.Float64))
}

func bound(valid bool, value float64) string {
	if !valid {
		return "off"
	}
	return fmt.Sprintf("%.2f", value)
}

func printAnalysis(w io.Writer, analysis governancehttp.ActionAnalysisResponse) {
	verdict := color.New(color.FgGreen).Sprint("no vote needed")
	if analysis.RequiresVoting {
		verdict = color.New(color.FgYellow).Sprint("requires vote")
	}
	fmt.Fprintf(w, "%s  action=%s  risk=%s  estimated cost=%.2f\n", verdict, analysis.ActionType, analysis.RiskLevel, analysis.EstimatedCost)
	fmt.Fprintf(w, "  %s\n", analysis.Description)
}
