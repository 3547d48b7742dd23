package governctl

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	proposalvoting "pentarchy/contexts/governance/proposal-voting"
	governancehttp "pentarchy/contexts/governance/proposal-voting/transport/http"
	"pentarchy/internal/platform/httpserver"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGovernanceAPI(t *testing.T) string {
	t.Helper()
	module, err := proposalvoting.NewInMemoryModule(nil, nil, nil)
	require.NoError(t, err)
	t.Cleanup(module.Close)
	ts := httptest.NewServer(httpserver.New(module, httpserver.Options{}).Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func run(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", server, "--user", "ops"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestProposeWaitsForCommittee(t *testing.T) {
	server := newGovernanceAPI(t)

	out, err := run(t, server, "--json", "propose",
		"--title", "Rotate API credentials",
		"--description", "Rotate the partner integration keys",
		"--cost", "250", "--risk", "HIGH",
		"--context", "ticket=OPS-12",
		"--wait", "--poll-interval", "10ms")
	require.NoError(t, err, out)

	var proposal governancehttp.ProposalResponse
	require.NoError(t, json.Unmarshal([]byte(out), &proposal))
	assert.NotEqual(t, "pending", proposal.Status)
	assert.Len(t, proposal.Votes, 5)
	assert.Equal(t, "high", proposal.RiskLevel)
	assert.Equal(t, "ops", proposal.InitiatedBy)
	assert.Equal(t, "OPS-12", proposal.Context["ticket"])

	out, err = run(t, server, "get", proposal.ProposalID)
	require.NoError(t, err)
	assert.Contains(t, out, "Rotate API credentials")
	assert.Contains(t, out, "final score")

	_, err = run(t, server, "vote", proposal.ProposalID, "--agent", "aegis", "--decision", "approve", "--score", "1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "expected api error, got %v", err)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
}

func TestListAndStatsCommands(t *testing.T) {
	server := newGovernanceAPI(t)
	_, err := run(t, server, "propose", "--title", "Buy stickers", "--cost", "12", "--risk", "low")
	require.NoError(t, err)

	out, err := run(t, server, "--json", "list", "--status", "approved")
	require.NoError(t, err, out)
	var list governancehttp.ListProposalsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Buy stickers", list.Items[0].Title)

	out, err = run(t, server, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "proposals: 1")
	assert.Contains(t, out, "APPROVED 1")

	out, err = run(t, server, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "no pending proposals")

	_, err = run(t, server, "list", "--status", "open")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "invalid_list_filter", apiErr.Code)
}

func TestThresholdsAndAnalyzeCommands(t *testing.T) {
	server := newGovernanceAPI(t)

	out, err := run(t, server, "thresholds")
	require.NoError(t, err)
	assert.Contains(t, out, "critical")
	assert.Contains(t, out, "Nur Prometheus")
	assert.Contains(t, out, "auto approve below: 50.00")
	assert.Contains(t, out, "auto reject at or above: off")

	out, err = run(t, server, "analyze", "say", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "no vote needed")

	out, err = run(t, server, "analyze", "--create", "--conversation", "c-1", "migrate the billing database")
	require.NoError(t, err)
	assert.Contains(t, out, "requires vote")
	assert.Contains(t, out, "Auto-generated: Migrate Action")
}

func TestGetUnknownProposal(t *testing.T) {
	server := newGovernanceAPI(t)
	_, err := run(t, server, "get", "missing")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "proposal_not_found", apiErr.Code)
}
