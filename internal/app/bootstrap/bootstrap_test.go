package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	domainerrors "pentarchy/contexts/governance/proposal-voting/domain/errors"
	"pentarchy/internal/platform/config"
	"pentarchy/internal/platform/messaging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadPolicyDefaults(t *testing.T) {
	table, override, err := LoadPolicy(config.Config{})
	require.NoError(t, err)

	medium, err := table.Lookup(entities.RiskLevelMedium)
	require.NoError(t, err)
	assert.Equal(t, 4.5, medium.Threshold)
	assert.Equal(t, 50.0, override.AutoApproveBelow)
	assert.Zero(t, override.AutoRejectAtOrAbove)
}

func TestLoadPolicyMergesFileAndEnvironment(t *testing.T) {
	path := writePolicy(t, `
thresholds:
  Critical: {threshold: 9.5}
  low: {threshold: 2, max_score: 2}
cost_override:
  auto_approve_below: 25
  auto_reject_at_or_above: 10000
`)
	reject := 20000.0
	table, override, err := LoadPolicy(config.Config{PolicyFile: path, CostAutoReject: &reject})
	require.NoError(t, err)

	critical, err := table.Lookup(entities.RiskLevelCritical)
	require.NoError(t, err)
	assert.Equal(t, 9.5, critical.Threshold)
	assert.Equal(t, 3.0, critical.MaxScore)

	low, err := table.Lookup(entities.RiskLevelLow)
	require.NoError(t, err)
	assert.Equal(t, 2.0, low.MaxScore)

	assert.Equal(t, 25.0, override.AutoApproveBelow)
	assert.Equal(t, 20000.0, override.AutoRejectAtOrAbove)
}

func TestLoadPolicyRejectsBadConfiguration(t *testing.T) {
	cases := map[string]config.Config{
		"missing file":  {PolicyFile: filepath.Join(t.TempDir(), "absent.yaml")},
		"unknown level": {PolicyFile: writePolicy(t, "thresholds:\n  extreme: {threshold: 1, max_score: 1}\n")},
		"negative max":  {PolicyFile: writePolicy(t, "thresholds:\n  high: {max_score: -1}\n")},
	}
	approve, reject := 500.0, 100.0
	cases["overlapping bands"] = config.Config{CostAutoApprove: &approve, CostAutoReject: &reject}

	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := LoadPolicy(cfg)
			require.ErrorIs(t, err, domainerrors.ErrConfiguration)
		})
	}
}

func TestBuildCommitteeRejectsUnknownVoter(t *testing.T) {
	_, err := buildCommittee(config.Config{
		EnableRemoteVoters: true,
		VoterURLs:          map[string]string{"zeus": "http://localhost:9000"},
	})
	require.ErrorIs(t, err, domainerrors.ErrConfiguration)

	committee, err := buildCommittee(config.Config{})
	require.NoError(t, err)
	assert.Len(t, committee, entities.CommitteeSize)
}

func TestPublishTargetsSkipsMissingPublishers(t *testing.T) {
	assert.Empty(t, publishTargets(nil, nil))
	assert.Len(t, publishTargets(messaging.NewBus(nil), nil), 1)
}

func TestNormalizeAddr(t *testing.T) {
	assert.Equal(t, ":8080", normalizeAddr(""))
	assert.Equal(t, ":9000", normalizeAddr("9000"))
	assert.Equal(t, ":9000", normalizeAddr(" :9000 "))
}

func TestRunEveryKeepsRunningAfterFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- runEvery(ctx, 5*time.Millisecond, NewLogger(config.Config{}, "test"), "test_job_failed", func(context.Context) error {
			calls.Add(1)
			return errors.New("broker down")
		})
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runEvery did not stop")
	}
}
