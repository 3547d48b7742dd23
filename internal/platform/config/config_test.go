package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, name := range []string{
		"SERVICE_NAME", "HTTP_PORT", "POSTGRES_DSN", "NATS_URL", "NATS_SUBJECT_PREFIX",
		"VOTING_TIMEOUT", "LOG_LEVEL", "RATE_LIMIT_PER_MINUTE", "RATE_LIMIT_BURST",
		"COST_AUTO_APPROVE_BELOW", "COST_AUTO_REJECT_AT_OR_ABOVE", "OUTBOX_RELAY_IN_API",
	} {
		t.Setenv(name, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "pentarchy", cfg.ServiceName)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "governance", cfg.NATSSubjectPrefix)
	assert.Equal(t, 30*time.Second, cfg.VotingTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.Nil(t, cfg.CostAutoApprove)
	assert.Nil(t, cfg.CostAutoReject)
	assert.True(t, cfg.OutboxRelayInAPI)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VOTING_TIMEOUT", "45s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("NATS_SUBJECT_PREFIX", "acme.gov.")
	t.Setenv("COST_AUTO_APPROVE_BELOW", "0")
	t.Setenv("COST_AUTO_REJECT_AT_OR_ABOVE", "20000")
	t.Setenv("OUTBOX_RELAY_IN_API", "off")
	t.Setenv("VOTER_NUR_PROMETHEUS_URL", "http://finance:9000/evaluate")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.VotingTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "acme.gov", cfg.NATSSubjectPrefix)
	require.NotNil(t, cfg.CostAutoApprove)
	assert.Equal(t, 0.0, *cfg.CostAutoApprove)
	require.NotNil(t, cfg.CostAutoReject)
	assert.Equal(t, 20000.0, *cfg.CostAutoReject)
	assert.False(t, cfg.OutboxRelayInAPI)
	assert.Equal(t, "http://finance:9000/evaluate", cfg.VoterURLs["nur_prometheus"])
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	cases := map[string]string{
		"VOTING_TIMEOUT":          "soon",
		"RATE_LIMIT_PER_MINUTE":   "-1",
		"COST_AUTO_APPROVE_BELOW": "cheap",
		"LOG_LEVEL":               "loud",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestVoterURLsIgnoresUnrelatedVariables(t *testing.T) {
	urls := voterURLs([]string{
		"VOTER_AEGIS_URL=http://aegis/evaluate",
		"VOTER__URL=http://nobody",
		"VOTER_HERMES_URL=",
		"VOTER_ATHENA_TOKEN=secret",
		"PATH=/usr/bin",
	})
	assert.Equal(t, map[string]string{"aegis": "http://aegis/evaluate"}, urls)
}

func TestLoadPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
thresholds:
  low: {threshold: 2, max_score: 3}
  critical:
    threshold: 9
    max_score: 3
cost_override:
  auto_reject_at_or_above: 25000
`), 0o600))

	file, err := LoadPolicyFile(path)
	require.NoError(t, err)
	assert.Equal(t, ThresholdEntry{Threshold: 2, MaxScore: 3}, file.Thresholds["low"])
	assert.Equal(t, ThresholdEntry{Threshold: 9, MaxScore: 3}, file.Thresholds["critical"])
	require.NotNil(t, file.CostOverride)
	assert.Nil(t, file.CostOverride.AutoApproveBelow)
	require.NotNil(t, file.CostOverride.AutoRejectAtOrAbove)
	assert.Equal(t, 25000.0, *file.CostOverride.AutoRejectAtOrAbove)

	_, err = LoadPolicyFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
