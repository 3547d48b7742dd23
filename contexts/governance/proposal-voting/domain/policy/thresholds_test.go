package policy

import (
	"math"
	"testing"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	domainerrors "pentarchy/contexts/governance/proposal-voting/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultThresholdsAscend(t *testing.T) {
	table := DefaultThresholdTable()
	previous := 0.0
	for _, level := range entities.RiskLevels() {
		entry, err := table.Lookup(level)
		require.NoError(t, err)
		assert.Greater(t, entry.Threshold, previous)
		assert.Positive(t, entry.MaxScore)
		previous = entry.Threshold
	}
}

func TestNewThresholdTableRejectsBadEntries(t *testing.T) {
	missing := DefaultThresholds()
	delete(missing, entities.RiskLevelHigh)

	unknown := DefaultThresholds()
	unknown["extreme"] = Threshold{Threshold: 9, MaxScore: 3}

	zero := DefaultThresholds()
	zero[entities.RiskLevelLow] = Threshold{Threshold: 0, MaxScore: 3}

	infinite := DefaultThresholds()
	infinite[entities.RiskLevelLow] = Threshold{Threshold: math.Inf(1), MaxScore: 3}

	for name, entries := range map[string]map[entities.RiskLevel]Threshold{
		"missing level": missing,
		"unknown level": unknown,
		"zero":          zero,
		"infinite":      infinite,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewThresholdTable(entries)
			require.ErrorIs(t, err, domainerrors.ErrConfiguration)
		})
	}
}

func TestLookupUnknownLevel(t *testing.T) {
	_, err := DefaultThresholdTable().Lookup("extreme")
	require.ErrorIs(t, err, domainerrors.ErrUnknownRiskLevel)
}

func TestEntriesReturnsCopy(t *testing.T) {
	table := DefaultThresholdTable()
	entries := table.Entries()
	entries[entities.RiskLevelLow] = Threshold{Threshold: 99, MaxScore: 99}

	entry, err := table.Lookup(entities.RiskLevelLow)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, entry.Threshold, 1e-9)
}
