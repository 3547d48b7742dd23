package policy

import (
	"fmt"
	"math"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	domainerrors "pentarchy/contexts/governance/proposal-voting/domain/errors"
)

// Threshold is the approval bar for one risk level. MaxScore bounds each
// individual vote score.
type Threshold struct {
	Threshold float64
	MaxScore  float64
}

// ThresholdTable is immutable once built; construct it with NewThresholdTable
// so the four canonical levels are guaranteed present.
type ThresholdTable struct {
	entries map[entities.RiskLevel]Threshold
}

func DefaultThresholds() map[entities.RiskLevel]Threshold {
	return map[entities.RiskLevel]Threshold{
		entities.RiskLevelLow:      {Threshold: 3.0, MaxScore: 3.0},
		entities.RiskLevelMedium:   {Threshold: 4.5, MaxScore: 3.0},
		entities.RiskLevelHigh:     {Threshold: 6.0, MaxScore: 3.0},
		entities.RiskLevelCritical: {Threshold: 8.0, MaxScore: 3.0},
	}
}

func DefaultThresholdTable() ThresholdTable {
	table, _ := NewThresholdTable(DefaultThresholds())
	return table
}

func NewThresholdTable(entries map[entities.RiskLevel]Threshold) (ThresholdTable, error) {
	copied := make(map[entities.RiskLevel]Threshold, len(entries))
	for level, entry := range entries {
		if !level.Valid() {
			return ThresholdTable{}, fmt.Errorf("%w: threshold for unknown risk level %q", domainerrors.ErrConfiguration, level)
		}
		if !isPositive(entry.Threshold) || !isPositive(entry.MaxScore) {
			return ThresholdTable{}, fmt.Errorf("%w: risk level %q needs positive threshold and max score", domainerrors.ErrConfiguration, level)
		}
		copied[level] = entry
	}
	for _, level := range entities.RiskLevels() {
		if _, ok := copied[level]; !ok {
			return ThresholdTable{}, fmt.Errorf("%w: missing threshold for risk level %q", domainerrors.ErrConfiguration, level)
		}
	}
	return ThresholdTable{entries: copied}, nil
}

func (t ThresholdTable) Lookup(level entities.RiskLevel) (Threshold, error) {
	entry, ok := t.entries[level]
	if !ok {
		return Threshold{}, fmt.Errorf("%w: %q", domainerrors.ErrUnknownRiskLevel, level)
	}
	return entry, nil
}

// Entries returns a copy of the table keyed by risk level.
func (t ThresholdTable) Entries() map[entities.RiskLevel]Threshold {
	out := make(map[entities.RiskLevel]Threshold, len(t.entries))
	for level, entry := range t.entries {
		out[level] = entry
	}
	return out
}

func isPositive(value float64) bool {
	return value > 0 && !math.IsInf(value, 0) && !math.IsNaN(value)
}
