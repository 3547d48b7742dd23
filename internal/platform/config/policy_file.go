package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PolicyFile is the optional YAML override for governance thresholds and cost
// bands. Missing sections keep the built-in defaults.
//
//	thresholds:
//	  low:      {threshold: 3, max_score: 3}
//	  critical: {threshold: 8, max_score: 3}
//	cost_override:
//	  auto_approve_below: 50
//	  auto_reject_at_or_above: 20000
type PolicyFile struct {
	Thresholds   map[string]ThresholdEntry `yaml:"thresholds"`
	CostOverride *CostOverrideEntry        `yaml:"cost_override"`
}

type ThresholdEntry struct {
	Threshold float64 `yaml:"threshold"`
	MaxScore  float64 `yaml:"max_score"`
}

type CostOverrideEntry struct {
	AutoApproveBelow    *float64 `yaml:"auto_approve_below"`
	AutoRejectAtOrAbove *float64 `yaml:"auto_reject_at_or_above"`
}

func LoadPolicyFile(path string) (PolicyFile, error) {
	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return PolicyFile{}, fmt.Errorf("read governance policy file: %w", err)
	}

	var file PolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return PolicyFile{}, fmt.Errorf("parse governance policy file: %w", err)
	}
	return file, nil
}
