package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EvalConfig drives the offline evaluation loop: which stages to judge and
// the optimizer thresholds.
type EvalConfig struct {
	TargetScore      float64  `yaml:"target_score"`
	RegressThreshold float64  `yaml:"regress_threshold"`
	Stages           []string `yaml:"stages"`
}

// DefaultEvalConfig matches the optimizer's built-in thresholds.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		TargetScore:      8.0,
		RegressThreshold: 0.1,
		Stages:           []string{"technical", "news"},
	}
}

// LoadEvalConfig reads a YAML eval config; an empty path yields defaults,
// and omitted fields keep their default values.
func LoadEvalConfig(path string) (EvalConfig, error) {
	cfg := DefaultEvalConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read eval config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse eval config: %w", err)
	}
	if cfg.TargetScore <= 0 {
		cfg.TargetScore = DefaultEvalConfig().TargetScore
	}
	if cfg.RegressThreshold <= 0 {
		cfg.RegressThreshold = DefaultEvalConfig().RegressThreshold
	}
	if len(cfg.Stages) == 0 {
		cfg.Stages = DefaultEvalConfig().Stages
	}
	return cfg, nil
}
