package strategy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is one strategy entry in the YAML file.
type Config struct {
	Name       string         `yaml:"name"`
	Type       string         `yaml:"type"`
	Enabled    bool           `yaml:"enabled"`
	Parameters map[string]any `yaml:"parameters"`
}

// ConfigFile is the top-level YAML structure: the strategy list plus the
// balance-band activation table.
type ConfigFile struct {
	Strategies      []Config         `yaml:"strategies"`
	ActivationBands []ActivationBand `yaml:"activation_bands"`
}

// LoadConfig reads strategies and activation bands from a YAML file.
func LoadConfig(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(file.Strategies))
	for _, s := range file.Strategies {
		if s.Name == "" {
			return nil, fmt.Errorf("%s: strategy with empty name", path)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate strategy %q", path, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return &file, nil
}

// Build instantiates a strategy from its config entry.
func Build(cfg Config, validator TokenValidator) (Strategy, error) {
	switch cfg.Type {
	case "sniping":
		switch cfg.Name {
		case "cautious_sniper":
			s := NewCautiousSniper(cfg.Name, validator)
			return s, s.UpdateParameters(cfg.Parameters)
		default:
			s := NewPureSniper(cfg.Name, validator)
			return s, s.UpdateParameters(cfg.Parameters)
		}
	case "liquidity":
		s := NewLiquiditySniping(cfg.Name)
		return s, s.UpdateParameters(cfg.Parameters)
	case "momentum":
		s := NewMomentumTrader(cfg.Name)
		return s, s.UpdateParameters(cfg.Parameters)
	case "volume_spike":
		s := NewVolumeSpike(cfg.Name)
		return s, s.UpdateParameters(cfg.Parameters)
	default:
		return nil, fmt.Errorf("unknown strategy type %q", cfg.Type)
	}
}
