package strategy

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
strategies:
  - name: pure_sniper
    type: sniping
    enabled: true
    parameters:
      purchase_amount_sol: 0.05
      take_profit_percent: 300
  - name: momentum_trader
    type: momentum
    enabled: false
    parameters:
      position_size_sol: 0.2

activation_bands:
  - name: low
    max_sol: 0.1
    strategies: [pure_sniper]
  - name: high
    max_sol: 0
    strategies: [pure_sniper, momentum_trader]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Strategies) != 2 {
		t.Fatalf("strategies=%d", len(cfg.Strategies))
	}
	if cfg.Strategies[0].Name != "pure_sniper" || !cfg.Strategies[0].Enabled {
		t.Fatalf("first=%+v", cfg.Strategies[0])
	}
	if got := cfg.Strategies[0].Parameters["take_profit_percent"]; got != 300 {
		t.Fatalf("parameter=%v (%T)", got, got)
	}
	if len(cfg.ActivationBands) != 2 || cfg.ActivationBands[1].MaxSOL != 0 {
		t.Fatalf("bands=%+v", cfg.ActivationBands)
	}
}

func TestLoadConfigRejectsDuplicates(t *testing.T) {
	dup := `
strategies:
  - name: pure_sniper
    type: sniping
  - name: pure_sniper
    type: sniping
`
	if _, err := LoadConfig(writeConfig(t, dup)); err == nil {
		t.Fatal("duplicate names should fail")
	}
}

func TestBuildFromConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	for _, sc := range cfg.Strategies {
		s, err := Build(sc, nil)
		if err != nil {
			t.Fatalf("build %s: %v", sc.Name, err)
		}
		if s.Name() != sc.Name {
			t.Fatalf("name=%q, expected %q", s.Name(), sc.Name)
		}
	}

	if _, err := Build(Config{Name: "x", Type: "unknown"}, nil); err == nil {
		t.Fatal("unknown type should fail")
	}
}

func TestBuildAppliesParameters(t *testing.T) {
	s, err := Build(Config{
		Name: "pure_sniper",
		Type: "sniping",
		Parameters: map[string]any{
			"purchase_amount_sol": 0.25,
		},
	}, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	sniper := s.(*Sniper)
	if sniper.params.PurchaseAmountSOL != 0.25 {
		t.Fatalf("params=%+v", sniper.params)
	}
}
