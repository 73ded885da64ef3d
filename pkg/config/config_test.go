package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Mode != ModeDryRun {
		t.Fatalf("mode=%s, expected DryRun default", cfg.Mode)
	}
	if cfg.ProcessingIntervalSeconds < 60 {
		t.Fatalf("processing interval=%d, floor is 60", cfg.ProcessingIntervalSeconds)
	}
	if cfg.ReconnectTimeout != 5*time.Second {
		t.Fatalf("reconnect timeout=%v", cfg.ReconnectTimeout)
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("sources=%+v", cfg.Sources)
	}
}

func TestProcessingIntervalFloor(t *testing.T) {
	t.Setenv("PROCESSING_INTERVAL_SECONDS", "5")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ProcessingIntervalSeconds != 60 {
		t.Fatalf("interval=%d, expected clamp to 60", cfg.ProcessingIntervalSeconds)
	}
}

func TestModeParsing(t *testing.T) {
	tests := []struct {
		env  string
		want BotMode
	}{
		{"Live", ModeLive},
		{"live", ModeLive},
		{"Pilot", ModePilot},
		{"DryRun", ModeDryRun},
		{"garbage", ModeDryRun},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("BOT_MODE", tt.env)
			cfg, err := Load()
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if cfg.Mode != tt.want {
				t.Fatalf("mode=%s, expected %s", cfg.Mode, tt.want)
			}
		})
	}
}

func TestSourceOverrides(t *testing.T) {
	t.Setenv("SOURCE_NAMES", "helius")
	t.Setenv("SOURCE_HELIUS_WS_URL", "wss://custom.example")
	t.Setenv("SOURCE_HELIUS_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Sources) != 1 {
		t.Fatalf("sources=%+v", cfg.Sources)
	}
	src := cfg.Sources[0]
	if src.WSURL != "wss://custom.example" || src.Enabled {
		t.Fatalf("source=%+v", src)
	}
}

func TestRiskToleranceClamped(t *testing.T) {
	t.Setenv("RISK_TOLERANCE", "3.5")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RiskTolerance != 1.0 {
		t.Fatalf("risk tolerance=%v, expected clamp to 1", cfg.RiskTolerance)
	}
}
