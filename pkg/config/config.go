package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// BotMode gates execution.
type BotMode string

const (
	ModeDryRun BotMode = "DryRun"
	ModePilot  BotMode = "Pilot"
	ModeLive   BotMode = "Live"
)

// SourceConfig describes one market-data source subscription.
type SourceConfig struct {
	Name    string
	WSURL   string
	Enabled bool
}

// Config holds environment-driven settings for the engine.
type Config struct {
	// Core loop
	ProcessingIntervalSeconds int // periodic-analysis cadence; min 60
	MaxOpportunitiesPerCycle  int
	CycleTimeoutSeconds       int
	RetryAttempts             int
	RetryDelaySeconds         int

	// Execution gating
	Mode BotMode

	// Risk
	MaxPositionSizeSOL   float64
	RiskTolerance        float64 // 0.0 - 1.0
	StopLossPercentage   float64
	TakeProfitPercentage float64
	MaxDailyLossSOL      float64

	// MEV
	MEVEnabled     bool
	MEVTipLamports uint64

	// Market data sources
	Sources          []SourceConfig
	ReconnectTimeout time.Duration
	SourceMaxRetries int

	// State store
	StoreURL               string
	StorePoolSize          int
	StoreConnectTimeout    time.Duration
	StoreOperationTimeout  time.Duration

	// Outbound services
	RPCURL          string
	QuoteURL        string
	BundleURL       string
	BundleTipAccounts []string
	AdvisorURL      string
	AdvisorTimeout  time.Duration
	AdvisorMinConfidence float64

	// Reporter
	ReporterEnabled       bool
	ReporterURL           string
	ReporterBatchSize     int
	ReporterFlushInterval time.Duration
	ReporterRetryAttempts int

	// Wallet
	WalletPrivateKey string

	// Strategy configuration file
	StrategiesPath string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the engine still starts when .env is missing.
	_ = godotenv.Load()

	processing := getEnvInt("PROCESSING_INTERVAL_SECONDS", 60)
	if processing < 60 {
		processing = 60
	}

	cfg := &Config{
		ProcessingIntervalSeconds: processing,
		MaxOpportunitiesPerCycle:  getEnvInt("MAX_OPPORTUNITIES_PER_CYCLE", 10),
		CycleTimeoutSeconds:       getEnvInt("CYCLE_TIMEOUT_SECONDS", 30),
		RetryAttempts:             getEnvInt("RETRY_ATTEMPTS", 3),
		RetryDelaySeconds:         getEnvInt("RETRY_DELAY_SECONDS", 1),

		Mode: parseMode(getEnv("BOT_MODE", "DryRun")),

		MaxPositionSizeSOL:   getEnvFloat("MAX_POSITION_SIZE_SOL", 0.5),
		RiskTolerance:        clamp01(getEnvFloat("RISK_TOLERANCE", 0.5)),
		StopLossPercentage:   getEnvFloat("STOP_LOSS_PERCENTAGE", -80.0),
		TakeProfitPercentage: getEnvFloat("TAKE_PROFIT_PERCENTAGE", 300.0),
		MaxDailyLossSOL:      getEnvFloat("MAX_DAILY_LOSS_SOL", 1.0),

		MEVEnabled:     getEnv("MEV_ENABLED", "true") == "true",
		MEVTipLamports: uint64(getEnvInt("MEV_TIP_LAMPORTS", 10_000)),

		ReconnectTimeout: time.Duration(getEnvInt("SOURCE_RECONNECT_TIMEOUT_SECONDS", 5)) * time.Second,
		SourceMaxRetries: getEnvInt("SOURCE_MAX_RETRIES", 0),

		StoreURL:              getEnv("STORE_URL", "redis://localhost:6379/0"),
		StorePoolSize:         getEnvInt("STORE_POOL_SIZE", 10),
		StoreConnectTimeout:   time.Duration(getEnvInt("STORE_CONNECT_TIMEOUT_MS", 5000)) * time.Millisecond,
		StoreOperationTimeout: time.Duration(getEnvInt("STORE_OPERATION_TIMEOUT_MS", 2000)) * time.Millisecond,

		RPCURL:            getEnv("RPC_URL", "https://api.mainnet-beta.solana.com"),
		QuoteURL:          getEnv("QUOTE_URL", "https://quote-api.jup.ag/v6"),
		BundleURL:         getEnv("BUNDLE_URL", "https://mainnet.block-engine.jito.wtf/api/v1"),
		BundleTipAccounts: splitAndTrim(getEnv("BUNDLE_TIP_ACCOUNTS", "96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5")),

		AdvisorURL:           getEnv("ADVISOR_URL", ""),
		AdvisorTimeout:       time.Duration(getEnvInt("ADVISOR_TIMEOUT_MS", 10_000)) * time.Millisecond,
		AdvisorMinConfidence: clamp01(getEnvFloat("ADVISOR_MIN_CONFIDENCE", 0.6)),

		ReporterEnabled:       getEnv("REPORTER_ENABLED", "false") == "true",
		ReporterURL:           getEnv("REPORTER_URL", ""),
		ReporterBatchSize:     getEnvInt("REPORTER_BATCH_SIZE", 10),
		ReporterFlushInterval: time.Duration(getEnvInt("REPORTER_FLUSH_INTERVAL_SECONDS", 30)) * time.Second,
		ReporterRetryAttempts: getEnvInt("REPORTER_RETRY_ATTEMPTS", 3),

		WalletPrivateKey: os.Getenv("WALLET_PRIVATE_KEY"),

		StrategiesPath: getEnv("STRATEGIES_PATH", "strategies.yaml"),
	}

	cfg.Sources = loadSources()

	return cfg, nil
}

// loadSources reads SOURCE_{NAME}_WS_URL / SOURCE_{NAME}_ENABLED pairs for
// the known source names.
func loadSources() []SourceConfig {
	names := splitAndTrim(getEnv("SOURCE_NAMES", "helius,binance"))
	sources := make([]SourceConfig, 0, len(names))
	for _, name := range names {
		key := strings.ToUpper(name)
		url := os.Getenv("SOURCE_" + key + "_WS_URL")
		if url == "" {
			switch name {
			case "helius":
				url = "wss://atlas-mainnet.helius-rpc.com"
			case "binance":
				url = "wss://stream.binance.com:9443/ws"
			}
		}
		sources = append(sources, SourceConfig{
			Name:    name,
			WSURL:   url,
			Enabled: getEnv("SOURCE_"+key+"_ENABLED", "true") == "true",
		})
	}
	return sources
}

func parseMode(v string) BotMode {
	switch strings.ToLower(v) {
	case "live":
		return ModeLive
	case "pilot":
		return ModePilot
	default:
		return ModeDryRun
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
