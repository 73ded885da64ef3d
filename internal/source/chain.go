package source

import (
	"encoding/json"
	"strings"

	"sniper-core/internal/models"
)

// Known DEX program IDs watched on the chain source.
const (
	RaydiumAMMV4Program = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	PumpFunProgram      = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
)

// ChainAdapter subscribes to DEX program logs over the chain RPC websocket
// and surfaces pool creations, token launches and swaps.
type ChainAdapter struct {
	name string
	url  string
}

// NewChainAdapter creates a chain log source.
func NewChainAdapter(name, url string) *ChainAdapter {
	return &ChainAdapter{name: name, url: url}
}

func (a *ChainAdapter) Name() string { return a.name }
func (a *ChainAdapter) URL() string  { return a.url }

// SubscribeFrames subscribes to logs mentioning the watched DEX programs.
func (a *ChainAdapter) SubscribeFrames() [][]byte {
	frames := make([][]byte, 0, 2)
	for i, program := range []string{RaydiumAMMV4Program, PumpFunProgram} {
		frame, _ := json.Marshal(map[string]any{
			"jsonrpc": "2.0",
			"id":      i + 1,
			"method":  "logsSubscribe",
			"params": []any{
				map[string]any{"mentions": []string{program}},
				map[string]any{"encoding": "jsonParsed", "commitment": "finalized"},
			},
		})
		frames = append(frames, frame)
	}
	return frames
}

// chainNotification is the subset of logsNotification frames we consume.
type chainNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Value struct {
				Signature string   `json:"signature"`
				Logs      []string `json:"logs"`
				Err       any      `json:"err"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// Parse handles logsNotification frames. Subscription acks and anything
// unrecognised fall through as raw messages.
func (a *ChainAdapter) Parse(frame []byte, nowMs int64) ([]models.MarketEvent, bool) {
	var note chainNotification
	if err := json.Unmarshal(frame, &note); err != nil {
		return nil, false
	}

	if note.Method == "" {
		// Subscription confirmation ({"id":1,"result":<subID>}); ack frames
		// carry no market information but are recognised.
		var ack struct {
			ID     int `json:"id"`
			Result any `json:"result"`
		}
		if json.Unmarshal(frame, &ack) == nil && ack.ID > 0 {
			return nil, true
		}
		return nil, false
	}
	if note.Method != "logsNotification" {
		return nil, false
	}

	value := note.Params.Result.Value
	if value.Err != nil {
		return nil, true // failed transaction, nothing to trade on
	}

	return parseChainLogs(value.Signature, value.Logs, nowMs), true
}

// parseChainLogs inspects program logs for pool initialisation, token
// creation and swap markers.
func parseChainLogs(signature string, logs []string, nowMs int64) []models.MarketEvent {
	var out []models.MarketEvent
	joined := strings.Join(logs, "\n")

	switch {
	case strings.Contains(joined, "initialize2") || strings.Contains(joined, "InitializeInstruction2"):
		// Raydium AMM pool initialisation.
		out = append(out, models.NewPoolCreated{
			PoolAddress: signature, // resolved to the real pool by enrichment
			BaseMint:    extractMint(logs),
			QuoteMint:   models.WrappedSOLMint,
			Timestamp:   nowMs,
		})
	case strings.Contains(joined, "Program log: Instruction: Create"):
		// pump.fun bonding-curve token creation.
		out = append(out, models.NewTokenListing{
			TokenAddress: extractMint(logs),
			Timestamp:    nowMs,
		})
	case strings.Contains(joined, "Instruction: Buy"):
		out = append(out, models.NewTransaction{
			Signature:    signature,
			TokenAddress: extractMint(logs),
			TxKind:       models.TxBuy,
			Timestamp:    nowMs,
		})
	case strings.Contains(joined, "Instruction: Sell"):
		out = append(out, models.NewTransaction{
			Signature:    signature,
			TokenAddress: extractMint(logs),
			TxKind:       models.TxSell,
			Timestamp:    nowMs,
		})
	case strings.Contains(joined, "Instruction: Swap"):
		out = append(out, models.NewTransaction{
			Signature:    signature,
			TokenAddress: extractMint(logs),
			TxKind:       models.TxSwap,
			Timestamp:    nowMs,
		})
	}
	return out
}

// extractMint pulls a mint address from "mint: <base58>" log lines when the
// program emits one.
func extractMint(logs []string) string {
	for _, line := range logs {
		if idx := strings.Index(line, "mint: "); idx >= 0 {
			mint := strings.TrimSpace(line[idx+len("mint: "):])
			if end := strings.IndexByte(mint, ' '); end > 0 {
				mint = mint[:end]
			}
			if mint != "" {
				return mint
			}
		}
	}
	return ""
}
