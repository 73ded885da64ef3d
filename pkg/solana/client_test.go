package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func rpcServer(t *testing.T, handler func(method string, params []any) any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode rpc request: %v", err)
		}
		if req.JSONRPC != "2.0" {
			t.Fatalf("jsonrpc=%q", req.JSONRPC)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  handler(req.Method, req.Params),
		})
	}))
}

func TestGetBalance(t *testing.T) {
	srv := rpcServer(t, func(method string, params []any) any {
		if method != "getBalance" {
			t.Fatalf("method=%q", method)
		}
		return map[string]any{"value": 2_500_000_000}
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	sol, err := c.GetBalance(context.Background(), "addr")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if sol != 2.5 {
		t.Fatalf("balance=%v, expected 2.5 SOL", sol)
	}
}

func TestGetMintInfoBurnedAuthorities(t *testing.T) {
	srv := rpcServer(t, func(method string, params []any) any {
		return map[string]any{
			"value": map[string]any{
				"data": map[string]any{
					"parsed": map[string]any{
						"info": map[string]any{
							"mintAuthority":   nil,
							"freezeAuthority": nil,
							"decimals":        6,
						},
					},
				},
			},
		}
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	info, err := c.GetMintInfo(context.Background(), "mint")
	if err != nil {
		t.Fatalf("mint info: %v", err)
	}
	if info.MintAuthority != "" || info.FreezeAuthority != "" {
		t.Fatalf("info=%+v, expected burned authorities", info)
	}
	if info.Decimals != 6 {
		t.Fatalf("decimals=%d", info.Decimals)
	}
}

func TestGetSignatureStatusStates(t *testing.T) {
	var value []any
	srv := rpcServer(t, func(method string, params []any) any {
		return map[string]any{"value": value}
	})
	defer srv.Close()
	c := NewClient(srv.URL)

	// Unknown signature: neither confirmed nor failed.
	value = []any{nil}
	st, err := c.GetSignatureStatus(context.Background(), "sig")
	if err != nil || st.Confirmed || st.Failed {
		t.Fatalf("st=%+v err=%v", st, err)
	}

	value = []any{map[string]any{"confirmationStatus": "finalized"}}
	st, err = c.GetSignatureStatus(context.Background(), "sig")
	if err != nil || !st.Confirmed {
		t.Fatalf("st=%+v err=%v", st, err)
	}

	value = []any{map[string]any{"confirmationStatus": "processed", "err": map[string]any{"InstructionError": []any{}}}}
	st, err = c.GetSignatureStatus(context.Background(), "sig")
	if err != nil || !st.Failed {
		t.Fatalf("st=%+v err=%v", st, err)
	}
}

func TestRPCErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0", "id": 1,
			"error": map[string]any{"code": -32602, "message": "invalid params"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithMaxRetries(0), WithRetryDelay(time.Millisecond))
	if _, err := c.GetBalance(context.Background(), "addr"); err == nil {
		t.Fatal("expected RPC error")
	}
}
