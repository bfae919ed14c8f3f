package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levitas/internal/adapters/chain"
	"levitas/internal/adapters/config"
	"levitas/internal/domain/liquidation"
	"levitas/internal/domain/vault"
	"levitas/internal/events"
	"levitas/internal/repository/memory"
	"levitas/internal/services/eligibility"
	historysvc "levitas/internal/services/history"
	liquidationsvc "levitas/internal/services/liquidation"
	vaultsvc "levitas/internal/services/vault"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type apiFixture struct {
	server *httptest.Server
	ledger *memory.Ledger
	chain  *chain.Client
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	liqCfg := config.LiquidationConfig{
		Threshold:        120,
		ThresholdEpsilon: 0.25,
		WarningThreshold: 125,
		BonusRate:        0.05,
	}
	chainCfg := config.ChainConfig{
		BVIXInitialPrice:  "42.15",
		EVIXInitialPrice:  "37.98",
		RequestsPerSecond: 10000,
		Burst:             10000,
	}

	client, err := chain.NewClient(chainCfg)
	require.NoError(t, err)

	ledger := memory.NewLedger()
	transfers := memory.NewTransferLedger()
	store := memory.NewHistoryStore()
	history := historysvc.NewService(ledger, store)
	elig := eligibility.NewService(ledger, client, client, liqCfg, chainCfg)
	liq := liquidationsvc.NewService(
		ledger, transfers, nil, events.NewNoopPublisher(),
		history, elig, client, client, client, nil, liqCfg,
	)
	vaults := vaultsvc.NewService(ledger, transfers, client, client)

	handler := NewHandler(elig, liq, vaults, history, ledger, transfers)
	server := httptest.NewServer(NewRouter(handler))
	t.Cleanup(server.Close)

	return &apiFixture{server: server, ledger: ledger, chain: client}
}

func (f *apiFixture) get(t *testing.T, path string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func (f *apiFixture) post(t *testing.T, path string, body interface{}) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(f.server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]json.RawMessage {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestLiquidateVault_Validation(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.post(t, "/api/v1/liquidate-vault", map[string]string{"owner": "0xowner"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body["error"]), "tokenType")

	resp, _ = f.post(t, "/api/v1/liquidate-vault", map[string]string{"tokenType": "dogecoin", "owner": "0xowner"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLiquidateVault_RecordAndExclude(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	// Liquidatable vault shows up in the scan
	f.chain.SeedVault(vault.TokenBVIX, "0xowner", d("430"), d("10"))

	resp, body := f.get(t, "/api/v1/liquidatable-positions")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var candidates []liquidation.Candidate
	require.NoError(t, json.Unmarshal(body["bvix"], &candidates))
	require.Len(t, candidates, 1)

	// Record the liquidation through the API
	resp, body = f.post(t, "/api/v1/liquidate-vault", map[string]interface{}{
		"tokenType":  "bvix",
		"owner":      "0xowner",
		"liquidator": "0xliq",
		"debtRepaid": "10",
		"contractStateAtLiquidation": map[string]string{
			"collateral": "430",
			"debt":       "10",
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", string(body["success"]))

	// The vault is now flagged liquidated
	resp, body = f.get(t, "/api/v1/vault-liquidated/bvix/0xowner")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", string(body["isLiquidated"]))

	// And excluded from subsequent scans even though its ratio still qualifies
	resp, body = f.get(t, "/api/v1/liquidatable-positions")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	candidates = nil
	require.NoError(t, json.Unmarshal(body["bvix"], &candidates))
	assert.Empty(t, candidates)

	liquidated, err := f.ledger.IsLiquidated(ctx, vault.TokenBVIX, "0xowner")
	require.NoError(t, err)
	assert.True(t, liquidated)
}

func TestLiquidate_FullFlow(t *testing.T) {
	f := newAPIFixture(t)

	f.chain.SeedVault(vault.TokenBVIX, "0xowner", d("500"), d("10"))
	f.chain.SeedTokens(vault.TokenBVIX, "0xliq", d("10"))

	resp, body := f.post(t, "/api/v1/liquidate", map[string]string{
		"tokenType":  "bvix",
		"owner":      "0xowner",
		"liquidator": "0xliq",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec liquidation.Record
	require.NoError(t, json.Unmarshal(body["liquidation"], &rec))
	assert.True(t, rec.CollateralSeized.Equal(d("442.575")))
	assert.True(t, rec.OwnerRefund.Equal(d("57.425")))
}

func TestLiquidate_NotLiquidatable(t *testing.T) {
	f := newAPIFixture(t)

	f.chain.SeedVault(vault.TokenBVIX, "0xowner", d("1500"), d("10"))

	resp, _ := f.post(t, "/api/v1/liquidate", map[string]string{
		"tokenType":  "bvix",
		"owner":      "0xowner",
		"liquidator": "0xliq",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestClearLiquidations(t *testing.T) {
	f := newAPIFixture(t)

	_, _ = f.post(t, "/api/v1/liquidate-vault", map[string]interface{}{
		"tokenType": "bvix",
		"owner":     "0xowner",
		"contractStateAtLiquidation": map[string]string{
			"collateral": "430",
			"debt":       "10",
		},
	})

	resp, body := f.post(t, "/api/v1/clear-liquidations", map[string]string{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", string(body["success"]))

	resp, body = f.get(t, "/api/v1/vault-liquidated/bvix/0xowner")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "false", string(body["isLiquidated"]))
}

func TestUserPositionsAndStats(t *testing.T) {
	f := newAPIFixture(t)

	f.chain.SeedVault(vault.TokenBVIX, "0xuser", d("1500"), d("10"))
	f.chain.SeedWallet("0xuser", d("1000"))

	resp, body := f.get(t, "/api/v1/user-positions/0xuser")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bvix vaultsvc.PositionView
	require.NoError(t, json.Unmarshal(body["bvix"], &bvix))
	assert.True(t, bvix.Collateral.Equal(d("1500")))

	resp, body = f.get(t, "/api/v1/vault-stats?address=0xuser")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var usdc decimal.Decimal
	require.NoError(t, json.Unmarshal(body["usdc"], &usdc))
	assert.True(t, usdc.Equal(d("1000")))
}

func TestLiquidationHistory(t *testing.T) {
	f := newAPIFixture(t)

	f.chain.SeedVault(vault.TokenBVIX, "0xowner", d("500"), d("10"))
	f.chain.SeedTokens(vault.TokenBVIX, "0xliq", d("10"))

	resp, _ := f.post(t, "/api/v1/liquidate", map[string]string{
		"tokenType": "bvix", "owner": "0xowner", "liquidator": "0xliq",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.get(t, "/api/v1/liquidation-history/0xliq")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []liquidation.HistoryEntry
	require.NoError(t, json.Unmarshal(body["history"], &entries))
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsLiquidator)

	req, err := http.NewRequest(http.MethodDelete, f.server.URL+"/api/v1/liquidation-history/0xliq", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
