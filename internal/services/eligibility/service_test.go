package eligibility

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levitas/internal/adapters/chain"
	"levitas/internal/adapters/config"
	"levitas/internal/domain/liquidation"
	"levitas/internal/domain/vault"
	"levitas/internal/repository/memory"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func testLiquidationConfig() config.LiquidationConfig {
	return config.LiquidationConfig{
		Threshold:        120,
		ThresholdEpsilon: 0.25,
		WarningThreshold: 125,
		BonusRate:        0.05,
	}
}

func testChainConfig() config.ChainConfig {
	return config.ChainConfig{
		BVIXMintRedeem:    "0xa0133C6380bf9618e97Ab9a855aF2035e9498829",
		EVIXMintRedeem:    "0x1CA8eC26c0451Ca0b88cEa2c6B0E10267505327a",
		BVIXInitialPrice:  "42.15",
		EVIXInitialPrice:  "37.98",
		RequestsPerSecond: 10000,
		Burst:             10000,
	}
}

func newTestService(t *testing.T) (*Service, *memory.Ledger, *chain.Client) {
	t.Helper()

	ledger := memory.NewLedger()
	client, err := chain.NewClient(testChainConfig())
	require.NoError(t, err)

	svc := NewService(ledger, client, client, testLiquidationConfig(), testChainConfig())
	return svc, ledger, client
}

func TestEvaluate_Thresholds(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// With debt=1 and price=1, collateral*100 is the collateral ratio
	tests := []struct {
		name         string
		collateral   string
		canLiquidate bool
		isAtRisk     bool
	}{
		{"well below threshold", "0.80", true, false},
		{"exactly at threshold", "1.20", true, false},
		{"within epsilon", "1.202", true, false},
		{"at epsilon boundary", "1.2025", true, false},
		{"just past epsilon", "1.2030", false, true},
		{"at-risk band", "1.2499", false, true},
		{"at warning boundary", "1.25", false, false},
		{"healthy", "2.00", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval, err := svc.Evaluate(ctx, vault.TokenBVIX, "0xowner", d(tt.collateral), d("1"), d("1"))
			require.NoError(t, err)
			assert.Equal(t, tt.canLiquidate, eval.CanLiquidate, "canLiquidate at CR %s", eval.CurrentCR)
			assert.Equal(t, tt.isAtRisk, eval.IsAtRisk, "isAtRisk at CR %s", eval.CurrentCR)
		})
	}
}

func TestEvaluate_ZeroDebt(t *testing.T) {
	svc, _, _ := newTestService(t)

	eval, err := svc.Evaluate(context.Background(), vault.TokenBVIX, "0xowner", d("1000"), decimal.Zero, d("42.15"))
	require.NoError(t, err)

	assert.True(t, eval.CurrentCR.IsZero())
	assert.False(t, eval.CanLiquidate)
	assert.False(t, eval.IsAtRisk)
	assert.Equal(t, liquidation.TierLowRisk, eval.Tier)
}

func TestEvaluate_LiquidatedVaultExcluded(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	ctx := context.Background()

	err := ledger.Record(ctx, &liquidation.Record{
		TokenType: vault.TokenBVIX,
		Owner:     "0xOwner",
		Timestamp: time.Now(),
		ContractState: &liquidation.ContractState{
			Collateral: d("430"),
			Debt:       d("10"),
		},
	})
	require.NoError(t, err)

	// CR of 80 would normally liquidate; the ledger entry blocks it,
	// regardless of address casing
	eval, err := svc.Evaluate(ctx, vault.TokenBVIX, "0xowner", d("0.8"), d("1"), d("1"))
	require.NoError(t, err)
	assert.False(t, eval.CanLiquidate)
	assert.False(t, eval.IsAtRisk)
}

func TestTier(t *testing.T) {
	svc, _, _ := newTestService(t)

	tests := []struct {
		cr   string
		want liquidation.RiskTier
	}{
		{"105", liquidation.TierCritical},
		{"109.99", liquidation.TierCritical},
		{"110", liquidation.TierLiquidatable},
		{"119.99", liquidation.TierLiquidatable},
		{"120", liquidation.TierHighRisk},
		{"129.99", liquidation.TierHighRisk},
		{"130", liquidation.TierMediumRisk},
		{"149.99", liquidation.TierMediumRisk},
		{"150", liquidation.TierLowRisk},
		{"300", liquidation.TierLowRisk},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, svc.Tier(d(tt.cr)), "cr=%s", tt.cr)
	}
}

func TestScan(t *testing.T) {
	svc, ledger, client := newTestService(t)
	ctx := context.Background()

	// BVIX @ 42.15: 430/421.5 = CR ~102, liquidatable
	client.SeedVault(vault.TokenBVIX, "0xliq1", d("430"), d("10"))
	// BVIX: CR ~356, healthy
	client.SeedVault(vault.TokenBVIX, "0xhealthy", d("1500"), d("10"))
	// EVIX @ 37.98: 400/379.8 = CR ~105, liquidatable
	client.SeedVault(vault.TokenEVIX, "0xliq2", d("400"), d("10"))
	// EVIX liquidatable by ratio but already in the ledger
	client.SeedVault(vault.TokenEVIX, "0xdone", d("380"), d("10"))
	require.NoError(t, ledger.Record(ctx, &liquidation.Record{
		TokenType:     vault.TokenEVIX,
		Owner:         "0xdone",
		Timestamp:     time.Now(),
		ContractState: &liquidation.ContractState{Collateral: d("380"), Debt: d("10")},
	}))

	result, err := svc.Scan(ctx)
	require.NoError(t, err)

	require.Len(t, result.BVIX, 1)
	require.Len(t, result.EVIX, 1)

	cand := result.BVIX[0]
	assert.Equal(t, "bvix-0xliq1", cand.VaultID)
	assert.Equal(t, "0xliq1", cand.Owner)
	assert.Equal(t, vault.TokenBVIX, cand.TokenType)
	assert.True(t, cand.CanLiquidate)
	assert.Equal(t, testChainConfig().BVIXMintRedeem, cand.ContractAddress)
	assert.True(t, cand.Collateral.Equal(d("430")))
	assert.True(t, cand.Debt.Equal(d("10")))
	// maxBonus = debt * price * bonusRate = 421.5 * 0.05
	assert.True(t, cand.MaxBonus.Equal(d("21.075")), "maxBonus = %s", cand.MaxBonus)
	// liquidationPrice = collateral * 100 / (debt * threshold)
	assert.True(t, cand.LiquidationPrice.Round(6).Equal(d("35.833333")), "liquidationPrice = %s", cand.LiquidationPrice)

	assert.Equal(t, "0xliq2", result.EVIX[0].Owner)
}

func TestScan_SkipsZeroDebtVaults(t *testing.T) {
	svc, _, client := newTestService(t)

	client.SeedVault(vault.TokenBVIX, "0xempty", d("500"), decimal.Zero)

	result, err := svc.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.BVIX)
	assert.Empty(t, result.EVIX)
}
