package liquidation

import (
	"context"
	"strings"
	"testing"

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
	vaultsvc "levitas/internal/services/vault"
	"levitas/pkg/errors"
)

type testStack struct {
	svc       *Service
	ledger    *memory.Ledger
	transfers *memory.TransferLedger
	history   *memory.HistoryStore
	chain     *chain.Client
}

func newTestStack(t *testing.T) *testStack {
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

	svc := NewService(
		ledger,
		transfers,
		nil,
		events.NewNoopPublisher(),
		history,
		elig,
		client,
		client,
		client,
		nil,
		liqCfg,
	)

	return &testStack{
		svc:       svc,
		ledger:    ledger,
		transfers: transfers,
		history:   store,
		chain:     client,
	}
}

func TestLiquidate_FullFlow(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	owner := "0xOwner"
	liquidator := "0xLiquidator"

	// CR = 500/421.5 ~ 118.6, liquidatable
	ts.chain.SeedVault(vault.TokenBVIX, owner, d("500"), d("10"))
	ts.chain.SeedTokens(vault.TokenBVIX, liquidator, d("10"))

	rec, err := ts.svc.Liquidate(ctx, vault.TokenBVIX, owner, liquidator)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, vault.TokenBVIX, rec.TokenType)
	assert.Equal(t, owner, rec.Owner)
	assert.Equal(t, liquidator, rec.Liquidator)
	assert.True(t, rec.DebtRepaid.Equal(d("10")))
	assert.True(t, rec.CollateralSeized.Equal(d("442.575")), "seized = %s", rec.CollateralSeized)
	assert.True(t, rec.Bonus.Equal(d("21.075")))
	assert.True(t, rec.OwnerRefund.Equal(d("57.425")), "refund = %s", rec.OwnerRefund)
	assert.True(t, strings.HasPrefix(rec.TxHash, "0x"))
	assert.Len(t, rec.TxHash, 66)

	// Snapshot captured at liquidation time
	require.NotNil(t, rec.ContractState)
	assert.True(t, rec.ContractState.Collateral.Equal(d("500")))
	assert.True(t, rec.ContractState.Debt.Equal(d("10")))

	// Ledger entry written
	stored, err := ts.ledger.Get(ctx, vault.TokenBVIX, owner)
	require.NoError(t, err)
	assert.Equal(t, rec.TxHash, stored.TxHash)

	// External ledger settled: vault cleared, tokens burned, collateral moved
	pos, err := ts.chain.Position(ctx, vault.TokenBVIX, owner)
	require.NoError(t, err)
	assert.True(t, pos.Collateral.IsZero())
	assert.True(t, pos.Debt.IsZero())

	liqTokens, err := ts.chain.TokenBalance(ctx, vault.TokenBVIX, liquidator)
	require.NoError(t, err)
	assert.True(t, liqTokens.IsZero())

	liqWallet, err := ts.chain.WalletBalance(ctx, liquidator)
	require.NoError(t, err)
	assert.True(t, liqWallet.Equal(d("442.575")))

	ownerWallet, err := ts.chain.WalletBalance(ctx, owner)
	require.NoError(t, err)
	assert.True(t, ownerWallet.Equal(d("57.425")))

	// History resynced for both parties
	liqHistory, err := ts.history.Load(ctx, liquidator)
	require.NoError(t, err)
	require.Len(t, liqHistory, 1)
	assert.True(t, liqHistory[0].IsLiquidator)

	ownerHistory, err := ts.history.Load(ctx, owner)
	require.NoError(t, err)
	require.Len(t, ownerHistory, 1)
	assert.False(t, ownerHistory[0].IsLiquidator)
}

func TestLiquidate_ShortfallAbsorbed(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	// Payment of 442.575 exceeds the 430 collateral: seizure caps at the
	// collateral, the refund floors at zero, the liquidation still completes
	ts.chain.SeedVault(vault.TokenBVIX, "0xowner", d("430"), d("10"))
	ts.chain.SeedTokens(vault.TokenBVIX, "0xliq", d("10"))

	rec, err := ts.svc.Liquidate(ctx, vault.TokenBVIX, "0xowner", "0xliq")
	require.NoError(t, err)

	assert.True(t, rec.CollateralSeized.Equal(d("430")), "seized = %s", rec.CollateralSeized)
	assert.True(t, rec.OwnerRefund.IsZero())

	// The chain moved the funds; no compensating mock transfers on top
	net, err := ts.transfers.NetFor(ctx, "0xliq")
	require.NoError(t, err)
	assert.True(t, net.IsZero())

	wallet, err := ts.chain.WalletBalance(ctx, "0xliq")
	require.NoError(t, err)
	assert.True(t, wallet.Equal(d("430")))
}

func TestLiquidate_WalletStatsMatchChain(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	owner := "0xowner"
	liquidator := "0xliq"
	ts.chain.SeedVault(vault.TokenBVIX, owner, d("500"), d("10"))
	ts.chain.SeedTokens(vault.TokenBVIX, liquidator, d("10"))

	_, err := ts.svc.Liquidate(ctx, vault.TokenBVIX, owner, liquidator)
	require.NoError(t, err)

	// The engine settled the wallets on the external ledger. Stats must
	// report exactly those balances: a mock transfer recorded on top would
	// count the same movement twice.
	vaults := vaultsvc.NewService(ts.ledger, ts.transfers, ts.chain, ts.chain)

	liqStats, err := vaults.Stats(ctx, liquidator)
	require.NoError(t, err)
	liqWallet, err := ts.chain.WalletBalance(ctx, liquidator)
	require.NoError(t, err)
	assert.True(t, liqStats.USDC.Equal(liqWallet), "stats usdc %s, chain wallet %s", liqStats.USDC, liqWallet)
	assert.True(t, liqStats.USDC.Equal(d("442.575")))

	ownerStats, err := vaults.Stats(ctx, owner)
	require.NoError(t, err)
	ownerWallet, err := ts.chain.WalletBalance(ctx, owner)
	require.NoError(t, err)
	assert.True(t, ownerStats.USDC.Equal(ownerWallet), "stats usdc %s, chain wallet %s", ownerStats.USDC, ownerWallet)
	assert.True(t, ownerStats.USDC.Equal(d("57.425")))
	assert.False(t, ownerStats.USDC.IsNegative())
}

func TestLiquidate_NotLiquidatable(t *testing.T) {
	ts := newTestStack(t)

	// CR ~356, healthy
	ts.chain.SeedVault(vault.TokenBVIX, "0xowner", d("1500"), d("10"))

	_, err := ts.svc.Liquidate(context.Background(), vault.TokenBVIX, "0xowner", "0xliq")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrVaultNotLiquidatable))
}

func TestLiquidate_EmptyVault(t *testing.T) {
	ts := newTestStack(t)

	_, err := ts.svc.Liquidate(context.Background(), vault.TokenBVIX, "0xnobody", "0xliq")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrVaultNotLiquidatable))
}

func TestLiquidate_FailedTransferLeavesLedgerUntouched(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	// Liquidatable, but the liquidator holds no tokens to burn
	ts.chain.SeedVault(vault.TokenBVIX, "0xowner", d("430"), d("10"))

	_, err := ts.svc.Liquidate(ctx, vault.TokenBVIX, "0xowner", "0xbroke")
	require.Error(t, err)

	liquidated, err := ts.ledger.IsLiquidated(ctx, vault.TokenBVIX, "0xowner")
	require.NoError(t, err)
	assert.False(t, liquidated, "ledger must not record a failed transfer")
}

func TestRecord_Validation(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	var verr *errors.ValidationError

	_, err := ts.svc.Record(ctx, SubmitRequest{Owner: "0xowner"})
	require.Error(t, err)
	assert.True(t, errors.As(err, &verr))

	_, err = ts.svc.Record(ctx, SubmitRequest{TokenType: "bvix"})
	require.Error(t, err)
	assert.True(t, errors.As(err, &verr))

	_, err = ts.svc.Record(ctx, SubmitRequest{TokenType: "dogecoin", Owner: "0xowner"})
	require.Error(t, err)
	assert.True(t, errors.As(err, &verr))
}

func TestRecord_SyntheticTxHash(t *testing.T) {
	ts := newTestStack(t)

	rec, err := ts.svc.Record(context.Background(), SubmitRequest{
		TokenType:     "bvix",
		Owner:         "0xowner",
		Liquidator:    "0xliq",
		DebtRepaid:    d("10"),
		ContractState: &liquidation.ContractState{Collateral: d("430"), Debt: d("10")},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rec.TxHash, "0x"))
	assert.Len(t, rec.TxHash, 66)
}

func TestRecord_KeepsCallerTxHash(t *testing.T) {
	ts := newTestStack(t)

	rec, err := ts.svc.Record(context.Background(), SubmitRequest{
		TokenType:     "evix",
		Owner:         "0xowner",
		TxHash:        "0xdeadbeef",
		ContractState: &liquidation.ContractState{Collateral: d("400"), Debt: d("10")},
	})
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", rec.TxHash)
}

func TestRecord_SnapshotFallback(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	// No snapshot in the request: the live raw position is captured instead
	ts.chain.SeedVault(vault.TokenBVIX, "0xowner", d("300"), d("5"))

	rec, err := ts.svc.Record(ctx, SubmitRequest{
		TokenType: "bvix",
		Owner:     "0xowner",
	})
	require.NoError(t, err)

	require.NotNil(t, rec.ContractState)
	assert.True(t, rec.ContractState.Collateral.Equal(d("300")))
	assert.True(t, rec.ContractState.Debt.Equal(d("5")))
}

func TestRecord_LastWriteWins(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	snapshot := &liquidation.ContractState{Collateral: d("430"), Debt: d("10")}

	_, err := ts.svc.Record(ctx, SubmitRequest{
		TokenType: "bvix", Owner: "0xOwner", Liquidator: "0xfirst", ContractState: snapshot,
	})
	require.NoError(t, err)

	_, err = ts.svc.Record(ctx, SubmitRequest{
		TokenType: "bvix", Owner: "0xowner", Liquidator: "0xsecond", ContractState: snapshot,
	})
	require.NoError(t, err)

	// Same vault key regardless of address casing; the later write wins
	all, err := ts.ledger.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "0xsecond", all[0].Liquidator)
}
