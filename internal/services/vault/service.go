package vault

import (
	"context"

	"github.com/shopspring/decimal"

	"levitas/internal/domain/liquidation"
	"levitas/internal/domain/vault"
	"levitas/pkg/errors"
	"levitas/pkg/logger"
)

// Service derives current vault state from the external ledger and the
// liquidation ledger. The external ledger only tracks cumulative
// collateral/debt per vault; this service synthesizes vault generations so a
// user who re-mints after a liquidation sees a brand-new position instead of
// one commingled with the liquidated history.
type Service struct {
	ledger    liquidation.Ledger
	transfers liquidation.TransferLedger
	reader    vault.PositionReader
	prices    vault.PriceSource
	log       *logger.Logger
}

// NewService creates a new vault state service
func NewService(
	ledger liquidation.Ledger,
	transfers liquidation.TransferLedger,
	reader vault.PositionReader,
	prices vault.PriceSource,
) *Service {
	return &Service{
		ledger:    ledger,
		transfers: transfers,
		reader:    reader,
		prices:    prices,
		log:       logger.Get().With("component", "vault"),
	}
}

// Reconciled is the post-liquidation view of a vault
type Reconciled struct {
	Collateral decimal.Decimal `json:"collateral"`
	Debt       decimal.Decimal `json:"debt"`
	Visible    bool            `json:"visible"`
}

// Reconcile derives the current vault state from the raw external ledger
// values and any liquidation record:
//
//   - Never liquidated: raw values pass through, visible while debt > 0.
//   - Liquidated with a snapshot: the snapshot is subtracted from the raw
//     values; any positive remainder is fresh post-liquidation activity shown
//     as a new vault, otherwise the position is closed.
//   - Liquidated without a snapshot: treated as closed. This should not
//     happen under correct ledger usage, so it is logged as a warning rather
//     than silently succeeding.
func (s *Service) Reconcile(ctx context.Context, token vault.TokenType, owner string, rawCollateral, rawDebt decimal.Decimal) (Reconciled, error) {
	rec, err := s.ledger.Get(ctx, token, owner)
	if errors.Is(err, errors.ErrNotFound) {
		return Reconciled{
			Collateral: rawCollateral,
			Debt:       rawDebt,
			Visible:    rawDebt.IsPositive(),
		}, nil
	}
	if err != nil {
		return Reconciled{}, errors.Wrap(err, "ledger lookup failed")
	}

	if rec.ContractState == nil {
		s.log.Warnw("Liquidation record missing contract state snapshot, treating vault as closed",
			"token", token, "owner", owner, "tx_hash", rec.TxHash)
		return Reconciled{Collateral: decimal.Zero, Debt: decimal.Zero, Visible: false}, nil
	}

	freshCollateral := rawCollateral.Sub(rec.ContractState.Collateral)
	freshDebt := rawDebt.Sub(rec.ContractState.Debt)

	if freshCollateral.IsPositive() || freshDebt.IsPositive() {
		// Owner minted again after liquidation: show the delta as a new vault
		return Reconciled{Collateral: freshCollateral, Debt: freshDebt, Visible: true}, nil
	}

	return Reconciled{Collateral: decimal.Zero, Debt: decimal.Zero, Visible: false}, nil
}

// PositionView is one token's reconciled position for a user
type PositionView struct {
	Collateral decimal.Decimal `json:"collateral"`
	Debt       decimal.Decimal `json:"debt"`
	CR         decimal.Decimal `json:"cr"`
}

// UserPositions groups a user's reconciled positions with current prices
type UserPositions struct {
	BVIX   PositionView               `json:"bvix"`
	EVIX   PositionView               `json:"evix"`
	Prices map[string]decimal.Decimal `json:"prices"`
}

// Positions returns a user's reconciled per-token positions. A failed lookup
// for one token degrades to a zero position rather than failing the request.
func (s *Service) Positions(ctx context.Context, address string) (*UserPositions, error) {
	out := &UserPositions{
		Prices: make(map[string]decimal.Decimal, len(vault.Tokens)),
	}

	for _, token := range vault.Tokens {
		view, price := s.positionView(ctx, token, address)
		out.Prices[string(token)] = price
		switch token {
		case vault.TokenBVIX:
			out.BVIX = view
		case vault.TokenEVIX:
			out.EVIX = view
		}
	}
	return out, nil
}

// positionView reads, reconciles and prices one token position, degrading to
// a zero position on any lookup failure
func (s *Service) positionView(ctx context.Context, token vault.TokenType, address string) (PositionView, decimal.Decimal) {
	zero := PositionView{Collateral: decimal.Zero, Debt: decimal.Zero, CR: decimal.Zero}

	price, err := s.prices.Price(ctx, token)
	if err != nil {
		s.log.Warnw("Price unavailable, degrading to zero position", "token", token, "error", err)
		return zero, decimal.Zero
	}

	pos, err := s.reader.Position(ctx, token, address)
	if err != nil {
		s.log.Warnw("Position read failed, degrading to zero position", "token", token, "owner", address, "error", err)
		return zero, price
	}

	rec, err := s.Reconcile(ctx, token, address, pos.Collateral, pos.Debt)
	if err != nil {
		s.log.Warnw("Reconciliation failed, degrading to zero position", "token", token, "owner", address, "error", err)
		return zero, price
	}
	if !rec.Visible {
		return zero, price
	}

	return PositionView{
		Collateral: rec.Collateral,
		Debt:       rec.Debt,
		CR:         vault.CollateralRatio(rec.Collateral, rec.Debt, price),
	}, price
}

// Stats is the aggregate wallet and vault view for an address
type Stats struct {
	USDC            decimal.Decimal `json:"usdc"`
	BVIX            decimal.Decimal `json:"bvix"`
	EVIX            decimal.Decimal `json:"evix"`
	CR              decimal.Decimal `json:"cr"`
	Price           decimal.Decimal `json:"price"`
	EVIXPrice       decimal.Decimal `json:"evixPrice"`
	USDCValue       decimal.Decimal `json:"usdcValue"`
	BVIXValueInUSD  decimal.Decimal `json:"bvixValueInUsd"`
	EVIXValueInUSD  decimal.Decimal `json:"evixValueInUsd"`
	BVIXVaultUSDC   decimal.Decimal `json:"bvixVaultUsdc"`
	EVIXVaultUSDC   decimal.Decimal `json:"evixVaultUsdc"`
	BVIXVaultCR     decimal.Decimal `json:"bvixVaultCR"`
	EVIXVaultCR     decimal.Decimal `json:"evixVaultCR"`
}

// Stats computes wallet balances (adjusted by net recorded mock transfers)
// and per-token vault state for an address
func (s *Service) Stats(ctx context.Context, address string) (*Stats, error) {
	base, err := s.reader.WalletBalance(ctx, address)
	if err != nil {
		s.log.Warnw("Wallet balance read failed, reporting zero", "address", address, "error", err)
		base = decimal.Zero
	}

	net, err := s.transfers.NetFor(ctx, address)
	if err != nil {
		s.log.Warnw("Mock transfer lookup failed, ignoring adjustment", "address", address, "error", err)
		net = decimal.Zero
	}
	usdc := base.Add(net)

	positions, err := s.Positions(ctx, address)
	if err != nil {
		return nil, err
	}

	bvixBal, err := s.reader.TokenBalance(ctx, vault.TokenBVIX, address)
	if err != nil {
		bvixBal = decimal.Zero
	}
	evixBal, err := s.reader.TokenBalance(ctx, vault.TokenEVIX, address)
	if err != nil {
		evixBal = decimal.Zero
	}

	bvixPrice := positions.Prices[string(vault.TokenBVIX)]
	evixPrice := positions.Prices[string(vault.TokenEVIX)]

	// Aggregate CR across both vaults
	totalCollateral := positions.BVIX.Collateral.Add(positions.EVIX.Collateral)
	totalDebtValue := positions.BVIX.Debt.Mul(bvixPrice).Add(positions.EVIX.Debt.Mul(evixPrice))
	aggregateCR := decimal.Zero
	if totalDebtValue.IsPositive() {
		aggregateCR = totalCollateral.Div(totalDebtValue).Mul(decimal.NewFromInt(100))
	}

	return &Stats{
		USDC:           usdc,
		BVIX:           bvixBal,
		EVIX:           evixBal,
		CR:             aggregateCR,
		Price:          bvixPrice,
		EVIXPrice:      evixPrice,
		USDCValue:      usdc,
		BVIXValueInUSD: bvixBal.Mul(bvixPrice),
		EVIXValueInUSD: evixBal.Mul(evixPrice),
		BVIXVaultUSDC:  positions.BVIX.Collateral,
		EVIXVaultUSDC:  positions.EVIX.Collateral,
		BVIXVaultCR:    positions.BVIX.CR,
		EVIXVaultCR:    positions.EVIX.CR,
	}, nil
}
