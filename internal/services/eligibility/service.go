package eligibility

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"levitas/internal/adapters/config"
	"levitas/internal/domain/liquidation"
	"levitas/internal/domain/vault"
	"levitas/pkg/logger"
)

// Service evaluates vault liquidation eligibility. Pure function of the
// inputs plus a ledger lookup; no side effects.
type Service struct {
	ledger liquidation.Ledger
	reader vault.PositionReader
	prices vault.PriceSource
	cfg    config.LiquidationConfig
	chain  config.ChainConfig
	log    *logger.Logger
}

// NewService creates a new eligibility evaluator
func NewService(
	ledger liquidation.Ledger,
	reader vault.PositionReader,
	prices vault.PriceSource,
	cfg config.LiquidationConfig,
	chain config.ChainConfig,
) *Service {
	return &Service{
		ledger: ledger,
		reader: reader,
		prices: prices,
		cfg:    cfg,
		chain:  chain,
		log:    logger.Get().With("component", "eligibility"),
	}
}

// Evaluate classifies a vault from its collateral, debt and oracle price.
// The threshold check allows an epsilon above the configured 120% to absorb
// floating-point rounding from upstream decimal conversions; this is a
// deliberate tolerance, configured in one place, not a bug.
//
// A vault already present in the liquidation ledger can never liquidate,
// regardless of its raw ratio: resolved vaults must not reappear as
// opportunities.
func (s *Service) Evaluate(ctx context.Context, token vault.TokenType, owner string, collateral, debt, price decimal.Decimal) (liquidation.Evaluation, error) {
	cr := vault.CollateralRatio(collateral, debt, price)

	eval := liquidation.Evaluation{
		CurrentCR: cr,
		Tier:      s.Tier(cr),
	}

	// Zero debt: CR is undefined (reported as 0) and never liquidatable
	if !debt.IsPositive() {
		eval.Tier = liquidation.TierLowRisk
		return eval, nil
	}

	liquidated, err := s.ledger.IsLiquidated(ctx, token, owner)
	if err != nil {
		return liquidation.Evaluation{}, err
	}
	if liquidated {
		return eval, nil
	}

	eval.CanLiquidate = cr.LessThanOrEqual(s.cfg.EffectiveThreshold())
	eval.IsAtRisk = !eval.CanLiquidate && cr.LessThan(s.cfg.WarningDec())
	return eval, nil
}

// Tier classifies a collateral ratio into a display badge tier. Tiers never
// gate liquidation.
func (s *Service) Tier(cr decimal.Decimal) liquidation.RiskTier {
	switch {
	case cr.LessThan(decimal.NewFromInt(110)):
		return liquidation.TierCritical
	case cr.LessThan(s.cfg.ThresholdDec()):
		return liquidation.TierLiquidatable
	case cr.LessThan(decimal.NewFromInt(130)):
		return liquidation.TierHighRisk
	case cr.LessThan(decimal.NewFromInt(150)):
		return liquidation.TierMediumRisk
	default:
		return liquidation.TierLowRisk
	}
}

// ScanResult groups liquidatable candidates per token
type ScanResult struct {
	BVIX []liquidation.Candidate `json:"bvix"`
	EVIX []liquidation.Candidate `json:"evix"`
}

// Scan evaluates every vault and returns the liquidatable candidates per
// token. A failed lookup for one vault removes that vault from the results
// (fail-safe exclusion) without aborting the rest of the scan.
func (s *Service) Scan(ctx context.Context) (*ScanResult, error) {
	result := &ScanResult{
		BVIX: []liquidation.Candidate{},
		EVIX: []liquidation.Candidate{},
	}

	for _, token := range vault.Tokens {
		candidates, err := s.scanToken(ctx, token)
		if err != nil {
			// Degrade to an empty candidate list for the token rather than
			// failing the whole scan
			s.log.Warnw("Token scan degraded to empty result", "token", token, "error", err)
			continue
		}
		switch token {
		case vault.TokenBVIX:
			result.BVIX = candidates
		case vault.TokenEVIX:
			result.EVIX = candidates
		}
	}
	return result, nil
}

func (s *Service) scanToken(ctx context.Context, token vault.TokenType) ([]liquidation.Candidate, error) {
	price, err := s.prices.Price(ctx, token)
	if err != nil {
		return nil, err
	}

	owners, err := s.reader.Owners(ctx, token)
	if err != nil {
		return nil, err
	}

	candidates := []liquidation.Candidate{}
	for _, owner := range owners {
		cand, ok := s.evaluateCandidate(ctx, token, owner, price)
		if !ok {
			continue
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// evaluateCandidate builds a candidate for one vault; returns ok=false for
// vaults that are healthy, already liquidated, empty, or failed to evaluate
func (s *Service) evaluateCandidate(ctx context.Context, token vault.TokenType, owner string, price decimal.Decimal) (liquidation.Candidate, bool) {
	pos, err := s.reader.Position(ctx, token, owner)
	if err != nil {
		s.log.Warnw("Excluding vault after failed position read", "token", token, "owner", owner, "error", err)
		return liquidation.Candidate{}, false
	}

	if !pos.Debt.IsPositive() {
		return liquidation.Candidate{}, false
	}

	eval, err := s.Evaluate(ctx, token, owner, pos.Collateral, pos.Debt, price)
	if err != nil {
		s.log.Warnw("Excluding vault after failed evaluation", "token", token, "owner", owner, "error", err)
		return liquidation.Candidate{}, false
	}
	if !eval.CanLiquidate {
		return liquidation.Candidate{}, false
	}

	debtValue := pos.Debt.Mul(price)
	return liquidation.Candidate{
		VaultID:          fmt.Sprintf("%s-%s", token, owner),
		Owner:            owner,
		Collateral:       pos.Collateral,
		Debt:             pos.Debt,
		CurrentCR:        eval.CurrentCR,
		LiquidationPrice: liquidationPrice(pos.Collateral, pos.Debt, s.cfg.ThresholdDec()),
		MaxBonus:         debtValue.Mul(s.cfg.BonusRateDec()),
		CanLiquidate:     true,
		TokenType:        token,
		ContractAddress:  s.chain.MintRedeemAddress(string(token)),
	}, true
}

// liquidationPrice is the oracle price at which the vault's CR reaches the
// liquidation threshold: collateral * 100 / (debt * threshold)
func liquidationPrice(collateral, debt, threshold decimal.Decimal) decimal.Decimal {
	denom := debt.Mul(threshold)
	if denom.IsZero() {
		return decimal.Zero
	}
	return collateral.Mul(decimal.NewFromInt(100)).Div(denom)
}
