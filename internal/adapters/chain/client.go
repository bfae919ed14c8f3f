package chain

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"levitas/internal/adapters/config"
	"levitas/internal/domain/vault"
	"levitas/pkg/errors"
	"levitas/pkg/logger"
)

// Compile-time checks
var (
	_ vault.PositionReader = (*Client)(nil)
	_ vault.PriceSource    = (*Client)(nil)
	_ vault.TokenEngine    = (*Client)(nil)
)

// Client simulates the external ledger (contract-equivalent): cumulative
// per-vault collateral/debt, wallet balances, oracle prices, and the
// burn/transfer leg of a liquidation. State is process-local and seedable.
//
// All reads and writes go through a shared rate limiter, matching how a real
// deployment would pace RPC calls to a node provider.
type Client struct {
	mu      sync.RWMutex
	limiter *rate.Limiter
	log     *logger.Logger

	positions map[string]vault.Position  // canonical vault key
	tokens    map[string]decimal.Decimal // token balance, canonical vault key
	wallets   map[string]decimal.Decimal // USDC balance, lowercase address
	prices    map[vault.TokenType]decimal.Decimal
}

// NewClient creates a simulated chain client with oracle prices from config
func NewClient(cfg config.ChainConfig) (*Client, error) {
	bvixPrice, err := decimal.NewFromString(cfg.BVIXInitialPrice)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid BVIX initial price %q", cfg.BVIXInitialPrice)
	}
	evixPrice, err := decimal.NewFromString(cfg.EVIXInitialPrice)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid EVIX initial price %q", cfg.EVIXInitialPrice)
	}

	return &Client{
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		log:       logger.Get().With("component", "chain_client"),
		positions: make(map[string]vault.Position),
		tokens:    make(map[string]decimal.Decimal),
		wallets:   make(map[string]decimal.Decimal),
		prices: map[vault.TokenType]decimal.Decimal{
			vault.TokenBVIX: bvixPrice,
			vault.TokenEVIX: evixPrice,
		},
	}, nil
}

// Position returns the raw cumulative collateral/debt for a vault.
// Unknown vaults read as empty positions, matching contract storage defaults.
func (c *Client) Position(ctx context.Context, token vault.TokenType, owner string) (vault.Position, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return vault.Position{}, errors.Wrap(errors.ErrRateLimitExceeded, err.Error())
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	pos, ok := c.positions[vault.Key(token, owner)]
	if !ok {
		return vault.Position{
			Token:      token,
			Owner:      owner,
			Collateral: decimal.Zero,
			Debt:       decimal.Zero,
		}, nil
	}
	return pos, nil
}

// Owners enumerates all addresses holding a vault for the token
func (c *Client) Owners(ctx context.Context, token vault.TokenType) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(errors.ErrRateLimitExceeded, err.Error())
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	prefix := string(token) + ":"
	owners := make([]string, 0)
	for key, pos := range c.positions {
		if strings.HasPrefix(key, prefix) {
			owners = append(owners, pos.Owner)
		}
	}
	return owners, nil
}

// TokenBalance returns the owner's index token wallet balance
func (c *Client) TokenBalance(ctx context.Context, token vault.TokenType, owner string) (decimal.Decimal, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Zero, errors.Wrap(errors.ErrRateLimitExceeded, err.Error())
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.tokens[vault.Key(token, owner)], nil
}

// WalletBalance returns the owner's base USDC wallet balance
func (c *Client) WalletBalance(ctx context.Context, owner string) (decimal.Decimal, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Zero, errors.Wrap(errors.ErrRateLimitExceeded, err.Error())
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.wallets[strings.ToLower(owner)], nil
}

// Price returns the current oracle price for a token
func (c *Client) Price(ctx context.Context, token vault.TokenType) (decimal.Decimal, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Zero, errors.Wrap(errors.ErrRateLimitExceeded, err.Error())
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	price, ok := c.prices[token]
	if !ok {
		return decimal.Zero, errors.Wrapf(errors.ErrPriceUnavailable, "token %s", token)
	}
	return price, nil
}

// BurnAndSeize executes the external leg of a liquidation: burns the repaid
// debt from the liquidator's token balance, moves payment of the vault's
// collateral to the liquidator and the refund back to the owner, and clears
// the vault. Runs to completion or fails outright; no partial rollback.
func (c *Client) BurnAndSeize(ctx context.Context, token vault.TokenType, owner, liquidator string, debtRepaid, payment, refund decimal.Decimal) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", errors.Wrap(errors.ErrRateLimitExceeded, err.Error())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := vault.Key(token, owner)
	pos, ok := c.positions[key]
	if !ok || pos.Debt.IsZero() {
		return "", errors.Wrapf(errors.ErrTransferFailed, "no open position for %s", key)
	}

	liqTokenKey := vault.Key(token, liquidator)
	if c.tokens[liqTokenKey].LessThan(debtRepaid) {
		return "", errors.Wrapf(errors.ErrTransferFailed,
			"liquidator %s holds %s %s, needs %s", liquidator, c.tokens[liqTokenKey], token, debtRepaid)
	}

	// Burn the liquidator's tokens, settle collateral, close the vault.
	c.tokens[liqTokenKey] = c.tokens[liqTokenKey].Sub(debtRepaid)
	liqAddr := strings.ToLower(liquidator)
	ownerAddr := strings.ToLower(owner)
	c.wallets[liqAddr] = c.wallets[liqAddr].Add(payment)
	if refund.IsPositive() {
		c.wallets[ownerAddr] = c.wallets[ownerAddr].Add(refund)
	}

	pos.Collateral = decimal.Zero
	pos.Debt = decimal.Zero
	c.positions[key] = pos

	txHash := syntheticTxHash()
	c.log.Infow("Executed burn and seize",
		"token", token,
		"owner", owner,
		"liquidator", liquidator,
		"debt_repaid", debtRepaid,
		"payment", payment,
		"refund", refund,
		"tx_hash", txHash,
	)
	return txHash, nil
}

// Seeding and simulation controls, used by local runs and tests.

// SeedVault sets the raw position for a vault
func (c *Client) SeedVault(token vault.TokenType, owner string, collateral, debt decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions[vault.Key(token, owner)] = vault.Position{
		Token:      token,
		Owner:      owner,
		Collateral: collateral,
		Debt:       debt,
	}
}

// SeedWallet sets an address's USDC balance
func (c *Client) SeedWallet(owner string, usdc decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wallets[strings.ToLower(owner)] = usdc
}

// SeedTokens sets an address's index token balance
func (c *Client) SeedTokens(token vault.TokenType, owner string, amount decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[vault.Key(token, owner)] = amount
}

// SetPrice overrides the oracle price for a token
func (c *Client) SetPrice(token vault.TokenType, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[token] = price
}

// syntheticTxHash builds a deterministic-format placeholder transaction hash
func syntheticTxHash() string {
	u := uuid.New()
	return "0x" + strings.ReplaceAll(u.String(), "-", "") + strings.ReplaceAll(uuid.New().String(), "-", "")
}
