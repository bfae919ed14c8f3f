package liquidation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"levitas/internal/domain/vault"
)

// ContractState snapshots the raw external ledger values for a vault at the
// moment of liquidation. Required later to isolate fresh post-liquidation
// activity from the liquidated position.
type ContractState struct {
	Collateral decimal.Decimal `json:"collateral"`
	Debt       decimal.Decimal `json:"debt"`
}

// Record is the ledger entry for a completed liquidation. One per vault key,
// last-write-wins: re-liquidation of the same key overwrites, never merges.
type Record struct {
	TokenType        vault.TokenType `json:"tokenType"`
	Owner            string          `json:"owner"`
	Liquidator       string          `json:"liquidator"`
	DebtRepaid       decimal.Decimal `json:"debtRepaid"`
	CollateralSeized decimal.Decimal `json:"collateralSeized"`
	Bonus            decimal.Decimal `json:"bonus"`
	OwnerRefund      decimal.Decimal `json:"ownerRefund"`
	Timestamp        time.Time       `json:"timestamp"`
	TxHash           string          `json:"txHash"`

	// ContractState is nil only for malformed legacy records; readers must
	// treat a liquidated vault without a snapshot as closed.
	ContractState *ContractState `json:"contractStateAtLiquidation,omitempty"`
}

// Key returns the canonical ledger key for the record
func (r *Record) Key() string {
	return vault.Key(r.TokenType, r.Owner)
}

// Payout is the computed liquidation split for a vault
type Payout struct {
	DebtValue         decimal.Decimal `json:"debtValue"`
	Bonus             decimal.Decimal `json:"bonus"`
	LiquidatorPayment decimal.Decimal `json:"liquidatorPayment"`
	OwnerRefund       decimal.Decimal `json:"ownerRefund"`

	// Shortfall is the portion of the liquidator payment not covered by
	// collateral when the refund floors at zero. Informational only: the
	// liquidation proceeds and the shortfall is absorbed (open product
	// question who bears it).
	Shortfall decimal.Decimal `json:"shortfall"`
}

// RiskTier classifies a vault's collateral ratio for display purposes.
// Tiers never gate liquidation; only the threshold check does.
type RiskTier string

const (
	TierCritical     RiskTier = "critical"     // CR < 110
	TierLiquidatable RiskTier = "liquidatable" // CR < 120
	TierHighRisk     RiskTier = "high"         // CR < 130
	TierMediumRisk   RiskTier = "medium"       // CR < 150
	TierLowRisk      RiskTier = "low"
)

// Evaluation is the eligibility result for a single vault
type Evaluation struct {
	CurrentCR    decimal.Decimal `json:"currentCR"`
	IsAtRisk     bool            `json:"isAtRisk"`
	CanLiquidate bool            `json:"canLiquidate"`
	Tier         RiskTier        `json:"tier"`
}

// Candidate is a liquidatable vault surfaced to API consumers
type Candidate struct {
	VaultID          string          `json:"vaultId"`
	Owner            string          `json:"owner"`
	Collateral       decimal.Decimal `json:"collateral"`
	Debt             decimal.Decimal `json:"debt"`
	CurrentCR        decimal.Decimal `json:"currentCR"`
	LiquidationPrice decimal.Decimal `json:"liquidationPrice"`
	MaxBonus         decimal.Decimal `json:"maxBonus"`
	CanLiquidate     bool            `json:"canLiquidate"`
	TokenType        vault.TokenType `json:"tokenType"`
	ContractAddress  string          `json:"contractAddress"`
}

// HistoryEntry is one party's view of a liquidation event. The same ledger
// record yields a liquidator-view entry and an owner-view entry.
type HistoryEntry struct {
	IsLiquidator bool            `json:"isLiquidator"`
	Vault        vault.TokenType `json:"vault"`
	Owner        string          `json:"owner"`
	Liquidator   string          `json:"liquidator"`
	DebtRepaid   decimal.Decimal `json:"debtRepaid"`
	TxHash       string          `json:"txHash"`
	Timestamp    time.Time       `json:"timestamp"`

	// Liquidator view
	Bonus            decimal.Decimal `json:"bonus,omitempty"`
	CollateralSeized decimal.Decimal `json:"collateralSeized,omitempty"`

	// Owner view
	CollateralLost     decimal.Decimal `json:"collateralLost,omitempty"`
	CollateralReturned decimal.Decimal `json:"collateralReturned,omitempty"`
}

// DedupKey identifies the underlying event from either party's perspective.
// Entries matching (timestamp, liquidator, isLiquidator) are the same event
// and must not be duplicated on re-sync.
func (e HistoryEntry) DedupKey() string {
	return fmt.Sprintf("%d|%s|%t", e.Timestamp.UnixMilli(), e.Liquidator, e.IsLiquidator)
}

// Transfer is a mock USDC movement recorded alongside simulated
// liquidations. Net transfers adjust the wallet balance reported by
// vault-stats.
type Transfer struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	Timestamp time.Time       `json:"timestamp"`
}
