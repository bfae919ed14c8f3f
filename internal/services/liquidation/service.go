package liquidation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"levitas/internal/adapters/config"
	"levitas/internal/domain/liquidation"
	"levitas/internal/domain/vault"
	"levitas/internal/events"
	"levitas/internal/metrics"
	"levitas/pkg/errors"
	"levitas/pkg/logger"
)

// lockTTL bounds how long a crashed liquidation can hold the distributed lock
const lockTTL = 30 * time.Second

// Locker is a best-effort distributed lock (satisfied by the redis adapter).
// Optional: when nil, only the in-process lock applies.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// HistorySyncer reconciles per-address history after a liquidation
type HistorySyncer interface {
	Sync(ctx context.Context, address string) ([]liquidation.HistoryEntry, error)
}

// Eligibility checks whether a vault may be liquidated
type Eligibility interface {
	Evaluate(ctx context.Context, token vault.TokenType, owner string, collateral, debt, price decimal.Decimal) (liquidation.Evaluation, error)
}

// Service orchestrates liquidations. Within a single liquidation the order
// is strict: read position and price, compute payout, execute the external
// burn/transfer, record into the ledger, sync history. The ledger is never
// written for a failed transfer.
type Service struct {
	ledger      liquidation.Ledger
	transfers   liquidation.TransferLedger
	archive     liquidation.Archive // optional
	publisher   events.Publisher
	history     HistorySyncer
	eligibility Eligibility
	reader      vault.PositionReader
	prices      vault.PriceSource
	engine      vault.TokenEngine
	locker      Locker // optional
	cfg         config.LiquidationConfig
	log         *logger.Logger

	// Per-vault serialization of liquidation attempts. The original design
	// left racing liquidators unarbitrated; this closes that gap for a
	// single process, with the optional distributed lock extending it
	// best-effort across processes.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a new liquidation service
func NewService(
	ledger liquidation.Ledger,
	transfers liquidation.TransferLedger,
	archive liquidation.Archive,
	publisher events.Publisher,
	history HistorySyncer,
	eligibility Eligibility,
	reader vault.PositionReader,
	prices vault.PriceSource,
	engine vault.TokenEngine,
	locker Locker,
	cfg config.LiquidationConfig,
) *Service {
	return &Service{
		ledger:      ledger,
		transfers:   transfers,
		archive:     archive,
		publisher:   publisher,
		history:     history,
		eligibility: eligibility,
		reader:      reader,
		prices:      prices,
		engine:      engine,
		locker:      locker,
		cfg:         cfg,
		log:         logger.Get().With("component", "liquidation"),
		locks:       make(map[string]*sync.Mutex),
	}
}

func (s *Service) vaultLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.locks[key]; ok {
		return m
	}
	m := &sync.Mutex{}
	s.locks[key] = m
	return m
}

// Liquidate runs the full simulated liquidation flow for a vault
func (s *Service) Liquidate(ctx context.Context, token vault.TokenType, owner, liquidator string) (*liquidation.Record, error) {
	key := vault.Key(token, owner)

	lock := s.vaultLock(key)
	lock.Lock()
	defer lock.Unlock()

	if s.locker != nil {
		acquired, err := s.locker.AcquireLock(ctx, key, lockTTL)
		if err != nil {
			// The distributed lock is best-effort; proceed under the
			// in-process lock alone
			s.log.Warnw("Distributed lock unavailable", "vault", key, "error", err)
		} else if !acquired {
			return nil, errors.Wrapf(errors.ErrLiquidationInProgress, "vault %s", key)
		} else {
			defer func() {
				if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), key); err != nil {
					s.log.Warnw("Failed to release liquidation lock", "vault", key, "error", err)
				}
			}()
		}
	}

	// Step 1: read position and price
	pos, err := s.reader.Position(ctx, token, owner)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrPositionUnavailable, "vault %s: %v", key, err)
	}
	price, err := s.prices.Price(ctx, token)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrPriceUnavailable, "token %s: %v", token, err)
	}

	eval, err := s.eligibility.Evaluate(ctx, token, owner, pos.Collateral, pos.Debt, price)
	if err != nil {
		return nil, errors.Wrap(err, "eligibility check failed")
	}
	if !eval.CanLiquidate {
		return nil, errors.Wrapf(errors.ErrVaultNotLiquidatable, "vault %s at CR %s", key, eval.CurrentCR.StringFixed(2))
	}

	// Step 2: compute payout
	payout, err := ComputePayout(pos.Debt, price, pos.Collateral, s.cfg.BonusRateDec())
	if err != nil {
		return nil, err
	}
	if payout.Shortfall.IsPositive() {
		s.log.Warnw("Collateral shortfall absorbed on liquidation",
			"vault", key,
			"shortfall_usd", humanize.CommafWithDigits(payout.Shortfall.InexactFloat64(), 2),
		)
	}

	// Collateral actually seized cannot exceed what the vault holds
	seized := decimal.Min(payout.LiquidatorPayment, pos.Collateral)

	// Step 3: external burn/transfer
	txHash, err := s.engine.BurnAndSeize(ctx, token, owner, liquidator, pos.Debt, seized, payout.OwnerRefund)
	if err != nil {
		return nil, errors.Wrap(err, "token transfer failed, ledger untouched")
	}

	rec := &liquidation.Record{
		TokenType:        token,
		Owner:            owner,
		Liquidator:       liquidator,
		DebtRepaid:       pos.Debt,
		CollateralSeized: seized,
		Bonus:            payout.Bonus,
		OwnerRefund:      payout.OwnerRefund,
		Timestamp:        time.Now().UTC(),
		TxHash:           txHash,
		ContractState: &liquidation.ContractState{
			Collateral: pos.Collateral,
			Debt:       pos.Debt,
		},
	}

	// Step 4: record; the transfer is already irreversible at this point.
	// No mock transfers here: the engine settled the wallets itself, and
	// compensating entries would double-count the movement in wallet stats.
	if err := s.recordWithRetry(ctx, rec); err != nil {
		return nil, err
	}

	s.finish(ctx, rec)
	return rec, nil
}

// SubmitRequest is an externally executed liquidation submitted for
// bookkeeping (the client already ran the on-chain operations)
type SubmitRequest struct {
	TokenType        string                     `json:"tokenType"`
	Owner            string                     `json:"owner"`
	Liquidator       string                     `json:"liquidator"`
	DebtRepaid       decimal.Decimal            `json:"debtRepaid"`
	CollateralSeized decimal.Decimal            `json:"collateralSeized"`
	Bonus            decimal.Decimal            `json:"bonus"`
	OwnerRefund      decimal.Decimal            `json:"remainingCollateral"`
	TotalCollateral  decimal.Decimal            `json:"totalCollateral"`
	TxHash           string                     `json:"txHash"`
	MockTransfers    []liquidation.Transfer     `json:"mockTransfers"`
	ContractState    *liquidation.ContractState `json:"contractStateAtLiquidation"`
}

// Record stores an externally executed liquidation into the ledger.
// Generates a synthetic txHash when the caller did not supply one, snapshots
// the current raw position when no contract state was provided, and records
// any accompanying mock transfers.
func (s *Service) Record(ctx context.Context, req SubmitRequest) (*liquidation.Record, error) {
	if strings.TrimSpace(req.TokenType) == "" {
		return nil, errors.NewValidationError("tokenType", "required", req.TokenType)
	}
	if strings.TrimSpace(req.Owner) == "" {
		return nil, errors.NewValidationError("owner", "required", req.Owner)
	}
	token, err := vault.ParseToken(req.TokenType)
	if err != nil {
		return nil, errors.NewValidationError("tokenType", "unknown token", req.TokenType)
	}

	txHash := req.TxHash
	if txHash == "" {
		txHash = "0x" + strings.ReplaceAll(uuid.New().String()+uuid.New().String(), "-", "")
	}

	snapshot := req.ContractState
	if snapshot == nil {
		// Defensive: snapshot the live position so fresh-vault reconciliation
		// still works for this record
		if pos, perr := s.reader.Position(ctx, token, req.Owner); perr == nil {
			snapshot = &liquidation.ContractState{Collateral: pos.Collateral, Debt: pos.Debt}
		} else {
			s.log.Warnw("Recording liquidation without contract state snapshot",
				"token", token, "owner", req.Owner, "error", perr)
		}
	}

	rec := &liquidation.Record{
		TokenType:        token,
		Owner:            req.Owner,
		Liquidator:       req.Liquidator,
		DebtRepaid:       req.DebtRepaid,
		CollateralSeized: req.CollateralSeized,
		Bonus:            req.Bonus,
		OwnerRefund:      req.OwnerRefund,
		Timestamp:        time.Now().UTC(),
		TxHash:           txHash,
		ContractState:    snapshot,
	}

	if err := s.recordWithRetry(ctx, rec); err != nil {
		return nil, err
	}

	s.recordTransfers(ctx, req.MockTransfers)
	s.finish(ctx, rec)
	return rec, nil
}

// recordWithRetry writes the ledger entry, retrying once. A failure here
// after a successful transfer is the known transfer/record consistency gap:
// it gets a distinct log line so operators can reconcile manually.
func (s *Service) recordWithRetry(ctx context.Context, rec *liquidation.Record) error {
	err := s.ledger.Record(ctx, rec)
	if err == nil {
		return nil
	}

	s.log.Errorw("Transfer executed but ledger record failed, retrying once",
		"vault", rec.Key(), "tx_hash", rec.TxHash, "error", err)

	if err = s.ledger.Record(ctx, rec); err != nil {
		s.log.Errorw("Transfer executed but ledger record failed permanently, manual reconciliation required",
			"vault", rec.Key(), "tx_hash", rec.TxHash, "error", err)
		return errors.Wrap(err, "failed to record liquidation")
	}
	return nil
}

func (s *Service) recordTransfers(ctx context.Context, transfers []liquidation.Transfer) {
	for i := range transfers {
		tr := transfers[i]
		if tr.Timestamp.IsZero() {
			tr.Timestamp = time.Now().UTC()
		}
		if err := s.transfers.Record(ctx, &tr); err != nil {
			s.log.Warnw("Failed to record mock transfer", "from", tr.From, "to", tr.To, "error", err)
		}
	}
}

// finish handles the best-effort tail of a recorded liquidation: archive,
// event feed, history sync for both parties, metrics
func (s *Service) finish(ctx context.Context, rec *liquidation.Record) {
	if s.archive != nil {
		if err := s.archive.Insert(ctx, rec); err != nil {
			s.log.Warnw("Failed to archive liquidation event", "vault", rec.Key(), "error", err)
		}
	}

	if err := s.publisher.LiquidationRecorded(ctx, rec); err != nil {
		s.log.Warnw("Failed to publish liquidation event", "vault", rec.Key(), "error", err)
	}

	// Step 5: resync history for both parties
	for _, addr := range []string{rec.Liquidator, rec.Owner} {
		if addr == "" {
			continue
		}
		if _, err := s.history.Sync(ctx, addr); err != nil {
			s.log.Warnw("Failed to sync liquidation history", "address", addr, "error", err)
		}
	}

	metrics.LiquidationsRecorded.WithLabelValues(string(rec.TokenType)).Inc()

	s.log.Infow("Liquidation recorded",
		"vault", rec.Key(),
		"liquidator", rec.Liquidator,
		"debt_repaid", rec.DebtRepaid,
		"collateral_seized_usd", humanize.CommafWithDigits(rec.CollateralSeized.InexactFloat64(), 2),
		"owner_refund_usd", humanize.CommafWithDigits(rec.OwnerRefund.InexactFloat64(), 2),
		"tx_hash", rec.TxHash,
	)
}
