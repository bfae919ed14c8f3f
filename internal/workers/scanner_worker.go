package workers

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"levitas/internal/domain/liquidation"
	"levitas/internal/events"
	"levitas/internal/metrics"
	"levitas/internal/services/eligibility"
	"levitas/pkg/logger"
)

// ScannerWorker periodically scans all vaults for liquidation eligibility,
// updates gauges and emits risk alert events for newly liquidatable vaults.
type ScannerWorker struct {
	eligibility *eligibility.Service
	publisher   events.Publisher
	interval    time.Duration
	log         *logger.Logger

	// Vault keys alerted on the previous pass; alerts fire only on the
	// transition into liquidatable state.
	alerted map[string]bool
}

// NewScannerWorker creates a new eligibility scanner worker
func NewScannerWorker(
	eligibilitySvc *eligibility.Service,
	publisher events.Publisher,
	interval time.Duration,
) *ScannerWorker {
	return &ScannerWorker{
		eligibility: eligibilitySvc,
		publisher:   publisher,
		interval:    interval,
		alerted:     make(map[string]bool),
		log:         logger.Get().With("component", "scanner_worker"),
	}
}

// Run starts the scan loop. Blocks until the context is cancelled.
func (w *ScannerWorker) Run(ctx context.Context) error {
	w.log.Infow("Scanner worker started", "interval", w.interval)

	// First pass immediately so gauges are populated before the first tick
	if err := w.scan(ctx); err != nil {
		w.log.Errorw("Initial scan failed", "error", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.scan(ctx); err != nil {
				w.log.Errorw("Scan failed", "error", err)
				// Continue running despite errors
			}

		case <-ctx.Done():
			w.log.Info("Scanner worker stopped")
			return ctx.Err()
		}
	}
}

func (w *ScannerWorker) scan(ctx context.Context) error {
	start := time.Now()

	result, err := w.eligibility.Scan(ctx)
	elapsed := time.Since(start)
	metrics.ScanDuration.Observe(elapsed.Seconds())

	if err != nil {
		metrics.ScansTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.ScansTotal.WithLabelValues("success").Inc()

	metrics.LiquidatableVaults.WithLabelValues("bvix").Set(float64(len(result.BVIX)))
	metrics.LiquidatableVaults.WithLabelValues("evix").Set(float64(len(result.EVIX)))

	candidates := make([]liquidation.Candidate, 0, len(result.BVIX)+len(result.EVIX))
	candidates = append(candidates, result.BVIX...)
	candidates = append(candidates, result.EVIX...)

	current := make(map[string]bool, len(candidates))
	for _, cand := range candidates {
		current[cand.VaultID] = true
		if !w.alerted[cand.VaultID] {
			w.alert(ctx, cand)
		}
	}
	w.alerted = current

	if len(current) > 0 {
		w.log.Infow("Scan completed",
			"bvix", len(result.BVIX),
			"evix", len(result.EVIX),
			"elapsed", elapsed,
		)
	} else {
		w.log.Debugw("Scan completed, no liquidatable vaults", "elapsed", elapsed)
	}
	return nil
}

func (w *ScannerWorker) alert(ctx context.Context, cand liquidation.Candidate) {
	w.log.Warnw("Vault became liquidatable",
		"vault", cand.VaultID,
		"cr", cand.CurrentCR.StringFixed(2),
		"maxBonus", humanize.CommafWithDigits(cand.MaxBonus.InexactFloat64(), 2),
	)

	if err := w.publisher.RiskAlert(ctx, cand); err != nil {
		w.log.Errorw("Failed to publish risk alert", "vault", cand.VaultID, "error", err)
	}
}
