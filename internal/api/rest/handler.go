package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"levitas/internal/domain/liquidation"
	"levitas/internal/domain/vault"
	"levitas/internal/services/eligibility"
	liquidationsvc "levitas/internal/services/liquidation"
	vaultsvc "levitas/internal/services/vault"
	"levitas/pkg/errors"
	"levitas/pkg/logger"
)

// HistoryService is the history surface the API needs
type HistoryService interface {
	Sync(ctx context.Context, address string) ([]liquidation.HistoryEntry, error)
	Reset(ctx context.Context, address string) error
}

// Handler serves the liquidation API
type Handler struct {
	eligibility *eligibility.Service
	liquidation *liquidationsvc.Service
	vaults      *vaultsvc.Service
	history     HistoryService
	ledger      liquidation.Ledger
	transfers   liquidation.TransferLedger
	log         *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(
	eligibilitySvc *eligibility.Service,
	liquidationSvc *liquidationsvc.Service,
	vaultSvc *vaultsvc.Service,
	historySvc HistoryService,
	ledger liquidation.Ledger,
	transfers liquidation.TransferLedger,
) *Handler {
	return &Handler{
		eligibility: eligibilitySvc,
		liquidation: liquidationSvc,
		vaults:      vaultSvc,
		history:     historySvc,
		ledger:      ledger,
		transfers:   transfers,
		log:         logger.Get().With("component", "api"),
	}
}

// HandleVaultStats returns wallet and vault aggregates for an address
func (h *Handler) HandleVaultStats(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")

	stats, err := h.vaults.Stats(r.Context(), address)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// HandleLiquidatablePositions returns liquidatable candidates per token
func (h *Handler) HandleLiquidatablePositions(w http.ResponseWriter, r *http.Request) {
	result, err := h.eligibility.Scan(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleUserPositions returns reconciled per-token positions for an address
func (h *Handler) HandleUserPositions(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	positions, err := h.vaults.Positions(r.Context(), address)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, positions)
}

// HandleLiquidateVault records an externally executed liquidation
func (h *Handler) HandleLiquidateVault(w http.ResponseWriter, r *http.Request) {
	var req liquidationsvc.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, errors.Wrap(errors.ErrInvalidInput, "malformed request body"))
		return
	}

	rec, err := h.liquidation.Record(r.Context(), req)
	if err != nil {
		var verr *errors.ValidationError
		if errors.As(err, &verr) {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"liquidation": rec,
	})
}

// liquidateRequest triggers the full simulated liquidation flow
type liquidateRequest struct {
	TokenType  string `json:"tokenType"`
	Owner      string `json:"owner"`
	Liquidator string `json:"liquidator"`
}

// HandleLiquidate runs the full simulated liquidation flow for a vault
func (h *Handler) HandleLiquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, errors.Wrap(errors.ErrInvalidInput, "malformed request body"))
		return
	}
	if req.TokenType == "" || req.Owner == "" {
		h.writeError(w, http.StatusBadRequest, errors.Wrap(errors.ErrInvalidInput, "tokenType and owner are required"))
		return
	}

	token, err := vault.ParseToken(req.TokenType)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := h.liquidation.Liquidate(r.Context(), token, req.Owner, req.Liquidator)
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrVaultNotLiquidatable),
			errors.Is(err, errors.ErrNothingToLiquidate):
			h.writeError(w, http.StatusUnprocessableEntity, err)
		case errors.Is(err, errors.ErrLiquidationInProgress):
			h.writeError(w, http.StatusConflict, err)
		default:
			h.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"liquidation": rec,
	})
}

// HandleLiquidations dumps the full ledger
func (h *Handler) HandleLiquidations(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledger.ListAll(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"liquidations": records,
	})
}

// HandleVaultLiquidated reports whether a single vault has been liquidated
func (h *Handler) HandleVaultLiquidated(w http.ResponseWriter, r *http.Request) {
	token, err := vault.ParseToken(chi.URLParam(r, "tokenType"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	owner := chi.URLParam(r, "owner")

	rec, err := h.ledger.Get(r.Context(), token, owner)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"isLiquidated": rec != nil,
		"liquidation":  rec,
	})
}

// HandleClearLiquidations resets the ledger and the mock transfer ledger.
// Administrative endpoint used for testing.
func (h *Handler) HandleClearLiquidations(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.ClearAll(r.Context()); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := h.transfers.ClearAll(r.Context()); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.log.Infow("Liquidation ledger cleared")
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "all liquidations cleared",
	})
}

// HandleHistory syncs and returns an address's liquidation history
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	entries, err := h.history.Sync(r.Context(), address)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": entries,
	})
}

// HandleHistoryReset clears an address's stored liquidation history
func (h *Handler) HandleHistoryReset(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	if err := h.history.Reset(r.Context(), address); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Errorw("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.log.Errorw("Request failed", "status", status, "error", err)
	} else {
		h.log.Debugw("Request rejected", "status", status, "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
