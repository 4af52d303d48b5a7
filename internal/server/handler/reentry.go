package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
	"github.com/phetrusrodrigues1997/predictionpot/internal/platform/onchain"
)

// ReEntryService defines the methods the re-entry handler requires from the
// service layer.
type ReEntryService interface {
	Reconcile(ctx context.Context, mt domain.MarketType, wallet string) (int64, error)
	Penalties(ctx context.Context, mt domain.MarketType, wallet string) ([]domain.Penalty, error)
}

// ReEntryHandler serves the re-entry reconciliation endpoints.
type ReEntryHandler struct {
	reentries ReEntryService
	logger    *slog.Logger
}

// NewReEntryHandler creates a ReEntryHandler.
func NewReEntryHandler(reentries ReEntryService, logger *slog.Logger) *ReEntryHandler {
	return &ReEntryHandler{
		reentries: reentries,
		logger:    logger,
	}
}

// reentryRequest is the JSON body for re-entry reconciliation.
type reentryRequest struct {
	MarketType string `json:"market_type"`
	Wallet     string `json:"wallet"`
}

// Reconcile clears a wallet's penalties and records the re-entry event.
// Called after the re-entry fee has been paid on-chain.
// POST /api/reentry
func (h *ReEntryHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req reentryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	wallet, err := onchain.NormalizeWallet(req.Wallet)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cleared, err := h.reentries.Reconcile(r.Context(), domain.NormalizeMarketType(req.MarketType), wallet)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidMarketType) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: re-entry reconcile failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to reconcile re-entry")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "reconciled",
		"wallet":            wallet,
		"penalties_cleared": cleared,
	})
}

// penaltyResponse is the wire form of a penalty row.
type penaltyResponse struct {
	Wallet              string `json:"wallet"`
	WrongPredictionDate string `json:"wrong_prediction_date"`
}

// ListPenalties returns the penalty rows a wallet currently holds, which a
// fee quote is computed from.
// GET /api/reentry/penalties?market_type=bitcoin&wallet=0x...
func (h *ReEntryHandler) ListPenalties(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	wallet, err := onchain.NormalizeWallet(q.Get("wallet"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.reentries.Penalties(r.Context(), domain.NormalizeMarketType(q.Get("market_type")), wallet)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidMarketType) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: list penalties failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list penalties")
		return
	}

	resp := make([]penaltyResponse, 0, len(rows))
	for _, p := range rows {
		resp = append(resp, penaltyResponse{
			Wallet:              p.Wallet,
			WrongPredictionDate: p.WrongPredictionDate.String(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"penalties": resp})
}
