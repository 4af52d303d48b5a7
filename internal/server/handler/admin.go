package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
	"github.com/phetrusrodrigues1997/predictionpot/internal/service"
)

// AdminService defines the destructive reset methods the admin handler
// requires from the service layer.
type AdminService interface {
	ResetMarket(ctx context.Context, mt domain.MarketType) (service.MarketResetResult, error)
	ResetContract(ctx context.Context, contract string) (service.ContractResetResult, error)
}

// AdminHandler serves the administrative reset endpoints.
type AdminHandler struct {
	admin  AdminService
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(admin AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:  admin,
		logger: logger,
	}
}

// ResetMarket wipes the prediction and penalty rows of one market partition.
// POST /api/admin/reset/market/{type}
func (h *AdminHandler) ResetMarket(w http.ResponseWriter, r *http.Request) {
	mt := domain.NormalizeMarketType(pathParam(r, "type"))

	result, err := h.admin.ResetMarket(r.Context(), mt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidMarketType) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: market reset failed",
			slog.String("market_type", string(mt)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to reset market")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ResetContract wipes a contract's participation ledger and pot state.
// POST /api/admin/reset/contract/{contract}
func (h *AdminHandler) ResetContract(w http.ResponseWriter, r *http.Request) {
	contract := pathParam(r, "contract")
	if contract == "" {
		writeError(w, http.StatusBadRequest, "missing contract address")
		return
	}

	result, err := h.admin.ResetContract(r.Context(), contract)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: contract reset failed",
			slog.String("contract", contract),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to reset contract")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
