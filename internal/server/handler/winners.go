package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
	"github.com/phetrusrodrigues1997/predictionpot/internal/service"
)

// WinnerService defines the methods the winner handler requires from the
// service layer.
type WinnerService interface {
	Resolve(ctx context.Context, mt domain.MarketType, opts service.ResolveOpts) ([]string, error)
	Announce(ctx context.Context, mt domain.MarketType) ([]string, error)
}

// WinnerHandler serves the winner resolution endpoint.
type WinnerHandler struct {
	winners WinnerService
	logger  *slog.Logger
}

// NewWinnerHandler creates a WinnerHandler.
func NewWinnerHandler(winners WinnerService, logger *slog.Logger) *WinnerHandler {
	return &WinnerHandler{
		winners: winners,
		logger:  logger,
	}
}

// resolveWinnersRequest is the JSON body for winner resolution. When
// LiveParticipants is present it is used instead of an on-chain fetch.
type resolveWinnersRequest struct {
	LiveParticipants []string `json:"live_participants"`
	AllowEmpty       bool     `json:"allow_empty_participants"`
	Announce         bool     `json:"announce"`
}

// Resolve computes the winner set for a market after final-day settlement.
// POST /api/markets/{type}/winners
func (h *WinnerHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	mt := domain.NormalizeMarketType(pathParam(r, "type"))

	var req resolveWinnersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var (
		winners []string
		err     error
	)
	if req.Announce {
		winners, err = h.winners.Announce(r.Context(), mt)
	} else {
		winners, err = h.winners.Resolve(r.Context(), mt, service.ResolveOpts{
			Live:       req.LiveParticipants,
			AllowEmpty: req.AllowEmpty,
		})
	}
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidMarketType):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrNoLiveParticipants):
			writeError(w, http.StatusConflict, "no live on-chain participants; refusing to resolve winners")
		default:
			h.logger.ErrorContext(r.Context(), "handler: resolve winners failed",
				slog.String("market_type", string(mt)),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to resolve winners")
		}
		return
	}

	if winners == nil {
		winners = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_type": string(mt),
		"winners":     winners,
		"count":       len(winners),
	})
}
