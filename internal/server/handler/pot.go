package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/golang-sql/civil"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// PotService defines the methods the pot handler requires from the service
// layer.
type PotService interface {
	GetPot(ctx context.Context, contract string) (domain.PotInfo, error)
	UpsertPot(ctx context.Context, info domain.PotInfo) error
}

// PotHandler serves the pot lifecycle endpoints.
type PotHandler struct {
	pots   PotService
	logger *slog.Logger
}

// NewPotHandler creates a PotHandler.
func NewPotHandler(pots PotService, logger *slog.Logger) *PotHandler {
	return &PotHandler{
		pots:   pots,
		logger: logger,
	}
}

// potRequest is the JSON body for upserting pot lifecycle state.
type potRequest struct {
	Contract   string `json:"contract"`
	HasStarted bool   `json:"has_started"`
	IsFinalDay bool   `json:"is_final_day"`
	StartedOn  string `json:"started_on"` // YYYY-MM-DD
	LastDay    string `json:"last_day"`   // YYYY-MM-DD
}

// potResponse is the wire form of pot lifecycle state.
type potResponse struct {
	Contract         string  `json:"contract"`
	HasStarted       bool    `json:"has_started"`
	IsFinalDay       bool    `json:"is_final_day"`
	StartedOn        *string `json:"started_on,omitempty"`
	LastDay          *string `json:"last_day,omitempty"`
	AnnouncementSent bool    `json:"announcement_sent"`
}

func toPotResponse(info domain.PotInfo) potResponse {
	resp := potResponse{
		Contract:         info.Contract,
		HasStarted:       info.HasStarted,
		IsFinalDay:       info.IsFinalDay,
		AnnouncementSent: info.AnnouncementSent,
	}
	if info.StartedOn != nil {
		s := info.StartedOn.String()
		resp.StartedOn = &s
	}
	if info.LastDay != nil {
		s := info.LastDay.String()
		resp.LastDay = &s
	}
	return resp
}

// Get returns a contract's pot lifecycle state.
// GET /api/pots/{contract}
func (h *PotHandler) Get(w http.ResponseWriter, r *http.Request) {
	contract := pathParam(r, "contract")
	if contract == "" {
		writeError(w, http.StatusBadRequest, "missing contract address")
		return
	}

	info, err := h.pots.GetPot(r.Context(), contract)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "pot not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get pot failed",
			slog.String("contract", contract),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get pot")
		return
	}

	writeJSON(w, http.StatusOK, toPotResponse(info))
}

// Upsert writes pot lifecycle state for a contract.
// POST /api/pots
func (h *PotHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req potRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Contract == "" {
		writeError(w, http.StatusBadRequest, "contract is required")
		return
	}

	info := domain.PotInfo{
		Contract:   req.Contract,
		HasStarted: req.HasStarted,
		IsFinalDay: req.IsFinalDay,
	}
	if req.StartedOn != "" {
		d, err := civil.ParseDate(req.StartedOn)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid started_on: "+err.Error())
			return
		}
		info.StartedOn = &d
	}
	if req.LastDay != "" {
		d, err := civil.ParseDate(req.LastDay)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid last_day: "+err.Error())
			return
		}
		info.LastDay = &d
	}

	if err := h.pots.UpsertPot(r.Context(), info); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: upsert pot failed",
			slog.String("contract", req.Contract),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to upsert pot")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "upserted",
		"contract": info.Contract,
	})
}
