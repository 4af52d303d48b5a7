package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-sql/civil"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
	"github.com/phetrusrodrigues1997/predictionpot/internal/platform/onchain"
)

// LedgerService defines the methods the ledger handler requires from the
// service layer.
type LedgerService interface {
	RecordEvent(ctx context.Context, ev domain.ParticipationEvent) error
	Eligible(ctx context.Context, contract string, targetDate civil.Date) ([]string, error)
	History(ctx context.Context, contract string, opts domain.ListOpts) ([]domain.ParticipationEvent, error)
}

// LedgerHandler serves the participation ledger endpoints.
type LedgerHandler struct {
	ledger LedgerService
	logger *slog.Logger
}

// NewLedgerHandler creates a LedgerHandler.
func NewLedgerHandler(ledger LedgerService, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger: ledger,
		logger: logger,
	}
}

// ledgerEventRequest is the JSON body for appending a participation event.
type ledgerEventRequest struct {
	Wallet    string `json:"wallet"`
	Contract  string `json:"contract"`
	EventType string `json:"event_type"`
	EventAt   string `json:"event_at"` // RFC3339, empty for now
}

// RecordEvent appends one entry/re-entry/exit event to the ledger.
// POST /api/ledger/events
func (h *LedgerHandler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var req ledgerEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	wallet, err := onchain.NormalizeWallet(req.Wallet)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	eventType, err := domain.ParseEventType(req.EventType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var eventAt time.Time
	if req.EventAt != "" {
		eventAt, err = time.Parse(time.RFC3339, req.EventAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid event_at: "+err.Error())
			return
		}
	}

	ev := domain.ParticipationEvent{
		Wallet:    wallet,
		Contract:  req.Contract,
		EventType: eventType,
		EventAt:   eventAt,
	}
	if err := h.ledger.RecordEvent(r.Context(), ev); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: record ledger event failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to record event")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"status":     "recorded",
		"wallet":     wallet,
		"event_type": string(eventType),
	})
}

// Eligible returns the wallets eligible for penalization on a date.
// GET /api/ledger/eligible?contract=0x...&date=2026-01-02
func (h *LedgerHandler) Eligible(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	contract := q.Get("contract")
	if contract == "" {
		writeError(w, http.StatusBadRequest, "contract query parameter required")
		return
	}
	date, err := parseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date: "+err.Error())
		return
	}

	wallets, err := h.ledger.Eligible(r.Context(), contract, date)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: eligibility projection failed",
			slog.String("contract", contract),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to project eligibility")
		return
	}

	if wallets == nil {
		wallets = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"contract": contract,
		"wallets":  wallets,
		"count":    len(wallets),
	})
}

// ledgerEventResponse is the wire form of a participation event.
type ledgerEventResponse struct {
	ID        int64  `json:"id"`
	Wallet    string `json:"wallet"`
	Contract  string `json:"contract"`
	EventType string `json:"event_type"`
	EventAt   string `json:"event_at"`
}

// History returns a contract's event stream, newest first.
// GET /api/ledger/events?contract=0x...&limit=50&offset=0
func (h *LedgerHandler) History(w http.ResponseWriter, r *http.Request) {
	contract := r.URL.Query().Get("contract")
	if contract == "" {
		writeError(w, http.StatusBadRequest, "contract query parameter required")
		return
	}

	events, err := h.ledger.History(r.Context(), contract, parseListOpts(r))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "contract not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: ledger history failed",
			slog.String("contract", contract),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	resp := make([]ledgerEventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, ledgerEventResponse{
			ID:        ev.ID,
			Wallet:    ev.Wallet,
			Contract:  ev.Contract,
			EventType: string(ev.EventType),
			EventAt:   ev.EventAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": resp})
}
