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
)

// OutcomeService defines the methods the outcome handler requires from the
// service layer.
type OutcomeService interface {
	SetProvisional(ctx context.Context, mt domain.MarketType, date civil.Date, outcome domain.Outcome) (domain.OutcomeRecord, error)
	Dispute(ctx context.Context, mt domain.MarketType, date civil.Date) error
	Get(ctx context.Context, mt domain.MarketType, date civil.Date) (domain.OutcomeRecord, bool, error)
}

// OutcomeHandler serves the provisional outcome and dispute endpoints.
type OutcomeHandler struct {
	outcomes OutcomeService
	logger   *slog.Logger
}

// NewOutcomeHandler creates an OutcomeHandler.
func NewOutcomeHandler(outcomes OutcomeService, logger *slog.Logger) *OutcomeHandler {
	return &OutcomeHandler{
		outcomes: outcomes,
		logger:   logger,
	}
}

// outcomeRequest is the JSON body for setting or disputing an outcome.
type outcomeRequest struct {
	MarketType string `json:"market_type"`
	Outcome    string `json:"outcome"`
	Date       string `json:"date"` // YYYY-MM-DD, empty for today
}

// outcomeResponse is the wire form of an outcome row plus derived window
// state.
type outcomeResponse struct {
	MarketType         string  `json:"market_type"`
	QuestionName       string  `json:"question_name"`
	Date               string  `json:"date"`
	ProvisionalOutcome *string `json:"provisional_outcome,omitempty"`
	FinalOutcome       *string `json:"final_outcome,omitempty"`
	Disputed           bool    `json:"disputed"`
	WindowExpires      *string `json:"evidence_window_expires,omitempty"`
	WindowActive       bool    `json:"evidence_window_active"`
}

func toOutcomeResponse(rec domain.OutcomeRecord, windowActive bool) outcomeResponse {
	resp := outcomeResponse{
		MarketType:   string(rec.MarketType),
		QuestionName: rec.QuestionName,
		Date:         rec.OutcomeDate.String(),
		Disputed:     rec.Disputed,
		WindowActive: windowActive,
	}
	if rec.ProvisionalOutcome != nil {
		s := string(*rec.ProvisionalOutcome)
		resp.ProvisionalOutcome = &s
	}
	if rec.FinalOutcome != nil {
		s := string(*rec.FinalOutcome)
		resp.FinalOutcome = &s
	}
	if rec.EvidenceWindowExpires != nil {
		s := rec.EvidenceWindowExpires.UTC().Format(time.RFC3339)
		resp.WindowExpires = &s
	}
	return resp
}

// SetProvisional sets (or resets) a provisional outcome, opening the evidence
// window.
// POST /api/outcomes/provisional
func (h *OutcomeHandler) SetProvisional(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	outcome, err := domain.ParseOutcome(req.Outcome)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date: "+err.Error())
		return
	}

	rec, err := h.outcomes.SetProvisional(r.Context(), domain.NormalizeMarketType(req.MarketType), date, outcome)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidMarketType) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: set provisional outcome failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to set provisional outcome")
		return
	}

	writeJSON(w, http.StatusOK, toOutcomeResponse(rec, true))
}

// Dispute flags a provisional outcome as disputed while the evidence window
// is active.
// POST /api/outcomes/dispute
func (h *OutcomeHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date: "+err.Error())
		return
	}
	if date == (civil.Date{}) {
		date = civil.DateOf(time.Now().UTC())
	}

	if err := h.outcomes.Dispute(r.Context(), domain.NormalizeMarketType(req.MarketType), date); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidMarketType):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "no outcome recorded for date")
		case errors.Is(err, domain.ErrWindowClosed):
			writeError(w, http.StatusConflict, "evidence window is closed")
		default:
			h.logger.ErrorContext(r.Context(), "handler: dispute outcome failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to dispute outcome")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "disputed",
		"date":   date.String(),
	})
}

// Get returns the outcome row and derived evidence-window state.
// GET /api/outcomes?market_type=bitcoin&date=2026-01-02
func (h *OutcomeHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mt := domain.NormalizeMarketType(q.Get("market_type"))
	date, err := parseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date: "+err.Error())
		return
	}
	if date == (civil.Date{}) {
		date = civil.DateOf(time.Now().UTC())
	}

	rec, windowActive, err := h.outcomes.Get(r.Context(), mt, date)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidMarketType):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "no outcome recorded for date")
		default:
			h.logger.ErrorContext(r.Context(), "handler: get outcome failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to get outcome")
		}
		return
	}

	writeJSON(w, http.StatusOK, toOutcomeResponse(rec, windowActive))
}
