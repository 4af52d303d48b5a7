package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// SettlementService defines the methods the settlement handler requires from
// the service layer.
type SettlementService interface {
	Settle(ctx context.Context, req domain.SettleRequest) (domain.SettlementResult, error)
	ListRuns(ctx context.Context, limit int) ([]domain.SettlementRun, error)
}

// SettlementHandler serves the elimination executor endpoints.
type SettlementHandler struct {
	settlements SettlementService
	logger      *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler.
func NewSettlementHandler(settlements SettlementService, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{
		settlements: settlements,
		logger:      logger,
	}
}

// settleRequest is the JSON body for triggering a settlement.
type settleRequest struct {
	MarketType string `json:"market_type"`
	Outcome    string `json:"outcome"`
	Date       string `json:"date"` // YYYY-MM-DD, empty for today
}

// Settle records the final outcome and runs the full elimination pipeline.
// POST /api/settle
func (h *SettlementHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
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

	result, err := h.settlements.Settle(r.Context(), domain.SettleRequest{
		MarketType: domain.NormalizeMarketType(req.MarketType),
		Outcome:    outcome,
		TargetDate: date,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidMarketType), errors.Is(err, domain.ErrInvalidOutcome):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrSettleInProgress):
			writeError(w, http.StatusConflict, "settlement already in progress, retry shortly")
		default:
			h.logger.ErrorContext(r.Context(), "handler: settle failed",
				slog.String("market_type", req.MarketType),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "settlement failed: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// settlementRunResponse is the wire form of a settlement run record.
type settlementRunResponse struct {
	RunID             string  `json:"run_id"`
	MarketType        string  `json:"market_type"`
	QuestionName      string  `json:"question_name"`
	TargetDate        string  `json:"target_date"`
	Outcome           string  `json:"outcome"`
	LastStep          string  `json:"last_step"`
	Eliminated        int     `json:"eliminated"`
	TotalParticipants int     `json:"total_participants"`
	CorrectPredictors int     `json:"correct_predictors"`
	StartedAt         string  `json:"started_at"`
	CompletedAt       *string `json:"completed_at,omitempty"`
}

// ListRuns returns recent settlement runs, newest first.
// GET /api/settlements?limit=50
func (h *SettlementHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	runs, err := h.settlements.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list settlement runs failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list settlement runs")
		return
	}

	resp := make([]settlementRunResponse, 0, len(runs))
	for _, run := range runs {
		item := settlementRunResponse{
			RunID:             run.RunID,
			MarketType:        string(run.MarketType),
			QuestionName:      run.QuestionName,
			TargetDate:        run.TargetDate.String(),
			Outcome:           string(run.Outcome),
			LastStep:          string(run.LastStep),
			Eliminated:        run.Eliminated,
			TotalParticipants: run.TotalParticipants,
			CorrectPredictors: run.CorrectPredictors,
			StartedAt:         run.StartedAt.UTC().Format(time.RFC3339),
		}
		if run.CompletedAt != nil {
			s := run.CompletedAt.UTC().Format(time.RFC3339)
			item.CompletedAt = &s
		}
		resp = append(resp, item)
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": resp})
}
