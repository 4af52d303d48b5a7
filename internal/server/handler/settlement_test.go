package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSettlementService struct {
	settleReq    domain.SettleRequest
	settleResult domain.SettlementResult
	settleErr    error
	runs         []domain.SettlementRun
	runsErr      error
}

func (s *stubSettlementService) Settle(_ context.Context, req domain.SettleRequest) (domain.SettlementResult, error) {
	s.settleReq = req
	return s.settleResult, s.settleErr
}

func (s *stubSettlementService) ListRuns(context.Context, int) ([]domain.SettlementRun, error) {
	return s.runs, s.runsErr
}

func TestSettleEndpoint(t *testing.T) {
	stub := &stubSettlementService{
		settleResult: domain.SettlementResult{
			TargetDate:        civil.Date{Year: 2026, Month: 3, Day: 15},
			Eliminated:        6,
			TotalParticipants: 5,
			CorrectPredictors: 3,
		},
	}
	h := NewSettlementHandler(stub, testLogger())

	body := `{"market_type":"Bitcoin","outcome":"positive","date":"2026-03-15"}`
	req := httptest.NewRequest(http.MethodPost, "/api/settle", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Settle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.MarketType("bitcoin"), stub.settleReq.MarketType)
	assert.Equal(t, domain.OutcomePositive, stub.settleReq.Outcome)
	assert.Equal(t, civil.Date{Year: 2026, Month: 3, Day: 15}, stub.settleReq.TargetDate)
	assert.Contains(t, rec.Body.String(), `"eliminated":6`)
}

func TestSettleEndpointErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"bad outcome", `{"market_type":"bitcoin","outcome":"maybe"}`, nil, http.StatusBadRequest},
		{"bad date", `{"market_type":"bitcoin","outcome":"positive","date":"15/03/2026"}`, nil, http.StatusBadRequest},
		{"unknown market", `{"market_type":"nope","outcome":"positive"}`, domain.ErrInvalidMarketType, http.StatusBadRequest},
		{"in progress", `{"market_type":"bitcoin","outcome":"positive"}`, domain.ErrSettleInProgress, http.StatusConflict},
		{"internal", `{"market_type":"bitcoin","outcome":"positive"}`, io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSettlementHandler(&stubSettlementService{settleErr: tt.err}, testLogger())
			req := httptest.NewRequest(http.MethodPost, "/api/settle", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Settle(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestListRunsEndpoint(t *testing.T) {
	completed := time.Date(2026, 3, 15, 0, 6, 0, 0, time.UTC)
	stub := &stubSettlementService{
		runs: []domain.SettlementRun{{
			RunID:        "run-1",
			MarketType:   "bitcoin",
			QuestionName: "bitcoin",
			TargetDate:   civil.Date{Year: 2026, Month: 3, Day: 15},
			Outcome:      domain.OutcomePositive,
			LastStep:     domain.StepDone,
			Eliminated:   6,
			StartedAt:    completed.Add(-time.Minute),
			CompletedAt:  &completed,
		}},
	}
	h := NewSettlementHandler(stub, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/settlements", nil)
	rec := httptest.NewRecorder()
	h.ListRuns(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"run_id":"run-1"`)
	assert.Contains(t, body, `"last_step":"done"`)
	assert.Contains(t, body, `"target_date":"2026-03-15"`)
	assert.Contains(t, body, `"completed_at":"2026-03-15T00:06:00Z"`)
}
