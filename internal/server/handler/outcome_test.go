package handler

import (
	"context"
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

type stubOutcomeService struct {
	rec          domain.OutcomeRecord
	windowActive bool
	err          error
	disputeErr   error
	disputedDate civil.Date
}

func (s *stubOutcomeService) SetProvisional(_ context.Context, mt domain.MarketType, date civil.Date, outcome domain.Outcome) (domain.OutcomeRecord, error) {
	if s.err != nil {
		return domain.OutcomeRecord{}, s.err
	}
	exp := time.Date(2026, 3, 15, 19, 0, 0, 0, time.UTC)
	return domain.OutcomeRecord{
		MarketType:            mt,
		QuestionName:          string(mt),
		OutcomeDate:           date,
		ProvisionalOutcome:    &outcome,
		EvidenceWindowExpires: &exp,
	}, nil
}

func (s *stubOutcomeService) Dispute(_ context.Context, _ domain.MarketType, date civil.Date) error {
	s.disputedDate = date
	return s.disputeErr
}

func (s *stubOutcomeService) Get(context.Context, domain.MarketType, civil.Date) (domain.OutcomeRecord, bool, error) {
	return s.rec, s.windowActive, s.err
}

func TestSetProvisionalEndpoint(t *testing.T) {
	h := NewOutcomeHandler(&stubOutcomeService{}, testLogger())

	body := `{"market_type":"bitcoin","outcome":"negative","date":"2026-03-15"}`
	req := httptest.NewRequest(http.MethodPost, "/api/outcomes/provisional", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.SetProvisional(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := rec.Body.String()
	assert.Contains(t, resp, `"provisional_outcome":"negative"`)
	assert.Contains(t, resp, `"evidence_window_active":true`)
	assert.Contains(t, resp, `"evidence_window_expires":"2026-03-15T19:00:00Z"`)
}

func TestDisputeEndpoint(t *testing.T) {
	stub := &stubOutcomeService{}
	h := NewOutcomeHandler(stub, testLogger())

	body := `{"market_type":"bitcoin","date":"2026-03-15"}`
	req := httptest.NewRequest(http.MethodPost, "/api/outcomes/dispute", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Dispute(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, civil.Date{Year: 2026, Month: 3, Day: 15}, stub.disputedDate)
	assert.Contains(t, rec.Body.String(), `"status":"disputed"`)
}

func TestDisputeEndpointErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"window closed", domain.ErrWindowClosed, http.StatusConflict},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"unknown market", domain.ErrInvalidMarketType, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewOutcomeHandler(&stubOutcomeService{disputeErr: tt.err}, testLogger())
			body := `{"market_type":"bitcoin","date":"2026-03-15"}`
			req := httptest.NewRequest(http.MethodPost, "/api/outcomes/dispute", strings.NewReader(body))
			rec := httptest.NewRecorder()
			h.Dispute(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestGetOutcomeEndpoint(t *testing.T) {
	final := domain.OutcomeNegative
	stub := &stubOutcomeService{
		rec: domain.OutcomeRecord{
			MarketType:   "bitcoin",
			QuestionName: "bitcoin",
			OutcomeDate:  civil.Date{Year: 2026, Month: 3, Day: 15},
			FinalOutcome: &final,
		},
	}
	h := NewOutcomeHandler(stub, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/outcomes?market_type=bitcoin&date=2026-03-15", nil)
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"final_outcome":"negative"`)
	assert.Contains(t, body, `"evidence_window_active":false`)
	assert.NotContains(t, body, "provisional_outcome")
}

func TestGetOutcomeNotFound(t *testing.T) {
	h := NewOutcomeHandler(&stubOutcomeService{err: domain.ErrNotFound}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/outcomes?market_type=bitcoin", nil)
	rec := httptest.NewRecorder()
	h.Get(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
