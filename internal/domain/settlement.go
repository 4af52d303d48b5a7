package domain

import (
	"time"

	"github.com/golang-sql/civil"
)

// SettleStep names the sequential phases of a settlement run. Because the
// underlying store cannot always provide multi-statement atomicity, the
// executor records the last completed step so operators can see exactly how
// far a failed run got before re-running it.
type SettleStep string

const (
	StepNone          SettleStep = ""
	StepFinalOutcome  SettleStep = "final_outcome"
	StepWrong         SettleStep = "wrong_predictors"
	StepNonPredictors SettleStep = "non_predictors"
	StepCleanup       SettleStep = "cleanup"
	StepDone          SettleStep = "done"
)

// SettleRequest asks the elimination executor to settle one market's question
// for a date against the true outcome. TargetDate zero value means the
// current UTC date.
type SettleRequest struct {
	MarketType   MarketType
	QuestionName string
	Outcome      Outcome
	TargetDate   civil.Date
}

// SettlementResult reports what a settlement run did.
type SettlementResult struct {
	TargetDate        civil.Date `json:"target_date"`
	Eliminated        int        `json:"eliminated"`
	TotalParticipants int        `json:"total_participants"`
	CorrectPredictors int        `json:"correct_predictors"`
	FinalDay          bool       `json:"final_day"`
}

// SettlementRun is the durable record of one settlement execution, keyed by
// (market, question, date). A completed run short-circuits repeat
// invocations and returns the stored counts unchanged.
type SettlementRun struct {
	RunID             string
	MarketType        MarketType
	QuestionName      string
	TargetDate        civil.Date
	Outcome           Outcome
	LastStep          SettleStep
	Eliminated        int
	TotalParticipants int
	CorrectPredictors int
	StartedAt         time.Time
	CompletedAt       *time.Time
}

// Completed reports whether the run finished all steps.
func (r SettlementRun) Completed() bool {
	return r.LastStep == StepDone && r.CompletedAt != nil
}

// Result converts a run record into the counts returned to callers.
func (r SettlementRun) Result(finalDay bool) SettlementResult {
	return SettlementResult{
		TargetDate:        r.TargetDate,
		Eliminated:        r.Eliminated,
		TotalParticipants: r.TotalParticipants,
		CorrectPredictors: r.CorrectPredictors,
		FinalDay:          finalDay,
	}
}
