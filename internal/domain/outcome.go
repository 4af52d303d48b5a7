package domain

import (
	"time"

	"github.com/golang-sql/civil"
)

// OutcomeRecord is the provisional/final outcome state for one
// (market, question, date). At most one row exists per key.
//
// State machine: NONE -> PROVISIONAL (evidence window open) -> FINAL.
// Re-setting a provisional outcome restarts the window and clears the dispute
// flag. Finalization is valid from any state and closes the window
// immediately, superseding any open dispute.
type OutcomeRecord struct {
	MarketType            MarketType
	QuestionName          string
	OutcomeDate           civil.Date
	ProvisionalOutcome    *Outcome
	ProvisionalSetAt      *time.Time
	EvidenceWindowExpires *time.Time
	FinalOutcome          *Outcome
	FinalSetAt            *time.Time
	Disputed              bool
}

// EvidenceWindowActive reports whether disputes may still be raised: the
// outcome is not final and the window has not expired.
func (o OutcomeRecord) EvidenceWindowActive(now time.Time) bool {
	return o.FinalOutcome == nil &&
		o.EvidenceWindowExpires != nil &&
		now.Before(*o.EvidenceWindowExpires)
}

// Finalized reports whether a final outcome has been recorded.
func (o OutcomeRecord) Finalized() bool {
	return o.FinalOutcome != nil
}
