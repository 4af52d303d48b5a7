// Package domain defines the core entities of the prediction pot settlement
// engine together with the store interfaces that persist them and the
// sentinel errors shared across the service layer.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-sql/civil"
)

// MarketType identifies one market-type partition. Each market type owns its
// own prediction table partition, penalty set, and pot contract. Valid values
// are defined by the configured market registry, not hard-coded here.
type MarketType string

// String returns the market type as a plain string.
func (m MarketType) String() string { return string(m) }

// NormalizeMarketType lowercases and trims a raw market type string.
func NormalizeMarketType(s string) MarketType {
	return MarketType(strings.ToLower(strings.TrimSpace(s)))
}

// Outcome is a directional outcome or prediction side.
type Outcome string

const (
	OutcomePositive Outcome = "positive"
	OutcomeNegative Outcome = "negative"
)

// ParseOutcome validates a raw outcome string.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(strings.ToLower(strings.TrimSpace(s))) {
	case OutcomePositive:
		return OutcomePositive, nil
	case OutcomeNegative:
		return OutcomeNegative, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOutcome, s)
	}
}

// Opposite returns the other direction.
func (o Outcome) Opposite() Outcome {
	if o == OutcomePositive {
		return OutcomeNegative
	}
	return OutcomePositive
}

// Market is one registered market track: a market-type partition bound to a
// question and the pot contract that collects entries for it.
type Market struct {
	Type         MarketType
	QuestionName string
	Contract     string
}

// Prediction is one wallet's directional call for a question on a date.
// A later submission for the same (wallet, question, date) overwrites the
// earlier one; CreatedAt records the winning write.
type Prediction struct {
	Wallet         string
	QuestionName   string
	Side           Outcome
	Contract       string
	MarketType     MarketType
	PredictionDate civil.Date
	CreatedAt      time.Time
}

// Penalty marks a wallet ineligible to predict in a market partition until it
// re-enters. One row per (market, wallet, date); inserts are idempotent.
type Penalty struct {
	MarketType          MarketType
	Wallet              string
	WrongPredictionDate civil.Date
	CreatedAt           time.Time
}
