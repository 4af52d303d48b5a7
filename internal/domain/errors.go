package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidOutcome     = errors.New("invalid outcome")
	ErrInvalidMarketType  = errors.New("invalid market type")
	ErrInvalidEventType   = errors.New("invalid event type")
	ErrInvalidWallet      = errors.New("invalid wallet address")
	ErrNoLiveParticipants = errors.New("no live participants supplied")
	ErrSettleInProgress   = errors.New("settlement already in progress")
	ErrWindowClosed       = errors.New("evidence window closed")
	ErrLockHeld           = errors.New("lock already held")
)
