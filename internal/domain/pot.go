package domain

import "github.com/golang-sql/civil"

// PotInfo is the operator-managed lifecycle state of one pot contract.
// HasStarted is monotonic: once a pot has started it never reverts.
type PotInfo struct {
	Contract         string
	HasStarted       bool
	IsFinalDay       bool
	StartedOn        *civil.Date
	LastDay          *civil.Date
	AnnouncementSent bool
}
