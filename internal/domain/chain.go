package domain

import "context"

// ParticipantSource supplies the authoritative on-chain participant list for
// a pot contract. The engine never mirrors this list; it is fetched at
// resolution time and applied as an intersection filter.
type ParticipantSource interface {
	LiveParticipants(ctx context.Context, contract string) ([]string, error)
}
