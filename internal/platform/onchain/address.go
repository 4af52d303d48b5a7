package onchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// NormalizeWallet validates a hex wallet address and returns its lowercase
// canonical form. All wallets are stored and compared lowercased so that
// checksum-cased input from callers never splits one wallet into two rows.
func NormalizeWallet(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidWallet, s)
	}
	return strings.ToLower(common.HexToAddress(s).Hex()), nil
}

// CachedParticipantSource wraps a ParticipantSource with a short-TTL cache so
// repeated winner or re-entry queries within a settlement cycle do not hammer
// the RPC endpoint.
type CachedParticipantSource struct {
	source domain.ParticipantSource
	cache  domain.ParticipantCache
}

// NewCachedParticipantSource creates the caching wrapper. A nil cache
// degrades to pass-through reads.
func NewCachedParticipantSource(source domain.ParticipantSource, cache domain.ParticipantCache) *CachedParticipantSource {
	return &CachedParticipantSource{source: source, cache: cache}
}

// LiveParticipants returns the cached list when fresh, falling back to the
// chain and repopulating the cache on a miss. Cache write failures are
// ignored; the chain result is still returned.
func (c *CachedParticipantSource) LiveParticipants(ctx context.Context, contract string) ([]string, error) {
	if c.cache != nil {
		if wallets, err := c.cache.Get(ctx, contract); err == nil {
			return wallets, nil
		}
	}

	wallets, err := c.source.LiveParticipants(ctx, contract)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		_ = c.cache.Set(ctx, contract, wallets, 0)
	}
	return wallets, nil
}

// Compile-time interface check.
var _ domain.ParticipantSource = (*CachedParticipantSource)(nil)
