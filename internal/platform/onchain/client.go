// Package onchain reads the authoritative participant list from the pot
// contract over JSON-RPC. The engine never mirrors this list; it is the
// source of truth for membership at winner-resolution time and is applied as
// an intersection filter.
package onchain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// participantsABI is the read-only slice of the pot contract interface that
// the engine needs.
const participantsABI = `[
	{"inputs":[],"name":"getParticipants","outputs":[{"internalType":"address[]","name":"","type":"address[]"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"address","name":"wallet","type":"address"}],"name":"isParticipant","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"}
]`

// callTimeout bounds individual eth_call requests independently of the
// caller's context.
const callTimeout = 15 * time.Second

// Client implements domain.ParticipantSource against an EVM JSON-RPC
// endpoint.
type Client struct {
	eth *ethclient.Client
	abi abi.ABI
}

// New dials the RPC endpoint and returns a Client.
func New(ctx context.Context, rpcURL string) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(participantsABI))
	if err != nil {
		return nil, fmt.Errorf("onchain: parse abi: %w", err)
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("onchain: dial %s: %w", rpcURL, err)
	}

	return &Client{eth: eth, abi: parsed}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// LiveParticipants calls getParticipants() on the pot contract and returns
// the wallets as lowercase hex strings.
func (c *Client) LiveParticipants(ctx context.Context, contract string) ([]string, error) {
	if !common.IsHexAddress(contract) {
		return nil, fmt.Errorf("onchain: invalid contract address %q", contract)
	}
	addr := common.HexToAddress(contract)

	data, err := c.abi.Pack("getParticipants")
	if err != nil {
		return nil, fmt.Errorf("onchain: pack getParticipants: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	out, err := c.eth.CallContract(callCtx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("onchain: call getParticipants on %s: %w", contract, err)
	}

	var addrs []common.Address
	if err := c.abi.UnpackIntoInterface(&addrs, "getParticipants", out); err != nil {
		return nil, fmt.Errorf("onchain: unpack getParticipants: %w", err)
	}

	wallets := make([]string, 0, len(addrs))
	for _, a := range addrs {
		wallets = append(wallets, strings.ToLower(a.Hex()))
	}
	return wallets, nil
}

// IsParticipant calls isParticipant(wallet) on the pot contract. Used by the
// re-entry path to confirm the wallet's payment landed before penalties are
// cleared.
func (c *Client) IsParticipant(ctx context.Context, contract, wallet string) (bool, error) {
	if !common.IsHexAddress(contract) {
		return false, fmt.Errorf("onchain: invalid contract address %q", contract)
	}
	if !common.IsHexAddress(wallet) {
		return false, fmt.Errorf("onchain: %w: %q", domain.ErrInvalidWallet, wallet)
	}

	addr := common.HexToAddress(contract)
	data, err := c.abi.Pack("isParticipant", common.HexToAddress(wallet))
	if err != nil {
		return false, fmt.Errorf("onchain: pack isParticipant: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	out, err := c.eth.CallContract(callCtx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("onchain: call isParticipant on %s: %w", contract, err)
	}

	var ok bool
	if err := c.abi.UnpackIntoInterface(&ok, "isParticipant", out); err != nil {
		return false, fmt.Errorf("onchain: unpack isParticipant: %w", err)
	}
	return ok, nil
}

// Compile-time interface check.
var _ domain.ParticipantSource = (*Client)(nil)
