package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// DefaultLedgerNetwork labels anchors produced by the stub.
const DefaultLedgerNetwork = "lisk-sepolia"

// LedgerAnchor is the audit-trail reference recorded for a receipt. No caller
// may assume the hash is chain-verifiable until a real ledger client replaces
// the stub.
type LedgerAnchor struct {
	TxHash  string
	Network string
}

// MockLedger synthesizes anchor references in-process. It implements the same
// LedgerAnchorer interface a real ledger client would, so swapping in signing
// and submission touches nothing else.
type MockLedger struct {
	network string
}

// NewMockLedger returns a stub anchoring to the given network label,
// DefaultLedgerNetwork when empty.
func NewMockLedger(network string) *MockLedger {
	if network == "" {
		network = DefaultLedgerNetwork
	}
	return &MockLedger{network: network}
}

// Anchor returns a random transaction-hash-shaped reference for the given
// document fingerprint.
func (l *MockLedger) Anchor(ctx context.Context, fileHash string) (LedgerAnchor, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return LedgerAnchor{}, fmt.Errorf("Anchor: random reference: %w", err)
	}
	return LedgerAnchor{
		TxHash:  "0x" + hex.EncodeToString(b[:]),
		Network: l.network,
	}, nil
}
