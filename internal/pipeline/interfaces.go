package pipeline

import (
	"context"

	"github.com/dnovriandi/receipt-audit/internal/domain"
	"github.com/dnovriandi/receipt-audit/internal/store"
)

// Extractor is the vision-language extraction capability. Implementations
// return an error on any failure; the pipeline converts it to defaults.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (*ReceiptFields, error)
}

// Pinner is the content-addressed storage capability.
type Pinner interface {
	Pin(ctx context.Context, data []byte, fileName, mimeType string, metadata map[string]string) (string, error)
}

// LedgerAnchorer records a document fingerprint on a distributed ledger.
// Currently implemented by MockLedger only.
type LedgerAnchorer interface {
	Anchor(ctx context.Context, fileHash string) (LedgerAnchor, error)
}

// ReceiptStore commits the receipt aggregate. A failure here is fatal to the
// whole upload.
type ReceiptStore interface {
	CreateReceiptGraph(ctx context.Context, draft store.ReceiptDraft) (*domain.Receipt, error)
}
