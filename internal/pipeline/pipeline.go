package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dnovriandi/receipt-audit/internal/domain"
	"github.com/dnovriandi/receipt-audit/internal/store"
)

// ErrEmptyUpload is returned when the upload carries no bytes to fingerprint.
var ErrEmptyUpload = errors.New("empty upload")

const extractTimeout = 90 * time.Second

// Pipeline runs the five ordered upload stages: fingerprint, extract, pin,
// anchor, persist. Extraction and pinning degrade to defaults on failure;
// fingerprinting, anchoring and persistence are fatal. No stage is retried
// and data flows forward only.
type Pipeline struct {
	extractor Extractor // nil when no extraction capability is configured
	pinner    Pinner    // nil when no storage network is configured
	ledger    LedgerAnchorer
	store     ReceiptStore
	log       zerolog.Logger
}

// New builds a pipeline from explicitly constructed collaborators.
func New(extractor Extractor, pinner Pinner, ledger LedgerAnchorer, st ReceiptStore, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		pinner:    pinner,
		ledger:    ledger,
		store:     st,
		log:       log,
	}
}

// UploadInput is one submitted receipt file.
type UploadInput struct {
	FileName       string
	MimeType       string
	Data           []byte
	AuditorAddress string
}

// UploadResult is the terminal success state: the persisted aggregate plus
// the per-stage outcomes the response is shaped from.
type UploadResult struct {
	Receipt   *domain.Receipt
	Fields    *ReceiptFields
	Extracted bool
	FileHash  string
	CID       string
	Anchor    LedgerAnchor
}

// Ingest runs the full pipeline for one upload. A nil error means every stage
// ran and the aggregate was committed; a non-nil error means nothing was
// persisted.
func (p *Pipeline) Ingest(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if len(in.Data) == 0 {
		return nil, ErrEmptyUpload
	}

	fileHash := Fingerprint(in.Data)
	p.log.Info().
		Str("file", in.FileName).
		Str("mime", in.MimeType).
		Int("bytes", len(in.Data)).
		Str("hash", fileHash).
		Msg("Upload fingerprinted")

	fields, extracted := p.extractFields(ctx, in)
	cid := p.pinFile(ctx, in, fileHash)

	anchor, err := p.ledger.Anchor(ctx, fileHash)
	if err != nil {
		return nil, fmt.Errorf("Ingest: ledger anchor: %w", err)
	}

	status := domain.StatusPending
	if extracted {
		status = domain.StatusVerified
	}

	draft := store.ReceiptDraft{
		VendorName:     fields.VendorName,
		ReceiptDate:    fields.Date,
		Amount:         fields.Amount,
		CategoryGuess:  fields.Category,
		Status:         status,
		RawExtraction:  fields.Raw,
		FileHash:       fileHash,
		CID:            cid,
		ByteSize:       int64(len(in.Data)),
		MimeType:       in.MimeType,
		TxHash:         anchor.TxHash,
		Network:        anchor.Network,
		AuditorAddress: in.AuditorAddress,
	}
	for _, it := range fields.Items {
		draft.Items = append(draft.Items, store.ItemDraft{
			Description: it.ItemName,
			Quantity:    it.Qty,
			UnitPrice:   it.Price,
			LineTotal:   it.Total,
		})
	}

	receipt, err := p.store.CreateReceiptGraph(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("Ingest: persist receipt: %w", err)
	}

	p.log.Info().
		Str("receipt_id", receipt.ID).
		Str("status", status).
		Str("cid", cid).
		Str("tx_hash", anchor.TxHash).
		Msg("Receipt ingested")

	return &UploadResult{
		Receipt:   receipt,
		Fields:    fields,
		Extracted: extracted,
		FileHash:  fileHash,
		CID:       cid,
		Anchor:    anchor,
	}, nil
}

// extractFields is the degrade-not-abort boundary for the extraction stage:
// it returns the parsed fields, or the documented default when extraction is
// unavailable, skipped for a non-image upload, or failed.
func (p *Pipeline) extractFields(ctx context.Context, in UploadInput) (*ReceiptFields, bool) {
	if p.extractor == nil {
		p.log.Warn().Msg("No extraction capability configured, using default fields")
		return DefaultReceiptFields(time.Now()), false
	}
	if !isImageMime(in.MimeType) {
		p.log.Warn().Str("mime", in.MimeType).Msg("Non-image upload, extraction skipped")
		return DefaultReceiptFields(time.Now()), false
	}

	ctx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	fields, err := p.extractor.Extract(ctx, in.Data, in.MimeType)
	if err != nil {
		p.log.Warn().Err(err).Msg("Extraction failed, using default fields")
		return DefaultReceiptFields(time.Now()), false
	}
	return fields, true
}

// pinFile is the soft-fail boundary for the storage stage: any failure yields
// the sentinel content id so the audit record can still be committed.
func (p *Pipeline) pinFile(ctx context.Context, in UploadInput, fileHash string) string {
	if p.pinner == nil {
		p.log.Warn().Msg("No storage network configured, recording pin sentinel")
		return PinFailedCID
	}

	metadata := map[string]string{
		"sha256":  fileHash,
		"auditor": in.AuditorAddress,
	}
	cid, err := p.pinner.Pin(ctx, in.Data, pinName(fileHash), in.MimeType, metadata)
	if err != nil {
		p.log.Warn().Err(err).Msg("Pin failed, recording sentinel content id")
		return PinFailedCID
	}
	return cid
}

// pinName derives the logical storage name from the fingerprint.
func pinName(fileHash string) string {
	h := strings.TrimPrefix(fileHash, "0x")
	if len(h) > 16 {
		h = h[:16]
	}
	return "receipt-" + h
}

func isImageMime(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}
