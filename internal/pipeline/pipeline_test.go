package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dnovriandi/receipt-audit/internal/domain"
	"github.com/dnovriandi/receipt-audit/internal/store"
)

type mockExtractor struct {
	extractFunc func(ctx context.Context, data []byte, mimeType string) (*ReceiptFields, error)
	calls       int
}

func (m *mockExtractor) Extract(ctx context.Context, data []byte, mimeType string) (*ReceiptFields, error) {
	m.calls++
	return m.extractFunc(ctx, data, mimeType)
}

type mockPinner struct {
	pinFunc func(ctx context.Context, data []byte, fileName, mimeType string, metadata map[string]string) (string, error)
	calls   int
}

func (m *mockPinner) Pin(ctx context.Context, data []byte, fileName, mimeType string, metadata map[string]string) (string, error) {
	m.calls++
	return m.pinFunc(ctx, data, fileName, mimeType, metadata)
}

type mockLedger struct {
	anchorFunc func(ctx context.Context, fileHash string) (LedgerAnchor, error)
}

func (m *mockLedger) Anchor(ctx context.Context, fileHash string) (LedgerAnchor, error) {
	return m.anchorFunc(ctx, fileHash)
}

type mockStore struct {
	createFunc func(ctx context.Context, draft store.ReceiptDraft) (*domain.Receipt, error)
	calls      int
	lastDraft  store.ReceiptDraft
}

func (m *mockStore) CreateReceiptGraph(ctx context.Context, draft store.ReceiptDraft) (*domain.Receipt, error) {
	m.calls++
	m.lastDraft = draft
	return m.createFunc(ctx, draft)
}

func happyExtractor() *mockExtractor {
	return &mockExtractor{
		extractFunc: func(ctx context.Context, data []byte, mimeType string) (*ReceiptFields, error) {
			return &ReceiptFields{
				VendorName: "Acme",
				Amount:     15000,
				Date:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
				Category:   "Office",
				Items: []ExtractedItem{
					{ItemName: "Pen", Qty: 2, Price: 1000, Total: 2000},
				},
				Raw: []byte(`{"vendorName":"Acme"}`),
			}, nil
		},
	}
}

func happyPinner() *mockPinner {
	return &mockPinner{
		pinFunc: func(ctx context.Context, data []byte, fileName, mimeType string, metadata map[string]string) (string, error) {
			return "QmHappyCid", nil
		},
	}
}

func happyLedger() *mockLedger {
	return &mockLedger{
		anchorFunc: func(ctx context.Context, fileHash string) (LedgerAnchor, error) {
			return LedgerAnchor{TxHash: "0xdeadbeef", Network: DefaultLedgerNetwork}, nil
		},
	}
}

func happyStore() *mockStore {
	return &mockStore{
		createFunc: func(ctx context.Context, draft store.ReceiptDraft) (*domain.Receipt, error) {
			return &domain.Receipt{ID: "receipt-1", Status: draft.Status}, nil
		},
	}
}

func testInput() UploadInput {
	return UploadInput{
		FileName:       "receipt.jpg",
		MimeType:       "image/jpeg",
		Data:           []byte("image bytes"),
		AuditorAddress: "0xabc",
	}
}

func TestIngest_HappyPath(t *testing.T) {
	extractor := happyExtractor()
	pinner := happyPinner()
	st := happyStore()
	pipe := New(extractor, pinner, happyLedger(), st, zerolog.Nop())

	result, err := pipe.Ingest(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if !result.Extracted {
		t.Error("Extracted = false, want true")
	}
	if result.CID != "QmHappyCid" {
		t.Errorf("CID = %q, want QmHappyCid", result.CID)
	}
	if result.Anchor.TxHash != "0xdeadbeef" {
		t.Errorf("TxHash = %q", result.Anchor.TxHash)
	}
	if result.FileHash != Fingerprint([]byte("image bytes")) {
		t.Errorf("FileHash = %q", result.FileHash)
	}
	if result.Receipt.ID != "receipt-1" {
		t.Errorf("Receipt.ID = %q", result.Receipt.ID)
	}

	draft := st.lastDraft
	if draft.Status != domain.StatusVerified {
		t.Errorf("draft status = %q, want %q", draft.Status, domain.StatusVerified)
	}
	if draft.VendorName != "Acme" || draft.Amount != 15000 {
		t.Errorf("draft fields = %q/%d", draft.VendorName, draft.Amount)
	}
	if len(draft.Items) != 1 || draft.Items[0].Description != "Pen" {
		t.Errorf("draft items = %+v", draft.Items)
	}
	if draft.ByteSize != int64(len("image bytes")) {
		t.Errorf("draft byte size = %d", draft.ByteSize)
	}
	if draft.AuditorAddress != "0xabc" {
		t.Errorf("draft auditor = %q", draft.AuditorAddress)
	}
}

func TestIngest_EmptyUpload(t *testing.T) {
	st := happyStore()
	pipe := New(happyExtractor(), happyPinner(), happyLedger(), st, zerolog.Nop())

	in := testInput()
	in.Data = nil

	if _, err := pipe.Ingest(context.Background(), in); !errors.Is(err, ErrEmptyUpload) {
		t.Fatalf("err = %v, want ErrEmptyUpload", err)
	}
	if st.calls != 0 {
		t.Errorf("store called %d times for an empty upload", st.calls)
	}
}

func TestIngest_ExtractionFailureDegradesToPending(t *testing.T) {
	extractor := &mockExtractor{
		extractFunc: func(ctx context.Context, data []byte, mimeType string) (*ReceiptFields, error) {
			return nil, errors.New("model unavailable")
		},
	}
	st := happyStore()
	pipe := New(extractor, happyPinner(), happyLedger(), st, zerolog.Nop())

	result, err := pipe.Ingest(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if result.Extracted {
		t.Error("Extracted = true after extraction failure")
	}
	if result.Fields.VendorName != DefaultVendorName {
		t.Errorf("VendorName = %q, want %q", result.Fields.VendorName, DefaultVendorName)
	}
	if st.lastDraft.Status != domain.StatusPending {
		t.Errorf("draft status = %q, want %q", st.lastDraft.Status, domain.StatusPending)
	}
	if st.lastDraft.Amount != 0 {
		t.Errorf("draft amount = %d, want 0", st.lastDraft.Amount)
	}
}

func TestIngest_NilExtractorDegradesToPending(t *testing.T) {
	st := happyStore()
	pipe := New(nil, happyPinner(), happyLedger(), st, zerolog.Nop())

	result, err := pipe.Ingest(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if result.Extracted || st.lastDraft.Status != domain.StatusPending {
		t.Errorf("extracted=%v status=%q, want degraded pending", result.Extracted, st.lastDraft.Status)
	}
}

func TestIngest_NonImageSkipsExtraction(t *testing.T) {
	extractor := happyExtractor()
	st := happyStore()
	pipe := New(extractor, happyPinner(), happyLedger(), st, zerolog.Nop())

	in := testInput()
	in.FileName = "receipt.pdf"
	in.MimeType = "application/pdf"

	result, err := pipe.Ingest(context.Background(), in)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if extractor.calls != 0 {
		t.Errorf("extractor called %d times for a non-image upload", extractor.calls)
	}
	if result.Extracted {
		t.Error("Extracted = true for a skipped extraction")
	}
	if st.lastDraft.Status != domain.StatusPending {
		t.Errorf("draft status = %q, want %q", st.lastDraft.Status, domain.StatusPending)
	}
}

func TestIngest_PinFailureRecordsSentinel(t *testing.T) {
	pinner := &mockPinner{
		pinFunc: func(ctx context.Context, data []byte, fileName, mimeType string, metadata map[string]string) (string, error) {
			return "", errors.New("gateway timeout")
		},
	}
	st := happyStore()
	pipe := New(happyExtractor(), pinner, happyLedger(), st, zerolog.Nop())

	result, err := pipe.Ingest(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if result.CID != PinFailedCID {
		t.Errorf("CID = %q, want %q", result.CID, PinFailedCID)
	}
	if st.lastDraft.CID != PinFailedCID {
		t.Errorf("draft CID = %q, want %q", st.lastDraft.CID, PinFailedCID)
	}
	// A failed pin does not demote an otherwise verified receipt.
	if st.lastDraft.Status != domain.StatusVerified {
		t.Errorf("draft status = %q, want %q", st.lastDraft.Status, domain.StatusVerified)
	}
}

func TestIngest_NilPinnerRecordsSentinel(t *testing.T) {
	st := happyStore()
	pipe := New(happyExtractor(), nil, happyLedger(), st, zerolog.Nop())

	result, err := pipe.Ingest(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if result.CID != PinFailedCID {
		t.Errorf("CID = %q, want %q", result.CID, PinFailedCID)
	}
}

func TestIngest_PinMetadataAndName(t *testing.T) {
	var gotName string
	var gotMetadata map[string]string
	pinner := &mockPinner{
		pinFunc: func(ctx context.Context, data []byte, fileName, mimeType string, metadata map[string]string) (string, error) {
			gotName = fileName
			gotMetadata = metadata
			return "QmCid", nil
		},
	}
	pipe := New(happyExtractor(), pinner, happyLedger(), happyStore(), zerolog.Nop())

	in := testInput()
	if _, err := pipe.Ingest(context.Background(), in); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	hash := Fingerprint(in.Data)
	wantName := "receipt-" + hash[2:18]
	if gotName != wantName {
		t.Errorf("pin name = %q, want %q", gotName, wantName)
	}
	if gotMetadata["sha256"] != hash {
		t.Errorf("metadata sha256 = %q, want %q", gotMetadata["sha256"], hash)
	}
	if gotMetadata["auditor"] != in.AuditorAddress {
		t.Errorf("metadata auditor = %q, want %q", gotMetadata["auditor"], in.AuditorAddress)
	}
}

func TestIngest_AnchorFailureIsFatal(t *testing.T) {
	ledger := &mockLedger{
		anchorFunc: func(ctx context.Context, fileHash string) (LedgerAnchor, error) {
			return LedgerAnchor{}, errors.New("entropy exhausted")
		},
	}
	st := happyStore()
	pipe := New(happyExtractor(), happyPinner(), ledger, st, zerolog.Nop())

	if _, err := pipe.Ingest(context.Background(), testInput()); err == nil {
		t.Fatal("expected error, got nil")
	}
	if st.calls != 0 {
		t.Errorf("store called %d times after anchor failure", st.calls)
	}
}

func TestIngest_StoreFailureIsFatal(t *testing.T) {
	st := &mockStore{
		createFunc: func(ctx context.Context, draft store.ReceiptDraft) (*domain.Receipt, error) {
			return nil, errors.New("connection reset")
		},
	}
	pipe := New(happyExtractor(), happyPinner(), happyLedger(), st, zerolog.Nop())

	if _, err := pipe.Ingest(context.Background(), testInput()); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestIsImageMime(t *testing.T) {
	tests := []struct {
		mime string
		want bool
	}{
		{"image/jpeg", true},
		{"image/png", true},
		{"IMAGE/JPEG", true},
		{" image/webp ", true},
		{"application/pdf", false},
		{"text/plain", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isImageMime(tt.mime); got != tt.want {
			t.Errorf("isImageMime(%q) = %v, want %v", tt.mime, got, tt.want)
		}
	}
}
