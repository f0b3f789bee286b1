package pipeline

import (
	"encoding/json"
	"time"
)

// Default values used when extraction is skipped or degrades.
const (
	// DefaultVendorName is recorded when the model could not name the vendor.
	DefaultVendorName = "Unknown Vendor"

	// DefaultCategoryGuess is the category recorded for degraded extractions.
	DefaultCategoryGuess = "Uncategorized"

	// DefaultModelName is the Gemini model used for receipt extraction.
	DefaultModelName = "gemini-2.5-flash"

	// PinFailedCID is the sentinel content id recorded when pinning to the
	// storage network failed. It is a distinguished marker, never a real CID.
	PinFailedCID = "ipfs-pin-failed"
)

// ReceiptFields is the strict extraction contract: every upload ends up with
// exactly one of these, either parsed from the model output and validated at
// the extractor boundary, or the documented default.
type ReceiptFields struct {
	VendorName string
	Amount     int64 // grand total, minor-unit-free
	Date       time.Time
	Category   string
	Items      []ExtractedItem

	// Raw is the model's JSON object verbatim; nil when defaulted.
	Raw json.RawMessage
}

// ExtractedItem is one purchased line as reported by the model.
type ExtractedItem struct {
	ItemName string
	Qty      int64
	Price    int64
	Total    int64
}

// DefaultReceiptFields returns the degraded-extraction fallback value.
func DefaultReceiptFields(now time.Time) *ReceiptFields {
	return &ReceiptFields{
		VendorName: DefaultVendorName,
		Amount:     0,
		Date:       now,
		Category:   DefaultCategoryGuess,
	}
}
