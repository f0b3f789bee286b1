package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Receipt lifecycle statuses. The upload pipeline produces verified when
// extraction succeeded and pending when it degraded to defaults; failed is
// reserved for out-of-band review flows.
const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusFailed   = "failed"
)

// Actor is the auditor submitting receipts, identified by a wallet-style
// address. Actors are seeded ahead of time; the upload pipeline never
// creates one implicitly.
type Actor struct {
	ID            string `gorm:"primaryKey;size:36"`
	Name          string
	WalletAddress string `gorm:"uniqueIndex;not null"`
	CreatedAt     time.Time
}

// Category is the controlled vocabulary for spend classification.
type Category struct {
	ID          string `gorm:"primaryKey;size:36"`
	Name        string `gorm:"uniqueIndex;not null"`
	Description string
	CreatedAt   time.Time
}

// Receipt is the root entity of one uploaded receipt: file identity plus the
// financial summary derived from it. A receipt owns exactly one StorageRecord
// and one LedgerRecord and zero or more items; all of them are written in a
// single transaction, so a half-created receipt is never observable.
type Receipt struct {
	ID          string          `gorm:"primaryKey;size:36"`
	VendorName  string          `gorm:"not null"`
	ReceiptDate time.Time       `gorm:"not null"`
	Subtotal    decimal.Decimal `gorm:"type:numeric(20,2)"`
	TaxAmount   decimal.Decimal `gorm:"type:numeric(20,2)"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Status      string          `gorm:"not null;default:pending"`

	// RawExtraction keeps the model's JSON verbatim for later review.
	// Null when extraction was skipped or degraded.
	RawExtraction datatypes.JSON

	CategoryID string `gorm:"size:36"`
	ActorID    string `gorm:"size:36"`
	CreatedAt  time.Time

	Category      *Category      `gorm:"foreignKey:CategoryID"`
	Actor         *Actor         `gorm:"foreignKey:ActorID"`
	Items         []ReceiptItem  `gorm:"foreignKey:ReceiptID;constraint:OnDelete:CASCADE"`
	StorageRecord *StorageRecord `gorm:"foreignKey:ReceiptID;constraint:OnDelete:CASCADE"`
	LedgerRecord  *LedgerRecord  `gorm:"foreignKey:ReceiptID;constraint:OnDelete:CASCADE"`
}

// ReceiptItem is one purchased line on a receipt, owned exclusively by its
// parent and deleted with it.
type ReceiptItem struct {
	ID          string `gorm:"primaryKey;size:36"`
	ReceiptID   string `gorm:"index;size:36;not null"`
	Description string `gorm:"not null"`
	Quantity    int64  `gorm:"not null;default:1"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(20,2)"`
	LineTotal   decimal.Decimal `gorm:"type:numeric(20,2)"`
}

// StorageRecord is the content-addressed placement of the original file.
// CID may hold the pin-failure sentinel when the storage network was
// unreachable at upload time.
type StorageRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	ReceiptID string `gorm:"uniqueIndex;size:36;not null"`
	CID       string `gorm:"not null"`
	FileHash  string `gorm:"not null"`
	ByteSize  int64
	MimeType  string
	CreatedAt time.Time
}

// LedgerRecord anchors the receipt fingerprint on a distributed ledger.
// Today the reference is synthesized by the ledger stub; BlockNumber stays
// null until a real integration confirms inclusion.
type LedgerRecord struct {
	ID          string `gorm:"primaryKey;size:36"`
	ReceiptID   string `gorm:"uniqueIndex;size:36;not null"`
	TxHash      string `gorm:"uniqueIndex;not null"`
	Network     string `gorm:"not null"`
	BlockNumber *int64
	CreatedAt   time.Time
}
