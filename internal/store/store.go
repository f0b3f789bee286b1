package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/dnovriandi/receipt-audit/internal/domain"
)

// ErrNotFound is returned when a requested receipt does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// Store is the persistence coordinator: it resolves foreign entities and
// commits the receipt aggregate as one transaction.
type Store struct {
	db *gorm.DB
}

// New wraps a shared gorm handle. The handle's lifecycle is owned by the
// caller, constructed once at startup and passed down.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the relational schema.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&domain.Actor{},
		&domain.Category{},
		&domain.Receipt{},
		&domain.ReceiptItem{},
		&domain.StorageRecord{},
		&domain.LedgerRecord{},
	)
}

// ItemDraft is one line item to be written with a receipt. Prices are
// minor-unit-free integers as extracted.
type ItemDraft struct {
	Description string
	Quantity    int64
	UnitPrice   int64
	LineTotal   int64
}

// ReceiptDraft carries everything the pipeline produced for one upload.
type ReceiptDraft struct {
	VendorName    string
	ReceiptDate   time.Time
	Amount        int64
	CategoryGuess string
	Status        string
	RawExtraction json.RawMessage
	Items         []ItemDraft

	FileHash string
	CID      string
	ByteSize int64
	MimeType string

	TxHash  string
	Network string

	AuditorAddress string
}

// ResolveActor finds the actor for the given wallet address, falling back to
// the seeded guest actor for unknown or empty addresses. A missing guest
// actor is a configuration error: without an actor there is no attributable
// audit record.
func (s *Store) ResolveActor(ctx context.Context, address string) (*domain.Actor, error) {
	address = strings.TrimSpace(address)
	if address != "" {
		var actor domain.Actor
		err := s.db.WithContext(ctx).Where("wallet_address = ?", address).First(&actor).Error
		if err == nil {
			return &actor, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("ResolveActor: lookup %q: %w", address, err)
		}
	}

	var guest domain.Actor
	err := s.db.WithContext(ctx).Where("wallet_address = ?", GuestWalletAddress).First(&guest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("ResolveActor: guest actor %s not seeded", GuestWalletAddress)
		}
		return nil, fmt.Errorf("ResolveActor: guest lookup: %w", err)
	}
	return &guest, nil
}

// ResolveCategory matches the extractor's free-text guess by case-insensitive
// containment against category names. When nothing matches it falls back to
// the oldest seeded category; the taxonomy is always seeded with at least one
// row, so an empty table is a configuration error.
func (s *Store) ResolveCategory(ctx context.Context, guess string) (*domain.Category, error) {
	guess = strings.TrimSpace(guess)
	if guess != "" {
		var cat domain.Category
		err := s.db.WithContext(ctx).
			Where("LOWER(name) LIKE ?", "%"+strings.ToLower(guess)+"%").
			Order("created_at").
			First(&cat).Error
		if err == nil {
			return &cat, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("ResolveCategory: match %q: %w", guess, err)
		}
	}

	var first domain.Category
	err := s.db.WithContext(ctx).Order("created_at").First(&first).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("ResolveCategory: no categories seeded")
		}
		return nil, fmt.Errorf("ResolveCategory: fallback lookup: %w", err)
	}
	return &first, nil
}

// CreateReceiptGraph resolves the actor and category for the draft, then
// commits the receipt, its line items, its storage record and its ledger
// record in one transaction. Either all four land or none do. On success the
// fully composed aggregate is reloaded and returned.
func (s *Store) CreateReceiptGraph(ctx context.Context, draft ReceiptDraft) (*domain.Receipt, error) {
	actor, err := s.ResolveActor(ctx, draft.AuditorAddress)
	if err != nil {
		return nil, fmt.Errorf("CreateReceiptGraph: %w", err)
	}
	category, err := s.ResolveCategory(ctx, draft.CategoryGuess)
	if err != nil {
		return nil, fmt.Errorf("CreateReceiptGraph: %w", err)
	}

	amount := decimal.NewFromInt(draft.Amount)
	receipt := &domain.Receipt{
		ID:          uuid.NewString(),
		VendorName:  draft.VendorName,
		ReceiptDate: draft.ReceiptDate,
		// Tax and subtotal are not extracted separately; both carry the
		// grand total for now.
		Subtotal:    amount,
		TaxAmount:   amount,
		TotalAmount: amount,
		Status:      draft.Status,
		CategoryID:  category.ID,
		ActorID:     actor.ID,
	}
	if len(draft.RawExtraction) > 0 {
		receipt.RawExtraction = datatypes.JSON(draft.RawExtraction)
	}

	items := make([]domain.ReceiptItem, 0, len(draft.Items))
	for _, it := range draft.Items {
		items = append(items, domain.ReceiptItem{
			ID:          uuid.NewString(),
			ReceiptID:   receipt.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   decimal.NewFromInt(it.UnitPrice),
			LineTotal:   decimal.NewFromInt(it.LineTotal),
		})
	}

	storageRec := &domain.StorageRecord{
		ID:        uuid.NewString(),
		ReceiptID: receipt.ID,
		CID:       draft.CID,
		FileHash:  draft.FileHash,
		ByteSize:  draft.ByteSize,
		MimeType:  draft.MimeType,
	}
	ledgerRec := &domain.LedgerRecord{
		ID:        uuid.NewString(),
		ReceiptID: receipt.ID,
		TxHash:    draft.TxHash,
		Network:   draft.Network,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(receipt).Error; err != nil {
			return fmt.Errorf("insert receipt: %w", err)
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return fmt.Errorf("insert line items: %w", err)
			}
		}
		if err := tx.Create(storageRec).Error; err != nil {
			return fmt.Errorf("insert storage record: %w", err)
		}
		if err := tx.Create(ledgerRec).Error; err != nil {
			return fmt.Errorf("insert ledger record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("CreateReceiptGraph: commit: %w", err)
	}

	return s.GetReceipt(ctx, receipt.ID)
}

// GetReceipt loads one receipt with all dependents. Returns ErrNotFound when
// it does not exist.
func (s *Store) GetReceipt(ctx context.Context, id string) (*domain.Receipt, error) {
	var receipt domain.Receipt
	err := s.preloaded(ctx).First(&receipt, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("GetReceipt: %w", err)
	}
	return &receipt, nil
}

// ListReceipts returns all receipts with dependents, newest first.
func (s *Store) ListReceipts(ctx context.Context) ([]*domain.Receipt, error) {
	var receipts []*domain.Receipt
	err := s.preloaded(ctx).Order("created_at DESC").Find(&receipts).Error
	if err != nil {
		return nil, fmt.Errorf("ListReceipts: %w", err)
	}
	return receipts, nil
}

// ReceiptSummary is the light projection the stats reduce runs over.
type ReceiptSummary struct {
	ID           string
	TotalAmount  decimal.Decimal
	Status       string
	ReceiptDate  time.Time
	CategoryName string
}

// ListReceiptSummaries returns the per-receipt fields needed for dashboard
// aggregation, without loading line items or records.
func (s *Store) ListReceiptSummaries(ctx context.Context) ([]ReceiptSummary, error) {
	var out []ReceiptSummary
	err := s.db.WithContext(ctx).
		Table("receipts").
		Select("receipts.id, receipts.total_amount, receipts.status, receipts.receipt_date, categories.name AS category_name").
		Joins("LEFT JOIN categories ON categories.id = receipts.category_id").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("ListReceiptSummaries: %w", err)
	}
	return out, nil
}

func (s *Store) preloaded(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Category").
		Preload("Actor").
		Preload("Items").
		Preload("StorageRecord").
		Preload("LedgerRecord")
}
