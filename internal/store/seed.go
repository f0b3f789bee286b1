package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dnovriandi/receipt-audit/internal/domain"
)

// GuestWalletAddress identifies the seeded fallback actor that uploads from
// unrecognized addresses are attributed to.
const GuestWalletAddress = "0x0000000000000000000000000000000000000000"

// DefaultCategories is the standard spend taxonomy seeded into every
// deployment. The category fallback in ResolveCategory relies on at least
// one of these existing.
var DefaultCategories = []domain.Category{
	{Name: "Travel & Transport"},
	{Name: "Food & Beverage"},
	{Name: "Office Supplies"},
	{Name: "Accommodation"},
}

// Seed idempotently creates the default categories and the guest actor.
func (s *Store) Seed(ctx context.Context) error {
	db := s.db.WithContext(ctx)

	for _, c := range DefaultCategories {
		cat := domain.Category{ID: uuid.NewString(), Name: c.Name, Description: c.Description}
		err := db.Where("name = ?", c.Name).FirstOrCreate(&cat).Error
		if err != nil {
			return fmt.Errorf("Seed: category %q: %w", c.Name, err)
		}
	}

	guest := domain.Actor{
		ID:            uuid.NewString(),
		Name:          "Guest Auditor",
		WalletAddress: GuestWalletAddress,
	}
	err := db.Where("wallet_address = ?", GuestWalletAddress).FirstOrCreate(&guest).Error
	if err != nil {
		return fmt.Errorf("Seed: guest actor: %w", err)
	}

	return nil
}

// SeedActor idempotently registers an auditor by wallet address.
func (s *Store) SeedActor(ctx context.Context, name, walletAddress string) (*domain.Actor, error) {
	actor := domain.Actor{
		ID:            uuid.NewString(),
		Name:          name,
		WalletAddress: walletAddress,
	}
	err := s.db.WithContext(ctx).Where("wallet_address = ?", walletAddress).FirstOrCreate(&actor).Error
	if err != nil {
		return nil, fmt.Errorf("SeedActor: %q: %w", walletAddress, err)
	}
	return &actor, nil
}
