package listprice

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/pricerules/internal/pricerule/domain"
	"github.com/smallbiznis/pricerules/pkg/repository"
	"gorm.io/gorm"
)

// Store keeps supplier list prices keyed by (org, supplier, item).
type Store struct {
	prices repository.Store[domain.SupplierListPrice]
}

func NewStore(db *gorm.DB) *Store {
	return &Store{prices: repository.ProvideStore[domain.SupplierListPrice](db, repository.UniqueKey[domain.SupplierListPrice]{
		Columns: []string{"org_id", "supplier_id", "item_id"},
		Updates: []string{"amount", "updated_at"},
		Lookup: func(p *domain.SupplierListPrice) *domain.SupplierListPrice {
			return &domain.SupplierListPrice{OrgID: p.OrgID, SupplierID: p.SupplierID, ItemID: p.ItemID}
		},
	})}
}

func ProvideRepository(s *Store) domain.ListPriceRepository { return s }

func ProvideResolver(s *Store) domain.ListPriceResolver { return s }

// Upsert replaces the amount of an existing (org, supplier, item) entry or
// inserts price as a new one. price holds the stored row afterwards.
func (s *Store) Upsert(ctx context.Context, price *domain.SupplierListPrice) error {
	return s.prices.Upsert(ctx, price)
}

func (s *Store) Find(ctx context.Context, orgID snowflake.ID, supplierID, itemID string) (*domain.SupplierListPrice, error) {
	return s.prices.FindOne(ctx, &domain.SupplierListPrice{
		OrgID:      orgID,
		SupplierID: supplierID,
		ItemID:     itemID,
	})
}

func (s *Store) Resolve(ctx context.Context, orgID snowflake.ID, supplierID, itemID string) (decimal.Decimal, bool, error) {
	if supplierID == "" || itemID == "" {
		return decimal.Zero, false, nil
	}
	price, err := s.Find(ctx, orgID, supplierID, itemID)
	if err != nil {
		return decimal.Zero, false, err
	}
	if price == nil {
		return decimal.Zero, false, nil
	}
	return price.Amount, true, nil
}

// Stamp fills CreatedAt once and always refreshes UpdatedAt.
func Stamp(price *domain.SupplierListPrice, now time.Time) {
	if price.CreatedAt.IsZero() {
		price.CreatedAt = now
	}
	price.UpdatedAt = now
}
