package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pricerules/pkg/db/option"
	"gorm.io/gorm"
)

type ListFilter struct {
	OrgID           snowflake.ID
	RuleType        RuleType
	Status          Status
	CalculationType CalculationType
	ItemID          string
	CategoryID      string
	SupplierID      string
	PartnerID       string
	Search          string
}

// CandidateFilter carries the equality scoping values of a calculation context.
type CandidateFilter struct {
	OrgID      snowflake.ID
	ItemID     string
	CategoryID string
	SupplierID string
	PartnerID  string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rule *PriceRule) error
	Update(ctx context.Context, db *gorm.DB, rule *PriceRule) error
	Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*PriceRule, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, opts ...option.QueryOption) ([]PriceRule, error)
	Count(ctx context.Context, db *gorm.DB, filter ListFilter) (int64, error)
	FindCandidates(ctx context.Context, db *gorm.DB, filter CandidateFilter) ([]PriceRule, error)
	// IncrementUsage bumps current_usage_count only while it is below
	// max_usage_count. It reports whether a row was updated.
	IncrementUsage(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, now time.Time) (bool, error)
	// ListRefreshable returns ACTIVE and SCHEDULED rules, for every
	// organization when orgID is nil.
	ListRefreshable(ctx context.Context, db *gorm.DB, orgID *snowflake.ID) ([]PriceRule, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, status Status, now time.Time) error
}

// ListPriceRepository stores supplier list prices used by LIST_PRICE rules.
type ListPriceRepository interface {
	Upsert(ctx context.Context, price *SupplierListPrice) error
	Find(ctx context.Context, orgID snowflake.ID, supplierID, itemID string) (*SupplierListPrice, error)
}
