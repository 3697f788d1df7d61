package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type RuleType string

const (
	RuleTypePromotion RuleType = "PROMOTION"
	RuleTypePartner   RuleType = "PARTNER"
	RuleTypeItem      RuleType = "ITEM"
	RuleTypeSupplier  RuleType = "SUPPLIER"
	RuleTypeCategory  RuleType = "CATEGORY"
	RuleTypeList      RuleType = "LIST"
)

type CalculationType string

const (
	CalculationFixed      CalculationType = "FIXED"
	CalculationPercentage CalculationType = "PERCENTAGE"
	CalculationDiscount   CalculationType = "DISCOUNT"
	CalculationListPrice  CalculationType = "LIST_PRICE"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusScheduled Status = "SCHEDULED"
	StatusExpired   Status = "EXPIRED"
)

// PriceRule is stored flat; the fields that matter for a given RuleType are
// exposed through Scope.
type PriceRule struct {
	ID                snowflake.ID                `json:"id" gorm:"primaryKey"`
	OrgID             snowflake.ID                `json:"organization_id" gorm:"column:org_id;not null;index;uniqueIndex:ux_price_rules_org_code,priority:1"`
	Code              string                      `json:"code" gorm:"size:255;not null;uniqueIndex:ux_price_rules_org_code,priority:2"`
	Name              string                      `json:"name" gorm:"type:text;not null"`
	Description       string                      `json:"description,omitempty" gorm:"type:text"`
	RuleType          RuleType                    `json:"rule_type" gorm:"size:32;not null;index"`
	CalculationType   CalculationType             `json:"calculation_type" gorm:"size:32;not null"`
	Value             decimal.Decimal             `json:"value" gorm:"type:numeric(20,6);not null"`
	Priority          int                         `json:"priority" gorm:"not null;default:0"`
	Status            Status                      `json:"status" gorm:"size:32;not null;index"`
	ValidFrom         *time.Time                  `json:"valid_from,omitempty"`
	ValidTo           *time.Time                  `json:"valid_to,omitempty"`
	ItemID            *string                     `json:"item_id,omitempty" gorm:"size:255;index"`
	ItemIDs           datatypes.JSONSlice[string] `json:"item_ids,omitempty"`
	CategoryID        *string                     `json:"category_id,omitempty" gorm:"size:255;index"`
	CategoryIDs       datatypes.JSONSlice[string] `json:"category_ids,omitempty"`
	SupplierID        *string                     `json:"supplier_id,omitempty" gorm:"size:255;index"`
	PartnerID         *string                     `json:"partner_id,omitempty" gorm:"size:255;index"`
	MinQuantity       *int                        `json:"min_quantity,omitempty"`
	MaxUsageCount     *int                        `json:"max_usage_count,omitempty"`
	CurrentUsageCount int                         `json:"current_usage_count" gorm:"not null;default:0"`
	Metadata          datatypes.JSONMap           `json:"metadata,omitempty"`
	CreatedAt         time.Time                   `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time                   `json:"updated_at" gorm:"not null"`
}

func (PriceRule) TableName() string { return "price_rules" }

// SupplierListPrice backs LIST_PRICE rules.
type SupplierListPrice struct {
	ID         snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrgID      snowflake.ID    `json:"organization_id" gorm:"column:org_id;not null;uniqueIndex:ux_supplier_list_prices_key,priority:1"`
	SupplierID string          `json:"supplier_id" gorm:"size:255;not null;uniqueIndex:ux_supplier_list_prices_key,priority:2"`
	ItemID     string          `json:"item_id" gorm:"size:255;not null;uniqueIndex:ux_supplier_list_prices_key,priority:3"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:numeric(20,6);not null"`
	CreatedAt  time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt  time.Time       `json:"updated_at" gorm:"not null"`
}

func (SupplierListPrice) TableName() string { return "supplier_list_prices" }

// CalculationContext describes the line item being priced. Empty optional
// identifiers mean the caller does not know that dimension.
type CalculationContext struct {
	ItemID     string
	CategoryID string
	SupplierID string
	PartnerID  string
	Quantity   int
	BasePrice  decimal.Decimal
	Date       time.Time
}

type Outcome string

const (
	OutcomeApplied     Outcome = "APPLIED"
	OutcomeUnsupported Outcome = "UNSUPPORTED"
)

type AppliedRule struct {
	RuleID          snowflake.ID    `json:"rule_id"`
	Name            string          `json:"name"`
	RuleType        RuleType        `json:"rule_type"`
	CalculationType CalculationType `json:"calculation_type"`
	Value           decimal.Decimal `json:"value"`
	PriceEffect     decimal.Decimal `json:"price_effect"`
	Priority        int             `json:"priority"`
	Outcome         Outcome         `json:"outcome"`
}

type CalculationResult struct {
	FinalPrice           decimal.Decimal `json:"final_price"`
	BasePrice            decimal.Decimal `json:"base_price"`
	AppliedRules         []AppliedRule   `json:"applied_rules"`
	TotalDiscount        decimal.Decimal `json:"total_discount"`
	TotalDiscountPercent decimal.Decimal `json:"total_discount_percent"`
	CalculatedAt         time.Time       `json:"calculated_at"`
}
