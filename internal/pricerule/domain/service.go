package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/pricerules/pkg/db/pagination"
)

//go:generate mockgen -source=service.go -destination=../mocks/mock_service.go -package=mocks
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	GetApplicableRules(ctx context.Context, req ApplicableRequest) ([]Response, error)
	Calculate(ctx context.Context, req CalculateRequest) (*CalculationResult, error)
	RedeemPromotion(ctx context.Context, id string) (*Response, error)
	RefreshStatuses(ctx context.Context) (int, error)
	SetSupplierListPrice(ctx context.Context, req SupplierListPriceRequest) (*SupplierListPrice, error)
}

type CreateRequest struct {
	Code            string          `json:"code" yaml:"code"`
	Name            string          `json:"name" yaml:"name"`
	Description     string          `json:"description" yaml:"description"`
	RuleType        RuleType        `json:"rule_type" yaml:"rule_type"`
	CalculationType CalculationType `json:"calculation_type" yaml:"calculation_type"`
	Value           decimal.Decimal `json:"value" yaml:"value"`
	Priority        *int            `json:"priority" yaml:"priority"`
	Status          *Status         `json:"status" yaml:"status"`
	ValidFrom       *time.Time      `json:"valid_from" yaml:"valid_from"`
	ValidTo         *time.Time      `json:"valid_to" yaml:"valid_to"`
	ItemID          string          `json:"item_id" yaml:"item_id"`
	ItemIDs         []string        `json:"item_ids" yaml:"item_ids"`
	CategoryID      string          `json:"category_id" yaml:"category_id"`
	CategoryIDs     []string        `json:"category_ids" yaml:"category_ids"`
	SupplierID      string          `json:"supplier_id" yaml:"supplier_id"`
	PartnerID       string          `json:"partner_id" yaml:"partner_id"`
	MinQuantity     *int            `json:"min_quantity" yaml:"min_quantity"`
	MaxUsageCount   *int            `json:"max_usage_count" yaml:"max_usage_count"`
	Metadata        map[string]any  `json:"metadata" yaml:"metadata"`
}

// UpdateRequest is a partial patch; nil fields are left untouched. The rule
// type cannot change, so scoping fields are validated against the stored type.
type UpdateRequest struct {
	ID              string           `json:"-"`
	Code            *string          `json:"code"`
	Name            *string          `json:"name"`
	Description     *string          `json:"description"`
	CalculationType *CalculationType `json:"calculation_type"`
	Value           *decimal.Decimal `json:"value"`
	Priority        *int             `json:"priority"`
	Status          *Status          `json:"status"`
	ValidFrom       *time.Time       `json:"valid_from"`
	ValidTo         *time.Time       `json:"valid_to"`
	ClearValidFrom  bool             `json:"clear_valid_from"`
	ClearValidTo    bool             `json:"clear_valid_to"`
	ItemID          *string          `json:"item_id"`
	ItemIDs         *[]string        `json:"item_ids"`
	CategoryID      *string          `json:"category_id"`
	CategoryIDs     *[]string        `json:"category_ids"`
	SupplierID      *string          `json:"supplier_id"`
	PartnerID       *string          `json:"partner_id"`
	MinQuantity     *int             `json:"min_quantity"`
	MaxUsageCount   *int             `json:"max_usage_count"`
	Metadata        map[string]any   `json:"metadata"`
}

type ListRequest struct {
	pagination.Page
	RuleType        string
	Status          string
	CalculationType string
	ItemID          string
	CategoryID      string
	SupplierID      string
	PartnerID       string
	Search          string
	SortBy          string
	OrderBy         string
}

type ListResponse struct {
	Data []Response          `json:"data"`
	Meta pagination.PageMeta `json:"meta"`
}

type ApplicableRequest struct {
	ItemID     string `json:"item_id"`
	CategoryID string `json:"category_id"`
	SupplierID string `json:"supplier_id"`
	PartnerID  string `json:"partner_id"`
	Quantity   int    `json:"quantity"`
}

type CalculateRequest struct {
	ItemID     string          `json:"item_id"`
	CategoryID string          `json:"category_id"`
	SupplierID string          `json:"supplier_id"`
	PartnerID  string          `json:"partner_id"`
	Quantity   int             `json:"quantity"`
	BasePrice  decimal.Decimal `json:"base_price"`
	Date       *time.Time      `json:"date"`
}

type SupplierListPriceRequest struct {
	SupplierID string          `json:"supplier_id"`
	ItemID     string          `json:"item_id"`
	Amount     decimal.Decimal `json:"amount"`
}

type Response struct {
	ID                snowflake.ID    `json:"id"`
	OrganizationID    snowflake.ID    `json:"organization_id"`
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	RuleType          RuleType        `json:"rule_type"`
	CalculationType   CalculationType `json:"calculation_type"`
	Value             decimal.Decimal `json:"value"`
	Priority          int             `json:"priority"`
	Status            Status          `json:"status"`
	ValidFrom         *time.Time      `json:"valid_from,omitempty"`
	ValidTo           *time.Time      `json:"valid_to,omitempty"`
	ItemID            *string         `json:"item_id,omitempty"`
	ItemIDs           []string        `json:"item_ids,omitempty"`
	CategoryID        *string         `json:"category_id,omitempty"`
	CategoryIDs       []string        `json:"category_ids,omitempty"`
	SupplierID        *string         `json:"supplier_id,omitempty"`
	PartnerID         *string         `json:"partner_id,omitempty"`
	MinQuantity       *int            `json:"min_quantity,omitempty"`
	MaxUsageCount     *int            `json:"max_usage_count,omitempty"`
	CurrentUsageCount int             `json:"current_usage_count"`
	Metadata          map[string]any  `json:"metadata,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// RuleCache caches candidate rule sets per organization. Callers read
// Generation before loading from the store and pass it to Set; a Set whose
// generation was superseded by Invalidate is dropped.
type RuleCache interface {
	Get(ctx context.Context, orgID snowflake.ID, key string) ([]PriceRule, bool)
	Generation(ctx context.Context, orgID snowflake.ID) int64
	Set(ctx context.Context, orgID snowflake.ID, key string, generation int64, rules []PriceRule)
	Invalidate(ctx context.Context, orgID snowflake.ID)
}

type EventType string

const (
	EventRuleCreated       EventType = "price_rule.created"
	EventRuleUpdated       EventType = "price_rule.updated"
	EventRuleDeleted       EventType = "price_rule.deleted"
	EventRuleStatusChanged EventType = "price_rule.status_changed"
	EventRuleRedeemed      EventType = "price_rule.redeemed"
)

type RuleEvent struct {
	Type       EventType `json:"type"`
	OrgID      string    `json:"organization_id"`
	RuleID     string    `json:"rule_id"`
	RuleType   RuleType  `json:"rule_type,omitempty"`
	Status     Status    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher announces rule changes to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event RuleEvent) error
}

// ListPriceResolver looks up the supplier list price used by LIST_PRICE rules.
type ListPriceResolver interface {
	Resolve(ctx context.Context, orgID snowflake.ID, supplierID, itemID string) (decimal.Decimal, bool, error)
}

var (
	ErrNotFound               = errors.New("not_found")
	ErrInvalidOrganization    = errors.New("invalid_organization")
	ErrInvalidID              = errors.New("invalid_id")
	ErrInvalidName            = errors.New("invalid_name")
	ErrInvalidCode            = errors.New("invalid_code")
	ErrInvalidRuleType        = errors.New("invalid_rule_type")
	ErrInvalidCalculationType = errors.New("invalid_calculation_type")
	ErrInvalidValue           = errors.New("invalid_value")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrInvalidValidityWindow  = errors.New("invalid_validity_window")
	ErrInvalidScope           = errors.New("invalid_scope")
	ErrInvalidItem            = errors.New("invalid_item")
	ErrInvalidBasePrice       = errors.New("invalid_base_price")
	ErrInvalidQuantity        = errors.New("invalid_quantity")
	ErrInvalidSupplier        = errors.New("invalid_supplier")
	ErrDuplicateCode          = errors.New("duplicate_code")
	ErrUsageLimitReached      = errors.New("usage_limit_reached")
	ErrNotPromotion           = errors.New("not_promotion")
)
