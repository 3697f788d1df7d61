package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pricerules/pkg/db/pagination"
)

type Action string

const (
	ActionPriceRuleCreate       Action = "price_rule.create"
	ActionPriceRuleUpdate       Action = "price_rule.update"
	ActionPriceRuleDelete       Action = "price_rule.delete"
	ActionPriceRuleRedeem       Action = "price_rule.redeem"
	ActionPriceRuleStatusChange Action = "price_rule.status_change"
	ActionListPriceUpsert       Action = "supplier_list_price.upsert"
	ActionRoleAssigned          Action = "authorization.role_assigned"
	ActionAccessGranted         Action = "authorization.granted"
	ActionAccessDenied          Action = "authorization.denied"
)

type TargetType string

const (
	TargetPriceRule     TargetType = "price_rule"
	TargetListPrice     TargetType = "supplier_list_price"
	TargetUser          TargetType = "user"
	TargetAuthorization TargetType = "authorization"
)

// Entry is one audit record. Empty OrgID and actor fields are filled from
// the request context.
type Entry struct {
	OrgID      *snowflake.ID
	ActorType  string
	ActorID    string
	Action     Action
	TargetType TargetType
	TargetID   string
	Metadata   map[string]any
}

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

//go:generate mockgen -source=service.go -destination=../mocks/mock_service.go -package=mocks
type Service interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
	ErrInvalidTimeRange    = errors.New("invalid_time_range")
	ErrInvalidAction       = errors.New("invalid_action")
)
