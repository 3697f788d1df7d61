package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)

// Service checks whether an actor may perform an action on an object within an organization.
type Service interface {
	Authorize(ctx context.Context, actor string, orgID string, object string, action string) error
	AssignRole(ctx context.Context, orgID snowflake.ID, userID snowflake.ID, role Role) error
}

type Role string

const (
	RoleOwner          Role = "owner"
	RoleAdmin          Role = "admin"
	RolePricingManager Role = "pricing_manager"
	RoleMember         Role = "member"
)

var (
	ErrInvalidActor        = errors.New("invalid_actor")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidObject       = errors.New("invalid_object")
	ErrInvalidAction       = errors.New("invalid_action")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrForbidden           = errors.New("forbidden")
)
