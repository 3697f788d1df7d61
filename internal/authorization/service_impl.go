package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/pricerules/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectPriceRule         = "price_rule"
	ObjectSupplierListPrice = "supplier_list_price"
	ObjectAuditLog          = "audit_log"
)

const (
	ActionPriceRuleView      = "price_rule.view"
	ActionPriceRuleCreate    = "price_rule.create"
	ActionPriceRuleUpdate    = "price_rule.update"
	ActionPriceRuleDelete    = "price_rule.delete"
	ActionPriceRuleCalculate = "price_rule.calculate"
	ActionPriceRuleRedeem    = "price_rule.redeem"

	ActionSupplierListPriceManage = "supplier_list_price.manage"

	ActionAuditLogView = "audit_log.view"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, orgID string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return ErrInvalidOrganization
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, actorType, actorID, err := s.resolveActor(ctx, actor, orgID)
	if err != nil {
		s.auditDecision(ctx, auditdomain.ActionAccessDenied, actorType, actorID, orgID, object, action)
		return err
	}

	domain := domainFor(orgID)
	if actorType == "system" {
		if err := s.ensureGrouping(subject, roleName, domain); err != nil {
			return err
		}
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDecision(ctx, auditdomain.ActionAccessDenied, actorType, actorID, orgID, object, action)
		return ErrForbidden
	}

	if shouldAuditGrant(action) {
		s.auditDecision(ctx, auditdomain.ActionAccessGranted, actorType, actorID, orgID, object, action)
	}
	return nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor string, orgID string) (string, string, string, *string, error) {
	_ = ctx
	if actor == "system" {
		return actor, "role:system", "system", nil, nil
	}
	if strings.HasPrefix(actor, "user:") {
		userIDRaw := strings.TrimPrefix(actor, "user:")
		userID, err := snowflake.ParseString(userIDRaw)
		if err != nil || userID == 0 {
			return "", "", "", nil, ErrInvalidActor
		}
		userIDStr := userID.String()
		parsedOrgID, err := snowflake.ParseString(orgID)
		if err != nil || parsedOrgID == 0 {
			return actor, "", "user", &userIDStr, ErrInvalidOrganization
		}
		roleName, err := s.roleForUser(actor, parsedOrgID)
		if err != nil {
			return actor, "", "user", &userIDStr, err
		}
		return actor, roleName, "user", &userIDStr, nil
	}
	return "", "", "", nil, ErrInvalidActor
}

// roleForUser reads the role assigned through AssignRole.
func (s *ServiceImpl) roleForUser(subject string, orgID snowflake.ID) (string, error) {
	rules, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domainFor(orgID.String()))
	if err != nil {
		return "", err
	}
	for _, rule := range rules {
		if len(rule) >= 2 && strings.HasPrefix(rule[1], "role:") {
			return rule[1], nil
		}
	}
	return "", ErrForbidden
}

func (s *ServiceImpl) AssignRole(ctx context.Context, orgID snowflake.ID, userID snowflake.ID, role Role) error {
	if orgID == 0 {
		return ErrInvalidOrganization
	}
	if userID == 0 {
		return ErrInvalidActor
	}
	roleName, err := parseRole(role)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("user:%s", userID.String())
	if err := s.ensureGrouping(subject, roleName, domainFor(orgID.String())); err != nil {
		return err
	}

	if s.auditSvc == nil {
		return nil
	}
	if err := s.auditSvc.Record(ctx, auditdomain.Entry{
		OrgID:      &orgID,
		Action:     auditdomain.ActionRoleAssigned,
		TargetType: auditdomain.TargetUser,
		TargetID:   userID.String(),
		Metadata:   map[string]any{"role": string(role)},
	}); err != nil {
		s.log.Warn("role assignment audit failed",
			zap.String("org_id", orgID.String()),
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}
	return nil
}

// ensureGrouping leaves subject with exactly roleName inside domain. A
// previous role in the same org is revoked.
func (s *ServiceImpl) ensureGrouping(subject, roleName, domain string) error {
	current, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, link := range current {
		if len(link) < 2 || link[1] == roleName {
			continue
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(link[0], link[1], domain); err != nil {
			return fmt.Errorf("revoke %s: %w", link[1], err)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil || has {
		return err
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func parseRole(role Role) (string, error) {
	switch Role(strings.ToLower(strings.TrimSpace(string(role)))) {
	case RoleOwner:
		return "role:owner", nil
	case RoleAdmin:
		return "role:admin", nil
	case RolePricingManager:
		return "role:pricing_manager", nil
	case RoleMember:
		return "role:member", nil
	default:
		return "", ErrInvalidRole
	}
}

func domainFor(orgID string) string {
	return fmt.Sprintf("org:%s", orgID)
}

// auditDecision records an access decision against the org. Decisions on
// unparseable orgs are not recorded.
func (s *ServiceImpl) auditDecision(ctx context.Context, decision auditdomain.Action, actorType string, actorID *string, orgID string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	parsedOrgID, err := snowflake.ParseString(orgID)
	if err != nil || parsedOrgID == 0 {
		return
	}
	entry := auditdomain.Entry{
		OrgID:      &parsedOrgID,
		ActorType:  actorType,
		Action:     decision,
		TargetType: auditdomain.TargetAuthorization,
		TargetID:   object,
		Metadata: map[string]any{
			"object":  object,
			"action":  action,
			"subject": actorSubject(actorType, actorID),
		},
	}
	if actorID != nil {
		entry.ActorID = *actorID
	}
	_ = s.auditSvc.Record(ctx, entry)
}

func actorSubject(actorType string, actorID *string) string {
	switch actorType {
	case "system":
		return "system"
	case "user":
		if actorID != nil && strings.TrimSpace(*actorID) != "" {
			return fmt.Sprintf("user:%s", strings.TrimSpace(*actorID))
		}
	}
	return ""
}

func shouldAuditGrant(action string) bool {
	switch action {
	case ActionPriceRuleDelete, ActionSupplierListPriceManage:
		return true
	default:
		return false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	viewer := []string{ActionPriceRuleView, ActionPriceRuleCalculate}
	editor := append([]string{
		ActionPriceRuleCreate,
		ActionPriceRuleUpdate,
		ActionPriceRuleDelete,
		ActionPriceRuleRedeem,
	}, viewer...)

	policies := [][]string{}
	for _, action := range viewer {
		policies = append(policies, []string{"role:member", ObjectPriceRule, action})
	}
	for _, role := range []string{"role:pricing_manager", "role:admin", "role:owner", "role:system"} {
		for _, action := range editor {
			policies = append(policies, []string{role, ObjectPriceRule, action})
		}
		policies = append(policies, []string{role, ObjectSupplierListPrice, ActionSupplierListPriceManage})
	}
	for _, role := range []string{"role:admin", "role:owner", "role:system"} {
		policies = append(policies, []string{role, ObjectAuditLog, ActionAuditLogView})
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
