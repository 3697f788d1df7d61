package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/pricerules/internal/audit/domain"
	"github.com/smallbiznis/pricerules/internal/orgcontext"
	"github.com/smallbiznis/pricerules/internal/pricerule/domain"
	"github.com/smallbiznis/pricerules/internal/pricerule/engine"
	"github.com/smallbiznis/pricerules/internal/pricerule/listprice"
	"go.uber.org/zap"
)

func (s *Service) RedeemPromotion(ctx context.Context, id string) (*domain.Response, error) {
	orgID, err := s.orgID(ctx)
	if err != nil {
		return nil, err
	}
	ruleID, err := parseID(id)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	rule, err := s.repo.FindByID(ctx, s.db, orgID, ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, domain.ErrNotFound
	}
	promo, ok := rule.Scope().(domain.PromotionScope)
	if !ok {
		return nil, domain.ErrNotPromotion
	}
	if promo.UsageExhausted() {
		s.metrics.RecordRedemption(ctx, orgID.String(), "limit_reached")
		return nil, domain.ErrUsageLimitReached
	}
	now := s.clock.Now()
	if !engine.IsActiveAt(rule, now) {
		s.metrics.RecordRedemption(ctx, orgID.String(), "inactive")
		return nil, domain.ErrInvalidStatus
	}

	updated, err := s.repo.IncrementUsage(ctx, s.db, orgID, ruleID, now)
	if err != nil {
		return nil, err
	}
	if !updated {
		s.metrics.RecordRedemption(ctx, orgID.String(), "limit_reached")
		return nil, domain.ErrUsageLimitReached
	}

	rule, err = s.repo.FindByID(ctx, s.db, orgID, ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, domain.ErrNotFound
	}

	s.metrics.RecordRedemption(ctx, orgID.String(), "ok")
	s.afterMutation(ctx, auditdomain.ActionPriceRuleRedeem, domain.EventRuleRedeemed, rule, map[string]any{
		"current_usage_count": rule.CurrentUsageCount,
	})
	return s.toResponse(rule), nil
}

// RefreshStatuses rewrites stored statuses that time has made stale. It is
// scoped to the organization in ctx when present, otherwise it sweeps every
// organization.
func (s *Service) RefreshStatuses(ctx context.Context) (int, error) {
	var scope *snowflake.ID
	if orgID, ok := orgcontext.OrgIDFromContext(ctx); ok && orgID != 0 {
		scope = &orgID
	}

	rules, err := s.repo.ListRefreshable(ctx, s.db, scope)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	touched := make(map[snowflake.ID]struct{})
	changed := 0
	for i := range rules {
		rule := &rules[i]
		next, ok := engine.RefreshStatus(rule, now)
		if !ok {
			continue
		}
		if err := s.repo.UpdateStatus(ctx, s.db, rule.OrgID, rule.ID, next, now); err != nil {
			return changed, err
		}

		previous := rule.Status
		rule.Status = next
		rule.UpdatedAt = now
		changed++
		touched[rule.OrgID] = struct{}{}

		s.metrics.RecordStatusChange(ctx, string(previous), string(next))
		s.emitAudit(ctx, auditdomain.ActionPriceRuleStatusChange, rule, map[string]any{
			"from_status": string(previous),
			"to_status":   string(next),
		})
		s.publish(ctx, domain.EventRuleStatusChanged, rule)
	}

	for orgID := range touched {
		s.invalidate(ctx, orgID)
	}
	if changed > 0 {
		s.log.Info("rule statuses refreshed", zap.Int("changed", changed))
	}
	return changed, nil
}

func (s *Service) SetSupplierListPrice(ctx context.Context, req domain.SupplierListPriceRequest) (*domain.SupplierListPrice, error) {
	orgID, err := s.orgID(ctx)
	if err != nil {
		return nil, err
	}
	if s.listPrices == nil {
		return nil, domain.ErrInvalidSupplier
	}
	supplierID := strings.TrimSpace(req.SupplierID)
	if supplierID == "" {
		return nil, domain.ErrInvalidSupplier
	}
	itemID := strings.TrimSpace(req.ItemID)
	if itemID == "" {
		return nil, domain.ErrInvalidItem
	}
	if req.Amount.IsNegative() {
		return nil, domain.ErrInvalidValue
	}

	price := &domain.SupplierListPrice{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		SupplierID: supplierID,
		ItemID:     itemID,
		Amount:     req.Amount,
	}
	listprice.Stamp(price, s.clock.Now())
	if err := s.listPrices.Upsert(ctx, price); err != nil {
		return nil, err
	}

	if s.auditSvc != nil {
		err := s.auditSvc.Record(ctx, auditdomain.Entry{
			OrgID:      &orgID,
			Action:     auditdomain.ActionListPriceUpsert,
			TargetType: auditdomain.TargetListPrice,
			TargetID:   price.ID.String(),
			Metadata: map[string]any{
				"supplier_id": supplierID,
				"item_id":     itemID,
				"amount":      price.Amount.String(),
			},
		})
		if err != nil {
			s.log.Warn("audit log failed", zap.String("action", string(auditdomain.ActionListPriceUpsert)), zap.Error(err))
		}
	}
	return price, nil
}

func (s *Service) afterMutation(ctx context.Context, action auditdomain.Action, eventType domain.EventType, rule *domain.PriceRule, extra map[string]any) {
	s.metrics.RecordRuleMutation(ctx, rule.OrgID.String(), string(action))
	s.emitAudit(ctx, action, rule, extra)
	s.publish(ctx, eventType, rule)
	s.invalidate(ctx, rule.OrgID)
}

// emitAudit never fails the caller; a failed audit write is logged.
func (s *Service) emitAudit(ctx context.Context, action auditdomain.Action, rule *domain.PriceRule, extra map[string]any) {
	if s.auditSvc == nil || rule == nil {
		return
	}
	metadata := map[string]any{
		"code":             rule.Code,
		"name":             rule.Name,
		"rule_type":        string(rule.RuleType),
		"calculation_type": string(rule.CalculationType),
		"value":            rule.Value.String(),
		"priority":         rule.Priority,
		"status":           string(rule.Status),
	}
	for key, value := range extra {
		if key == "" {
			continue
		}
		metadata[key] = value
	}

	orgID := rule.OrgID
	err := s.auditSvc.Record(ctx, auditdomain.Entry{
		OrgID:      &orgID,
		Action:     action,
		TargetType: auditdomain.TargetPriceRule,
		TargetID:   rule.ID.String(),
		Metadata:   metadata,
	})
	if err != nil {
		s.log.Warn("audit log failed",
			zap.String("action", string(action)),
			zap.String("price_rule_id", rule.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) publish(ctx context.Context, eventType domain.EventType, rule *domain.PriceRule) {
	if s.publisher == nil {
		return
	}
	event := domain.RuleEvent{
		Type:       eventType,
		OrgID:      rule.OrgID.String(),
		RuleID:     rule.ID.String(),
		RuleType:   rule.RuleType,
		Status:     rule.Status,
		OccurredAt: s.clock.Now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("rule event publish failed",
			zap.String("type", string(eventType)),
			zap.String("price_rule_id", event.RuleID),
			zap.Error(err),
		)
	}
}

func (s *Service) invalidate(ctx context.Context, orgID snowflake.ID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, orgID)
	}
}
