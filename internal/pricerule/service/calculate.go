package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pricerules/internal/observability/tracing"
	"github.com/smallbiznis/pricerules/internal/pricerule/domain"
	"github.com/smallbiznis/pricerules/internal/pricerule/engine"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "pricerules/pricerule"

func (s *Service) GetApplicableRules(ctx context.Context, req domain.ApplicableRequest) ([]domain.Response, error) {
	orgID, err := s.orgID(ctx)
	if err != nil {
		return nil, err
	}
	quantity, err := normalizeQuantity(req.Quantity)
	if err != nil {
		return nil, err
	}

	in := domain.CalculationContext{
		ItemID:     strings.TrimSpace(req.ItemID),
		CategoryID: strings.TrimSpace(req.CategoryID),
		SupplierID: strings.TrimSpace(req.SupplierID),
		PartnerID:  strings.TrimSpace(req.PartnerID),
		Quantity:   quantity,
	}

	candidates, err := s.candidates(ctx, orgID, in)
	if err != nil {
		return nil, err
	}
	selected := engine.Select(candidates, in)
	engine.SortRules(selected)

	resp := make([]domain.Response, 0, len(selected))
	for i := range selected {
		resp = append(resp, *s.toResponse(&selected[i]))
	}
	return resp, nil
}

func (s *Service) Calculate(ctx context.Context, req domain.CalculateRequest) (*domain.CalculationResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pricerule.calculate", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	result, err := s.calculate(ctx, req, span)
	if err != nil {
		span.SetStatus(codes.Error, "calculation failed")
		span.RecordError(tracing.SafeError(err))
		return nil, err
	}
	return result, nil
}

func (s *Service) calculate(ctx context.Context, req domain.CalculateRequest, span trace.Span) (*domain.CalculationResult, error) {
	orgID, err := s.orgID(ctx)
	if err != nil {
		return nil, err
	}
	itemID := strings.TrimSpace(req.ItemID)
	if itemID == "" {
		return nil, domain.ErrInvalidItem
	}
	if req.BasePrice.IsNegative() {
		return nil, domain.ErrInvalidBasePrice
	}
	quantity, err := normalizeQuantity(req.Quantity)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	date := now
	if req.Date != nil {
		date = req.Date.UTC()
	}

	in := domain.CalculationContext{
		ItemID:     itemID,
		CategoryID: strings.TrimSpace(req.CategoryID),
		SupplierID: strings.TrimSpace(req.SupplierID),
		PartnerID:  strings.TrimSpace(req.PartnerID),
		Quantity:   quantity,
		BasePrice:  req.BasePrice,
		Date:       date,
	}
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("org_id", orgID.String()),
		attribute.String("pricing.item_id", in.ItemID),
		attribute.Int("pricing.quantity", in.Quantity),
	)...)

	candidates, err := s.candidates(ctx, orgID, in)
	if err != nil {
		s.metrics.RecordCalculation(ctx, orgID.String(), "error")
		return nil, err
	}
	selected := engine.Select(candidates, in)

	opts := engine.ComposeOptions{CalculatedAt: now}
	if s.resolver != nil && in.SupplierID != "" && engine.NeedsListPrice(selected, date) {
		amount, ok, err := s.resolver.Resolve(ctx, orgID, in.SupplierID, in.ItemID)
		if err != nil {
			s.metrics.RecordCalculation(ctx, orgID.String(), "error")
			return nil, fmt.Errorf("resolve list price: %w", err)
		}
		if ok {
			opts.ListPrice = &amount
		}
	}

	result := engine.Compose(selected, in, opts)

	span.SetAttributes(tracing.SafeAttributes(attribute.Int("price_rule.count", len(result.AppliedRules)))...)
	s.metrics.RecordCalculation(ctx, orgID.String(), "ok")
	for _, applied := range result.AppliedRules {
		s.metrics.RecordRuleApplied(ctx, string(applied.RuleType), string(applied.CalculationType), string(applied.Outcome))
	}
	s.log.Debug("price calculated",
		zap.String("org_id", orgID.String()),
		zap.String("item_id", in.ItemID),
		zap.Int("candidates", len(selected)),
		zap.Int("applied", len(result.AppliedRules)),
		zap.String("final_price", result.FinalPrice.String()),
	)

	return &result, nil
}

// candidates reads the pre-filtered rule set, going through the rule cache
// when one is configured.
func (s *Service) candidates(ctx context.Context, orgID snowflake.ID, in domain.CalculationContext) ([]domain.PriceRule, error) {
	key := candidateKey(in)
	var generation int64
	if s.cache != nil {
		if rules, ok := s.cache.Get(ctx, orgID, key); ok {
			return rules, nil
		}
		generation = s.cache.Generation(ctx, orgID)
	}

	rules, err := s.repo.FindCandidates(ctx, s.db, domain.CandidateFilter{
		OrgID:      orgID,
		ItemID:     in.ItemID,
		CategoryID: in.CategoryID,
		SupplierID: in.SupplierID,
		PartnerID:  in.PartnerID,
	})
	if err != nil {
		return nil, fmt.Errorf("find candidate rules: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(ctx, orgID, key, generation, rules)
	}
	return rules, nil
}

func candidateKey(in domain.CalculationContext) string {
	return strings.Join([]string{in.ItemID, in.CategoryID, in.SupplierID, in.PartnerID}, "|")
}

// normalizeQuantity treats an omitted quantity as one unit.
func normalizeQuantity(quantity int) (int, error) {
	switch {
	case quantity < 0:
		return 0, domain.ErrInvalidQuantity
	case quantity == 0:
		return 1, nil
	default:
		return quantity, nil
	}
}
