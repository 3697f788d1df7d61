package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/pricerules/internal/audit/domain"
	"github.com/smallbiznis/pricerules/internal/clock"
	"github.com/smallbiznis/pricerules/internal/config"
	"github.com/smallbiznis/pricerules/internal/observability/metrics"
	"github.com/smallbiznis/pricerules/internal/orgcontext"
	"github.com/smallbiznis/pricerules/internal/pricerule/domain"
	"github.com/smallbiznis/pricerules/internal/pricerule/engine"
	"github.com/smallbiznis/pricerules/pkg/db"
	"github.com/smallbiznis/pricerules/pkg/db/option"
	"github.com/smallbiznis/pricerules/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Pricing    *config.PricingConfigHolder `optional:"true"`
	AuditSvc   auditdomain.Service         `optional:"true"`
	Cache      domain.RuleCache            `optional:"true"`
	Publisher  domain.EventPublisher       `optional:"true"`
	ListPrices domain.ListPriceRepository  `optional:"true"`
	Resolver   domain.ListPriceResolver    `optional:"true"`
	Metrics    *metrics.Metrics            `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	pricing    *config.PricingConfigHolder
	auditSvc   auditdomain.Service
	cache      domain.RuleCache
	publisher  domain.EventPublisher
	listPrices domain.ListPriceRepository
	resolver   domain.ListPriceResolver
	metrics    *metrics.Metrics
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("pricerule.service"),
		genID:      p.GenID,
		clock:      clk,
		repo:       p.Repo,
		pricing:    p.Pricing,
		auditSvc:   p.AuditSvc,
		cache:      p.Cache,
		publisher:  p.Publisher,
		listPrices: p.ListPrices,
		resolver:   p.Resolver,
		metrics:    p.Metrics,
	}
}

var listSortColumns = map[string]bool{
	"priority":   true,
	"name":       true,
	"code":       true,
	"created_at": true,
	"updated_at": true,
	"valid_from": true,
	"valid_to":   true,
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	orgID, err := s.orgID(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	ruleType, err := parseRuleType(string(req.RuleType))
	if err != nil {
		return nil, err
	}
	calcType, err := parseCalculationType(string(req.CalculationType))
	if err != nil {
		return nil, err
	}
	if err := validateValue(calcType, req.Value); err != nil {
		return nil, err
	}
	if err := validateWindow(req.ValidFrom, req.ValidTo); err != nil {
		return nil, err
	}
	scope, err := buildScope(ruleType, scopeInputFromCreate(req))
	if err != nil {
		return nil, err
	}
	code, err := deriveCode(req.Code, name)
	if err != nil {
		return nil, err
	}

	priority := s.priorities().For(ruleType)
	if req.Priority != nil {
		priority = *req.Priority
	}

	now := s.clock.Now()
	status := engine.DetermineInitialStatus(req.ValidFrom, req.ValidTo, now)
	if req.Status != nil {
		requested, err := parseStatus(string(*req.Status))
		if err != nil {
			return nil, err
		}
		if requested == domain.StatusInactive {
			status = domain.StatusInactive
		}
	}

	rule := &domain.PriceRule{
		ID:              s.genID.Generate(),
		OrgID:           orgID,
		Code:            code,
		Name:            name,
		Description:     strings.TrimSpace(req.Description),
		CalculationType: calcType,
		Value:           req.Value,
		Priority:        priority,
		Status:          status,
		ValidFrom:       utcPtr(req.ValidFrom),
		ValidTo:         utcPtr(req.ValidTo),
		Metadata:        normalizeMetadata(req.Metadata),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	rule.ApplyScope(scope)

	if err := s.repo.Insert(ctx, s.db, rule); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateCode
		}
		return nil, err
	}

	s.afterMutation(ctx, auditdomain.ActionPriceRuleCreate, domain.EventRuleCreated, rule, nil)
	return s.toResponse(rule), nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	orgID, err := s.orgID(ctx)
	if err != nil {
		return nil, err
	}
	ruleID, err := parseID(req.ID)
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

	changes, err := s.applyPatch(rule, req)
	if err != nil {
		return nil, err
	}

	rule.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, rule); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateCode
		}
		return nil, err
	}

	s.afterMutation(ctx, auditdomain.ActionPriceRuleUpdate, domain.EventRuleUpdated, rule, map[string]any{"changed_fields": changes})
	return s.toResponse(rule), nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	orgID, err := s.orgID(ctx)
	if err != nil {
		return err
	}
	ruleID, err := parseID(id)
	if err != nil {
		return domain.ErrInvalidID
	}

	rule, err := s.repo.FindByID(ctx, s.db, orgID, ruleID)
	if err != nil {
		return err
	}
	if rule == nil {
		return domain.ErrNotFound
	}

	if err := s.repo.Delete(ctx, s.db, orgID, ruleID); err != nil {
		return err
	}

	s.afterMutation(ctx, auditdomain.ActionPriceRuleDelete, domain.EventRuleDeleted, rule, nil)
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
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
	return s.toResponse(rule), nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	orgID, err := s.orgID(ctx)
	if err != nil {
		return nil, err
	}

	filter, err := buildListFilter(orgID, req)
	if err != nil {
		return nil, err
	}

	page := req.Page.Normalize()
	total, err := s.repo.Count(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.List(ctx, s.db, filter,
		option.WithSortBy(option.WithQuerySortBy(req.SortBy, req.OrderBy, listSortColumns)),
		option.WithLimitOffset(page.Limit, page.Offset()),
	)
	if err != nil {
		return nil, err
	}

	data := make([]domain.Response, 0, len(items))
	for i := range items {
		data = append(data, *s.toResponse(&items[i]))
	}

	return &domain.ListResponse{
		Data: data,
		Meta: pagination.BuildPageMeta(total, page),
	}, nil
}

func (s *Service) orgID(ctx context.Context) (snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, domain.ErrInvalidOrganization
	}
	return orgID, nil
}

func (s *Service) priorities() domain.DefaultPriorities {
	if s.pricing == nil {
		return domain.BuiltinPriorities()
	}
	return domain.NewDefaultPriorities(s.pricing.Get().DefaultPriorities)
}

func (s *Service) toResponse(r *domain.PriceRule) *domain.Response {
	resp := &domain.Response{
		ID:                r.ID,
		OrganizationID:    r.OrgID,
		Code:              r.Code,
		Name:              r.Name,
		Description:       r.Description,
		RuleType:          r.RuleType,
		CalculationType:   r.CalculationType,
		Value:             r.Value,
		Priority:          r.Priority,
		Status:            r.Status,
		ValidFrom:         r.ValidFrom,
		ValidTo:           r.ValidTo,
		ItemID:            r.ItemID,
		CategoryID:        r.CategoryID,
		SupplierID:        r.SupplierID,
		PartnerID:         r.PartnerID,
		MinQuantity:       r.MinQuantity,
		MaxUsageCount:     r.MaxUsageCount,
		CurrentUsageCount: r.CurrentUsageCount,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if len(r.ItemIDs) > 0 {
		resp.ItemIDs = []string(r.ItemIDs)
	}
	if len(r.CategoryIDs) > 0 {
		resp.CategoryIDs = []string(r.CategoryIDs)
	}
	if len(r.Metadata) > 0 {
		resp.Metadata = map[string]any(r.Metadata)
	}
	return resp
}
