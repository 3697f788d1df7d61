package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/pricerules/internal/audit/domain"
	auditmocks "github.com/smallbiznis/pricerules/internal/audit/mocks"
	"github.com/smallbiznis/pricerules/internal/cache"
	"github.com/smallbiznis/pricerules/internal/clock"
	"github.com/smallbiznis/pricerules/internal/config"
	"github.com/smallbiznis/pricerules/internal/orgcontext"
	"github.com/smallbiznis/pricerules/internal/pricerule/domain"
	"github.com/smallbiznis/pricerules/internal/pricerule/listprice"
	"github.com/smallbiznis/pricerules/internal/pricerule/repository"
	"github.com/smallbiznis/pricerules/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

type publisherStub struct {
	mu     sync.Mutex
	events []domain.RuleEvent
	err    error
}

func (p *publisherStub) Publish(ctx context.Context, event domain.RuleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *publisherStub) Types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc       domain.Service
	db        *gorm.DB
	clock     *clock.FakeClock
	node      *snowflake.Node
	publisher *publisherStub
	ctx       context.Context
	orgID     snowflake.ID
}

type fixtureOption func(*Params)

func withAudit(svc auditdomain.Service) fixtureOption {
	return func(p *Params) { p.AuditSvc = svc }
}

func withPricing(cfg config.PricingConfig) fixtureOption {
	return func(p *Params) { p.Pricing = config.NewStaticPricingConfigHolder(cfg) }
}

func setupService(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.PriceRule{}, &domain.SupplierListPrice{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(testNow)
	publisher := &publisherStub{}
	pricing := config.NewStaticPricingConfigHolder(config.DefaultPricingConfig())
	store := listprice.NewStore(db)

	params := Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fake,
		Repo:       repository.Provide(),
		Pricing:    pricing,
		Cache:      cache.NewMemoryRuleCache(fake, pricing, nil),
		Publisher:  publisher,
		ListPrices: store,
		Resolver:   store,
	}
	for _, opt := range opts {
		opt(&params)
	}

	orgID := node.Generate()
	return &fixture{
		svc:       New(params),
		db:        db,
		clock:     fake,
		node:      node,
		publisher: publisher,
		ctx:       orgcontext.WithOrgID(context.Background(), orgID),
		orgID:     orgID,
	}
}

func (f *fixture) create(t *testing.T, req domain.CreateRequest) *domain.Response {
	t.Helper()
	resp, err := f.svc.Create(f.ctx, req)
	require.NoError(t, err)
	return resp
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func ptr[T any](v T) *T { return &v }

func TestCreateAssignsDefaults(t *testing.T) {
	ctrl := gomock.NewController(t)
	audit := auditmocks.NewMockService(ctrl)
	f := setupService(t, withAudit(audit))

	audit.EXPECT().
		Record(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, entry auditdomain.Entry) error {
			require.NotNil(t, entry.OrgID)
			assert.Equal(t, f.orgID, *entry.OrgID)
			assert.Equal(t, auditdomain.ActionPriceRuleCreate, entry.Action)
			assert.Equal(t, auditdomain.TargetPriceRule, entry.TargetType)
			assert.Equal(t, "CATEGORY", entry.Metadata["rule_type"])
			return nil
		})

	resp := f.create(t, domain.CreateRequest{
		Name:            "Electronics Markup",
		RuleType:        "category",
		CalculationType: "percentage",
		Value:           dec("35"),
		CategoryID:      "electronics",
	})

	assert.Equal(t, "electronics-markup", resp.Code)
	assert.Equal(t, domain.RuleTypeCategory, resp.RuleType)
	assert.Equal(t, domain.CalculationPercentage, resp.CalculationType)
	assert.Equal(t, 20, resp.Priority)
	assert.Equal(t, domain.StatusActive, resp.Status)
	require.NotNil(t, resp.CategoryID)
	assert.Equal(t, "electronics", *resp.CategoryID)
	assert.Equal(t, f.orgID, resp.OrganizationID)
	assert.Equal(t, []domain.EventType{domain.EventRuleCreated}, f.publisher.Types())
}

func TestCreateUsesConfiguredPriorities(t *testing.T) {
	f := setupService(t, withPricing(config.PricingConfig{DefaultPriorities: map[string]int{"category": 55}}))

	configured := f.create(t, domain.CreateRequest{Name: "Cat", RuleType: domain.RuleTypeCategory, CalculationType: domain.CalculationPercentage, Value: dec("5")})
	assert.Equal(t, 55, configured.Priority)

	builtin := f.create(t, domain.CreateRequest{Name: "Promo", RuleType: domain.RuleTypePromotion, CalculationType: domain.CalculationDiscount, Value: dec("5")})
	assert.Equal(t, 100, builtin.Priority)

	override := f.create(t, domain.CreateRequest{Name: "Override", RuleType: domain.RuleTypeItem, CalculationType: domain.CalculationFixed, Value: dec("5"), Priority: ptr(7)})
	assert.Equal(t, 7, override.Priority)
}

func TestCreateDerivesStatusFromWindow(t *testing.T) {
	f := setupService(t)
	future := testNow.Add(24 * time.Hour)
	past := testNow.Add(-24 * time.Hour)

	scheduled := f.create(t, domain.CreateRequest{Name: "Later", RuleType: domain.RuleTypeList, CalculationType: domain.CalculationPercentage, Value: dec("1"), ValidFrom: &future})
	assert.Equal(t, domain.StatusScheduled, scheduled.Status)

	expired := f.create(t, domain.CreateRequest{Name: "Gone", RuleType: domain.RuleTypeList, CalculationType: domain.CalculationPercentage, Value: dec("1"), ValidTo: &past})
	assert.Equal(t, domain.StatusExpired, expired.Status)

	requestedActive := domain.StatusActive
	stillScheduled := f.create(t, domain.CreateRequest{Name: "Eager", RuleType: domain.RuleTypeList, CalculationType: domain.CalculationPercentage, Value: dec("1"), ValidFrom: &future, Status: &requestedActive})
	assert.Equal(t, domain.StatusScheduled, stillScheduled.Status)

	inactive := domain.StatusInactive
	disabled := f.create(t, domain.CreateRequest{Name: "Off", RuleType: domain.RuleTypeList, CalculationType: domain.CalculationPercentage, Value: dec("1"), Status: &inactive})
	assert.Equal(t, domain.StatusInactive, disabled.Status)
}

func TestCreateValidation(t *testing.T) {
	f := setupService(t)
	from := testNow.Add(48 * time.Hour)
	to := testNow

	cases := []struct {
		name string
		ctx  context.Context
		req  domain.CreateRequest
		err  error
	}{
		{"missing organization", context.Background(), domain.CreateRequest{Name: "x", RuleType: domain.RuleTypeList, CalculationType: domain.CalculationFixed}, domain.ErrInvalidOrganization},
		{"blank name", f.ctx, domain.CreateRequest{Name: "  ", RuleType: domain.RuleTypeList, CalculationType: domain.CalculationFixed}, domain.ErrInvalidName},
		{"unknown rule type", f.ctx, domain.CreateRequest{Name: "x", RuleType: "BUNDLE", CalculationType: domain.CalculationFixed}, domain.ErrInvalidRuleType},
		{"unknown calculation", f.ctx, domain.CreateRequest{Name: "x", RuleType: domain.RuleTypeList, CalculationType: "TIERED"}, domain.ErrInvalidCalculationType},
		{"negative fixed price", f.ctx, domain.CreateRequest{Name: "x", RuleType: domain.RuleTypeItem, CalculationType: domain.CalculationFixed, Value: dec("-1")}, domain.ErrInvalidValue},
		{"inverted window", f.ctx, domain.CreateRequest{Name: "x", RuleType: domain.RuleTypeList, CalculationType: domain.CalculationFixed, ValidFrom: &from, ValidTo: &to}, domain.ErrInvalidValidityWindow},
		{"foreign scope field", f.ctx, domain.CreateRequest{Name: "x", RuleType: domain.RuleTypeCategory, CalculationType: domain.CalculationPercentage, ItemID: "sku-1"}, domain.ErrInvalidScope},
		{"promotion fields on item rule", f.ctx, domain.CreateRequest{Name: "x", RuleType: domain.RuleTypeItem, CalculationType: domain.CalculationPercentage, MinQuantity: ptr(2)}, domain.ErrInvalidScope},
		{"zero min quantity", f.ctx, domain.CreateRequest{Name: "x", RuleType: domain.RuleTypePromotion, CalculationType: domain.CalculationDiscount, MinQuantity: ptr(0)}, domain.ErrInvalidScope},
		{"unsluggable name", f.ctx, domain.CreateRequest{Name: "!!!", RuleType: domain.RuleTypeList, CalculationType: domain.CalculationFixed}, domain.ErrInvalidCode},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(tc.ctx, tc.req)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	f := setupService(t)
	req := domain.CreateRequest{Name: "Summer Sale", RuleType: domain.RuleTypePromotion, CalculationType: domain.CalculationDiscount, Value: dec("10")}

	f.create(t, req)
	_, err := f.svc.Create(f.ctx, req)
	assert.ErrorIs(t, err, domain.ErrDuplicateCode)

	other := orgcontext.WithOrgID(context.Background(), f.node.Generate())
	_, err = f.svc.Create(other, req)
	assert.NoError(t, err, "codes are unique per organization")
}

func TestAuditFailureDoesNotFailMutation(t *testing.T) {
	ctrl := gomock.NewController(t)
	audit := auditmocks.NewMockService(ctrl)
	audit.EXPECT().Record(gomock.Any(), gomock.Any()).
		Return(errors.New("audit store down")).
		Times(1)

	f := setupService(t, withAudit(audit))
	f.publisher.err = errors.New("broker down")

	resp, err := f.svc.Create(f.ctx, domain.CreateRequest{Name: "Resilient", RuleType: domain.RuleTypeList, CalculationType: domain.CalculationPercentage, Value: dec("3")})
	require.NoError(t, err)
	assert.NotZero(t, resp.ID)
}

func TestUpdateAppliesPatch(t *testing.T) {
	f := setupService(t)
	validTo := testNow.Add(72 * time.Hour)
	created := f.create(t, domain.CreateRequest{Name: "Boots", RuleType: domain.RuleTypeCategory, CalculationType: domain.CalculationPercentage, Value: dec("10"), CategoryID: "boots", ValidTo: &validTo})

	updated, err := f.svc.Update(f.ctx, domain.UpdateRequest{
		ID:         created.ID.String(),
		Value:      ptr(dec("12.5")),
		CategoryID: ptr("winter-boots"),
	})
	require.NoError(t, err)
	assert.True(t, dec("12.5").Equal(updated.Value))
	assert.Equal(t, "winter-boots", *updated.CategoryID)
	assert.Equal(t, "boots", updated.Code)
	assert.Equal(t, domain.StatusActive, updated.Status)
	require.NotNil(t, updated.ValidTo)

	past := testNow.Add(-time.Hour)
	expired, err := f.svc.Update(f.ctx, domain.UpdateRequest{ID: created.ID.String(), ValidTo: &past})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, expired.Status)

	reopened, err := f.svc.Update(f.ctx, domain.UpdateRequest{ID: created.ID.String(), ClearValidTo: true})
	require.NoError(t, err)
	assert.Nil(t, reopened.ValidTo)
	assert.Equal(t, domain.StatusActive, reopened.Status)

	_, err = f.svc.Update(f.ctx, domain.UpdateRequest{ID: created.ID.String(), ItemID: ptr("sku-1")})
	assert.ErrorIs(t, err, domain.ErrInvalidScope)

	assert.Equal(t, []domain.EventType{domain.EventRuleCreated, domain.EventRuleUpdated, domain.EventRuleUpdated, domain.EventRuleUpdated}, f.publisher.Types())
}

func TestUpdateKeepsInactiveUnlessReenabled(t *testing.T) {
	f := setupService(t)
	inactive := domain.StatusInactive
	created := f.create(t, domain.CreateRequest{Name: "Paused", RuleType: domain.RuleTypeList, CalculationType: domain.CalculationPercentage, Value: dec("1"), Status: &inactive})

	renamed, err := f.svc.Update(f.ctx, domain.UpdateRequest{ID: created.ID.String(), Name: ptr("Paused again")})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInactive, renamed.Status)

	active := domain.StatusActive
	enabled, err := f.svc.Update(f.ctx, domain.UpdateRequest{ID: created.ID.String(), Status: &active})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, enabled.Status)
}

func TestUpdateAndDeleteRespectOrganization(t *testing.T) {
	f := setupService(t)
	created := f.create(t, domain.CreateRequest{Name: "Mine", RuleType: domain.RuleTypeList, CalculationType: domain.CalculationPercentage, Value: dec("1")})
	other := orgcontext.WithOrgID(context.Background(), f.node.Generate())

	_, err := f.svc.Update(other, domain.UpdateRequest{ID: created.ID.String(), Name: ptr("Theirs")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(other, created.ID.String()), domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(f.ctx, "not-an-id"), domain.ErrInvalidID)

	require.NoError(t, f.svc.Delete(f.ctx, created.ID.String()))
	_, err = f.svc.Get(f.ctx, created.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListPaginatesAndFilters(t *testing.T) {
	f := setupService(t)
	for _, name := range []string{"Alpha", "Beta", "Gamma"} {
		f.create(t, domain.CreateRequest{Name: name, RuleType: domain.RuleTypeCategory, CalculationType: domain.CalculationPercentage, Value: dec("1"), CategoryID: "c"})
	}
	f.create(t, domain.CreateRequest{Name: "Partner deal", RuleType: domain.RuleTypePartner, CalculationType: domain.CalculationDiscount, Value: dec("1"), PartnerID: "p"})

	page, err := f.svc.List(f.ctx, domain.ListRequest{
		Page:     pagination.Page{Page: 1, Limit: 2},
		RuleType: "category",
		SortBy:   "name",
		OrderBy:  "asc",
	})
	require.NoError(t, err)
	assert.Equal(t, pagination.PageMeta{Total: 3, Page: 1, Limit: 2, TotalPages: 2}, page.Meta)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "Alpha", page.Data[0].Name)

	second, err := f.svc.List(f.ctx, domain.ListRequest{Page: pagination.Page{Page: 2, Limit: 2}, RuleType: "CATEGORY", SortBy: "name", OrderBy: "asc"})
	require.NoError(t, err)
	require.Len(t, second.Data, 1)
	assert.Equal(t, "Gamma", second.Data[0].Name)

	searched, err := f.svc.List(f.ctx, domain.ListRequest{Search: "deal"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, searched.Meta.Total)

	_, err = f.svc.List(f.ctx, domain.ListRequest{Status: "PAUSED"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestCalculateComposesRules(t *testing.T) {
	f := setupService(t)
	f.create(t, domain.CreateRequest{Name: "Electronics markup", RuleType: domain.RuleTypeCategory, CalculationType: domain.CalculationPercentage, Value: dec("35"), CategoryID: "electronics"})
	f.create(t, domain.CreateRequest{Name: "Spring promo", RuleType: domain.RuleTypePromotion, CalculationType: domain.CalculationDiscount, Value: dec("20"), CategoryIDs: []string{"electronics"}})
	yesterday := testNow.AddDate(0, 0, -1)
	f.create(t, domain.CreateRequest{Name: "Old promo", RuleType: domain.RuleTypePromotion, CalculationType: domain.CalculationDiscount, Value: dec("50"), ValidTo: &yesterday})
	f.create(t, domain.CreateRequest{Name: "Other category", RuleType: domain.RuleTypeCategory, CalculationType: domain.CalculationPercentage, Value: dec("99"), CategoryID: "furniture"})

	result, err := f.svc.Calculate(f.ctx, domain.CalculateRequest{
		ItemID:     "tv-55",
		CategoryID: "electronics",
		Quantity:   1,
		BasePrice:  dec("100000"),
	})
	require.NoError(t, err)
	assert.True(t, dec("108000").Equal(result.FinalPrice), "got %s", result.FinalPrice)
	require.Len(t, result.AppliedRules, 2)
	assert.Equal(t, "Electronics markup", result.AppliedRules[0].Name)
	assert.Equal(t, "Spring promo", result.AppliedRules[1].Name)
	assert.True(t, dec("27000").Equal(result.TotalDiscount))
	assert.True(t, dec("27").Equal(result.TotalDiscountPercent))
	assert.Equal(t, testNow, result.CalculatedAt)
}

func TestCalculateValidation(t *testing.T) {
	f := setupService(t)

	_, err := f.svc.Calculate(f.ctx, domain.CalculateRequest{BasePrice: dec("1")})
	assert.ErrorIs(t, err, domain.ErrInvalidItem)
	_, err = f.svc.Calculate(f.ctx, domain.CalculateRequest{ItemID: "a", BasePrice: dec("-1")})
	assert.ErrorIs(t, err, domain.ErrInvalidBasePrice)
	_, err = f.svc.Calculate(f.ctx, domain.CalculateRequest{ItemID: "a", BasePrice: dec("1"), Quantity: -2})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = f.svc.Calculate(context.Background(), domain.CalculateRequest{ItemID: "a", BasePrice: dec("1")})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestCalculateWithoutRulesReturnsBasePrice(t *testing.T) {
	f := setupService(t)
	result, err := f.svc.Calculate(f.ctx, domain.CalculateRequest{ItemID: "a", BasePrice: dec("4999")})
	require.NoError(t, err)
	assert.True(t, dec("4999").Equal(result.FinalPrice))
	assert.Empty(t, result.AppliedRules)
}

func TestCalculateSeesRuleChangesThroughCache(t *testing.T) {
	f := setupService(t)
	req := domain.CalculateRequest{ItemID: "sku-1", BasePrice: dec("1000")}

	first, err := f.svc.Calculate(f.ctx, req)
	require.NoError(t, err)
	assert.True(t, dec("1000").Equal(first.FinalPrice))

	f.create(t, domain.CreateRequest{Name: "Item price", RuleType: domain.RuleTypeItem, CalculationType: domain.CalculationFixed, Value: dec("900"), ItemID: "sku-1"})

	second, err := f.svc.Calculate(f.ctx, req)
	require.NoError(t, err)
	assert.True(t, dec("900").Equal(second.FinalPrice))
}

// interleavedCache runs beforeSet once, between the store read and the
// cache write of the first miss.
type interleavedCache struct {
	domain.RuleCache
	once      sync.Once
	beforeSet func()
}

func (c *interleavedCache) Set(ctx context.Context, orgID snowflake.ID, key string, generation int64, rules []domain.PriceRule) {
	c.once.Do(c.beforeSet)
	c.RuleCache.Set(ctx, orgID, key, generation, rules)
}

func TestCalculateDropsCacheFillRacingAMutation(t *testing.T) {
	interleaved := &interleavedCache{}
	f := setupService(t, func(p *Params) {
		interleaved.RuleCache = p.Cache
		p.Cache = interleaved
	})
	interleaved.beforeSet = func() {
		f.create(t, domain.CreateRequest{Name: "Item price", RuleType: domain.RuleTypeItem, CalculationType: domain.CalculationFixed, Value: dec("900"), ItemID: "sku-1"})
	}
	req := domain.CalculateRequest{ItemID: "sku-1", BasePrice: dec("1000")}

	first, err := f.svc.Calculate(f.ctx, req)
	require.NoError(t, err)
	assert.True(t, dec("1000").Equal(first.FinalPrice))

	second, err := f.svc.Calculate(f.ctx, req)
	require.NoError(t, err)
	assert.True(t, dec("900").Equal(second.FinalPrice), "got %s", second.FinalPrice)
}

func TestCalculateUsesHistoricalDate(t *testing.T) {
	f := setupService(t)
	validTo := testNow.Add(-24 * time.Hour)
	f.create(t, domain.CreateRequest{Name: "Past promo", RuleType: domain.RuleTypePromotion, CalculationType: domain.CalculationDiscount, Value: dec("10"), ValidTo: &validTo})

	date := testNow.Add(-48 * time.Hour)
	result, err := f.svc.Calculate(f.ctx, domain.CalculateRequest{ItemID: "a", BasePrice: dec("1000"), Date: &date})
	require.NoError(t, err)
	assert.True(t, dec("1000").Equal(result.FinalPrice), "stored EXPIRED status excludes the rule")
}

func TestCalculateListPrice(t *testing.T) {
	f := setupService(t)
	f.create(t, domain.CreateRequest{Name: "Supplier list", RuleType: domain.RuleTypeList, CalculationType: domain.CalculationListPrice})

	unresolved, err := f.svc.Calculate(f.ctx, domain.CalculateRequest{ItemID: "sku-1", SupplierID: "acme", BasePrice: dec("1000")})
	require.NoError(t, err)
	require.Len(t, unresolved.AppliedRules, 1)
	assert.Equal(t, domain.OutcomeUnsupported, unresolved.AppliedRules[0].Outcome)
	assert.True(t, dec("1000").Equal(unresolved.FinalPrice))

	_, err = f.svc.SetSupplierListPrice(f.ctx, domain.SupplierListPriceRequest{SupplierID: "acme", ItemID: "sku-1", Amount: dec("1250")})
	require.NoError(t, err)

	resolved, err := f.svc.Calculate(f.ctx, domain.CalculateRequest{ItemID: "sku-1", SupplierID: "acme", BasePrice: dec("1000")})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, resolved.AppliedRules[0].Outcome)
	assert.True(t, dec("1250").Equal(resolved.FinalPrice))
}

func TestSetSupplierListPriceValidation(t *testing.T) {
	f := setupService(t)
	_, err := f.svc.SetSupplierListPrice(f.ctx, domain.SupplierListPriceRequest{ItemID: "sku-1", Amount: dec("1")})
	assert.ErrorIs(t, err, domain.ErrInvalidSupplier)
	_, err = f.svc.SetSupplierListPrice(f.ctx, domain.SupplierListPriceRequest{SupplierID: "acme", Amount: dec("1")})
	assert.ErrorIs(t, err, domain.ErrInvalidItem)
	_, err = f.svc.SetSupplierListPrice(f.ctx, domain.SupplierListPriceRequest{SupplierID: "acme", ItemID: "sku-1", Amount: dec("-1")})
	assert.ErrorIs(t, err, domain.ErrInvalidValue)
}

func TestGetApplicableRulesIgnoresValidity(t *testing.T) {
	f := setupService(t)
	past := testNow.Add(-time.Hour)
	promo := f.create(t, domain.CreateRequest{Name: "Bulk promo", RuleType: domain.RuleTypePromotion, CalculationType: domain.CalculationDiscount, Value: dec("5"), MinQuantity: ptr(10)})
	f.create(t, domain.CreateRequest{Name: "Expired item", RuleType: domain.RuleTypeItem, CalculationType: domain.CalculationFixed, Value: dec("5"), ItemID: "sku-1", ValidTo: &past})
	scheduledFrom := testNow.Add(time.Hour)
	scheduled := f.create(t, domain.CreateRequest{Name: "Next week", RuleType: domain.RuleTypeItem, CalculationType: domain.CalculationFixed, Value: dec("5"), ItemID: "sku-1", ValidFrom: &scheduledFrom})
	inactive := domain.StatusInactive
	f.create(t, domain.CreateRequest{Name: "Disabled item", RuleType: domain.RuleTypeItem, CalculationType: domain.CalculationFixed, Value: dec("5"), ItemID: "sku-1", Status: &inactive})

	small, err := f.svc.GetApplicableRules(f.ctx, domain.ApplicableRequest{ItemID: "sku-1", Quantity: 1})
	require.NoError(t, err)
	require.Len(t, small, 1, "expired and inactive rules are not candidates; scheduled ones are")
	assert.Equal(t, scheduled.ID, small[0].ID)

	bulk, err := f.svc.GetApplicableRules(f.ctx, domain.ApplicableRequest{ItemID: "sku-1", Quantity: 10})
	require.NoError(t, err)
	require.Len(t, bulk, 2)
	assert.Equal(t, scheduled.ID, bulk[0].ID)
	assert.Equal(t, promo.ID, bulk[1].ID)
}

func TestTypedRuleWithoutIDIsGlobal(t *testing.T) {
	f := setupService(t)
	created := f.create(t, domain.CreateRequest{Name: "Any supplier", RuleType: domain.RuleTypeSupplier, CalculationType: domain.CalculationPercentage, Value: dec("10")})

	rules, err := f.svc.GetApplicableRules(f.ctx, domain.ApplicableRequest{ItemID: "sku-1", Quantity: 1})
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, created.ID, rules[0].ID)

	result, err := f.svc.Calculate(f.ctx, domain.CalculateRequest{ItemID: "sku-2", BasePrice: dec("1000")})
	require.NoError(t, err)
	assert.True(t, dec("1100").Equal(result.FinalPrice), "got %s", result.FinalPrice)
}

func TestRedeemPromotion(t *testing.T) {
	f := setupService(t)
	promo := f.create(t, domain.CreateRequest{Name: "Launch", RuleType: domain.RuleTypePromotion, CalculationType: domain.CalculationDiscount, Value: dec("10"), MaxUsageCount: ptr(1)})
	item := f.create(t, domain.CreateRequest{Name: "Item", RuleType: domain.RuleTypeItem, CalculationType: domain.CalculationFixed, Value: dec("10")})

	redeemed, err := f.svc.RedeemPromotion(f.ctx, promo.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, redeemed.CurrentUsageCount)

	_, err = f.svc.RedeemPromotion(f.ctx, promo.ID.String())
	assert.ErrorIs(t, err, domain.ErrUsageLimitReached)

	_, err = f.svc.RedeemPromotion(f.ctx, item.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotPromotion)

	result, err := f.svc.Calculate(f.ctx, domain.CalculateRequest{ItemID: "sku-9", BasePrice: dec("100")})
	require.NoError(t, err)
	for _, applied := range result.AppliedRules {
		assert.NotEqual(t, promo.ID, applied.RuleID, "exhausted promotion is not applied")
	}
}

func TestRefreshStatuses(t *testing.T) {
	f := setupService(t)
	startsAt := testNow.Add(time.Hour)
	endsAt := testNow.Add(2 * time.Hour)
	scheduled := f.create(t, domain.CreateRequest{Name: "Flash", RuleType: domain.RuleTypePromotion, CalculationType: domain.CalculationDiscount, Value: dec("10"), ValidFrom: &startsAt, ValidTo: &endsAt})
	inactive := domain.StatusInactive
	f.create(t, domain.CreateRequest{Name: "Off", RuleType: domain.RuleTypeList, CalculationType: domain.CalculationPercentage, Value: dec("1"), ValidTo: &startsAt, Status: &inactive})

	changed, err := f.svc.RefreshStatuses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, changed)

	f.clock.Advance(90 * time.Minute)
	changed, err = f.svc.RefreshStatuses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	got, err := f.svc.Get(f.ctx, scheduled.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)

	f.clock.Advance(time.Hour)
	changed, err = f.svc.RefreshStatuses(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	got, err = f.svc.Get(f.ctx, scheduled.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, got.Status)

	assert.Contains(t, f.publisher.Types(), domain.EventRuleStatusChanged)
}
