package service

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/pricerules/internal/pricerule/domain"
	"github.com/smallbiznis/pricerules/internal/pricerule/engine"
	"gorm.io/datatypes"
)

// scopeInput is the union of every scoping field a request may carry.
type scopeInput struct {
	ItemID        string
	ItemIDs       []string
	CategoryID    string
	CategoryIDs   []string
	SupplierID    string
	PartnerID     string
	MinQuantity   *int
	MaxUsageCount *int
	UsageCount    int
}

func scopeInputFromCreate(req domain.CreateRequest) scopeInput {
	return scopeInput{
		ItemID:        strings.TrimSpace(req.ItemID),
		ItemIDs:       req.ItemIDs,
		CategoryID:    strings.TrimSpace(req.CategoryID),
		CategoryIDs:   req.CategoryIDs,
		SupplierID:    strings.TrimSpace(req.SupplierID),
		PartnerID:     strings.TrimSpace(req.PartnerID),
		MinQuantity:   req.MinQuantity,
		MaxUsageCount: req.MaxUsageCount,
	}
}

func scopeInputFromRule(r *domain.PriceRule) scopeInput {
	in := scopeInput{
		ItemIDs:       []string(r.ItemIDs),
		CategoryIDs:   []string(r.CategoryIDs),
		MinQuantity:   r.MinQuantity,
		MaxUsageCount: r.MaxUsageCount,
		UsageCount:    r.CurrentUsageCount,
	}
	if r.ItemID != nil {
		in.ItemID = *r.ItemID
	}
	if r.CategoryID != nil {
		in.CategoryID = *r.CategoryID
	}
	if r.SupplierID != nil {
		in.SupplierID = *r.SupplierID
	}
	if r.PartnerID != nil {
		in.PartnerID = *r.PartnerID
	}
	return in
}

// buildScope turns the flat input into the variant for ruleType. Fields that
// do not belong to the variant are rejected rather than dropped.
func buildScope(ruleType domain.RuleType, in scopeInput) (domain.Scope, error) {
	itemIDs := nonEmpty(in.ItemIDs)
	categoryIDs := nonEmpty(in.CategoryIDs)
	promotionOnly := len(itemIDs) > 0 || len(categoryIDs) > 0 || in.MinQuantity != nil || in.MaxUsageCount != nil

	foreign := func(allowed string) bool {
		set := map[string]bool{
			"item":     in.ItemID != "",
			"category": in.CategoryID != "",
			"supplier": in.SupplierID != "",
			"partner":  in.PartnerID != "",
		}
		for name, present := range set {
			if present && name != allowed {
				return true
			}
		}
		return false
	}

	switch ruleType {
	case domain.RuleTypeItem:
		if foreign("item") || promotionOnly {
			return nil, domain.ErrInvalidScope
		}
		return domain.ItemScope{ItemID: in.ItemID}, nil
	case domain.RuleTypeCategory:
		if foreign("category") || promotionOnly {
			return nil, domain.ErrInvalidScope
		}
		return domain.CategoryScope{CategoryID: in.CategoryID}, nil
	case domain.RuleTypeSupplier:
		if foreign("supplier") || promotionOnly {
			return nil, domain.ErrInvalidScope
		}
		return domain.SupplierScope{SupplierID: in.SupplierID}, nil
	case domain.RuleTypePartner:
		if foreign("partner") || promotionOnly {
			return nil, domain.ErrInvalidScope
		}
		return domain.PartnerScope{PartnerID: in.PartnerID}, nil
	case domain.RuleTypePromotion:
		if foreign("") {
			return nil, domain.ErrInvalidScope
		}
		if in.MinQuantity != nil && *in.MinQuantity < 1 {
			return nil, domain.ErrInvalidScope
		}
		if in.MaxUsageCount != nil && *in.MaxUsageCount < 0 {
			return nil, domain.ErrInvalidScope
		}
		return domain.PromotionScope{
			ItemIDs:           itemIDs,
			CategoryIDs:       categoryIDs,
			MinQuantity:       in.MinQuantity,
			MaxUsageCount:     in.MaxUsageCount,
			CurrentUsageCount: in.UsageCount,
		}, nil
	case domain.RuleTypeList:
		if foreign("") || promotionOnly {
			return nil, domain.ErrInvalidScope
		}
		return domain.ListScope{}, nil
	default:
		return nil, domain.ErrInvalidRuleType
	}
}

// applyPatch mutates rule in place and returns the names of the patched fields.
func (s *Service) applyPatch(rule *domain.PriceRule, req domain.UpdateRequest) ([]string, error) {
	changes := make([]string, 0, 8)

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		rule.Name = name
		changes = append(changes, "name")
	}
	if req.Code != nil {
		code, err := deriveCode(*req.Code, rule.Name)
		if err != nil {
			return nil, err
		}
		rule.Code = code
		changes = append(changes, "code")
	}
	if req.Description != nil {
		rule.Description = strings.TrimSpace(*req.Description)
		changes = append(changes, "description")
	}
	if req.CalculationType != nil {
		calcType, err := parseCalculationType(string(*req.CalculationType))
		if err != nil {
			return nil, err
		}
		rule.CalculationType = calcType
		changes = append(changes, "calculation_type")
	}
	if req.Value != nil {
		rule.Value = *req.Value
		changes = append(changes, "value")
	}
	if err := validateValue(rule.CalculationType, rule.Value); err != nil {
		return nil, err
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
		changes = append(changes, "priority")
	}

	windowChanged := false
	switch {
	case req.ClearValidFrom:
		rule.ValidFrom = nil
		windowChanged = true
	case req.ValidFrom != nil:
		rule.ValidFrom = utcPtr(req.ValidFrom)
		windowChanged = true
	}
	switch {
	case req.ClearValidTo:
		rule.ValidTo = nil
		windowChanged = true
	case req.ValidTo != nil:
		rule.ValidTo = utcPtr(req.ValidTo)
		windowChanged = true
	}
	if windowChanged {
		changes = append(changes, "validity")
	}
	if err := validateWindow(rule.ValidFrom, rule.ValidTo); err != nil {
		return nil, err
	}

	in := scopeInputFromRule(rule)
	scopeChanged := false
	if req.ItemID != nil {
		in.ItemID = strings.TrimSpace(*req.ItemID)
		scopeChanged = true
	}
	if req.ItemIDs != nil {
		in.ItemIDs = *req.ItemIDs
		scopeChanged = true
	}
	if req.CategoryID != nil {
		in.CategoryID = strings.TrimSpace(*req.CategoryID)
		scopeChanged = true
	}
	if req.CategoryIDs != nil {
		in.CategoryIDs = *req.CategoryIDs
		scopeChanged = true
	}
	if req.SupplierID != nil {
		in.SupplierID = strings.TrimSpace(*req.SupplierID)
		scopeChanged = true
	}
	if req.PartnerID != nil {
		in.PartnerID = strings.TrimSpace(*req.PartnerID)
		scopeChanged = true
	}
	if req.MinQuantity != nil {
		in.MinQuantity = req.MinQuantity
		scopeChanged = true
	}
	if req.MaxUsageCount != nil {
		in.MaxUsageCount = req.MaxUsageCount
		scopeChanged = true
	}
	if scopeChanged {
		scope, err := buildScope(rule.RuleType, in)
		if err != nil {
			return nil, err
		}
		rule.ApplyScope(scope)
		changes = append(changes, "scope")
	}

	if req.Metadata != nil {
		rule.Metadata = normalizeMetadata(req.Metadata)
		changes = append(changes, "metadata")
	}

	// An explicit status wins. Otherwise the window decides, except that a
	// disabled rule stays disabled until it is re-enabled explicitly.
	switch {
	case req.Status != nil:
		status, err := parseStatus(string(*req.Status))
		if err != nil {
			return nil, err
		}
		rule.Status = status
		changes = append(changes, "status")
	case rule.Status != domain.StatusInactive:
		rule.Status = engine.DetermineInitialStatus(rule.ValidFrom, rule.ValidTo, s.clock.Now())
	}

	return changes, nil
}

func buildListFilter(orgID snowflake.ID, req domain.ListRequest) (domain.ListFilter, error) {
	filter := domain.ListFilter{
		OrgID:      orgID,
		ItemID:     strings.TrimSpace(req.ItemID),
		CategoryID: strings.TrimSpace(req.CategoryID),
		SupplierID: strings.TrimSpace(req.SupplierID),
		PartnerID:  strings.TrimSpace(req.PartnerID),
		Search:     strings.TrimSpace(req.Search),
	}
	if strings.TrimSpace(req.RuleType) != "" {
		ruleType, err := parseRuleType(req.RuleType)
		if err != nil {
			return domain.ListFilter{}, err
		}
		filter.RuleType = ruleType
	}
	if strings.TrimSpace(req.Status) != "" {
		status, err := parseStatus(req.Status)
		if err != nil {
			return domain.ListFilter{}, err
		}
		filter.Status = status
	}
	if strings.TrimSpace(req.CalculationType) != "" {
		calcType, err := parseCalculationType(req.CalculationType)
		if err != nil {
			return domain.ListFilter{}, err
		}
		filter.CalculationType = calcType
	}
	return filter, nil
}

func parseRuleType(value string) (domain.RuleType, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case string(domain.RuleTypePromotion):
		return domain.RuleTypePromotion, nil
	case string(domain.RuleTypePartner):
		return domain.RuleTypePartner, nil
	case string(domain.RuleTypeItem):
		return domain.RuleTypeItem, nil
	case string(domain.RuleTypeSupplier):
		return domain.RuleTypeSupplier, nil
	case string(domain.RuleTypeCategory):
		return domain.RuleTypeCategory, nil
	case string(domain.RuleTypeList):
		return domain.RuleTypeList, nil
	default:
		return "", domain.ErrInvalidRuleType
	}
}

func parseCalculationType(value string) (domain.CalculationType, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case string(domain.CalculationFixed):
		return domain.CalculationFixed, nil
	case string(domain.CalculationPercentage):
		return domain.CalculationPercentage, nil
	case string(domain.CalculationDiscount):
		return domain.CalculationDiscount, nil
	case string(domain.CalculationListPrice):
		return domain.CalculationListPrice, nil
	default:
		return "", domain.ErrInvalidCalculationType
	}
}

func parseStatus(value string) (domain.Status, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case string(domain.StatusActive):
		return domain.StatusActive, nil
	case string(domain.StatusInactive):
		return domain.StatusInactive, nil
	case string(domain.StatusScheduled):
		return domain.StatusScheduled, nil
	case string(domain.StatusExpired):
		return domain.StatusExpired, nil
	default:
		return "", domain.ErrInvalidStatus
	}
}

// validateValue rejects negative absolute amounts. Percent values are signed.
func validateValue(calcType domain.CalculationType, value decimal.Decimal) error {
	if calcType == domain.CalculationFixed && value.IsNegative() {
		return domain.ErrInvalidValue
	}
	return nil
}

func validateWindow(from, to *time.Time) error {
	if from != nil && to != nil && from.After(*to) {
		return domain.ErrInvalidValidityWindow
	}
	return nil
}

func deriveCode(code, name string) (string, error) {
	source := strings.TrimSpace(code)
	if source == "" {
		source = name
	}
	derived := slug.Make(source)
	if derived == "" {
		return "", domain.ErrInvalidCode
	}
	return derived, nil
}

func parseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(value))
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func normalizeMetadata(input map[string]any) datatypes.JSONMap {
	if len(input) == 0 {
		return nil
	}
	return datatypes.JSONMap(input)
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
