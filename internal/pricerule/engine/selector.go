package engine

import (
	"slices"

	"github.com/smallbiznis/pricerules/internal/pricerule/domain"
)

// Matches reports whether rule is structurally applicable to in. Temporal
// validity is not considered here.
func Matches(rule *domain.PriceRule, in domain.CalculationContext) bool {
	switch s := rule.Scope().(type) {
	case domain.ListScope:
		return true
	case domain.ItemScope:
		return s.ItemID == "" || s.ItemID == in.ItemID
	case domain.CategoryScope:
		return matchOptional(s.CategoryID, in.CategoryID)
	case domain.SupplierScope:
		return matchOptional(s.SupplierID, in.SupplierID)
	case domain.PartnerScope:
		return matchOptional(s.PartnerID, in.PartnerID)
	case domain.PromotionScope:
		return matchPromotion(s, in)
	default:
		return false
	}
}

// Select keeps the structurally applicable rules, preserving input order.
func Select(rules []domain.PriceRule, in domain.CalculationContext) []domain.PriceRule {
	out := make([]domain.PriceRule, 0, len(rules))
	for i := range rules {
		if Matches(&rules[i], in) {
			out = append(out, rules[i])
		}
	}
	return out
}

// matchOptional treats an unset rule value as global and an unset context
// value as unknown.
func matchOptional(ruleValue, contextValue string) bool {
	if ruleValue == "" {
		return true
	}
	return contextValue != "" && ruleValue == contextValue
}

func matchPromotion(s domain.PromotionScope, in domain.CalculationContext) bool {
	if s.MinQuantity != nil && in.Quantity < *s.MinQuantity {
		return false
	}
	// no item list means every item; the category list only widens a targeted promotion
	if len(s.ItemIDs) == 0 {
		return true
	}
	if in.ItemID != "" && slices.Contains(s.ItemIDs, in.ItemID) {
		return true
	}
	return in.CategoryID != "" && slices.Contains(s.CategoryIDs, in.CategoryID)
}
