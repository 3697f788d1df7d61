package engine

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/pricerules/internal/pricerule/domain"
)

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.NewFromFloat(0.5)
)

// ComposeOptions carries values resolved outside the pure composition pass.
type ComposeOptions struct {
	// ListPrice is the supplier list price for the context, when known.
	ListPrice *decimal.Decimal
	// CalculatedAt stamps the result.
	CalculatedAt time.Time
}

// SortRules orders rules by priority ascending, then by ID ascending.
func SortRules(rules []domain.PriceRule) {
	slices.SortStableFunc(rules, func(a, b domain.PriceRule) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Compose applies the candidates that are active at in.Date to in.BasePrice.
// It never fails: with no active candidates the base price is returned.
func Compose(candidates []domain.PriceRule, in domain.CalculationContext, opts ComposeOptions) domain.CalculationResult {
	active := make([]domain.PriceRule, 0, len(candidates))
	for i := range candidates {
		if IsActiveAt(&candidates[i], in.Date) {
			active = append(active, candidates[i])
		}
	}
	SortRules(active)

	current := in.BasePrice
	totalDiscount := decimal.Zero
	ledger := make([]domain.AppliedRule, 0, len(active))

	for _, rule := range active {
		effect := decimal.Zero
		outcome := domain.OutcomeApplied

		switch rule.CalculationType {
		case domain.CalculationFixed:
			effect = rule.Value.Sub(current)
			current = rule.Value
		case domain.CalculationPercentage:
			effect = current.Mul(rule.Value).Div(hundred)
			current = current.Add(effect)
		case domain.CalculationDiscount:
			effect = current.Mul(rule.Value).Div(hundred).Neg()
			current = current.Add(effect)
			totalDiscount = totalDiscount.Add(effect.Abs())
		case domain.CalculationListPrice:
			if opts.ListPrice == nil {
				outcome = domain.OutcomeUnsupported
				break
			}
			effect = opts.ListPrice.Sub(current)
			current = *opts.ListPrice
		default:
			outcome = domain.OutcomeUnsupported
		}

		ledger = append(ledger, domain.AppliedRule{
			RuleID:          rule.ID,
			Name:            rule.Name,
			RuleType:        rule.RuleType,
			CalculationType: rule.CalculationType,
			Value:           rule.Value,
			PriceEffect:     RoundHalfUp(effect, 0),
			Priority:        rule.Priority,
			Outcome:         outcome,
		})
	}

	discountPercent := decimal.Zero
	if !in.BasePrice.IsZero() {
		discountPercent = RoundHalfUp(totalDiscount.Div(in.BasePrice).Mul(hundred), 2)
	}

	return domain.CalculationResult{
		FinalPrice:           RoundHalfUp(current, 0),
		BasePrice:            in.BasePrice,
		AppliedRules:         ledger,
		TotalDiscount:        RoundHalfUp(totalDiscount, 0),
		TotalDiscountPercent: discountPercent,
		CalculatedAt:         opts.CalculatedAt,
	}
}

// RoundHalfUp rounds d to places decimal places, resolving ties toward
// positive infinity.
func RoundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Shift(places).Add(half).Floor().Shift(-places)
}

// NeedsListPrice reports whether any active candidate is a LIST_PRICE rule.
func NeedsListPrice(candidates []domain.PriceRule, date time.Time) bool {
	for i := range candidates {
		if candidates[i].CalculationType == domain.CalculationListPrice && IsActiveAt(&candidates[i], date) {
			return true
		}
	}
	return false
}
