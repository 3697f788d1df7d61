package engine

import (
	"time"

	"github.com/smallbiznis/pricerules/internal/pricerule/domain"
)

// DetermineInitialStatus derives the status of a rule at write time.
func DetermineInitialStatus(validFrom, validTo *time.Time, now time.Time) domain.Status {
	if validTo != nil && validTo.Before(now) {
		return domain.StatusExpired
	}
	if validFrom != nil && validFrom.After(now) {
		return domain.StatusScheduled
	}
	return domain.StatusActive
}

// IsActiveAt is the authoritative applicability check at calculation time.
// The stored status is trusted only to exclude rules; the validity window is
// always rechecked against date.
func IsActiveAt(rule *domain.PriceRule, date time.Time) bool {
	if rule == nil || rule.Status != domain.StatusActive {
		return false
	}
	if rule.ValidFrom != nil && rule.ValidFrom.After(date) {
		return false
	}
	if rule.ValidTo != nil && rule.ValidTo.Before(date) {
		return false
	}
	if promo, ok := rule.Scope().(domain.PromotionScope); ok && promo.UsageExhausted() {
		return false
	}
	return true
}

// RefreshStatus returns the status the rule should carry at now. INACTIVE
// and EXPIRED rules are never revived.
func RefreshStatus(rule *domain.PriceRule, now time.Time) (domain.Status, bool) {
	switch rule.Status {
	case domain.StatusActive, domain.StatusScheduled:
	default:
		return rule.Status, false
	}
	next := DetermineInitialStatus(rule.ValidFrom, rule.ValidTo, now)
	return next, next != rule.Status
}
