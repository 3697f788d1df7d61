package domain

import "strings"

// Scope is the applicability scope of a rule. Each RuleType has exactly one
// variant carrying only the fields meaningful for it.
type Scope interface {
	RuleType() RuleType
	scope()
}

type ItemScope struct {
	ItemID string
}

type CategoryScope struct {
	CategoryID string
}

type SupplierScope struct {
	SupplierID string
}

type PartnerScope struct {
	PartnerID string
}

// PromotionScope matches every item when both ItemIDs and CategoryIDs are empty.
type PromotionScope struct {
	ItemIDs           []string
	CategoryIDs       []string
	MinQuantity       *int
	MaxUsageCount     *int
	CurrentUsageCount int
}

type ListScope struct{}

func (ItemScope) RuleType() RuleType      { return RuleTypeItem }
func (CategoryScope) RuleType() RuleType  { return RuleTypeCategory }
func (SupplierScope) RuleType() RuleType  { return RuleTypeSupplier }
func (PartnerScope) RuleType() RuleType   { return RuleTypePartner }
func (PromotionScope) RuleType() RuleType { return RuleTypePromotion }
func (ListScope) RuleType() RuleType      { return RuleTypeList }

func (ItemScope) scope()      {}
func (CategoryScope) scope()  {}
func (SupplierScope) scope()  {}
func (PartnerScope) scope()   {}
func (PromotionScope) scope() {}
func (ListScope) scope()      {}

// UsageExhausted reports whether the promotion reached its redemption cap.
func (p PromotionScope) UsageExhausted() bool {
	return p.MaxUsageCount != nil && p.CurrentUsageCount >= *p.MaxUsageCount
}

// Scope rebuilds the variant for the rule's type. It returns nil for an
// unknown RuleType.
func (r *PriceRule) Scope() Scope {
	switch r.RuleType {
	case RuleTypeItem:
		return ItemScope{ItemID: deref(r.ItemID)}
	case RuleTypeCategory:
		return CategoryScope{CategoryID: deref(r.CategoryID)}
	case RuleTypeSupplier:
		return SupplierScope{SupplierID: deref(r.SupplierID)}
	case RuleTypePartner:
		return PartnerScope{PartnerID: deref(r.PartnerID)}
	case RuleTypePromotion:
		return PromotionScope{
			ItemIDs:           cloneStrings(r.ItemIDs),
			CategoryIDs:       cloneStrings(r.CategoryIDs),
			MinQuantity:       cloneInt(r.MinQuantity),
			MaxUsageCount:     cloneInt(r.MaxUsageCount),
			CurrentUsageCount: r.CurrentUsageCount,
		}
	case RuleTypeList:
		return ListScope{}
	default:
		return nil
	}
}

// ApplyScope writes the variant into the flat columns, sets RuleType and
// clears every scoping column that does not belong to the variant.
func (r *PriceRule) ApplyScope(s Scope) {
	r.ItemID = nil
	r.ItemIDs = nil
	r.CategoryID = nil
	r.CategoryIDs = nil
	r.SupplierID = nil
	r.PartnerID = nil
	r.MinQuantity = nil
	r.MaxUsageCount = nil
	r.CurrentUsageCount = 0

	switch v := s.(type) {
	case ItemScope:
		r.ItemID = optional(v.ItemID)
	case CategoryScope:
		r.CategoryID = optional(v.CategoryID)
	case SupplierScope:
		r.SupplierID = optional(v.SupplierID)
	case PartnerScope:
		r.PartnerID = optional(v.PartnerID)
	case PromotionScope:
		r.ItemIDs = compactStrings(v.ItemIDs)
		r.CategoryIDs = compactStrings(v.CategoryIDs)
		r.MinQuantity = cloneInt(v.MinQuantity)
		r.MaxUsageCount = cloneInt(v.MaxUsageCount)
		r.CurrentUsageCount = v.CurrentUsageCount
	case ListScope:
	default:
		return
	}
	r.RuleType = s.RuleType()
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func compactStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
