package domain

import "strings"

// DefaultPriorities maps each rule type to the priority assigned when the
// caller does not override it. Values are copied on construction so a
// snapshot can be shared between goroutines.
type DefaultPriorities struct {
	byType map[RuleType]int
}

var builtinPriorities = map[RuleType]int{
	RuleTypePromotion: 100,
	RuleTypePartner:   80,
	RuleTypeItem:      60,
	RuleTypeSupplier:  40,
	RuleTypeCategory:  20,
	RuleTypeList:      0,
}

// BuiltinPriorities returns the built-in priority table.
func BuiltinPriorities() DefaultPriorities {
	return NewDefaultPriorities(nil)
}

// NewDefaultPriorities layers overrides (keyed by rule type name, any case)
// on top of the built-in table. Unknown keys are ignored.
func NewDefaultPriorities(overrides map[string]int) DefaultPriorities {
	table := make(map[RuleType]int, len(builtinPriorities))
	for k, v := range builtinPriorities {
		table[k] = v
	}
	for k, v := range overrides {
		rt := RuleType(strings.ToUpper(strings.TrimSpace(k)))
		if _, ok := builtinPriorities[rt]; !ok {
			continue
		}
		table[rt] = v
	}
	return DefaultPriorities{byType: table}
}

func (p DefaultPriorities) For(rt RuleType) int {
	if p.byType == nil {
		return builtinPriorities[rt]
	}
	return p.byType[rt]
}
