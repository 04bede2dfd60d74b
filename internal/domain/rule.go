package domain

// MappingRule activates a finding when its condition evaluates true against
// the intake answer set. Exactly one of Condition, Conditions, or Expression
// should be set; Expression is a CEL program over the unwrapped answer map
// for rules too awkward to express as structured conditions.
type MappingRule struct {
	Finding    string          `json:"finding" yaml:"finding"`
	Condition  *Condition      `json:"condition,omitempty" yaml:"condition,omitempty"`
	Conditions *ConditionGroup `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Expression string          `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// ConditionGroup combines sub-conditions with boolean semantics:
// All requires every member true (empty → true), Any requires at least
// one (empty → false).
type ConditionGroup struct {
	All []Condition `json:"all,omitempty" yaml:"all,omitempty"`
	Any []Condition `json:"any,omitempty" yaml:"any,omitempty"`
}

// Condition is a tagged variant: a leaf {field, operator, value} check, or a
// nested all/any group. A nil All/Any slice means the variant is absent; an
// explicitly empty list is a present (vacuous) group.
type Condition struct {
	Field    string `json:"field,omitempty" yaml:"field,omitempty"`
	Operator string `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`

	All []Condition `json:"all,omitempty" yaml:"all,omitempty"`
	Any []Condition `json:"any,omitempty" yaml:"any,omitempty"`
}

// ConditionKind discriminates the Condition variant.
type ConditionKind int

const (
	CondLeaf ConditionKind = iota
	CondAll
	CondAny
)

// Kind reports which variant this condition is.
func (c *Condition) Kind() ConditionKind {
	switch {
	case c.All != nil:
		return CondAll
	case c.Any != nil:
		return CondAny
	default:
		return CondLeaf
	}
}

// Supported leaf operators.
const (
	OpEq    = "eq"
	OpNe    = "ne"
	OpGt    = "gt"
	OpLt    = "lt"
	OpGte   = "gte"
	OpLte   = "lte"
	OpIn    = "in"
	OpNotIn = "not_in"
)

// Activation records one activated finding together with the answer paths
// that triggered it. Activation is idempotent per finding; paths accumulate
// across rules for diagnostics.
type Activation struct {
	FindingID string   `json:"findingId"`
	Paths     []string `json:"triggeringPaths,omitempty"`
}
