package model

// ConstraintType is the closed set of constraint categories.
type ConstraintType string

const (
	ConstraintStructural ConstraintType = "structural"
	ConstraintPolicy     ConstraintType = "policy"
	ConstraintTemporal   ConstraintType = "temporal"
)

// ConstraintScope lists the holon/relationship/event types a constraint
// applies to. Any subset may be populated; an empty slice means "none of
// this kind", not "all".
type ConstraintScope struct {
	HolonTypes        []HolonType        `json:"holonTypes,omitempty"`
	RelationshipTypes []RelationshipType `json:"relationshipTypes,omitempty"`
	EventTypes        []EventType        `json:"eventTypes,omitempty"`
}

// InheritanceRules lets a constraint declared for one holon type extend to
// others, with a precedence-gated override mechanism.
type InheritanceRules struct {
	InheritsFrom       []HolonType `json:"inheritsFrom,omitempty"`
	CanOverride        bool        `json:"canOverride"`
	OverridePrecedence int         `json:"overridePrecedence"`
}

// ValidatorKind selects how a constraint's validation logic is dispatched.
// Constraints are metadata plus a pointer to a validator implementation
// registered by name or kind; the engine never stores a callable directly.
type ValidatorKind string

const (
	// ValidatorKindNative dispatches to a Go-native validator registered
	// under ValidatorName in the constraint engine's validator registry.
	ValidatorKindNative ValidatorKind = "native"
	// ValidatorKindJSONPath evaluates LogicSource as a JSONPath expression
	// against the candidate's JSON-shaped view; any non-empty match passes.
	ValidatorKindJSONPath ValidatorKind = "jsonpath"
	// ValidatorKindScript evaluates LogicSource as a goja JavaScript
	// snippet that returns true/false given a `candidate` global.
	ValidatorKindScript ValidatorKind = "script"
)

// Constraint is a named, scoped, precedence-ordered validator grounded in
// one or more source documents.
type Constraint struct {
	ID               string            `json:"id"`
	Type             ConstraintType    `json:"type"`
	Name             string            `json:"name"`
	Definition       string            `json:"definition"`
	Scope            ConstraintScope   `json:"scope"`
	EffectiveDates   EffectiveDates    `json:"effectiveDates"`
	SourceDocuments  []string          `json:"sourceDocuments"`
	Precedence       int               `json:"precedence"`
	InheritanceRules *InheritanceRules `json:"inheritanceRules,omitempty"`

	ValidatorKind ValidatorKind `json:"validatorKind"`
	ValidatorName string        `json:"validatorName,omitempty"`
	LogicSource   string        `json:"logicSource,omitempty"`
}

// AppliesToHolonType reports whether t is in the constraint's holon scope.
func (c Constraint) AppliesToHolonType(t HolonType) bool {
	for _, ht := range c.Scope.HolonTypes {
		if ht == t {
			return true
		}
	}
	return false
}

// AppliesToRelationshipType reports whether t is in the constraint's scope.
func (c Constraint) AppliesToRelationshipType(t RelationshipType) bool {
	for _, rt := range c.Scope.RelationshipTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// AppliesToEventType reports whether t is in the constraint's scope.
func (c Constraint) AppliesToEventType(t EventType) bool {
	for _, et := range c.Scope.EventTypes {
		if et == t {
			return true
		}
	}
	return false
}

// InheritsFrom reports whether the constraint's inheritance rules name t.
func (c Constraint) InheritsFrom(t HolonType) bool {
	if c.InheritanceRules == nil {
		return false
	}
	for _, ht := range c.InheritanceRules.InheritsFrom {
		if ht == t {
			return true
		}
	}
	return false
}
