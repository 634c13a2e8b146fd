package model

import "time"

// ProposalType is the closed set of schema-change kinds governance accepts.
type ProposalType string

const (
	ProposalAddHolonType   ProposalType = "add_holon_type"
	ProposalAddConstraint  ProposalType = "add_constraint"
	ProposalAddMeasure     ProposalType = "add_measure"
	ProposalAddLens        ProposalType = "add_lens"
	ProposalModifyType     ProposalType = "modify_type"
	ProposalDeprecateType  ProposalType = "deprecate_type"
)

// ProposalStatus is the proposal lifecycle; approved/rejected are terminal.
type ProposalStatus string

const (
	ProposalProposed ProposalStatus = "proposed"
	ProposalApproved ProposalStatus = "approved"
	ProposalRejected ProposalStatus = "rejected"
)

// CollisionAnalysis reports name/property overlaps against existing schema.
type CollisionAnalysis struct {
	Performed     bool     `json:"performed"`
	CollidesWith  []string `json:"collidesWith,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

// ImpactAnalysis reports the downstream effect of a schema change.
type ImpactAnalysis struct {
	Performed        bool     `json:"performed"`
	Breaking         bool     `json:"breaking"`
	AffectedTypes    []string `json:"affectedTypes,omitempty"`
	Notes            string   `json:"notes,omitempty"`
}

// ProposalPayload is the type-specific content of a proposal: at most one
// of these is populated depending on ProposalType.
type ProposalPayload struct {
	HolonTypeDefinition *HolonTypeDefinition `json:"holonTypeDefinition,omitempty"`
	Constraint          *Constraint          `json:"constraint,omitempty"`
	MeasureDefinition   *MeasureDefinition   `json:"measureDefinition,omitempty"`
	LensDefinition      *LensDefinition      `json:"lensDefinition,omitempty"`
	TargetType          string               `json:"targetType,omitempty"`
}

// MeasureDefinition is a registration-only stub per spec.md §9: measures
// are not computed by the core, only recorded.
type MeasureDefinition struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	SourceDocuments []string `json:"sourceDocuments"`
	CalculationLogic string  `json:"calculationLogic,omitempty"`
	Outputs         []string `json:"outputs,omitempty"`
}

// LensDefinition is a registration-only stub, symmetrical with MeasureDefinition.
type LensDefinition struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	SourceDocuments []string `json:"sourceDocuments"`
	Logic           string   `json:"logic,omitempty"`
	Outputs         []string `json:"outputs,omitempty"`
}

// SchemaChangeProposal is a governance request to change the type system.
type SchemaChangeProposal struct {
	ID                string            `json:"id"`
	ProposalType      ProposalType      `json:"proposalType"`
	Status            ProposalStatus    `json:"status"`
	ReferenceDocuments []string         `json:"referenceDocuments"`
	ExampleUseCases   []string          `json:"exampleUseCases,omitempty"`
	CollisionAnalysis CollisionAnalysis `json:"collisionAnalysis"`
	ImpactAnalysis    ImpactAnalysis    `json:"impactAnalysis"`
	Payload           ProposalPayload   `json:"payload"`

	DecisionDocumentID string     `json:"decisionDocumentId,omitempty"`
	Rationale          string     `json:"rationale,omitempty"`
	DecidedAt          *time.Time `json:"decidedAt,omitempty"`
	DecidedBy          string     `json:"decidedBy,omitempty"`
}

// Terminal reports whether the proposal has reached a final status.
func (p SchemaChangeProposal) Terminal() bool {
	return p.Status == ProposalApproved || p.Status == ProposalRejected
}
