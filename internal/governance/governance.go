// Package governance implements Schema Versioning & Governance's proposal
// workflow: completeness validation, collision/impact analysis, and the
// approve/reject decision path that stamps a Decision Document into the
// Document Registry and, on approval, applies the schema change.
package governance

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/cmvayette/digitalbackbone-sub002/internal/documentregistry"
	"github.com/cmvayette/digitalbackbone-sub002/internal/errs"
	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
	"github.com/cmvayette/digitalbackbone-sub002/internal/schema"
	"github.com/cmvayette/digitalbackbone-sub002/pkg/logger"
)

// Governance is the in-memory reference implementation of the governance
// workflow.
type Governance struct {
	mu sync.RWMutex

	byID     map[string]model.SchemaChangeProposal
	byStatus map[model.ProposalStatus][]string

	docs   *documentregistry.Registry
	schema *schema.Registry
	log    *logger.Logger
	now    func() time.Time
}

// Option configures a Governance at construction.
type Option func(*Governance)

// WithClock overrides the engine's notion of "now".
func WithClock(now func() time.Time) Option {
	return func(g *Governance) { g.now = now }
}

// WithLogger overrides the engine's logger.
func WithLogger(l *logger.Logger) Option {
	return func(g *Governance) { g.log = l }
}

// New creates a governance engine wired to the document and schema registries.
func New(docs *documentregistry.Registry, schemaReg *schema.Registry, opts ...Option) *Governance {
	g := &Governance{
		byID:     make(map[string]model.SchemaChangeProposal),
		byStatus: make(map[model.ProposalStatus][]string),
		docs:     docs,
		schema:   schemaReg,
		log:      logger.NewDefault("governance"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ProposalParams is the caller-provided shape of a new proposal.
type ProposalParams struct {
	ProposalType       model.ProposalType
	ReferenceDocuments []string
	ExampleUseCases    []string
	Payload            model.ProposalPayload
}

// CreateProposal stores a new proposal with status=proposed and no
// analysis performed yet.
func (g *Governance) CreateProposal(params ProposalParams) model.SchemaChangeProposal {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := model.SchemaChangeProposal{
		ID:                 fmt.Sprintf("prop_%s", uuid.NewString()),
		ProposalType:       params.ProposalType,
		Status:             model.ProposalProposed,
		ReferenceDocuments: append([]string(nil), params.ReferenceDocuments...),
		ExampleUseCases:    append([]string(nil), params.ExampleUseCases...),
		Payload:            params.Payload,
	}
	g.byID[p.ID] = p
	g.byStatus[p.Status] = append(g.byStatus[p.Status], p.ID)
	return p
}

// GetProposal returns the proposal for id, if present.
func (g *Governance) GetProposal(id string) (model.SchemaChangeProposal, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.byID[id]
	return p, ok
}

// GetProposalsByStatus returns every proposal currently in status.
func (g *Governance) GetProposalsByStatus(status model.ProposalStatus) []model.SchemaChangeProposal {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.byStatus[status]
	out := make([]model.SchemaChangeProposal, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.byID[id])
	}
	return out
}

// ValidateProposal applies the completeness rules keyed by proposalType.
func (g *Governance) ValidateProposal(p model.SchemaChangeProposal) errs.Result {
	result := errs.OK()

	if len(p.ReferenceDocuments) == 0 {
		result.AddError(errs.New(errs.KindValidation, "at least one reference document is required").WithRule("validation: reference documents"))
	}
	if !p.ImpactAnalysis.Performed {
		result.AddWarning(errs.New(errs.KindValidation, "impact analysis is recommended before approval").WithRule("validation: impact analysis recommended"))
	}

	switch p.ProposalType {
	case model.ProposalAddHolonType:
		g.validateAddHolonType(p, &result)
	case model.ProposalAddConstraint:
		g.validateAddConstraint(p, &result)
	case model.ProposalAddMeasure:
		g.validateMeasureOrLens(p.Payload.MeasureDefinition != nil, measureDescription(p.Payload), measureDocs(p.Payload), measureLogic(p.Payload), measureOutputs(p.Payload), &result)
	case model.ProposalAddLens:
		g.validateMeasureOrLens(p.Payload.LensDefinition != nil, lensDescription(p.Payload), lensDocs(p.Payload), lensLogic(p.Payload), lensOutputs(p.Payload), &result)
	case model.ProposalModifyType, model.ProposalDeprecateType:
		if !p.ImpactAnalysis.Performed {
			result.AddError(errs.New(errs.KindValidation, "impact analysis is required for modify/deprecate proposals").WithRule("validation: impact analysis required"))
		}
		if strings.TrimSpace(p.Payload.TargetType) == "" {
			result.AddError(errs.New(errs.KindValidation, "target type must be specified").WithRule("validation: target type"))
		}
	}
	return result
}

func (g *Governance) validateAddHolonType(p model.SchemaChangeProposal, result *errs.Result) {
	def := p.Payload.HolonTypeDefinition
	if def == nil {
		result.AddError(errs.New(errs.KindValidation, "holon type definition is required").WithRule("validation: holon type definition"))
		return
	}
	if len(p.ExampleUseCases) == 0 {
		result.AddError(errs.New(errs.KindValidation, "at least one example use case is required").WithRule("validation: example use cases"))
	}
	if !p.CollisionAnalysis.Performed {
		result.AddError(errs.New(errs.KindValidation, "collision analysis is required").WithRule("validation: collision analysis"))
	}
	if def.Type == "" {
		result.AddError(errs.New(errs.KindValidation, "holon type definition must name a type").WithRule("validation: holon type"))
	}
	if len(strings.TrimSpace(def.Description)) < 10 {
		result.AddError(errs.New(errs.KindValidation, "holon type description must be at least 10 characters").WithRule("validation: description length"))
	}
	if len(def.SourceDocuments) == 0 {
		result.AddError(errs.New(errs.KindValidation, "holon type definition requires at least one source document").WithRule("validation: source documents"))
	}
	if len(def.RequiredProperties) == 0 {
		result.AddWarning(errs.New(errs.KindValidation, "at least one required property is recommended").WithRule("validation: required properties recommended"))
	}
}

func (g *Governance) validateAddConstraint(p model.SchemaChangeProposal, result *errs.Result) {
	c := p.Payload.Constraint
	if c == nil {
		result.AddError(errs.New(errs.KindValidation, "constraint definition is required").WithRule("validation: constraint definition"))
		return
	}
	if strings.TrimSpace(c.Name) == "" {
		result.AddError(errs.New(errs.KindValidation, "constraint name is required").WithRule("validation: constraint name"))
	}
	if len(strings.TrimSpace(c.Definition)) < 10 {
		result.AddError(errs.New(errs.KindValidation, "constraint definition must be at least 10 characters").WithRule("validation: constraint definition length"))
	}
	if c.ValidatorKind == "" {
		result.AddError(errs.New(errs.KindValidation, "constraint requires validation logic").WithRule("validation: validation logic"))
	}
	if len(c.SourceDocuments) == 0 {
		result.AddError(errs.New(errs.KindValidation, "constraint requires defining documents").WithRule("validation: defining documents"))
	}
	if !p.ImpactAnalysis.Performed {
		result.AddError(errs.New(errs.KindValidation, "impact analysis is required for add_constraint proposals").WithRule("validation: impact analysis required"))
	}
}

func (g *Governance) validateMeasureOrLens(present bool, description string, docs []string, logic string, outputs []string, result *errs.Result) {
	if !present {
		result.AddError(errs.New(errs.KindValidation, "definition is required").WithRule("validation: measure or lens definition"))
		return
	}
	if len(strings.TrimSpace(description)) == 0 {
		result.AddError(errs.New(errs.KindValidation, "a meaningful description is required").WithRule("validation: description"))
	}
	if len(docs) == 0 {
		result.AddError(errs.New(errs.KindValidation, "defining documents are required").WithRule("validation: defining documents"))
	}
	if strings.TrimSpace(logic) == "" {
		result.AddError(errs.New(errs.KindValidation, "calculation or logic is required").WithRule("validation: calculation logic"))
	}
	if len(outputs) == 0 {
		result.AddError(errs.New(errs.KindValidation, "at least one output is required").WithRule("validation: outputs"))
	}
}

func measureDescription(p model.ProposalPayload) string {
	if p.MeasureDefinition == nil {
		return ""
	}
	return p.MeasureDefinition.Description
}
func measureDocs(p model.ProposalPayload) []string {
	if p.MeasureDefinition == nil {
		return nil
	}
	return p.MeasureDefinition.SourceDocuments
}
func measureLogic(p model.ProposalPayload) string {
	if p.MeasureDefinition == nil {
		return ""
	}
	return p.MeasureDefinition.CalculationLogic
}
func measureOutputs(p model.ProposalPayload) []string {
	if p.MeasureDefinition == nil {
		return nil
	}
	return p.MeasureDefinition.Outputs
}
func lensDescription(p model.ProposalPayload) string {
	if p.LensDefinition == nil {
		return ""
	}
	return p.LensDefinition.Description
}
func lensDocs(p model.ProposalPayload) []string {
	if p.LensDefinition == nil {
		return nil
	}
	return p.LensDefinition.SourceDocuments
}
func lensLogic(p model.ProposalPayload) string {
	if p.LensDefinition == nil {
		return ""
	}
	return p.LensDefinition.Logic
}
func lensOutputs(p model.ProposalPayload) []string {
	if p.LensDefinition == nil {
		return nil
	}
	return p.LensDefinition.Outputs
}

// PerformCollisionAnalysis checks a proposed holon type definition against
// the schema registry's holon catalog; it takes no proposal and does not
// branch on proposal type. Without a schema registry it reports no
// collision.
func (g *Governance) PerformCollisionAnalysis(def model.HolonTypeDefinition) model.CollisionAnalysis {
	if g.schema == nil {
		return model.CollisionAnalysis{Performed: true}
	}
	return g.schema.DetectHolonCollision(def)
}

// PerformImpactAnalysis reports whether the proposal's change is breaking:
// modify_type and deprecate_type are breaking by nature; everything else
// is additive.
func (g *Governance) PerformImpactAnalysis(p model.SchemaChangeProposal) model.ImpactAnalysis {
	breaking := p.ProposalType == model.ProposalModifyType || p.ProposalType == model.ProposalDeprecateType
	var affected []string
	if p.Payload.TargetType != "" {
		affected = []string{p.Payload.TargetType}
	}
	return model.ImpactAnalysis{Performed: true, Breaking: breaking, AffectedTypes: affected}
}

// decisionDocumentContent is the JSON-shaped structured content of a
// decision document, per spec.md §6.
type decisionDocumentContent struct {
	ProposalID         string                   `json:"proposalId"`
	ProposalType       model.ProposalType       `json:"proposalType"`
	Decision           model.ProposalStatus     `json:"decision"`
	Rationale          string                   `json:"rationale"`
	DecidedBy          string                   `json:"decidedBy"`
	DecidedAt          time.Time                `json:"decidedAt"`
	ReferenceDocuments []string                 `json:"referenceDocuments"`
	ImpactAnalysis     model.ImpactAnalysis     `json:"impactAnalysis"`
	CollisionAnalysis  model.CollisionAnalysis  `json:"collisionAnalysis"`
}

// ApproveProposal re-validates the proposal; on success it stamps decision
// metadata, registers a Decision Document, and applies the schema change.
func (g *Governance) ApproveProposal(id, decidedBy, rationale, eventID string) (string, errs.Result) {
	return g.decide(id, model.ProposalApproved, decidedBy, rationale, eventID, true)
}

// RejectProposal re-validates the proposal, stamps decision metadata, and
// registers a Decision Document, but never applies a schema change.
func (g *Governance) RejectProposal(id, decidedBy, rationale, eventID string) (string, errs.Result) {
	return g.decide(id, model.ProposalRejected, decidedBy, rationale, eventID, false)
}

func (g *Governance) decide(id string, status model.ProposalStatus, decidedBy, rationale, eventID string, apply bool) (string, errs.Result) {
	g.mu.Lock()
	p, ok := g.byID[id]
	g.mu.Unlock()
	if !ok {
		return "", errs.Fail(errs.Newf(errs.KindValidation, "proposal %s does not exist", id).WithRule("validation: unknown proposal"))
	}
	if p.Terminal() {
		return "", errs.Fail(errs.New(errs.KindConsistency, "proposal status is terminal and cannot change").WithRule("validation: terminal proposal status"))
	}

	if res := g.ValidateProposal(p); !res.Valid {
		return "", res
	}

	now := g.now()
	p.Status = status
	p.DecidedBy = decidedBy
	p.Rationale = rationale
	p.DecidedAt = &now

	docContent := decisionDocumentContent{
		ProposalID:         p.ID,
		ProposalType:       p.ProposalType,
		Decision:           status,
		Rationale:          rationale,
		DecidedBy:          decidedBy,
		DecidedAt:          now,
		ReferenceDocuments: p.ReferenceDocuments,
		ImpactAnalysis:     p.ImpactAnalysis,
		CollisionAnalysis:  p.CollisionAnalysis,
	}
	raw, err := json.Marshal(docContent)
	if err != nil {
		return "", errs.Fail(errs.Newf(errs.KindIntegration, "failed to encode decision document: %v", err).WithRule("integration: decision document encoding"))
	}

	var docID string
	if g.docs != nil {
		docID, _ = g.docs.RegisterDocument(documentregistry.Params{
			Title:          fmt.Sprintf("Decision: %s", p.ID),
			DocumentType:   "decision",
			EffectiveDates: model.EffectiveDates{Start: now},
			Content:        string(raw),
		}, eventID)
	}
	p.DecisionDocumentID = docID

	if apply {
		g.applySchemaChange(&p)
	}

	g.mu.Lock()
	g.byID[id] = p
	g.removeFromStatusIndexLocked(model.ProposalProposed, id)
	g.byStatus[status] = append(g.byStatus[status], id)
	g.mu.Unlock()

	g.log.WithField("proposal_id", id).WithField("status", status).Info("proposal decided")
	return docID, errs.OK()
}

func (g *Governance) removeFromStatusIndexLocked(status model.ProposalStatus, id string) {
	ids := g.byStatus[status]
	for i, existing := range ids {
		if existing == id {
			g.byStatus[status] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

func (g *Governance) applySchemaChange(p *model.SchemaChangeProposal) {
	if g.schema == nil {
		return
	}
	switch p.ProposalType {
	case model.ProposalAddHolonType:
		if p.Payload.HolonTypeDefinition == nil {
			return
		}
		changeType := model.SchemaChangeNonBreaking
		if p.ImpactAnalysis.Breaking {
			changeType = model.SchemaChangeBreaking
		}
		versionID := g.schema.CreateSchemaVersion(changeType, fmt.Sprintf("add holon type %s", p.Payload.HolonTypeDefinition.Type), p.DecisionDocumentID)
		def := g.schema.RegisterHolonTypeDefinition(*p.Payload.HolonTypeDefinition, versionID, versionID)
		p.Payload.HolonTypeDefinition = &def
	case model.ProposalModifyType, model.ProposalDeprecateType:
		changeType := model.SchemaChangeBreaking
		g.schema.CreateSchemaVersion(changeType, fmt.Sprintf("%s %s", p.ProposalType, p.Payload.TargetType), p.DecisionDocumentID)
	}
}

// QueryDecisionDocument fetches a decision document and evaluates a gjson
// path against its structured content, returning the matched string form.
func (g *Governance) QueryDecisionDocument(docID, path string) (string, bool) {
	if g.docs == nil {
		return "", false
	}
	doc, ok := g.docs.GetDocument(docID)
	if !ok {
		return "", false
	}
	result := gjson.Get(doc.Content, path)
	if !result.Exists() {
		return "", false
	}
	return result.String(), true
}
