// Package qualification implements the Qualification domain manager:
// awarding a Qualification holon, wiring DEPENDS_ON prerequisite edges
// with self-prerequisite and cycle rejection, and expiring an awarded
// qualification.
package qualification

import (
	"time"

	"github.com/cmvayette/digitalbackbone-sub002/internal/errs"
	"github.com/cmvayette/digitalbackbone-sub002/internal/eventstore"
	"github.com/cmvayette/digitalbackbone-sub002/internal/holonregistry"
	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
	"github.com/cmvayette/digitalbackbone-sub002/internal/relationshipregistry"
	"github.com/cmvayette/digitalbackbone-sub002/pkg/logger"
)

// Identifiers is the set of external identifier fields a Qualification may
// carry; at least one is required.
type Identifiers struct {
	NEC             string `json:"nec,omitempty"`
	PQSID           string `json:"pqsId,omitempty"`
	CourseCode      string `json:"courseCode,omitempty"`
	CertificationID string `json:"certificationId,omitempty"`
}

func (id Identifiers) any() bool {
	return id.NEC != "" || id.PQSID != "" || id.CourseCode != "" || id.CertificationID != ""
}

// Properties is the typed shape of a Qualification holon's property record.
type Properties struct {
	Name            string      `json:"name"`
	Identifiers     Identifiers `json:"identifiers"`
	ValidityPeriod  string      `json:"validityPeriod"`
	RenewalRules    string      `json:"renewalRules"`
}

func (p Properties) toMap() map[string]any {
	return map[string]any{
		"name": p.Name,
		"identifiers": map[string]any{
			"nec": p.Identifiers.NEC, "pqsId": p.Identifiers.PQSID,
			"courseCode": p.Identifiers.CourseCode, "certificationId": p.Identifiers.CertificationID,
		},
		"validityPeriod": p.ValidityPeriod,
		"renewalRules":   p.RenewalRules,
	}
}

func (p Properties) validate() errs.Result {
	res := errs.OK()
	if p.Name == "" {
		res.AddError(errs.New(errs.KindValidation, "name is required").WithRule("validation: qualification.name"))
	}
	if !p.Identifiers.any() {
		res.AddError(errs.New(errs.KindValidation, "at least one identifier (nec, pqsId, courseCode, certificationId) is required").WithRule("validation: qualification.identifiers"))
	}
	if p.ValidityPeriod == "" {
		res.AddError(errs.New(errs.KindValidation, "validityPeriod is required").WithRule("validation: qualification.validityPeriod"))
	}
	if p.RenewalRules == "" {
		res.AddError(errs.New(errs.KindValidation, "renewalRules is required").WithRule("validation: qualification.renewalRules"))
	}
	return res
}

// Manager wraps the shared registries with the Qualification domain's
// invariants.
type Manager struct {
	holons        *holonregistry.Registry
	relationships *relationshipregistry.Registry
	events        *eventstore.Store

	log *logger.Logger
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithLogger overrides the manager's logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// New creates a Qualification manager wired to its collaborators.
func New(holons *holonregistry.Registry, relationships *relationshipregistry.Registry, events *eventstore.Store, opts ...Option) *Manager {
	m := &Manager{holons: holons, relationships: relationships, events: events, log: logger.NewDefault("domainmanagers.qualification")}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AwardParams is the caller-provided shape of AwardQualification.
type AwardParams struct {
	PersonID        string
	Properties      Properties
	EffectiveStart  time.Time
	Actor           string
	SourceSystem    string
	SourceDocuments []string
}

// Outcome is what AwardQualification returns: the Qualification holon, the
// HAS_QUAL edge (person -> qualification), its HELD_BY inverse
// (qualification -> person), and the validation result.
type Outcome struct {
	Qualification model.Holon
	HasQual       model.Relationship
	HeldBy        model.Relationship
	Validation    errs.Result
}

// AwardQualification creates the Qualification holon via a
// QualificationAwarded event, then wires both the HAS_QUAL edge (person ->
// qualification) and its HELD_BY inverse (qualification -> person) — the
// two sides spec.md's coverage check and HELD_BY(Q) query each read from.
func (m *Manager) AwardQualification(params AwardParams) Outcome {
	if res := params.Properties.validate(); !res.Valid {
		return Outcome{Validation: res}
	}
	if !m.holons.Exists(params.PersonID) {
		return Outcome{Validation: errs.Fail(errs.Newf(errs.KindValidation, "person %s does not exist", params.PersonID).WithRule("validation: unknown person"))}
	}

	eventID, res := m.events.SubmitEvent(eventstore.Submission{
		Type: model.EventQualificationAwarded, OccurredAt: params.EffectiveStart, Actor: params.Actor,
		Subjects: []string{params.PersonID}, SourceSystem: params.SourceSystem,
		SourceDocument: firstOrEmpty(params.SourceDocuments), Payload: params.Properties.toMap(),
	})
	if !res.Valid {
		return Outcome{Validation: res}
	}

	holon, res := m.holons.CreateHolon(holonregistry.Params{
		Type: model.HolonQualification, Properties: params.Properties.toMap(),
		CreatedBy: eventID, SourceDocuments: params.SourceDocuments,
	})
	if !res.Valid {
		return Outcome{Validation: res}
	}

	edgeOut := m.relationships.CreateRelationship(relationshipregistry.Params{
		Type: model.RelHasQual, SourceHolonID: params.PersonID, TargetHolonID: holon.ID,
		EffectiveStart: params.EffectiveStart, Actor: params.Actor, SourceSystem: params.SourceSystem,
		EventType: model.EventQualificationAwarded,
	})
	if !edgeOut.Validation.Valid {
		m.holons.MarkHolonInactive(holon.ID, "failed to link HAS_QUAL edge on award")
		return Outcome{Validation: edgeOut.Validation}
	}

	heldByOut := m.relationships.CreateRelationship(relationshipregistry.Params{
		Type: model.RelHeldBy, SourceHolonID: holon.ID, TargetHolonID: params.PersonID,
		EffectiveStart: params.EffectiveStart, Actor: params.Actor, SourceSystem: params.SourceSystem,
		EventType: model.EventQualificationAwarded,
	})
	if !heldByOut.Validation.Valid {
		m.holons.MarkHolonInactive(holon.ID, "failed to link HELD_BY edge on award")
		return Outcome{Validation: heldByOut.Validation}
	}

	m.log.WithField("qualification_id", holon.ID).WithField("person_id", params.PersonID).Info("qualification awarded")
	return Outcome{Qualification: holon, HasQual: edgeOut.Relationship, HeldBy: heldByOut.Relationship, Validation: errs.OK()}
}

// AddPrerequisiteParams is the caller-provided shape of AddPrerequisite.
type AddPrerequisiteParams struct {
	QualificationID   string
	PrerequisiteID    string
	EffectiveStart    time.Time
	Actor             string
	SourceSystem      string
}

// AddPrerequisite creates a DEPENDS_ON edge from qualificationID to
// prerequisiteID, rejecting self-prerequisites and any edge that would
// close a cycle in the DEPENDS_ON graph.
func (m *Manager) AddPrerequisite(params AddPrerequisiteParams) relationshipregistry.Outcome {
	if params.QualificationID == params.PrerequisiteID {
		return relationshipregistry.Outcome{Validation: errs.Fail(errs.New(errs.KindConsistency, "a qualification cannot be a prerequisite of itself").WithRule("consistency: self-prerequisite").WithHolons(params.QualificationID))}
	}
	if m.dependsOnReachable(params.PrerequisiteID, params.QualificationID) {
		return relationshipregistry.Outcome{Validation: errs.Fail(errs.Newf(errs.KindConsistency,
			"adding %s as a prerequisite of %s would close a cycle in the prerequisite graph", params.PrerequisiteID, params.QualificationID).
			WithRule("consistency: dependency cycle").WithHolons(params.QualificationID, params.PrerequisiteID))}
	}

	return m.relationships.CreateRelationship(relationshipregistry.Params{
		Type: model.RelDependsOn, SourceHolonID: params.QualificationID, TargetHolonID: params.PrerequisiteID,
		EffectiveStart: params.EffectiveStart, Actor: params.Actor, SourceSystem: params.SourceSystem,
	})
}

// dependsOnReachable runs a depth-first search from from, following
// DEPENDS_ON edges forward (from each node to the node it depends on),
// looking for to. Adding qualificationID -> prerequisiteID would close a
// cycle exactly when qualificationID is already reachable this way from
// prerequisiteID.
func (m *Manager) dependsOnReachable(from, to string) bool {
	visited := make(map[string]bool)
	var visit func(node string) bool
	visit = func(node string) bool {
		if node == to {
			return true
		}
		if visited[node] {
			return false
		}
		visited[node] = true
		for _, rel := range m.relationships.GetRelationshipsFrom(node, model.RelDependsOn, model.RelationshipFilter{IncludeEnded: true}) {
			if visit(rel.TargetHolonID) {
				return true
			}
		}
		return false
	}
	return visit(from)
}

// ExpireParams is the caller-provided shape of ExpireQualification.
type ExpireParams struct {
	PersonID        string
	QualificationID string
	AwardEventID    string
	Reason          string
	Actor           string
	SourceSystem    string
	At              time.Time
}

// ExpireQualification ends the HELD_BY edge and emits QualificationExpired
// causally linked to the awarding event.
func (m *Manager) ExpireQualification(params ExpireParams) errs.Result {
	res := errs.OK()

	heldBy := m.relationships.GetRelationshipsFrom(params.PersonID, model.RelHeldBy, model.RelationshipFilter{EffectiveAt: &params.At})
	for _, rel := range heldBy {
		if rel.TargetHolonID != params.QualificationID {
			continue
		}
		res.Merge(m.relationships.EndRelationship(relationshipregistry.EndParams{
			ID: rel.ID, EndDate: params.At, Reason: params.Reason, Actor: params.Actor, SourceSystem: params.SourceSystem,
		}))
	}
	heldBy2 := m.relationships.GetRelationshipsFrom(params.QualificationID, model.RelHeldBy, model.RelationshipFilter{EffectiveAt: &params.At})
	for _, rel := range heldBy2 {
		if rel.TargetHolonID != params.PersonID {
			continue
		}
		res.Merge(m.relationships.EndRelationship(relationshipregistry.EndParams{
			ID: rel.ID, EndDate: params.At, Reason: params.Reason, Actor: params.Actor, SourceSystem: params.SourceSystem,
		}))
	}

	var causal model.CausalLinks
	if params.AwardEventID != "" {
		causal.CausedBy = []string{params.AwardEventID}
	}
	_, evtRes := m.events.SubmitEvent(eventstore.Submission{
		Type: model.EventQualificationExpired, OccurredAt: params.At, Actor: params.Actor,
		Subjects: []string{params.PersonID, params.QualificationID}, SourceSystem: params.SourceSystem,
		Payload: map[string]any{"reason": params.Reason}, CausalLinks: causal,
	})
	res.Merge(evtRes)

	if res.Valid {
		m.log.WithField("qualification_id", params.QualificationID).Info("qualification expired")
	}
	return res
}

func firstOrEmpty(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}
