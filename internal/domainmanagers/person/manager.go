// Package person implements the Person domain manager: onboarding a
// Person holon, assigning it to a Position via an OCCUPIES edge (subject
// to the concurrent-position limit and qualification-coverage checks),
// and revoking a qualification it holds.
package person

import (
	"time"

	"github.com/cmvayette/digitalbackbone-sub002/internal/config"
	"github.com/cmvayette/digitalbackbone-sub002/internal/constraintengine"
	"github.com/cmvayette/digitalbackbone-sub002/internal/errs"
	"github.com/cmvayette/digitalbackbone-sub002/internal/eventstore"
	"github.com/cmvayette/digitalbackbone-sub002/internal/holonregistry"
	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
	"github.com/cmvayette/digitalbackbone-sub002/internal/relationshipregistry"
	"github.com/cmvayette/digitalbackbone-sub002/pkg/logger"
)

// Category is the closed set of service categories a Person may carry.
type Category string

const (
	CategoryActiveDuty Category = "active_duty"
	CategoryReserve    Category = "reserve"
	CategoryCivilian   Category = "civilian"
	CategoryContractor Category = "contractor"
)

func validCategory(c Category) bool {
	switch c {
	case CategoryActiveDuty, CategoryReserve, CategoryCivilian, CategoryContractor:
		return true
	}
	return false
}

// Properties is the typed shape of a Person holon's property record.
type Properties struct {
	EDIPI             string   `json:"edipi"`
	ServiceNumbers    []string `json:"serviceNumbers"`
	Name              string   `json:"name"`
	DOB               string   `json:"dob"`
	ServiceBranch     string   `json:"serviceBranch"`
	DesignatorRating  string   `json:"designatorRating"`
	Category          Category `json:"category"`
}

func (p Properties) toMap() map[string]any {
	return map[string]any{
		"edipi":            p.EDIPI,
		"serviceNumbers":   p.ServiceNumbers,
		"name":             p.Name,
		"dob":              p.DOB,
		"serviceBranch":    p.ServiceBranch,
		"designatorRating": p.DesignatorRating,
		"category":         string(p.Category),
	}
}

func (p Properties) validate() errs.Result {
	res := errs.OK()
	if p.EDIPI == "" {
		res.AddError(errs.New(errs.KindValidation, "edipi is required").WithRule("validation: person.edipi"))
	}
	if len(p.ServiceNumbers) == 0 {
		res.AddError(errs.New(errs.KindValidation, "at least one service number is required").WithRule("validation: person.serviceNumbers"))
	}
	if p.Name == "" {
		res.AddError(errs.New(errs.KindValidation, "name is required").WithRule("validation: person.name"))
	}
	if p.DOB == "" {
		res.AddError(errs.New(errs.KindValidation, "dob is required").WithRule("validation: person.dob"))
	}
	if p.ServiceBranch == "" {
		res.AddError(errs.New(errs.KindValidation, "serviceBranch is required").WithRule("validation: person.serviceBranch"))
	}
	if p.DesignatorRating == "" {
		res.AddError(errs.New(errs.KindValidation, "designatorRating is required").WithRule("validation: person.designatorRating"))
	}
	if !validCategory(p.Category) {
		res.AddError(errs.Newf(errs.KindValidation, "category %q is not one of active_duty, reserve, civilian, contractor", p.Category).WithRule("validation: person.category"))
	}
	return res
}

// Manager wraps the shared registries with the Person domain's invariants.
type Manager struct {
	holons        *holonregistry.Registry
	relationships *relationshipregistry.Registry
	events        *eventstore.Store
	constraints   *constraintengine.Engine

	concurrentPositionLimit int

	log *logger.Logger
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithLogger overrides the manager's logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// New creates a Person manager wired to its collaborators, using cfg's
// concurrent-position limit.
func New(holons *holonregistry.Registry, relationships *relationshipregistry.Registry, events *eventstore.Store, constraints *constraintengine.Engine, cfg config.Config, opts ...Option) *Manager {
	m := &Manager{
		holons:                  holons,
		relationships:           relationships,
		events:                  events,
		constraints:             constraints,
		concurrentPositionLimit: cfg.ConcurrentPositionLimit,
		log:                     logger.NewDefault("domainmanagers.person"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnboardParams is the caller-provided shape of OnboardPerson.
type OnboardParams struct {
	Properties      Properties
	Actor           string
	SourceSystem    string
	SourceDocuments []string
}

// OnboardPerson validates the property record, submits a PersonOnboarded
// event, creates the Person holon referencing it, and validates the holon
// against the Constraint Engine, rolling back on failure.
func (m *Manager) OnboardPerson(params OnboardParams) (model.Holon, errs.Result) {
	if res := params.Properties.validate(); !res.Valid {
		return model.Holon{}, res
	}

	occurredAt := time.Now().UTC()
	eventID, res := m.events.SubmitEvent(eventstore.Submission{
		Type:           model.EventPersonOnboarded,
		OccurredAt:     occurredAt,
		Actor:          params.Actor,
		SourceSystem:   params.SourceSystem,
		SourceDocument: firstOrEmpty(params.SourceDocuments),
		Payload:        params.Properties.toMap(),
	})
	if !res.Valid {
		return model.Holon{}, res
	}

	holon, res := m.holons.CreateHolon(holonregistry.Params{
		Type:            model.HolonPerson,
		Properties:      params.Properties.toMap(),
		CreatedBy:       eventID,
		SourceDocuments: params.SourceDocuments,
	})
	if !res.Valid {
		return model.Holon{}, res
	}

	if m.constraints != nil {
		if res := m.constraints.ValidateHolon(holon, &occurredAt); !res.Valid {
			m.holons.MarkHolonInactive(holon.ID, "failed constraint validation on creation")
			return model.Holon{}, res
		}
	}

	m.log.WithField("person_id", holon.ID).Info("person onboarded")
	return holon, errs.OK()
}

// AssignParams is the caller-provided shape of AssignToPosition.
type AssignParams struct {
	PersonID       string
	PositionID     string
	EffectiveStart time.Time
	Actor          string
	SourceSystem   string
}

// AssignToPosition creates an OCCUPIES edge from person to position after
// checking the concurrent-position limit and qualification coverage.
func (m *Manager) AssignToPosition(params AssignParams) relationshipregistry.Outcome {
	if !m.holons.Exists(params.PersonID) {
		return relationshipregistry.Outcome{Validation: errs.Fail(errs.Newf(errs.KindValidation, "person %s does not exist", params.PersonID).WithRule("validation: unknown person"))}
	}
	if !m.holons.Exists(params.PositionID) {
		return relationshipregistry.Outcome{Validation: errs.Fail(errs.Newf(errs.KindValidation, "position %s does not exist", params.PositionID).WithRule("validation: unknown position"))}
	}

	current := m.relationships.GetRelationshipsFrom(params.PersonID, model.RelOccupies, model.RelationshipFilter{EffectiveAt: &params.EffectiveStart})
	if len(current) >= m.concurrentPositionLimit {
		return relationshipregistry.Outcome{Validation: errs.Fail(errs.Newf(errs.KindConsistency,
			"person %s already occupies %d positions at %s, exceeding the limit of %d",
			params.PersonID, len(current), params.EffectiveStart, m.concurrentPositionLimit).
			WithRule("consistency: concurrent position limit").WithHolons(params.PersonID))}
	}

	if res := m.checkQualificationCoverage(params.PersonID, params.PositionID, params.EffectiveStart); !res.Valid {
		return relationshipregistry.Outcome{Validation: res}
	}

	return m.relationships.CreateRelationship(relationshipregistry.Params{
		Type:           model.RelOccupies,
		SourceHolonID:  params.PersonID,
		TargetHolonID:  params.PositionID,
		EffectiveStart: params.EffectiveStart,
		Actor:          params.Actor,
		SourceSystem:   params.SourceSystem,
		EventType:      model.EventAssignmentStarted,
	})
}

// checkQualificationCoverage fails with a Consistency error listing every
// qualification REQUIRED_FOR positionID at t that is not HELD_BY personID
// at t.
func (m *Manager) checkQualificationCoverage(personID, positionID string, t time.Time) errs.Result {
	required := m.relationships.GetRelationshipsTo(positionID, model.RelRequiredFor, model.RelationshipFilter{EffectiveAt: &t})
	if len(required) == 0 {
		return errs.OK()
	}

	held := make(map[string]bool)
	for _, rel := range m.relationships.GetRelationshipsFrom(personID, model.RelHeldBy, model.RelationshipFilter{EffectiveAt: &t}) {
		held[rel.TargetHolonID] = true
	}
	// HELD_BY may be modeled qualification->person or person->held list;
	// also check the inverse direction in case the edge was recorded
	// qualification -> HELD_BY -> person.
	for _, rel := range m.relationships.GetRelationshipsTo(personID, model.RelHeldBy, model.RelationshipFilter{EffectiveAt: &t}) {
		held[rel.SourceHolonID] = true
	}

	var missing []string
	for _, req := range required {
		qualID := req.SourceHolonID
		if !held[qualID] {
			missing = append(missing, qualID)
		}
	}
	if len(missing) > 0 {
		return errs.Fail(errs.Newf(errs.KindConsistency,
			"person %s is missing %d qualification(s) required for position %s: %v",
			personID, len(missing), positionID, missing).
			WithRule("consistency: qualification coverage").
			WithHolons(append([]string{personID, positionID}, missing...)...).
			WithContext("missingQualifications", missing))
	}
	return errs.OK()
}

// RevokeQualificationParams is the caller-provided shape of RevokeQualification.
type RevokeQualificationParams struct {
	PersonID        string
	QualificationID string
	AwardEventID    string
	Reason          string
	Actor           string
	SourceSystem    string
	At              time.Time
}

// RevokeQualification ends the HAS_QUAL/HELD_BY edges between person and
// qualification and emits QualificationExpired causally linked to the
// award event.
func (m *Manager) RevokeQualification(params RevokeQualificationParams) errs.Result {
	res := errs.OK()

	hasQual := m.relationships.GetRelationshipsFrom(params.PersonID, model.RelHasQual, model.RelationshipFilter{EffectiveAt: &params.At})
	for _, rel := range hasQual {
		if rel.TargetHolonID != params.QualificationID {
			continue
		}
		r := m.relationships.EndRelationship(relationshipregistry.EndParams{
			ID: rel.ID, EndDate: params.At, Reason: params.Reason, Actor: params.Actor,
			SourceSystem: params.SourceSystem, EventType: model.EventQualificationRevoked,
		})
		res.Merge(r)
	}

	heldBy := m.relationships.GetRelationshipsFrom(params.QualificationID, model.RelHeldBy, model.RelationshipFilter{EffectiveAt: &params.At})
	for _, rel := range heldBy {
		if rel.TargetHolonID != params.PersonID {
			continue
		}
		r := m.relationships.EndRelationship(relationshipregistry.EndParams{
			ID: rel.ID, EndDate: params.At, Reason: params.Reason, Actor: params.Actor,
			SourceSystem: params.SourceSystem, EventType: model.EventQualificationRevoked,
		})
		res.Merge(r)
	}

	var causal model.CausalLinks
	if params.AwardEventID != "" {
		causal.CausedBy = []string{params.AwardEventID}
	}
	_, evtRes := m.events.SubmitEvent(eventstore.Submission{
		Type:         model.EventQualificationExpired,
		OccurredAt:   params.At,
		Actor:        params.Actor,
		Subjects:     []string{params.PersonID, params.QualificationID},
		SourceSystem: params.SourceSystem,
		Payload:      map[string]any{"reason": params.Reason},
		CausalLinks:  causal,
	})
	res.Merge(evtRes)

	if res.Valid {
		m.log.WithField("person_id", params.PersonID).WithField("qualification_id", params.QualificationID).Info("qualification revoked")
	}
	return res
}

func firstOrEmpty(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}
