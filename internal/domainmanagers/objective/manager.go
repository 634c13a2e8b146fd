// Package objective implements the Objective/LOE domain manager: creating
// an Objective with its required measure, owner, and line-of-effort
// edges, and wiring Objective-to-objective DEPENDS_ON edges with cycle
// rejection.
package objective

import (
	"time"

	"github.com/cmvayette/digitalbackbone-sub002/internal/errs"
	"github.com/cmvayette/digitalbackbone-sub002/internal/eventstore"
	"github.com/cmvayette/digitalbackbone-sub002/internal/holonregistry"
	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
	"github.com/cmvayette/digitalbackbone-sub002/internal/relationshipregistry"
	"github.com/cmvayette/digitalbackbone-sub002/pkg/logger"
)

// Measure is a single measure of an Objective's progress.
type Measure struct {
	HolonID     string `json:"holonId"`
	Description string `json:"description"`
}

// Properties is the typed shape of an Objective holon's property record.
type Properties struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Measures    []Measure `json:"measures"`
	OwnerID     string    `json:"ownerId"`
	LOEID       string    `json:"loeId"`
}

func (p Properties) toMap() map[string]any {
	measures := make([]map[string]any, 0, len(p.Measures))
	for _, m := range p.Measures {
		measures = append(measures, map[string]any{"holonId": m.HolonID, "description": m.Description})
	}
	return map[string]any{
		"name": p.Name, "description": p.Description, "measures": measures,
		"ownerId": p.OwnerID, "loeId": p.LOEID,
	}
}

func (p Properties) validate() errs.Result {
	res := errs.OK()
	if p.Name == "" {
		res.AddError(errs.New(errs.KindValidation, "name is required").WithRule("validation: objective.name"))
	}
	if len(p.Measures) == 0 {
		res.AddError(errs.New(errs.KindValidation, "an objective requires at least one measure").WithRule("validation: objective.measures"))
	}
	if p.OwnerID == "" {
		res.AddError(errs.New(errs.KindValidation, "an objective requires exactly one owner").WithRule("validation: objective.owner"))
	}
	if p.LOEID == "" {
		res.AddError(errs.New(errs.KindValidation, "an objective requires exactly one LOE link").WithRule("validation: objective.loe"))
	}
	return res
}

// Manager wraps the shared registries with the Objective/LOE domain's
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

// New creates an Objective manager wired to its collaborators.
func New(holons *holonregistry.Registry, relationships *relationshipregistry.Registry, events *eventstore.Store, opts ...Option) *Manager {
	m := &Manager{holons: holons, relationships: relationships, events: events, log: logger.NewDefault("domainmanagers.objective")}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateParams is the caller-provided shape of CreateObjective.
type CreateParams struct {
	Properties      Properties
	Actor           string
	SourceSystem    string
	SourceDocuments []string
	OccurredAt      time.Time
}

// CreateObjective validates measure/owner/LOE completeness, verifies every
// referenced holon exists, submits an ObjectiveCreated event, creates the
// Objective holon, and wires OWNED_BY, GROUPED_UNDER, and one MEASURED_BY
// edge per measure — rolling the holon back to inactive if any edge fails.
func (m *Manager) CreateObjective(params CreateParams) (model.Holon, errs.Result) {
	if res := params.Properties.validate(); !res.Valid {
		return model.Holon{}, res
	}

	res := errs.OK()
	if params.Properties.OwnerID != "" && !m.holons.Exists(params.Properties.OwnerID) {
		res.AddError(errs.Newf(errs.KindValidation, "owner %s does not exist", params.Properties.OwnerID).WithRule("validation: unknown owner"))
	}
	if params.Properties.LOEID != "" && !m.holons.Exists(params.Properties.LOEID) {
		res.AddError(errs.Newf(errs.KindValidation, "LOE %s does not exist", params.Properties.LOEID).WithRule("validation: unknown loe"))
	}
	for _, measure := range params.Properties.Measures {
		if measure.HolonID != "" && !m.holons.Exists(measure.HolonID) {
			res.AddError(errs.Newf(errs.KindValidation, "measure holon %s does not exist", measure.HolonID).WithRule("validation: unknown measure"))
		}
	}
	if !res.Valid {
		return model.Holon{}, res
	}

	occurredAt := params.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	eventID, res := m.events.SubmitEvent(eventstore.Submission{
		Type: model.EventObjectiveCreated, OccurredAt: occurredAt, Actor: params.Actor,
		SourceSystem: params.SourceSystem, SourceDocument: firstOrEmpty(params.SourceDocuments),
		Payload: params.Properties.toMap(),
	})
	if !res.Valid {
		return model.Holon{}, res
	}

	holon, res := m.holons.CreateHolon(holonregistry.Params{
		Type: model.HolonObjective, Properties: params.Properties.toMap(),
		CreatedBy: eventID, SourceDocuments: params.SourceDocuments,
	})
	if !res.Valid {
		return model.Holon{}, res
	}

	if res := m.wireEdges(holon.ID, params); !res.Valid {
		m.holons.MarkHolonInactive(holon.ID, "failed to wire required edges")
		return model.Holon{}, res
	}

	m.log.WithField("objective_id", holon.ID).Info("objective created")
	return holon, errs.OK()
}

func (m *Manager) wireEdges(objectiveID string, params CreateParams) errs.Result {
	start := params.OccurredAt
	if start.IsZero() {
		start = time.Now().UTC()
	}

	ownedBy := m.relationships.CreateRelationship(relationshipregistry.Params{
		Type: model.RelOwnedBy, SourceHolonID: objectiveID, TargetHolonID: params.Properties.OwnerID,
		EffectiveStart: start, Actor: params.Actor, SourceSystem: params.SourceSystem,
	})
	if !ownedBy.Validation.Valid {
		return ownedBy.Validation
	}

	groupedUnder := m.relationships.CreateRelationship(relationshipregistry.Params{
		Type: model.RelGroupedUnder, SourceHolonID: objectiveID, TargetHolonID: params.Properties.LOEID,
		EffectiveStart: start, Actor: params.Actor, SourceSystem: params.SourceSystem,
	})
	if !groupedUnder.Validation.Valid {
		return groupedUnder.Validation
	}

	for _, measure := range params.Properties.Measures {
		if measure.HolonID == "" {
			continue
		}
		measuredBy := m.relationships.CreateRelationship(relationshipregistry.Params{
			Type: model.RelMeasuredBy, SourceHolonID: objectiveID, TargetHolonID: measure.HolonID,
			EffectiveStart: start, Actor: params.Actor, SourceSystem: params.SourceSystem,
		})
		if !measuredBy.Validation.Valid {
			return measuredBy.Validation
		}
	}
	return errs.OK()
}

// AddDependencyParams is the caller-provided shape of AddDependency.
type AddDependencyParams struct {
	ObjectiveID    string
	DependsOnID    string
	EffectiveStart time.Time
	Actor          string
	SourceSystem   string
}

// AddDependency creates a DEPENDS_ON edge from objectiveID to dependsOnID,
// rejecting any edge that would close a cycle — detected by DFS from the
// target to see if the source is reachable.
func (m *Manager) AddDependency(params AddDependencyParams) relationshipregistry.Outcome {
	if m.reachable(params.DependsOnID, params.ObjectiveID) {
		return relationshipregistry.Outcome{Validation: errs.Fail(errs.Newf(errs.KindConsistency,
			"adding a dependency from %s to %s would close a cycle", params.ObjectiveID, params.DependsOnID).
			WithRule("consistency: dependency cycle").WithHolons(params.ObjectiveID, params.DependsOnID))}
	}
	return m.relationships.CreateRelationship(relationshipregistry.Params{
		Type: model.RelDependsOn, SourceHolonID: params.ObjectiveID, TargetHolonID: params.DependsOnID,
		EffectiveStart: params.EffectiveStart, Actor: params.Actor, SourceSystem: params.SourceSystem,
	})
}

// reachable reports whether to is reachable from from by walking DEPENDS_ON
// edges forward (from -> its dependencies -> their dependencies ...).
func (m *Manager) reachable(from, to string) bool {
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

func firstOrEmpty(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}
