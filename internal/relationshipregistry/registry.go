// Package relationshipregistry implements the Relationship Registry:
// directed, temporally-scoped edges between holons. Creation runs through
// the Constraint Engine at effectiveStart and synthesizes an
// AssignmentStarted-style event; ending a relationship never deletes the
// edge, only closes its effective window and synthesizes a closing event.
package relationshipregistry

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cmvayette/digitalbackbone-sub002/internal/constraintengine"
	"github.com/cmvayette/digitalbackbone-sub002/internal/errs"
	"github.com/cmvayette/digitalbackbone-sub002/internal/eventstore"
	"github.com/cmvayette/digitalbackbone-sub002/internal/holonregistry"
	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
	"github.com/cmvayette/digitalbackbone-sub002/pkg/logger"
)

// Registry is the in-memory reference implementation of the relationship registry.
type Registry struct {
	mu sync.RWMutex

	byID     map[string]model.Relationship
	bySource map[string][]string
	byTarget map[string][]string
	byType   map[model.RelationshipType][]string

	holons      *holonregistry.Registry
	constraints *constraintengine.Engine
	events      *eventstore.Store

	log *logger.Logger
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithLogger overrides the registry's logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// New creates an empty relationship registry wired to its collaborators.
func New(holons *holonregistry.Registry, constraints *constraintengine.Engine, events *eventstore.Store, opts ...Option) *Registry {
	r := &Registry{
		byID:        make(map[string]model.Relationship),
		bySource:    make(map[string][]string),
		byTarget:    make(map[string][]string),
		byType:      make(map[model.RelationshipType][]string),
		holons:      holons,
		constraints: constraints,
		events:      events,
		log:         logger.NewDefault("relationshipregistry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Params is the caller-provided shape of a new relationship.
type Params struct {
	Type            model.RelationshipType
	SourceHolonID   string
	TargetHolonID   string
	Properties      map[string]any
	EffectiveStart  time.Time
	EffectiveEnd    *time.Time
	SourceSystem    string
	SourceDocuments []string
	Actor           string
	AuthorityLevel  model.AuthorityLevel
	ConfidenceScore *float64
	EventType       model.EventType
}

// Outcome is the { relationship?, validation } pair createRelationship
// returns.
type Outcome struct {
	Relationship model.Relationship
	Validation   errs.Result
}

// CreateRelationship validates through the Constraint Engine at
// effectiveStart; on success it synthesizes a creation event, stores the
// edge, and updates the source/target/type indices.
func (r *Registry) CreateRelationship(params Params) Outcome {
	if params.EffectiveEnd != nil && params.EffectiveEnd.Before(params.EffectiveStart) {
		return Outcome{Validation: errs.Fail(errs.New(errs.KindTemporal, "effectiveEnd precedes effectiveStart").WithRule("temporal: relationship effective dates"))}
	}
	if r.holons != nil {
		if !r.holons.Exists(params.SourceHolonID) {
			return Outcome{Validation: errs.Fail(errs.Newf(errs.KindValidation, "source holon %s does not exist", params.SourceHolonID).WithRule("validation: unknown source holon"))}
		}
		if !r.holons.Exists(params.TargetHolonID) {
			return Outcome{Validation: errs.Fail(errs.Newf(errs.KindValidation, "target holon %s does not exist", params.TargetHolonID).WithRule("validation: unknown target holon"))}
		}
	}

	authority := params.AuthorityLevel
	if authority == "" {
		authority = model.AuthorityAuthoritative
	}

	candidate := model.Relationship{
		Type:            params.Type,
		SourceHolonID:   params.SourceHolonID,
		TargetHolonID:   params.TargetHolonID,
		Properties:      params.Properties,
		EffectiveStart:  params.EffectiveStart,
		EffectiveEnd:    params.EffectiveEnd,
		SourceSystem:    params.SourceSystem,
		SourceDocuments: params.SourceDocuments,
		AuthorityLevel:  authority,
		ConfidenceScore: params.ConfidenceScore,
	}

	if r.constraints != nil {
		at := params.EffectiveStart
		if res := r.constraints.ValidateRelationship(candidate, &at); !res.Valid {
			return Outcome{Validation: res}
		}
	}

	evtType := params.EventType
	if evtType == "" {
		evtType = model.EventAssignmentStarted
	}

	var createdBy string
	if r.events != nil {
		id, res := r.events.SubmitEvent(eventstore.Submission{
			Type:           evtType,
			OccurredAt:     params.EffectiveStart,
			Actor:          params.Actor,
			Subjects:       []string{params.SourceHolonID, params.TargetHolonID},
			SourceSystem:   params.SourceSystem,
			SourceDocument: firstOrEmpty(params.SourceDocuments),
		})
		if !res.Valid {
			return Outcome{Validation: res}
		}
		createdBy = id
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := fmt.Sprintf("rel_%s", uuid.NewString())
	candidate.ID = id
	candidate.CreatedBy = createdBy
	r.byID[id] = candidate
	r.bySource[candidate.SourceHolonID] = append(r.bySource[candidate.SourceHolonID], id)
	r.byTarget[candidate.TargetHolonID] = append(r.byTarget[candidate.TargetHolonID], id)
	r.byType[candidate.Type] = append(r.byType[candidate.Type], id)

	r.log.WithField("relationship_id", id).WithField("type", candidate.Type).Info("relationship created")
	return Outcome{Relationship: candidate.Clone(), Validation: errs.OK()}
}

func firstOrEmpty(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}

// GetRelationship returns the relationship for id, if present.
func (r *Registry) GetRelationship(id string) (model.Relationship, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rel, ok := r.byID[id]
	if !ok {
		return model.Relationship{}, false
	}
	return rel.Clone(), true
}

// GetRelationshipsFrom returns edges with source holonID, optionally
// narrowed by type, filtered by filter.
func (r *Registry) GetRelationshipsFrom(holonID string, relType model.RelationshipType, filter model.RelationshipFilter) []model.Relationship {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filterLocked(r.bySource[holonID], relType, filter)
}

// GetRelationshipsTo returns edges with target holonID, optionally narrowed
// by type, filtered by filter.
func (r *Registry) GetRelationshipsTo(holonID string, relType model.RelationshipType, filter model.RelationshipFilter) []model.Relationship {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filterLocked(r.byTarget[holonID], relType, filter)
}

// GetRelationshipsByType returns every edge of relType, filtered by filter.
func (r *Registry) GetRelationshipsByType(relType model.RelationshipType, filter model.RelationshipFilter) []model.Relationship {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filterLocked(r.byType[relType], "", filter)
}

func (r *Registry) filterLocked(ids []string, relType model.RelationshipType, filter model.RelationshipFilter) []model.Relationship {
	out := make([]model.Relationship, 0, len(ids))
	for _, id := range ids {
		rel, ok := r.byID[id]
		if !ok {
			continue
		}
		if relType != "" && rel.Type != relType {
			continue
		}
		if !filter.Matches(rel) {
			continue
		}
		out = append(out, rel.Clone())
	}
	return out
}

// EndParams is the caller-provided shape of endRelationship.
type EndParams struct {
	ID           string
	EndDate      time.Time
	Reason       string
	Actor        string
	SourceSystem string
	EventType    model.EventType
}

// EndRelationship refuses if already ended or endDate < effectiveStart;
// otherwise it sets effectiveEnd, synthesizes a closing event causally
// linked to the creation event, and leaves the index entries untouched —
// only time-based filters now exclude the edge under includeEnded=false.
func (r *Registry) EndRelationship(params EndParams) errs.Result {
	r.mu.Lock()
	rel, ok := r.byID[params.ID]
	if !ok {
		r.mu.Unlock()
		return errs.Fail(errs.Newf(errs.KindValidation, "relationship %s does not exist", params.ID).WithRule("validation: unknown relationship"))
	}
	if rel.Ended() {
		r.mu.Unlock()
		return errs.Fail(errs.New(errs.KindTemporal, "relationship is already ended").WithRule("temporal: relationship already ended"))
	}
	if params.EndDate.Before(rel.EffectiveStart) {
		r.mu.Unlock()
		return errs.Fail(errs.New(errs.KindTemporal, "endDate precedes effectiveStart").WithRule("temporal: end before start"))
	}
	r.mu.Unlock()

	evtType := params.EventType
	if evtType == "" {
		evtType = model.EventAssignmentEnded
	}

	var causalLinks model.CausalLinks
	if rel.CreatedBy != "" {
		causalLinks.PrecededBy = []string{rel.CreatedBy}
	}

	if r.events != nil {
		_, res := r.events.SubmitEvent(eventstore.Submission{
			Type:         evtType,
			OccurredAt:   params.EndDate,
			Actor:        params.Actor,
			Subjects:     []string{rel.SourceHolonID, rel.TargetHolonID},
			SourceSystem: params.SourceSystem,
			Payload:      map[string]any{"reason": params.Reason},
			CausalLinks:  causalLinks,
		})
		if !res.Valid {
			return res
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rel = r.byID[params.ID]
	end := params.EndDate
	rel.EffectiveEnd = &end
	r.byID[params.ID] = rel

	r.log.WithField("relationship_id", params.ID).Info("relationship ended")
	return errs.OK()
}
