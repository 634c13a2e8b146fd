// Package mission implements the Mission/Capability/Asset domain manager:
// planning a Mission, Capability, or Asset holon, wiring the USES and
// SUPPORTS edges between them, and recording phase transitions.
package mission

import (
	"time"

	"github.com/cmvayette/digitalbackbone-sub002/internal/errs"
	"github.com/cmvayette/digitalbackbone-sub002/internal/eventstore"
	"github.com/cmvayette/digitalbackbone-sub002/internal/holonregistry"
	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
	"github.com/cmvayette/digitalbackbone-sub002/internal/relationshipregistry"
	"github.com/cmvayette/digitalbackbone-sub002/pkg/logger"
)

// OperationType is the closed set of operation classifications.
type OperationType string

const (
	OperationTraining  OperationType = "training"
	OperationRealWorld OperationType = "real_world"
)

func validOperationType(t OperationType) bool {
	return t == OperationTraining || t == OperationRealWorld
}

// Properties is the typed shape shared by Mission, Capability, and Asset
// holon property records.
type Properties struct {
	OperationName  string        `json:"operationName"`
	OperationNumber string       `json:"operationNumber"`
	Type           OperationType `json:"type"`
	Classification string        `json:"classification"`
	Start          time.Time     `json:"start"`
	End            *time.Time    `json:"end,omitempty"`
}

func (p Properties) toMap() map[string]any {
	m := map[string]any{
		"operationName":   p.OperationName,
		"operationNumber": p.OperationNumber,
		"type":            string(p.Type),
		"classification":  p.Classification,
		"start":           p.Start,
	}
	if p.End != nil {
		m["end"] = *p.End
	}
	return m
}

func (p Properties) validate() errs.Result {
	res := errs.OK()
	if p.OperationName == "" {
		res.AddError(errs.New(errs.KindValidation, "operationName is required").WithRule("validation: operationName"))
	}
	if p.OperationNumber == "" {
		res.AddError(errs.New(errs.KindValidation, "operationNumber is required").WithRule("validation: operationNumber"))
	}
	if !validOperationType(p.Type) {
		res.AddError(errs.Newf(errs.KindValidation, "type %q is not one of training, real_world", p.Type).WithRule("validation: operationType"))
	}
	if p.Classification == "" {
		res.AddError(errs.New(errs.KindValidation, "classification is required").WithRule("validation: classification"))
	}
	if p.Start.IsZero() {
		res.AddError(errs.New(errs.KindValidation, "start is required").WithRule("validation: start"))
	}
	if p.End != nil && p.End.Before(p.Start) {
		res.AddError(errs.New(errs.KindTemporal, "end precedes start").WithRule("temporal: operation window"))
	}
	return res
}

// Manager wraps the shared registries with the Mission/Capability/Asset
// domain's invariants.
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

// New creates a Mission manager wired to its collaborators.
func New(holons *holonregistry.Registry, relationships *relationshipregistry.Registry, events *eventstore.Store, opts ...Option) *Manager {
	m := &Manager{holons: holons, relationships: relationships, events: events, log: logger.NewDefault("domainmanagers.mission")}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PlanParams is the caller-provided shape of PlanMission/PlanCapability/PlanAsset.
type PlanParams struct {
	HolonType       model.HolonType
	Properties      Properties
	Actor           string
	SourceSystem    string
	SourceDocuments []string
}

// PlanMission creates a Mission holon via a MissionPlanned event.
func (m *Manager) PlanMission(params PlanParams) (model.Holon, errs.Result) {
	params.HolonType = model.HolonMission
	return m.plan(params, model.EventMissionPlanned)
}

// PlanCapability creates a Capability holon.
func (m *Manager) PlanCapability(params PlanParams) (model.Holon, errs.Result) {
	params.HolonType = model.HolonCapability
	return m.plan(params, model.EventMissionPlanned)
}

// PlanAsset creates an Asset holon.
func (m *Manager) PlanAsset(params PlanParams) (model.Holon, errs.Result) {
	params.HolonType = model.HolonAsset
	return m.plan(params, model.EventMissionPlanned)
}

func (m *Manager) plan(params PlanParams, eventType model.EventType) (model.Holon, errs.Result) {
	if res := params.Properties.validate(); !res.Valid {
		return model.Holon{}, res
	}

	eventID, res := m.events.SubmitEvent(eventstore.Submission{
		Type: eventType, OccurredAt: params.Properties.Start, Actor: params.Actor,
		SourceSystem: params.SourceSystem, SourceDocument: firstOrEmpty(params.SourceDocuments),
		Payload: params.Properties.toMap(),
	})
	if !res.Valid {
		return model.Holon{}, res
	}

	return m.holons.CreateHolon(holonregistry.Params{
		Type: params.HolonType, Properties: params.Properties.toMap(),
		CreatedBy: eventID, SourceDocuments: params.SourceDocuments,
	})
}

// LinkParams is the caller-provided shape of UseCapability/SupportMission.
type LinkParams struct {
	MissionID      string
	OtherID        string
	EffectiveStart time.Time
	EffectiveEnd   *time.Time
	Actor          string
	SourceSystem   string
}

// UseCapability creates a temporally-scoped USES edge from mission to capability.
func (m *Manager) UseCapability(params LinkParams) relationshipregistry.Outcome {
	return m.relationships.CreateRelationship(relationshipregistry.Params{
		Type: model.RelUses, SourceHolonID: params.MissionID, TargetHolonID: params.OtherID,
		EffectiveStart: params.EffectiveStart, EffectiveEnd: params.EffectiveEnd,
		Actor: params.Actor, SourceSystem: params.SourceSystem,
	})
}

// SupportMission creates a temporally-scoped SUPPORTS edge from asset to mission.
func (m *Manager) SupportMission(params LinkParams) relationshipregistry.Outcome {
	return m.relationships.CreateRelationship(relationshipregistry.Params{
		Type: model.RelSupports, SourceHolonID: params.OtherID, TargetHolonID: params.MissionID,
		EffectiveStart: params.EffectiveStart, EffectiveEnd: params.EffectiveEnd,
		Actor: params.Actor, SourceSystem: params.SourceSystem,
	})
}

// TransitionPhaseParams is the caller-provided shape of TransitionPhase.
type TransitionPhaseParams struct {
	MissionID  string
	FromPhase  string
	ToPhase    string
	Reason     string
	OccurredAt time.Time
	Actor      string
}

// TransitionPhase records a MissionPhaseTransition event subjected to the
// mission holon.
func (m *Manager) TransitionPhase(params TransitionPhaseParams) (string, errs.Result) {
	if !m.holons.Exists(params.MissionID) {
		return "", errs.Fail(errs.Newf(errs.KindValidation, "mission %s does not exist", params.MissionID).WithRule("validation: unknown mission"))
	}
	payload := map[string]any{"fromPhase": params.FromPhase, "toPhase": params.ToPhase}
	if params.Reason != "" {
		payload["reason"] = params.Reason
	}
	return m.events.SubmitEvent(eventstore.Submission{
		Type: model.EventMissionPhaseTransition, OccurredAt: params.OccurredAt, Actor: params.Actor,
		Subjects: []string{params.MissionID}, Payload: payload,
	})
}

// GetMissionPhaseHistory returns the ids of every MissionPhaseTransition
// event subjected to missionID, in submission order.
func (m *Manager) GetMissionPhaseHistory(missionID string) []string {
	var ids []string
	for _, e := range m.events.GetEventsByHolon(missionID) {
		if e.Type == model.EventMissionPhaseTransition {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

func firstOrEmpty(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}
