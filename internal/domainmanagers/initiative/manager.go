// Package initiative implements the Initiative/Task domain manager:
// creating Initiative and Task holons, wiring ALIGNED_TO and PART_OF
// edges, and maintaining the Task DEPENDS_ON DAG with cycle rejection.
package initiative

import (
	"time"

	"github.com/cmvayette/digitalbackbone-sub002/internal/errs"
	"github.com/cmvayette/digitalbackbone-sub002/internal/eventstore"
	"github.com/cmvayette/digitalbackbone-sub002/internal/holonregistry"
	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
	"github.com/cmvayette/digitalbackbone-sub002/internal/relationshipregistry"
	"github.com/cmvayette/digitalbackbone-sub002/pkg/logger"
)

// InitiativeStage is the closed set of Initiative lifecycle stages.
type InitiativeStage string

const (
	StageProposed  InitiativeStage = "proposed"
	StageApproved  InitiativeStage = "approved"
	StagePlanned   InitiativeStage = "planned"
	StageActive    InitiativeStage = "active"
	StagePaused    InitiativeStage = "paused"
	StageCompleted InitiativeStage = "completed"
	StageCancelled InitiativeStage = "cancelled"
)

func validStage(s InitiativeStage) bool {
	switch s {
	case StageProposed, StageApproved, StagePlanned, StageActive, StagePaused, StageCompleted, StageCancelled:
		return true
	}
	return false
}

// allowedStageTransitions encodes the illustrative state machine: proposed
// -> approved -> planned -> active -> {paused -> active, completed,
// cancelled}.
var allowedStageTransitions = map[InitiativeStage][]InitiativeStage{
	StageProposed:  {StageApproved, StageCancelled},
	StageApproved:  {StagePlanned, StageCancelled},
	StagePlanned:   {StageActive, StageCancelled},
	StageActive:    {StagePaused, StageCompleted, StageCancelled},
	StagePaused:    {StageActive, StageCancelled},
	StageCompleted: {},
	StageCancelled: {},
}

func isTerminalStage(s InitiativeStage) bool {
	return s == StageCompleted || s == StageCancelled
}

// TaskPriority is the closed set of Task priorities.
type TaskPriority string

const (
	PriorityCritical TaskPriority = "critical"
	PriorityHigh     TaskPriority = "high"
	PriorityMedium   TaskPriority = "medium"
	PriorityLow      TaskPriority = "low"
)

func validPriority(p TaskPriority) bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// TaskStatus is the closed set of Task lifecycle statuses.
type TaskStatus string

const (
	TaskCreated   TaskStatus = "created"
	TaskAssigned  TaskStatus = "assigned"
	TaskStarted   TaskStatus = "started"
	TaskBlocked   TaskStatus = "blocked"
	TaskCompleted TaskStatus = "completed"
	TaskCancelled TaskStatus = "cancelled"
)

func validTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskCreated, TaskAssigned, TaskStarted, TaskBlocked, TaskCompleted, TaskCancelled:
		return true
	}
	return false
}

var allowedTaskTransitions = map[TaskStatus][]TaskStatus{
	TaskCreated:   {TaskAssigned, TaskCancelled},
	TaskAssigned:  {TaskStarted, TaskCancelled},
	TaskStarted:   {TaskBlocked, TaskCompleted, TaskCancelled},
	TaskBlocked:   {TaskStarted, TaskCancelled},
	TaskCompleted: {},
	TaskCancelled: {},
}

func isTerminalTaskStatus(s TaskStatus) bool {
	return s == TaskCompleted || s == TaskCancelled
}

// InitiativeProperties is the typed shape of an Initiative holon's property record.
type InitiativeProperties struct {
	Name    string          `json:"name"`
	Scope   string          `json:"scope"`
	Sponsor string          `json:"sponsor"`
	Stage   InitiativeStage `json:"stage"`
}

func (p InitiativeProperties) toMap() map[string]any {
	return map[string]any{"name": p.Name, "scope": p.Scope, "sponsor": p.Sponsor, "stage": string(p.Stage)}
}

func (p InitiativeProperties) validate() errs.Result {
	res := errs.OK()
	if p.Name == "" {
		res.AddError(errs.New(errs.KindValidation, "name is required").WithRule("validation: initiative.name"))
	}
	if p.Scope == "" {
		res.AddError(errs.New(errs.KindValidation, "scope is required").WithRule("validation: initiative.scope"))
	}
	if p.Sponsor == "" {
		res.AddError(errs.New(errs.KindValidation, "sponsor is required").WithRule("validation: initiative.sponsor"))
	}
	if !validStage(p.Stage) {
		res.AddError(errs.Newf(errs.KindValidation, "stage %q is not a recognized initiative stage", p.Stage).WithRule("validation: initiative.stage"))
	}
	return res
}

// TaskProperties is the typed shape of a Task holon's property record.
type TaskProperties struct {
	Description string       `json:"description"`
	Type        string       `json:"type"`
	Priority    TaskPriority `json:"priority"`
	DueDate     time.Time    `json:"dueDate"`
	Status      TaskStatus   `json:"status"`
}

func (p TaskProperties) toMap() map[string]any {
	return map[string]any{
		"description": p.Description, "type": p.Type, "priority": string(p.Priority),
		"dueDate": p.DueDate, "status": string(p.Status),
	}
}

func (p TaskProperties) validate() errs.Result {
	res := errs.OK()
	if p.Description == "" {
		res.AddError(errs.New(errs.KindValidation, "description is required").WithRule("validation: task.description"))
	}
	if p.Type == "" {
		res.AddError(errs.New(errs.KindValidation, "type is required").WithRule("validation: task.type"))
	}
	if !validPriority(p.Priority) {
		res.AddError(errs.Newf(errs.KindValidation, "priority %q is not one of critical, high, medium, low", p.Priority).WithRule("validation: task.priority"))
	}
	if p.DueDate.IsZero() {
		res.AddError(errs.New(errs.KindValidation, "dueDate is required").WithRule("validation: task.dueDate"))
	}
	if !validTaskStatus(p.Status) {
		res.AddError(errs.Newf(errs.KindValidation, "status %q is not a recognized task status", p.Status).WithRule("validation: task.status"))
	}
	return res
}

// Manager wraps the shared registries with the Initiative/Task domain's
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

// New creates an Initiative manager wired to its collaborators.
func New(holons *holonregistry.Registry, relationships *relationshipregistry.Registry, events *eventstore.Store, opts ...Option) *Manager {
	m := &Manager{holons: holons, relationships: relationships, events: events, log: logger.NewDefault("domainmanagers.initiative")}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateInitiativeParams is the caller-provided shape of CreateInitiative.
type CreateInitiativeParams struct {
	Properties      InitiativeProperties
	ObjectiveIDs    []string
	Actor           string
	SourceSystem    string
	SourceDocuments []string
	OccurredAt      time.Time
}

// CreateInitiative creates an Initiative holon and wires an ALIGNED_TO
// edge to each referenced objective.
func (m *Manager) CreateInitiative(params CreateInitiativeParams) (model.Holon, errs.Result) {
	if res := params.Properties.validate(); !res.Valid {
		return model.Holon{}, res
	}

	res := errs.OK()
	for _, objID := range params.ObjectiveIDs {
		if !m.holons.Exists(objID) {
			res.AddError(errs.Newf(errs.KindValidation, "objective %s does not exist", objID).WithRule("validation: unknown objective"))
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
		Type: model.EventInitiativeCreated, OccurredAt: occurredAt, Actor: params.Actor,
		SourceSystem: params.SourceSystem, SourceDocument: firstOrEmpty(params.SourceDocuments),
		Payload: params.Properties.toMap(),
	})
	if !res.Valid {
		return model.Holon{}, res
	}

	holon, res := m.holons.CreateHolon(holonregistry.Params{
		Type: model.HolonInitiative, Properties: params.Properties.toMap(),
		CreatedBy: eventID, SourceDocuments: params.SourceDocuments,
	})
	if !res.Valid {
		return model.Holon{}, res
	}

	for _, objID := range params.ObjectiveIDs {
		out := m.relationships.CreateRelationship(relationshipregistry.Params{
			Type: model.RelAlignedTo, SourceHolonID: holon.ID, TargetHolonID: objID,
			EffectiveStart: occurredAt, Actor: params.Actor, SourceSystem: params.SourceSystem,
		})
		if !out.Validation.Valid {
			m.holons.MarkHolonInactive(holon.ID, "failed to wire ALIGNED_TO edge")
			return model.Holon{}, out.Validation
		}
	}

	m.log.WithField("initiative_id", holon.ID).Info("initiative created")
	return holon, errs.OK()
}

// TransitionInitiativeStage validates the transition against the stage
// state machine and records the new stage on the holon's properties.
func (m *Manager) TransitionInitiativeStage(initiativeID string, to InitiativeStage) errs.Result {
	holon, ok := m.holons.GetHolon(initiativeID)
	if !ok {
		return errs.Fail(errs.Newf(errs.KindValidation, "initiative %s does not exist", initiativeID).WithRule("validation: unknown initiative"))
	}
	from, _ := holon.Properties["stage"].(string)
	if res := transitionStage(InitiativeStage(from), to); !res.Valid {
		return res
	}
	return m.holons.SetProperty(initiativeID, "stage", string(to))
}

func transitionStage(from, to InitiativeStage) errs.Result {
	if isTerminalStage(from) {
		return errs.Fail(errs.Newf(errs.KindConsistency, "initiative stage %q is terminal and cannot change", from).WithRule("consistency: terminal stage"))
	}
	for _, allowed := range allowedStageTransitions[from] {
		if allowed == to {
			return errs.OK()
		}
	}
	return errs.Fail(errs.Newf(errs.KindConsistency, "invalid initiative stage transition from %q to %q", from, to).WithRule("consistency: invalid stage transition"))
}

// CreateTaskParams is the caller-provided shape of CreateTask.
type CreateTaskParams struct {
	Properties      TaskProperties
	InitiativeID    string
	Actor           string
	SourceSystem    string
	SourceDocuments []string
	OccurredAt      time.Time
}

// CreateTask creates a Task holon and wires a PART_OF edge to its
// initiative.
func (m *Manager) CreateTask(params CreateTaskParams) (model.Holon, errs.Result) {
	if res := params.Properties.validate(); !res.Valid {
		return model.Holon{}, res
	}
	if params.InitiativeID != "" && !m.holons.Exists(params.InitiativeID) {
		return model.Holon{}, errs.Fail(errs.Newf(errs.KindValidation, "initiative %s does not exist", params.InitiativeID).WithRule("validation: unknown initiative"))
	}

	occurredAt := params.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	eventID, res := m.events.SubmitEvent(eventstore.Submission{
		Type: model.EventTaskStarted, OccurredAt: occurredAt, Actor: params.Actor,
		SourceSystem: params.SourceSystem, SourceDocument: firstOrEmpty(params.SourceDocuments),
		Payload: params.Properties.toMap(),
	})
	if !res.Valid {
		return model.Holon{}, res
	}

	holon, res := m.holons.CreateHolon(holonregistry.Params{
		Type: model.HolonTask, Properties: params.Properties.toMap(),
		CreatedBy: eventID, SourceDocuments: params.SourceDocuments,
	})
	if !res.Valid {
		return model.Holon{}, res
	}

	if params.InitiativeID != "" {
		out := m.relationships.CreateRelationship(relationshipregistry.Params{
			Type: model.RelPartOf, SourceHolonID: holon.ID, TargetHolonID: params.InitiativeID,
			EffectiveStart: occurredAt, Actor: params.Actor, SourceSystem: params.SourceSystem,
		})
		if !out.Validation.Valid {
			m.holons.MarkHolonInactive(holon.ID, "failed to wire PART_OF edge")
			return model.Holon{}, out.Validation
		}
	}

	m.log.WithField("task_id", holon.ID).Info("task created")
	return holon, errs.OK()
}

// TransitionTaskStatus validates the transition against the task status
// state machine.
func (m *Manager) TransitionTaskStatus(taskID string, to TaskStatus) errs.Result {
	holon, ok := m.holons.GetHolon(taskID)
	if !ok {
		return errs.Fail(errs.Newf(errs.KindValidation, "task %s does not exist", taskID).WithRule("validation: unknown task"))
	}
	from, _ := holon.Properties["status"].(string)
	if res := transitionTaskStatus(TaskStatus(from), to); !res.Valid {
		return res
	}
	return m.holons.SetProperty(taskID, "status", string(to))
}

func transitionTaskStatus(from, to TaskStatus) errs.Result {
	if isTerminalTaskStatus(from) {
		return errs.Fail(errs.Newf(errs.KindConsistency, "task status %q is terminal and cannot change", from).WithRule("consistency: terminal status"))
	}
	for _, allowed := range allowedTaskTransitions[from] {
		if allowed == to {
			return errs.OK()
		}
	}
	return errs.Fail(errs.Newf(errs.KindConsistency, "invalid task status transition from %q to %q", from, to).WithRule("consistency: invalid status transition"))
}

// AddTaskDependencyParams is the caller-provided shape of AddTaskDependency.
type AddTaskDependencyParams struct {
	TaskID         string
	DependsOnID    string
	EffectiveStart time.Time
	Actor          string
	SourceSystem   string
}

// AddTaskDependency creates a DEPENDS_ON edge between two tasks, rejecting
// any edge that would close a cycle in the task dependency DAG.
func (m *Manager) AddTaskDependency(params AddTaskDependencyParams) relationshipregistry.Outcome {
	if params.TaskID == params.DependsOnID {
		return relationshipregistry.Outcome{Validation: errs.Fail(errs.New(errs.KindConsistency, "a task cannot depend on itself").WithRule("consistency: self-dependency").WithHolons(params.TaskID))}
	}
	if m.reachable(params.DependsOnID, params.TaskID) {
		return relationshipregistry.Outcome{Validation: errs.Fail(errs.Newf(errs.KindConsistency,
			"adding a dependency from %s to %s would close a cycle", params.TaskID, params.DependsOnID).
			WithRule("consistency: dependency cycle").WithHolons(params.TaskID, params.DependsOnID))}
	}
	return m.relationships.CreateRelationship(relationshipregistry.Params{
		Type: model.RelDependsOn, SourceHolonID: params.TaskID, TargetHolonID: params.DependsOnID,
		EffectiveStart: params.EffectiveStart, Actor: params.Actor, SourceSystem: params.SourceSystem,
	})
}

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
