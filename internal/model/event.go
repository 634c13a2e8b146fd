package model

import "time"

// EventType is the closed set of domain facts the store accepts.
type EventType string

const (
	EventObjectiveCreated        EventType = "ObjectiveCreated"
	EventKeyResultDefined        EventType = "KeyResultDefined"
	EventAssignmentStarted       EventType = "AssignmentStarted"
	EventAssignmentEnded         EventType = "AssignmentEnded"
	EventAssignmentCorrected     EventType = "AssignmentCorrected"
	EventQualificationAwarded    EventType = "QualificationAwarded"
	EventQualificationExpired    EventType = "QualificationExpired"
	EventQualificationRevoked    EventType = "QualificationRevoked"
	EventMissionPlanned          EventType = "MissionPlanned"
	EventMissionPhaseTransition  EventType = "MissionPhaseTransition"
	EventMissionLaunched         EventType = "MissionLaunched"
	EventMissionCompleted        EventType = "MissionCompleted"
	EventPositionCreated         EventType = "PositionCreated"
	EventPositionModified        EventType = "PositionModified"
	EventOrganizationCreated     EventType = "OrganizationCreated"
	EventSystemDeployed          EventType = "SystemDeployed"
	EventPersonOnboarded         EventType = "PersonOnboarded"
	EventTaskStarted             EventType = "TaskStarted"
	EventTaskCompleted           EventType = "TaskCompleted"
	EventTaskCancelled           EventType = "TaskCancelled"
	EventInitiativeCreated       EventType = "InitiativeCreated"
	EventLOECreated              EventType = "LOECreated"
	EventSchemaProposalDecided   EventType = "SchemaProposalDecided"
)

// ValidityWindow bounds the span an event's payload is considered in effect.
type ValidityWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CausalLinks connects an event to the facts that justify or precede it.
type CausalLinks struct {
	PrecededBy []string `json:"precededBy,omitempty"`
	CausedBy   []string `json:"causedBy,omitempty"`
}

// All returns the union of precededBy and causedBy ids.
func (c CausalLinks) All() []string {
	if len(c.PrecededBy) == 0 {
		return c.CausedBy
	}
	if len(c.CausedBy) == 0 {
		return c.PrecededBy
	}
	out := make([]string, 0, len(c.PrecededBy)+len(c.CausedBy))
	out = append(out, c.PrecededBy...)
	out = append(out, c.CausedBy...)
	return out
}

// Event is an immutable fact appended to the event store.
type Event struct {
	ID             string          `json:"id"`
	Type           EventType       `json:"type"`
	OccurredAt     time.Time       `json:"occurredAt"`
	RecordedAt     time.Time       `json:"recordedAt"`
	Actor          string          `json:"actor"`
	Subjects       []string        `json:"subjects"`
	Payload        map[string]any  `json:"payload,omitempty"`
	SourceSystem   string          `json:"sourceSystem,omitempty"`
	SourceDocument string          `json:"sourceDocument,omitempty"`
	ValidityWindow *ValidityWindow `json:"validityWindow,omitempty"`
	CausalLinks    CausalLinks     `json:"causalLinks"`
	Fingerprint    string          `json:"fingerprint,omitempty"`
}

// Clone returns a copy safe to hand outside the event store's lock.
func (e Event) Clone() Event {
	c := e
	if e.Subjects != nil {
		c.Subjects = append([]string(nil), e.Subjects...)
	}
	if e.Payload != nil {
		c.Payload = make(map[string]any, len(e.Payload))
		for k, v := range e.Payload {
			c.Payload[k] = v
		}
	}
	if e.ValidityWindow != nil {
		window := *e.ValidityWindow
		c.ValidityWindow = &window
	}
	if e.CausalLinks.PrecededBy != nil {
		c.CausalLinks.PrecededBy = append([]string(nil), e.CausalLinks.PrecededBy...)
	}
	if e.CausalLinks.CausedBy != nil {
		c.CausalLinks.CausedBy = append([]string(nil), e.CausalLinks.CausedBy...)
	}
	return c
}
