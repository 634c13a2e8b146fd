// Package validation implements the Validation Engine: event-level
// validation with categorized results, an audit trail of every call, and
// compensating events for corrections. Corrections never mutate or delete
// a stored event — they append a new, causally-linked one.
package validation

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cmvayette/digitalbackbone-sub002/internal/config"
	"github.com/cmvayette/digitalbackbone-sub002/internal/documentregistry"
	"github.com/cmvayette/digitalbackbone-sub002/internal/errs"
	"github.com/cmvayette/digitalbackbone-sub002/internal/eventstore"
	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
)

// compensatingTypeTable maps an original event type to the type of event
// that compensates for it. Unknown original types fall back to
// AssignmentCorrected, per spec.md §4.7.
var compensatingTypeTable = map[model.EventType]model.EventType{
	model.EventAssignmentStarted:    model.EventAssignmentEnded,
	model.EventQualificationAwarded: model.EventQualificationRevoked,
	model.EventTaskStarted:          model.EventTaskCompleted,
	model.EventMissionLaunched:      model.EventMissionCompleted,
}

// LogEntry is one recorded call to ValidateEventWithDetails.
type LogEntry struct {
	ID         string
	Timestamp  time.Time
	EventID    string
	Result     Enhanced
	Categories []errs.Kind
}

// LogFilter narrows GetValidationLog.
type LogFilter struct {
	Since    *time.Time
	Until    *time.Time
	Category errs.Kind
	EventID  string
}

func (f LogFilter) matches(e LogEntry) bool {
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && e.Timestamp.After(*f.Until) {
		return false
	}
	if f.EventID != "" && e.EventID != f.EventID {
		return false
	}
	if f.Category != "" {
		found := false
		for _, c := range e.Categories {
			if c == f.Category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Enhanced is the validation result enriched with categorized errors, the
// documents in force at the event's timestamp, and the validation time.
type Enhanced struct {
	Result           errs.Result
	DocumentsInForce []model.Document
	ValidatedAt      time.Time
}

// Engine is the in-memory reference implementation of the validation engine.
type Engine struct {
	mu  sync.Mutex
	log []LogEntry

	events *eventstore.Store
	docs   *documentregistry.Registry

	past   time.Duration
	future time.Duration

	audit *zap.Logger
	now   func() time.Time
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithClock overrides the engine's notion of "now".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithAuditLogger overrides the zap logger used for the audit trail.
func WithAuditLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.audit = l }
}

// New creates a validation engine over the given event store and document
// registry, using cfg's temporal bounds.
func New(events *eventstore.Store, docs *documentregistry.Registry, cfg config.Config, opts ...Option) *Engine {
	audit, _ := zap.NewProduction()
	if audit == nil {
		audit = zap.NewNop()
	}
	e := &Engine{
		events: events,
		docs:   docs,
		past:   cfg.EventTemporalPastWindow,
		future: cfg.EventTemporalFutureWindow,
		audit:  audit,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ValidateTemporalConstraints checks occurredAt bounds, causal-link
// existence/ordering, and validity-window ordering for a standalone event
// (one not yet submitted to the store).
func (e *Engine) ValidateTemporalConstraints(ev model.Event) errs.Result {
	now := e.now()
	earliest := now.Add(-e.past)
	latest := now.Add(e.future)
	if ev.OccurredAt.Before(earliest) || ev.OccurredAt.After(latest) {
		return errs.Fail(errs.Newf(errs.KindTemporal, "occurredAt %s outside permitted window [%s, %s]", ev.OccurredAt, earliest, latest).
			WithRule("temporal: occurredAt bounds"))
	}
	for _, id := range ev.CausalLinks.All() {
		pred, ok := e.events.GetEvent(id)
		if !ok {
			return errs.Fail(errs.Newf(errs.KindConsistency, "causal predecessor %s does not exist", id).WithRule("consistency: orphan causal link"))
		}
		if pred.OccurredAt.After(ev.OccurredAt) {
			return errs.Fail(errs.Newf(errs.KindConsistency, "causal predecessor %s occurred after this event", id).WithRule("consistency: causal ordering"))
		}
	}
	if ev.ValidityWindow != nil && ev.ValidityWindow.End.Before(ev.ValidityWindow.Start) {
		return errs.Fail(errs.New(errs.KindTemporal, "validityWindow end precedes start").WithRule("temporal: validity window"))
	}
	return errs.OK()
}

// ValidateEventWithDetails runs temporal validation, enriches the result
// with the documents in force at the event's timestamp, and appends an
// audit-log entry.
func (e *Engine) ValidateEventWithDetails(ev model.Event) Enhanced {
	now := e.now()
	result := e.ValidateTemporalConstraints(ev)

	var inForce []model.Document
	if e.docs != nil {
		inForce = e.docs.GetDocumentsInForce(ev.OccurredAt)
	}

	enhanced := Enhanced{Result: result, DocumentsInForce: inForce, ValidatedAt: now}
	e.recordLog(ev.ID, enhanced)
	return enhanced
}

// BatchResult is the outcome of ValidateBatch: valid iff every element is
// valid, with a map from batch index to error list for the caller to
// inspect before deciding whether to submit.
type BatchResult struct {
	Valid  bool
	Errors map[int][]errs.Violation
}

// ValidateBatch validates every event independently; the batch itself is
// valid only if every element is. Callers treat the batch as atomic: a
// rejection means no partial submission.
func (e *Engine) ValidateBatch(events []model.Event) BatchResult {
	out := BatchResult{Valid: true, Errors: make(map[int][]errs.Violation)}
	for i, ev := range events {
		enhanced := e.ValidateEventWithDetails(ev)
		if !enhanced.Result.Valid {
			out.Valid = false
			out.Errors[i] = enhanced.Result.Errors
		}
	}
	return out
}

// CompensatingMetadata is the caller-supplied context for a correction.
type CompensatingMetadata struct {
	AuthorizedBy   string
	Reason         string
	CorrectionType string
}

// CreateCompensatingEvent retrieves the original event, maps its type to a
// compensating type via the declared table (falling back to
// AssignmentCorrected, or TaskCancelled when CorrectionType is
// "cancellation"), and submits a new event causedBy the original.
func (e *Engine) CreateCompensatingEvent(originalID string, meta CompensatingMetadata, correctionPayload map[string]any) (string, errs.Result) {
	original, ok := e.events.GetEvent(originalID)
	if !ok {
		return "", errs.Fail(errs.Newf(errs.KindIntegration, "original event %s does not exist", originalID).WithRule("integration: missing original event"))
	}

	compensatingType := compensatingType(original.Type, meta.CorrectionType)

	payload := make(map[string]any, len(correctionPayload)+1)
	for k, v := range correctionPayload {
		payload[k] = v
	}
	payload["compensatingMetadata"] = map[string]any{
		"originalEventId": originalID,
		"reason":          meta.Reason,
		"correctionType":  meta.CorrectionType,
		"originalPayload": original.Payload,
	}

	id, res := e.events.SubmitEvent(eventstore.Submission{
		Type:           compensatingType,
		OccurredAt:     e.now(),
		Actor:          meta.AuthorizedBy,
		Subjects:       append([]string(nil), original.Subjects...),
		Payload:        payload,
		SourceDocument: original.SourceDocument,
		CausalLinks:    model.CausalLinks{CausedBy: []string{originalID}},
	})
	if !res.Valid {
		return "", res
	}
	e.auditLog("compensating_event_created", id, originalID, meta.Reason)
	return id, errs.OK()
}

func compensatingType(original model.EventType, correctionType string) model.EventType {
	if correctionType == "cancellation" {
		return model.EventTaskCancelled
	}
	if t, ok := compensatingTypeTable[original]; ok {
		return t
	}
	return model.EventAssignmentCorrected
}

// GetValidationLog returns log entries matching filter, newest first.
func (e *Engine) GetValidationLog(filter LogFilter) []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]LogEntry, 0, len(e.log))
	for _, entry := range e.log {
		if filter.matches(entry) {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (e *Engine) recordLog(eventID string, enhanced Enhanced) {
	e.mu.Lock()
	defer e.mu.Unlock()

	categories := make([]errs.Kind, 0, len(enhanced.Result.Errors))
	for _, v := range enhanced.Result.Errors {
		cat := v.Category
		if cat == "" {
			cat = errs.Categorize(v.ViolatedRule)
		}
		categories = append(categories, cat)
	}

	e.log = append(e.log, LogEntry{
		ID:         fmt.Sprintf("val_%s", uuid.NewString()),
		Timestamp:  enhanced.ValidatedAt,
		EventID:    eventID,
		Result:     enhanced,
		Categories: categories,
	})

	if !enhanced.Result.Valid {
		e.auditLog("event_validation_failed", eventID, "", "")
	}
}

func (e *Engine) auditLog(msg, eventID, originalID, reason string) {
	if e.audit == nil {
		return
	}
	fields := []zap.Field{zap.String("event_id", eventID)}
	if originalID != "" {
		fields = append(fields, zap.String("original_event_id", originalID))
	}
	if reason != "" {
		fields = append(fields, zap.String("reason", reason))
	}
	e.audit.Info(msg, fields...)
}
