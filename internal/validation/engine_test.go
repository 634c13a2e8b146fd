package validation

import (
	"testing"
	"time"

	"github.com/cmvayette/digitalbackbone-sub002/internal/config"
	"github.com/cmvayette/digitalbackbone-sub002/internal/documentregistry"
	"github.com/cmvayette/digitalbackbone-sub002/internal/eventstore"
	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
)

func newTestEngine(t *testing.T) (*Engine, *eventstore.Store) {
	t.Helper()
	events := eventstore.New(config.Default())
	docs := documentregistry.New()
	return New(events, docs, config.Default()), events
}

func TestValidateEventWithDetailsIncludesDocumentsInForce(t *testing.T) {
	events := eventstore.New(config.Default())
	docs := documentregistry.New()
	e := New(events, docs, config.Default())

	docID, _ := docs.RegisterDocument(documentregistry.Params{
		Title:          "In Force Policy",
		EffectiveDates: model.EffectiveDates{Start: time.Now().UTC().AddDate(0, -1, 0)},
	}, "evt_seed")

	ev := model.Event{ID: "evt_x", Type: model.EventTaskStarted, OccurredAt: time.Now().UTC(), Actor: "a"}
	enhanced := e.ValidateEventWithDetails(ev)
	if !enhanced.Result.Valid {
		t.Fatalf("expected valid event, got %+v", enhanced.Result.Errors)
	}
	found := false
	for _, d := range enhanced.DocumentsInForce {
		if d.ID == docID {
			found = true
		}
	}
	if !found {
		t.Error("expected in-force document to be listed")
	}
}

func TestValidateEventWithDetailsRejectsFarFuture(t *testing.T) {
	e, _ := newTestEngine(t)
	ev := model.Event{ID: "evt_y", Type: model.EventTaskStarted, OccurredAt: time.Now().UTC().Add(3 * time.Hour)}
	enhanced := e.ValidateEventWithDetails(ev)
	if enhanced.Result.Valid {
		t.Fatal("expected rejection for far-future event")
	}
}

func TestValidateBatchAllOrNothing(t *testing.T) {
	e, _ := newTestEngine(t)
	good := model.Event{ID: "evt_good", Type: model.EventTaskStarted, OccurredAt: time.Now().UTC()}
	bad := model.Event{ID: "evt_bad", Type: model.EventTaskStarted, OccurredAt: time.Now().UTC().AddDate(-5, 0, 0)}

	result := e.ValidateBatch([]model.Event{good, bad})
	if result.Valid {
		t.Fatal("expected batch invalid when any element fails")
	}
	if _, ok := result.Errors[1]; !ok {
		t.Errorf("expected error recorded at index 1, got %+v", result.Errors)
	}
	if _, ok := result.Errors[0]; ok {
		t.Errorf("expected no error recorded for the valid element at index 0, got %+v", result.Errors)
	}
}

func TestCreateCompensatingEventMapsKnownType(t *testing.T) {
	e, events := newTestEngine(t)
	originalID, res := events.SubmitEvent(eventstore.Submission{
		Type:       model.EventAssignmentStarted,
		OccurredAt: time.Now().UTC().Add(-time.Hour),
		Actor:      "a",
		Subjects:   []string{"per_1", "pos_1"},
	})
	if !res.Valid {
		t.Fatalf("setup failed: %+v", res.Errors)
	}

	compID, res := e.CreateCompensatingEvent(originalID, CompensatingMetadata{
		AuthorizedBy:   "auditor_1",
		Reason:         "error",
		CorrectionType: "reversal",
	}, map[string]any{})
	if !res.Valid {
		t.Fatalf("expected success, got %+v", res.Errors)
	}

	comp, ok := events.GetEvent(compID)
	if !ok {
		t.Fatal("expected compensating event to be retrievable")
	}
	if comp.Type != model.EventAssignmentEnded {
		t.Errorf("expected AssignmentEnded, got %s", comp.Type)
	}
	if len(comp.CausalLinks.CausedBy) != 1 || comp.CausalLinks.CausedBy[0] != originalID {
		t.Errorf("expected causedBy to reference original event, got %+v", comp.CausalLinks)
	}
	meta, ok := comp.Payload["compensatingMetadata"].(map[string]any)
	if !ok || meta["originalEventId"] != originalID {
		t.Errorf("expected compensatingMetadata.originalEventId == original id, got %+v", comp.Payload)
	}
	if len(comp.Subjects) != 2 || comp.Subjects[0] != "per_1" {
		t.Errorf("expected subjects copied from original, got %+v", comp.Subjects)
	}
}

func TestCreateCompensatingEventUnknownTypeFallsBackToCorrected(t *testing.T) {
	e, events := newTestEngine(t)
	originalID, _ := events.SubmitEvent(eventstore.Submission{
		Type:       model.EventOrganizationCreated,
		OccurredAt: time.Now().UTC(),
		Actor:      "a",
	})

	compID, res := e.CreateCompensatingEvent(originalID, CompensatingMetadata{AuthorizedBy: "a", Reason: "fix"}, nil)
	if !res.Valid {
		t.Fatalf("expected success, got %+v", res.Errors)
	}
	comp, _ := events.GetEvent(compID)
	if comp.Type != model.EventAssignmentCorrected {
		t.Errorf("expected fallback to AssignmentCorrected, got %s", comp.Type)
	}
}

func TestCreateCompensatingEventMissingOriginal(t *testing.T) {
	e, _ := newTestEngine(t)
	_, res := e.CreateCompensatingEvent("evt_missing", CompensatingMetadata{}, nil)
	if res.Valid {
		t.Fatal("expected failure for missing original event")
	}
}

func TestGetValidationLogFiltersByEventID(t *testing.T) {
	e, _ := newTestEngine(t)
	e.ValidateEventWithDetails(model.Event{ID: "evt_a", Type: model.EventTaskStarted, OccurredAt: time.Now().UTC()})
	e.ValidateEventWithDetails(model.Event{ID: "evt_b", Type: model.EventTaskStarted, OccurredAt: time.Now().UTC()})

	entries := e.GetValidationLog(LogFilter{EventID: "evt_a"})
	if len(entries) != 1 || entries[0].EventID != "evt_a" {
		t.Errorf("expected single filtered entry for evt_a, got %+v", entries)
	}
}
