package eventstore

import (
	"testing"
	"time"

	"github.com/cmvayette/digitalbackbone-sub002/internal/config"
	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(config.Default())
}

func TestSubmitEventRoundTrip(t *testing.T) {
	s := newTestStore(t)
	id, res := s.SubmitEvent(Submission{
		Type:       model.EventAssignmentStarted,
		OccurredAt: time.Now().UTC().Add(-time.Minute),
		Actor:      "hol_actor",
		Subjects:   []string{"hol_subject"},
		Payload:    map[string]any{"k": "v"},
	})
	if !res.Valid {
		t.Fatalf("expected valid submission, got errors: %+v", res.Errors)
	}

	got, ok := s.GetEvent(id)
	if !ok {
		t.Fatal("expected event to be retrievable")
	}
	if got.Actor != "hol_actor" || got.Subjects[0] != "hol_subject" || got.Type != model.EventAssignmentStarted {
		t.Errorf("round-tripped event does not match submission: %+v", got)
	}
}

func TestSubmitEventRejectsFarPast(t *testing.T) {
	s := newTestStore(t)
	_, res := s.SubmitEvent(Submission{
		Type:       model.EventAssignmentStarted,
		OccurredAt: time.Now().UTC().AddDate(-2, 0, 0),
		Actor:      "hol_actor",
	})
	if res.Valid {
		t.Fatal("expected rejection for event two years in the past")
	}
	if res.Errors[0].Category != "Temporal" {
		t.Errorf("expected Temporal category, got %s", res.Errors[0].Category)
	}
}

func TestSubmitEventRejectsFarFuture(t *testing.T) {
	s := newTestStore(t)
	_, res := s.SubmitEvent(Submission{
		Type:       model.EventAssignmentStarted,
		OccurredAt: time.Now().UTC().Add(2 * time.Hour),
		Actor:      "hol_actor",
	})
	if res.Valid {
		t.Fatal("expected rejection for event two hours in the future")
	}
}

func TestSubmitEventAcceptsNearFuture(t *testing.T) {
	s := newTestStore(t)
	_, res := s.SubmitEvent(Submission{
		Type:       model.EventAssignmentStarted,
		OccurredAt: time.Now().UTC().Add(30 * time.Minute),
		Actor:      "hol_actor",
	})
	if !res.Valid {
		t.Fatalf("expected acceptance for event 30 minutes in the future, got %+v", res.Errors)
	}
}

func TestSubmitEventRejectsUnknownCausalPredecessor(t *testing.T) {
	s := newTestStore(t)
	_, res := s.SubmitEvent(Submission{
		Type:        model.EventAssignmentEnded,
		OccurredAt:  time.Now().UTC(),
		Actor:       "hol_actor",
		CausalLinks: model.CausalLinks{PrecededBy: []string{"evt_missing"}},
	})
	if res.Valid {
		t.Fatal("expected rejection for unknown causal predecessor")
	}
	if res.Errors[0].Category != "Consistency" {
		t.Errorf("expected Consistency category, got %s", res.Errors[0].Category)
	}
}

func TestSubmitEventRejectsOutOfOrderCausalPredecessor(t *testing.T) {
	s := newTestStore(t)
	earlier := time.Now().UTC().Add(-time.Hour)
	later := time.Now().UTC().Add(-time.Minute)

	predID, res := s.SubmitEvent(Submission{Type: model.EventAssignmentStarted, OccurredAt: later, Actor: "a"})
	if !res.Valid {
		t.Fatalf("setup submission failed: %+v", res.Errors)
	}

	_, res = s.SubmitEvent(Submission{
		Type:        model.EventAssignmentEnded,
		OccurredAt:  earlier,
		Actor:       "a",
		CausalLinks: model.CausalLinks{PrecededBy: []string{predID}},
	})
	if res.Valid {
		t.Fatal("expected rejection when predecessor occurred after this event")
	}
}

func TestGetEventsByTypeAndActor(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	s.SubmitEvent(Submission{Type: model.EventTaskStarted, OccurredAt: now, Actor: "a1", Subjects: []string{"t1"}})
	s.SubmitEvent(Submission{Type: model.EventTaskCompleted, OccurredAt: now, Actor: "a1", Subjects: []string{"t1"}})
	s.SubmitEvent(Submission{Type: model.EventTaskStarted, OccurredAt: now, Actor: "a2", Subjects: []string{"t2"}})

	if got := len(s.GetEventsByType(model.EventTaskStarted)); got != 2 {
		t.Errorf("expected 2 TaskStarted events, got %d", got)
	}
	if got := len(s.GetEventsByActor("a1")); got != 2 {
		t.Errorf("expected 2 events by a1, got %d", got)
	}
	if got := len(s.GetEventsByHolon("t1")); got != 2 {
		t.Errorf("expected 2 events subjecting t1, got %d", got)
	}
}

func TestEventsAreImmutableClones(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.SubmitEvent(Submission{
		Type:       model.EventTaskStarted,
		OccurredAt: time.Now().UTC(),
		Actor:      "a",
		Subjects:   []string{"t1"},
	})
	got, _ := s.GetEvent(id)
	got.Subjects[0] = "mutated"

	fresh, _ := s.GetEvent(id)
	if fresh.Subjects[0] != "t1" {
		t.Fatal("mutating a returned clone leaked into the store")
	}
}
