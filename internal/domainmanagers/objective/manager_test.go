package objective

import (
	"strings"
	"testing"
	"time"

	"github.com/cmvayette/digitalbackbone-sub002/internal/config"
	"github.com/cmvayette/digitalbackbone-sub002/internal/constraintengine"
	"github.com/cmvayette/digitalbackbone-sub002/internal/documentregistry"
	"github.com/cmvayette/digitalbackbone-sub002/internal/errs"
	"github.com/cmvayette/digitalbackbone-sub002/internal/eventstore"
	"github.com/cmvayette/digitalbackbone-sub002/internal/holonregistry"
	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
	"github.com/cmvayette/digitalbackbone-sub002/internal/relationshipregistry"
)

func newTestManager(t *testing.T) (*Manager, *holonregistry.Registry) {
	t.Helper()
	cfg := config.Default()
	holons := holonregistry.New()
	events := eventstore.New(cfg)
	docs := documentregistry.New()
	constraints := constraintengine.New(docs)
	rels := relationshipregistry.New(holons, constraints, events)
	return New(holons, rels, events), holons
}

func TestCreateObjectiveRejectsMissingMeasureAndOwner(t *testing.T) {
	m, _ := newTestManager(t)
	_, res := m.CreateObjective(CreateParams{
		Properties: Properties{Name: "Improve readiness"},
		Actor:      "planner",
	})
	if res.Valid {
		t.Fatal("expected invalid objective for missing measure and owner")
	}
	joined := allMessages(res)
	if !strings.Contains(joined, "at least one measure") {
		t.Errorf("expected a message about requiring at least one measure, got %q", joined)
	}
	if !strings.Contains(joined, "owner") {
		t.Errorf("expected a message about requiring an owner, got %q", joined)
	}
}

func TestCreateObjectiveRoundTrip(t *testing.T) {
	m, holons := newTestManager(t)
	owner, _ := holons.CreateHolon(holonregistry.Params{Type: model.HolonPerson, Properties: map[string]any{"name": "owner"}})
	loe, _ := holons.CreateHolon(holonregistry.Params{Type: model.HolonLOE, Properties: map[string]any{"name": "loe"}})
	measureHolon, _ := holons.CreateHolon(holonregistry.Params{Type: model.HolonCapability, Properties: map[string]any{"name": "metric source"}})

	h, res := m.CreateObjective(CreateParams{
		Properties: Properties{
			Name: "Improve readiness", OwnerID: owner.ID, LOEID: loe.ID,
			Measures: []Measure{{HolonID: measureHolon.ID, Description: "readiness score"}},
		},
		Actor: "planner",
	})
	if !res.Valid {
		t.Fatalf("expected valid objective creation, got %+v", res.Errors)
	}
	if h.Type != model.HolonObjective {
		t.Errorf("expected Objective holon, got %s", h.Type)
	}
}

func TestCreateObjectiveRejectsUnknownOwner(t *testing.T) {
	m, holons := newTestManager(t)
	loe, _ := holons.CreateHolon(holonregistry.Params{Type: model.HolonLOE, Properties: map[string]any{"name": "loe"}})

	_, res := m.CreateObjective(CreateParams{
		Properties: Properties{
			Name: "Improve readiness", OwnerID: "per_missing", LOEID: loe.ID,
			Measures: []Measure{{Description: "readiness score"}},
		},
		Actor: "planner",
	})
	if res.Valid {
		t.Fatal("expected rejection for unknown owner holon")
	}
}

func TestAddDependencyRejectsCycle(t *testing.T) {
	m, holons := newTestManager(t)
	owner, _ := holons.CreateHolon(holonregistry.Params{Type: model.HolonPerson, Properties: map[string]any{"name": "owner"}})
	loe, _ := holons.CreateHolon(holonregistry.Params{Type: model.HolonLOE, Properties: map[string]any{"name": "loe"}})

	mk := func(name string) model.Holon {
		h, res := m.CreateObjective(CreateParams{
			Properties: Properties{Name: name, OwnerID: owner.ID, LOEID: loe.ID, Measures: []Measure{{Description: "m"}}},
			Actor:      "planner",
		})
		if !res.Valid {
			t.Fatalf("expected objective %s to be created, got %+v", name, res.Errors)
		}
		return h
	}

	a := mk("a")
	b := mk("b")
	c := mk("c")

	now := time.Now().UTC()
	if out := m.AddDependency(AddDependencyParams{ObjectiveID: a.ID, DependsOnID: b.ID, EffectiveStart: now, Actor: "planner"}); !out.Validation.Valid {
		t.Fatalf("expected a->b dependency to succeed, got %+v", out.Validation.Errors)
	}
	if out := m.AddDependency(AddDependencyParams{ObjectiveID: b.ID, DependsOnID: c.ID, EffectiveStart: now, Actor: "planner"}); !out.Validation.Valid {
		t.Fatalf("expected b->c dependency to succeed, got %+v", out.Validation.Errors)
	}

	out := m.AddDependency(AddDependencyParams{ObjectiveID: c.ID, DependsOnID: a.ID, EffectiveStart: now, Actor: "planner"})
	if out.Validation.Valid {
		t.Fatal("expected c->a dependency to be rejected as a cycle")
	}
	if !strings.Contains(allMessages(out.Validation), "cycle") {
		t.Errorf("expected a message mentioning cycle, got %+v", out.Validation.Errors)
	}
}

func allMessages(res errs.Result) string {
	var sb strings.Builder
	for _, e := range res.Errors {
		sb.WriteString(e.Message)
		sb.WriteString("; ")
	}
	return sb.String()
}
