package relationshipregistry

import (
	"testing"
	"time"

	"github.com/cmvayette/digitalbackbone-sub002/internal/config"
	"github.com/cmvayette/digitalbackbone-sub002/internal/constraintengine"
	"github.com/cmvayette/digitalbackbone-sub002/internal/documentregistry"
	"github.com/cmvayette/digitalbackbone-sub002/internal/errs"
	"github.com/cmvayette/digitalbackbone-sub002/internal/eventstore"
	"github.com/cmvayette/digitalbackbone-sub002/internal/holonregistry"
	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
)

func newTestRegistry(t *testing.T) (*Registry, *holonregistry.Registry) {
	t.Helper()
	holons := holonregistry.New()
	events := eventstore.New(config.Default())
	constraints := constraintengine.New(documentregistry.New())
	return New(holons, constraints, events), holons
}

func TestCreateRelationshipRoundTrip(t *testing.T) {
	r, holons := newTestRegistry(t)
	person, _ := holons.CreateHolon(holonregistry.Params{Type: model.HolonPerson})
	position, _ := holons.CreateHolon(holonregistry.Params{Type: model.HolonPosition})

	start := time.Now().UTC().Add(-time.Hour)
	out := r.CreateRelationship(Params{
		Type:           model.RelOccupies,
		SourceHolonID:  person.ID,
		TargetHolonID:  position.ID,
		EffectiveStart: start,
	})
	if !out.Validation.Valid {
		t.Fatalf("expected valid creation, got %+v", out.Validation.Errors)
	}
	if out.Relationship.CreatedBy == "" {
		t.Error("expected createdBy to reference the synthesized event")
	}

	found := r.GetRelationshipsFrom(person.ID, model.RelOccupies, model.RelationshipFilter{})
	if len(found) != 1 || found[0].ID != out.Relationship.ID {
		t.Errorf("expected relationship findable from source, got %+v", found)
	}
}

func TestCreateRelationshipRejectsUnknownHolon(t *testing.T) {
	r, holons := newTestRegistry(t)
	position, _ := holons.CreateHolon(holonregistry.Params{Type: model.HolonPosition})

	out := r.CreateRelationship(Params{
		Type:           model.RelOccupies,
		SourceHolonID:  "per_missing",
		TargetHolonID:  position.ID,
		EffectiveStart: time.Now().UTC(),
	})
	if out.Validation.Valid {
		t.Fatal("expected rejection for unknown source holon")
	}
}

func TestEndRelationshipExcludesFromDefaultQuery(t *testing.T) {
	r, holons := newTestRegistry(t)
	person, _ := holons.CreateHolon(holonregistry.Params{Type: model.HolonPerson})
	position, _ := holons.CreateHolon(holonregistry.Params{Type: model.HolonPosition})

	start := time.Now().UTC().Add(-2 * time.Hour)
	out := r.CreateRelationship(Params{
		Type:           model.RelOccupies,
		SourceHolonID:  person.ID,
		TargetHolonID:  position.ID,
		EffectiveStart: start,
	})
	if !out.Validation.Valid {
		t.Fatalf("setup failed: %+v", out.Validation.Errors)
	}

	end := time.Now().UTC().Add(-time.Hour)
	res := r.EndRelationship(EndParams{ID: out.Relationship.ID, EndDate: end})
	if !res.Valid {
		t.Fatalf("unexpected failure ending relationship: %+v", res.Errors)
	}

	active := r.GetRelationshipsFrom(person.ID, model.RelOccupies, model.RelationshipFilter{})
	if len(active) != 0 {
		t.Errorf("expected ended relationship excluded by default, got %+v", active)
	}

	withEnded := r.GetRelationshipsFrom(person.ID, model.RelOccupies, model.RelationshipFilter{IncludeEnded: true})
	if len(withEnded) != 1 || withEnded[0].EffectiveEnd == nil {
		t.Errorf("expected ended relationship returned with end date when includeEnded=true, got %+v", withEnded)
	}
}

func TestEndRelationshipRefusesDoubleEnd(t *testing.T) {
	r, holons := newTestRegistry(t)
	person, _ := holons.CreateHolon(holonregistry.Params{Type: model.HolonPerson})
	position, _ := holons.CreateHolon(holonregistry.Params{Type: model.HolonPosition})
	start := time.Now().UTC().Add(-2 * time.Hour)
	out := r.CreateRelationship(Params{Type: model.RelOccupies, SourceHolonID: person.ID, TargetHolonID: position.ID, EffectiveStart: start})

	end := time.Now().UTC().Add(-time.Hour)
	r.EndRelationship(EndParams{ID: out.Relationship.ID, EndDate: end})

	res := r.EndRelationship(EndParams{ID: out.Relationship.ID, EndDate: time.Now().UTC()})
	if res.Valid {
		t.Fatal("expected rejection for ending an already-ended relationship")
	}
}

func TestEndRelationshipRefusesEndBeforeStart(t *testing.T) {
	r, holons := newTestRegistry(t)
	person, _ := holons.CreateHolon(holonregistry.Params{Type: model.HolonPerson})
	position, _ := holons.CreateHolon(holonregistry.Params{Type: model.HolonPosition})
	start := time.Now().UTC()
	out := r.CreateRelationship(Params{Type: model.RelOccupies, SourceHolonID: person.ID, TargetHolonID: position.ID, EffectiveStart: start})

	res := r.EndRelationship(EndParams{ID: out.Relationship.ID, EndDate: start.Add(-time.Hour)})
	if res.Valid {
		t.Fatal("expected rejection when endDate precedes effectiveStart")
	}
}

func TestConstraintEngineRejectsCreation(t *testing.T) {
	holons := holonregistry.New()
	events := eventstore.New(config.Default())
	constraints := constraintengine.New(documentregistry.New())
	constraints.RegisterNativeValidator("denyAll", func(candidate any, at time.Time) errs.Result {
		return errs.Fail(errs.New(errs.KindValidation, "policy forbids this edge").WithRule("validation: denied by policy"))
	})
	constraints.RegisterConstraint(constraintengine.Params{
		Name:          "deny occupies",
		Scope:         model.ConstraintScope{RelationshipTypes: []model.RelationshipType{model.RelOccupies}},
		ValidatorKind: model.ValidatorKindNative,
		ValidatorName: "denyAll",
	})
	r := New(holons, constraints, events)

	person, _ := holons.CreateHolon(holonregistry.Params{Type: model.HolonPerson})
	position, _ := holons.CreateHolon(holonregistry.Params{Type: model.HolonPosition})

	out := r.CreateRelationship(Params{Type: model.RelOccupies, SourceHolonID: person.ID, TargetHolonID: position.ID, EffectiveStart: time.Now().UTC()})
	if out.Validation.Valid {
		t.Fatal("expected constraint engine rejection to prevent relationship creation")
	}
	if found := r.GetRelationshipsFrom(person.ID, model.RelOccupies, model.RelationshipFilter{}); len(found) != 0 {
		t.Error("expected rejected relationship not to be stored")
	}
}
