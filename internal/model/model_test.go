package model

import (
	"testing"
	"time"
)

func TestRelationshipIsEffectiveAtOpenEnded(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := Relationship{EffectiveStart: start}

	if r.IsEffectiveAt(start.Add(-time.Minute)) {
		t.Error("expected not effective before start")
	}
	if !r.IsEffectiveAt(start) {
		t.Error("expected effective exactly at start")
	}
	if !r.IsEffectiveAt(start.Add(100 * 24 * time.Hour)) {
		t.Error("expected an open-ended relationship to remain effective far in the future")
	}
}

func TestRelationshipIsEffectiveAtClosed(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)
	r := Relationship{EffectiveStart: start, EffectiveEnd: &end}

	if !r.IsEffectiveAt(end) {
		t.Error("expected effective exactly at end (inclusive)")
	}
	if r.IsEffectiveAt(end.Add(time.Second)) {
		t.Error("expected not effective after end")
	}
	if !r.Ended() {
		t.Error("expected Ended() true once EffectiveEnd is set")
	}
}

func TestRelationshipCloneIsIndependent(t *testing.T) {
	end := time.Now().UTC()
	r := Relationship{ID: "rel_1", EffectiveEnd: &end}
	c := r.Clone()

	newEnd := end.Add(time.Hour)
	*c.EffectiveEnd = newEnd

	if r.EffectiveEnd.Equal(newEnd) {
		t.Error("expected cloning to copy the EffectiveEnd pointer target, not alias it")
	}
}

func TestRelationshipFilterMatches(t *testing.T) {
	end := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	start := end.Add(-24 * time.Hour)
	ended := Relationship{EffectiveStart: start, EffectiveEnd: &end, AuthorityLevel: AuthorityAuthoritative}

	if ended.Ended() == false {
		t.Fatal("test fixture must be an ended relationship")
	}
	if (RelationshipFilter{}).Matches(ended) {
		t.Error("expected an ended relationship to be excluded by default")
	}
	if !(RelationshipFilter{IncludeEnded: true}).Matches(ended) {
		t.Error("expected IncludeEnded to surface an ended relationship")
	}
	atEffective := start.Add(time.Hour)
	if !(RelationshipFilter{EffectiveAt: &atEffective}).Matches(ended) {
		t.Error("expected EffectiveAt within the window to surface an ended relationship")
	}
	if (RelationshipFilter{AuthorityLevel: AuthorityDerived}).Matches(ended) {
		t.Error("expected an authority-level mismatch to exclude the relationship")
	}
}

func TestEffectiveDatesInForceAt(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	open := EffectiveDates{Start: start}
	if open.InForceAt(start.Add(-time.Minute)) {
		t.Error("expected not in force before start")
	}
	if !open.InForceAt(start.Add(10 * 365 * 24 * time.Hour)) {
		t.Error("expected an open-ended document to remain in force indefinitely")
	}

	end := start.Add(30 * 24 * time.Hour)
	closed := EffectiveDates{Start: start, End: &end}
	if !closed.InForceAt(end) {
		t.Error("expected in force exactly at end (inclusive)")
	}
	if closed.InForceAt(end.Add(time.Second)) {
		t.Error("expected not in force after end")
	}
}

func TestDocumentCloneIsIndependent(t *testing.T) {
	d := Document{ID: "doc_1", ReferenceNumbers: []string{"A"}, LinkedConstraintIDs: []string{"con_1"}}
	c := d.Clone()
	c.ReferenceNumbers[0] = "B"
	c.LinkedConstraintIDs = append(c.LinkedConstraintIDs, "con_2")

	if d.ReferenceNumbers[0] != "A" {
		t.Error("expected cloning to deep-copy ReferenceNumbers")
	}
	if len(d.LinkedConstraintIDs) != 1 {
		t.Error("expected cloning to deep-copy LinkedConstraintIDs")
	}
}

func TestHolonCloneIsIndependent(t *testing.T) {
	h := Holon{ID: "hol_1", Properties: map[string]any{"name": "wings"}, SourceDocuments: []string{"doc_1"}}
	c := h.Clone()
	c.Properties["name"] = "changed"
	c.SourceDocuments[0] = "doc_2"

	if h.Properties["name"] != "wings" {
		t.Error("expected cloning to deep-copy Properties")
	}
	if h.SourceDocuments[0] != "doc_1" {
		t.Error("expected cloning to deep-copy SourceDocuments")
	}
}

func TestHolonIsActive(t *testing.T) {
	if (Holon{Status: StatusInactive}).IsActive() {
		t.Error("expected inactive holon to report IsActive() false")
	}
	if !(Holon{Status: StatusActive}).IsActive() {
		t.Error("expected active holon to report IsActive() true")
	}
}

func TestCausalLinksAll(t *testing.T) {
	only := CausalLinks{PrecededBy: []string{"a"}}
	if got := only.All(); len(got) != 1 || got[0] != "a" {
		t.Errorf("expected [a], got %v", got)
	}
	both := CausalLinks{PrecededBy: []string{"a"}, CausedBy: []string{"b", "c"}}
	got := both.All()
	if len(got) != 3 {
		t.Errorf("expected 3 combined ids, got %v", got)
	}
}

func TestEventCloneIsIndependent(t *testing.T) {
	window := ValidityWindow{Start: time.Now().UTC()}
	e := Event{ID: "evt_1", Subjects: []string{"hol_1"}, Payload: map[string]any{"k": "v"}, ValidityWindow: &window}
	c := e.Clone()
	c.Subjects[0] = "hol_2"
	c.Payload["k"] = "changed"
	c.ValidityWindow.Start = window.Start.Add(time.Hour)

	if e.Subjects[0] != "hol_1" {
		t.Error("expected cloning to deep-copy Subjects")
	}
	if e.Payload["k"] != "v" {
		t.Error("expected cloning to deep-copy Payload")
	}
	if e.ValidityWindow.Start.Equal(c.ValidityWindow.Start) {
		t.Error("expected cloning to copy the ValidityWindow value, not alias it")
	}
}

func TestSchemaChangeProposalTerminal(t *testing.T) {
	if (SchemaChangeProposal{Status: ProposalProposed}).Terminal() {
		t.Error("expected proposed status to be non-terminal")
	}
	if !(SchemaChangeProposal{Status: ProposalApproved}).Terminal() {
		t.Error("expected approved status to be terminal")
	}
	if !(SchemaChangeProposal{Status: ProposalRejected}).Terminal() {
		t.Error("expected rejected status to be terminal")
	}
}

func TestConstraintScopeMatchers(t *testing.T) {
	c := Constraint{
		Scope: ConstraintScope{
			HolonTypes:        []HolonType{HolonPerson},
			RelationshipTypes: []RelationshipType{RelHasQual},
			EventTypes:        []EventType{EventQualificationAwarded},
		},
		InheritanceRules: &InheritanceRules{InheritsFrom: []HolonType{HolonPosition}},
	}

	if !c.AppliesToHolonType(HolonPerson) {
		t.Error("expected scope to apply to Person")
	}
	if c.AppliesToHolonType(HolonMission) {
		t.Error("expected scope not to apply to Mission")
	}
	if !c.AppliesToRelationshipType(RelHasQual) {
		t.Error("expected scope to apply to HAS_QUAL")
	}
	if !c.AppliesToEventType(EventQualificationAwarded) {
		t.Error("expected scope to apply to QualificationAwarded")
	}
	if !c.InheritsFrom(HolonPosition) {
		t.Error("expected inheritance from Position")
	}
	if c.InheritsFrom(HolonMission) {
		t.Error("expected no inheritance from Mission")
	}
}
