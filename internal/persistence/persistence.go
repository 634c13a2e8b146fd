// Package persistence defines the pluggable persistence seam named in
// spec.md §6/§7: four logs (events, documents, decision documents,
// proposals; the first three append-only, the proposal log also updatable
// in place) and three snapshot stores (holons, relationships,
// constraints) keyed by id. None of the in-memory reference engines in
// this module depend on these interfaces — they exist as a documented
// extension point with a concrete Postgres adapter in
// internal/persistence/postgres, independently compiled and tested.
package persistence

import (
	"context"

	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
)

// EventLog is an append-only store of recorded events, keyed by id.
// Matches the Event Store's immutability invariant: Append never
// overwrites, and there is no Delete.
type EventLog interface {
	Append(ctx context.Context, event model.Event) error
	Get(ctx context.Context, id string) (model.Event, bool, error)
	ListByType(ctx context.Context, eventType model.EventType) ([]model.Event, error)
}

// DocumentLog is an append-only store of registered documents.
type DocumentLog interface {
	Append(ctx context.Context, doc model.Document) error
	Get(ctx context.Context, id string) (model.Document, bool, error)
}

// DecisionDocumentLog is a dedicated append-only store for governance
// decision documents. Structurally these are Documents (see governance's
// "registers a Decision Document" flow, which stores one via the
// Document Registry); this is a separate interface so a persistence
// adapter may route them to a distinct table from ordinary documents.
type DecisionDocumentLog interface {
	Append(ctx context.Context, doc model.Document) error
	Get(ctx context.Context, id string) (model.Document, bool, error)
}

// ProposalLog stores schema-change proposals. Append adds a new proposal;
// Update overwrites a stored proposal, e.g. with its decision fields once
// approved or rejected.
type ProposalLog interface {
	Append(ctx context.Context, proposal model.SchemaChangeProposal) error
	Update(ctx context.Context, proposal model.SchemaChangeProposal) error
	Get(ctx context.Context, id string) (model.SchemaChangeProposal, bool, error)
}

// HolonSnapshotStore persists the latest known state of every holon,
// keyed by id. Unlike the logs above, entries are mutable: a snapshot
// store tracks current state, not history.
type HolonSnapshotStore interface {
	Put(ctx context.Context, holon model.Holon) error
	Get(ctx context.Context, id string) (model.Holon, bool, error)
	ListByType(ctx context.Context, holonType model.HolonType) ([]model.Holon, error)
}

// RelationshipSnapshotStore persists the latest known state of every
// relationship, keyed by id.
type RelationshipSnapshotStore interface {
	Put(ctx context.Context, rel model.Relationship) error
	Get(ctx context.Context, id string) (model.Relationship, bool, error)
}

// ConstraintSnapshotStore persists the latest known state of every
// registered constraint, keyed by id.
type ConstraintSnapshotStore interface {
	Put(ctx context.Context, constraint model.Constraint) error
	Get(ctx context.Context, id string) (model.Constraint, bool, error)
}
