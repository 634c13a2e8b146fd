// Package postgres is a concrete Postgres adapter for the persistence
// seam defined in internal/persistence, built the way the example repos
// build their sqlx-backed stores: a thin struct wrapping *sqlx.DB per
// seam interface, JSON columns for the nested structures that don't
// warrant their own relational shape. It is not wired into the default
// in-memory engines; it exists as an independently compiled and tested
// implementation of the seam.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
	"github.com/cmvayette/digitalbackbone-sub002/internal/persistence"
)

// Open connects to dsn and returns the shared connection pool used to
// construct each seam adapter below.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// --- event log -------------------------------------------------------

// EventStore implements persistence.EventLog against Postgres.
type EventStore struct{ db *sqlx.DB }

func NewEventStore(db *sqlx.DB) *EventStore { return &EventStore{db: db} }

var _ persistence.EventLog = (*EventStore)(nil)

func (s *EventStore) Append(ctx context.Context, event model.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO event_log (id, event_type, payload, occurred_at, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`, event.ID, string(event.Type), payload, event.OccurredAt, event.RecordedAt)
	return err
}

func (s *EventStore) Get(ctx context.Context, id string) (model.Event, bool, error) {
	var payload []byte
	err := s.db.GetContext(ctx, &payload, `SELECT payload FROM event_log WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, false, nil
	}
	if err != nil {
		return model.Event{}, false, err
	}
	var event model.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return model.Event{}, false, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, true, nil
}

func (s *EventStore) ListByType(ctx context.Context, eventType model.EventType) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM event_log WHERE event_type = $1 ORDER BY recorded_at ASC`, string(eventType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []model.Event
	for rows.Next() {
		var p []byte
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		var event model.Event
		if err := json.Unmarshal(p, &event); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// --- document log / decision document log -----------------------------

// DocumentStore implements persistence.DocumentLog and, against a
// separate table, persistence.DecisionDocumentLog. Both seam interfaces
// share this implementation because decision documents are structurally
// ordinary Documents, routed to their own table only for separation of
// concerns.
type DocumentStore struct {
	db    *sqlx.DB
	table string
}

func NewDocumentStore(db *sqlx.DB) *DocumentStore {
	return &DocumentStore{db: db, table: "document_log"}
}

func NewDecisionDocumentStore(db *sqlx.DB) *DocumentStore {
	return &DocumentStore{db: db, table: "decision_document_log"}
}

var (
	_ persistence.DocumentLog         = (*DocumentStore)(nil)
	_ persistence.DecisionDocumentLog = (*DocumentStore)(nil)
)

func (s *DocumentStore) Append(ctx context.Context, doc model.Document) error {
	content, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, doc_type, content, created_at) VALUES ($1, $2, $3, $4)`, s.table)
	_, err = s.db.ExecContext(ctx, query, doc.ID, doc.DocumentType, content, doc.EffectiveDates.Start)
	return err
}

func (s *DocumentStore) Get(ctx context.Context, id string) (model.Document, bool, error) {
	var content []byte
	query := fmt.Sprintf(`SELECT content FROM %s WHERE id = $1`, s.table)
	err := s.db.GetContext(ctx, &content, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, false, nil
	}
	if err != nil {
		return model.Document{}, false, err
	}
	var doc model.Document
	if err := json.Unmarshal(content, &doc); err != nil {
		return model.Document{}, false, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, true, nil
}

// --- proposal log --------------------------------------------------------

// ProposalStore implements persistence.ProposalLog against Postgres.
type ProposalStore struct{ db *sqlx.DB }

func NewProposalStore(db *sqlx.DB) *ProposalStore { return &ProposalStore{db: db} }

var _ persistence.ProposalLog = (*ProposalStore)(nil)

func (s *ProposalStore) Append(ctx context.Context, proposal model.SchemaChangeProposal) error {
	payload, err := json.Marshal(proposal)
	if err != nil {
		return fmt.Errorf("marshal proposal: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO proposal_log (id, status, payload, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
	`, proposal.ID, string(proposal.Status), payload)
	return err
}

func (s *ProposalStore) Update(ctx context.Context, proposal model.SchemaChangeProposal) error {
	payload, err := json.Marshal(proposal)
	if err != nil {
		return fmt.Errorf("marshal proposal: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE proposal_log SET status = $2, payload = $3, updated_at = now()
		WHERE id = $1
	`, proposal.ID, string(proposal.Status), payload)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *ProposalStore) Get(ctx context.Context, id string) (model.SchemaChangeProposal, bool, error) {
	var payload []byte
	err := s.db.GetContext(ctx, &payload, `SELECT payload FROM proposal_log WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SchemaChangeProposal{}, false, nil
	}
	if err != nil {
		return model.SchemaChangeProposal{}, false, err
	}
	var proposal model.SchemaChangeProposal
	if err := json.Unmarshal(payload, &proposal); err != nil {
		return model.SchemaChangeProposal{}, false, fmt.Errorf("unmarshal proposal: %w", err)
	}
	return proposal, true, nil
}

// --- holon snapshot store -------------------------------------------------

// HolonStore implements persistence.HolonSnapshotStore against Postgres.
type HolonStore struct{ db *sqlx.DB }

func NewHolonStore(db *sqlx.DB) *HolonStore { return &HolonStore{db: db} }

var _ persistence.HolonSnapshotStore = (*HolonStore)(nil)

func (s *HolonStore) Put(ctx context.Context, holon model.Holon) error {
	payload, err := json.Marshal(holon)
	if err != nil {
		return fmt.Errorf("marshal holon: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO holon_snapshot (id, holon_type, payload, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET holon_type = $2, payload = $3, updated_at = now()
	`, holon.ID, string(holon.Type), payload)
	return err
}

func (s *HolonStore) Get(ctx context.Context, id string) (model.Holon, bool, error) {
	var payload []byte
	err := s.db.GetContext(ctx, &payload, `SELECT payload FROM holon_snapshot WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Holon{}, false, nil
	}
	if err != nil {
		return model.Holon{}, false, err
	}
	var holon model.Holon
	if err := json.Unmarshal(payload, &holon); err != nil {
		return model.Holon{}, false, fmt.Errorf("unmarshal holon: %w", err)
	}
	return holon, true, nil
}

func (s *HolonStore) ListByType(ctx context.Context, holonType model.HolonType) ([]model.Holon, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM holon_snapshot WHERE holon_type = $1`, string(holonType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var holons []model.Holon
	for rows.Next() {
		var p []byte
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		var holon model.Holon
		if err := json.Unmarshal(p, &holon); err != nil {
			return nil, fmt.Errorf("unmarshal holon: %w", err)
		}
		holons = append(holons, holon)
	}
	return holons, rows.Err()
}

// --- relationship snapshot store -------------------------------------------

// RelationshipStore implements persistence.RelationshipSnapshotStore.
type RelationshipStore struct{ db *sqlx.DB }

func NewRelationshipStore(db *sqlx.DB) *RelationshipStore { return &RelationshipStore{db: db} }

var _ persistence.RelationshipSnapshotStore = (*RelationshipStore)(nil)

func (s *RelationshipStore) Put(ctx context.Context, rel model.Relationship) error {
	payload, err := json.Marshal(rel)
	if err != nil {
		return fmt.Errorf("marshal relationship: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO relationship_snapshot (id, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET payload = $2, updated_at = now()
	`, rel.ID, payload)
	return err
}

func (s *RelationshipStore) Get(ctx context.Context, id string) (model.Relationship, bool, error) {
	var payload []byte
	err := s.db.GetContext(ctx, &payload, `SELECT payload FROM relationship_snapshot WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Relationship{}, false, nil
	}
	if err != nil {
		return model.Relationship{}, false, err
	}
	var rel model.Relationship
	if err := json.Unmarshal(payload, &rel); err != nil {
		return model.Relationship{}, false, fmt.Errorf("unmarshal relationship: %w", err)
	}
	return rel, true, nil
}

// --- constraint snapshot store ----------------------------------------------

// ConstraintStore implements persistence.ConstraintSnapshotStore.
type ConstraintStore struct{ db *sqlx.DB }

func NewConstraintStore(db *sqlx.DB) *ConstraintStore { return &ConstraintStore{db: db} }

var _ persistence.ConstraintSnapshotStore = (*ConstraintStore)(nil)

func (s *ConstraintStore) Put(ctx context.Context, constraint model.Constraint) error {
	payload, err := json.Marshal(constraint)
	if err != nil {
		return fmt.Errorf("marshal constraint: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO constraint_snapshot (id, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET payload = $2, updated_at = now()
	`, constraint.ID, payload)
	return err
}

func (s *ConstraintStore) Get(ctx context.Context, id string) (model.Constraint, bool, error) {
	var payload []byte
	err := s.db.GetContext(ctx, &payload, `SELECT payload FROM constraint_snapshot WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Constraint{}, false, nil
	}
	if err != nil {
		return model.Constraint{}, false, err
	}
	var constraint model.Constraint
	if err := json.Unmarshal(payload, &constraint); err != nil {
		return model.Constraint{}, false, fmt.Errorf("unmarshal constraint: %w", err)
	}
	return constraint, true, nil
}
