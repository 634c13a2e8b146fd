package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(mockDB, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestEventStoreAppendInsertsRow(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewEventStore(db)

	event := model.Event{
		ID:         "evt_1",
		Type:       model.EventPersonOnboarded,
		OccurredAt: time.Now().UTC(),
		RecordedAt: time.Now().UTC(),
		Actor:      "hr_admin",
	}

	mock.ExpectExec("INSERT INTO event_log").
		WithArgs(event.ID, string(event.Type), sqlmock.AnyArg(), event.OccurredAt, event.RecordedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Append(context.Background(), event)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStoreGetReturnsDecodedEvent(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewEventStore(db)

	event := model.Event{ID: "evt_1", Type: model.EventPersonOnboarded, OccurredAt: time.Now().UTC(), RecordedAt: time.Now().UTC()}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT payload FROM event_log").
		WithArgs(event.ID).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	got, ok, err := store.Get(context.Background(), event.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, event.ID, got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStoreGetMissingReturnsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewEventStore(db)

	mock.ExpectQuery("SELECT payload FROM event_log").
		WithArgs("evt_missing").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	_, ok, err := store.Get(context.Background(), "evt_missing")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentStoreRoutesToDistinctTables(t *testing.T) {
	db, mock := newMockDB(t)
	documents := NewDocumentStore(db)
	decisions := NewDecisionDocumentStore(db)

	doc := model.Document{ID: "doc_1", DocumentType: "policy", EffectiveDates: model.EffectiveDates{Start: time.Now().UTC()}}

	mock.ExpectExec("INSERT INTO document_log").
		WithArgs(doc.ID, doc.DocumentType, sqlmock.AnyArg(), doc.EffectiveDates.Start).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, documents.Append(context.Background(), doc))

	decision := model.Document{ID: "doc_2", DocumentType: "decision", EffectiveDates: model.EffectiveDates{Start: time.Now().UTC()}}
	mock.ExpectExec("INSERT INTO decision_document_log").
		WithArgs(decision.ID, decision.DocumentType, sqlmock.AnyArg(), decision.EffectiveDates.Start).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, decisions.Append(context.Background(), decision))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalStoreUpdateReportsNoRowsAsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewProposalStore(db)

	proposal := model.SchemaChangeProposal{ID: "prop_1", Status: model.ProposalApproved}
	mock.ExpectExec("UPDATE proposal_log SET").
		WithArgs(proposal.ID, string(proposal.Status), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), proposal)
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHolonStorePutUpsertsOnConflict(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewHolonStore(db)

	holon := model.Holon{ID: "hol_1", Type: model.HolonPerson, Status: model.StatusActive}
	mock.ExpectExec("INSERT INTO holon_snapshot").
		WithArgs(holon.ID, string(holon.Type), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Put(context.Background(), holon)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHolonStoreListByTypeDecodesAllRows(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewHolonStore(db)

	h1, _ := json.Marshal(model.Holon{ID: "hol_1", Type: model.HolonPerson})
	h2, _ := json.Marshal(model.Holon{ID: "hol_2", Type: model.HolonPerson})

	mock.ExpectQuery("SELECT payload FROM holon_snapshot").
		WithArgs(string(model.HolonPerson)).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(h1).AddRow(h2))

	holons, err := store.ListByType(context.Background(), model.HolonPerson)
	require.NoError(t, err)
	assert.Len(t, holons, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelationshipStoreGetMissingReturnsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewRelationshipStore(db)

	mock.ExpectQuery("SELECT payload FROM relationship_snapshot").
		WithArgs("rel_missing").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	_, ok, err := store.Get(context.Background(), "rel_missing")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConstraintStorePutAndGetRoundTrip(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewConstraintStore(db)

	constraint := model.Constraint{ID: "con_1", Type: model.ConstraintPolicy, Name: "one-active-assignment"}
	mock.ExpectExec("INSERT INTO constraint_snapshot").
		WithArgs(constraint.ID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, store.Put(context.Background(), constraint))

	payload, _ := json.Marshal(constraint)
	mock.ExpectQuery("SELECT payload FROM constraint_snapshot").
		WithArgs(constraint.ID).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	got, ok, err := store.Get(context.Background(), constraint.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, constraint.Name, got.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}
