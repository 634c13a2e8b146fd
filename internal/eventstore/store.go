// Package eventstore implements the append-only event log: submitEvent
// stamps ids and recordedAt, validates temporal bounds and causal
// ordering, and indexes by subject, actor, and type. Events are
// immutable once accepted — corrections happen via compensating events
// in the validation engine, never by mutating a stored event.
package eventstore

import (
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/cmvayette/digitalbackbone-sub002/internal/config"
	"github.com/cmvayette/digitalbackbone-sub002/internal/errs"
	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
	"github.com/cmvayette/digitalbackbone-sub002/pkg/logger"
)

// Store is the in-memory reference implementation of the event store.
type Store struct {
	mu     sync.RWMutex
	byID   map[string]model.Event
	order  []string // submission order, for per-submission subscription ordering
	byType map[model.EventType][]string
	byActor map[string][]string
	bySubject map[string][]string

	past   time.Duration
	future time.Duration

	log *logger.Logger
	now func() time.Time
}

// Option configures a Store at construction.
type Option func(*Store)

// WithClock overrides the store's notion of "now", for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger overrides the store's logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New creates an empty event store bound to the given temporal bounds.
func New(cfg config.Config, opts ...Option) *Store {
	s := &Store{
		byID:      make(map[string]model.Event),
		byType:    make(map[model.EventType][]string),
		byActor:   make(map[string][]string),
		bySubject: make(map[string][]string),
		past:      cfg.EventTemporalPastWindow,
		future:    cfg.EventTemporalFutureWindow,
		log:       logger.NewDefault("eventstore"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submission is the caller-provided shape of a new event; id and
// recordedAt are synthesized by the store.
type Submission struct {
	Type           model.EventType
	OccurredAt     time.Time
	Actor          string
	Subjects       []string
	Payload        map[string]any
	SourceSystem   string
	SourceDocument string
	ValidityWindow *model.ValidityWindow
	CausalLinks    model.CausalLinks
}

// SubmitEvent validates and appends a new event, returning its id.
func (s *Store) SubmitEvent(sub Submission) (string, errs.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if res := s.validateTemporalBoundsLocked(sub.OccurredAt, now); !res.Valid {
		return "", res
	}
	if res := s.validateCausalLinksLocked(sub.CausalLinks, sub.OccurredAt); !res.Valid {
		return "", res
	}
	if sub.ValidityWindow != nil && sub.ValidityWindow.End.Before(sub.ValidityWindow.Start) {
		return "", errs.Fail(errs.New(errs.KindTemporal, "validityWindow end precedes start").WithRule("temporal: validity window"))
	}

	id := newID("evt")
	evt := model.Event{
		ID:             id,
		Type:           sub.Type,
		OccurredAt:     sub.OccurredAt,
		RecordedAt:     now,
		Actor:          sub.Actor,
		Subjects:       append([]string(nil), sub.Subjects...),
		Payload:        sub.Payload,
		SourceSystem:   sub.SourceSystem,
		SourceDocument: sub.SourceDocument,
		ValidityWindow: sub.ValidityWindow,
		CausalLinks:    sub.CausalLinks,
	}
	evt.Fingerprint = fingerprint(evt)

	s.byID[id] = evt
	s.order = append(s.order, id)
	s.byType[evt.Type] = append(s.byType[evt.Type], id)
	if evt.Actor != "" {
		s.byActor[evt.Actor] = append(s.byActor[evt.Actor], id)
	}
	for _, subject := range evt.Subjects {
		s.bySubject[subject] = append(s.bySubject[subject], id)
	}

	s.log.WithField("event_id", id).WithField("type", evt.Type).Info("event submitted")
	return id, errs.OK()
}

// validateTemporalBoundsLocked enforces occurredAt within [now-past, now+future].
// recordedAt is always stamped = now in this store, so it can never precede
// occurredAt except within the future window already bounded above; no
// separate recordedAt-ordering check is needed on top of it.
func (s *Store) validateTemporalBoundsLocked(occurredAt, now time.Time) errs.Result {
	earliest := now.Add(-s.past)
	latest := now.Add(s.future)
	if occurredAt.Before(earliest) || occurredAt.After(latest) {
		return errs.Fail(errs.Newf(errs.KindTemporal,
			"occurredAt %s outside permitted window [%s, %s]", occurredAt, earliest, latest).
			WithRule("temporal: occurredAt bounds"))
	}
	return errs.OK()
}

func (s *Store) validateCausalLinksLocked(links model.CausalLinks, occurredAt time.Time) errs.Result {
	for _, id := range links.All() {
		pred, ok := s.byID[id]
		if !ok {
			return errs.Fail(errs.Newf(errs.KindConsistency, "causal predecessor %s does not exist", id).
				WithRule("consistency: orphan causal link"))
		}
		if pred.OccurredAt.After(occurredAt) {
			return errs.Fail(errs.Newf(errs.KindConsistency, "causal predecessor %s occurred after this event", id).
				WithRule("consistency: causal ordering"))
		}
	}
	return errs.OK()
}

// GetEvent returns the event for id, if present.
func (s *Store) GetEvent(id string) (model.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return model.Event{}, false
	}
	return e.Clone(), true
}

// Exists reports whether an event with id has been recorded.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok
}

// GetEventsByHolon returns every event that names holonID as a subject.
func (s *Store) GetEventsByHolon(holonID string) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(s.bySubject[holonID])
}

// GetEventsByType returns every event of the given type, in submission order.
func (s *Store) GetEventsByType(t model.EventType) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(s.byType[t])
}

// GetEventsByActor returns every event submitted by actor, in submission order.
func (s *Store) GetEventsByActor(actor string) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(s.byActor[actor])
}

func (s *Store) collectLocked(ids []string) []model.Event {
	out := make([]model.Event, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.byID[id]; ok {
			out = append(out, e.Clone())
		}
	}
	return out
}

// Count returns the number of events recorded, mainly for monitoring.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func newID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// fingerprint stamps a content hash over the immutable fields of an event,
// giving the append-only log a tamper-evidence signal independent of
// storage backend.
func fingerprint(e model.Event) string {
	h, _ := blake2b.New256(nil)
	fmt.Fprintf(h, "%s|%s|%s|%s|%v", e.ID, e.Type, e.OccurredAt.UTC().Format(time.RFC3339Nano), e.Actor, e.Subjects)
	return hex.EncodeToString(h.Sum(nil))
}
