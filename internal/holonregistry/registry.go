// Package holonregistry implements the Holon Registry: the catalog of
// typed entities (Person, Position, Mission, Task, ...) addressed only by
// id. Holons own no other entity — relationships and events reference
// them — and are never deleted, only marked inactive.
package holonregistry

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cmvayette/digitalbackbone-sub002/internal/errs"
	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
	"github.com/cmvayette/digitalbackbone-sub002/pkg/logger"
)

// Registry is the in-memory reference implementation of the holon registry.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]model.Holon
	byType map[model.HolonType][]string

	log *logger.Logger
	now func() time.Time
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithClock overrides the registry's notion of "now", for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithLogger overrides the registry's logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// New creates an empty holon registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		byID:   make(map[string]model.Holon),
		byType: make(map[model.HolonType][]string),
		log:    logger.NewDefault("holonregistry"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Params is the caller-provided shape of a new holon; id, createdAt and
// status are synthesized by the registry.
type Params struct {
	Type            model.HolonType
	Properties      map[string]any
	CreatedBy       string
	SourceDocuments []string
}

// CreateHolon assigns an id, stamps createdAt, and sets status=active.
func (r *Registry) CreateHolon(params Params) (model.Holon, errs.Result) {
	if params.Type == "" {
		return model.Holon{}, errs.Fail(errs.New(errs.KindValidation, "holon type is required").WithRule("validation: holon type"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	h := model.Holon{
		ID:              newID(typePrefix(params.Type)),
		Type:            params.Type,
		Properties:      params.Properties,
		CreatedAt:       r.now(),
		CreatedBy:       params.CreatedBy,
		Status:          model.StatusActive,
		SourceDocuments: append([]string(nil), params.SourceDocuments...),
	}
	r.byID[h.ID] = h
	r.byType[h.Type] = append(r.byType[h.Type], h.ID)

	r.log.WithField("holon_id", h.ID).WithField("type", h.Type).Info("holon created")
	return h.Clone(), errs.OK()
}

// GetHolon returns the holon for id, if present.
func (r *Registry) GetHolon(id string) (model.Holon, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byID[id]
	if !ok {
		return model.Holon{}, false
	}
	return h.Clone(), true
}

// Exists reports whether a holon with id has been registered.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// GetByType returns every holon of the given type, in creation order.
func (r *Registry) GetByType(t model.HolonType) []model.Holon {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byType[t]
	out := make([]model.Holon, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byID[id].Clone())
	}
	return out
}

// MarkHolonInactive transitions a holon to inactive, used for rollback when
// downstream validation fails. It never deletes the holon.
func (r *Registry) MarkHolonInactive(id, reason string) errs.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byID[id]
	if !ok {
		return errs.Fail(errs.Newf(errs.KindValidation, "holon %s does not exist", id).WithRule("validation: unknown holon"))
	}
	h.Status = model.StatusInactive
	r.byID[id] = h
	r.log.WithField("holon_id", id).WithField("reason", reason).Warn("holon marked inactive")
	return errs.OK()
}

// SetProperty overwrites a single entry of a holon's property record, used
// by domain managers to persist state-machine transitions (task status,
// initiative stage) without exposing the whole property map for mutation.
func (r *Registry) SetProperty(id, key string, value any) errs.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byID[id]
	if !ok {
		return errs.Fail(errs.Newf(errs.KindValidation, "holon %s does not exist", id).WithRule("validation: unknown holon"))
	}
	if h.Properties == nil {
		h.Properties = make(map[string]any, 1)
	}
	h.Properties[key] = value
	r.byID[id] = h
	return errs.OK()
}

// MarkHolonActive reverses MarkHolonInactive.
func (r *Registry) MarkHolonActive(id string) errs.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byID[id]
	if !ok {
		return errs.Fail(errs.Newf(errs.KindValidation, "holon %s does not exist", id).WithRule("validation: unknown holon"))
	}
	h.Status = model.StatusActive
	r.byID[id] = h
	return errs.OK()
}

// Count returns the number of holons registered, mainly for monitoring.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func newID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// typePrefix gives each holon type a short, grep-friendly id prefix.
func typePrefix(t model.HolonType) string {
	switch t {
	case model.HolonPerson:
		return "per"
	case model.HolonPosition:
		return "pos"
	case model.HolonOrganization:
		return "org"
	case model.HolonQualification:
		return "qual"
	case model.HolonMission:
		return "msn"
	case model.HolonCapability:
		return "cap"
	case model.HolonAsset:
		return "ast"
	case model.HolonObjective:
		return "obj"
	case model.HolonLOE:
		return "loe"
	case model.HolonInitiative:
		return "ini"
	case model.HolonTask:
		return "tsk"
	case model.HolonSystem:
		return "sys"
	default:
		return "hol"
	}
}
