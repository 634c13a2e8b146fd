// Package constraintengine implements the Constraint Engine: pluggable
// validators scoped to holon, relationship, and event types, with
// inheritance, precedence, and effective-date gating. Constraints never
// store a callable directly — each carries a ValidatorKind plus either a
// registered name (native) or a logic source (jsonpath/script), and
// dispatch goes through the engine's validator registry.
package constraintengine

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/dop251/goja"
	"github.com/google/uuid"

	"github.com/cmvayette/digitalbackbone-sub002/internal/documentregistry"
	"github.com/cmvayette/digitalbackbone-sub002/internal/errs"
	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
	"github.com/cmvayette/digitalbackbone-sub002/pkg/logger"
)

// NativeValidator is a Go-native constraint validator registered by name.
type NativeValidator func(candidate any, at time.Time) errs.Result

// Engine is the in-memory reference implementation of the constraint engine.
type Engine struct {
	mu sync.RWMutex

	byID               map[string]model.Constraint
	byHolonType        map[model.HolonType][]string
	byRelationshipType map[model.RelationshipType][]string
	byEventType        map[model.EventType][]string

	natives map[string]NativeValidator

	docs *documentregistry.Registry
	log  *logger.Logger
	now  func() time.Time
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithClock overrides the engine's notion of "now".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger overrides the engine's logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an empty constraint engine backed by docs for source-document
// linkage at registration time.
func New(docs *documentregistry.Registry, opts ...Option) *Engine {
	e := &Engine{
		byID:               make(map[string]model.Constraint),
		byHolonType:        make(map[model.HolonType][]string),
		byRelationshipType: make(map[model.RelationshipType][]string),
		byEventType:        make(map[model.EventType][]string),
		natives:            make(map[string]NativeValidator),
		docs:               docs,
		log:                logger.NewDefault("constraintengine"),
		now:                func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterNativeValidator adds a Go-native validator to the engine's
// dispatch table, addressable by name from a constraint's ValidatorName.
func (e *Engine) RegisterNativeValidator(name string, v NativeValidator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.natives[name] = v
}

// Params is the caller-provided shape of a new constraint; id is
// synthesized by the engine.
type Params struct {
	Type             model.ConstraintType
	Name             string
	Definition       string
	Scope            model.ConstraintScope
	EffectiveDates   model.EffectiveDates
	SourceDocuments  []string
	Precedence       int
	InheritanceRules *model.InheritanceRules
	ValidatorKind    model.ValidatorKind
	ValidatorName    string
	LogicSource      string
}

// RegisterConstraint stores a new constraint and links its source documents.
func (e *Engine) RegisterConstraint(params Params) (string, errs.Result) {
	if params.Name == "" {
		return "", errs.Fail(errs.New(errs.KindValidation, "constraint name is required").WithRule("validation: constraint name"))
	}
	if params.ValidatorKind == model.ValidatorKindNative && params.ValidatorName == "" {
		return "", errs.Fail(errs.New(errs.KindValidation, "native constraint requires a validatorName").WithRule("validation: constraint validator"))
	}
	if (params.ValidatorKind == model.ValidatorKindJSONPath || params.ValidatorKind == model.ValidatorKindScript) && params.LogicSource == "" {
		return "", errs.Fail(errs.New(errs.KindValidation, "jsonpath/script constraint requires a logicSource").WithRule("validation: constraint validator"))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id := fmt.Sprintf("con_%s", uuid.NewString())
	c := model.Constraint{
		ID:               id,
		Type:             params.Type,
		Name:             params.Name,
		Definition:       params.Definition,
		Scope:            params.Scope,
		EffectiveDates:   params.EffectiveDates,
		SourceDocuments:  append([]string(nil), params.SourceDocuments...),
		Precedence:       params.Precedence,
		InheritanceRules: params.InheritanceRules,
		ValidatorKind:    params.ValidatorKind,
		ValidatorName:    params.ValidatorName,
		LogicSource:      params.LogicSource,
	}
	e.byID[id] = c
	for _, t := range c.Scope.HolonTypes {
		e.byHolonType[t] = append(e.byHolonType[t], id)
	}
	for _, t := range c.Scope.RelationshipTypes {
		e.byRelationshipType[t] = append(e.byRelationshipType[t], id)
	}
	for _, t := range c.Scope.EventTypes {
		e.byEventType[t] = append(e.byEventType[t], id)
	}

	if e.docs != nil && len(c.SourceDocuments) > 0 {
		for _, docID := range c.SourceDocuments {
			e.docs.LinkToConstraints(docID, []string{id})
		}
	}

	e.log.WithField("constraint_id", id).WithField("name", c.Name).Info("constraint registered")
	return id, errs.OK()
}

// GetConstraint returns the constraint for id, if present.
func (e *Engine) GetConstraint(id string) (model.Constraint, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.byID[id]
	return c, ok
}

func effectiveAt(c model.Constraint, at *time.Time) bool {
	if at == nil {
		return true
	}
	return c.EffectiveDates.InForceAt(*at)
}

// GetApplicableConstraints returns holon-type constraints effective at `at`
// (nil means "always"), merged with inherited constraints per precedence.
func (e *Engine) GetApplicableConstraints(t model.HolonType, at *time.Time) []model.Constraint {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var direct, inherited []model.Constraint
	for _, id := range e.byHolonType[t] {
		c := e.byID[id]
		if !effectiveAt(c, at) {
			continue
		}
		direct = append(direct, c)
	}
	for _, c := range e.byID {
		if c.InheritsFrom(t) && effectiveAt(c, at) {
			inherited = append(inherited, c)
		}
	}
	return mergeByPrecedence(inherited, direct)
}

// GetApplicableRelationshipConstraints returns relationship-type constraints
// effective at `at`. Relationship constraints have no inheritance.
func (e *Engine) GetApplicableRelationshipConstraints(t model.RelationshipType, at *time.Time) []model.Constraint {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []model.Constraint
	for _, id := range e.byRelationshipType[t] {
		c := e.byID[id]
		if effectiveAt(c, at) {
			out = append(out, c)
		}
	}
	sortByPrecedenceDesc(out)
	return out
}

// GetApplicableEventConstraints returns event-type constraints effective at
// `at`. Event constraints have no inheritance.
func (e *Engine) GetApplicableEventConstraints(t model.EventType, at *time.Time) []model.Constraint {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []model.Constraint
	for _, id := range e.byEventType[t] {
		c := e.byID[id]
		if effectiveAt(c, at) {
			out = append(out, c)
		}
	}
	sortByPrecedenceDesc(out)
	return out
}

// mergeByPrecedence merges inherited constraints with direct ones, keyed by
// name: a direct constraint with the same name as an inherited one replaces
// it only if the inherited entry's InheritanceRules.CanOverride is set and
// the direct constraint's precedence is >= the inherited OverridePrecedence.
func mergeByPrecedence(inherited, direct []model.Constraint) []model.Constraint {
	merged := make(map[string]model.Constraint, len(inherited)+len(direct))
	order := make([]string, 0, len(inherited)+len(direct))
	for _, c := range inherited {
		merged[c.Name] = c
		order = append(order, c.Name)
	}
	for _, c := range direct {
		existing, ok := merged[c.Name]
		if !ok {
			merged[c.Name] = c
			order = append(order, c.Name)
			continue
		}
		if existing.InheritanceRules != nil && existing.InheritanceRules.CanOverride &&
			c.Precedence >= existing.InheritanceRules.OverridePrecedence {
			merged[c.Name] = c
		}
	}
	out := make([]model.Constraint, 0, len(order))
	for _, name := range order {
		out = append(out, merged[name])
	}
	sortByPrecedenceDesc(out)
	return out
}

func sortByPrecedenceDesc(cs []model.Constraint) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Precedence > cs[j].Precedence })
}

// ValidateHolon runs every applicable constraint for h.Type against h at
// time at (default now), accumulating errors and warnings.
func (e *Engine) ValidateHolon(h model.Holon, at *time.Time) errs.Result {
	ts := e.resolveAt(at)
	constraints := e.GetApplicableConstraints(h.Type, &ts)
	return e.runAll(constraints, h, ts)
}

// ValidateRelationship runs every applicable constraint for r.Type.
func (e *Engine) ValidateRelationship(r model.Relationship, at *time.Time) errs.Result {
	ts := e.resolveAt(at)
	constraints := e.GetApplicableRelationshipConstraints(r.Type, &ts)
	return e.runAll(constraints, r, ts)
}

// ValidateEvent runs every applicable constraint for e.Type.
func (e *Engine) ValidateEvent(ev model.Event, at *time.Time) errs.Result {
	ts := e.resolveAt(at)
	constraints := e.GetApplicableEventConstraints(ev.Type, &ts)
	return e.runAll(constraints, ev, ts)
}

func (e *Engine) resolveAt(at *time.Time) time.Time {
	if at != nil {
		return *at
	}
	return e.now()
}

func (e *Engine) runAll(constraints []model.Constraint, candidate any, at time.Time) errs.Result {
	result := errs.OK()
	for _, c := range constraints {
		r := e.dispatch(c, candidate, at)
		result.Merge(r)
	}
	return result
}

func (e *Engine) dispatch(c model.Constraint, candidate any, at time.Time) errs.Result {
	switch c.ValidatorKind {
	case model.ValidatorKindNative:
		e.mu.RLock()
		v, ok := e.natives[c.ValidatorName]
		e.mu.RUnlock()
		if !ok {
			return errs.Fail(errs.Newf(errs.KindIntegration, "no native validator registered under name %q", c.ValidatorName).
				WithConstraint(c.ID).WithRule("integration: unregistered validator"))
		}
		return withConstraintID(v(candidate, at), c.ID)
	case model.ValidatorKindJSONPath:
		return withConstraintID(runJSONPath(c, candidate), c.ID)
	case model.ValidatorKindScript:
		return withConstraintID(runScript(c, candidate), c.ID)
	default:
		return errs.Fail(errs.Newf(errs.KindIntegration, "constraint %s has unknown validator kind %q", c.ID, c.ValidatorKind).
			WithConstraint(c.ID).WithRule("integration: unknown validator kind"))
	}
}

func withConstraintID(r errs.Result, constraintID string) errs.Result {
	for i := range r.Errors {
		if r.Errors[i].ConstraintID == "" {
			r.Errors[i] = r.Errors[i].WithConstraint(constraintID)
		}
	}
	return r
}

// runJSONPath evaluates the constraint's LogicSource as a JSONPath query
// against the JSON-shaped view of candidate; a non-empty match passes.
func runJSONPath(c model.Constraint, candidate any) errs.Result {
	view, err := toJSONView(candidate)
	if err != nil {
		return errs.Fail(errs.Newf(errs.KindIntegration, "jsonpath constraint %s: %v", c.ID, err).WithRule("integration: jsonpath marshal"))
	}
	result, err := jsonpath.Get(c.LogicSource, view)
	if err != nil {
		return errs.Fail(errs.Newf(errs.KindValidation, "constraint %q failed: %s", c.Name, c.Definition).
			WithRule(c.Definition))
	}
	if isEmptyJSONPathResult(result) {
		return errs.Fail(errs.Newf(errs.KindValidation, "constraint %q failed: %s", c.Name, c.Definition).
			WithRule(c.Definition))
	}
	return errs.OK()
}

func isEmptyJSONPathResult(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case []any:
		return len(t) == 0
	default:
		return false
	}
}

// runScript evaluates the constraint's LogicSource as a goja script with a
// `candidate` global bound to the JSON-shaped view; the script's return
// value is coerced to bool.
func runScript(c model.Constraint, candidate any) errs.Result {
	view, err := toJSONView(candidate)
	if err != nil {
		return errs.Fail(errs.Newf(errs.KindIntegration, "script constraint %s: %v", c.ID, err).WithRule("integration: script marshal"))
	}
	vm := goja.New()
	if err := vm.Set("candidate", view); err != nil {
		return errs.Fail(errs.Newf(errs.KindIntegration, "script constraint %s: %v", c.ID, err).WithRule("integration: script binding"))
	}
	v, err := vm.RunString(c.LogicSource)
	if err != nil {
		return errs.Fail(errs.Newf(errs.KindIntegration, "script constraint %s raised: %v", c.ID, err).WithRule("integration: script execution"))
	}
	if !v.ToBoolean() {
		return errs.Fail(errs.Newf(errs.KindValidation, "constraint %q failed: %s", c.Name, c.Definition).
			WithRule(c.Definition))
	}
	return errs.OK()
}

func toJSONView(candidate any) (map[string]any, error) {
	raw, err := json.Marshal(candidate)
	if err != nil {
		return nil, err
	}
	var view map[string]any
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, err
	}
	return view, nil
}
