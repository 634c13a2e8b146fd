// Package schema implements Schema Versioning: the catalog of
// HolonTypeDefinition and RelationshipTypeDefinition entries, each tagged
// with the version that introduced it, plus collision detection against
// the existing type system.
package schema

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
	"github.com/cmvayette/digitalbackbone-sub002/pkg/logger"
)

// Registry is the in-memory reference implementation of schema versioning.
type Registry struct {
	mu sync.RWMutex

	holonDefs        map[model.HolonType]model.HolonTypeDefinition
	relationshipDefs map[model.RelationshipType]model.RelationshipTypeDefinition
	versions         map[string]model.SchemaVersion

	log *logger.Logger
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithLogger overrides the registry's logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// New creates an empty schema registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		holonDefs:        make(map[model.HolonType]model.HolonTypeDefinition),
		relationshipDefs: make(map[model.RelationshipType]model.RelationshipTypeDefinition),
		versions:         make(map[string]model.SchemaVersion),
		log:              logger.NewDefault("schema"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateSchemaVersion records a new applied schema change and returns its id.
func (r *Registry) CreateSchemaVersion(changeType model.SchemaChangeType, description, sourceDocument string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := fmt.Sprintf("schv_%s", uuid.NewString())
	r.versions[id] = model.SchemaVersion{ID: id, ChangeType: changeType, Description: description, SourceDocument: sourceDocument}
	r.log.WithField("schema_version_id", id).WithField("change_type", changeType).Info("schema version created")
	return id
}

// GetSchemaVersion returns the schema version for id, if present.
func (r *Registry) GetSchemaVersion(id string) (model.SchemaVersion, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.versions[id]
	return v, ok
}

// RegisterHolonTypeDefinition stores def, stamped with versionID and
// versionLabel, and returns the stamped definition.
func (r *Registry) RegisterHolonTypeDefinition(def model.HolonTypeDefinition, versionID, versionLabel string) model.HolonTypeDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()
	def.SchemaVersion = versionID
	def.IntroducedInVersion = versionLabel
	r.holonDefs[def.Type] = def
	return def
}

// GetHolonTypeDefinition returns the definition for t, if present.
func (r *Registry) GetHolonTypeDefinition(t model.HolonType) (model.HolonTypeDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.holonDefs[t]
	return d, ok
}

// RegisterRelationshipTypeDefinition stores def, stamped with versionID
// and versionLabel.
func (r *Registry) RegisterRelationshipTypeDefinition(def model.RelationshipTypeDefinition, versionID, versionLabel string) model.RelationshipTypeDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()
	def.SchemaVersion = versionID
	def.IntroducedInVersion = versionLabel
	r.relationshipDefs[def.Type] = def
	return def
}

// DetectHolonCollision compares a proposed definition's type and property
// set against the existing catalog, reporting what it collides with.
func (r *Registry) DetectHolonCollision(def model.HolonTypeDefinition) model.CollisionAnalysis {
	r.mu.RLock()
	defer r.mu.RUnlock()

	existing, ok := r.holonDefs[def.Type]
	if !ok {
		return model.CollisionAnalysis{Performed: true}
	}

	overlap := intersect(existing.RequiredProperties, def.RequiredProperties)
	overlap = append(overlap, intersect(existing.OptionalProperties, def.OptionalProperties)...)

	return model.CollisionAnalysis{
		Performed:    true,
		CollidesWith: []string{string(def.Type)},
		Notes:        fmt.Sprintf("holon type %q already defined; overlapping properties: %v", def.Type, overlap),
	}
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	var out []string
	for _, s := range b {
		if set[s] {
			out = append(out, s)
		}
	}
	return out
}
