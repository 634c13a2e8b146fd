// Package documentregistry implements the Document Registry: versioned,
// period-of-force authoritative sources that holons, relationships, and
// constraints cite by id. Registration is append-only — a corrected
// document is a new version, never a mutation of an existing one.
package documentregistry

import (
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/cmvayette/digitalbackbone-sub002/internal/errs"
	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
	"github.com/cmvayette/digitalbackbone-sub002/pkg/logger"
)

// Registry is the in-memory reference implementation of the document registry.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]model.Document

	log *logger.Logger
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithLogger overrides the registry's logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// New creates an empty document registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		byID: make(map[string]model.Document),
		log:  logger.NewDefault("documentregistry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Params is the caller-provided shape of a new document; id and content
// hash are synthesized by the registry.
type Params struct {
	ReferenceNumbers       []string
	Title                  string
	DocumentType           string
	Version                string
	EffectiveDates         model.EffectiveDates
	ClassificationMetadata string
	Content                string
}

// RegisterDocument stores a new document version and returns its id.
func (r *Registry) RegisterDocument(params Params, createdByEvent string) (string, errs.Result) {
	if params.Title == "" {
		return "", errs.Fail(errs.New(errs.KindValidation, "document title is required").WithRule("validation: document title"))
	}
	if params.EffectiveDates.End != nil && params.EffectiveDates.End.Before(params.EffectiveDates.Start) {
		return "", errs.Fail(errs.New(errs.KindTemporal, "effectiveDates end precedes start").WithRule("temporal: document effective dates"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := newID("doc")
	doc := model.Document{
		ID:                     id,
		ReferenceNumbers:       append([]string(nil), params.ReferenceNumbers...),
		Title:                  params.Title,
		DocumentType:           params.DocumentType,
		Version:                params.Version,
		EffectiveDates:         params.EffectiveDates,
		ClassificationMetadata: params.ClassificationMetadata,
		Content:                params.Content,
		CreatedByEvent:         createdByEvent,
	}
	doc.ContentHash = contentHash(doc)
	r.byID[id] = doc

	r.log.WithField("document_id", id).WithField("type", doc.DocumentType).Info("document registered")
	return id, errs.OK()
}

// GetDocument returns the document for id, if present.
func (r *Registry) GetDocument(id string) (model.Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	if !ok {
		return model.Document{}, false
	}
	return d.Clone(), true
}

// GetDocumentsInForce returns every document whose effective-date range
// contains at.
func (r *Registry) GetDocumentsInForce(at time.Time) []model.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Document, 0)
	for _, d := range r.byID {
		if d.EffectiveDates.InForceAt(at) {
			out = append(out, d.Clone())
		}
	}
	return out
}

// LinkToConstraints records that constraintIds cite docId. The Constraint
// Engine holds the reverse link; this side only needs the forward list for
// getDocument callers that want to see what governs a document.
func (r *Registry) LinkToConstraints(docID string, constraintIDs []string) errs.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.byID[docID]
	if !ok {
		return errs.Fail(errs.Newf(errs.KindValidation, "document %s does not exist", docID).WithRule("validation: unknown document"))
	}
	existing := make(map[string]bool, len(doc.LinkedConstraintIDs))
	for _, id := range doc.LinkedConstraintIDs {
		existing[id] = true
	}
	for _, id := range constraintIDs {
		if !existing[id] {
			doc.LinkedConstraintIDs = append(doc.LinkedConstraintIDs, id)
			existing[id] = true
		}
	}
	r.byID[docID] = doc
	return errs.OK()
}

func newID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// contentHash fingerprints the immutable content of a document version,
// independent of storage backend.
func contentHash(d model.Document) string {
	h, _ := blake2b.New256(nil)
	fmt.Fprintf(h, "%s|%s|%s|%s", d.Title, d.DocumentType, d.Version, d.Content)
	return hex.EncodeToString(h.Sum(nil))
}
