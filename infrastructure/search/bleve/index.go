package bleve

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"catalog/application/ports"
	pkgerrors "catalog/pkg/errors"
)

const (
	// bulkBatchSize bounds the documents per batch during bulk writes
	bulkBatchSize = 1000

	// facetLimit bounds the distinct terms returned per facet field
	facetLimit = 100
)

// Relevance boosts for the ranked multi-field query. Name matches rank
// above description matches, which rank above tag matches.
const (
	boostName        = 3.0
	boostDescription = 2.0
	boostTags        = 1.0

	boostPrefix = 5.0
	boostFuzzy  = 1.0
)

// Index is the embedded full-text index over catalogued resources. The
// active bleve index sits behind a RWMutex so ReindexAll can swap in a
// freshly built index without readers observing a half-built one.
type Index struct {
	mu     sync.RWMutex
	idx    bleve.Index
	path   string
	logger *zap.Logger
}

// NewIndex opens the index at path, creating it if absent. An empty path
// opens an in-memory index.
func NewIndex(path string, logger *zap.Logger) (*Index, error) {
	idx, err := openIndex(path)
	if err != nil {
		return nil, pkgerrors.NewUnavailable("opening search index", err)
	}
	return &Index{idx: idx, path: path, logger: logger}, nil
}

func openIndex(path string) (bleve.Index, error) {
	if path == "" {
		return bleve.NewMemOnly(buildMapping())
	}
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		return bleve.New(path, buildMapping())
	}
	return idx, err
}

// buildMapping maps name and description through the standard analyzer for
// ranked matching, and type, namespace and tags through the keyword
// analyzer so filters and facets match whole values.
func buildMapping() mapping.IndexMapping {
	textField := bleve.NewTextFieldMapping()

	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name

	dateField := bleve.NewDateTimeFieldMapping()

	boolField := bleve.NewBooleanFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("name", textField)
	doc.AddFieldMappingsAt("description", textField)
	doc.AddFieldMappingsAt("type", keywordField)
	doc.AddFieldMappingsAt("namespace", keywordField)
	doc.AddFieldMappingsAt("tags", keywordField)
	doc.AddFieldMappingsAt("version", keywordField)
	doc.AddFieldMappingsAt("createdAt", dateField)
	doc.AddFieldMappingsAt("updatedAt", dateField)
	doc.AddFieldMappingsAt("active", boolField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Close releases the underlying index
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.Close()
}

// Search runs a ranked query over name, description and tags. An empty
// query returns no results.
func (s *Index) Search(ctx context.Context, q string, pageSize, pageNumber int) ([]ports.Document, error) {
	if q == "" {
		return []ports.Document{}, nil
	}
	if err := validatePage(pageSize, pageNumber); err != nil {
		return nil, err
	}

	name := bleve.NewMatchQuery(q)
	name.SetField("name")
	name.SetBoost(boostName)

	description := bleve.NewMatchQuery(q)
	description.SetField("description")
	description.SetBoost(boostDescription)

	tags := bleve.NewMatchQuery(q)
	tags.SetField("tags")
	tags.SetBoost(boostTags)

	fuzzy := bleve.NewFuzzyQuery(q)
	fuzzy.SetField("name")
	fuzzy.SetBoost(boostFuzzy)

	return s.run(ctx, bleve.NewDisjunctionQuery(name, description, tags, fuzzy), pageSize, pageNumber)
}

// Autocomplete returns up to limit documents whose name matches the prefix.
// Exact prefix matches outrank fuzzy ones.
func (s *Index) Autocomplete(ctx context.Context, prefix string, limit int) ([]ports.Document, error) {
	if prefix == "" {
		return []ports.Document{}, nil
	}
	if limit < 1 {
		return nil, pkgerrors.NewInvalid("autocomplete limit must be positive")
	}

	exact := bleve.NewPrefixQuery(prefix)
	exact.SetField("name")
	exact.SetBoost(boostPrefix)

	fuzzy := bleve.NewFuzzyQuery(prefix)
	fuzzy.SetField("name")
	fuzzy.SetBoost(boostFuzzy)

	return s.run(ctx, bleve.NewDisjunctionQuery(exact, fuzzy), limit, 1)
}

// SearchByType returns documents of the given resource type
func (s *Index) SearchByType(ctx context.Context, resourceType string, pageSize, pageNumber int) ([]ports.Document, error) {
	if err := validatePage(pageSize, pageNumber); err != nil {
		return nil, err
	}
	term := bleve.NewTermQuery(resourceType)
	term.SetField("type")
	return s.run(ctx, term, pageSize, pageNumber)
}

// SearchByNamespace returns documents in the given namespace
func (s *Index) SearchByNamespace(ctx context.Context, namespace string, pageSize, pageNumber int) ([]ports.Document, error) {
	if err := validatePage(pageSize, pageNumber); err != nil {
		return nil, err
	}
	term := bleve.NewTermQuery(namespace)
	term.SetField("namespace")
	return s.run(ctx, term, pageSize, pageNumber)
}

// SearchByTags returns documents matching the tags; matchAll toggles all-of
// versus any-of semantics
func (s *Index) SearchByTags(ctx context.Context, tags []string, matchAll bool, pageSize, pageNumber int) ([]ports.Document, error) {
	if len(tags) == 0 {
		return []ports.Document{}, nil
	}
	if err := validatePage(pageSize, pageNumber); err != nil {
		return nil, err
	}

	terms := make([]query.Query, 0, len(tags))
	for _, tag := range tags {
		term := bleve.NewTermQuery(tag)
		term.SetField("tags")
		terms = append(terms, term)
	}

	var q query.Query
	if matchAll {
		q = bleve.NewConjunctionQuery(terms...)
	} else {
		q = bleve.NewDisjunctionQuery(terms...)
	}
	return s.run(ctx, q, pageSize, pageNumber)
}

// GetFacets aggregates document counts per type, namespace and tag,
// optionally restricted to documents matching the query. Keys are prefixed
// type:, namespace: and tag:.
func (s *Index) GetFacets(ctx context.Context, q string) (map[string]int, error) {
	var base query.Query
	if q == "" {
		base = bleve.NewMatchAllQuery()
	} else {
		name := bleve.NewMatchQuery(q)
		name.SetField("name")
		description := bleve.NewMatchQuery(q)
		description.SetField("description")
		tags := bleve.NewMatchQuery(q)
		tags.SetField("tags")
		base = bleve.NewDisjunctionQuery(name, description, tags)
	}

	req := bleve.NewSearchRequestOptions(base, 0, 0, false)
	req.AddFacet("type", bleve.NewFacetRequest("type", facetLimit))
	req.AddFacet("namespace", bleve.NewFacetRequest("namespace", facetLimit))
	req.AddFacet("tag", bleve.NewFacetRequest("tags", facetLimit))

	s.mu.RLock()
	result, err := s.idx.SearchInContext(ctx, req)
	s.mu.RUnlock()
	if err != nil {
		return nil, pkgerrors.NewUnavailable("search facets", err)
	}

	out := make(map[string]int)
	for facetName, facet := range result.Facets {
		for _, term := range facet.Terms.Terms() {
			out[fmt.Sprintf("%s:%s", facetName, term.Term)] = term.Count
		}
	}
	return out, nil
}

// Index writes one document
func (s *Index) Index(ctx context.Context, doc ports.Document) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.idx.Index(doc.ID, doc); err != nil {
		return pkgerrors.NewUnavailable("indexing document", err)
	}
	return nil
}

// BulkIndex writes many documents in bounded batches
func (s *Index) BulkIndex(ctx context.Context, docs []ports.Document) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bulkIndex(s.idx, docs)
}

func bulkIndex(idx bleve.Index, docs []ports.Document) error {
	for start := 0; start < len(docs); start += bulkBatchSize {
		end := start + bulkBatchSize
		if end > len(docs) {
			end = len(docs)
		}

		batch := idx.NewBatch()
		for _, doc := range docs[start:end] {
			if err := batch.Index(doc.ID, doc); err != nil {
				return pkgerrors.NewUnavailable("building index batch", err)
			}
		}
		if err := idx.Batch(batch); err != nil {
			return pkgerrors.NewUnavailable("writing index batch", err)
		}
	}
	return nil
}

// Delete removes a document by ID. Deleting an unknown ID is a no-op.
func (s *Index) Delete(ctx context.Context, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.idx.Delete(id); err != nil {
		return pkgerrors.NewUnavailable("deleting document", err)
	}
	return nil
}

// ReindexAll builds a fresh index from the documents and swaps it in, so
// readers never observe a partially rebuilt index. File-backed indexes are
// rebuilt at a sibling path and renamed into place, replacing the on-disk
// contents as well.
func (s *Index) ReindexAll(ctx context.Context, docs []ports.Document) error {
	if s.path == "" {
		return s.swapInMemory(docs)
	}
	return s.swapOnDisk(docs)
}

func (s *Index) swapInMemory(docs []ports.Document) error {
	fresh, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return pkgerrors.NewUnavailable("building replacement index", err)
	}
	if err := bulkIndex(fresh, docs); err != nil {
		_ = fresh.Close()
		return err
	}

	s.mu.Lock()
	old := s.idx
	s.idx = fresh
	s.mu.Unlock()

	if err := old.Close(); err != nil {
		s.logger.Warn("closing replaced search index", zap.Error(err))
	}
	s.logger.Info("search index rebuilt", zap.Int("documents", len(docs)))
	return nil
}

func (s *Index) swapOnDisk(docs []ports.Document) error {
	rebuild := s.path + ".rebuild"
	if err := os.RemoveAll(rebuild); err != nil {
		return pkgerrors.NewUnavailable("clearing previous rebuild", err)
	}

	fresh, err := bleve.New(rebuild, buildMapping())
	if err != nil {
		return pkgerrors.NewUnavailable("building replacement index", err)
	}
	if err := bulkIndex(fresh, docs); err != nil {
		_ = fresh.Close()
		_ = os.RemoveAll(rebuild)
		return err
	}
	if err := fresh.Close(); err != nil {
		_ = os.RemoveAll(rebuild)
		return pkgerrors.NewUnavailable("closing replacement index", err)
	}

	// Readers are held off while the stale index is closed, the rebuilt one
	// renamed over it, and the handle reopened.
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.idx.Close(); err != nil {
		s.logger.Warn("closing replaced search index", zap.Error(err))
	}
	if err := os.RemoveAll(s.path); err != nil {
		return pkgerrors.NewUnavailable("removing stale index", err)
	}
	if err := os.Rename(rebuild, s.path); err != nil {
		return pkgerrors.NewUnavailable("installing rebuilt index", err)
	}

	reopened, err := bleve.Open(s.path)
	if err != nil {
		return pkgerrors.NewUnavailable("reopening rebuilt index", err)
	}
	s.idx = reopened

	s.logger.Info("search index rebuilt", zap.Int("documents", len(docs)))
	return nil
}

func (s *Index) run(ctx context.Context, q query.Query, pageSize, pageNumber int) ([]ports.Document, error) {
	req := bleve.NewSearchRequestOptions(q, pageSize, (pageNumber-1)*pageSize, false)
	req.Fields = []string{"*"}

	s.mu.RLock()
	result, err := s.idx.SearchInContext(ctx, req)
	s.mu.RUnlock()
	if err != nil {
		return nil, pkgerrors.NewUnavailable("search query", err)
	}

	out := make([]ports.Document, 0, len(result.Hits))
	for _, hit := range result.Hits {
		out = append(out, documentFromFields(hit.ID, hit.Fields))
	}
	return out, nil
}

func validatePage(pageSize, pageNumber int) error {
	if pageSize < 1 || pageNumber < 1 {
		return pkgerrors.NewInvalid("pageSize and pageNumber must be positive")
	}
	return nil
}

// documentFromFields rebuilds a document from stored hit fields. Bleve
// returns single-element arrays as scalars, so tags need both shapes
// handled.
func documentFromFields(id string, fields map[string]interface{}) ports.Document {
	doc := ports.Document{ID: id}
	doc.Type, _ = fields["type"].(string)
	doc.Name, _ = fields["name"].(string)
	doc.Namespace, _ = fields["namespace"].(string)
	doc.Version, _ = fields["version"].(string)
	doc.Description, _ = fields["description"].(string)
	doc.Active, _ = fields["active"].(bool)

	switch tags := fields["tags"].(type) {
	case string:
		doc.Tags = []string{tags}
	case []interface{}:
		for _, t := range tags {
			if s, ok := t.(string); ok {
				doc.Tags = append(doc.Tags, s)
			}
		}
	}

	if s, ok := fields["createdAt"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			doc.CreatedAt = ts
		}
	}
	if s, ok := fields["updatedAt"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			doc.UpdatedAt = ts
		}
	}
	return doc
}

var _ ports.SearchIndex = (*Index)(nil)
