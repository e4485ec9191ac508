package bleve

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"catalog/application/ports"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex("", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func doc(id, resourceType, name, namespace, description string, tags ...string) ports.Document {
	now := time.Now().UTC()
	return ports.Document{
		ID:          id,
		Type:        resourceType,
		Name:        name,
		Namespace:   namespace,
		Version:     "1.0.0",
		Description: description,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
		Active:      true,
	}
}

func ids(docs []ports.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}

func TestSearchRanksNameAboveDescriptionAboveTags(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.BulkIndex(ctx, []ports.Document{
		doc("by-tag", "Service", "orders", "prod", "handles orders", "payments"),
		doc("by-description", "Service", "checkout", "prod", "payments gateway frontend"),
		doc("by-name", "Service", "payments", "prod", "core money movement"),
	}))

	results, err := idx.Search(ctx, "payments", 10, 1)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "by-name", results[0].ID)
	assert.Equal(t, "by-description", results[1].ID)
	assert.Equal(t, "by-tag", results[2].ID)
}

func TestSearchEmptyQueryReturnsNothing(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, doc("a", "Service", "payments", "prod", "")))

	results, err := idx.Search(ctx, "", 10, 1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchPaging(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.BulkIndex(ctx, []ports.Document{
		doc("a", "Service", "billing-api", "prod", ""),
		doc("b", "Service", "billing-worker", "prod", ""),
		doc("c", "Service", "billing-cron", "prod", ""),
	}))

	page1, err := idx.Search(ctx, "billing", 2, 1)
	require.NoError(t, err)
	page2, err := idx.Search(ctx, "billing", 2, 2)
	require.NoError(t, err)

	assert.Len(t, page1, 2)
	assert.Len(t, page2, 1)
	assert.NotContains(t, ids(page1), page2[0].ID)

	_, err = idx.Search(ctx, "billing", 0, 1)
	assert.Error(t, err)
}

func TestAutocompletePrefixOutranksFuzzy(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.BulkIndex(ctx, []ports.Document{
		doc("fuzzy-hit", "Service", "payts", "prod", ""),
		doc("prefix-hit", "Service", "payments", "prod", ""),
	}))

	results, err := idx.Autocomplete(ctx, "pay", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "prefix-hit", results[0].ID)
}

func TestSearchByTypeAndNamespace(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.BulkIndex(ctx, []ports.Document{
		doc("s1", "Service", "payments", "prod", ""),
		doc("d1", "Database", "payments-db", "prod", ""),
		doc("s2", "Service", "checkout", "dev", ""),
	}))

	services, err := idx.SearchByType(ctx, "Service", 10, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids(services))

	prod, err := idx.SearchByNamespace(ctx, "prod", 10, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "d1"}, ids(prod))
}

func TestSearchByTagsMatchAllVersusAny(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.BulkIndex(ctx, []ports.Document{
		doc("both", "Service", "payments", "prod", "", "critical", "pci"),
		doc("one", "Service", "checkout", "prod", "", "critical"),
		doc("neither", "Service", "docs", "prod", "", "internal"),
	}))

	any, err := idx.SearchByTags(ctx, []string{"critical", "pci"}, false, 10, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"both", "one"}, ids(any))

	all, err := idx.SearchByTags(ctx, []string{"critical", "pci"}, true, 10, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"both"}, ids(all))
}

func TestGetFacets(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.BulkIndex(ctx, []ports.Document{
		doc("s1", "Service", "a", "prod", "", "critical"),
		doc("s2", "Service", "b", "prod", ""),
		doc("s3", "Service", "c", "prod", ""),
		doc("s4", "Service", "d", "dev", ""),
		doc("s5", "Service", "e", "dev", "", "critical"),
	}))

	facets, err := idx.GetFacets(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, 5, facets["type:Service"])
	assert.Equal(t, 3, facets["namespace:prod"])
	assert.Equal(t, 2, facets["namespace:dev"])
	assert.Equal(t, 2, facets["tag:critical"])
}

func TestDeleteRemovesDocument(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, doc("a", "Service", "payments", "prod", "")))
	require.NoError(t, idx.Delete(ctx, "a"))

	results, err := idx.Search(ctx, "payments", 10, 1)
	require.NoError(t, err)
	assert.Empty(t, results)

	// deleting again is a no-op
	assert.NoError(t, idx.Delete(ctx, "a"))
}

func TestReindexAllReplacesContents(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, doc("stale", "Service", "payments", "prod", "")))

	require.NoError(t, idx.ReindexAll(ctx, []ports.Document{
		doc("fresh", "Service", "inventory", "prod", ""),
	}))

	stale, err := idx.Search(ctx, "payments", 10, 1)
	require.NoError(t, err)
	assert.Empty(t, stale)

	fresh, err := idx.Search(ctx, "inventory", 10, 1)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "fresh", fresh[0].ID)
}

func TestReindexAllPersistsForFileBackedIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.bleve")
	ctx := context.Background()

	idx, err := NewIndex(path, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, idx.Index(ctx, doc("stale", "Service", "payments", "prod", "")))
	require.NoError(t, idx.ReindexAll(ctx, []ports.Document{
		doc("fresh", "Service", "inventory", "prod", ""),
	}))

	// the swapped-in index keeps serving
	fresh, err := idx.Search(ctx, "inventory", 10, 1)
	require.NoError(t, err)
	require.Len(t, fresh, 1)

	// the rebuild survives a close and reopen from disk
	require.NoError(t, idx.Close())

	reopened, err := NewIndex(path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	stale, err := reopened.Search(ctx, "payments", 10, 1)
	require.NoError(t, err)
	assert.Empty(t, stale)

	fresh, err = reopened.Search(ctx, "inventory", 10, 1)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "fresh", fresh[0].ID)
}

func TestDocumentRoundTripThroughIndex(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	original := doc("rt", "Dataset", "clickstream", "analytics", "raw click events", "pii", "hourly")
	require.NoError(t, idx.Index(ctx, original))

	results, err := idx.Search(ctx, "clickstream", 10, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0]
	assert.Equal(t, original.ID, got.ID)
	assert.Equal(t, original.Type, got.Type)
	assert.Equal(t, original.Name, got.Name)
	assert.Equal(t, original.Namespace, got.Namespace)
	assert.Equal(t, original.Description, got.Description)
	assert.ElementsMatch(t, original.Tags, got.Tags)
	assert.True(t, got.Active)
}
