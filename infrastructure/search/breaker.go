// Package search holds cross-engine search infrastructure; the bleve
// subpackage provides the index itself.
package search

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"catalog/application/ports"
)

// BreakerIndex wraps a search index with a circuit breaker so a degraded
// index sheds load fast instead of queueing callers behind timeouts.
type BreakerIndex struct {
	inner   ports.SearchIndex
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerIndex wraps the index. The breaker opens after five
// consecutive failures and probes again after 30 seconds.
func NewBreakerIndex(inner ports.SearchIndex, logger *zap.Logger) *BreakerIndex {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "search-index",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("search circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &BreakerIndex{inner: inner, breaker: breaker}
}

func (b *BreakerIndex) docs(op func() ([]ports.Document, error)) ([]ports.Document, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) { return op() })
	if err != nil {
		return nil, err
	}
	return result.([]ports.Document), nil
}

func (b *BreakerIndex) exec(op func() error) error {
	_, err := b.breaker.Execute(func() (interface{}, error) { return nil, op() })
	return err
}

func (b *BreakerIndex) Search(ctx context.Context, query string, pageSize, pageNumber int) ([]ports.Document, error) {
	return b.docs(func() ([]ports.Document, error) { return b.inner.Search(ctx, query, pageSize, pageNumber) })
}

func (b *BreakerIndex) Autocomplete(ctx context.Context, prefix string, limit int) ([]ports.Document, error) {
	return b.docs(func() ([]ports.Document, error) { return b.inner.Autocomplete(ctx, prefix, limit) })
}

func (b *BreakerIndex) SearchByType(ctx context.Context, resourceType string, pageSize, pageNumber int) ([]ports.Document, error) {
	return b.docs(func() ([]ports.Document, error) {
		return b.inner.SearchByType(ctx, resourceType, pageSize, pageNumber)
	})
}

func (b *BreakerIndex) SearchByNamespace(ctx context.Context, namespace string, pageSize, pageNumber int) ([]ports.Document, error) {
	return b.docs(func() ([]ports.Document, error) {
		return b.inner.SearchByNamespace(ctx, namespace, pageSize, pageNumber)
	})
}

func (b *BreakerIndex) SearchByTags(ctx context.Context, tags []string, matchAll bool, pageSize, pageNumber int) ([]ports.Document, error) {
	return b.docs(func() ([]ports.Document, error) {
		return b.inner.SearchByTags(ctx, tags, matchAll, pageSize, pageNumber)
	})
}

func (b *BreakerIndex) GetFacets(ctx context.Context, query string) (map[string]int, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) { return b.inner.GetFacets(ctx, query) })
	if err != nil {
		return nil, err
	}
	return result.(map[string]int), nil
}

func (b *BreakerIndex) Index(ctx context.Context, doc ports.Document) error {
	return b.exec(func() error { return b.inner.Index(ctx, doc) })
}

func (b *BreakerIndex) BulkIndex(ctx context.Context, docs []ports.Document) error {
	return b.exec(func() error { return b.inner.BulkIndex(ctx, docs) })
}

func (b *BreakerIndex) Delete(ctx context.Context, id string) error {
	return b.exec(func() error { return b.inner.Delete(ctx, id) })
}

func (b *BreakerIndex) ReindexAll(ctx context.Context, docs []ports.Document) error {
	return b.exec(func() error { return b.inner.ReindexAll(ctx, docs) })
}

var _ ports.SearchIndex = (*BreakerIndex)(nil)
