package retrieval

import (
	"context"

	"github.com/aaoifi-enhancement/standardsengine/pipecore/envelope"
)

// CorpusSearch adapts a Store to the knowledge mediator's search contract,
// so knowledge requests can be answered from the local corpus when no web
// search client is configured.
type CorpusSearch struct {
	store *Store
}

// NewCorpusSearch wraps a store as a search provider.
func NewCorpusSearch(store *Store) *CorpusSearch {
	return &CorpusSearch{store: store}
}

// Search returns corpus chunks matching the query as source descriptors.
func (c *CorpusSearch) Search(ctx context.Context, query string, limit int) ([]envelope.SourceRef, error) {
	passages, err := c.store.Retrieve(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	sources := make([]envelope.SourceRef, 0, len(passages))
	for _, passage := range passages {
		sources = append(sources, envelope.SourceRef{
			Title:   passage.Source,
			Snippet: passage.Text,
		})
	}
	return sources, nil
}
