// Package search keeps an in-memory full-text index over session titles,
// locations and cities.
package search

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/example/session-coordinator/internal/session"
)

// DefaultLimit caps the number of ids a single Match returns.
const DefaultLimit = 200

// Index is safe for concurrent use.
type Index struct {
	mu    sync.RWMutex
	index bleve.Index
}

// NewIndex creates an empty memory-only index.
func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("search: create index: %w", err)
	}
	return &Index{index: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	for _, field := range []string{"title", "location", "city", "notes"} {
		text := bleve.NewTextFieldMapping()
		text.Analyzer = standard.Name
		text.Store = false
		text.Index = true
		doc.AddFieldMappingsAt(field, text)
	}

	skill := bleve.NewTextFieldMapping()
	skill.Analyzer = keyword.Name
	skill.Store = false
	skill.Index = true
	doc.AddFieldMappingsAt("skill", skill)

	indexMapping.DefaultMapping = doc
	return indexMapping
}

func document(s session.Session) map[string]any {
	return map[string]any{
		"title":    s.Title,
		"location": s.Location,
		"city":     s.City,
		"notes":    s.Notes,
		"skill":    string(s.Skill),
	}
}

// Rebuild replaces the indexed content with sessions.
func (i *Index) Rebuild(sessions []session.Session) error {
	fresh, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("search: create index: %w", err)
	}
	batch := fresh.NewBatch()
	for _, s := range sessions {
		if err := batch.Index(s.ID, document(s)); err != nil {
			_ = fresh.Close()
			return fmt.Errorf("search: index %s: %w", s.ID, err)
		}
	}
	if err := fresh.Batch(batch); err != nil {
		_ = fresh.Close()
		return fmt.Errorf("search: apply batch: %w", err)
	}

	i.mu.Lock()
	old := i.index
	i.index = fresh
	i.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Upsert indexes or re-indexes s.
func (i *Index) Upsert(s session.Session) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if err := i.index.Index(s.ID, document(s)); err != nil {
		return fmt.Errorf("search: index %s: %w", s.ID, err)
	}
	return nil
}

// Remove drops id from the index.
func (i *Index) Remove(id string) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if err := i.index.Delete(id); err != nil {
		return fmt.Errorf("search: delete %s: %w", id, err)
	}
	return nil
}

// Match returns the ids of sessions whose text matches every term of text.
// An empty text matches nothing.
func (i *Index) Match(text string, limit int) (map[string]struct{}, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return map[string]struct{}{}, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	conjuncts := make([]query.Query, 0, 4)
	for _, term := range strings.Fields(text) {
		disjunction := bleve.NewDisjunctionQuery()
		for _, field := range []string{"title", "location", "city", "notes"} {
			match := bleve.NewMatchQuery(term)
			match.SetField(field)
			match.SetFuzziness(fuzzinessFor(term))
			disjunction.AddQuery(match)
			prefix := bleve.NewPrefixQuery(strings.ToLower(term))
			prefix.SetField(field)
			disjunction.AddQuery(prefix)
		}
		conjuncts = append(conjuncts, disjunction)
	}

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(conjuncts...))
	req.Size = limit

	i.mu.RLock()
	res, err := i.index.Search(req)
	i.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("search: query %q: %w", text, err)
	}

	out := make(map[string]struct{}, len(res.Hits))
	for _, hit := range res.Hits {
		out[hit.ID] = struct{}{}
	}
	return out, nil
}

// Count returns the number of indexed documents.
func (i *Index) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.DocCount()
}

// Close releases the index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.index == nil {
		return nil
	}
	err := i.index.Close()
	i.index = nil
	return err
}

func fuzzinessFor(term string) int {
	if len(term) >= 6 {
		return 1
	}
	return 0
}
