package catalog

import (
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/pkg/errors"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/logger"
)

// Catalog is an immutable set of skills with an in-memory search index.
// It is safe for concurrent use.
type Catalog struct {
	skills map[string]*Skill
	index  bleve.Index
	mu     sync.RWMutex
}

// Load discovers skills under dirs and indexes them.
func Load(dirs ...string) (*Catalog, error) {
	skills, err := Discover(dirs...)
	if err != nil {
		return nil, err
	}
	return New(skills)
}

// New indexes the given skills.
func New(skills map[string]*Skill) (*Catalog, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create bleve index")
	}

	batch := index.NewBatch()
	for name, s := range skills {
		doc := map[string]any{
			"name":        name,
			"keywords":    strings.ReplaceAll(name, "-", " "),
			"description": s.Description,
			"tags":        strings.Join(s.Tags, " "),
		}
		if err := batch.Index(name, doc); err != nil {
			logger.L.WithError(err).WithField("skill", name).Warn("failed to index skill")
		}
	}
	if err := index.Batch(batch); err != nil {
		index.Close()
		return nil, errors.Wrap(err, "failed to batch index skills")
	}

	return &Catalog{skills: skills, index: index}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	skillMapping := bleve.NewDocumentMapping()

	nameField := bleve.NewKeywordFieldMapping()
	nameField.IncludeInAll = false
	skillMapping.AddFieldMappingsAt("name", nameField)

	skillMapping.AddFieldMappingsAt("keywords", bleve.NewTextFieldMapping())
	skillMapping.AddFieldMappingsAt("description", bleve.NewTextFieldMapping())
	skillMapping.AddFieldMappingsAt("tags", bleve.NewTextFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", skillMapping)
	return indexMapping
}

// Has reports whether name is a known skill.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.skills[name]
	return ok
}

// Get returns the skill called name.
func (c *Catalog) Get(name string) (*Skill, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.skills[name]
	return s, ok
}

// List returns every skill sorted by name.
func (c *Catalog) List() []*Skill {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Skill, 0, len(c.skills))
	for _, s := range c.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of skills.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.skills)
}

// Search runs a BM25 match over skill names, descriptions and tags.
func (c *Catalog) Search(text string, limit int) ([]SearchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	req := bleve.NewSearchRequestOptions(buildQuery(text), limit, 0, false)
	results, err := c.index.Search(req)
	if err != nil {
		return nil, errors.Wrap(err, "bleve search failed")
	}

	out := make([]SearchResult, 0, len(results.Hits))
	for _, hit := range results.Hits {
		s, ok := c.skills[hit.ID]
		if !ok {
			continue
		}
		out = append(out, SearchResult{
			Name:        s.Name,
			Description: s.Description,
			Score:       hit.Score,
		})
	}
	return out, nil
}

// buildQuery matches the free text against the analyzed fields and boosts
// an exact name hit.
func buildQuery(text string) query.Query {
	exact := bleve.NewTermQuery(strings.TrimSpace(text))
	exact.SetField("name")
	exact.SetBoost(5)

	var parts []query.Query
	parts = append(parts, exact)
	for _, field := range []string{"keywords", "description", "tags"} {
		q := bleve.NewMatchQuery(text)
		q.SetField(field)
		parts = append(parts, q)
	}
	return bleve.NewDisjunctionQuery(parts...)
}

// Close releases the index.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.Close()
}
