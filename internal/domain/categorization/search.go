package categorization

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// CategoryDocument is what gets indexed per category: its display name plus
// the keywords that feed it, so a search for "supermarket" surfaces
// groceries even though the category is not named that.
type CategoryDocument struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Keywords string `json:"keywords"`
}

// CategorySearchResult is one ranked hit.
type CategorySearchResult struct {
	Key   string
	Name  string
	Score float64
}

// SearchIndex is an in-memory bleve index over categories, used to offer
// ranked disambiguation lists for free-form user input.
type SearchIndex struct {
	index bleve.Index
}

func buildIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	keyField := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("key", keyField)

	textField := bleve.NewTextFieldMapping()
	docMapping.AddFieldMappingsAt("name", textField)
	docMapping.AddFieldMappingsAt("keywords", textField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// NewSearchIndex builds an in-memory index over the given categories plus
// any custom keywords (merged the same way the keyword engine merges them).
func NewSearchIndex(categories map[string]string, custom map[string][]string) (*SearchIndex, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating category index: %w", err)
	}

	si := &SearchIndex{index: index}
	if err := si.reindex(categories, custom); err != nil {
		index.Close()
		return nil, err
	}
	return si, nil
}

func (si *SearchIndex) reindex(categories map[string]string, custom map[string][]string) error {
	batch := si.index.NewBatch()
	for key, name := range categories {
		keywords := append([]string{}, builtinKeywords[key]...)
		keywords = append(keywords, custom[key]...)

		doc := CategoryDocument{
			Key:      key,
			Name:     name,
			Keywords: strings.Join(keywords, " "),
		}
		if err := batch.Index(key, doc); err != nil {
			return fmt.Errorf("indexing category %q: %w", key, err)
		}
	}
	return si.index.Batch(batch)
}

// Search ranks categories against free-form input. Fuzziness catches typos
// ("groseries"); a disjunction with a match query keeps exact words first.
func (si *SearchIndex) Search(input string, limit int) ([]CategorySearchResult, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	match := bleve.NewMatchQuery(input)
	fuzzy := bleve.NewFuzzyQuery(strings.ToLower(input))
	fuzzy.SetFuzziness(2)
	query := bleve.NewDisjunctionQuery(match, fuzzy)

	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	req.Fields = []string{"name"}
	res, err := si.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searching categories: %w", err)
	}

	out := make([]CategorySearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		name, _ := hit.Fields["name"].(string)
		out = append(out, CategorySearchResult{Key: hit.ID, Name: name, Score: hit.Score})
	}
	return out, nil
}

// DocumentCount reports how many categories are indexed.
func (si *SearchIndex) DocumentCount() (uint64, error) {
	return si.index.DocCount()
}

func (si *SearchIndex) Close() error {
	return si.index.Close()
}
