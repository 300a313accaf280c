package testutils

import (
	"cmp"
	"fmt"
	"math/rand"
	"slices"
	"time"

	"github.com/ahrav/go-rankfuse/internal/domain"
)

// GeneratorConfig shapes a synthetic dataset. Zero fields take the
// Default* constants.
type GeneratorConfig struct {
	// Queries is the number of queries to generate.
	Queries int
	// Retrievers is the number of simulated retrievers.
	Retrievers int
	// CorpusSize is the number of candidate documents per query.
	CorpusSize int
	// ListLength is how many documents each retriever returns.
	ListLength int
	// Relevant is the number of relevant documents per query.
	Relevant int
}

func (c GeneratorConfig) withDefaults() GeneratorConfig {
	if c.Queries <= 0 {
		c.Queries = DefaultQueryCount
	}
	if c.Retrievers <= 0 {
		c.Retrievers = DefaultRetrieverCount
	}
	if c.CorpusSize <= 0 {
		c.CorpusSize = DefaultCorpusSize
	}
	if c.ListLength <= 0 {
		c.ListLength = DefaultListLength
	}
	if c.Relevant <= 0 {
		c.Relevant = DefaultRelevantCount
	}
	c.ListLength = min(c.ListLength, c.CorpusSize)
	c.Relevant = min(c.Relevant, c.CorpusSize)
	return c
}

// Validate rejects shapes the generator cannot honor.
func (c GeneratorConfig) Validate() error {
	if c.Retrievers > MaxRetrievers {
		return fmt.Errorf("at most %d retrievers are supported, got %d", MaxRetrievers, c.Retrievers)
	}
	if c.Queries < 0 || c.Retrievers < 0 || c.CorpusSize < 0 || c.ListLength < 0 || c.Relevant < 0 {
		return fmt.Errorf("generator sizes must not be negative")
	}
	return nil
}

// retriever simulates one retrieval system: a quality in [0,1] controls how
// much of the score reflects relevance rather than noise.
type retriever struct {
	name    string
	quality float64
	scale   float64
}

// GenerateDataset creates a synthetic dataset. The seed controls
// randomization; a fixed value reproduces the same dataset.
// Each retriever scores documents as a mix of true relevance and noise on
// its own scale, so the retrievers agree on some relevant documents and
// disagree on others.
func GenerateDataset(cfg GeneratorConfig, seed int64) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewSource(seed))

	retrievers := make([]retriever, cfg.Retrievers)
	names := make([]string, cfg.Retrievers)
	for i := range retrievers {
		retrievers[i] = newRetriever(rng, i)
		names[i] = retrievers[i].name
	}

	dataset := &Dataset{
		Metadata: DatasetMetadata{
			Name:        "synthetic-hybrid-retrieval",
			Version:     "1.0.0",
			Source:      "generated",
			Description: "Synthetic runs with planted relevance for fusion evaluation.",
			Seed:        seed,
			Retrievers:  names,
			Size:        cfg.Queries,
		},
		Queries: make([]DatasetQuery, 0, cfg.Queries),
	}

	for i := range cfg.Queries {
		dataset.Queries = append(dataset.Queries, generateQuery(rng, cfg, i, retrievers))
	}
	return dataset, nil
}

// GenerateDatasetDefault creates a dataset with default shape and a
// time-based seed.
func GenerateDatasetDefault() (*Dataset, error) {
	return GenerateDataset(GeneratorConfig{}, time.Now().UnixNano())
}

func newRetriever(rng *rand.Rand, index int) retriever {
	quality := 0.3 + 0.6*rng.Float64()
	switch index {
	case 0:
		return retriever{name: "bm25", quality: quality, scale: scaleBM25}
	case 1:
		return retriever{name: "dense", quality: quality, scale: scaleDense}
	case 2:
		return retriever{name: "splade", quality: quality, scale: scaleOther}
	default:
		return retriever{name: fmt.Sprintf("retriever_%d", index), quality: quality, scale: scaleOther}
	}
}

func generateQuery(rng *rand.Rand, cfg GeneratorConfig, index int, retrievers []retriever) DatasetQuery {
	docs := make([]string, cfg.CorpusSize)
	for j := range docs {
		docs[j] = fmt.Sprintf("q%d_d%d", index, j)
	}

	relevant := make(map[string]bool, cfg.Relevant)
	for _, j := range rng.Perm(cfg.CorpusSize)[:cfg.Relevant] {
		relevant[docs[j]] = true
	}

	q := DatasetQuery{
		ID:   fmt.Sprintf("q%d", index),
		Runs: make([]Run, len(retrievers)),
	}
	for _, d := range docs {
		if relevant[d] {
			q.Relevant = append(q.Relevant, d)
		}
	}

	for r, ret := range retrievers {
		scored := make(domain.RankedList[string], len(docs))
		for j, d := range docs {
			signal := 0.0
			if relevant[d] {
				signal = 1.0
			}
			s := ret.quality*signal + (1-ret.quality)*rng.Float64()
			scored[j] = domain.Item[string]{ID: d, Score: s * ret.scale}
		}
		slices.SortStableFunc(scored, func(a, b domain.Item[string]) int {
			return cmp.Compare(b.Score, a.Score)
		})
		q.Runs[r] = Run{Retriever: ret.name, Results: scored[:cfg.ListLength]}
	}
	return q
}

// Lists builds ranked lists from id slices, one list per slice, with
// descending synthetic scores. It keeps test fixtures short:
//
//	lists := testutils.Lists([]string{"a", "b"}, []string{"b", "c"})
func Lists(ids ...[]string) []domain.RankedList[string] {
	lists := make([]domain.RankedList[string], len(ids))
	for i, list := range ids {
		lists[i] = domain.NewRankedList(list...)
	}
	return lists
}
