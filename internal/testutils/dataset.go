// Package testutils provides synthetic ranked-list datasets and retrieval
// evaluation metrics. It backs the CLI's generate and evaluate commands and
// the fusion test suites.
package testutils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ahrav/go-rankfuse/internal/application"
	"github.com/ahrav/go-rankfuse/internal/domain"
)

// Dataset is a collection of queries, each with the ranked lists several
// retrievers returned and the documents judged relevant.
type Dataset struct {
	// Metadata describes how the dataset was produced.
	Metadata DatasetMetadata `json:"metadata"`

	// Queries holds every query with its runs and judgments.
	Queries []DatasetQuery `json:"queries"`
}

// DatasetMetadata records the provenance of a dataset.
type DatasetMetadata struct {
	// Name identifies the dataset.
	Name string `json:"name"`

	// Version tracks dataset revisions.
	Version string `json:"version"`

	// Source indicates where the dataset originated.
	Source string `json:"source"`

	// Description provides details about the dataset contents.
	Description string `json:"description,omitempty"`

	// Seed reproduces a generated dataset. Zero for external data.
	Seed int64 `json:"seed,omitempty"`

	// Retrievers names the runs every query carries, in list order.
	Retrievers []string `json:"retrievers"`

	// Size is the total number of queries.
	Size int `json:"query_count"`
}

// Run is one retriever's ranked output for a query.
type Run struct {
	Retriever string                    `json:"retriever"`
	Results   domain.RankedList[string] `json:"results"`
}

// DatasetQuery is a single query in a dataset.
type DatasetQuery struct {
	// ID uniquely identifies the query in the dataset.
	ID string `json:"id"`

	// Runs holds one ranked list per retriever, in Metadata.Retrievers order.
	Runs []Run `json:"runs"`

	// Relevant lists the documents judged relevant (binary qrels).
	Relevant []string `json:"relevant"`
}

// Lists returns the query's ranked lists in retriever order.
func (q DatasetQuery) Lists() []domain.RankedList[string] {
	lists := make([]domain.RankedList[string], len(q.Runs))
	for i, r := range q.Runs {
		lists[i] = r.Results
	}
	return lists
}

// Query converts the runs into a pipeline query named after the
// retrievers.
func (q DatasetQuery) Query() application.Query[string] {
	names := make([]string, len(q.Runs))
	for i, r := range q.Runs {
		names[i] = r.Retriever
	}
	return application.Query[string]{ID: q.ID, Retrievers: names, Lists: q.Lists()}
}

// RelevantSet returns the relevant documents as a set.
func (q DatasetQuery) RelevantSet() map[string]struct{} {
	set := make(map[string]struct{}, len(q.Relevant))
	for _, id := range q.Relevant {
		set[id] = struct{}{}
	}
	return set
}

// LoadDataset loads a dataset from a JSON file and validates it.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}

	var dataset Dataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, fmt.Errorf("failed to parse dataset JSON: %w", err)
	}

	if err := ValidateDataset(&dataset); err != nil {
		return nil, fmt.Errorf("dataset validation failed: %w", err)
	}

	return &dataset, nil
}

// ValidateDataset ensures a dataset is consistent enough to evaluate: every
// query carries one run per declared retriever and at least one judgment.
func ValidateDataset(dataset *Dataset) error {
	if dataset == nil {
		return fmt.Errorf("dataset is nil")
	}

	if err := validateMetadata(&dataset.Metadata); err != nil {
		return fmt.Errorf("metadata validation failed: %w", err)
	}

	if len(dataset.Queries) == 0 {
		return fmt.Errorf("dataset contains no queries")
	}

	seenIDs := make(map[string]bool, len(dataset.Queries))
	for i, q := range dataset.Queries {
		if err := validateQuery(&q, dataset.Metadata.Retrievers); err != nil {
			return fmt.Errorf("query %d validation failed: %w", i, err)
		}

		if seenIDs[q.ID] {
			return fmt.Errorf("duplicate query ID: %s", q.ID)
		}
		seenIDs[q.ID] = true
	}

	if dataset.Metadata.Size != len(dataset.Queries) {
		return fmt.Errorf("metadata size (%d) doesn't match actual query count (%d)",
			dataset.Metadata.Size, len(dataset.Queries))
	}

	return nil
}

func validateMetadata(meta *DatasetMetadata) error {
	if meta.Name == "" {
		return fmt.Errorf("dataset name is required")
	}
	if meta.Version == "" {
		return fmt.Errorf("dataset version is required")
	}
	if meta.Source == "" {
		return fmt.Errorf("dataset source is required")
	}
	if len(meta.Retrievers) == 0 {
		return fmt.Errorf("at least one retriever is required")
	}
	if len(meta.Retrievers) > MaxRetrievers {
		return fmt.Errorf("at most %d retrievers are supported, found %d", MaxRetrievers, len(meta.Retrievers))
	}

	seen := make(map[string]bool, len(meta.Retrievers))
	for _, name := range meta.Retrievers {
		if name == "" {
			return fmt.Errorf("retriever name is required")
		}
		if seen[name] {
			return fmt.Errorf("duplicate retriever name: %s", name)
		}
		seen[name] = true
	}
	return nil
}

func validateQuery(q *DatasetQuery, retrievers []string) error {
	if q.ID == "" {
		return fmt.Errorf("query ID is required")
	}
	if len(q.Runs) != len(retrievers) {
		return fmt.Errorf("query %s has %d runs for %d retrievers", q.ID, len(q.Runs), len(retrievers))
	}
	for i, run := range q.Runs {
		if run.Retriever != retrievers[i] {
			return fmt.Errorf("query %s run %d: expected retriever %s, found %s",
				q.ID, i, retrievers[i], run.Retriever)
		}
	}
	if len(q.Relevant) == 0 {
		return fmt.Errorf("query %s has no relevant documents", q.ID)
	}
	return nil
}

// DatasetStatistics provides summary statistics about a dataset.
type DatasetStatistics struct {
	// TotalQueries is the number of queries in the dataset.
	TotalQueries int

	// AvgListLength is the mean length of a retriever run.
	AvgListLength float64

	// AvgRelevant is the mean number of relevant documents per query.
	AvgRelevant float64

	// RecallByRetriever maps each retriever to the fraction of relevant
	// documents its runs contain at any depth.
	RecallByRetriever map[string]float64
}

// ComputeDatasetStatistics analyzes a dataset and returns summary statistics.
func ComputeDatasetStatistics(dataset *Dataset) *DatasetStatistics {
	stats := &DatasetStatistics{
		TotalQueries:      len(dataset.Queries),
		RecallByRetriever: make(map[string]float64),
	}
	if stats.TotalQueries == 0 {
		return stats
	}

	var lists, items, relevant int
	found := make(map[string]int)
	for _, q := range dataset.Queries {
		rel := q.RelevantSet()
		relevant += len(rel)
		for _, run := range q.Runs {
			lists++
			items += len(run.Results)
			for _, item := range run.Results {
				if _, ok := rel[item.ID]; ok {
					found[run.Retriever]++
				}
			}
		}
	}

	if lists > 0 {
		stats.AvgListLength = float64(items) / float64(lists)
	}
	stats.AvgRelevant = float64(relevant) / float64(stats.TotalQueries)
	for _, name := range dataset.Metadata.Retrievers {
		if relevant > 0 {
			stats.RecallByRetriever[name] = float64(found[name]) / float64(relevant)
		}
	}

	return stats
}

// SaveDataset writes a dataset to a JSON file, creating parent directories.
func SaveDataset(dataset *Dataset, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write dataset file: %w", err)
	}

	return nil
}
