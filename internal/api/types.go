package api

import (
	"errors"
	"fmt"

	"github.com/ahrav/go-rankfuse/internal/application"
	"github.com/ahrav/go-rankfuse/internal/domain"
)

// ErrNoRetrievers is returned for a request without any retriever lists.
var ErrNoRetrievers = errors.New("at least one retriever is required")

// RetrieverInput is one retriever's ranked output.
type RetrieverInput struct {
	Name    string                `json:"name"`
	Results []domain.Item[string] `json:"results"`
}

// Input is the wire format for ranked lists shared by the HTTP API and the
// CLI:
//
//	{"retrievers":[{"name":"bm25","results":[{"id":"d1","score":12.5}]}]}
type Input struct {
	QueryID    string           `json:"query_id,omitempty"`
	Retrievers []RetrieverInput `json:"retrievers"`
}

// Query converts the input into an application query. Retriever names are
// kept only when every retriever has one.
func (in Input) Query() (application.Query[string], error) {
	if len(in.Retrievers) == 0 {
		return application.Query[string]{}, ErrNoRetrievers
	}

	q := application.Query[string]{
		ID:    in.QueryID,
		Lists: make([]domain.RankedList[string], len(in.Retrievers)),
	}
	names := make([]string, len(in.Retrievers))
	named := true
	seen := make(map[string]struct{}, len(in.Retrievers))
	for i, r := range in.Retrievers {
		q.Lists[i] = domain.RankedList[string](r.Results)
		names[i] = r.Name
		if r.Name == "" {
			named = false
			continue
		}
		if _, dup := seen[r.Name]; dup {
			return application.Query[string]{}, fmt.Errorf("duplicate retriever name %q", r.Name)
		}
		seen[r.Name] = struct{}{}
	}
	if named {
		q.Retrievers = names
	}
	return q, nil
}

// FuseRequest is the body of POST /v1/fuse.
// Pipeline selects a preloaded pipeline by name. Otherwise Algorithm with
// optional Parameters builds one on the fly, and with neither set the
// server's default pipeline runs.
type FuseRequest struct {
	Input

	Pipeline      string         `json:"pipeline,omitempty"`
	Algorithm     string         `json:"algorithm,omitempty"`
	Normalization string         `json:"normalization,omitempty"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	TopK          int            `json:"top_k,omitempty"`
	Explain       bool           `json:"explain,omitempty"`
	Validate      bool           `json:"validate,omitempty"`
}

// FuseResponse is the body returned by POST /v1/fuse.
type FuseResponse struct {
	RequestID string `json:"request_id"`
	*application.Outcome[string]
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
}
