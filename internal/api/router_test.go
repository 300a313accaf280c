package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-rankfuse/infrastructure/middleware"
	"github.com/ahrav/go-rankfuse/internal/application"
	"github.com/ahrav/go-rankfuse/internal/domain"
)

const hybridYAML = `
version: "1.0.0"
metadata:
  name: hybrid
fusion:
  algorithm: rrf
retrievers:
  - name: bm25
  - name: dense
explain:
  enabled: true
`

func newTestServer(t *testing.T) (*httptest.Server, *prometheus.Registry) {
	t.Helper()

	reg := prometheus.NewRegistry()
	metrics := middleware.NewPrometheusMetrics(middleware.WithRegisterer(reg))

	registry := application.NewDefaultFuserRegistry[string]()
	loader, err := application.NewPipelineLoader[string](registry,
		application.WithMetricsCollector[string](metrics))
	require.NoError(t, err)

	hybrid, err := loader.LoadFromBytes(context.Background(), []byte(hybridYAML))
	require.NoError(t, err)

	mux, err := NewRouter(Config{
		Loader:    loader,
		Registry:  registry,
		Pipelines: map[string]*application.Pipeline[string]{"hybrid": hybrid},
		Gatherer:  reg,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, reg
}

func twoLists() Input {
	return Input{
		QueryID: "q1",
		Retrievers: []RetrieverInput{
			{Name: "bm25", Results: []domain.Item[string]{{ID: "d1", Score: 12}, {ID: "d2", Score: 9}}},
			{Name: "dense", Results: []domain.Item[string]{{ID: "d2", Score: 0.9}, {ID: "d3", Score: 0.7}}},
		},
	}
}

func postFuse(t *testing.T, srv *httptest.Server, body any) (*http.Response, []byte) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/v1/fuse", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestNewRouter_RequiresLoader(t *testing.T) {
	_, err := NewRouter(Config{})
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, err = uuid.Parse(resp.Header.Get(requestIDHeader))
	assert.NoError(t, err, "generated request id should be a uuid")
}

func TestRequestIDPropagated(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "req-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "req-123", resp.Header.Get(requestIDHeader))
}

func TestAlgorithms(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/algorithms")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Algorithms []string `json:"algorithms"`
		Pipelines  []string `json:"pipelines"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Algorithms, len(domain.Algorithms()))
	assert.Contains(t, body.Algorithms, "rrf")
	assert.Equal(t, []string{"hybrid"}, body.Pipelines)
}

func TestFuse_AdHocAlgorithm(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := postFuse(t, srv, FuseRequest{Input: twoLists(), Algorithm: "RRF"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out struct {
		RequestID string `json:"request_id"`
		QueryID   string `json:"query_id"`
		Algorithm string `json:"algorithm"`
		Results   []domain.FusedResult[string]
		Explained []json.RawMessage `json:"explained"`
	}
	require.NoError(t, json.Unmarshal(body, &out))

	assert.NotEmpty(t, out.RequestID)
	assert.Equal(t, "q1", out.QueryID)
	assert.Equal(t, "rrf", out.Algorithm)
	require.Len(t, out.Results, 3)
	assert.Equal(t, "d2", out.Results[0].ID)
	assert.Equal(t, "d1", out.Results[1].ID)
	assert.Equal(t, "d3", out.Results[2].ID)
	assert.Empty(t, out.Explained)
}

func TestFuse_TopKAndParameters(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := postFuse(t, srv, FuseRequest{
		Input:      twoLists(),
		Algorithm:  "rrf",
		Parameters: map[string]any{"k": 1},
		TopK:       1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out FuseResponse
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Results, 1)
	assert.Equal(t, "d2", out.Results[0].ID)
	assert.InDelta(t, 1.0/3+1.0/2, out.Results[0].Score, 1e-12)
}

func TestFuse_NamedPipelineExplains(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := postFuse(t, srv, FuseRequest{Input: twoLists(), Pipeline: "hybrid"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out FuseResponse
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Explained, 3)
	assert.Equal(t, "hybrid", out.Pipeline)
	require.NotNil(t, out.Consensus)
	assert.Equal(t, []string{"d2"}, out.Consensus.HighConsensus)

	top := out.Explained[0].Explanation
	require.Len(t, top.Sources, 2)
	assert.Equal(t, "bm25", top.Sources[0].RetrieverID)
	assert.Equal(t, "dense", top.Sources[1].RetrieverID)
}

func TestFuse_NonFiniteScoreEncodesAsNull(t *testing.T) {
	srv, _ := newTestServer(t)

	huge := []domain.Item[string]{{ID: "d1", Score: 1e308}}
	resp, body := postFuse(t, srv, FuseRequest{
		Input: Input{Retrievers: []RetrieverInput{
			{Name: "a", Results: huge},
			{Name: "b", Results: huge},
		}},
		Algorithm:     "combsum",
		Normalization: "none",
		Explain:       true,
		Validate:      true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var raw struct {
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(body, &raw))
	require.Len(t, raw.Results, 1)
	assert.Nil(t, raw.Results[0]["score"], "overflowed score should encode as null")

	var out FuseResponse
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Explained, 1)
	require.Len(t, out.Explained[0].Explanation.Sources, 2)
	require.NotNil(t, out.Validation)
	require.Len(t, out.Validation.Errors, 1)
	assert.Contains(t, out.Validation.Errors[0], "Non-finite score")
}

func TestFuse_Errors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "malformed json",
			body:       `{"retrievers":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request body",
		},
		{
			name:       "unknown field",
			body:       `{"algorithm":"rrf","bogus":1,"retrievers":[{"results":[]}]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "bogus",
		},
		{
			name:       "no retrievers",
			body:       `{"algorithm":"rrf"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  ErrNoRetrievers.Error(),
		},
		{
			name:       "duplicate retriever names",
			body:       `{"algorithm":"rrf","retrievers":[{"name":"a","results":[]},{"name":"a","results":[]}]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "duplicate retriever name",
		},
		{
			name:       "unknown pipeline",
			body:       `{"pipeline":"missing","retrievers":[{"results":[]}]}`,
			wantStatus: http.StatusNotFound,
			wantError:  "unknown pipeline",
		},
		{
			name:       "misspelled algorithm",
			body:       `{"algorithm":"rfr","retrievers":[{"results":[]}]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "validation failed",
		},
		{
			name:       "invalid parameter",
			body:       `{"algorithm":"rrf","parameters":{"k":0},"retrievers":[{"results":[]}]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  domain.ErrInvalidK.Error(),
		},
		{
			name: "weight count mismatch at fusion time",
			body: `{"algorithm":"weighted","parameters":{"weights":[1]},` +
				`"retrievers":[{"results":[{"id":"a","score":1}]},{"results":[{"id":"b","score":1}]}]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  domain.ErrWeightCountMismatch.Error(),
		},
		{
			name:       "no pipeline selected",
			body:       `{"retrievers":[{"results":[]}]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "must name a pipeline or an algorithm",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/v1/fuse", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Contains(t, body.Error, tt.wantError)
			assert.Equal(t, resp.Header.Get(requestIDHeader), body.RequestID)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := postFuse(t, srv, FuseRequest{Input: twoLists(), Algorithm: "borda"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	metricsResp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(metricsResp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
	assert.Contains(t, buf.String(), middleware.MetricFusionRequests)
}

func TestAdHocConfig(t *testing.T) {
	config, err := AdHocConfig("weighted", "min_max", map[string]any{"weights": []float64{1, 2}}, 5, true, false)
	require.NoError(t, err)

	assert.Equal(t, "adhoc-weighted", config.Metadata.Name)
	assert.Equal(t, 5, config.Fusion.TopK)
	assert.True(t, config.Explain.Enabled)
	assert.False(t, config.Validation.Enabled)

	var params map[string]any
	require.NoError(t, config.Fusion.Parameters.Decode(&params))
	assert.Len(t, params["weights"], 2)
}
