package fusers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-rankfuse/internal/domain"
	"github.com/ahrav/go-rankfuse/internal/ports"
)

func hybridLists() (domain.RankedList[string], domain.RankedList[string]) {
	bm25 := domain.RankedList[string]{{ID: "d1", Score: 12.5}, {ID: "d2", Score: 11.0}}
	dense := domain.RankedList[string]{{ID: "d2", Score: 0.9}, {ID: "d3", Score: 0.8}}
	return bm25, dense
}

func TestRRFFuser_Fuse(t *testing.T) {
	bm25, dense := hybridLists()

	fuser, err := NewRRFFuser[string]("hybrid", DefaultRRFConfig())
	require.NoError(t, err)

	results, err := fuser.Fuse(context.Background(), bm25, dense)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []string{"d2", "d1", "d3"}, domain.ResultIDs(results))
	assert.InDelta(t, 0.033060, results[0].Score, 1e-6)
	assert.InDelta(t, 0.016667, results[1].Score, 1e-6)
	assert.InDelta(t, 0.016393, results[2].Score, 1e-6)
	for i, r := range results {
		assert.Equal(t, i, r.Rank)
	}
}

func TestRRFFuser_Configuration(t *testing.T) {
	tests := []struct {
		name    string
		fuser   string
		config  RRFConfig
		wantErr error
	}{
		{name: "default config", fuser: "rrf", config: DefaultRRFConfig()},
		{name: "k of one", fuser: "rrf", config: DefaultRRFConfig().WithK(1)},
		{name: "zero k", fuser: "rrf", config: DefaultRRFConfig().WithK(0), wantErr: domain.ErrInvalidK},
		{name: "negative k", fuser: "rrf", config: DefaultRRFConfig().WithK(-5), wantErr: domain.ErrInvalidK},
		{name: "empty name", fuser: "", config: DefaultRRFConfig(), wantErr: domain.ErrEmptyFuserName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fuser, err := NewRRFFuser[string](tt.fuser, tt.config)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, fuser)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, fuser.Validate())
			assert.Equal(t, domain.AlgorithmRRF, fuser.Algorithm())
		})
	}

	t.Run("negative top k fails validation", func(t *testing.T) {
		_, err := NewRRFFuser[string]("rrf", DefaultRRFConfig().WithTopK(-1))
		assert.Error(t, err)
	})
}

func TestRRFWithK(t *testing.T) {
	bm25, dense := hybridLists()

	results, err := RRFWithK(1, bm25, dense)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/2+1.0/1, results[0].Score, 1e-12)

	_, err = RRFWithK(0, bm25, dense)
	assert.ErrorIs(t, err, domain.ErrInvalidK)
}

func TestRRFFuser_DuplicateIDsWithinList(t *testing.T) {
	list := domain.RankedList[string]{{ID: "a", Score: 2}, {ID: "a", Score: 1}, {ID: "b", Score: 0}}

	results := RRF(list)

	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0/60+1.0/61, results[0].Score, 1e-12)
	assert.Equal(t, "b", results[1].ID)
}

func TestRRFFuser_TopK(t *testing.T) {
	bm25, dense := hybridLists()
	fuser, err := NewRRFFuser[string]("rrf", DefaultRRFConfig().WithTopK(2))
	require.NoError(t, err)

	results, err := fuser.Fuse(context.Background(), bm25, dense)
	require.NoError(t, err)

	assert.Equal(t, []string{"d2", "d1"}, domain.ResultIDs(results))
}

func TestRRFFuser_FuseExplained(t *testing.T) {
	bm25, dense := hybridLists()
	fuser, err := NewRRFFuser[string]("rrf", DefaultRRFConfig())
	require.NoError(t, err)

	t.Run("named retrievers", func(t *testing.T) {
		explained, err := fuser.FuseExplained(context.Background(), []string{"bm25", "dense"}, bm25, dense)
		require.NoError(t, err)
		require.Len(t, explained, 3)

		top := explained[0]
		assert.Equal(t, "d2", top.ID)
		assert.Equal(t, domain.AlgorithmRRF, top.Explanation.Method)
		assert.InDelta(t, 1.0, top.Explanation.ConsensusScore, 1e-12)
		require.Len(t, top.Explanation.Sources, 2)

		first := top.Explanation.Sources[0]
		assert.Equal(t, "bm25", first.RetrieverID)
		require.NotNil(t, first.OriginalRank)
		assert.Equal(t, 1, *first.OriginalRank)
		require.NotNil(t, first.OriginalScore)
		assert.Equal(t, 11.0, *first.OriginalScore)
		assert.Nil(t, first.NormalizedScore)
		assert.InDelta(t, 1.0/61, first.Contribution, 1e-12)

		second := top.Explanation.Sources[1]
		assert.Equal(t, "dense", second.RetrieverID)
		assert.InDelta(t, 1.0/60, second.Contribution, 1e-12)

		assert.InDelta(t, 0.5, explained[1].Explanation.ConsensusScore, 1e-12)
	})

	t.Run("default retriever names", func(t *testing.T) {
		explained, err := fuser.FuseExplained(context.Background(), nil, bm25, dense)
		require.NoError(t, err)
		assert.Equal(t, "retriever_0", explained[0].Explanation.Sources[0].RetrieverID)
		assert.Equal(t, "retriever_1", explained[0].Explanation.Sources[1].RetrieverID)
	})

	t.Run("retriever count mismatch", func(t *testing.T) {
		_, err := fuser.FuseExplained(context.Background(), []string{"bm25"}, bm25, dense)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrRetrieverCountMismatch)

		var fusionErr *ports.FusionError
		require.True(t, errors.As(err, &fusionErr))
		assert.Equal(t, "rrf", fusionErr.Fuser)
		assert.Equal(t, "FuseExplained", fusionErr.Operation)
	})
}

func TestRRFFuser_WithParameters(t *testing.T) {
	fuser, err := NewRRFFuser[string]("rrf", DefaultRRFConfig())
	require.NoError(t, err)

	t.Run("valid parameters", func(t *testing.T) {
		var node yaml.Node
		require.NoError(t, yaml.Unmarshal([]byte("k: 20\ntop_k: 5\n"), &node))

		configured, err := fuser.WithParameters(node)
		require.NoError(t, err)
		assert.Equal(t, "rrf", configured.Name())
		assert.Equal(t, 20, configured.Config().K)
		assert.Equal(t, 5, configured.Config().TopK)
		assert.Equal(t, DefaultRRFConfig(), fuser.Config(), "receiver must keep its configuration")
	})

	t.Run("unknown field", func(t *testing.T) {
		var node yaml.Node
		require.NoError(t, yaml.Unmarshal([]byte("kk: 20\n"), &node))

		configured, err := fuser.WithParameters(node)
		assert.Error(t, err)
		assert.Nil(t, configured)
	})

	t.Run("invalid k", func(t *testing.T) {
		var node yaml.Node
		require.NoError(t, yaml.Unmarshal([]byte("k: 0\n"), &node))

		_, err := fuser.WithParameters(node)
		assert.ErrorIs(t, err, domain.ErrInvalidK)
	})
}

func TestNewRRFFromConfig(t *testing.T) {
	fuser, err := NewRRFFromConfig[string]("cfg", map[string]any{"k": 10.0, "top_k": 1})
	require.NoError(t, err)

	rrf, ok := fuser.(*RRFFuser[string])
	require.True(t, ok)
	assert.Equal(t, 10, rrf.Config().K)
	assert.Equal(t, 1, rrf.Config().TopK)

	_, err = NewRRFFromConfig[string]("cfg", map[string]any{"bogus": 1})
	assert.Error(t, err)
}

func TestRRFFuser_ConcurrentUse(t *testing.T) {
	bm25, dense := hybridLists()
	fuser, err := NewRRFFuser[string]("rrf", DefaultRRFConfig())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := fuser.Fuse(context.Background(), bm25, dense)
			assert.NoError(t, err)
			assert.Equal(t, []string{"d2", "d1", "d3"}, domain.ResultIDs(results))
		}()
	}
	wg.Wait()
}
