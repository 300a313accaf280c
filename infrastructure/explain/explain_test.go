package explain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-rankfuse/infrastructure/fusers"
	"github.com/ahrav/go-rankfuse/internal/domain"
)

func explainedFixture(t *testing.T) []domain.ExplainedResult[string] {
	t.Helper()

	bm25 := domain.NewRankedList("d1", "d2", "d3", "d4", "d5", "d6", "d7", "d8")
	dense := domain.NewRankedList("d8", "d2", "d1", "d9")

	fuser, err := fusers.NewRRFFuser[string]("rrf", fusers.DefaultRRFConfig())
	require.NoError(t, err)

	explained, err := fuser.FuseExplained(context.Background(), []string{"bm25", "dense"}, bm25, dense)
	require.NoError(t, err)
	return explained
}

func TestAnalyzeConsensus(t *testing.T) {
	explained := explainedFixture(t)

	t.Run("default threshold", func(t *testing.T) {
		report := AnalyzeConsensus(explained)

		assert.ElementsMatch(t, []string{"d1", "d2", "d8"}, report.HighConsensus)
		assert.ElementsMatch(t, []string{"d3", "d4", "d5", "d6", "d7", "d9"}, report.SingleSource)

		require.Len(t, report.RankDisagreement, 1)
		d8 := report.RankDisagreement[0]
		assert.Equal(t, "d8", d8.ID)
		assert.Equal(t, 7, d8.Spread)
		assert.Equal(t, []RetrieverRank{{Retriever: "bm25", Rank: 7}, {Retriever: "dense", Rank: 0}}, d8.Ranks)
	})

	t.Run("lower threshold catches smaller spreads", func(t *testing.T) {
		report := AnalyzeConsensus(explained, WithRankSpreadThreshold(1))

		ids := make([]string, 0, len(report.RankDisagreement))
		for _, d := range report.RankDisagreement {
			ids = append(ids, d.ID)
		}
		assert.ElementsMatch(t, []string{"d1", "d8"}, ids)
	})

	t.Run("empty input", func(t *testing.T) {
		report := AnalyzeConsensus[string](nil)
		assert.Empty(t, report.HighConsensus)
		assert.Empty(t, report.SingleSource)
		assert.Empty(t, report.RankDisagreement)
	})
}

func TestAttributeTopK(t *testing.T) {
	explained := explainedFixture(t)

	stats := AttributeTopK(explained, 3)

	// The top three are d2, d1 and d8, all returned by both retrievers.
	require.Len(t, stats, 2)
	assert.Equal(t, 3, stats["bm25"].TopKCount)
	assert.Equal(t, 3, stats["dense"].TopKCount)
	assert.Equal(t, 0, stats["bm25"].UniqueDocs)
	assert.InDelta(t, (1.0/61+1.0/60+1.0/67)/3, stats["bm25"].AvgContribution, 1e-12)

	all := AttributeTopK(explained, 0)
	assert.Equal(t, 8, all["bm25"].TopKCount)
	assert.Equal(t, 5, all["bm25"].UniqueDocs)
	assert.Equal(t, 1, all["dense"].UniqueDocs)
}
