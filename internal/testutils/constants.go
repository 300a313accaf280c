package testutils

const (
	// DefaultQueryCount is the number of queries generated when none is given.
	DefaultQueryCount = 100

	// DefaultRetrieverCount is the number of simulated retrievers per query.
	DefaultRetrieverCount = 3

	// DefaultCorpusSize is the number of candidate documents per query.
	DefaultCorpusSize = 50

	// DefaultListLength is how many documents each retriever returns.
	DefaultListLength = 20

	// DefaultRelevantCount is the number of relevant documents per query.
	DefaultRelevantCount = 5

	// DefaultCutoff is the rank cutoff used for P@k, R@k and nDCG@k.
	DefaultCutoff = 10

	// MaxRetrievers bounds the retrievers a generated dataset may declare.
	MaxRetrievers = 64
)

// Retriever score scales. Each simulated retriever reports scores on its
// own scale so score-based fusers must normalize.
const (
	scaleBM25  = 25.0
	scaleDense = 1.0
	scaleOther = 100.0
)
