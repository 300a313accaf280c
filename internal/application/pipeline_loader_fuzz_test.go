package application

import (
	"context"
	"testing"
)

// FuzzPipelineLoader_LoadFromBytes checks that arbitrary input never panics
// the loader and that anything it accepts can be run.
func FuzzPipelineLoader_LoadFromBytes(f *testing.F) {
	f.Add([]byte(hybridPipelineYAML))
	f.Add([]byte("version: 1.0.0\nmetadata: {name: x}\nfusion: {algorithm: borda}\n"))
	f.Add([]byte("version: 1.0.0\nmetadata: {name: x}\nfusion: {algorithm: weighted, parameters: {weights: [1, 0]}}\n"))
	f.Add([]byte("fusion: [\n"))
	f.Add([]byte(""))

	f.Fuzz(func(t *testing.T, data []byte) {
		loader, err := NewPipelineLoader[string](NewDefaultFuserRegistry[string]())
		if err != nil {
			t.Fatal(err)
		}

		pipeline, err := loader.LoadFromBytes(context.Background(), data)
		if err != nil {
			return
		}
		// Any accepted pipeline must handle an empty query.
		if _, err := pipeline.Run(context.Background(), Query[string]{}); err != nil {
			t.Logf("run on empty query: %v", err)
		}
	})
}
