// Command rankfuse fuses ranked lists from several retrievers into one
// ranking. It runs one-off fusions, serves the fusion HTTP API, and
// generates and evaluates synthetic retrieval datasets.
package main

import (
	"context"
	"os"
)

func main() {
	cmd := newRootCmd(newApp(os.Stdin, os.Stdout))
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
