package main

import (
	"fmt"
	"os"

	"ledger-ingest/cmd/ingestctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
