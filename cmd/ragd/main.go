// Command ragd is the retrieval-augmented document Q&A service: an HTTP
// server plus CLI commands for ingesting and querying documents.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
