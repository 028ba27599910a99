package main

import (
	"log"
	"os"

	"github.com/transitio/transit_core/internal/requests"
)

// Reads a request document from stdin, answers every stat request, and
// writes the response array to stdout. Any parse or definition error
// aborts the batch with a non-zero exit status.
func main() {
	log.SetOutput(os.Stderr)

	if err := requests.Run(os.Stdin, os.Stdout); err != nil {
		log.Fatalf("Batch failed: %v", err)
	}
}
