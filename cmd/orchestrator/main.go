// Command orchestrator is the batch summarization orchestrator's entry
// point: it delegates entirely to the cobra command tree in internal/cmd.
package main

import (
	"fmt"
	"os"

	"github.com/batchsumm/orchestrator/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
