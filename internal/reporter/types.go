package reporter

import (
	"io"

	"github.com/batchsumm/orchestrator/internal/model"
)

// Format is the output format for a rendered report.
type Format string

const (
	FormatHTML Format = "html"
	FormatJSON Format = "json"
)

// Options configures report rendering.
type Options struct {
	Title    string
	Format   Format
	DarkMode bool
}

// Reporter renders a finished (or partially cancelled) batch as a report.
type Reporter interface {
	// Generate renders batch to writer in the requested format.
	Generate(batch *model.Batch, opts *Options, writer io.Writer) error
}

// templateData is what the HTML template actually sees.
type templateData struct {
	Title           string
	DarkMode        bool
	Batch           *model.Batch
	Cancelled       bool
	Partial         *model.PartialResult
	TotalSegments   int
	CompletedCount  int
	FailedCount     int
	ElapsedDuration string
}
