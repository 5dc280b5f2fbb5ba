package reporter

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/batchsumm/orchestrator/internal/model"
)

//go:embed templates/*
var templateFS embed.FS

// HTMLReporter renders a batch report as HTML or JSON, adapted from the
// teacher's embedded-template HTML reporter.
type HTMLReporter struct {
	templates *template.Template
}

// NewHTMLReporter parses the embedded report template.
func NewHTMLReporter() (*HTMLReporter, error) {
	tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &HTMLReporter{templates: tmpl}, nil
}

// Generate renders batch per opts.Format.
func (r *HTMLReporter) Generate(batch *model.Batch, opts *Options, writer io.Writer) error {
	if batch == nil {
		return fmt.Errorf("batch cannot be nil")
	}
	if opts == nil {
		opts = &Options{Title: "Batch Summary Report", Format: FormatHTML, DarkMode: true}
	}

	if opts.Format == FormatJSON {
		return json.NewEncoder(writer).Encode(batch)
	}

	data := buildTemplateData(batch, opts)
	if err := r.templates.ExecuteTemplate(writer, "report.html", data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

func buildTemplateData(batch *model.Batch, opts *Options) *templateData {
	completed, failed := 0, 0
	for _, t := range batch.Tasks {
		switch t.Status {
		case model.TaskCompleted:
			completed++
		case model.TaskFailed:
			failed++
		}
	}

	elapsed := time.Duration(batch.Progress.ElapsedMs) * time.Millisecond

	return &templateData{
		Title:           opts.Title,
		DarkMode:        opts.DarkMode,
		Batch:           batch,
		Cancelled:       batch.CancelRequested,
		Partial:         batch.PartialResult,
		TotalSegments:   len(batch.Tasks),
		CompletedCount:  completed,
		FailedCount:     failed,
		ElapsedDuration: elapsed.Round(time.Millisecond).String(),
	}
}

// templateFuncs exposes the humanize-backed formatters the teacher's own
// formatDuration/formatPercent/formatTimestamp funcs provided, plus the
// quality-level/recommended-action helpers this domain needs.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDuration": func(ms int64) string {
			return (time.Duration(ms) * time.Millisecond).Round(time.Millisecond).String()
		},
		"formatCount": func(n int) string {
			return humanize.Comma(int64(n))
		},
		"timeAgo": func(t time.Time) string {
			return humanize.Time(t)
		},
		"formatPercent": func(f float64) string {
			return fmt.Sprintf("%.1f%%", f)
		},
		"formatTimestamp": func(t time.Time) string {
			return t.Format("2006-01-02 15:04:05 MST")
		},
		"formatBytes": func(n int) string {
			return humanize.Bytes(uint64(n))
		},
		"qualityClass": func(level model.QualityLevel) string {
			switch level {
			case model.QualityExcellent, model.QualityGood:
				return "quality-good"
			case model.QualityAcceptable:
				return "quality-acceptable"
			case model.QualityPoor:
				return "quality-poor"
			default:
				return "quality-unusable"
			}
		},
		"stageLabel": func(s model.Stage) string { return s.String() },
		"taskStatusLabel": func(s model.TaskStatus) string { return s.String() },
	}
}
