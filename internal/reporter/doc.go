// Package reporter renders a finished (or cancelled) batch as a
// self-contained HTML page or a JSON document.
//
// # Overview
//
// Generate reads a model.Batch and writes either an embedded-CSS HTML
// report or a plain JSON encoding of the batch. A cancelled batch's partial
// result, quality assessment, and recommended action are rendered
// prominently when present.
//
// # Usage
//
//	rep, err := reporter.NewHTMLReporter()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	opts := &reporter.Options{Title: "Batch Report", Format: reporter.FormatHTML, DarkMode: true}
//	if err := rep.Generate(batch, opts, w); err != nil {
//	    log.Fatal(err)
//	}
package reporter
