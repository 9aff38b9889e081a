package pipeline

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docdots/internal/doctree"
	"github.com/dgallion1/docdots/internal/outline"
	"github.com/dgallion1/docdots/internal/parser"
)

// Analysis is the title and outline of one document. Its JSON form is the
// per-file batch output.
type Analysis struct {
	Success bool                   `json:"success"`
	Title   string                 `json:"title"`
	Outline []doctree.OutlineEntry `json:"outline"`
	Error   string                 `json:"error,omitempty"`

	PageCount int      `json:"-"`
	Warnings  []string `json:"-"`
}

// FailedAnalysis is the batch output for a document that could not be read.
func FailedAnalysis(err error) *Analysis {
	return &Analysis{Error: err.Error(), Outline: []doctree.OutlineEntry{}}
}

// Analyze parses data and derives its title and outline. Parse failures are
// returned as errors; a failure inside outline detection degrades to one
// entry per page instead.
func Analyze(data []byte, filename string, opts parser.Options) (*Analysis, error) {
	p, err := parser.ForFile(filename, opts)
	if err != nil {
		return nil, err
	}
	layout, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	if layout.PageCount() == 0 {
		return nil, parser.ErrNoPages
	}

	a := &Analysis{
		Success:   true,
		PageCount: layout.PageCount(),
		Warnings:  append([]string(nil), layout.Warnings...),
	}

	a.Title = outline.InferTitle(layout.MetadataTitle, layout.Spans(1))
	if strings.TrimSpace(a.Title) == "" {
		a.Title = stem(filename) + "  "
	}

	entries, derr := detectOutline(layout)
	if derr != nil {
		a.Warnings = append(a.Warnings, derr.Error())
		entries = outline.PageFallback(layout)
	}
	if len(entries) == 0 {
		entries = []doctree.OutlineEntry{{Level: doctree.H1, Text: strings.TrimSpace(a.Title), Page: 0}}
	}
	a.Outline = entries
	return a, nil
}

func detectOutline(layout *doctree.Layout) (entries []doctree.OutlineEntry, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			entries, err = nil, fmt.Errorf("outline detection panic: %v", rec)
		}
	}()
	return outline.Detect(layout), nil
}

func stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
