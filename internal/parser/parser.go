package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docdots/internal/doctree"
)

// ErrNoPages is returned when a document decodes to nothing. It is an input
// defect: the document fails and no outline is stored.
var ErrNoPages = errors.New("document has no pages")

// Parser decodes raw document bytes into a page layout of text spans.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Layout, error)
}

// Options tunes parser behaviour.
type Options struct {
	// FallbackPdftotext shells out to pdftotext when the PDF library cannot
	// decode a file. The fallback carries no font metadata.
	FallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".pdf":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".docx":     true,
	".txt":      true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.FallbackPdftotext}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	case ".txt":
		return &TextParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Synthetic typography for flow formats that carry structure but no fonts.
const (
	bodyFontSize = 11
	lineSpacing  = 1.2
	flowLeft     = 72
	flowRight    = 540
)

var headingFontSizes = [...]float64{24, 20, 16, 14, 12, 11}

// flowBuilder lays out Markdown, HTML and DOCX blocks on a single page,
// turning explicit headings into bookmarks.
type flowBuilder struct {
	layout doctree.Layout
	spans  []doctree.TextSpan
	y      float64
}

func (b *flowBuilder) heading(level int, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	level = min(max(level, 1), len(headingFontSizes))
	b.layout.Bookmarks = append(b.layout.Bookmarks, doctree.Bookmark{Level: level, Title: text, Page: 1})
	b.add(text, headingFontSizes[level-1], true)
}

func (b *flowBuilder) body(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.add(text, bodyFontSize, false)
}

func (b *flowBuilder) add(text string, size float64, bold bool) {
	b.spans = append(b.spans, doctree.TextSpan{
		Text:     text,
		FontSize: size,
		Bold:     bold,
		Page:     1,
		BBox:     doctree.BBox{X0: flowLeft, Y0: b.y, X1: flowRight, Y1: b.y + size},
	})
	b.y += size * lineSpacing
}

func (b *flowBuilder) build() (*doctree.Layout, error) {
	if len(b.spans) == 0 {
		return nil, ErrNoPages
	}
	b.layout.Pages = [][]doctree.TextSpan{b.spans}
	return &b.layout, nil
}
