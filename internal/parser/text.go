package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/docdots/internal/doctree"
)

// TextParser handles plain text files. Each paragraph becomes one span with
// no font metadata, so outline detection falls back to the document title.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.Layout, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs []string
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		} else {
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(line)
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(paragraphs) == 0 {
		return nil, ErrNoPages
	}

	spans := make([]doctree.TextSpan, 0, len(paragraphs))
	y := 0.0
	for _, para := range paragraphs {
		spans = append(spans, doctree.TextSpan{
			Text: para,
			Page: 1,
			BBox: doctree.BBox{X0: flowLeft, Y0: y, X1: flowRight, Y1: y + bodyFontSize},
		})
		y += float64(strings.Count(para, "\n")+1) * bodyFontSize * lineSpacing
	}
	return &doctree.Layout{Pages: [][]doctree.TextSpan{spans}}, nil
}
