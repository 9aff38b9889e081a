package parser

import (
	"errors"
	"strings"
	"testing"

	pdflib "github.com/ledongthuc/pdf"
)

func glyphs(s, font string, size, x, y float64) []pdflib.Text {
	var out []pdflib.Text
	for _, r := range s {
		out = append(out, pdflib.Text{Font: font, FontSize: size, X: x, Y: y, W: size * 0.5, S: string(r)})
		x += size * 0.5
	}
	return out
}

func TestGroupRuns(t *testing.T) {
	var in []pdflib.Text
	in = append(in, glyphs("Project", "Helvetica-Bold", 24, 72, 700)...)
	// Word gap without an explicit space glyph.
	in = append(in, glyphs("Charter", "Helvetica-Bold", 24, 72+7*12+10, 700)...)
	in = append(in, glyphs("Body text", "Helvetica", 11, 72, 650)...)

	spans := groupRuns(in, 1, 792)
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d: %+v", len(spans), spans)
	}

	title := spans[0]
	if title.Text != "Project Charter" {
		t.Errorf("expected %q, got %q", "Project Charter", title.Text)
	}
	if !title.Bold || title.FontSize != 24 || title.Page != 1 {
		t.Errorf("unexpected title span %+v", title)
	}
	if title.BBox.Y0 != 792-(700+24) || title.BBox.Y1 != 92 {
		t.Errorf("unexpected bbox %+v", title.BBox)
	}
	if spans[1].Text != "Body text" || spans[1].Bold {
		t.Errorf("unexpected body span %+v", spans[1])
	}
	if spans[0].BBox.Y0 >= spans[1].BBox.Y0 {
		t.Error("expected the title above the body text")
	}
}

func TestGroupRuns_SplitsOnFontChange(t *testing.T) {
	var in []pdflib.Text
	in = append(in, glyphs("Bold", "Times-Bold", 12, 72, 500)...)
	in = append(in, glyphs("plain", "Times-Roman", 12, 110, 500)...)
	spans := groupRuns(in, 3, 792)
	if len(spans) != 2 || !spans[0].Bold || spans[1].Bold || spans[1].Page != 3 {
		t.Errorf("unexpected spans %+v", spans)
	}
}

func TestSplitPdftotext(t *testing.T) {
	layout, err := splitPdftotext("Heading One\n\n  body line  \n\fSecond page\n\f")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if layout.PageCount() != 2 {
		t.Fatalf("expected 2 pages, got %d", layout.PageCount())
	}
	first := layout.Spans(1)
	if len(first) != 2 || first[1].Text != "body line" || first[0].FontSize != 0 {
		t.Errorf("unexpected first page %+v", first)
	}
	if got := layout.Spans(2); len(got) != 1 || got[0].Page != 2 {
		t.Errorf("unexpected second page %+v", got)
	}

	if _, err := splitPdftotext("\f\n"); !errors.Is(err, ErrNoPages) {
		t.Errorf("expected ErrNoPages, got %v", err)
	}
}

func TestPDFParser_RejectsGarbage(t *testing.T) {
	p := &PDFParser{}
	if _, err := p.Parse(strings.NewReader("definitely not a pdf"), "bad.pdf"); err == nil {
		t.Error("expected an error for non-PDF input")
	}
}

func TestForFile(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"a.pdf", "*parser.PDFParser"},
		{"a.MD", "*parser.MarkdownParser"},
		{"a.htm", "*parser.HTMLParser"},
		{"a.docx", "*parser.DOCXParser"},
		{"a.txt", "*parser.TextParser"},
	}
	for _, tc := range tests {
		p, err := ForFile(tc.name, Options{FallbackPdftotext: true})
		if err != nil {
			t.Fatalf("ForFile(%q): %v", tc.name, err)
		}
		if got := typeName(p); got != tc.want {
			t.Errorf("ForFile(%q) = %s, want %s", tc.name, got, tc.want)
		}
	}
	if _, err := ForFile("data.csv", Options{}); err == nil {
		t.Error("expected unsupported extension error")
	}
	if !IsSupportedExtension("Report.PDF") || IsSupportedExtension("x.csv") {
		t.Error("unexpected IsSupportedExtension result")
	}
}

func typeName(p Parser) string {
	switch p.(type) {
	case *PDFParser:
		return "*parser.PDFParser"
	case *MarkdownParser:
		return "*parser.MarkdownParser"
	case *HTMLParser:
		return "*parser.HTMLParser"
	case *DOCXParser:
		return "*parser.DOCXParser"
	case *TextParser:
		return "*parser.TextParser"
	}
	return "unknown"
}
