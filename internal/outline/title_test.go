package outline

import (
	"testing"

	"github.com/dgallion1/docdots/internal/doctree"
)

func span(text string, size float64, bold bool, page int, y float64) doctree.TextSpan {
	return doctree.TextSpan{
		Text:     text,
		FontSize: size,
		Bold:     bold,
		Page:     page,
		BBox:     doctree.BBox{X0: 72, Y0: y, X1: 300, Y1: y + size},
	}
}

func TestInferTitle_MetadataWins(t *testing.T) {
	first := []doctree.TextSpan{span("Something Much Larger", 30, true, 1, 40)}
	got := InferTitle("  Annual Report ", first)
	if got != "Annual Report  " {
		t.Errorf("expected %q, got %q", "Annual Report  ", got)
	}
}

func TestInferTitle_LargestSpan(t *testing.T) {
	layout := &doctree.Layout{
		Pages: [][]doctree.TextSpan{
			{
				span("Project Charter", 24, true, 1, 60),
				span("1", 11, false, 1, 760),
			},
			{
				span("Purpose of this charter", 11, false, 2, 80),
				span("Stakeholders and sponsors", 11, false, 2, 120),
			},
		},
	}
	got := InferTitle("", layout.Spans(1))
	if got != "Project Charter  " {
		t.Errorf("expected %q, got %q", "Project Charter  ", got)
	}
}

func TestInferTitle_CombinesTopThree(t *testing.T) {
	first := []doctree.TextSpan{
		span("Fiscal Year 2024", 18, false, 1, 140),
		span("Business Review", 20, true, 1, 90),
		span("Quarterly", 20, true, 1, 50),
		span("Prepared by the finance office", 12, false, 1, 200),
	}
	got := InferTitle("", first)
	want := "Quarterly Business Review Fiscal Year 2024  "
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestInferTitle_SingleShortCandidate(t *testing.T) {
	first := []doctree.TextSpan{
		span("Report", 16, true, 1, 50),
		span("tiny", 30, true, 1, 20),
	}
	got := InferTitle("", first)
	if got != "Report  " {
		t.Errorf("expected %q, got %q", "Report  ", got)
	}
}

func TestInferTitle_RejectsNumbersAndSmallText(t *testing.T) {
	first := []doctree.TextSpan{
		span("Page 12 of 40", 14, false, 1, 20),
		span("Chapter 3 continued", 14, false, 1, 40),
		span("123456", 14, false, 1, 60),
		span("Body copy set in ten point type", 10, false, 1, 100),
	}
	if got := InferTitle("", first); got != "" {
		t.Errorf("expected empty title, got %q", got)
	}
}

func TestInferTitle_NoSpans(t *testing.T) {
	if got := InferTitle("   ", nil); got != "" {
		t.Errorf("expected empty title, got %q", got)
	}
}
