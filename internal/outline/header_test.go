package outline

import (
	"strings"
	"testing"

	"github.com/dgallion1/docdots/internal/doctree"
)

func TestIsLikelyHeader(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Introduction", true},
		{"1. Scope", true},
		{"abc", false},
		{strings.Repeat("x", 81), false},
		{"one two three four five six seven eight nine ten eleven twelve thirteen fourteen", false},
		{"This line ends like a sentence would end.", false},
		{"Short sentence.", true},
		{"Results as shown below", false},
		{"Figure 3", false},
		{"red, green, blue, cyan, magenta", false},
	}
	for _, tc := range tests {
		if got := IsLikelyHeader(tc.text); got != tc.want {
			t.Errorf("IsLikelyHeader(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestScoreSpan(t *testing.T) {
	stats := fontStats{avg: 12, max: 24}
	tests := []struct {
		name  string
		text  string
		size  float64
		bold  bool
		score int
	}{
		{"numbered intro", "1. Introduction", 18, true, 3 + 2 + 5 + 2},
		{"title case body size", "Project Scope", 12, false, 2},
		{"slightly larger", "Project Scope", 13, false, 1 + 2},
		{"all caps", "GOVERNANCE MODEL", 12, false, 2},
		{"short all caps", "SCOPE", 12, false, 0},
		{"sentence penalty", "it was fine.", 12, false, -2},
		{"numbered sentence exempt", "2. it was fine.", 12, false, 5},
		{"wordy", "a b c d e f g h i j", 12, false, -2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := scoreSpan(tc.text, tc.size, tc.bold, stats); got != tc.score {
				t.Errorf("scoreSpan(%q) = %d, want %d", tc.text, got, tc.score)
			}
		})
	}
}

func TestComputeFontStats(t *testing.T) {
	spans := []doctree.TextSpan{{FontSize: 10}, {FontSize: 0}, {FontSize: 20}}
	stats, ok := computeFontStats(spans)
	if !ok {
		t.Fatal("expected stats")
	}
	if stats.avg != 15 || stats.max != 20 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if _, ok := computeFontStats([]doctree.TextSpan{{FontSize: 0}}); ok {
		t.Error("expected no stats without font sizes")
	}
}

func TestAssignLevel(t *testing.T) {
	stats := fontStats{avg: 10, max: 20}
	tests := []struct {
		name string
		text string
		size float64
		bold bool
		want doctree.Level
	}{
		{"numbered", "1. Budget", 9, false, doctree.H1},
		{"numbered second level", "2.3 Scope Limits", 9, false, doctree.H2},
		{"numbered pattern beats vocabulary", "1.1 Overview", 9, false, doctree.H2},
		{"numbered third level", "1.2.3 details", 9, false, doctree.H3},
		{"chapter", "CHAPTER 4 the end", 9, false, doctree.H1},
		{"section", "Section 2 Rules", 9, false, doctree.H2},
		{"appendix", "Appendix B", 9, false, doctree.H2},
		{"h1 vocabulary", "Executive Summary", 9, false, doctree.H1},
		{"h2 vocabulary", "Project Timeline", 9, false, doctree.H2},
		{"h3 vocabulary", "Membership Rules", 9, false, doctree.H3},
		{"near max font", "Quarterly Numbers", 19, false, doctree.H1},
		{"large font bold", "Quarterly Numbers", 14, true, doctree.H1},
		{"large font plain", "Quarterly Numbers", 14, false, doctree.H2},
		{"medium font bold", "Quarterly Numbers", 12, true, doctree.H2},
		{"medium font plain", "Quarterly Numbers", 12, false, doctree.H3},
		{"body font", "Quarterly Numbers", 10, true, doctree.H3},
		{"small font", "Quarterly Numbers", 9, true, doctree.H4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := assignLevel(tc.text, tc.size, tc.bold, stats); got != tc.want {
				t.Errorf("assignLevel(%q, %v, %v) = %s, want %s", tc.text, tc.size, tc.bold, got, tc.want)
			}
		})
	}
}
