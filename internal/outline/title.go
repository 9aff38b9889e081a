package outline

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docdots/internal/doctree"
)

var pageNumberRe = regexp.MustCompile(`^\d+$|^page \d+|^chapter \d+`)

// InferTitle picks a document title from metadata or first-page typography.
// The result carries two trailing spaces; it is empty when nothing qualifies and
// the caller should substitute the filename.
func InferTitle(metadataTitle string, firstPage []doctree.TextSpan) string {
	if t := strings.TrimSpace(metadataTitle); t != "" {
		return t + titleSuffix
	}

	var candidates []doctree.TextSpan
	for _, span := range firstPage {
		text := strings.TrimSpace(span.Text)
		n := utf8.RuneCountInString(text)
		if n <= titleMinLen || n >= titleMaxLen || span.FontSize <= titleMinFontSize {
			continue
		}
		if pageNumberRe.MatchString(strings.ToLower(text)) {
			continue
		}
		span.Text = text
		candidates = append(candidates, span)
	}
	if len(candidates) == 0 {
		return ""
	}

	// Larger first, then higher on the page.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].FontSize != candidates[j].FontSize {
			return candidates[i].FontSize > candidates[j].FontSize
		}
		return candidates[i].BBox.Y0 < candidates[j].BBox.Y0
	})

	top := candidates[:min(titleTopCandidates, len(candidates))]
	parts := make([]string, len(top))
	for i, c := range top {
		parts[i] = c.Text
	}
	combined := strings.Join(parts, " ")
	if utf8.RuneCountInString(combined) > titleMinCombined {
		return combined + titleSuffix
	}
	return candidates[0].Text + titleSuffix
}
