package outline

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/docdots/internal/doctree"
)

var (
	numberedRe   = regexp.MustCompile(`^\d+[.)]\s+\w`)
	titleCaseRe  = regexp.MustCompile(`^[A-Z][a-z]+(\s+[A-Z][a-z]+)*$`)
	sentenceNoRe = regexp.MustCompile(`^\d+\.`)
)

// fontStats summarizes the font sizes seen across a document.
type fontStats struct {
	avg float64
	max float64
}

func computeFontStats(spans []doctree.TextSpan) (fontStats, bool) {
	var sum, maxSize float64
	n := 0
	for _, s := range spans {
		if s.FontSize <= 0 {
			continue
		}
		sum += s.FontSize
		n++
		if s.FontSize > maxSize {
			maxSize = s.FontSize
		}
	}
	if n == 0 {
		return fontStats{}, false
	}
	return fontStats{avg: sum / float64(n), max: maxSize}, true
}

// candidate is a span that survived header filtering and scoring.
type candidate struct {
	text     string
	level    doctree.Level
	page     int // 1-based
	score    int
	fontSize float64
}

// IsLikelyHeader rejects text that reads like body copy rather than a heading.
func IsLikelyHeader(text string) bool {
	n := utf8.RuneCountInString(text)
	switch {
	case n > headerMaxLen, n < headerMinLen:
		return false
	case strings.Count(text, " ") > headerMaxSpaces:
		return false
	case strings.HasSuffix(text, ".") && n > headerSentenceMinLen:
		return false
	case containsAny(strings.ToLower(text), excludedPhrases):
		return false
	case strings.Count(text, ",") > headerMaxCommas:
		return false
	}
	return true
}

// scoreSpan computes the integer header score of a span.
func scoreSpan(text string, fontSize float64, bold bool, stats fontStats) int {
	score := 0

	if fontSize > stats.avg*largeFontRatio {
		score += bonusLargeFont
	} else if fontSize > stats.avg {
		score += bonusAboveAverageFont
	}
	if bold {
		score += bonusBold
	}

	switch {
	case numberedRe.MatchString(text):
		score += bonusNumbered
	case titleCaseRe.MatchString(text):
		score += bonusTitleCase
	case isAllCaps(text) && utf8.RuneCountInString(text) > allCapsMinLen:
		score += bonusAllCaps
	}

	if containsAny(strings.ToLower(text), headerWords) {
		score += bonusHeaderWord
	}

	if strings.Count(text, " ") > penaltyWordySpaces {
		score -= penaltyWordy
	}
	if utf8.RuneCountInString(text) > penaltyLongLen {
		score -= penaltyLong
	}
	if strings.HasSuffix(text, ".") && !sentenceNoRe.MatchString(text) {
		score -= penaltySentence
	}
	return score
}

// isAllCaps reports whether text has at least one cased letter and no lowercase ones.
func isAllCaps(text string) bool {
	cased := false
	for _, r := range text {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
