package outline

import (
	"regexp"
	"strings"

	"github.com/dgallion1/docdots/internal/doctree"
)

// levelRule maps a heading candidate to a level when its predicate matches.
type levelRule struct {
	name  string
	level func(text string, fontSize float64, bold bool, stats fontStats) (doctree.Level, bool)
}

func patternRule(name, expr string, level doctree.Level) levelRule {
	re := regexp.MustCompile(expr)
	return levelRule{
		name: name,
		level: func(text string, _ float64, _ bool, _ fontStats) (doctree.Level, bool) {
			return level, re.MatchString(text)
		},
	}
}

func vocabularyRule(name string, words []string, level doctree.Level) levelRule {
	return levelRule{
		name: name,
		level: func(text string, _ float64, _ bool, _ fontStats) (doctree.Level, bool) {
			return level, containsAny(strings.ToLower(text), words)
		},
	}
}

func fontRule(name string, match func(fontSize float64, stats fontStats) bool, plain, bold doctree.Level) levelRule {
	return levelRule{
		name: name,
		level: func(_ string, fontSize float64, isBold bool, stats fontStats) (doctree.Level, bool) {
			if !match(fontSize, stats) {
				return "", false
			}
			if isBold {
				return bold, true
			}
			return plain, true
		},
	}
}

// levelRules is evaluated top to bottom; the first match wins. The last rule always matches.
var levelRules = []levelRule{
	patternRule("numbered", `^\d+\.\s+[A-Z]`, doctree.H1),
	patternRule("numbered-2", `^\d+\.\d+\s+[A-Z]`, doctree.H2),
	patternRule("numbered-3", `^\d+\.\d+\.\d+\s+`, doctree.H3),
	patternRule("chapter", `(?i)^Chapter\s+\d+`, doctree.H1),
	patternRule("section", `(?i)^Section\s+\d+`, doctree.H2),
	patternRule("appendix", `(?i)^Appendix\s+[A-Z]`, doctree.H2),

	vocabularyRule("h1-vocabulary", h1Words, doctree.H1),
	vocabularyRule("h2-vocabulary", h2Words, doctree.H2),
	vocabularyRule("h3-vocabulary", h3Words, doctree.H3),

	fontRule("near-max-font", func(size float64, s fontStats) bool {
		return size >= s.max*levelMaxFontRatio
	}, doctree.H1, doctree.H1),
	fontRule("large-font", func(size float64, s fontStats) bool {
		return size >= s.avg*levelH1AvgRatio
	}, doctree.H2, doctree.H1),
	fontRule("medium-font", func(size float64, s fontStats) bool {
		return size >= s.avg*levelH2AvgRatio
	}, doctree.H3, doctree.H2),
	fontRule("body-font", func(size float64, s fontStats) bool {
		return size >= s.avg*levelH3AvgRatio
	}, doctree.H3, doctree.H3),
	fontRule("small-font", func(float64, fontStats) bool { return true }, doctree.H4, doctree.H4),
}

// assignLevel runs the rule chain for one candidate.
func assignLevel(text string, fontSize float64, bold bool, stats fontStats) doctree.Level {
	for _, r := range levelRules {
		if lvl, ok := r.level(text, fontSize, bold, stats); ok {
			return lvl
		}
	}
	return doctree.H4
}
