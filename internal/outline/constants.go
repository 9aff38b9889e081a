// Package outline infers a document title and a leveled heading outline from layout signals.
//
// Everything here is a pure function of its inputs and safe to call from any goroutine.
package outline

// Title inference.
const (
	titleMinLen        = 5   // exclusive
	titleMaxLen        = 150 // exclusive
	titleMinFontSize   = 10  // exclusive
	titleTopCandidates = 3
	titleMinCombined   = 10 // combined title must be longer than this
	titleSuffix        = "  "
)

// Span collection.
const (
	minSpanLen = 2 // spans with this many characters or fewer are ignored
)

// Header plausibility.
const (
	headerMaxLen           = 80
	headerMinLen           = 4
	headerMaxSpaces        = 12
	headerSentenceMinLen   = 30 // a span ending in '.' longer than this reads as a sentence
	headerMaxCommas        = 3
	penaltyWordySpaces     = 8
	penaltyLongLen         = 60
	minCandidateScore      = 3
	bonusLargeFont         = 3
	bonusAboveAverageFont  = 1
	bonusBold              = 2
	bonusNumbered          = 5
	bonusTitleCase         = 2
	bonusAllCaps           = 2
	allCapsMinLen          = 6 // exclusive
	bonusHeaderWord        = 2
	penaltyWordy           = 2
	penaltyLong            = 3
	penaltySentence        = 2
	largeFontRatio         = 1.1
)

// Level thresholds, relative to the document's font statistics.
const (
	levelMaxFontRatio = 0.95
	levelH1AvgRatio   = 1.4
	levelH2AvgRatio   = 1.2
	levelH3AvgRatio   = 1.0
)

// Selection caps.
const (
	maxEntries        = 15
	maxEntriesPerPage = 4
	nearDuplicateLen  = 15 // strings shorter than this are compared by containment
	entrySuffix       = " "
)

// Fallback outline when heuristic detection cannot run.
const (
	fallbackMaxPages = 10
)

var excludedPhrases = []string{"the following", "as shown", "figure", "table"}

var headerWords = []string{
	"introduction", "conclusion", "summary", "overview", "background",
	"methodology", "results", "discussion", "abstract", "references",
	"contents", "index", "glossary", "acknowledgments", "preface",
}

var h1Words = []string{
	"introduction", "conclusion", "summary", "overview", "acknowledgement",
	"table of contents", "references", "bibliography", "abstract",
}

var h2Words = []string{
	"background", "methodology", "approach", "evaluation", "milestones",
	"business outcomes", "content", "timeline", "funding", "requirements",
}

var h3Words = []string{
	"access", "guidance", "training", "support", "phase", "preamble",
	"membership", "term", "chair", "meetings", "criteria", "process",
}
