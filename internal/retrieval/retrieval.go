// Package retrieval ranks sections of every completed document against a
// selected passage ("connect the dots").
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/dgallion1/docdots/internal/doctree"
)

const (
	DefaultMaxResults = 5
	MaxResultsLimit   = 10
	// MinScore is exclusive: a section must score above it to be returned.
	MinScore = 0.1
)

var ErrInvalidMaxResults = fmt.Errorf("max results must be between 1 and %d", MaxResultsLimit)

// Corpus supplies the sections of completed documents.
type Corpus interface {
	CompletedSections(ctx context.Context) ([]doctree.IndexedSection, error)
}

// Embedder maps text to a vector, returning nil when no vector is available.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

// Query is one connect-the-dots request.
type Query struct {
	Text       string
	Context    string
	MaxResults int // 0 selects DefaultMaxResults
}

// Result is one ranked section.
type Result struct {
	Section doctree.IndexedSection
	Score   float64
	Method  string // "semantic" or "lexical"
}

// Engine scores sections against queries. It never writes to the corpus.
type Engine struct {
	corpus   Corpus
	embedder Embedder
	log      *slog.Logger
}

// NewEngine returns an Engine. embedder may be nil, in which case every
// section is scored lexically; a nil log selects slog.Default.
func NewEngine(corpus Corpus, embedder Embedder, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{corpus: corpus, embedder: embedder, log: log}
}

// Retrieve returns at most q.MaxResults sections scoring above MinScore,
// best first. Ties keep corpus order.
func (e *Engine) Retrieve(ctx context.Context, q Query) ([]Result, error) {
	limit := q.MaxResults
	if limit == 0 {
		limit = DefaultMaxResults
	}
	if limit < 1 || limit > MaxResultsLimit {
		return nil, ErrInvalidMaxResults
	}

	sections, err := e.corpus.CompletedSections(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}

	var queryVec []float32
	if e.embedder != nil {
		queryVec = e.embedder.Embed(ctx, q.Text+" "+q.Context)
	}
	queryWords := wordSet(q.Text)

	var results []Result
	for _, s := range sections {
		score, method, err := e.score(queryVec, queryWords, s)
		if err != nil {
			e.log.Warn("skipping section", "section_id", s.ID, "document_id", s.DocumentID, "error", err)
			continue
		}
		if score > MinScore {
			results = append(results, Result{Section: s, Score: score, Method: method})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// score rates one section. A panic while scoring is reported as an error so a
// single bad record only skips that record.
func (e *Engine) score(queryVec []float32, queryWords map[string]struct{}, s doctree.IndexedSection) (score float64, method string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("scoring panic: %v", rec)
		}
	}()

	if len(queryVec) > 0 && len(s.Embedding) > 0 {
		sim, err := Cosine(queryVec, s.Embedding)
		if err != nil {
			return 0, "", err
		}
		return sim, "semantic", nil
	}
	return Lexical(queryWords, s.Title, s.Content), "lexical", nil
}

var (
	ErrDimensionMismatch = errors.New("embedding dimensions differ")
	ErrZeroVector        = errors.New("zero-norm embedding")
	ErrNonFinite         = errors.New("embedding has non-finite values")
)

// Cosine returns the cosine similarity of a and b, clamped to [-1, 1].
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if !finite(dot) || !finite(na) || !finite(nb) {
		return 0, ErrNonFinite
	}
	if na == 0 || nb == 0 {
		return 0, ErrZeroVector
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(-1, math.Min(1, sim)), nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Lexical scores word overlap, counting title matches twice:
// (2*|q∩title| + |q∩content|) / max(|q|, 1), capped at 1.
func Lexical(queryWords map[string]struct{}, title, content string) float64 {
	titleWords := wordSet(title)
	contentWords := wordSet(content)

	var titleOverlap, contentOverlap int
	for w := range queryWords {
		if _, ok := titleWords[w]; ok {
			titleOverlap++
		}
		if _, ok := contentWords[w]; ok {
			contentOverlap++
		}
	}
	score := float64(2*titleOverlap+contentOverlap) / float64(max(len(queryWords), 1))
	return math.Min(score, 1)
}

// wordSet splits on whitespace and case-folds.
func wordSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
