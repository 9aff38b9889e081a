package retrieval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/dgallion1/docdots/internal/doctree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCorpus struct {
	sections []doctree.IndexedSection
	err      error
}

func (c *fakeCorpus) CompletedSections(context.Context) ([]doctree.IndexedSection, error) {
	return c.sections, c.err
}

type fakeEmbedder struct {
	vec  []float32
	seen []string
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) []float32 {
	e.seen = append(e.seen, text)
	return e.vec
}

func indexed(id, title string, emb []float32) doctree.IndexedSection {
	page := 0
	return doctree.IndexedSection{
		Section: doctree.Section{
			ID:         id,
			DocumentID: "doc-" + id,
			Title:      title,
			Content:    title,
			Page:       &page,
			Snippet:    title,
			Embedding:  emb,
		},
		DocumentTitle:    "Doc " + id,
		DocumentFilename: id + ".pdf",
	}
}

func newEngine(corpus Corpus, emb Embedder) *Engine {
	return NewEngine(corpus, emb, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRetrieve_LexicalFallback(t *testing.T) {
	corpus := &fakeCorpus{sections: []doctree.IndexedSection{
		indexed("ml", "Machine Learning Overview", nil),
		indexed("cook", "Cooking Recipes", nil),
	}}
	engine := newEngine(corpus, nil)

	results, err := engine.Retrieve(context.Background(), Query{Text: "machine learning applications"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ml", results[0].Section.ID)
	assert.Equal(t, "lexical", results[0].Method)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestLexical(t *testing.T) {
	q := wordSet("machine learning applications")

	// Content-only overlap: 2 of 3 query words.
	assert.InDelta(t, 2.0/3.0, Lexical(q, "Unrelated", "machine learning"), 1e-9)
	// Title matches count twice.
	assert.InDelta(t, 2.0/3.0, Lexical(q, "Machine notes", ""), 1e-9)
	// Title and content together are capped.
	assert.Equal(t, 1.0, Lexical(q, "Machine Learning Overview", "Machine Learning Overview"))
	assert.Equal(t, 0.0, Lexical(q, "Cooking Recipes", "Cooking Recipes"))
	assert.Equal(t, 0.0, Lexical(wordSet(""), "Machine", "Machine"))
}

func TestRetrieve_SemanticRanking(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	corpus := &fakeCorpus{sections: []doctree.IndexedSection{
		indexed("close", "Close", []float32{0.9, 0.1}),
		indexed("exact", "Exact", []float32{2, 0}),
		indexed("opposite", "Opposite", []float32{-1, 0}),
		indexed("orthogonal", "Orthogonal", []float32{0, 1}),
		indexed("broken", "Broken", []float32{1, 0, 0}),
		indexed("zero", "Zero", []float32{0, 0}),
	}}
	engine := newEngine(corpus, emb)

	results, err := engine.Retrieve(context.Background(), Query{Text: "selected", Context: "around it", MaxResults: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].Section.ID)
	assert.Equal(t, "close", results[1].Section.ID)
	assert.Equal(t, "semantic", results[0].Method)
	assert.Equal(t, []string{"selected around it"}, emb.seen)

	for _, r := range results {
		assert.Greater(t, r.Score, MinScore)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestRetrieve_MixedSignals(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	corpus := &fakeCorpus{sections: []doctree.IndexedSection{
		indexed("vec", "Something", []float32{0.5, 0.5}),
		indexed("words", "Budget Planning", nil),
	}}
	results, err := newEngine(corpus, emb).Retrieve(context.Background(), Query{Text: "budget planning"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "words", results[0].Section.ID)
	assert.Equal(t, "lexical", results[0].Method)
	assert.InDelta(t, math.Sqrt(0.5), results[1].Score, 1e-6)
}

func TestRetrieve_MaxResults(t *testing.T) {
	var secs []doctree.IndexedSection
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		secs = append(secs, indexed(id, "shared topic", nil))
	}
	engine := newEngine(&fakeCorpus{sections: secs}, nil)
	ctx := context.Background()

	for n := 1; n <= MaxResultsLimit; n++ {
		results, err := engine.Retrieve(ctx, Query{Text: "shared topic", MaxResults: n})
		require.NoError(t, err)
		assert.Len(t, results, n)
	}

	results, err := engine.Retrieve(ctx, Query{Text: "shared topic"})
	require.NoError(t, err)
	require.Len(t, results, DefaultMaxResults)
	// Equal scores keep corpus order.
	for i, r := range results {
		assert.Equal(t, secs[i].ID, r.Section.ID)
	}

	for _, n := range []int{-1, 11, 100} {
		_, err := engine.Retrieve(ctx, Query{Text: "shared", MaxResults: n})
		assert.ErrorIs(t, err, ErrInvalidMaxResults, "max results %d", n)
	}
}

func TestRetrieve_DoesNotMutateCorpus(t *testing.T) {
	secs := []doctree.IndexedSection{
		indexed("b", "beta topic", []float32{0, 1}),
		indexed("a", "alpha topic", []float32{1, 0}),
	}
	before := append([]doctree.IndexedSection(nil), secs...)
	engine := newEngine(&fakeCorpus{sections: secs}, &fakeEmbedder{vec: []float32{1, 0}})

	_, err := engine.Retrieve(context.Background(), Query{Text: "topic"})
	require.NoError(t, err)
	assert.Equal(t, before, secs)
}

func TestRetrieve_CorpusError(t *testing.T) {
	engine := newEngine(&fakeCorpus{err: errors.New("db down")}, nil)
	_, err := engine.Retrieve(context.Background(), Query{Text: "x"})
	assert.Error(t, err)
}

func TestRetrieve_NilLoggerSkipsBadSection(t *testing.T) {
	corpus := &fakeCorpus{sections: []doctree.IndexedSection{
		indexed("bad", "Machine Learning", []float32{1, 0, 0}),
		indexed("good", "Machine Learning", []float32{1, 0}),
	}}
	engine := NewEngine(corpus, &fakeEmbedder{vec: []float32{1, 0}}, nil)

	var results []Result
	require.NotPanics(t, func() {
		var err error
		results, err = engine.Retrieve(context.Background(), Query{Text: "machine learning"})
		require.NoError(t, err)
	})
	require.Len(t, results, 1)
	assert.Equal(t, "good", results[0].Section.ID)
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float32
		want    float64
		wantErr error
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1, nil},
		{"scaled", []float32{1, 1}, []float32{3, 3}, 1, nil},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0, nil},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1, nil},
		{"mismatch", []float32{1}, []float32{1, 0}, 0, ErrDimensionMismatch},
		{"zero", []float32{0, 0}, []float32{1, 0}, 0, ErrZeroVector},
		{"nan", []float32{float32(math.NaN()), 0}, []float32{1, 0}, 0, ErrNonFinite},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Cosine(tc.a, tc.b)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestResultView(t *testing.T) {
	r := Result{Section: indexed("s1", "Scope ", nil), Score: 0.123456, Method: "lexical"}
	v := r.View()
	assert.Equal(t, "s1", v.SectionID)
	assert.Equal(t, "doc-s1", v.DocumentID)
	assert.Equal(t, "Doc s1", v.DocumentTitle)
	assert.Equal(t, "s1.pdf", v.DocumentFilename)
	assert.Equal(t, "Scope ", v.SectionTitle)
	assert.Equal(t, 0.1235, v.Score)
	require.NotNil(t, v.Page)
	assert.Equal(t, 0, *v.Page)
}
