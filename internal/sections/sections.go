// Package sections turns an outline into retrievable sections.
package sections

import (
	"strings"
	"unicode"

	"github.com/dgallion1/docdots/internal/doctree"
	"github.com/google/uuid"
)

// SnippetSentences is the number of sentences kept in a section snippet.
const SnippetSentences = 3

// Build creates one section per outline entry, numbered from 1. Heading text is
// used as both title and content.
func Build(documentID string, outline []doctree.OutlineEntry) []doctree.Section {
	out := make([]doctree.Section, 0, len(outline))
	for i, entry := range outline {
		page := entry.Page
		out = append(out, doctree.Section{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			Number:     i + 1,
			Title:      entry.Text,
			Content:    entry.Text,
			Page:       &page,
			Snippet:    ExtractSnippet(entry.Text, SnippetSentences),
		})
	}
	return out
}

// EmbeddingText is the text embedded for a section.
func EmbeddingText(s doctree.Section) string {
	return s.Title + " " + s.Content
}

// ExtractSnippet returns the first maxSentences sentences of text, or all of
// it when it is already short enough.
func ExtractSnippet(text string, maxSentences int) string {
	text = strings.TrimSpace(text)
	sentences := splitSentences(text)
	if len(sentences) <= maxSentences {
		return text
	}
	return strings.TrimSpace(strings.Join(sentences[:maxSentences], " "))
}

// splitSentences splits after '.', '!' or '?' when followed by whitespace.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			sentences = append(sentences, current.String())
			current.Reset()
			for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				i++
			}
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}
