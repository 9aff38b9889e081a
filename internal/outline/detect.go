package outline

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docdots/internal/doctree"
)

// Detect builds the outline of a document. An existing bookmark table is
// authoritative and mapped directly; otherwise headings are inferred from layout.
func Detect(layout *doctree.Layout) []doctree.OutlineEntry {
	if len(layout.Bookmarks) > 0 {
		return FromBookmarks(layout.Bookmarks)
	}
	return Heuristic(layout.AllSpans())
}

// FromBookmarks maps a bookmark table to outline entries, capping depth at H6.
// Pages are kept as given.
func FromBookmarks(bookmarks []doctree.Bookmark) []doctree.OutlineEntry {
	out := make([]doctree.OutlineEntry, 0, len(bookmarks))
	for _, b := range bookmarks {
		out = append(out, doctree.OutlineEntry{
			Level: doctree.LevelFor(b.Level),
			Text:  strings.TrimSpace(b.Title),
			Page:  b.Page,
		})
	}
	return out
}

// Heuristic scores every plausible heading span and selects at most fifteen,
// no more than four per page, without near-duplicates. The result is ordered by
// page then text; pages are 0-based.
func Heuristic(spans []doctree.TextSpan) []doctree.OutlineEntry {
	var usable []doctree.TextSpan
	for _, s := range spans {
		s.Text = strings.TrimSpace(s.Text)
		if utf8.RuneCountInString(s.Text) > minSpanLen {
			usable = append(usable, s)
		}
	}
	if len(usable) == 0 {
		return nil
	}

	stats, ok := computeFontStats(usable)
	if !ok {
		return nil
	}

	candidates := scoreCandidates(usable, stats)
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].fontSize > candidates[j].fontSize
	})

	out := selectEntries(candidates)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Page != out[j].Page {
			return out[i].Page < out[j].Page
		}
		return out[i].Text < out[j].Text
	})
	return out
}

func scoreCandidates(spans []doctree.TextSpan, stats fontStats) []candidate {
	var out []candidate
	for _, s := range spans {
		if !IsLikelyHeader(s.Text) {
			continue
		}
		score := scoreSpan(s.Text, s.FontSize, s.Bold, stats)
		if score < minCandidateScore {
			continue
		}
		out = append(out, candidate{
			text:     s.Text,
			level:    assignLevel(s.Text, s.FontSize, s.Bold, stats),
			page:     s.Page,
			score:    score,
			fontSize: s.FontSize,
		})
	}
	return out
}

// selectEntries walks candidates in rank order and applies the duplicate,
// near-duplicate and per-page filters.
func selectEntries(ranked []candidate) []doctree.OutlineEntry {
	var (
		out     []doctree.OutlineEntry
		seen    []string
		perPage = make(map[int]int)
	)
	for _, c := range ranked {
		norm := strings.ToLower(strings.TrimSpace(c.text))
		if isNearDuplicate(norm, seen) {
			continue
		}
		if perPage[c.page] >= maxEntriesPerPage {
			continue
		}

		out = append(out, doctree.OutlineEntry{
			Level: c.level,
			Text:  c.text + entrySuffix,
			Page:  c.page - 1,
		})
		seen = append(seen, norm)
		perPage[c.page]++

		if len(out) >= maxEntries {
			break
		}
	}
	return out
}

// isNearDuplicate reports an exact match, or containment in either direction
// when the contained string is short.
func isNearDuplicate(norm string, seen []string) bool {
	n := utf8.RuneCountInString(norm)
	for _, s := range seen {
		if s == norm {
			return true
		}
		if n < nearDuplicateLen && strings.Contains(s, norm) {
			return true
		}
		if utf8.RuneCountInString(s) < nearDuplicateLen && strings.Contains(norm, s) {
			return true
		}
	}
	return false
}

// PageFallback is the outline used when heuristic detection cannot complete:
// one "Page N" entry for each of the first pages that carry any text.
func PageFallback(layout *doctree.Layout) []doctree.OutlineEntry {
	var out []doctree.OutlineEntry
	for i := 0; i < min(layout.PageCount(), fallbackMaxPages); i++ {
		if !pageHasText(layout.Pages[i]) {
			continue
		}
		out = append(out, doctree.OutlineEntry{
			Level: doctree.H1,
			Text:  fmt.Sprintf("Page %d", i+1),
			Page:  i,
		})
	}
	return out
}

func pageHasText(spans []doctree.TextSpan) bool {
	for _, s := range spans {
		if strings.TrimSpace(s.Text) != "" {
			return true
		}
	}
	return false
}
