package retrieval

import "math"

// View is the wire shape of a Result.
type View struct {
	SectionID        string  `json:"sectionId"`
	DocumentID       string  `json:"documentId"`
	DocumentTitle    string  `json:"documentTitle"`
	DocumentFilename string  `json:"documentFilename"`
	SectionTitle     string  `json:"sectionTitle"`
	Snippet          string  `json:"snippet"`
	Page             *int    `json:"page"`
	Score            float64 `json:"score"`
	Method           string  `json:"method"`
}

// View renders r with its score rounded to 4 decimals.
func (r Result) View() View {
	return View{
		SectionID:        r.Section.ID,
		DocumentID:       r.Section.DocumentID,
		DocumentTitle:    r.Section.DocumentTitle,
		DocumentFilename: r.Section.DocumentFilename,
		SectionTitle:     r.Section.Title,
		Snippet:          r.Section.Snippet,
		Page:             r.Section.Page,
		Score:            math.Round(r.Score*10000) / 10000,
		Method:           r.Method,
	}
}

// Views renders a result list.
func Views(results []Result) []View {
	out := make([]View, len(results))
	for i, r := range results {
		out[i] = r.View()
	}
	return out
}
