package doctree

import "time"

// BBox is a span's bounding box in top-down page coordinates.
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// TextSpan is a contiguous run of text sharing one font, size and style.
type TextSpan struct {
	Text     string  `json:"text"`
	FontSize float64 `json:"font_size"`
	Bold     bool    `json:"bold"`
	Page     int     `json:"page"` // 1-based
	BBox     BBox    `json:"bbox"`
}

// Bookmark is one entry of a document's native table of contents.
type Bookmark struct {
	Level int    `json:"level"`
	Title string `json:"title"`
	Page  int    `json:"page"` // 1-based
}

// Layout is the decoded layout of one document.
type Layout struct {
	MetadataTitle string
	Pages         [][]TextSpan
	Bookmarks     []Bookmark
	Warnings      []string // pages or objects that could not be decoded
}

// PageCount returns the number of pages.
func (l *Layout) PageCount() int {
	return len(l.Pages)
}

// Spans returns the spans of a 1-based page, or nil when out of range.
func (l *Layout) Spans(page int) []TextSpan {
	if page < 1 || page > len(l.Pages) {
		return nil
	}
	return l.Pages[page-1]
}

// AllSpans returns every span in page order.
func (l *Layout) AllSpans() []TextSpan {
	var out []TextSpan
	for _, p := range l.Pages {
		out = append(out, p...)
	}
	return out
}

// Level is a heading level, "H1" through "H6".
type Level string

const (
	H1 Level = "H1"
	H2 Level = "H2"
	H3 Level = "H3"
	H4 Level = "H4"
	H5 Level = "H5"
	H6 Level = "H6"
)

var levels = [...]Level{H1, H2, H3, H4, H5, H6}

// LevelFor maps a numeric depth to a Level, clamped to H1..H6.
func LevelFor(depth int) Level {
	if depth < 1 {
		depth = 1
	}
	if depth > len(levels) {
		depth = len(levels)
	}
	return levels[depth-1]
}

// OutlineEntry is one heading in a document outline.
type OutlineEntry struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
	Page  int    `json:"page"`
}

// Status is the processing state of a document.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusProcessing},
}

// CanTransition reports whether a document may move from s to next.
// Completed is terminal; failed may only re-enter processing (retry).
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Section is one retrievable unit of a document, derived from an outline entry.
type Section struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Number     int       `json:"section_number"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Page       *int      `json:"page_number"`
	Embedding  []float32 `json:"-"`
	Snippet    string    `json:"snippet"`
}

// Document is an uploaded document and everything derived from it.
type Document struct {
	ID               string         `json:"id"`
	Filename         string         `json:"filename"`
	OriginalFilename string         `json:"original_filename"`
	FilePath         string         `json:"-"`
	FileSize         int64          `json:"file_size"`
	ContentHash      string         `json:"content_hash,omitempty"`
	UploadedAt       time.Time      `json:"upload_time"`
	Title            string         `json:"title,omitempty"`
	Outline          []OutlineEntry `json:"outline"`
	TotalSections    int            `json:"total_sections"`
	Status           Status         `json:"processing_status"`
	Error            string         `json:"error,omitempty"`
}

// DisplayTitle returns the title, or the original filename when no title was inferred.
func (d *Document) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.OriginalFilename
}

// IndexedSection is a section joined with the document fields retrieval needs.
type IndexedSection struct {
	Section
	DocumentTitle    string
	DocumentFilename string
}
