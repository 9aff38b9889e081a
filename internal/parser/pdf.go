package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"reflect"
	"strings"

	"github.com/dgallion1/docdots/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
)

const (
	defaultPageHeight = 792
	maxBookmarks      = 4096
	baselineTolerance = 0.5
	wordGapRatio      = 0.2
)

// PDFParser handles PDF files. It tries the Go library first,
// then falls back to pdftotext if enabled.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*doctree.Layout, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	layout, err := decodePDF(data)
	if errors.Is(err, ErrNoPages) {
		return nil, err
	}
	if (err != nil || !hasSpans(layout)) && p.FallbackPdftotext {
		fallback, ferr := pdftotextLayout(data)
		if ferr == nil && hasSpans(fallback) {
			if layout != nil {
				fallback.MetadataTitle = layout.MetadataTitle
				fallback.Bookmarks = layout.Bookmarks
				fallback.Warnings = append(layout.Warnings, "text recovered with pdftotext")
			}
			return fallback, nil
		}
		if err == nil {
			err = ferr
		}
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	return layout, nil
}

// decodePDF extracts metadata, bookmarks and spans with ledongthuc/pdf.
// The library panics on some malformed inputs; those are turned into errors,
// or into per-page warnings when only one page is affected.
func decodePDF(data []byte) (layout *doctree.Layout, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf decoder panic: %v", rec)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	n := reader.NumPage()
	if n == 0 {
		return nil, ErrNoPages
	}

	layout = &doctree.Layout{Pages: make([][]doctree.TextSpan, n)}
	layout.MetadataTitle = safeText(func() string {
		return reader.Trailer().Key("Info").Key("Title").Text()
	})

	pageRefs := make([]pdflib.Value, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		pageRefs[i-1] = page.V
		if page.V.IsNull() {
			continue
		}
		spans, perr := pageSpans(page, i)
		if perr != nil {
			layout.Warnings = append(layout.Warnings, fmt.Sprintf("page %d: %v", i, perr))
			continue
		}
		layout.Pages[i-1] = spans
	}

	bookmarks, berr := readBookmarks(reader, pageRefs)
	if berr != nil {
		layout.Warnings = append(layout.Warnings, fmt.Sprintf("bookmarks: %v", berr))
	}
	layout.Bookmarks = bookmarks
	return layout, nil
}

func pageSpans(page pdflib.Page, num int) (spans []doctree.TextSpan, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("content decode panic: %v", rec)
		}
	}()
	content := page.Content()
	return groupRuns(content.Text, num, pageHeight(page.V)), nil
}

// groupRuns merges consecutive glyphs that share font, size and baseline into
// spans. PDF coordinates grow upwards; the bbox is flipped to top-down.
func groupRuns(glyphs []pdflib.Text, page int, height float64) []doctree.TextSpan {
	var (
		out   []doctree.TextSpan
		cur   strings.Builder
		run   pdflib.Text
		lastX float64
		open  bool
	)
	flush := func() {
		if !open {
			return
		}
		if text := strings.TrimSpace(cur.String()); text != "" {
			out = append(out, doctree.TextSpan{
				Text:     text,
				FontSize: run.FontSize,
				Bold:     isBoldFont(run.Font),
				Page:     page,
				BBox: doctree.BBox{
					X0: run.X,
					Y0: height - (run.Y + run.FontSize),
					X1: lastX,
					Y1: height - run.Y,
				},
			})
		}
		cur.Reset()
		open = false
	}

	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		sameRun := open &&
			g.Font == run.Font &&
			math.Abs(g.FontSize-run.FontSize) < baselineTolerance &&
			math.Abs(g.Y-run.Y) < baselineTolerance
		if !sameRun {
			flush()
			run = g
			open = true
		} else if gap := g.X - lastX; gap > g.FontSize*wordGapRatio && !strings.HasSuffix(cur.String(), " ") {
			cur.WriteByte(' ')
		}
		cur.WriteString(g.S)
		lastX = g.X + g.W
	}
	flush()
	return out
}

func isBoldFont(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "bold") || strings.Contains(lower, "black") || strings.Contains(lower, "heavy")
}

// pageHeight reads the MediaBox, following inheritance through the page tree.
func pageHeight(v pdflib.Value) float64 {
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		box := v.Key("MediaBox")
		if box.Kind() == pdflib.Array && box.Len() == 4 {
			if h := box.Index(3).Float64() - box.Index(1).Float64(); h > 0 {
				return h
			}
		}
		v = v.Key("Parent")
	}
	return defaultPageHeight
}

// readBookmarks walks the Outlines tree depth-first. Destinations that cannot
// be resolved to a page map to page 1.
func readBookmarks(reader *pdflib.Reader, pages []pdflib.Value) (out []doctree.Bookmark, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("outline decode panic: %v", rec)
		}
	}()

	root := reader.Trailer().Key("Root")
	budget := maxBookmarks

	var walk func(item pdflib.Value, depth int)
	walk = func(item pdflib.Value, depth int) {
		for ; !item.IsNull() && budget > 0; item = item.Key("Next") {
			budget--
			out = append(out, doctree.Bookmark{
				Level: depth,
				Title: strings.TrimSpace(item.Key("Title").Text()),
				Page:  resolvePage(root, item, pages),
			})
			walk(item.Key("First"), depth+1)
		}
	}
	walk(root.Key("Outlines").Key("First"), 1)
	return out, nil
}

func resolvePage(root, item pdflib.Value, pages []pdflib.Value) int {
	dest := item.Key("Dest")
	if dest.IsNull() {
		if action := item.Key("A"); action.Key("S").Name() == "GoTo" {
			dest = action.Key("D")
		}
	}
	switch dest.Kind() {
	case pdflib.Name:
		dest = namedDest(root, dest.Name())
	case pdflib.String:
		dest = namedDest(root, dest.RawString())
	}
	if dest.Kind() == pdflib.Dict {
		dest = dest.Key("D")
	}
	if dest.Kind() != pdflib.Array || dest.Len() == 0 {
		return 1
	}

	target := dest.Index(0)
	if target.Kind() == pdflib.Integer {
		return int(target.Int64()) + 1
	}
	for i, p := range pages {
		if reflect.DeepEqual(p, target) {
			return i + 1
		}
	}
	return 1
}

// namedDest looks a destination up in the legacy Dests dictionary, then in the
// Names/Dests name tree.
func namedDest(root pdflib.Value, name string) pdflib.Value {
	if d := root.Key("Dests").Key(name); !d.IsNull() {
		return d
	}
	return lookupNameTree(root.Key("Names").Key("Dests"), name, 0)
}

func lookupNameTree(node pdflib.Value, name string, depth int) pdflib.Value {
	if node.IsNull() || depth > 32 {
		return pdflib.Value{}
	}
	names := node.Key("Names")
	for i := 0; i+1 < names.Len(); i += 2 {
		if names.Index(i).RawString() == name {
			return names.Index(i + 1)
		}
	}
	kids := node.Key("Kids")
	for i := 0; i < kids.Len(); i++ {
		if v := lookupNameTree(kids.Index(i), name, depth+1); !v.IsNull() {
			return v
		}
	}
	return pdflib.Value{}
}

func safeText(f func() string) (s string) {
	defer func() {
		if recover() != nil {
			s = ""
		}
	}()
	return strings.TrimSpace(f())
}

func hasSpans(layout *doctree.Layout) bool {
	if layout == nil {
		return false
	}
	for _, p := range layout.Pages {
		if len(p) > 0 {
			return true
		}
	}
	return false
}

// pdftotextLayout produces one span per non-empty line, split into pages on
// form feeds. pdftotext reports no fonts, so every span has size 0.
func pdftotextLayout(data []byte) (*doctree.Layout, error) {
	tmp, err := os.CreateTemp("", "docdots-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	out, err := exec.Command("pdftotext", "-layout", tmpPath, "-").Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return splitPdftotext(string(out))
}

func splitPdftotext(text string) (*doctree.Layout, error) {
	pages := strings.Split(strings.TrimRight(text, "\f"), "\f")
	layout := &doctree.Layout{Pages: make([][]doctree.TextSpan, len(pages))}
	for i, page := range pages {
		y := 0.0
		for _, line := range strings.Split(page, "\n") {
			y += bodyFontSize * lineSpacing
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			layout.Pages[i] = append(layout.Pages[i], doctree.TextSpan{
				Text: line,
				Page: i + 1,
				BBox: doctree.BBox{X0: flowLeft, Y0: y, X1: flowRight, Y1: y + bodyFontSize},
			})
		}
	}
	if !hasSpans(layout) {
		return nil, ErrNoPages
	}
	return layout, nil
}
