package store

import (
	"context"
	"sort"
	"sync"

	"github.com/dgallion1/docdots/internal/doctree"
)

// Memory is an in-process Store. It hands out copies, so callers never share
// state with the store.
type Memory struct {
	mu       sync.RWMutex
	docs     map[string]*doctree.Document
	sections map[string][]doctree.Section // by document id, in section order
	seq      map[string]int               // insertion order, for stable scans
	next     int
}

func NewMemory() *Memory {
	return &Memory{
		docs:     make(map[string]*doctree.Document),
		sections: make(map[string][]doctree.Section),
		seq:      make(map[string]int),
	}
}

func (m *Memory) CreateDocument(_ context.Context, doc *doctree.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.Status == "" {
		doc.Status = doctree.StatusPending
	}
	d := copyDocument(*doc)
	m.docs[doc.ID] = &d
	m.seq[doc.ID] = m.next
	m.next++
	return nil
}

func (m *Memory) GetDocument(_ context.Context, id string) (*doctree.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyDocument(*d)
	return &out, nil
}

func (m *Memory) ListDocuments(_ context.Context) ([]doctree.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]doctree.Document, 0, len(m.docs))
	for _, id := range m.orderedIDsLocked() {
		out = append(out, copyDocument(*m.docs[id]))
	}
	// Newest first; insertion order breaks ties.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}

func (m *Memory) SetStatus(_ context.Context, id string, status doctree.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return ErrNotFound
	}
	if err := checkTransition(id, d.Status, status); err != nil {
		return err
	}
	d.Status = status
	if status == doctree.StatusProcessing {
		d.Error = ""
	}
	return nil
}

func (m *Memory) Complete(_ context.Context, id, title string, outline []doctree.OutlineEntry, sections []doctree.Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return ErrNotFound
	}
	if err := checkTransition(id, d.Status, doctree.StatusCompleted); err != nil {
		return err
	}

	stored := make([]doctree.Section, len(sections))
	for i, s := range sections {
		stored[i] = copySection(s)
		stored[i].DocumentID = id
	}
	m.sections[id] = stored

	d.Title = title
	d.Outline = append([]doctree.OutlineEntry(nil), outline...)
	d.TotalSections = len(sections)
	d.Error = ""
	d.Status = doctree.StatusCompleted
	return nil
}

func (m *Memory) Fail(_ context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return ErrNotFound
	}
	if err := checkTransition(id, d.Status, doctree.StatusFailed); err != nil {
		return err
	}
	delete(m.sections, id)
	d.Outline = nil
	d.TotalSections = 0
	d.Error = reason
	d.Status = doctree.StatusFailed
	return nil
}

func (m *Memory) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return ErrNotFound
	}
	delete(m.docs, id)
	delete(m.sections, id)
	delete(m.seq, id)
	return nil
}

func (m *Memory) Sections(_ context.Context, documentID string) ([]doctree.Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.docs[documentID]; !ok {
		return nil, ErrNotFound
	}
	src := m.sections[documentID]
	out := make([]doctree.Section, len(src))
	for i, s := range src {
		out[i] = copySection(s)
	}
	return out, nil
}

func (m *Memory) CompletedSections(_ context.Context) ([]doctree.IndexedSection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.orderedIDsLocked()
	sort.SliceStable(ids, func(i, j int) bool {
		return m.docs[ids[i]].UploadedAt.Before(m.docs[ids[j]].UploadedAt)
	})

	var out []doctree.IndexedSection
	for _, id := range ids {
		d := m.docs[id]
		if d.Status != doctree.StatusCompleted {
			continue
		}
		for _, s := range m.sections[id] {
			out = append(out, m.indexLocked(d, s))
		}
	}
	return out, nil
}

func (m *Memory) SectionsByID(_ context.Context, ids []string) ([]doctree.IndexedSection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byID := make(map[string]doctree.IndexedSection)
	for docID, secs := range m.sections {
		d := m.docs[docID]
		for _, s := range secs {
			byID[s.ID] = m.indexLocked(d, s)
		}
	}
	var out []doctree.IndexedSection
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) Close() {}

func (m *Memory) indexLocked(d *doctree.Document, s doctree.Section) doctree.IndexedSection {
	return doctree.IndexedSection{
		Section:          copySection(s),
		DocumentTitle:    d.DisplayTitle(),
		DocumentFilename: d.OriginalFilename,
	}
}

func (m *Memory) orderedIDsLocked() []string {
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return m.seq[ids[i]] < m.seq[ids[j]] })
	return ids
}
