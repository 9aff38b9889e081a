// Package store persists documents and their sections.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgallion1/docdots/internal/doctree"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store is the persistence collaborator of the pipeline and the retrieval
// engine. Sections of a document become visible to CompletedSections in the
// same step that marks the document completed.
type Store interface {
	CreateDocument(ctx context.Context, doc *doctree.Document) error
	GetDocument(ctx context.Context, id string) (*doctree.Document, error)
	// ListDocuments returns every document, newest first.
	ListDocuments(ctx context.Context) ([]doctree.Document, error)
	SetStatus(ctx context.Context, id string, status doctree.Status) error
	// Complete stores the outline and sections and marks the document completed.
	Complete(ctx context.Context, id, title string, outline []doctree.OutlineEntry, sections []doctree.Section) error
	// Fail marks the document failed and drops any derived data.
	Fail(ctx context.Context, id, reason string) error
	DeleteDocument(ctx context.Context, id string) error
	Sections(ctx context.Context, documentID string) ([]doctree.Section, error)
	// CompletedSections returns every section of every completed document in
	// upload order, then section number.
	CompletedSections(ctx context.Context) ([]doctree.IndexedSection, error)
	// SectionsByID returns the requested sections in request order; unknown ids
	// are skipped.
	SectionsByID(ctx context.Context, ids []string) ([]doctree.IndexedSection, error)
	Close()
}

func checkTransition(id string, from, to doctree.Status) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("document %s: %w: %s -> %s", id, ErrInvalidTransition, from, to)
	}
	return nil
}

func copySection(s doctree.Section) doctree.Section {
	if s.Page != nil {
		p := *s.Page
		s.Page = &p
	}
	if s.Embedding != nil {
		s.Embedding = append([]float32(nil), s.Embedding...)
	}
	return s
}

func copyDocument(d doctree.Document) doctree.Document {
	if d.Outline != nil {
		d.Outline = append([]doctree.OutlineEntry(nil), d.Outline...)
	}
	return d
}

// Open returns a Postgres store for databaseURL, or an in-memory store when
// databaseURL is empty.
func Open(ctx context.Context, databaseURL string) (Store, error) {
	if databaseURL == "" {
		return NewMemory(), nil
	}
	pg, err := Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return pg, nil
}
