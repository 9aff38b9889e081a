package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgallion1/docdots/internal/doctree"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// The embedding column has no fixed dimension so that switching embedding
// models does not require a migration.
const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
	id                TEXT PRIMARY KEY,
	filename          TEXT NOT NULL,
	original_filename TEXT NOT NULL,
	file_path         TEXT NOT NULL DEFAULT '',
	file_size         BIGINT NOT NULL DEFAULT 0,
	content_hash      TEXT NOT NULL DEFAULT '',
	uploaded_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	title             TEXT NOT NULL DEFAULT '',
	outline           JSONB NOT NULL DEFAULT '[]',
	total_sections    INTEGER NOT NULL DEFAULT 0,
	processing_status TEXT NOT NULL DEFAULT 'pending',
	error             TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sections (
	id             TEXT PRIMARY KEY,
	document_id    TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	section_number INTEGER NOT NULL,
	title          TEXT NOT NULL,
	content        TEXT NOT NULL,
	page_number    INTEGER,
	snippet        TEXT NOT NULL DEFAULT '',
	embedding      vector
);

CREATE INDEX IF NOT EXISTS sections_document_idx ON sections (document_id, section_number);
CREATE INDEX IF NOT EXISTS documents_status_idx ON documents (processing_status, uploaded_at);
`

const documentColumns = `id, filename, original_filename, file_path, file_size, content_hash,
	uploaded_at, title, outline, total_sections, processing_status, error`

const indexedSectionQuery = `
SELECT s.id, s.document_id, s.section_number, s.title, s.content, s.page_number, s.snippet, s.embedding,
	COALESCE(NULLIF(d.title, ''), d.original_filename), d.original_filename
FROM sections s
JOIN documents d ON d.id = s.document_id`

// Postgres is a Store backed by PostgreSQL with pgvector.
type Postgres struct {
	pool *pgxpool.Pool
}

// Connect opens a pool, verifies it and bootstraps the schema.
func Connect(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *Postgres) CreateDocument(ctx context.Context, doc *doctree.Document) error {
	if doc.Status == "" {
		doc.Status = doctree.StatusPending
	}
	outline, err := json.Marshal(nonNilOutline(doc.Outline))
	if err != nil {
		return fmt.Errorf("failed to marshal outline: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		doc.ID, doc.Filename, doc.OriginalFilename, doc.FilePath, doc.FileSize, doc.ContentHash,
		doc.UploadedAt, doc.Title, outline, doc.TotalSections, string(doc.Status), doc.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (p *Postgres) GetDocument(ctx context.Context, id string) (*doctree.Document, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (p *Postgres) ListDocuments(ctx context.Context) ([]doctree.Document, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var out []doctree.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		out = append(out, *doc)
	}
	return out, rows.Err()
}

func (p *Postgres) SetStatus(ctx context.Context, id string, status doctree.Status) error {
	return p.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockTransition(ctx, tx, id, status); err != nil {
			return err
		}
		query := `UPDATE documents SET processing_status = $2 WHERE id = $1`
		if status == doctree.StatusProcessing {
			query = `UPDATE documents SET processing_status = $2, error = '' WHERE id = $1`
		}
		_, err := tx.Exec(ctx, query, id, string(status))
		return err
	})
}

func (p *Postgres) Complete(ctx context.Context, id, title string, outline []doctree.OutlineEntry, sections []doctree.Section) error {
	outlineJSON, err := json.Marshal(nonNilOutline(outline))
	if err != nil {
		return fmt.Errorf("failed to marshal outline: %w", err)
	}

	return p.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockTransition(ctx, tx, id, doctree.StatusCompleted); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM sections WHERE document_id = $1`, id); err != nil {
			return fmt.Errorf("failed to clear sections: %w", err)
		}

		batch := &pgx.Batch{}
		for _, s := range sections {
			batch.Queue(
				`INSERT INTO sections (id, document_id, section_number, title, content, page_number, snippet, embedding)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				s.ID, id, s.Number, s.Title, s.Content, s.Page, s.Snippet, vectorArg(s.Embedding),
			)
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("failed to insert sections: %w", err)
			}
		}

		_, err := tx.Exec(ctx,
			`UPDATE documents
			 SET title = $2, outline = $3, total_sections = $4, error = '', processing_status = $5
			 WHERE id = $1`,
			id, title, outlineJSON, len(sections), string(doctree.StatusCompleted),
		)
		return err
	})
}

func (p *Postgres) Fail(ctx context.Context, id, reason string) error {
	return p.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockTransition(ctx, tx, id, doctree.StatusFailed); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM sections WHERE document_id = $1`, id); err != nil {
			return fmt.Errorf("failed to clear sections: %w", err)
		}
		_, err := tx.Exec(ctx,
			`UPDATE documents
			 SET outline = '[]', total_sections = 0, error = $2, processing_status = $3
			 WHERE id = $1`,
			id, reason, string(doctree.StatusFailed),
		)
		return err
	})
}

func (p *Postgres) DeleteDocument(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Sections(ctx context.Context, documentID string) ([]doctree.Section, error) {
	var exists bool
	if err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, documentID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check document: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := p.pool.Query(ctx, indexedSectionQuery+` WHERE s.document_id = $1 ORDER BY s.section_number`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	indexed, err := collectIndexed(rows)
	if err != nil {
		return nil, err
	}
	out := make([]doctree.Section, len(indexed))
	for i, s := range indexed {
		out[i] = s.Section
	}
	return out, nil
}

func (p *Postgres) CompletedSections(ctx context.Context) ([]doctree.IndexedSection, error) {
	rows, err := p.pool.Query(ctx,
		indexedSectionQuery+` WHERE d.processing_status = $1 ORDER BY d.uploaded_at, d.id, s.section_number`,
		string(doctree.StatusCompleted),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed sections: %w", err)
	}
	return collectIndexed(rows)
}

func (p *Postgres) SectionsByID(ctx context.Context, ids []string) ([]doctree.IndexedSection, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx, indexedSectionQuery+` WHERE s.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get sections: %w", err)
	}
	found, err := collectIndexed(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]doctree.IndexedSection, len(found))
	for _, s := range found {
		byID[s.ID] = s
	}
	var out []doctree.IndexedSection
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (p *Postgres) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// lockTransition row-locks the document and validates the status change.
func lockTransition(ctx context.Context, tx pgx.Tx, id string, to doctree.Status) error {
	var current string
	err := tx.QueryRow(ctx, `SELECT processing_status FROM documents WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to lock document: %w", err)
	}
	return checkTransition(id, doctree.Status(current), to)
}

func scanDocument(row pgx.Row) (*doctree.Document, error) {
	var (
		d       doctree.Document
		outline []byte
		status  string
	)
	err := row.Scan(&d.ID, &d.Filename, &d.OriginalFilename, &d.FilePath, &d.FileSize, &d.ContentHash,
		&d.UploadedAt, &d.Title, &outline, &d.TotalSections, &status, &d.Error)
	if err != nil {
		return nil, err
	}
	d.Status = doctree.Status(status)
	if len(outline) > 0 {
		if err := json.Unmarshal(outline, &d.Outline); err != nil {
			return nil, fmt.Errorf("failed to decode outline: %w", err)
		}
	}
	return &d, nil
}

func collectIndexed(rows pgx.Rows) ([]doctree.IndexedSection, error) {
	defer rows.Close()
	var out []doctree.IndexedSection
	for rows.Next() {
		var (
			s         doctree.IndexedSection
			embedding *pgvector.Vector
		)
		err := rows.Scan(&s.ID, &s.DocumentID, &s.Number, &s.Title, &s.Content, &s.Page, &s.Snippet, &embedding,
			&s.DocumentTitle, &s.DocumentFilename)
		if err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		if embedding != nil {
			s.Embedding = embedding.Slice()
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func vectorArg(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

func nonNilOutline(o []doctree.OutlineEntry) []doctree.OutlineEntry {
	if o == nil {
		return []doctree.OutlineEntry{}
	}
	return o
}
