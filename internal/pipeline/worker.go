package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docdots/internal/doctree"
	"github.com/dgallion1/docdots/internal/parser"
	"github.com/dgallion1/docdots/internal/sections"
	"github.com/dgallion1/docdots/internal/store"
)

// Embedder produces a vector for text, or nil when none is available.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

// Worker processes a single document job.
type Worker struct {
	store    store.Store
	embedder Embedder
	log      *slog.Logger
	opts     parser.Options

	maxConcurrentEmbed int
}

func NewWorker(st store.Store, embedder Embedder, log *slog.Logger, opts parser.Options, maxEmbed int) *Worker {
	return &Worker{
		store:              st,
		embedder:           embedder,
		log:                log,
		opts:               opts,
		maxConcurrentEmbed: max(1, maxEmbed),
	}
}

// Process runs the full pipeline for a job. The document either ends up
// completed with its outline and sections published together, or failed with
// nothing stored.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)
	defer job.releaseFileData()

	if err := w.store.SetStatus(ctx, job.DocID, doctree.StatusProcessing); err != nil {
		// A document left pending would never be picked up again.
		if w.isPending(ctx, job.DocID) {
			w.fail(ctx, log, job, "starting", err)
			return
		}
		log.Error("cannot start processing", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "starting")
		return
	}

	// Phase 1: Parse and outline
	job.SetStatus(StatusParsing, "parsing")
	analysis, err := Analyze(job.FileData(), job.Filename, w.opts)
	if err != nil {
		w.fail(ctx, log, job, "parsing", err)
		return
	}
	for _, warning := range analysis.Warnings {
		log.Warn("document degraded", "warning", warning)
	}
	job.SetTitle(analysis.Title)
	log.Info("outline detected", "pages", analysis.PageCount, "entries", len(analysis.Outline))

	// Phase 2: Sections
	job.SetStatus(StatusSectioning, "sections")
	secs := sections.Build(job.DocID, analysis.Outline)
	job.SetTotalSections(len(secs))

	// Phase 3: Embeddings, best effort
	job.SetStatus(StatusEmbedding, "embedding")
	if err := w.embedSections(ctx, job, secs); err != nil {
		w.fail(ctx, log, job, "embedding", err)
		return
	}

	// Phase 4: Publish
	job.SetStatus(StatusStoring, "storing")
	if err := w.store.Complete(ctx, job.DocID, analysis.Title, analysis.Outline, secs); err != nil {
		w.fail(ctx, log, job, "storing", err)
		return
	}

	job.SetStatus(StatusCompleted, "done")
	log.Info("document processed", "sections", len(secs))
}

// embedSections fills in section embeddings with bounded concurrency. A
// section whose embedding is unavailable keeps a nil vector; only
// cancellation is an error.
func (w *Worker) embedSections(ctx context.Context, job *Job, secs []doctree.Section) error {
	if w.embedder == nil {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.maxConcurrentEmbed)
	for i := range secs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			secs[i].Embedding = w.embedder.Embed(gctx, sections.EmbeddingText(secs[i]))
			job.IncrSectionsEmbedded()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (w *Worker) isPending(ctx context.Context, docID string) bool {
	doc, err := w.store.GetDocument(context.WithoutCancel(ctx), docID)
	return err == nil && doc.Status == doctree.StatusPending
}

func (w *Worker) fail(ctx context.Context, log *slog.Logger, job *Job, phase string, err error) {
	log.Error("processing failed", "phase", phase, "error", err)
	job.AddError(fmt.Sprintf("%s: %s", phase, err))
	job.SetStatus(StatusFailed, phase)
	if ferr := w.store.Fail(context.WithoutCancel(ctx), job.DocID, err.Error()); ferr != nil {
		log.Error("cannot record failure", "error", ferr)
	}
}
