package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/docdots/internal/config"
	"github.com/dgallion1/docdots/internal/doctree"
	"github.com/dgallion1/docdots/internal/parser"
	"github.com/dgallion1/docdots/internal/store"
)

type countingEmbedder struct {
	calls atomic.Int32
	vec   []float32
}

func (e *countingEmbedder) Embed(_ context.Context, text string) []float32 {
	e.calls.Add(1)
	if text == "" {
		return nil
	}
	return e.vec
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPendingDoc(t *testing.T, st store.Store, id, filename string) {
	t.Helper()
	err := st.CreateDocument(context.Background(), &doctree.Document{
		ID:               id,
		Filename:         filename,
		OriginalFilename: filename,
		UploadedAt:       time.Now(),
		Status:           doctree.StatusPending,
	})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
}

func TestWorker_ProcessCompletes(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	newPendingDoc(t, st, "doc-1", "guide.md")

	emb := &countingEmbedder{vec: []float32{1, 0, 0}}
	w := NewWorker(st, emb, testLogger(), parser.Options{}, 2)
	job := NewJob("job-1", "doc-1", "guide.md", []byte(guideMarkdown))
	w.Process(ctx, job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed job, got %q (%v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.TotalSections != 2 || snap.Progress.SectionsEmbedded != 2 {
		t.Errorf("unexpected progress %+v", snap.Progress)
	}
	if job.FileData() != nil {
		t.Error("expected file data released after processing")
	}

	doc, err := st.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Status != doctree.StatusCompleted || doc.TotalSections != 2 || len(doc.Outline) != 2 {
		t.Errorf("unexpected document %+v", doc)
	}
	if doc.Title != snap.Title {
		t.Errorf("expected stored title %q, got %q", snap.Title, doc.Title)
	}

	secs, err := st.Sections(ctx, "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(secs) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(secs))
	}
	for _, s := range secs {
		if len(s.Embedding) != 3 {
			t.Errorf("section %d: expected embedding, got %v", s.Number, s.Embedding)
		}
	}
	if emb.calls.Load() != 2 {
		t.Errorf("expected 2 embed calls, got %d", emb.calls.Load())
	}
}

func TestWorker_ProcessWithoutEmbedder(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	newPendingDoc(t, st, "doc-1", "notes.txt")

	w := NewWorker(st, nil, testLogger(), parser.Options{}, 1)
	job := NewJob("job-1", "doc-1", "notes.txt", []byte("plain words only"))
	w.Process(ctx, job)

	if s := job.Snapshot().Status; s != StatusCompleted {
		t.Fatalf("expected completed, got %q", s)
	}
	secs, err := st.Sections(ctx, "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(secs) != 1 || secs[0].Embedding != nil {
		t.Errorf("expected one unembedded section, got %+v", secs)
	}
}

func TestWorker_ProcessInputDefectFails(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	newPendingDoc(t, st, "doc-1", "empty.txt")

	w := NewWorker(st, nil, testLogger(), parser.Options{}, 1)
	job := NewJob("job-1", "doc-1", "empty.txt", nil)
	w.Process(ctx, job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "parsing" {
		t.Errorf("expected failed in parsing, got %q/%q", snap.Status, snap.Phase)
	}
	if len(snap.Progress.Errors) != 1 {
		t.Errorf("expected one recorded error, got %v", snap.Progress.Errors)
	}

	doc, err := st.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Status != doctree.StatusFailed || doc.Error == "" || len(doc.Outline) != 0 {
		t.Errorf("unexpected failed document %+v", doc)
	}
	if secs, _ := st.Sections(ctx, "doc-1"); len(secs) != 0 {
		t.Errorf("expected no sections, got %d", len(secs))
	}
}

func TestWorker_ProcessUnknownDocument(t *testing.T) {
	st := store.NewMemory()
	w := NewWorker(st, nil, testLogger(), parser.Options{}, 1)
	job := NewJob("job-1", "missing", "notes.txt", []byte("text"))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "starting" {
		t.Errorf("expected failed at start, got %q/%q", snap.Status, snap.Phase)
	}
}

func TestWorker_ProcessRetryAfterFailure(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	newPendingDoc(t, st, "doc-1", "notes.txt")
	w := NewWorker(st, nil, testLogger(), parser.Options{}, 1)

	w.Process(ctx, NewJob("job-1", "doc-1", "notes.txt", nil))
	w.Process(ctx, NewJob("job-2", "doc-1", "notes.txt", []byte("now with text")))

	doc, err := st.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Status != doctree.StatusCompleted || doc.Error != "" {
		t.Errorf("expected retried document to complete, got %+v", doc)
	}
}

func TestWorker_CancelledContextFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := store.NewMemory()
	newPendingDoc(t, st, "doc-1", "guide.md")

	w := NewWorker(st, &countingEmbedder{vec: []float32{1}}, testLogger(), parser.Options{}, 1)
	job := NewJob("job-1", "doc-1", "guide.md", []byte(guideMarkdown))
	w.Process(ctx, job)

	if s := job.Snapshot().Status; s != StatusFailed {
		t.Errorf("expected failed job, got %q", s)
	}
	doc, err := st.GetDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Status != doctree.StatusFailed {
		t.Errorf("expected failed document, got %q", doc.Status)
	}
}

func TestOrchestrator_SubmitProcesses(t *testing.T) {
	st := store.NewMemory()
	newPendingDoc(t, st, "doc-1", "guide.md")

	cfg := config.Defaults()
	cfg.WorkerCount = 2
	o := NewOrchestrator(cfg, st, nil, testLogger())
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("job-1", "doc-1", "guide.md", []byte(guideMarkdown))
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if o.GetJob("job-1") != job {
		t.Error("expected job to be tracked")
	}

	deadline := time.Now().Add(5 * time.Second)
	for job.Snapshot().Status != StatusCompleted {
		if time.Now().After(deadline) {
			t.Fatalf("job did not complete, status %q", job.Snapshot().Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := config.Defaults()
	cfg.MaxQueueSize = 1
	// Not started, so nothing drains the queue.
	o := NewOrchestrator(cfg, store.NewMemory(), nil, testLogger())

	if err := o.Submit(NewJob("a", "doc-a", "a.txt", nil)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second := NewJob("b", "doc-b", "b.txt", nil)
	if err := o.Submit(second); err == nil {
		t.Fatal("expected queue full error")
	}
	if snap := second.Snapshot(); snap.Status != StatusFailed || snap.Phase != "queue_full" {
		t.Errorf("unexpected rejected job %+v", snap)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}

	o.Stop()
	if err := o.Submit(NewJob("c", "doc-c", "c.txt", nil)); err != ErrStopped {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

// cancelAwareStore rejects status changes on a cancelled context, the way a
// database driver does.
type cancelAwareStore struct {
	*store.Memory
}

func (s cancelAwareStore) SetStatus(ctx context.Context, id string, status doctree.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Memory.SetStatus(ctx, id, status)
}

func (s cancelAwareStore) Fail(ctx context.Context, id, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Memory.Fail(ctx, id, reason)
}

func TestWorker_StartFailureMarksPendingDocumentFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := cancelAwareStore{store.NewMemory()}
	newPendingDoc(t, st, "doc-1", "guide.md")

	w := NewWorker(st, nil, testLogger(), parser.Options{}, 1)
	job := NewJob("job-1", "doc-1", "guide.md", []byte(guideMarkdown))
	w.Process(ctx, job)

	if snap := job.Snapshot(); snap.Status != StatusFailed || snap.Phase != "starting" {
		t.Errorf("expected failed at start, got %q/%q", snap.Status, snap.Phase)
	}
	doc, err := st.GetDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Status != doctree.StatusFailed {
		t.Errorf("expected failed document, got %q", doc.Status)
	}
}

// blockingEmbedder holds every call until its context is cancelled.
type blockingEmbedder struct {
	started chan struct{}
	once    sync.Once
}

func (e *blockingEmbedder) Embed(ctx context.Context, _ string) []float32 {
	e.once.Do(func() { close(e.started) })
	<-ctx.Done()
	return nil
}

func TestOrchestrator_StopFailsQueuedDocuments(t *testing.T) {
	st := cancelAwareStore{store.NewMemory()}
	ids := []string{"doc-1", "doc-2", "doc-3"}
	for _, id := range ids {
		newPendingDoc(t, st, id, "guide.md")
	}

	cfg := config.Defaults()
	cfg.WorkerCount = 1
	emb := &blockingEmbedder{started: make(chan struct{})}
	o := NewOrchestrator(cfg, st, emb, testLogger())
	o.Start(context.Background())

	for i, id := range ids {
		job := NewJob(fmt.Sprintf("job-%d", i+1), id, "guide.md", []byte(guideMarkdown))
		if err := o.Submit(job); err != nil {
			t.Fatalf("submit %s: %v", id, err)
		}
	}

	select {
	case <-emb.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first job never reached embedding")
	}
	o.Stop()

	for i, id := range ids {
		doc, err := st.GetDocument(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if doc.Status != doctree.StatusFailed {
			t.Errorf("%s: expected failed, got %q", id, doc.Status)
		}
		if snap := o.GetJob(fmt.Sprintf("job-%d", i+1)).Snapshot(); snap.Status != StatusFailed {
			t.Errorf("job-%d: expected failed, got %q", i+1, snap.Status)
		}
	}
	if o.QueueDepth() != 0 {
		t.Errorf("expected drained queue, got %d", o.QueueDepth())
	}
}
