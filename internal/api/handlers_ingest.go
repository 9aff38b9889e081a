package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/docdots/internal/doctree"
	"github.com/dgallion1/docdots/internal/parser"
	"github.com/dgallion1/docdots/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// uploadResult is the per-file outcome of an upload request.
type uploadResult struct {
	Filename   string         `json:"filename"`
	Success    bool           `json:"success"`
	DocumentID string         `json:"document_id,omitempty"`
	JobID      string         `json:"job_id,omitempty"`
	Status     doctree.Status `json:"status,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// handleUpload accepts one or more multipart "files" (or a single "file").
// Each file is saved, recorded as pending and queued independently.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := append(r.MultipartForm.File["files"], r.MultipartForm.File["file"]...)
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	results := make([]uploadResult, 0, len(files))
	ok := 0
	for _, fh := range files {
		res := s.acceptUpload(r, fh)
		if res.Success {
			ok++
		}
		results = append(results, res)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"total_files":        len(files),
		"successful_uploads": ok,
		"results":            results,
	})
}

func (s *Server) acceptUpload(r *http.Request, fh *multipart.FileHeader) uploadResult {
	filename := sanitizeFilename(fh.Filename)
	res := uploadResult{Filename: filename}
	if !parser.IsSupportedExtension(filename) {
		res.Error = fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename))
		return res
	}

	f, err := fh.Open()
	if err != nil {
		res.Error = "failed to open file"
		return res
	}
	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	f.Close()
	if err != nil {
		res.Error = "failed to read file"
		return res
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		res.Error = fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
		return res
	}

	docID := uuid.NewString()
	stored := docID + strings.ToLower(filepath.Ext(filename))
	path := filepath.Join(s.cfg.UploadDir, stored)
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		s.log.Error("create upload dir", "error", err)
		res.Error = "failed to save file"
		return res
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.log.Error("save upload", "path", path, "error", err)
		res.Error = "failed to save file"
		return res
	}

	doc := &doctree.Document{
		ID:               docID,
		Filename:         stored,
		OriginalFilename: filename,
		FilePath:         path,
		FileSize:         int64(len(data)),
		ContentHash:      pipeline.ContentHashHex(data),
		UploadedAt:       time.Now().UTC(),
		Status:           doctree.StatusPending,
	}
	if err := s.store.CreateDocument(r.Context(), doc); err != nil {
		s.log.Error("create document", "doc_id", docID, "error", err)
		os.Remove(path)
		res.Error = "failed to record document"
		return res
	}

	job := pipeline.NewJob(uuid.NewString(), docID, filename, data)
	if err := s.orchestrator.Submit(job); err != nil {
		// Marked failed so it can be retried later.
		if ferr := s.store.Fail(r.Context(), docID, err.Error()); ferr != nil {
			s.log.Error("record queue failure", "doc_id", docID, "error", ferr)
		}
		res.DocumentID = docID
		res.Error = err.Error()
		return res
	}

	res.Success = true
	res.DocumentID = docID
	res.JobID = job.ID
	res.Status = doctree.StatusPending
	return res
}

// handleRetry requeues a failed document from its saved file.
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	if doc.Status != doctree.StatusFailed {
		jsonError(w, fmt.Sprintf("document is %s; only failed documents can be retried", doc.Status), http.StatusConflict)
		return
	}
	data, err := os.ReadFile(doc.FilePath)
	if err != nil {
		jsonError(w, "stored file is missing", http.StatusGone)
		return
	}

	job := pipeline.NewJob(uuid.NewString(), doc.ID, doc.OriginalFilename, data)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"document_id": doc.ID,
		"job_id":      job.ID,
		"poll_url":    fmt.Sprintf("/api/jobs/%s", job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
