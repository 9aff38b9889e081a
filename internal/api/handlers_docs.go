package api

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docdots/internal/doctree"
	"github.com/dgallion1/docdots/internal/store"
	"github.com/go-chi/chi/v5"
)

// handleListDocuments lists the library, newest first.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	for i := range docs {
		if docs[i].Outline == nil {
			docs[i].Outline = []doctree.OutlineEntry{}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	secs, err := s.store.Sections(r.Context(), doc.ID)
	if err != nil {
		jsonError(w, "failed to load sections: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if doc.Outline == nil {
		doc.Outline = []doctree.OutlineEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document": doc,
		"sections": secs,
	})
}

// handleGetOutline returns the batch-style {title, outline} of a document.
func (s *Server) handleGetOutline(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	if doc.Status != doctree.StatusCompleted {
		jsonError(w, fmt.Sprintf("document is %s", doc.Status), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"title":   doc.Title,
		"outline": doc.Outline,
	})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	f, err := os.Open(doc.FilePath)
	if err != nil {
		jsonError(w, "stored file is missing", http.StatusNotFound)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		jsonError(w, "stored file is unreadable", http.StatusInternalServerError)
		return
	}

	if ct := mime.TypeByExtension(filepath.Ext(doc.OriginalFilename)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": doc.OriginalFilename}))
	http.ServeContent(w, r, doc.OriginalFilename, info.ModTime(), f)
}

// handleDeleteDocument removes a document, its sections and its saved file.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteDocument(r.Context(), doc.ID); err != nil {
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusInternalServerError)
		return
	}
	fileDeleted := true
	if err := os.Remove(doc.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("remove stored file", "doc_id", doc.ID, "path", doc.FilePath, "error", err)
		fileDeleted = false
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document_id":  doc.ID,
		"deleted":      true,
		"file_deleted": fileDeleted,
	})
}

// sectionView is a section with the document fields downstream consumers need.
type sectionView struct {
	doctree.Section
	DocumentTitle    string `json:"document_title"`
	DocumentFilename string `json:"document_filename"`
}

// handleSectionsByID returns the sections named in ?ids=a,b in request order.
func (s *Server) handleSectionsByID(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		jsonError(w, "ids query parameter is required", http.StatusBadRequest)
		return
	}
	found, err := s.store.SectionsByID(r.Context(), ids)
	if err != nil {
		jsonError(w, "failed to load sections: "+err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]sectionView, len(found))
	for i, sec := range found {
		out[i] = sectionView{Section: sec.Section, DocumentTitle: sec.DocumentTitle, DocumentFilename: sec.DocumentFilename}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sections": out})
}

func (s *Server) loadDocument(w http.ResponseWriter, r *http.Request) (*doctree.Document, bool) {
	docID := chi.URLParam(r, "docID")
	doc, err := s.store.GetDocument(r.Context(), docID)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		jsonError(w, "failed to load document: "+err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return doc, true
}
