package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/dgallion1/docdots/internal/embed"
	"github.com/dgallion1/docdots/internal/retrieval"
	"github.com/go-playground/validator/v10"
)

type connectDotsRequest struct {
	SelectedText string `json:"selected_text" validate:"required"`
	Context      string `json:"context"`
	MaxResults   *int   `json:"max_results" validate:"omitempty,min=1,max=10"`
}

type connectDotsResponse struct {
	Query          string           `json:"query"`
	Results        []retrieval.View `json:"results"`
	ProcessingTime float64          `json:"processing_time"`
}

// handleConnectDots ranks sections of every completed document against the
// selected text.
func (s *Server) handleConnectDots(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req connectDotsRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		jsonError(w, validationMessage(err), http.StatusBadRequest)
		return
	}

	maxResults := s.cfg.DefaultMaxResults
	if req.MaxResults != nil {
		maxResults = *req.MaxResults
	}

	results, err := s.engine.Retrieve(r.Context(), retrieval.Query{
		Text:       req.SelectedText,
		Context:    req.Context,
		MaxResults: maxResults,
	})
	if errors.Is(err, retrieval.ErrInvalidMaxResults) {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.log.Error("connect dots", "error", err)
		jsonError(w, "retrieval failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, connectDotsResponse{
		Query:          req.SelectedText,
		Results:        retrieval.Views(results),
		ProcessingTime: math.Round(time.Since(start).Seconds()*1000) / 1000,
	})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Field() {
	case "SelectedText":
		return "selected_text is required"
	case "MaxResults":
		return "max_results must be between 1 and 10"
	}
	return fe.Error()
}

func (s *Server) handleEmbeddingStats(w http.ResponseWriter, r *http.Request) {
	if s.embedding == nil {
		jsonError(w, "embedding stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"provider":  s.embedding.Provider(),
		"available": s.embedding.Available(),
		"stats":     s.embedding.Stats(),
	})
}

var _ EmbeddingInfo = (*embed.Service)(nil)
