package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/siherrmann/excerpter/core/retrieval"
	"github.com/siherrmann/excerpter/model"
)

// ExcerptsRequest is the body of /get_excerpts
type ExcerptsRequest struct {
	Question string `json:"question"`
	URL      string `json:"url,omitempty"`
	TopN     *int   `json:"top_n,omitempty"`
}

// DocsRequest is the body of /get_excerpts_from_docs and /ask
type DocsRequest struct {
	Question string   `json:"question"`
	Docs     []string `json:"docs"`
	TopN     *int     `json:"top_n,omitempty"`
}

// ErrorResponse is returned with every non 2xx status
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"strategy": s.extractor.Strategy(),
		"store":    s.retriever != nil,
	})
}

// handleGetExcerpts answers over a web page and the papers found for the question
func (s *Server) handleGetExcerpts(w http.ResponseWriter, r *http.Request) {
	var req ExcerptsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.writeError(w, http.StatusBadRequest, "No question provided")
		return
	}
	if req.URL == "" {
		req.URL = s.options.DefaultURL
	}

	ctx := r.Context()

	var docs []model.Document
	if req.URL != "" {
		page, err := s.pages.Fetch(ctx, req.URL)
		if err != nil {
			s.logger.Error("Error fetching page", slog.String("url", req.URL), slog.String("error", err.Error()))
			s.writeError(w, http.StatusBadGateway, "Could not fetch "+req.URL)
			return
		}
		docs = append(docs, model.Document{Index: 0, Text: page.Text})
	}

	if s.retriever != nil && s.options.SearchNDocs > 0 {
		hits, err := s.retriever.Retrieve(ctx, req.Question, s.options.SearchNDocs)
		if err != nil {
			s.logger.Warn("Paper search failed, answering from the page only", slog.String("error", err.Error()))
		} else {
			docs = append(docs, retrieval.Documents(hits, len(docs))...)
		}
	}

	extractor := s.extractor
	if req.TopN != nil {
		extractor = extractor.WithTopN(*req.TopN)
	}

	excerpts, err := extractor.ExtractPooled(ctx, req.Question, docs)
	if err != nil {
		s.writeExtractionError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, excerpts)
}

// handleGetExcerptsFromDocs answers over the documents of the request
func (s *Server) handleGetExcerptsFromDocs(w http.ResponseWriter, r *http.Request) {
	var req DocsRequest
	if !s.decode(w, r, &req) {
		return
	}

	extractor := s.extractor
	if req.TopN != nil {
		extractor = extractor.WithTopN(*req.TopN)
	}

	excerpts, err := extractor.Extract(r.Context(), req.Question, model.NewDocuments(req.Docs))
	if err != nil {
		s.writeExtractionError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, excerpts)
}

// handleAsk returns the raw candidate of every document, in the format the
// remote-delegated strategy expects.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req DocsRequest
	if !s.decode(w, r, &req) {
		return
	}

	candidates, err := s.extractor.Answers(r.Context(), req.Question, req.Docs)
	if err != nil {
		s.writeExtractionError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, candidates)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Info("Undecodable request body", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		s.writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

func (s *Server) writeExtractionError(w http.ResponseWriter, err error) {
	var inputErr *model.InputError
	switch {
	case errors.As(err, &inputErr):
		s.writeError(w, http.StatusBadRequest, inputErr.Message)
	case errors.Is(err, model.ErrInference):
		s.logger.Error("Inference failed", slog.String("error", err.Error()))
		s.writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("Extraction failed", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Error writing response", slog.String("error", err.Error()))
	}
}
