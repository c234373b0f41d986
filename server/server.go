package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/siherrmann/excerpter/core/extraction"
	"github.com/siherrmann/excerpter/core/retrieval"
	"github.com/siherrmann/excerpter/source"
)

const (
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 5 * time.Minute
	maxBodyBytes        = 32 << 20
)

// PageSource returns the text of a web page
type PageSource interface {
	Fetch(ctx context.Context, url string) (*source.Page, error)
}

// Options configures the request service
type Options struct {
	Address      string
	DefaultURL   string
	SearchNDocs  int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP request service in front of the extractor
type Server struct {
	router    *mux.Router
	server    *http.Server
	extractor *extraction.Extractor
	pages     PageSource
	retriever retrieval.Strategy
	options   Options
	logger    *slog.Logger
}

// NewServer creates the request service. retriever may be nil,
// /get_excerpts then only answers over the web page.
func NewServer(options Options, extractor *extraction.Extractor, pages PageSource, retriever retrieval.Strategy, logger *slog.Logger) *Server {
	if options.ReadTimeout == 0 {
		options.ReadTimeout = DefaultReadTimeout
	}
	if options.WriteTimeout == 0 {
		options.WriteTimeout = DefaultWriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:    mux.NewRouter(),
		extractor: extractor,
		pages:     pages,
		retriever: retriever,
		options:   options,
		logger:    logger,
	}
	s.setupRoutes()

	return s
}

// Handler returns the router, e.g. for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until Shutdown is called
func (s *Server) ListenAndServe() error {
	s.server = &http.Server{
		Addr:              s.options.Address,
		Handler:           s.router,
		ReadTimeout:       s.options.ReadTimeout,
		ReadHeaderTimeout: s.options.ReadTimeout,
		WriteTimeout:      s.options.WriteTimeout,
		MaxHeaderBytes:    1 << 20,
	}

	s.logger.Info("Listening", slog.String("address", s.options.Address), slog.String("strategy", string(s.extractor.Strategy())))

	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("error serving on %s: %w", s.options.Address, err)
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.NewRoute().Subrouter()
	api.Use(s.jsonMiddleware)
	api.HandleFunc("/get_excerpts", s.handleGetExcerpts).Methods(http.MethodPost)
	api.HandleFunc("/get_excerpts_from_docs", s.handleGetExcerptsFromDocs).Methods(http.MethodPost)
	api.HandleFunc("/ask", s.handleAsk).Methods(http.MethodPost)

	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
}
