// Package server exposes the repository report over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"emperror.dev/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/repo-insights/internal/domain"
)

const (
	errTokenRequired = "GitHub token is required"
	errQueryRequired = "Repository query is required"
)

// ReportFetcher builds the report for an "owner/name" identifier.
type ReportFetcher interface {
	FetchReport(ctx context.Context, identifier string) (*domain.RepositoryReport, error)
}

// Options configures a Server.
type Options struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	// TokenConfigured reports whether a GitHub token was provided. Without one
	// every report request is rejected.
	TokenConfigured bool
}

// Server serves repository reports.
type Server struct {
	fetcher    ReportFetcher
	opts       Options
	logger     logrus.FieldLogger
	httpServer *http.Server
}

// New creates a Server. It does not start listening until Run is called.
func New(fetcher ReportFetcher, opts Options, logger logrus.FieldLogger) *Server {
	s := &Server{
		fetcher: fetcher,
		opts:    opts,
		logger:  logger,
	}
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /api/reponame", s.handleRepository)
	return s.logRequests(allowCORS(mux))
}

// Run serves until ctx is cancelled, then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		s.logger.WithField("addr", s.httpServer.Addr).Info("Server running")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "failed to serve")
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		s.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		return errors.Wrap(s.httpServer.Shutdown(shutdownCtx), "failed to shut down server")
	})

	return eg.Wait()
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Hello from repo-insights!"))
}

func (s *Server) handleRepository(w http.ResponseWriter, r *http.Request) {
	if !s.opts.TokenConfigured {
		writeError(w, http.StatusBadRequest, errTokenRequired)
		return
	}
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, errQueryRequired)
		return
	}

	report, err := s.fetcher.FetchReport(r.Context(), query)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidIdentifier) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.WithError(err).WithField("query", query).Error("Error fetching repository data")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
