// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes ingest, search and chat over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/arxiv-agent/internal/catalog"
	"github.com/pdiddy/arxiv-agent/internal/chat"
	"github.com/pdiddy/arxiv-agent/internal/ingest"
	"github.com/pdiddy/arxiv-agent/internal/store"
	"github.com/pdiddy/arxiv-agent/pkg/types"
)

// ServiceName is reported by the status endpoint.
const ServiceName = "arxiv-agent"

const (
	defaultAddr            = ":8000"
	defaultShutdownTimeout = 10 * time.Second
	maxBodyBytes           = 1 << 20
	requestIDHeader        = "X-Request-ID"
)

// Ingester runs one ingest batch.
type Ingester interface {
	Run(ctx context.Context, req catalog.Request) (ingest.Summary, error)
}

// PaperIndex answers listing queries over stored papers.
type PaperIndex interface {
	Search(ctx context.Context, opts store.SearchOptions) ([]*types.Paper, error)
	Latest(ctx context.Context) ([]*types.Paper, error)
}

// Chatter starts chat turns.
type Chatter interface {
	Stream(ctx context.Context, req chat.Request) <-chan types.StreamEvent
}

// SearchRequest is the body of POST /papers/search.
type SearchRequest struct {
	Keyword string `json:"keyword"`
	SortBy  string `json:"sort_by"`
	Order   string `json:"order"`
	Limit   int    `json:"limit"`
}

// Options converts the request into store search options.
func (r SearchRequest) Options() store.SearchOptions {
	return store.SearchOptions{
		Keyword:   strings.TrimSpace(r.Keyword),
		Sort:      store.ParseSortField(r.SortBy),
		Ascending: strings.EqualFold(strings.TrimSpace(r.Order), "asc"),
		Limit:     r.Limit,
	}
}

// Server routes HTTP requests to the ingest pipeline, the paper store and
// the chat orchestrator.
type Server struct {
	Ingest Ingester
	Papers PaperIndex
	Chat   Chatter
	Logger *zap.Logger
}

// New returns a Server.
func New(in Ingester, papers PaperIndex, c Chatter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Ingest: in, Papers: papers, Chat: c, Logger: logger}
}

// Handler returns the routed handler wrapped with request ids.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleStatus)
	mux.HandleFunc("GET /news/latest", s.handleLatest)
	mux.HandleFunc("POST /crawler/trigger", s.handleTrigger)
	mux.HandleFunc("POST /papers/search", s.handleSearch)
	mux.HandleFunc("POST /chat/stream", s.handleChat)
	return s.withRequestID(mux)
}

// ListenAndServe serves on cfg.Addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, cfg types.ServerConfig) error {
	addr := cfg.Addr
	if addr == "" {
		addr = defaultAddr
	}
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.Logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

type ctxKey struct{}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		logger := s.Logger.With(zap.String("request_id", id))
		logger.Info("http request", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, logger)))
	})
}

func (s *Server) log(r *http.Request) *zap.Logger {
	if l, ok := r.Context().Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return s.Logger
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "running", "service": ServiceName})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	papers, err := s.Papers.Latest(r.Context())
	if err != nil {
		s.log(r).Error("listing latest papers failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(papers))
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req catalog.Request
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ingest.ErrorReply(err))
		return
	}

	summary, err := s.Ingest.Run(r.Context(), req)
	if err != nil {
		s.log(r).Error("ingest trigger failed", zap.Error(err))
		writeJSON(w, http.StatusOK, ingest.ErrorReply(err))
		return
	}
	s.log(r).Info("ingest trigger finished",
		zap.Int("fetched", summary.Fetched),
		zap.Int("new", len(summary.New)),
		zap.Int("failed", summary.Failed))
	writeJSON(w, http.StatusOK, ingest.NewReply(summary))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	papers, err := s.Papers.Search(r.Context(), req.Options())
	if err != nil {
		s.log(r).Error("paper search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(papers))
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.PaperID) == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, errors.New("paper_id and message are required"))
		return
	}

	msg := []rune(req.Message)
	if len(msg) > 50 {
		msg = append(msg[:50], []rune("...")...)
	}
	s.log(r).Info("chat request", zap.String("paper_id", req.PaperID), zap.String("message", string(msg)))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	for ev := range s.Chat.Stream(r.Context(), req) {
		if ev.Text == "" {
			continue
		}
		if _, err := fmt.Fprint(w, ev.Text); err != nil {
			s.log(r).Warn("chat client went away", zap.Error(err))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func nonNil(papers []*types.Paper) []*types.Paper {
	if papers == nil {
		return []*types.Paper{}
	}
	return papers
}
