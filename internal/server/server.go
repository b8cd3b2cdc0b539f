package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/landingboard/internal/store"
)

const shutdownTimeout = 5 * time.Second

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// SnapshotReader provides the document served at "/".
type SnapshotReader interface {
	Read() store.Snapshot
}

// Server handles HTTP requests for the aggregated snapshot.
type Server struct {
	snapshots  SnapshotReader
	addr       string
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
	httpServer *http.Server

	mu      sync.Mutex
	boundTo net.Addr
	done    chan struct{}
}

// New creates a [Server] listening on addr (for example ":8080").
// gatherer may be nil, in which case /metrics is not served.
func New(snapshots SnapshotReader, addr string, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		snapshots: snapshots,
		addr:      addr,
		gatherer:  gatherer,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Handler returns the router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(allowCORS)

	r.Get("/", s.handleSnapshot)
	r.Get("/healthz", s.handleHealthz)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Start binds the listener and serves in a background goroutine.
//
// Start returns once the port is bound. The server shuts down when ctx is
// cancelled; Start returns an error only if binding fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind to %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.boundTo = ln.Addr()
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		defer close(s.done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("http server listening", "addr", ln.Addr().String())
	return nil
}

// Done is closed once the server has shut down after a successful
// [Server.Start].
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Addr returns the bound address, or nil before [Server.Start].
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundTo
}

// handleSnapshot writes the current snapshot as JSON.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshots.Read()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := jsonAPI.NewEncoder(w).Encode(snap); err != nil {
		s.logger.Error("failed to encode snapshot response", "error", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

// allowCORS permits cross-origin reads from any dashboard origin.
func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
			if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				h.Set("Access-Control-Allow-Headers", reqHeaders)
			}
			h.Set("Access-Control-Max-Age", "86400")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
