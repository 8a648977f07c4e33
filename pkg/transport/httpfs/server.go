// Package httpfs serves a directory over plain HTTP with CORS enabled and
// caching disabled, one request at a time.
package httpfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// Headers added to every response.
var Headers = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET",
	"Cache-Control":                "no-store, no-cache, must-revalidate, max-age=0",
}

// Server serves the files under root.
type Server struct {
	addr            string
	root            string
	shutdownTimeout time.Duration
	handler         http.Handler
	srv             *http.Server
	listener        net.Listener
	logger          *slog.Logger
}

// NewServer creates a server for root listening on addr (e.g. ":8000").
func NewServer(addr, root string, shutdownTimeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}
	s := &Server{
		addr:            addr,
		root:            root,
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}
	s.handler = Handler(root, logger)
	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the static file handler for root with the response headers
// applied and requests serialized.
func Handler(root string, logger *slog.Logger) http.Handler {
	files := http.FileServer(http.Dir(root))
	var mu sync.Mutex
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		setHeaders(w.Header())
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			files.ServeHTTP(rec, r)
		default:
			http.Error(rec, "unsupported method "+r.Method, http.StatusNotImplemented)
		}
		logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "remote", r.RemoteAddr)
	})
}

func setHeaders(h http.Header) {
	for k, v := range Headers {
		h.Set(k, v)
	}
}

// statusRecorder captures the response status for logging. It re-applies
// Headers on WriteHeader because the file server drops Cache-Control when
// it writes an error response.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	setHeaders(r.ResponseWriter.Header())
	r.ResponseWriter.WriteHeader(code)
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.listener = ln
	s.logger.Info("server listening", "addr", ln.Addr().String(), "root", s.root)
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve serves until ctx is done, then shuts down gracefully and returns the
// shutdown error, if any.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	return s.Shutdown()
}

// Shutdown stops accepting connections and waits for the in-flight request,
// closing forcibly when the shutdown timeout elapses.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.srv.Close()
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
