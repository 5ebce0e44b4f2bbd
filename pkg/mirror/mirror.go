// Package mirror serves a directory of JDK archives over HTTP so other
// machines (or tests) can provision without reaching vendor servers.
//
// Routes:
//
//	GET /healthz                   liveness probe
//	GET /artifacts/                JSON list of archive names
//	GET /artifacts/{name}          the archive
//	GET /artifacts/{name}.sha256   "<hex>  <name>" sidecar, computed on demand
//
// Only plain file names directly inside the directory are served.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jaenvtix/jaenvtix/pkg/checksum"
	"github.com/jaenvtix/jaenvtix/pkg/errors"
)

const sidecarSuffix = ".sha256"

// Server serves archives from Dir.
type Server struct {
	Dir    string
	Logger *log.Logger

	mu      sync.Mutex
	digests map[string]digestEntry
}

type digestEntry struct {
	size    int64
	modTime time.Time
	sum     string
}

// New creates a mirror over dir.
func New(dir string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{Dir: dir, Logger: logger, digests: map[string]digestEntry{}}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "ok")
	})
	r.Route("/artifacts", func(r chi.Router) {
		r.Get("/", s.list)
		r.Get("/{name}", s.artifact)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.Logger.Info("mirror listening", "addr", addr, "dir", s.Dir)

	select {
	case err := <-errCh:
		return errors.Wrap(errors.ErrCodeNetwork, err, "mirror server")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		s.fail(w, r, errors.Wrap(errors.ErrCodeNotFound, err, "read mirror directory"))
		return
	}
	names := []string{}
	for _, e := range entries {
		if e.Type().IsRegular() && errors.ValidateFileName(e.Name()) == nil {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(names)
}

func (s *Server) artifact(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := errors.ValidateFileName(name); err != nil {
		s.fail(w, r, err)
		return
	}

	path := filepath.Join(s.Dir, name)
	info, err := os.Stat(path)
	if err != nil && strings.HasSuffix(name, sidecarSuffix) {
		s.sidecar(w, r, strings.TrimSuffix(name, sidecarSuffix))
		return
	}
	if err != nil || !info.Mode().IsRegular() {
		s.fail(w, r, errors.New(errors.ErrCodeNotFound, "artifact %q not found", name))
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.fail(w, r, errors.Wrap(errors.ErrCodeInternal, err, "open artifact"))
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) sidecar(w http.ResponseWriter, r *http.Request, name string) {
	if err := errors.ValidateFileName(name); err != nil {
		s.fail(w, r, err)
		return
	}
	sum, err := s.digest(filepath.Join(s.Dir, name))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "%s  %s\n", sum, name)
}

// digest returns the SHA-256 of path, reusing the previous result while
// the file's size and modification time are unchanged.
func (s *Server) digest(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", errors.New(errors.ErrCodeNotFound, "artifact %q not found", filepath.Base(path))
	}

	s.mu.Lock()
	if s.digests == nil {
		s.digests = map[string]digestEntry{}
	}
	d, ok := s.digests[path]
	s.mu.Unlock()
	if ok && d.size == info.Size() && d.modTime.Equal(info.ModTime()) {
		return d.sum, nil
	}

	sum, _, err := checksum.SumFile(path, checksum.SHA256)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "hash artifact")
	}
	s.mu.Lock()
	s.digests[path] = digestEntry{size: info.Size(), modTime: info.ModTime(), sum: sum}
	s.mu.Unlock()
	return sum, nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidPath, errors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.Logger.Error("mirror request failed", "path", r.URL.Path, "err", err)
	}
	http.Error(w, errors.UserMessage(err), status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug("mirror request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
