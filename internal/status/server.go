// Package status provides the supervisor's own admin HTTP surface.
//
// This is deliberately separate from the application $PORT, which belongs
// to the web child: the platform health-checks that port, while this
// server answers the question the platform cannot see, namely whether the
// detached secondary is still alive.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/net/netutil"

	"github.com/mbrock/tandem/internal/history"
	"github.com/mbrock/tandem/internal/supervisor"
)

// maxConns caps concurrent admin connections; this surface is for
// operators and health tooling, not traffic.
const maxConns = 64

// Source provides the current process view.
type Source interface {
	Snapshot() supervisor.Snapshot
}

// Server is the admin status HTTP server.
type Server struct {
	src    Source
	hist   *history.Store
	mux    *http.ServeMux
	server *http.Server
}

// New creates a Server. hist may be nil, in which case /history reports
// that history is disabled.
func New(src Source, hist *history.Store) *Server {
	s := &Server{
		src:  src,
		hist: hist,
		mux:  http.NewServeMux(),
	}
	s.registerRoutes()
	s.server = &http.Server{Handler: s.mux}
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /processes", s.handleProcesses)
	s.mux.HandleFunc("GET /history", s.handleHistory)
}

// Listen opens the admin listener with a connection cap.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return netutil.LimitListener(ln, maxConns), nil
}

// Serve starts the server on the given listener. It returns nil after a
// Shutdown; callers only see real serve failures.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	StatusPage(s.src.Snapshot()).Render(r.Context(), w)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":            "ok",
		"ready":             snap.Ready,
		"primary_running":   snap.Primary.Running,
		"secondary_running": snap.Secondary.Running,
	})
}

func (s *Server) handleProcesses(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.src.Snapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}
	runs, err := s.hist.Recent(r.Context(), 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}
