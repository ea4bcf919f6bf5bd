// Package server exposes the HTTP control API: list monitors, read
// bounded result history, and trigger a probe or story synchronously
// or in bulk by tag.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/prodzilla/prodzilla/internal/monitor"
	"github.com/prodzilla/prodzilla/internal/runner"
	"github.com/prodzilla/prodzilla/internal/store"
)

// Server owns the registered monitors by name, the shared result
// store, and the runner used to trigger on-demand executions. It does
// not own the scheduler; triggering a monitor here runs independently
// of its scheduled ticks.
type Server struct {
	probes  map[string]*monitor.Probe
	stories map[string]*monitor.Story
	store   *store.Store
	runner  *runner.Runner
	logger  *slog.Logger
	httpSrv *http.Server
}

func New(probes []*monitor.Probe, stories []*monitor.Story, st *store.Store, r *runner.Runner, logger *slog.Logger) *Server {
	s := &Server{
		probes:  make(map[string]*monitor.Probe, len(probes)),
		stories: make(map[string]*monitor.Story, len(stories)),
		store:   st,
		runner:  r,
		logger:  logger,
	}
	for _, p := range probes {
		s.probes[p.Name] = p
	}
	for _, story := range stories {
		s.stories[story.Name] = story
	}
	return s
}

// Start binds addr and serves the control API until Shutdown is
// called or the listener fails.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)

	mux.HandleFunc("GET /probes", s.handleListProbes)
	mux.HandleFunc("GET /probes/{name}/results", s.handleProbeResults)
	mux.HandleFunc("GET /probes/{name}/trigger", s.handleTriggerProbe)
	mux.HandleFunc("POST /probes/bulk/trigger", s.handleBulkTriggerProbes)

	mux.HandleFunc("GET /stories", s.handleListStories)
	mux.HandleFunc("GET /stories/{name}/results", s.handleStoryResults)
	mux.HandleFunc("GET /stories/{name}/trigger", s.handleTriggerStory)
	mux.HandleFunc("POST /stories/bulk/trigger", s.handleBulkTriggerStories)

	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Roar!"))
}

// sortedProbeNames and sortedStoryNames give every listing endpoint a
// deterministic order; map iteration order is not used for responses.
func (s *Server) sortedProbeNames() []string {
	names := make([]string, 0, len(s.probes))
	for name := range s.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) sortedStoryNames() []string {
	names := make([]string, 0, len(s.stories))
	for name := range s.stories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
