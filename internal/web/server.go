// Package web serves a read-only view over the persisted scan artifacts:
// history, baseline, and the latest diff. Useful for eyeballing results
// from another machine without shipping files around.
package web

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"achk/internal/config"
	"achk/internal/history"
)

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>achk — scan artifacts</title></head>
<body>
<h1>achk scan artifacts</h1>
<ul>
<li><a href="/api/history">/api/history</a> — recorded scans (JSON)</li>
<li><a href="/api/baseline">/api/baseline</a> — baseline scan lines</li>
<li><a href="/api/diff">/api/diff</a> — latest comparison diff</li>
</ul>
</body>
</html>
`

// Server exposes the artifacts of one data directory.
type Server struct {
	cfg  config.Config
	hist *history.Manager
}

func NewServer(cfg config.Config, hist *history.Manager) *Server {
	return &Server{cfg: cfg, hist: hist}
}

// Start blocks serving on the given port (default 8080).
func (s *Server) Start(port string) error {
	if port == "" {
		port = "8080"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/baseline", s.artifactHandler(s.cfg.BaselineGen))
	mux.HandleFunc("/api/diff", s.artifactHandler(s.cfg.DiffGen))

	fmt.Printf("Serving scan artifacts at http://localhost:%s\n", port)
	return http.ListenAndServe(":"+port, mux)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	entries := s.hist.Entries()
	if entries == nil {
		entries = []history.Entry{}
	}
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		log.Printf("encoding history response: %v", err)
	}
}

// artifactHandler serves one plain-text artifact as a JSON line array, so
// clients don't have to guess the encoding or the line terminator.
func (s *Server) artifactHandler(name string) http.HandlerFunc {
	path := filepath.Join(s.cfg.DataDir, name)
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				http.Error(w, fmt.Sprintf("%s not found — run a scan first", name), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(struct {
			Artifact string   `json:"artifact"`
			Lines    []string `json:"lines"`
		}{Artifact: name, Lines: lines}); err != nil {
			log.Printf("encoding artifact response: %v", err)
		}
	}
}
