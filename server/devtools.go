package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sambeau/xscriptd/xscript"
)

// serveDevtools implements the SPEC_FULL §4.10 "Dev log" inspector: a
// JSON dump of the most recent block-invocation records, optionally
// filtered by route, plus the per-cache-strategy usage counters.
// Mounted only in development mode.
func (s *Server) serveDevtools(w http.ResponseWriter, r *http.Request) {
	route := r.URL.Query().Get("route")
	limit := 500
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.devlog.GetLogs(route, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	payload := struct {
		Invocations []LogEntry                       `json:"invocations"`
		CacheUsage  map[string]xscript.CacheCounters `json:"cache_usage"`
	}{
		Invocations: entries,
		CacheUsage:  s.cache.StrategyCounters(),
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(payload)
}

// serveDevtoolsClear clears the dev log, optionally filtered by route.
func (s *Server) serveDevtoolsClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.devlog.ClearLogs(r.URL.Query().Get("route")); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
