// Package gateway is the HTTP face of the bot: the platform webhook,
// a health probe, the embedded admin dashboard, and its JSON API.
package gateway

import (
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/YunGuard/YunGuard/internal/audit"
	"github.com/YunGuard/YunGuard/internal/bus"
	"github.com/YunGuard/YunGuard/internal/event"
	"github.com/YunGuard/YunGuard/internal/store"
)

// maxBodyBytes bounds webhook payload reads.
const maxBodyBytes = 1 << 20

// Server handles the inbound HTTP surface and publishes decoded events
// onto the bus.
type Server struct {
	bus    *bus.EventBus
	store  *store.Store
	audit  *audit.Service
	assets fs.FS
}

func New(b *bus.EventBus, s *store.Store, auditSvc *audit.Service, assets fs.FS) *Server {
	return &Server{bus: b, store: s, audit: auditSvc, assets: assets}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sub", s.handleWebhook)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/groups", s.handleGroups)
	mux.HandleFunc("/api/groups/", s.handleGroup)
	mux.HandleFunc("/api/events", s.handleEvents)
	if s.assets != nil {
		mux.Handle("/", http.FileServer(http.FS(s.assets)))
	}
	return mux
}

// handleWebhook accepts the platform push. The platform retries on
// non-200, so malformed payloads are dropped with a debug log and still
// acknowledged.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}

	env, err := event.Parse(body)
	if err != nil {
		slog.Debug("webhook payload dropped", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	in, err := event.Decode(env)
	if err != nil {
		slog.Debug("webhook event dropped", "type", env.Header.EventType, "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	s.bus.Publish(in)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	groups, err := s.audit.Groups()
	if err != nil {
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, groups)
}

// handleGroup serves /api/groups/{id}/config and /api/groups/{id}/events.
func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	groupID, rest, ok := splitGroupPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	switch rest {
	case "config":
		// Peek, not Load: a dashboard read of an arbitrary path segment
		// must not materialize a config record for an unknown group.
		cfg, exists := s.store.Peek(groupID)
		if !exists {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, cfg)
	case "events":
		events, err := s.audit.RecentForGroup(groupID, queryLimit(r))
		if err != nil {
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, events)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	events, err := s.audit.Recent(queryLimit(r))
	if err != nil {
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, events)
}

// splitGroupPath extracts ("G1", "config") from /api/groups/G1/config.
func splitGroupPath(path string) (groupID, rest string, ok bool) {
	const prefix = "/api/groups/"
	if len(path) <= len(prefix) {
		return "", "", false
	}
	tail := path[len(prefix):]
	for i := 0; i < len(tail); i++ {
		if tail[i] == '/' {
			return tail[:i], tail[i+1:], tail[:i] != "" && tail[i+1:] != ""
		}
	}
	return "", "", false
}

func queryLimit(r *http.Request) int {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	return limit
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", "error", err)
	}
}
