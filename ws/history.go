package ws

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// History endpoints serve the restartable backwards pagination the clients
// page conversations with. The REST layer upstream has already validated
// who may ask; these handlers only translate parameters.
//
// The before cursor is strictly exclusive: callers chain the createdAt of
// their currently-oldest loaded message and never see a record twice.

func (s *Server) handleDirectHistory(w http.ResponseWriter, r *http.Request) {
	userA := r.URL.Query().Get("userA")
	userB := r.URL.Query().Get("userB")
	if userA == "" || userB == "" {
		http.Error(w, "userA and userB are required", http.StatusBadRequest)
		return
	}
	before, limit, err := pageParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	messages, err := s.chat.ListDirect(r.Context(), userA, userB, before, limit)
	if err != nil {
		s.log.Error("direct history fetch failed", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, messages)
}

func (s *Server) handleGroupHistory(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	before, limit, err := pageParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	messages, err := s.chat.ListGroup(r.Context(), groupID, before, limit)
	if err != nil {
		s.log.Error("group history fetch failed", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, messages)
}

// pageParams reads the optional before (RFC3339Nano) and limit parameters.
// A missing before means "from the newest".
func pageParams(r *http.Request) (time.Time, int, error) {
	var before time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return time.Time{}, 0, err
		}
		before = parsed
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return time.Time{}, 0, err
		}
		limit = parsed
	}
	return before, limit, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
