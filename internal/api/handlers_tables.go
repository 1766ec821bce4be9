package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/tablegest/internal/store"
)

// handleGetTables returns one table by ?id= or every table of ?url=.
func (s *Server) handleGetTables(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	w.Header().Set("Content-Type", "application/json")

	if id := q.Get("id"); id != "" {
		t, err := s.store.GetTable(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, "table not found", http.StatusNotFound)
			return
		}
		if err != nil {
			jsonError(w, "failed to load table: "+err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(t)
		return
	}

	docURL := q.Get("url")
	if docURL == "" {
		jsonError(w, "id or url query parameter is required", http.StatusBadRequest)
		return
	}
	tables, err := s.store.ListByURL(r.Context(), docURL)
	if err != nil {
		jsonError(w, "failed to list tables: "+err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"url": docURL, "tables": tables})
}

func (s *Server) handleDeleteTables(w http.ResponseWriter, r *http.Request) {
	docURL := r.URL.Query().Get("url")
	if docURL == "" {
		jsonError(w, "url query parameter is required", http.StatusBadRequest)
		return
	}
	n, err := s.store.DeleteByURL(r.Context(), docURL)
	if err != nil {
		jsonError(w, "failed to delete tables: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info("deleted tables", "url", docURL, "count", n)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"url": docURL, "deleted": n})
}
