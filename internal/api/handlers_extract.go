package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dgallion1/tablegest/internal/extractor"
	"github.com/dgallion1/tablegest/internal/parser"
	"github.com/dgallion1/tablegest/internal/table"
)

type extractRequest struct {
	URL    string `json:"url"`
	HTML   string `json:"html"`
	Format string `json:"format"`

	AutoSpan       *bool `json:"auto_span"`
	AutoPad        *bool `json:"auto_pad"`
	ExtractContext *bool `json:"extract_context"`
	Store          bool  `json:"store"`
}

type extractResponse struct {
	Tables   []*table.Table `json:"tables"`
	Markdown []string       `json:"markdown,omitempty"`
	Stored   bool           `json:"stored"`
}

// options overlays the request's pass toggles on the configured defaults.
func (req extractRequest) options(def extractor.Options) extractor.Options {
	if req.AutoSpan != nil {
		def.AutoSpan = *req.AutoSpan
	}
	if req.AutoPad != nil {
		def.AutoPad = *req.AutoPad
	}
	if req.ExtractContext != nil {
		def.ExtractContext = *req.ExtractContext
	}
	return def
}

// handleExtract extracts the tables of an inline document synchronously.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := checkURL(req.URL); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	format := strings.ToLower(strings.TrimPrefix(req.Format, "."))
	if format == "" {
		format = "html"
	}
	p, err := parser.ForFile("document." + format)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	doc, err := p.Parse(strings.NewReader(req.HTML))
	if err != nil {
		jsonError(w, "parse: "+err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	tables, err := s.extractor.Extract(req.URL, doc, req.options(s.cfg.ExtractOptions()))
	if s.stats != nil {
		s.stats.Record(time.Since(start), len(tables), err)
	}
	if err != nil {
		s.log.Error("extraction failed", "url", req.URL, "error", err)
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if tables == nil {
		tables = []*table.Table{}
	}

	resp := extractResponse{Tables: tables}
	if req.Store && len(tables) > 0 {
		if err := s.store.SaveTables(r.Context(), tables); err != nil {
			s.log.Error("store failed", "url", req.URL, "error", err)
			jsonError(w, "failed to store tables", http.StatusInternalServerError)
			return
		}
		resp.Stored = true
	}
	if r.URL.Query().Get("render") == "markdown" {
		resp.Markdown = make([]string, len(tables))
		for i, t := range tables {
			resp.Markdown[i] = t.Markdown()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
