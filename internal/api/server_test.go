package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/tablegest/internal/config"
	"github.com/dgallion1/tablegest/internal/extractor"
	"github.com/dgallion1/tablegest/internal/pipeline"
	"github.com/dgallion1/tablegest/internal/stats"
	"github.com/dgallion1/tablegest/internal/store"
)

const apiKey = "test-key"

const page = `<html><body><h2>Stock</h2>
<table><tr><th>Item</th><th>Qty</th></tr><tr><td rowspan="2">bolt</td><td>4</td></tr><tr><td>9</td></tr></table>
</body></html>`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Config{
		APIKey:         apiKey,
		WorkerCount:    1,
		MaxQueueSize:   8,
		MaxUploadBytes: 1 << 20,
		JobTTL:         time.Hour,
		AutoSpan:       true,
		AutoPad:        true,
		ExtractContext: true,
	}
	st, err := store.Open(filepath.Join(t.TempDir(), "tables.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ext := extractor.New(extractor.DefaultConfig(), log)
	es := stats.New(time.Hour)
	orch := pipeline.NewOrchestrator(cfg, ext, st, es, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	return NewServer(orch, ext, st, es, log, cfg)
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+apiKey)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func postJSON(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return do(t, s, req)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected health response %d %s", rec.Code, rec.Body)
	}
}

func TestAuth(t *testing.T) {
	s := newTestServer(t)
	for _, header := range []string{"", "Bearer wrong", "Basic " + apiKey} {
		req := httptest.NewRequest(http.MethodGet, "/api/stats/extract", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%q: expected 401, got %d", header, rec.Code)
		}
	}
}

func TestExtract(t *testing.T) {
	s := newTestServer(t)
	rec := postJSON(t, s, "/api/extract?render=markdown", map[string]any{
		"url":  "https://example.com/stock",
		"html": page,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var resp struct {
		Tables []struct {
			ID      string `json:"id"`
			Context []struct {
				Level   int `json:"level"`
				Heading struct {
					Text string `json:"text"`
				} `json:"heading"`
			} `json:"context"`
			Rows []struct {
				Cells []struct {
					Value struct {
						Text string `json:"text"`
					} `json:"value"`
				} `json:"cells"`
			} `json:"rows"`
		} `json:"tables"`
		Markdown []string `json:"markdown"`
		Stored   bool     `json:"stored"`
	}
	decode(t, rec, &resp)

	if len(resp.Tables) != 1 || resp.Tables[0].ID != "https://example.com/stock?table_no=0" {
		t.Fatalf("unexpected tables %+v", resp.Tables)
	}
	tbl := resp.Tables[0]
	if got := tbl.Rows[2].Cells[0].Value.Text; got != "bolt" {
		t.Errorf("rowspan should be expanded, got %q", got)
	}
	if len(tbl.Context) != 2 || tbl.Context[1].Level != 2 || tbl.Context[1].Heading.Text != "Stock" {
		t.Errorf("unexpected context %+v", tbl.Context)
	}
	if len(resp.Markdown) != 1 || !strings.Contains(resp.Markdown[0], "| bolt | 9 |") {
		t.Errorf("unexpected markdown %q", resp.Markdown)
	}
	if resp.Stored {
		t.Error("tables should not be stored unless asked")
	}
}

func TestExtract_StoreAndQuery(t *testing.T) {
	s := newTestServer(t)
	const docURL = "https://example.com/stock"
	rec := postJSON(t, s, "/api/extract", map[string]any{
		"url":             docURL,
		"html":            "| a | b |\n| - | - |\n| 1 | 2 |\n",
		"format":          "md",
		"extract_context": false,
		"store":           true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/tables?url="+url.QueryEscape(docURL), nil))
	var list struct {
		Tables []struct {
			ID string `json:"id"`
		} `json:"tables"`
	}
	decode(t, rec, &list)
	if len(list.Tables) != 1 {
		t.Fatalf("expected 1 stored table, got %+v", list)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/tables?id="+url.QueryEscape(list.Tables[0].ID), nil))
	if rec.Code != http.StatusOK {
		t.Errorf("get by id: %d %s", rec.Code, rec.Body)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodDelete, "/api/tables?url="+url.QueryEscape(docURL), nil))
	var del struct {
		Deleted int `json:"deleted"`
	}
	decode(t, rec, &del)
	if del.Deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", del.Deleted)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/tables?id="+url.QueryEscape(list.Tables[0].ID), nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestExtract_BadRequests(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing url", map[string]any{"html": page}},
		{"relative url", map[string]any{"url": "stock.html", "html": page}},
		{"unknown format", map[string]any{"url": "https://example.com", "html": page, "format": "pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := postJSON(t, s, "/api/extract", tt.body); rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
	if rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/tables", nil)); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without id or url, got %d", rec.Code)
	}
}

func multipartRequest(t *testing.T, path string, files map[string]string, urls ...string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	field := "file"
	if strings.HasSuffix(path, "/batch") {
		field = "files"
	}
	for _, name := range []string{"a.html", "b.csv", "c.pdf"} {
		content, ok := files[name]
		if !ok {
			continue
		}
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write([]byte(content))
	}
	for _, u := range urls {
		mw.WriteField("url", u)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func waitForJob(t *testing.T, s *Server, id string) pipeline.JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/ingest/"+id+"/status", nil))
		var snap pipeline.JobSnapshot
		decode(t, rec, &snap)
		if snap.Status == pipeline.StatusCompleted || snap.Status == pipeline.StatusFailed {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s stuck in %q", id, snap.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestIngest(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, multipartRequest(t, "/api/ingest", map[string]string{"a.html": page}, "https://example.com/a"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		JobID string `json:"job_id"`
	}
	decode(t, rec, &resp)

	snap := waitForJob(t, s, resp.JobID)
	if snap.Status != pipeline.StatusCompleted || snap.Progress.TablesStored != 1 {
		t.Errorf("unexpected job %+v", snap)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/stats/extract", nil))
	var st struct {
		Stats struct {
			Count int `json:"count"`
		} `json:"stats"`
	}
	decode(t, rec, &st)
	if st.Stats.Count != 1 {
		t.Errorf("expected one recorded extraction, got %d", st.Stats.Count)
	}

	if rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/ingest/nope/status", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", rec.Code)
	}
}

func TestIngest_Batch(t *testing.T) {
	s := newTestServer(t)
	files := map[string]string{
		"a.html": page,
		"b.csv":  "x,y\n1,2\n",
		"c.pdf":  "%PDF",
	}
	req := multipartRequest(t, "/api/ingest/batch", files, "https://example.com/a", "https://example.com/b", "https://example.com/c")
	rec := do(t, s, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Jobs []struct {
			JobID string `json:"job_id"`
			Error string `json:"error"`
		} `json:"jobs"`
	}
	decode(t, rec, &resp)
	if len(resp.Jobs) != 3 || resp.Jobs[2].Error == "" {
		t.Fatalf("unexpected batch response %+v", resp.Jobs)
	}
	for _, j := range resp.Jobs[:2] {
		if snap := waitForJob(t, s, j.JobID); snap.Status != pipeline.StatusCompleted {
			t.Errorf("job %s: %+v", j.JobID, snap)
		}
	}

	req = multipartRequest(t, "/api/ingest/batch", files, "https://example.com/a")
	if rec := do(t, s, req); rec.Code != http.StatusBadRequest {
		t.Errorf("mismatched url count: expected 400, got %d", rec.Code)
	}
}
