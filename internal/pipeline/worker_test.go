package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/tablegest/internal/config"
	"github.com/dgallion1/tablegest/internal/extractor"
	"github.com/dgallion1/tablegest/internal/stats"
	"github.com/dgallion1/tablegest/internal/table"
)

type memorySink struct {
	mu     sync.Mutex
	tables []*table.Table
	err    error
}

func (s *memorySink) SaveTables(_ context.Context, tables []*table.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.tables = append(s.tables, tables...)
	return nil
}

const doc = `<html><head><title>Prices</title></head><body>
<table><tr><th>a</th><th>b</th></tr><tr><td colspan="2">c</td></tr></table>
<table><tr><td rowspan="oops">x</td></tr></table>
</body></html>`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(sink TableSink, st *stats.Extraction) *Worker {
	return NewWorker(extractor.New(extractor.DefaultConfig(), nil), extractor.DefaultOptions(), sink, st, testLogger())
}

func TestWorker_Process(t *testing.T) {
	sink := &memorySink{}
	st := stats.New(time.Hour)
	job := NewJob("https://example.com/prices", "prices.html", []byte(doc))

	newTestWorker(sink, st).Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q (%v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Title != "Prices" {
		t.Errorf("expected title from document, got %q", snap.Title)
	}
	if snap.Progress.TablesFound != 2 || snap.Progress.TablesDropped != 1 || snap.Progress.TablesStored != 1 {
		t.Errorf("unexpected progress %+v", snap.Progress)
	}
	if len(sink.tables) != 1 || sink.tables[0].ID != "https://example.com/prices?table_no=0" {
		t.Fatalf("unexpected stored tables %v", sink.tables)
	}
	if rows, cols := sink.tables[0].Shape(); rows != 2 || cols != 2 {
		t.Errorf("expected spanned 2x2 table, got %dx%d", rows, cols)
	}
	if job.FileData() != nil {
		t.Error("file data should be released after processing")
	}
	if s := st.Snapshot(); s.Count != 1 || s.Tables != 1 {
		t.Errorf("expected one recorded extraction, got %+v", s)
	}
}

func TestWorker_Failures(t *testing.T) {
	tests := []struct {
		name     string
		job      *Job
		sinkErr  error
		phase    string
		failures int
	}{
		{"unsupported format", NewJob("https://example.com/a", "a.pdf", []byte("%PDF")), nil, "parsing", 0},
		{"relative url", NewJob("a/b", "a.html", []byte(doc)), nil, "extracting", 1},
		{"sink error", NewJob("https://example.com/a", "a.html", []byte(doc)), errors.New("disk full"), "storing", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := stats.New(time.Hour)
			newTestWorker(&memorySink{err: tt.sinkErr}, st).Process(context.Background(), tt.job)

			snap := tt.job.Snapshot()
			if snap.Status != StatusFailed || snap.Phase != tt.phase {
				t.Errorf("expected failed in %q, got %q in %q", tt.phase, snap.Status, snap.Phase)
			}
			if len(snap.Progress.Errors) != 1 {
				t.Errorf("expected one error, got %v", snap.Progress.Errors)
			}
			if got := st.Snapshot().Failures; got != tt.failures {
				t.Errorf("expected %d recorded failures, got %d", tt.failures, got)
			}
		})
	}
}

func TestOrchestrator_RunsJobs(t *testing.T) {
	cfg := config.Config{WorkerCount: 2, MaxQueueSize: 4, JobTTL: time.Hour, AutoSpan: true, AutoPad: true}
	sink := &memorySink{}
	o := NewOrchestrator(cfg, extractor.New(extractor.DefaultConfig(), nil), sink, stats.New(time.Hour), testLogger())
	o.Start(context.Background())

	var jobs []*Job
	for _, u := range []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"} {
		job := NewJob(u, "page.html", []byte(doc))
		if err := o.Submit(job); err != nil {
			t.Fatalf("submit: %v", err)
		}
		jobs = append(jobs, job)
	}

	deadline := time.Now().Add(5 * time.Second)
	for _, job := range jobs {
		for {
			s := o.GetJob(job.ID).Snapshot().Status
			if s == StatusCompleted || s == StatusFailed {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("job %s stuck in %q", job.ID, s)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
	o.Stop()

	for _, job := range jobs {
		if s := job.Snapshot(); s.Status != StatusCompleted {
			t.Errorf("job %s: %q %v", job.ID, s.Status, s.Progress.Errors)
		}
	}
	if len(sink.tables) != 3 {
		t.Errorf("expected 3 stored tables, got %d", len(sink.tables))
	}
	if sink.tables[0].Context != nil {
		t.Error("context is disabled in the config")
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 1, JobTTL: time.Hour}
	o := NewOrchestrator(cfg, extractor.New(extractor.DefaultConfig(), nil), &memorySink{}, nil, testLogger())

	first := NewJob("https://example.com/1", "a.html", []byte(doc))
	if err := o.Submit(first); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second := NewJob("https://example.com/2", "a.html", []byte(doc))
	if err := o.Submit(second); err == nil {
		t.Fatal("expected queue full error")
	}
	if s := second.Snapshot(); s.Status != StatusFailed || s.Phase != "queue_full" {
		t.Errorf("unexpected status %q/%q", s.Status, s.Phase)
	}
	if o.QueueDepth() != 1 || o.GetJob(second.ID) == nil {
		t.Error("rejected job should still be visible")
	}
}
