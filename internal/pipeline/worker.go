package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/tablegest/internal/extractor"
	"github.com/dgallion1/tablegest/internal/parser"
	"github.com/dgallion1/tablegest/internal/stats"
	"github.com/dgallion1/tablegest/internal/table"
)

// TableSink receives the tables of a finished job.
type TableSink interface {
	SaveTables(ctx context.Context, tables []*table.Table) error
}

// Worker processes a single document job.
type Worker struct {
	ext   *extractor.Extractor
	opts  extractor.Options
	sink  TableSink
	stats *stats.Extraction
	log   *slog.Logger
}

func NewWorker(ext *extractor.Extractor, opts extractor.Options, sink TableSink, st *stats.Extraction, log *slog.Logger) *Worker {
	return &Worker{ext: ext, opts: opts, sink: sink, stats: st, log: log}
}

// Process parses the job's file, extracts its tables, and hands them to the
// sink. The outcome is recorded on the job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "url", job.URL)

	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename)
	if err != nil {
		w.fail(log, job, "parsing", "unsupported format", err)
		return
	}
	doc, err := p.Parse(bytes.NewReader(job.FileData()))
	if err != nil {
		w.fail(log, job, "parsing", "parse failed", fmt.Errorf("parse: %w", err))
		return
	}
	job.SetTitle(parser.Title(doc))

	job.SetStatus(StatusExtracting, "extracting")
	found := extractor.CountTables(doc)
	start := time.Now()
	tables, err := w.ext.Extract(job.URL, doc, w.opts)
	if w.stats != nil {
		w.stats.Record(time.Since(start), len(tables), err)
	}
	if err != nil {
		w.fail(log, job, "extracting", "extraction failed", fmt.Errorf("extract: %w", err))
		return
	}
	job.SetTables(found, len(tables))
	log.Info("extraction complete", "found", found, "kept", len(tables))

	if len(tables) > 0 {
		job.SetStatus(StatusStoring, "storing")
		if err := w.sink.SaveTables(ctx, tables); err != nil {
			w.fail(log, job, "storing", "store failed", fmt.Errorf("store: %w", err))
			return
		}
	}
	job.SetStored(len(tables))
	job.SetFileData(nil)
	job.SetStatus(StatusCompleted, "done")
}

func (w *Worker) fail(log *slog.Logger, job *Job, phase, msg string, err error) {
	log.Error(msg, "error", err)
	job.AddError(err.Error())
	job.SetStatus(StatusFailed, phase)
}
