package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dgallion1/tablegest/internal/extractor"
)

const doc = `<html><body><h2>Scores</h2>
<table><tr><th>team</th><th>pts</th></tr><tr><td><a href="/t/a">A</a></td><td>3</td></tr></table>
<table><caption>second</caption><tr><td>x</td></tr></table>
</body></html>`

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "tables.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	const docURL = "https://example.com/scores?season=2024"
	tables, err := extractor.New(extractor.DefaultConfig(), nil).ExtractHTML(docURL, doc, extractor.DefaultOptions())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if err := s.SaveTables(ctx, tables); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Saving again upserts instead of duplicating.
	if err := s.SaveTables(ctx, tables); err != nil {
		t.Fatalf("save again: %v", err)
	}

	list, err := s.ListByURL(ctx, docURL)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(list))
	}
	if list[0].ID != tables[0].ID || list[1].Caption != "second" {
		t.Errorf("unexpected order: %s, %q", list[0].ID, list[1].Caption)
	}

	got, err := s.GetTable(ctx, tables[0].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Rows[1].Cells[0].Value.HTML() != tables[0].Rows[1].Cells[0].Value.HTML() {
		t.Errorf("cell value did not survive storage: %q", got.Rows[1].Cells[0].Value.HTML())
	}
	if got.Context[0].Heading.HTML() != "<h2>Scores</h2>" {
		t.Errorf("context did not survive storage: %q", got.Context[0].Heading.HTML())
	}
	if !got.Rows[0].Cells[0].Value.Elements.Validate() {
		t.Error("decoded element tree is invalid")
	}

	n, err := s.DeleteByURL(ctx, docURL)
	if err != nil || n != 2 {
		t.Fatalf("delete: n=%d err=%v", n, err)
	}
	if _, err := s.GetTable(ctx, tables[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStore_ListUnknownURL(t *testing.T) {
	list, err := openStore(t).ListByURL(context.Background(), "https://nowhere.example")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty list, got %d", len(list))
	}
}

func TestTableNo(t *testing.T) {
	if got := tableNo("https://x.org/p?a=1&table_no=7", 0); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
	if got := tableNo("https://x.org/p", 3); got != 3 {
		t.Errorf("expected fallback 3, got %d", got)
	}
}
