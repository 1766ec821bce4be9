// Package store persists extracted tables in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dgallion1/tablegest/internal/table"
)

var ErrNotFound = errors.New("table not found")

const schema = `
CREATE TABLE IF NOT EXISTS tables (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	table_no   INTEGER NOT NULL,
	caption    TEXT NOT NULL DEFAULT '',
	n_rows     INTEGER NOT NULL,
	n_cols     INTEGER NOT NULL,
	body       TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tables_url ON tables(url, table_no);
`

// Store is a SQLite-backed table store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open table db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveTables upserts tables by id in a single transaction.
func (s *Store) SaveTables(ctx context.Context, tables []*table.Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tables (id, url, table_no, caption, n_rows, n_cols, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			table_no = excluded.table_no,
			caption = excluded.caption,
			n_rows = excluded.n_rows,
			n_cols = excluded.n_cols,
			body = excluded.body,
			created_at = excluded.created_at`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for i, tbl := range tables {
		body, err := json.Marshal(tbl)
		if err != nil {
			return fmt.Errorf("encode table %s: %w", tbl.ID, err)
		}
		rows, cols := tbl.Shape()
		if _, err := stmt.ExecContext(ctx, tbl.ID, tbl.URL, tableNo(tbl.ID, i), tbl.Caption, rows, cols, string(body), now); err != nil {
			return fmt.Errorf("save table %s: %w", tbl.ID, err)
		}
	}
	return tx.Commit()
}

// GetTable loads one table by id.
func (s *Store) GetTable(ctx context.Context, id string) (*table.Table, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM tables WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get table: %w", err)
	}
	return decode(body)
}

// ListByURL returns the tables of one document ordered by table_no.
func (s *Store) ListByURL(ctx context.Context, docURL string) ([]*table.Table, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM tables WHERE url = ? ORDER BY table_no`, docURL)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	out := []*table.Table{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tbl, err := decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, tbl)
	}
	return out, rows.Err()
}

// DeleteByURL removes every table of a document and reports how many were deleted.
func (s *Store) DeleteByURL(ctx context.Context, docURL string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tables WHERE url = ?`, docURL)
	if err != nil {
		return 0, fmt.Errorf("delete tables: %w", err)
	}
	return res.RowsAffected()
}

func decode(body string) (*table.Table, error) {
	var tbl table.Table
	if err := json.Unmarshal([]byte(body), &tbl); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}
	return &tbl, nil
}

// tableNo reads the table_no query parameter of an id.
func tableNo(id string, fallback int) int {
	u, err := url.Parse(id)
	if err != nil {
		return fallback
	}
	n, err := strconv.Atoi(u.Query().Get("table_no"))
	if err != nil {
		return fallback
	}
	return n
}
