// Package storage persists decoded bulletins: a local SQLite archive of
// raw and decoded text, a ClickHouse time-series sink for HDOB
// telemetry, and a PostgreSQL store for mutable plan-of-day state.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Bulletin is a stored bulletin with its decoded result.
type Bulletin struct {
	ID          int64
	ReceivedAt  time.Time
	Designator  string
	Station     string
	Issued      time.Time
	Kind        string
	RawText     string
	DecodedJSON string
}

// Archive wraps a SQLite database holding the bulletin archive.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens or creates a SQLite archive at the given path.
func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createArchiveSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Archive{db: db}, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

func createArchiveSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS bulletins (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		received_at TEXT NOT NULL,
		designator TEXT NOT NULL,
		station TEXT NOT NULL,
		issued TEXT NOT NULL,
		kind TEXT NOT NULL,
		raw_text TEXT NOT NULL,
		decoded_json TEXT NOT NULL,
		created_at TEXT DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_bulletins_designator ON bulletins(designator);
	CREATE INDEX IF NOT EXISTS idx_bulletins_station ON bulletins(station);
	CREATE INDEX IF NOT EXISTS idx_bulletins_kind ON bulletins(kind);
	CREATE INDEX IF NOT EXISTS idx_bulletins_issued ON bulletins(issued);

	-- FTS5 virtual table for full-text search on raw bulletin text.
	CREATE VIRTUAL TABLE IF NOT EXISTS bulletins_fts USING fts5(
		raw_text,
		content='bulletins',
		content_rowid='id'
	);

	-- Triggers to keep FTS index in sync.
	CREATE TRIGGER IF NOT EXISTS bulletins_ai AFTER INSERT ON bulletins BEGIN
		INSERT INTO bulletins_fts(rowid, raw_text) VALUES (new.id, new.raw_text);
	END;

	CREATE TRIGGER IF NOT EXISTS bulletins_ad AFTER DELETE ON bulletins BEGIN
		INSERT INTO bulletins_fts(bulletins_fts, rowid, raw_text) VALUES('delete', old.id, old.raw_text);
	END;
	`
	_, err := db.Exec(schema)
	return err
}

// ArchiveInsertParams contains the parameters for archiving a bulletin.
type ArchiveInsertParams struct {
	ReceivedAt time.Time
	Designator string
	Station    string
	Issued     time.Time
	Kind       string
	RawText    string
	Decoded    interface{}
}

// Insert stores a decoded bulletin in the archive.
func (a *Archive) Insert(p ArchiveInsertParams) (int64, error) {
	decodedJSON, err := json.Marshal(p.Decoded)
	if err != nil {
		return 0, fmt.Errorf("marshal decoded bulletin: %w", err)
	}

	result, err := a.db.Exec(`
		INSERT INTO bulletins (received_at, designator, station, issued, kind, raw_text, decoded_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ReceivedAt.UTC().Format(time.RFC3339), p.Designator, p.Station,
		p.Issued.UTC().Format(time.RFC3339), p.Kind, p.RawText, string(decodedJSON))
	if err != nil {
		return 0, fmt.Errorf("insert bulletin: %w", err)
	}

	return result.LastInsertId()
}

// ArchiveQueryParams contains filtering options for querying bulletins.
type ArchiveQueryParams struct {
	ID         int64  // Filter by specific bulletin ID.
	Designator string // Exact match.
	Station    string // Exact match.
	Kind       string // Exact match.
	FullText   string // FTS5 full-text search on raw_text.
	Limit      int    // Max results (default 100).
	Offset     int    // Pagination offset.
}

// Query retrieves bulletins matching the given parameters, newest first.
func (a *Archive) Query(p ArchiveQueryParams) ([]Bulletin, error) {
	var conditions []string
	var args []interface{}

	if p.ID != 0 {
		conditions = append(conditions, "id = ?")
		args = append(args, p.ID)
	}
	if p.Designator != "" {
		conditions = append(conditions, "designator = ?")
		args = append(args, p.Designator)
	}
	if p.Station != "" {
		conditions = append(conditions, "station = ?")
		args = append(args, p.Station)
	}
	if p.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, p.Kind)
	}

	var query string
	if p.FullText != "" {
		query = `SELECT b.id, b.received_at, b.designator, b.station, b.issued, b.kind, b.raw_text, b.decoded_json
				FROM bulletins b
				JOIN bulletins_fts fts ON b.id = fts.rowid
				WHERE bulletins_fts MATCH ?`
		args = append([]interface{}{p.FullText}, args...)
		if len(conditions) > 0 {
			query += " AND " + strings.Join(conditions, " AND ")
		}
	} else {
		query = `SELECT id, received_at, designator, station, issued, kind, raw_text, decoded_json
				FROM bulletins`
		if len(conditions) > 0 {
			query += " WHERE " + strings.Join(conditions, " AND ")
		}
	}

	limit := 100
	if p.Limit > 0 {
		limit = p.Limit
	}
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT %d OFFSET %d", limit, p.Offset)

	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bulletins: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Bulletin
	for rows.Next() {
		var b Bulletin
		var received, issued string
		if err := rows.Scan(&b.ID, &received, &b.Designator, &b.Station, &issued,
			&b.Kind, &b.RawText, &b.DecodedJSON); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		b.ReceivedAt, _ = time.Parse(time.RFC3339, received)
		b.Issued, _ = time.Parse(time.RFC3339, issued)
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetByID retrieves a single bulletin, or nil when absent.
func (a *Archive) GetByID(id int64) (*Bulletin, error) {
	out, err := a.Query(ArchiveQueryParams{ID: id, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// CountByKind returns bulletin counts grouped by record kind.
func (a *Archive) CountByKind() (map[string]int, error) {
	counts := make(map[string]int)
	rows, err := a.db.Query("SELECT kind, COUNT(*) FROM bulletins GROUP BY kind")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		counts[kind] = count
	}
	return counts, rows.Err()
}
