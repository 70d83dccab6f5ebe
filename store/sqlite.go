package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// sqliteDocuments stores maps as JSON documents in a single SQLite table.
//
// Tables:
//
//	maps(id, name, data)  PRIMARY KEY (id), INDEX maps_name_idx (name)
type sqliteDocuments struct {
	db *sql.DB
}

// NewSqliteStore opens (creating if needed) the SQLite database at dbPath.
// The sqlite3 driver must be registered by the caller.
func NewSqliteStore(dbPath string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		`CREATE TABLE IF NOT EXISTS maps (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			data TEXT NOT NULL
		)`,
		"CREATE INDEX IF NOT EXISTS maps_name_idx ON maps (name)",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}
	return newDocumentStore(&sqliteDocuments{db: db}), nil
}

func (s *sqliteDocuments) close() error {
	return s.db.Close()
}

func (s *sqliteDocuments) load(ctx context.Context, id string) (*mapDocument, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM maps WHERE id = ?", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc mapDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode map %s: %w", id, err)
	}
	return &doc, nil
}

func (s *sqliteDocuments) loadAll(ctx context.Context) ([]mapDocument, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, data FROM maps")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []mapDocument{}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var doc mapDocument
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode map %s: %w", id, err)
		}
		result = append(result, doc)
	}
	return result, rows.Err()
}

func (s *sqliteDocuments) save(ctx context.Context, doc mapDocument) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO maps (id, name, data) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, data = excluded.data`,
		doc.ID, doc.Name, string(b),
	)
	return err
}

func (s *sqliteDocuments) remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM maps WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
