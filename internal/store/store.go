package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	docSchedules = "schedules"
	docPlayers   = "players"
)

// Store holds the SQLite handle shared by the document stores. Each
// document is a single row that is always rewritten whole.
type Store struct {
	DB *sqlx.DB
}

func Open(databaseURL string) (*Store, error) {
	db, err := sqlx.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout=5000", databaseURL))
	if err != nil { return nil, err }
	// one writer; both documents go through the same connection
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil { return nil, err }
	if err := runMigrations(db); err != nil { return nil, err }
	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// readDoc returns the raw body of a document, or ok=false if it was
// never written.
func (s *Store) readDoc(name string) ([]byte, bool, error) {
	var body string
	err := s.DB.Get(&body, "SELECT body FROM documents WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) { return nil, false, nil }
	if err != nil { return nil, false, fmt.Errorf("read %s: %w", name, err) }
	return []byte(body), true, nil
}

func (s *Store) writeDoc(name string, body []byte) error {
	_, err := s.DB.Exec(`INSERT INTO documents (name, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		name, string(body), time.Now().UTC().Unix())
	if err != nil { return fmt.Errorf("write %s: %w", name, err) }
	return nil
}
