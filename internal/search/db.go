package search

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// schema creates a fresh index. The indexer always builds into a new file,
// so there are no migrations.
const schema = `
CREATE TABLE docs (
	path TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	locale TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	word_count INTEGER NOT NULL DEFAULT 0,
	bookmarks TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL
);

CREATE INDEX docs_locale ON docs(locale);

CREATE VIRTUAL TABLE docs_fts USING fts5(
	title, description, content,
	content='docs',
	content_rowid='rowid',
	tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER docs_ai AFTER INSERT ON docs BEGIN
	INSERT INTO docs_fts(rowid, title, description, content)
	VALUES (new.rowid, new.title, new.description, new.content);
END;

CREATE TRIGGER docs_ad AFTER DELETE ON docs BEGIN
	INSERT INTO docs_fts(docs_fts, rowid, title, description, content)
	VALUES ('delete', old.rowid, old.title, old.description, old.content);
END;
`

// openWritable opens path for building, with WAL journaling and a single
// connection.
func openWritable(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open search db: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=OFF", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}

// openReadOnly opens a published index. Every pooled connection is read
// only and waits on locks instead of failing.
func openReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open search db: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open search db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open search db: %w", err)
	}
	return db, nil
}
