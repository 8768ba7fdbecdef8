package search

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// batchSize is the number of documents written per transaction.
const batchSize = 500

// SQLiteIndexer builds a full-text index next to its destination and
// moves it into place on Close, so readers never see a half-built index.
type SQLiteIndexer struct {
	mu      sync.Mutex
	path    string
	tmpPath string
	db      *sql.DB
	insert  *sql.Stmt
	tx      *sql.Tx
	pending int
	closed  bool
}

// NewSQLiteIndexer starts a new index that will replace path on Close.
func NewSQLiteIndexer(path string) (*SQLiteIndexer, error) {
	tmpPath := path + ".building"
	if err := removeDB(tmpPath); err != nil {
		return nil, fmt.Errorf("remove stale index: %w", err)
	}
	db, err := openWritable(tmpPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	insert, err := db.Prepare(`INSERT OR REPLACE INTO docs
		(path, title, locale, description, word_count, bookmarks, content)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	return &SQLiteIndexer{path: path, tmpPath: tmpPath, db: db, insert: insert}, nil
}

// IndexDocument adds doc, replacing any earlier document with the same
// path. Safe for concurrent use.
func (s *SQLiteIndexer) IndexDocument(ctx context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("index document: indexer closed")
	}

	if s.tx == nil {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		s.tx = tx
	}
	_, err := s.tx.StmtContext(ctx, s.insert).ExecContext(ctx,
		doc.Path, doc.Title, strings.ToLower(doc.Locale), doc.Description,
		doc.WordCount, strings.Join(doc.Bookmarks, " "), doc.Content)
	if err != nil {
		return fmt.Errorf("index document %s: %w", doc.Path, err)
	}

	s.pending++
	if s.pending >= batchSize {
		return s.commit()
	}
	return nil
}

func (s *SQLiteIndexer) commit() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx, s.pending = nil, 0
	if err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Close commits outstanding documents, compacts the index and renames it
// over the destination path. Calling Close twice is a no-op.
func (s *SQLiteIndexer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.commit()
	if err == nil {
		err = s.finalize()
	}
	_ = s.insert.Close()
	if cerr := s.db.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close index: %w", cerr)
	}
	if err != nil {
		_ = removeDB(s.tmpPath)
		return err
	}
	if err := os.Rename(s.tmpPath, s.path); err != nil {
		return fmt.Errorf("install index: %w", err)
	}
	return nil
}

// finalize merges the FTS segments and folds the WAL back into the main
// file so the index is a single self-contained file.
func (s *SQLiteIndexer) finalize() error {
	for _, stmt := range []string{
		`INSERT INTO docs_fts(docs_fts) VALUES ('optimize')`,
		`PRAGMA wal_checkpoint(TRUNCATE)`,
		`PRAGMA journal_mode=DELETE`,
	} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("finalize index: %w", err)
		}
	}
	return nil
}

// removeDB deletes a database file and its journal side files.
func removeDB(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
