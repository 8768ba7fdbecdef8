package search

import (
	"context"
	"database/sql"
	"fmt"
	htmlutil "html"
	"strings"
	"unicode"
)

// Result is one matching page. Snippet is an excerpt of the page text
// with the matched terms wrapped in <mark>; everything else is escaped.
type Result struct {
	Title       string `json:"title"`
	Path        string `json:"path"`
	Locale      string `json:"locale"`
	Description string `json:"description,omitempty"`
	Snippet     string `json:"snippet,omitempty"`
	WordCount   int64  `json:"wordCount"`
}

type SearchResponse struct {
	Total   uint64   `json:"total"`
	Results []Result `json:"results"`
}

// SQLiteSearcher queries an index built by SQLiteIndexer.
type SQLiteSearcher struct {
	db *sql.DB
}

// NewSQLiteSearcher opens the index at path read only. It fails when no
// index has been published yet.
func NewSQLiteSearcher(path string) (*SQLiteSearcher, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteSearcher{db: db}, nil
}

func (s *SQLiteSearcher) Close() error {
	return s.db.Close()
}

// Search runs a prefix full-text query. An empty locale searches every
// locale.
func (s *SQLiteSearcher) Search(ctx context.Context, queryString string, locale string, limit int, offset int) (SearchResponse, error) {
	queryString = sanitizeQuery(queryString)
	if queryString == "" {
		return SearchResponse{Results: []Result{}}, nil
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT d.title, d.path, d.locale, d.description, d.word_count,
		snippet(docs_fts, 2, char(1), char(2), '…', 12),
		COUNT(*) OVER() AS total
		 FROM docs_fts f
		 JOIN docs d ON d.rowid = f.rowid
		 WHERE docs_fts MATCH ?`
	args := []any{queryString}

	if locale != "" {
		query += ` AND d.locale = ?`
		args = append(args, strings.ToLower(locale))
	}

	query += ` ORDER BY f.rank LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("search query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var resp SearchResponse
	resp.Results = make([]Result, 0)

	for rows.Next() {
		var r Result
		var total uint64
		var snippet string
		if err := rows.Scan(&r.Title, &r.Path, &r.Locale, &r.Description, &r.WordCount, &snippet, &total); err != nil {
			return SearchResponse{}, fmt.Errorf("scan result: %w", err)
		}
		r.Snippet = highlight(snippet)
		resp.Total = total
		resp.Results = append(resp.Results, r)
	}
	if err := rows.Err(); err != nil {
		return SearchResponse{}, fmt.Errorf("iterate results: %w", err)
	}

	return resp, nil
}

// highlight escapes an FTS snippet and turns the \x01 and \x02 match
// markers into <mark> tags.
func highlight(snippet string) string {
	return markReplacer.Replace(htmlutil.EscapeString(snippet))
}

var markReplacer = strings.NewReplacer("\x01", "<mark>", "\x02", "</mark>")

// sanitizeQuery turns free text into an FTS5 query of quoted prefix
// terms. Operators and syntax characters are dropped.
func sanitizeQuery(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range q {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r),
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	var filtered []string
	for _, t := range strings.Fields(b.String()) {
		switch strings.ToUpper(t) {
		case "AND", "OR", "NOT", "NEAR":
			continue
		}
		filtered = append(filtered, `"`+t+`"*`)
	}
	return strings.Join(filtered, " ")
}
