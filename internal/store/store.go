// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists Papers in a SQLite database. It supports the
// three operations the ingest pipeline and the analysis cache rely on:
// get-by-id, upsert and insert-if-absent.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/pdiddy/arxiv-agent/pkg/types"
)

// ErrNotFound is returned by Get when no paper has the requested id.
var ErrNotFound = errors.New("paper not found")

// ErrDuplicate is returned by Insert when a paper with the same id is
// already stored.
var ErrDuplicate = errors.New("paper already stored")

// DefaultPath is used when StoreConfig.Path is empty.
const DefaultPath = "data/papers.db"

// timeLayout is fixed-width so that lexical order equals time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store manages the paper database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the database at cfg.Path and creates the
// schema if it does not exist.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	dbPath := cfg.Path
	if dbPath == "" {
		dbPath = DefaultPath
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			authors TEXT,
			arxiv_url TEXT,
			pdf_url TEXT,
			published_date TEXT,
			updated_date TEXT,
			summary TEXT,
			prime_category TEXT,
			categories TEXT,
			crawled_at TEXT,
			deep_analysis TEXT,
			analyzed_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_published ON papers(published_date)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_updated ON papers(updated_date)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_crawled ON papers(crawled_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

const paperColumns = `id, title, authors, arxiv_url, pdf_url, published_date, updated_date,
	summary, prime_category, categories, crawled_at, deep_analysis, analyzed_at`

// Insert stores p if no paper with the same id exists, in its own
// transaction. It returns ErrDuplicate when the id is already stored.
// A zero CrawledAt is set to the current time.
func (s *Store) Insert(ctx context.Context, p *types.Paper) error {
	if p.CrawledAt.IsZero() {
		p.CrawledAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO papers (`+paperColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		paperArgs(p)...)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting paper %s: %w", p.ID, err)
	}
	return tx.Commit()
}

// Upsert inserts p or replaces the stored catalog metadata for its id.
// A stored deep analysis survives when p carries none.
func (s *Store) Upsert(ctx context.Context, p *types.Paper) error {
	if p.CrawledAt.IsZero() {
		p.CrawledAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO papers (`+paperColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, authors=excluded.authors, arxiv_url=excluded.arxiv_url,
			pdf_url=excluded.pdf_url, published_date=excluded.published_date,
			updated_date=excluded.updated_date, summary=excluded.summary,
			prime_category=excluded.prime_category, categories=excluded.categories,
			deep_analysis=COALESCE(excluded.deep_analysis, papers.deep_analysis),
			analyzed_at=COALESCE(excluded.analyzed_at, papers.analyzed_at)`,
		paperArgs(p)...)
	if err != nil {
		return fmt.Errorf("upserting paper %s: %w", p.ID, err)
	}
	return nil
}

// SaveAnalysis records the deep analysis and its timestamp for id.
func (s *Store) SaveAnalysis(ctx context.Context, id, analysis string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE papers SET deep_analysis = ?, analyzed_at = ? WHERE id = ?`,
		analysis, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("saving analysis for %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("saving analysis for %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns the paper with the given id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*types.Paper, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE id = ?`, id)
	p, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading paper %s: %w", id, err)
	}
	return p, nil
}

// Count returns the number of stored papers.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM papers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting papers: %w", err)
	}
	return n, nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func paperArgs(p *types.Paper) []any {
	authorsJSON, _ := json.Marshal(p.Authors)
	categoriesJSON, _ := json.Marshal(p.Categories)

	var analysis, analyzedAt sql.NullString
	if p.DeepAnalysis != "" {
		analysis = sql.NullString{String: p.DeepAnalysis, Valid: true}
	}
	if p.AnalyzedAt != nil {
		analyzedAt = sql.NullString{String: formatTime(*p.AnalyzedAt), Valid: true}
	}

	return []any{
		p.ID, p.Title, string(authorsJSON), p.ArxivURL, p.PDFURL,
		formatTime(p.PublishedDate), formatTime(p.UpdatedDate),
		p.Summary, p.PrimeCategory, string(categoriesJSON),
		formatTime(p.CrawledAt), analysis, analyzedAt,
	}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaper(row rowScanner) (*types.Paper, error) {
	var (
		p                                   types.Paper
		authors, categories                 sql.NullString
		arxivURL, pdfURL, summary, primeCat sql.NullString
		published, updated, crawled         sql.NullString
		analysis, analyzedAt                sql.NullString
	)
	err := row.Scan(&p.ID, &p.Title, &authors, &arxivURL, &pdfURL,
		&published, &updated, &summary, &primeCat, &categories,
		&crawled, &analysis, &analyzedAt)
	if err != nil {
		return nil, err
	}

	p.ArxivURL = arxivURL.String
	p.PDFURL = pdfURL.String
	p.Summary = summary.String
	p.PrimeCategory = primeCat.String
	p.DeepAnalysis = analysis.String
	if authors.Valid {
		_ = json.Unmarshal([]byte(authors.String), &p.Authors)
	}
	if categories.Valid {
		_ = json.Unmarshal([]byte(categories.String), &p.Categories)
	}
	p.PublishedDate = parseTime(published.String)
	p.UpdatedDate = parseTime(updated.String)
	p.CrawledAt = parseTime(crawled.String)
	if analyzedAt.Valid {
		t := parseTime(analyzedAt.String)
		p.AnalyzedAt = &t
	}
	return &p, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
