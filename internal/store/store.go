// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store indexes unified datasets in SQLite so records can be
// queried across runs by property type, material or paper.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/propextract/internal/acquire"
	"github.com/pdiddy/propextract/internal/unify"
	"github.com/pdiddy/propextract/pkg/types"
)

const dbFile = "propextract.db"

// Store manages the dataset index database.
type Store struct {
	db         *sql.DB
	dir        string
	papersDir  string
	maxResults int
}

// NewStore opens or creates the index at dir/propextract.db and creates
// the schema if it does not exist. papersDir is where metadata sidecars
// written by the downloader live.
func NewStore(cfg types.StoreConfig, papersDir string) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}

	s := &Store{
		db:         db,
		dir:        cfg.Dir,
		papersDir:  papersDir,
		maxResults: maxResults,
	}

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
			title TEXT,
			authors TEXT,
			publisher TEXT,
			journal TEXT,
			date TEXT,
			source_url TEXT,
			outcome TEXT,
			stage TEXT,
			artifact_source TEXT,
			run_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			paper_id TEXT NOT NULL REFERENCES papers(id),
			property_type TEXT NOT NULL,
			material TEXT NOT NULL,
			property_name TEXT,
			value REAL NOT NULL,
			unit TEXT NOT NULL,
			temperature REAL NOT NULL,
			condition TEXT,
			extracted_at TEXT NOT NULL,
			run_id TEXT,
			UNIQUE(paper_id, property_type, material)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_type ON records(property_type)`,
		`CREATE INDEX IF NOT EXISTS idx_records_material ON records(material)`,
		`CREATE TABLE IF NOT EXISTS rejections (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			paper_id TEXT NOT NULL REFERENCES papers(id),
			code TEXT NOT NULL,
			reason TEXT,
			candidate TEXT,
			run_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rejections_paper_id ON rejections(paper_id)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			extraction_date TEXT,
			papers INTEGER,
			records INTEGER,
			ingested_at TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// IngestSummary holds per-paper counts from an ingest.
type IngestSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
}

// Total returns the number of papers processed.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// IngestFile loads a dataset document written by the unifier and ingests it.
func (s *Store) IngestFile(ctx context.Context, path string, w io.Writer) (IngestSummary, error) {
	doc, err := unify.ReadFile(path)
	if err != nil {
		return IngestSummary{}, err
	}
	return s.Ingest(ctx, doc, w)
}

// Ingest indexes every paper in doc. A paper's previous records are
// replaced wholesale, so re-running a paper never leaves stale rows. A run
// that was already ingested is skipped. On success export.yaml is
// refreshed.
func (s *Store) Ingest(ctx context.Context, doc types.DatasetDocument, w io.Writer) (IngestSummary, error) {
	var summary IngestSummary

	var seen string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs WHERE id = ?`, doc.RunID).Scan(&seen)
	if err == nil {
		summary.Skipped = len(doc.Papers)
		fmt.Fprintf(w, "skipped run %s (already indexed)\n", doc.RunID)
		return summary, nil
	}
	if err != sql.ErrNoRows {
		return summary, fmt.Errorf("checking run %s: %w", doc.RunID, err)
	}

	byPaper := make(map[types.PaperIdentifier][]types.MechanicalPropertyRecord)
	for _, r := range doc.Records {
		byPaper[r.SourceIdentifier] = append(byPaper[r.SourceIdentifier], r)
	}
	rejByPaper := make(map[types.PaperIdentifier][]types.Rejection)
	for _, r := range doc.Rejections {
		rejByPaper[r.Candidate.SourceIdentifier] = append(rejByPaper[r.Candidate.SourceIdentifier], r)
	}

	for _, p := range doc.Papers {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		var existing int
		if err := s.db.QueryRowContext(ctx,
			`SELECT count(*) FROM papers WHERE id = ?`, string(p.Identifier),
		).Scan(&existing); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", p.Identifier, err)
			summary.Failed++
			continue
		}

		recs := byPaper[p.Identifier]
		if err := s.ingestPaper(ctx, doc.RunID, p, recs, rejByPaper[p.Identifier]); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", p.Identifier, err)
			summary.Failed++
			continue
		}

		if existing > 0 {
			fmt.Fprintf(w, "updated %s (%d records)\n", p.Identifier, len(recs))
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexing %s (%d records)\n", p.Identifier, len(recs))
			summary.Indexed++
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, extraction_date, papers, records, ingested_at) VALUES (?, ?, ?, ?, ?)`,
		doc.RunID, doc.ExtractionDate.UTC().Format(time.RFC3339), doc.PapersProcessed,
		doc.TotalPropertiesExtracted, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return summary, fmt.Errorf("recording run %s: %w", doc.RunID, err)
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)

	if summary.Indexed > 0 || summary.Updated > 0 {
		if _, err := s.ExportYAML(ctx, QueryOptions{}); err != nil {
			fmt.Fprintf(w, "warning: export.yaml write failed: %v\n", err)
		}
	}

	return summary, nil
}

func (s *Store) ingestPaper(ctx context.Context, runID string, report types.PaperReport, recs []types.MechanicalPropertyRecord, rejs []types.Rejection) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	id := string(report.Identifier)
	meta := s.loadPaperMetadata(report.Identifier)
	title := report.Title
	if meta.Title != "" {
		title = meta.Title
	}
	authorsJSON, _ := json.Marshal(meta.Authors)
	dateStr := ""
	if !meta.PublicationDate.IsZero() {
		dateStr = meta.PublicationDate.Format(time.RFC3339)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO papers (id, title, authors, publisher, journal, date, source_url, outcome, stage, artifact_source, run_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, authors=excluded.authors, publisher=excluded.publisher,
			journal=excluded.journal, date=excluded.date, source_url=excluded.source_url,
			outcome=excluded.outcome, stage=excluded.stage,
			artifact_source=excluded.artifact_source, run_id=excluded.run_id`,
		id, title, string(authorsJSON), meta.Publisher, meta.Journal, dateStr,
		meta.SourceURL, string(report.Outcome), report.Stage, report.ArtifactSource, runID,
	)
	if err != nil {
		return fmt.Errorf("upserting paper: %w", err)
	}

	for _, stmt := range []string{
		`DELETE FROM records WHERE paper_id = ?`,
		`DELETE FROM rejections WHERE paper_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("deleting old rows: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (paper_id, property_type, material, property_name, value, unit, temperature, condition, extracted_at, run_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(paper_id, property_type, material) DO UPDATE SET
			property_name=excluded.property_name, value=excluded.value, unit=excluded.unit,
			temperature=excluded.temperature, condition=excluded.condition,
			extracted_at=excluded.extracted_at, run_id=excluded.run_id`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		_, err := stmt.ExecContext(ctx,
			id, string(r.PropertyType), r.Material, r.PropertyName,
			r.Value, r.Unit, r.Temperature, r.Condition,
			r.ExtractedAt.UTC().Format(time.RFC3339Nano), runID,
		)
		if err != nil {
			return fmt.Errorf("inserting %s/%s: %w", r.PropertyType, r.Material, err)
		}
	}

	for _, rej := range rejs {
		candJSON, _ := json.Marshal(rej.Candidate)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO rejections (paper_id, code, reason, candidate, run_id) VALUES (?, ?, ?, ?, ?)`,
			id, rej.Code, rej.Reason, string(candJSON), runID,
		)
		if err != nil {
			return fmt.Errorf("inserting rejection: %w", err)
		}
	}

	return tx.Commit()
}

// loadPaperMetadata reads the downloader's sidecar for id. A missing or
// unreadable sidecar yields zero metadata.
func (s *Store) loadPaperMetadata(id types.PaperIdentifier) types.PaperMetadata {
	if s.papersDir == "" {
		return types.PaperMetadata{}
	}
	meta, err := acquire.ReadMetadata(s.papersDir, id)
	if err != nil {
		return types.PaperMetadata{}
	}
	return meta
}
