// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/propextract/pkg/types"
)

// QueryOptions holds filters for dataset queries. Empty fields match
// everything.
type QueryOptions struct {
	// Type filters by canonical property type.
	Type types.PropertyType

	// Material matches material names containing this text, case-insensitively.
	Material string

	// PaperID filters by paper.
	PaperID string

	// MaxResults limits result count. Zero uses store default.
	MaxResults int
}

// IsEmpty reports whether the query has no filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Type == "" && q.Material == "" && q.PaperID == ""
}

// QueryResult is a record with its paper's bibliographic fields.
type QueryResult struct {
	types.MechanicalPropertyRecord `yaml:",inline"`

	PaperTitle   string   `json:"paper_title" yaml:"paper_title"`
	PaperAuthors []string `json:"paper_authors" yaml:"paper_authors"`
	RunID        string   `json:"run_id" yaml:"run_id"`
}

// Retrieve queries the index. Results are sorted by paper, property type
// and material.
func (s *Store) Retrieve(ctx context.Context, opts QueryOptions) ([]QueryResult, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT r.paper_id, r.property_type, r.material, r.property_name,
			r.value, r.unit, r.temperature, r.condition, r.extracted_at, r.run_id,
			p.title, p.authors
		FROM records r
		LEFT JOIN papers p ON r.paper_id = p.id
		WHERE 1=1`)

	if opts.Type != "" {
		qb.WriteString(` AND r.property_type = ?`)
		args = append(args, string(opts.Type))
	}
	if opts.Material != "" {
		qb.WriteString(` AND r.material LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(opts.Material)+"%")
	}
	if opts.PaperID != "" {
		qb.WriteString(` AND r.paper_id = ?`)
		args = append(args, opts.PaperID)
	}

	qb.WriteString(` ORDER BY r.paper_id, r.property_type, r.material LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying dataset index: %w", err)
	}
	defer rows.Close()

	var results []QueryResult
	for rows.Next() {
		var (
			qr           QueryResult
			paperID      string
			propertyType string
			propertyName sql.NullString
			condition    sql.NullString
			extractedAt  string
			runID        sql.NullString
			paperTitle   sql.NullString
			authorsJSON  sql.NullString
		)
		if err := rows.Scan(
			&paperID, &propertyType, &qr.Material, &propertyName,
			&qr.Value, &qr.Unit, &qr.Temperature, &condition, &extractedAt, &runID,
			&paperTitle, &authorsJSON,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		qr.SourceIdentifier = types.PaperIdentifier(paperID)
		qr.PropertyType = types.PropertyType(propertyType)
		qr.PropertyName = propertyName.String
		qr.Condition = condition.String
		qr.RunID = runID.String
		qr.PaperTitle = paperTitle.String
		if t, err := time.Parse(time.RFC3339Nano, extractedAt); err == nil {
			qr.ExtractedAt = t
		}
		if authorsJSON.Valid {
			json.Unmarshal([]byte(authorsJSON.String), &qr.PaperAuthors)
		}

		results = append(results, qr)
	}

	return results, rows.Err()
}

// Counts returns the number of indexed records per property type.
func (s *Store) Counts(ctx context.Context) (map[types.PropertyType]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT property_type, count(*) FROM records GROUP BY property_type`)
	if err != nil {
		return nil, fmt.Errorf("counting records: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.PropertyType]int)
	for rows.Next() {
		var (
			pt string
			n  int
		)
		if err := rows.Scan(&pt, &n); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		counts[types.PropertyType(pt)] = n
	}
	return counts, rows.Err()
}

// Rejections returns the stored rejections for a paper in insertion order.
func (s *Store) Rejections(ctx context.Context, paperID string) ([]types.Rejection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, reason, candidate FROM rejections WHERE paper_id = ? ORDER BY rowid`, paperID)
	if err != nil {
		return nil, fmt.Errorf("querying rejections: %w", err)
	}
	defer rows.Close()

	var out []types.Rejection
	for rows.Next() {
		var (
			rej      types.Rejection
			reason   sql.NullString
			candJSON sql.NullString
		)
		if err := rows.Scan(&rej.Code, &reason, &candJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		rej.Reason = reason.String
		if candJSON.Valid {
			json.Unmarshal([]byte(candJSON.String), &rej.Candidate)
		}
		out = append(out, rej)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
