// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/media-convert/pkg/types"
)

// QueryOptions filters history listings.
type QueryOptions struct {
	// Type filters by result type.
	Type types.FileKind

	// Name matches original filenames containing this substring.
	Name string

	// RequestID limits results to one request.
	RequestID string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// Stats aggregates the whole history.
type Stats struct {
	Total       int   `json:"total" yaml:"total"`
	Images      int   `json:"images" yaml:"images"`
	Videos      int   `json:"videos" yaml:"videos"`
	Unsupported int   `json:"unsupported" yaml:"unsupported"`
	Failed      int   `json:"failed" yaml:"failed"`
	InputBytes  int64 `json:"input_bytes" yaml:"input_bytes"`
}

// List returns records matching opts, newest first.
func (s *Store) List(ctx context.Context, opts QueryOptions) ([]types.ConversionRecord, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT id, request_id, original_name, type, converted_name, url, message,
			object_key, input_bytes, duration_ms, created_at
		FROM conversions
		WHERE 1=1`)

	if opts.Type != "" {
		qb.WriteString(` AND type = ?`)
		args = append(args, string(opts.Type))
	}
	if opts.Name != "" {
		qb.WriteString(` AND instr(lower(original_name), lower(?)) > 0`)
		args = append(args, opts.Name)
	}
	if opts.RequestID != "" {
		qb.WriteString(` AND request_id = ?`)
		args = append(args, opts.RequestID)
	}

	qb.WriteString(` ORDER BY id DESC LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	records := []types.ConversionRecord{}
	for rows.Next() {
		var (
			rec                                       types.ConversionRecord
			kind, createdAt                           string
			requestID, converted, url, msg, objectKey sql.NullString
		)
		if err := rows.Scan(&rec.ID, &requestID, &rec.OriginalName, &kind, &converted, &url, &msg,
			&objectKey, &rec.InputBytes, &rec.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		rec.Type = types.FileKind(kind)
		rec.RequestID = requestID.String
		rec.ConvertedName = converted.String
		rec.URL = url.String
		rec.Message = msg.String
		rec.ObjectKey = objectKey.String
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rec.CreatedAt = ts
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history rows: %w", err)
	}
	return records, nil
}

// Stats returns aggregate counts over every record.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT
			count(*),
			coalesce(sum(type = 'image'), 0),
			coalesce(sum(type = 'video'), 0),
			coalesce(sum(type = 'unsupported'), 0),
			coalesce(sum(type = 'error'), 0),
			coalesce(sum(input_bytes), 0)
		FROM conversions`,
	).Scan(&st.Total, &st.Images, &st.Videos, &st.Unsupported, &st.Failed, &st.InputBytes)
	if err != nil {
		return Stats{}, fmt.Errorf("querying history stats: %w", err)
	}
	return st, nil
}
