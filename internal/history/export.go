// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/media-convert/pkg/types"
)

const exportLimit = 100000

// ExportFormat selects the export encoding.
type ExportFormat string

const (
	FormatYAML ExportFormat = "yaml"
	FormatJSON ExportFormat = "json"
)

// exportDocument is the top-level export shape.
type exportDocument struct {
	Stats       Stats                    `json:"stats" yaml:"stats"`
	Conversions []types.ConversionRecord `json:"conversions" yaml:"conversions"`
}

// Export writes records matching opts, with aggregate stats, to w.
func (s *Store) Export(ctx context.Context, w io.Writer, format ExportFormat, opts QueryOptions) error {
	opts.MaxResults = exportLimit
	records, err := s.List(ctx, opts)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		return err
	}
	doc := exportDocument{Stats: stats, Conversions: records}

	switch format {
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
