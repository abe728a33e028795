// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the records shared between the conversion
// dispatcher, the HTTP surface, the history store, and the CLI.
package types

import "time"

// FileKind tags a per-file conversion result.
type FileKind string

const (
	KindImage       FileKind = "image"
	KindVideo       FileKind = "video"
	KindUnsupported FileKind = "unsupported"
	KindError       FileKind = "error"
)

// Upload is one received file waiting for conversion. It lives only for the
// duration of a single request.
type Upload struct {
	// OriginalName is the client-supplied filename (e.g. "IMG_0042.HEIC").
	OriginalName string `json:"original_name" yaml:"original_name"`

	// TempPath is where the upload was stored before conversion. The file is
	// removed once the upload has been processed.
	TempPath string `json:"temp_path" yaml:"temp_path"`

	// Ext is the lowercased extension of OriginalName including the dot.
	Ext string `json:"ext" yaml:"ext"`

	// Size is the upload size in bytes.
	Size int64 `json:"size" yaml:"size"`
}

// Result reports the outcome for one uploaded file. Exactly one Result is
// produced per Upload.
type Result struct {
	Type          FileKind `json:"type" yaml:"type"`
	OriginalName  string   `json:"originalName" yaml:"original_name"`
	ConvertedName string   `json:"convertedName,omitempty" yaml:"converted_name,omitempty"`
	URL           string   `json:"url,omitempty" yaml:"url,omitempty"`
	Message       string   `json:"message,omitempty" yaml:"message,omitempty"`
}

// Succeeded reports whether the file was converted.
func (r Result) Succeeded() bool {
	return r.Type == KindImage || r.Type == KindVideo
}

// ConvertResponse is the body of a successful POST /api/convert.
type ConvertResponse struct {
	Files []Result `json:"files"`
}

// ErrorResponse is the body returned when a request fails as a whole.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ConversionRecord is one persisted entry of the conversion history.
type ConversionRecord struct {
	ID            int64     `json:"id" yaml:"id"`
	RequestID     string    `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	OriginalName  string    `json:"original_name" yaml:"original_name"`
	Type          FileKind  `json:"type" yaml:"type"`
	ConvertedName string    `json:"converted_name,omitempty" yaml:"converted_name,omitempty"`
	URL           string    `json:"url,omitempty" yaml:"url,omitempty"`
	Message       string    `json:"message,omitempty" yaml:"message,omitempty"`
	ObjectKey     string    `json:"object_key,omitempty" yaml:"object_key,omitempty"`
	InputBytes    int64     `json:"input_bytes" yaml:"input_bytes"`
	DurationMS    int64     `json:"duration_ms" yaml:"duration_ms"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
}
