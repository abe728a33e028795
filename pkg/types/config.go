package types

import "time"

// ServerConfig holds settings for the HTTP surface.
type ServerConfig struct {
	// Addr is the listen address (default ":5000").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" mapstructure:"cors_origins"`

	// MaxUploadMB caps the size of a multipart request body in megabytes.
	MaxUploadMB int64 `json:"max_upload_mb" yaml:"max_upload_mb" mapstructure:"max_upload_mb"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// PathsConfig holds the working directories.
type PathsConfig struct {
	// UploadDir receives temporary uploads; files are removed after processing.
	UploadDir string `json:"upload_dir" yaml:"upload_dir" mapstructure:"upload_dir"`

	// OutputDir receives converted files and is served under /converted.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// DataDir holds the history database.
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
}

// FFmpegBackend selects how ffmpeg is launched.
type FFmpegBackend string

const (
	BackendNative    FFmpegBackend = "native"
	BackendContainer FFmpegBackend = "container"
)

// ConversionConfig holds settings for the image and video converters.
type ConversionConfig struct {
	// JPEGQuality is the JPEG encoder quality, 1-100 (default 90).
	JPEGQuality int `json:"jpeg_quality" yaml:"jpeg_quality" mapstructure:"jpeg_quality"`

	// FFmpegBackend selects native or container execution of ffmpeg.
	FFmpegBackend FFmpegBackend `json:"ffmpeg_backend" yaml:"ffmpeg_backend" mapstructure:"ffmpeg_backend"`

	// FFmpegBin is the ffmpeg executable for the native backend.
	FFmpegBin string `json:"ffmpeg_bin" yaml:"ffmpeg_bin" mapstructure:"ffmpeg_bin"`

	// FFprobeBin is the ffprobe executable used for output verification.
	FFprobeBin string `json:"ffprobe_bin" yaml:"ffprobe_bin" mapstructure:"ffprobe_bin"`

	// FFmpegImage is the container image for the container backend. Its
	// entrypoint must be ffmpeg.
	FFmpegImage string `json:"ffmpeg_image" yaml:"ffmpeg_image" mapstructure:"ffmpeg_image"`

	// VerifyOutput runs ffprobe on every transcoded file.
	VerifyOutput bool `json:"verify_output" yaml:"verify_output" mapstructure:"verify_output"`

	// Timeout bounds a single file conversion.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// StorageConfig holds settings for mirroring converted files to an
// S3-compatible bucket.
type StorageConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Endpoint  string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	Bucket    string `json:"bucket" yaml:"bucket" mapstructure:"bucket"`
	Prefix    string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`
	AccessKey string `json:"access_key,omitempty" yaml:"access_key,omitempty" mapstructure:"access_key"`
	SecretKey string `json:"secret_key,omitempty" yaml:"secret_key,omitempty" mapstructure:"secret_key"`
	UseSSL    bool   `json:"use_ssl" yaml:"use_ssl" mapstructure:"use_ssl"`
}

// HistoryConfig holds settings for the conversion history store.
type HistoryConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Path is the SQLite database file. Empty means <data_dir>/history.db.
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// MaxResults is the default number of records returned by a listing.
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// NotifyConfig holds settings for batch notifications.
type NotifyConfig struct {
	// TopicURL is the full ntfy topic URL. Empty disables notifications.
	TopicURL string `json:"topic_url" yaml:"topic_url" mapstructure:"topic_url"`

	// Token is an optional bearer token for the ntfy server.
	Token string `json:"token,omitempty" yaml:"token,omitempty" mapstructure:"token"`

	Timeout    time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is console or json.
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Config groups every section of the application configuration.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`
	Paths      PathsConfig      `json:"paths" yaml:"paths" mapstructure:"paths"`
	Conversion ConversionConfig `json:"conversion" yaml:"conversion" mapstructure:"conversion"`
	Storage    StorageConfig    `json:"storage" yaml:"storage" mapstructure:"storage"`
	History    HistoryConfig    `json:"history" yaml:"history" mapstructure:"history"`
	Notify     NotifyConfig     `json:"notify" yaml:"notify" mapstructure:"notify"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
}
