// Package config implements imgplace's TOML + environment configuration:
// flat TOML keys, an XDG search path, and env overrides. Config is an
// immutable record built once per call chain; CLI flag overrides go
// through WithOverrides rather than live setter methods.
package config

import "time"

// GeneralConfig holds directories, logging, and session identity.
type GeneralConfig struct {
	IDDatabaseDir    string `toml:"id_database_dir"`
	CacheDir         string `toml:"cache_dir"`
	LogLevel         string `toml:"log_level"`
	SessionID        string `toml:"session_id"` // empty means auto-detect
	RedetectTerminal bool   `toml:"redetect_terminal"`
}

// IDConfig configures the ID allocator.
type IDConfig struct {
	// IDSpace names one of the four feature-spaces: "8bit", "24bit",
	// "8bit+4th", "24bit+4th".
	IDSpace            string `toml:"id_space"`
	IDSubspace         string `toml:"id_subspace"` // binary digits, e.g. "0110"
	MaxIDsPerSubspace  int    `toml:"max_ids_per_subspace"`
}

// UploadConfig configures the upload coordinator.
type UploadConfig struct {
	UploadMethod    string   `toml:"upload_method"` // auto|file|stream
	StreamMaxSize   int64    `toml:"stream_max_size"`
	FileMaxSize     int64    `toml:"file_max_size"`
	MaxPayloadSize  int      `toml:"max_payload_size"`
	MaxCommandSize  int      `toml:"max_command_size"`
	NumAttempts     int      `toml:"num_attempts"`
	AllowConcurrent bool     `toml:"allow_concurrent"`
	ForceUpload     bool     `toml:"force_upload"`
	NoUpload        bool     `toml:"no_upload"`

	UploadCommandDelay           Duration `toml:"upload_command_delay"`
	UploadProgressUpdateInterval Duration `toml:"upload_progress_update_interval"`
	StallTimeout                 Duration `toml:"stall_timeout"`
	ReuploadMaxBytesAgo          int64    `toml:"reupload_max_bytes_ago"`
	ReuploadMaxUploadsAgo        int      `toml:"reupload_max_uploads_ago"`
	ReuploadMaxSecondsAgo        Duration `toml:"reupload_max_seconds_ago"`

	RetentionWindow Duration `toml:"upload_record_retention"`
}

// CacheConfig configures the conversion cache.
type CacheConfig struct {
	Tolerance          float64 `toml:"tolerance"`
	ResizeKernel       string  `toml:"resize_kernel"` // nearest|linear|catmullrom|lanczos
	Sharpen            float64 `toml:"sharpen"`       // unsharp-mask amount applied after resize, 0 disables
	CacheMaxImages     int     `toml:"cache_max_images"`
	CacheMaxTotalBytes int64   `toml:"cache_max_total_size_bytes"`
	CacheTargetImages  int     `toml:"cache_target_images"`
	CacheTargetBytes   int64   `toml:"cache_target_size_bytes"`
}

// DisplayConfig configures geometry and placeholder emission.
type DisplayConfig struct {
	Cols           int     `toml:"cols"` // 0 means auto
	Rows           int     `toml:"rows"` // 0 means auto
	Scale          float64 `toml:"scale"`
	GlobalScale    float64 `toml:"global_scale"`
	MaxCols        int     `toml:"max_cols"`
	MaxRows        int     `toml:"max_rows"`
	UseLineFeeds   string  `toml:"use_line_feeds"` // auto|true|false
	FewerDiacritics bool   `toml:"fewer_diacritics"`
	Allow256Color  bool    `toml:"allow_256_color"`
	OutDisplay     string  `toml:"out_display"` // "-" means stdout
	OutCommand     string  `toml:"out_command"` // "-" means stdout
}

// Config is the complete, immutable imgplace configuration. Build one
// with Load/LoadFromFile/DefaultConfig, then layer per-call overrides
// with WithOverrides — never mutate a *Config in place once built.
type Config struct {
	General GeneralConfig `toml:"general"`
	IDs     IDConfig      `toml:"id"`
	Upload  UploadConfig  `toml:"upload"`
	Cache   CacheConfig   `toml:"cache"`
	Display DisplayConfig `toml:"display"`

	// provenance records, per flat dotted field name, where each value
	// last came from: "default", "file", "env", or "flag". Populated by
	// Load/LoadFromReader (file vs default) and applyEnvOverrides/
	// WithOverrides; not serialized to TOML.
	provenance map[string]string
}

// Provenance returns where field (a dotted path like "upload.num_attempts")
// was last set, or "default" if never recorded.
func (c *Config) Provenance(field string) string {
	if c.provenance == nil {
		return "default"
	}
	if v, ok := c.provenance[field]; ok {
		return v
	}
	return "default"
}

func (c *Config) setProvenance(field, source string) {
	if c.provenance == nil {
		c.provenance = make(map[string]string)
	}
	c.provenance[field] = source
}

// DefaultConfig returns imgplace's built-in defaults.
func DefaultConfig() *Config {
	home, _ := osUserHomeDir()
	return &Config{
		General: GeneralConfig{
			IDDatabaseDir: xdgPath(home, "state", "imgplace", "ids"),
			CacheDir:      xdgPath(home, "cache", "imgplace", ""),
			LogLevel:      "info",
		},
		IDs: IDConfig{
			IDSpace:           "24bit+4th",
			IDSubspace:        "",
			MaxIDsPerSubspace: 1 << 20,
		},
		Upload: UploadConfig{
			UploadMethod:                  "auto",
			StreamMaxSize:                 2 << 20,  // 2 MiB
			FileMaxSize:                   10 << 20, // 10 MiB
			MaxPayloadSize:                2816,
			MaxCommandSize:                65536,
			NumAttempts:                   10,
			UploadCommandDelay:            Duration{0},
			UploadProgressUpdateInterval:  Duration{1 * time.Second},
			StallTimeout:                  Duration{10 * time.Second},
			ReuploadMaxBytesAgo:           20 << 20, // 20 MiB
			ReuploadMaxUploadsAgo:         1024,
			ReuploadMaxSecondsAgo:         Duration{1 * time.Hour},
			RetentionWindow:               Duration{7 * 24 * time.Hour},
		},
		Cache: CacheConfig{
			Tolerance:          0.2,
			ResizeKernel:       "catmullrom",
			Sharpen:            0.3,
			CacheMaxImages:     1000,
			CacheMaxTotalBytes: 512 << 20,
			CacheTargetImages:  800,
			CacheTargetBytes:   400 << 20,
		},
		Display: DisplayConfig{
			Scale:        1,
			GlobalScale:  1,
			MaxCols:      9999,
			MaxRows:      297,
			UseLineFeeds: "auto",
			Allow256Color: true,
			OutDisplay:   "-",
			OutCommand:   "-",
		},
	}
}
