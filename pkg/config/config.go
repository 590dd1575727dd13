package config

import (
	"github.com/sdejongh/mediatidy/pkg/models"
)

// Config represents the application configuration
type Config struct {
	Sort        SortConfig        `yaml:"sort"`
	Dedup       DedupConfig       `yaml:"dedup"`
	Performance PerformanceConfig `yaml:"performance"`
	Output      OutputConfig      `yaml:"output"`
	Logging     LoggingConfig     `yaml:"logging"`
	Exclude     []string          `yaml:"exclude"`
}

// SortConfig holds directory sort settings
type SortConfig struct {
	Level         models.Granularity    `yaml:"level"`
	Mode          models.RelocationMode `yaml:"mode"`
	Rename        bool                  `yaml:"rename"`
	MtimeFallback bool                  `yaml:"mtime_fallback"`
}

// DedupConfig holds duplicate removal settings
type DedupConfig struct {
	// Keep is how many copies of each duplicate group survive
	Keep      int                       `yaml:"keep"`
	ImageHash models.ImageHashAlgorithm `yaml:"image_hash"`
	UseCache  bool                      `yaml:"use_cache"`
}

// PerformanceConfig holds performance-related settings
type PerformanceConfig struct {
	MaxWorkers int `yaml:"max_workers"`
	BufferSize int `yaml:"buffer_size"`
}

// OutputConfig holds output-related settings
type OutputConfig struct {
	Format   string `yaml:"format"`   // "human" or "json"
	Progress bool   `yaml:"progress"` // Show progress bars
	Quiet    bool   `yaml:"quiet"`    // Suppress non-error output
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"` // "json" or "text"
	Level   string `yaml:"level"`  // "debug", "info", "warn", "error"
	File    string `yaml:"file"`   // Log file path (empty = stderr)
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Sort: SortConfig{
			Level: models.GranularityMonth,
			Mode:  models.ModeMove,
		},
		Dedup: DedupConfig{
			Keep:      1,
			ImageHash: models.HashAverage,
			UseCache:  true,
		},
		Performance: PerformanceConfig{
			MaxWorkers: 5,
			BufferSize: 65536,
		},
		Output: OutputConfig{
			Format:   "human",
			Progress: true,
			Quiet:    false,
		},
		Logging: LoggingConfig{
			Enabled: false,
			Format:  "text",
			Level:   "info",
			File:    "",
		},
		Exclude: []string{
			"*.tmp",
			".git/",
			"@eaDir/",
			".DS_Store",
			"Thumbs.db",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !c.Sort.Level.Valid() {
		return &models.ValidationError{
			Field:   "sort.level",
			Message: "must be 'year', 'month', or 'day'",
		}
	}

	if c.Sort.Mode != models.ModeMove && c.Sort.Mode != models.ModeCopy {
		return &models.ValidationError{
			Field:   "sort.mode",
			Message: "must be 'move' or 'copy'",
		}
	}

	if c.Dedup.Keep < 1 {
		return &models.ValidationError{
			Field:   "dedup.keep",
			Message: "must be at least 1",
		}
	}

	if !c.Dedup.ImageHash.Valid() {
		return &models.ValidationError{
			Field:   "dedup.image_hash",
			Message: "must be 'average', 'difference', or 'perception'",
		}
	}

	if c.Performance.MaxWorkers < 1 {
		return &models.ValidationError{
			Field:   "performance.max_workers",
			Message: "must be at least 1",
		}
	}

	if c.Performance.BufferSize < 1024 {
		return &models.ValidationError{
			Field:   "performance.buffer_size",
			Message: "must be at least 1024 bytes",
		}
	}

	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &models.ValidationError{
			Field:   "output.format",
			Message: "must be 'human' or 'json'",
		}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'text'",
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{
			Field:   "logging.level",
			Message: "must be 'debug', 'info', 'warn', or 'error'",
		}
	}

	return nil
}
