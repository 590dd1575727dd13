package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sdejongh/mediatidy/internal/platform"
	"github.com/sdejongh/mediatidy/pkg/config"
	"github.com/sdejongh/mediatidy/pkg/models"
)

// validateGlobalFlags validates flags shared by every pipeline command
func validateGlobalFlags(rf *runFlags) error {
	validOutputs := map[string]bool{"": true, "human": true, "json": true}
	if !validOutputs[globalFlags.Output] {
		return fmt.Errorf("invalid output format: %s (valid: human, json)", globalFlags.Output)
	}

	validLogFormats := map[string]bool{"": true, "text": true, "json": true}
	if !validLogFormats[globalFlags.LogFormat] {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", globalFlags.LogFormat)
	}

	validLogLevels := map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[globalFlags.LogLevel] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", globalFlags.LogLevel)
	}

	validReportFormats := map[string]bool{"human": true, "json": true}
	if !validReportFormats[rf.ReportFormat] {
		return fmt.Errorf("invalid report format: %s (valid: human, json)", rf.ReportFormat)
	}

	if rf.Parallel < 0 {
		return fmt.Errorf("invalid number of workers: %d", rf.Parallel)
	}

	return nil
}

// validateRoot resolves a directory that must already exist
func validateRoot(path string) (string, error) {
	abs, err := platform.ResolvePath(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("path does not exist: %s", path)
	} else if err != nil {
		return "", fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", path)
	}

	return abs, nil
}

// validateSortArgs resolves ROOT and DEST. DEST may not exist yet; the sort
// creates it before touching any file.
func validateSortArgs(args []string) (source, dest string, err error) {
	source, err = validateRoot(args[0])
	if err != nil {
		return "", "", err
	}

	dest, err = platform.ResolvePath(args[1])
	if err != nil {
		return "", "", err
	}

	destInfo, err := os.Stat(dest)
	if err == nil && !destInfo.IsDir() {
		return "", "", fmt.Errorf("destination path exists but is not a directory: %s", args[1])
	} else if err != nil && !os.IsNotExist(err) {
		return "", "", fmt.Errorf("failed to access destination path: %w", err)
	}

	return source, dest, nil
}

// loadConfig loads configuration from file or returns default
func loadConfig() (*config.Config, error) {
	return config.Load(globalFlags.ConfigFile)
}

// applyGlobalFlags overrides config values with the global flags
func applyGlobalFlags(cfg *config.Config) {
	if globalFlags.Output != "" {
		cfg.Output.Format = globalFlags.Output
	}

	// Disable progress in quiet mode
	if globalFlags.Quiet {
		cfg.Output.Progress = false
		cfg.Output.Quiet = true
	}

	if globalFlags.LogFile != "" {
		cfg.Logging.Enabled = true
		cfg.Logging.File = globalFlags.LogFile
	}
	if globalFlags.LogFormat != "" {
		cfg.Logging.Format = globalFlags.LogFormat
	}
	if globalFlags.LogLevel != "" {
		cfg.Logging.Level = globalFlags.LogLevel
	}
}

// applyRunFlags overrides config values with the shared pipeline flags
func applyRunFlags(cfg *config.Config, rf *runFlags) {
	// Parallel workers (default: 5)
	if rf.Parallel > 0 {
		cfg.Performance.MaxWorkers = rf.Parallel
	} else if cfg.Performance.MaxWorkers == 0 {
		cfg.Performance.MaxWorkers = 5
	}

	// Command-line patterns extend the configured ones
	if len(rf.Exclude) > 0 {
		cfg.Exclude = append(append([]string{}, cfg.Exclude...), rf.Exclude...)
	}
}

// applySortFlags overrides sort settings with the sort command flags
func applySortFlags(cfg *config.Config) {
	applyRunFlags(cfg, &sortFlags.runFlags)

	if sortFlags.Level != "" {
		cfg.Sort.Level = models.Granularity(sortFlags.Level)
	}
	if sortFlags.Copy {
		cfg.Sort.Mode = models.ModeCopy
	}
	if sortFlags.Rename {
		cfg.Sort.Rename = true
	}
	if sortFlags.MtimeFallback {
		cfg.Sort.MtimeFallback = true
	}
}

// applyDedupFlags overrides dedup settings with the dedup command flags
func applyDedupFlags(cfg *config.Config) {
	applyRunFlags(cfg, &dedupFlags.runFlags)

	if dedupFlags.Keep != 0 {
		cfg.Dedup.Keep = dedupFlags.Keep
	}
	if dedupFlags.ImageHash != "" {
		cfg.Dedup.ImageHash = models.ImageHashAlgorithm(dedupFlags.ImageHash)
	}
	if dedupFlags.NoCache {
		cfg.Dedup.UseCache = false
	}
}

// createSortOperation creates a sort operation from configuration
func createSortOperation(cfg *config.Config, source, dest string) (*models.SortOperation, error) {
	operation := &models.SortOperation{
		ID:              uuid.New().String(),
		SourcePath:      source,
		DestPath:        dest,
		Granularity:     cfg.Sort.Level,
		Mode:            cfg.Sort.Mode,
		Rename:          cfg.Sort.Rename,
		MtimeFallback:   cfg.Sort.MtimeFallback,
		DryRun:          sortFlags.DryRun,
		ExcludePatterns: cfg.Exclude,
		MaxWorkers:      cfg.Performance.MaxWorkers,
		CreatedAt:       time.Now(),
	}

	if err := operation.Validate(); err != nil {
		return nil, err
	}

	return operation, nil
}

// createDedupOperation creates a dedup operation from configuration
func createDedupOperation(cfg *config.Config, root string) (*models.DedupOperation, error) {
	operation := &models.DedupOperation{
		ID:              uuid.New().String(),
		RootPath:        root,
		Keep:            cfg.Dedup.Keep,
		ImageHash:       cfg.Dedup.ImageHash,
		DryRun:          dedupFlags.DryRun,
		Refresh:         dedupFlags.Refresh,
		UseCache:        cfg.Dedup.UseCache,
		ExcludePatterns: cfg.Exclude,
		MaxWorkers:      cfg.Performance.MaxWorkers,
		BufferSize:      cfg.Performance.BufferSize,
		CreatedAt:       time.Now(),
	}

	if err := operation.Validate(); err != nil {
		return nil, err
	}

	return operation, nil
}
