package cli

import (
	"context"
	"fmt"

	"github.com/sdejongh/mediatidy/pkg/fingerprint"
	"github.com/sdejongh/mediatidy/pkg/relocate"
	"github.com/sdejongh/mediatidy/pkg/worker"
	"github.com/spf13/cobra"
)

// SortFlags holds sort command flags
type SortFlags struct {
	runFlags
	Level         string
	Rename        bool
	Copy          bool
	MtimeFallback bool
}

var sortFlags SortFlags

// NewSortCommand creates the sort command
func NewSortCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sort <ROOT> <DEST>",
		Short: "Sort files into a date-based tree",
		Long: `Sort every file under ROOT into DEST/<Bucket>/YYYY/Month/DD according
to its capture date. Files without a usable date go to DEST/<Bucket>/NoMetaData.
Name collisions never overwrite: identical content is deduplicated, different
content gets a numeric suffix.`,
		Args: cobra.ExactArgs(2),
		RunE: runSort,
	}

	addRunFlags(cmd, &sortFlags.runFlags)
	cmd.Flags().StringVar(&sortFlags.Level, "level", "", "folder depth: year, month, day (default from config)")
	cmd.Flags().BoolVar(&sortFlags.Rename, "rename", false, "rename dated files to YYYYMMDD_HHMMSS")
	cmd.Flags().BoolVar(&sortFlags.Copy, "copy", false, "copy files instead of moving them")
	cmd.Flags().BoolVar(&sortFlags.MtimeFallback, "mtime-fallback", false, "use the modification time when no capture date is found")

	return cmd
}

func runSort(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Validate flags
	if err := validateGlobalFlags(&sortFlags.runFlags); err != nil {
		return err
	}
	source, dest, err := validateSortArgs(args)
	if err != nil {
		return err
	}

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with command-line flags
	applyGlobalFlags(cfg)
	applySortFlags(cfg)

	operation, err := createSortOperation(cfg, source, dest)
	if err != nil {
		return fmt.Errorf("failed to create sort operation: %w", err)
	}

	if err := checkDependencies(); err != nil {
		return err
	}

	logger, err := createLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	backend := newBackend(cfg)
	defer backend.Close()

	extractors := newExtractors(backend, cfg.Dedup.ImageHash)
	policy := fingerprint.NewPolicy(backend, extractors, fingerprint.Options{
		BufferSize: cfg.Performance.BufferSize,
		Logger:     logger,
	})

	pool, err := worker.NewPool(operation.MaxWorkers, logger)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	engine := relocate.NewEngine(backend, extractors, policy, logger, operation)
	sorter := relocate.NewSorter(backend, engine, pool, newFormatter(cmd, cfg), logger, operation)
	sorter.SetOutput(cmd.OutOrStdout())

	// Errors from the run are shown by the formatter and carried by the status
	report, _ := sorter.Run(ctx)
	return finishRun(report, &sortFlags.runFlags)
}
