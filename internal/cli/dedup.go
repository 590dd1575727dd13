package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/sdejongh/mediatidy/pkg/cache"
	"github.com/sdejongh/mediatidy/pkg/dedup"
	"github.com/sdejongh/mediatidy/pkg/fingerprint"
	"github.com/sdejongh/mediatidy/pkg/logging"
	"github.com/sdejongh/mediatidy/pkg/models"
	"github.com/sdejongh/mediatidy/pkg/worker"
	"github.com/spf13/cobra"
)

// DedupFlags holds dedup command flags
type DedupFlags struct {
	runFlags
	Keep      int
	ImageHash string
	Refresh   bool
	NoCache   bool
}

var dedupFlags DedupFlags

// NewDedupCommand creates the dedup command
func NewDedupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedup <PATH>",
		Short: "Remove duplicate files",
		Long: `Find files with identical content under PATH and delete all but the
oldest copies. Images are matched by perceptual hash, videos by stream
signature and everything else by content hash confirmed byte by byte.
Fingerprints are cached in PATH/.mediatidy between runs.`,
		Args: cobra.ExactArgs(1),
		RunE: runDedup,
	}

	addRunFlags(cmd, &dedupFlags.runFlags)
	cmd.Flags().IntVar(&dedupFlags.Keep, "keep", 0, "copies to keep per duplicate group (default: 1, the oldest copy only)")
	cmd.Flags().StringVar(&dedupFlags.ImageHash, "image-hash", "", "image hash: average, difference, perception (default from config)")
	cmd.Flags().BoolVar(&dedupFlags.Refresh, "refresh", false, "ignore cached fingerprints and recompute them")
	cmd.Flags().BoolVar(&dedupFlags.NoCache, "no-cache", false, "don't read or write the fingerprint cache")

	return cmd
}

func runDedup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Validate flags
	if err := validateGlobalFlags(&dedupFlags.runFlags); err != nil {
		return err
	}
	root, err := validateRoot(args[0])
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
	applyDedupFlags(cfg)

	operation, err := createDedupOperation(cfg, root)
	if err != nil {
		return fmt.Errorf("failed to create dedup operation: %w", err)
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

	opts := fingerprint.Options{
		BufferSize: operation.BufferSize,
		Refresh:    operation.Refresh,
		Logger:     logger,
	}
	var store *cache.Cache
	if operation.UseCache {
		store = openCache(ctx, operation, logger)
	}
	if store != nil {
		defer store.Close()
		store.SetImageHash(operation.ImageHash)
		opts.Store = store
	}

	extractors := newExtractors(backend, operation.ImageHash)
	policy := fingerprint.NewPolicy(backend, extractors, opts)

	pool, err := worker.NewPool(operation.MaxWorkers, logger)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	remover := dedup.NewRemover(backend, policy, pool, newFormatter(cmd, cfg), logger, operation)
	remover.SetOutput(cmd.OutOrStdout())
	if store != nil {
		remover.SetCache(store)
	}

	// Errors from the run are shown by the formatter and carried by the status
	report, _ := remover.Run(ctx)
	return finishRun(report, &dedupFlags.runFlags)
}

// openCache opens the fingerprint cache under the scan root. The cache is
// rebuildable, so failing to open it only disables it. A dry run never
// creates the state directory and only uses a cache that already exists.
func openCache(ctx context.Context, op *models.DedupOperation, logger logging.Logger) *cache.Cache {
	path := cache.DefaultPath(op.RootPath)
	if op.DryRun {
		if _, err := os.Stat(path); err != nil {
			logger.Debug(ctx, "no fingerprint cache for dry run", logging.Fields{"path": path})
			return nil
		}
	}

	store, err := cache.Open(path, logger)
	if err != nil {
		logger.Warn(ctx, "fingerprint cache disabled", logging.Fields{"path": path, "error": err.Error()})
		return nil
	}
	return store
}
