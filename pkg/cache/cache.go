// Package cache persists file fingerprints between runs in SQLite.
//
// A record is trusted only while the file's size and modification time
// still match, and for images only while it was computed with the current
// perceptual hash algorithm. The database can always be deleted and rebuilt.
package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sdejongh/mediatidy/pkg/logging"
	"github.com/sdejongh/mediatidy/pkg/models"
	"github.com/sdejongh/mediatidy/pkg/scan"
)

// FileName is the database file inside the state directory
const FileName = "index.db"

// Record is one cached fingerprint
type Record struct {
	ID          uint   `gorm:"primaryKey"`
	Path        string `gorm:"uniqueIndex;not null"`
	Size        int64  `gorm:"not null"`
	ModTime     int64  `gorm:"not null"` // unix nanoseconds
	Kind        string `gorm:"not null"`
	Fingerprint string `gorm:"index;not null"`
	// Algorithm is the image hash the fingerprint was computed with
	Algorithm string `gorm:"not null;default:''"`
	UpdatedAt time.Time
}

// TableName keeps the table name stable across struct renames
func (Record) TableName() string {
	return "fingerprints"
}

// Cache is a SQLite backed fingerprint store
type Cache struct {
	db        *gorm.DB
	path      string
	imageHash models.ImageHashAlgorithm
	logger    logging.Logger
}

// DefaultPath returns the cache location for a scan root
func DefaultPath(root string) string {
	return filepath.Join(root, scan.StateDir, FileName)
}

// Open opens or creates the cache database at path
func Open(path string, logger logging.Logger) (*Cache, error) {
	logger = logging.OrNull(logger)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get cache connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(&Record{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate cache schema: %w", err)
	}

	logger.Debug(context.Background(), "fingerprint cache opened", logging.Fields{"path": path})
	return &Cache{db: db, path: path, imageHash: models.HashAverage, logger: logger}, nil
}

// SetImageHash sets the algorithm image fingerprints are computed with.
// Image records written under another algorithm are treated as missing.
func (c *Cache) SetImageHash(algorithm models.ImageHashAlgorithm) {
	c.imageHash = algorithm
}

// algorithmFor returns the algorithm tag stored with a record of kind
func (c *Cache) algorithmFor(kind models.Kind) string {
	if kind == models.KindImage {
		return string(c.imageHash)
	}
	return ""
}

// Path returns the database file path
func (c *Cache) Path() string {
	return c.path
}

// Lookup returns the cached fingerprint of entry when size, mtime, kind and
// image algorithm still match
func (c *Cache) Lookup(ctx context.Context, entry *models.FileEntry) (models.Fingerprint, bool) {
	var rec Record
	err := c.db.WithContext(ctx).
		Where("path = ?", entry.Path).
		Limit(1).
		Find(&rec).Error
	if err != nil {
		c.logger.Warn(ctx, "cache lookup failed", logging.Fields{"path": entry.Path, "error": err.Error()})
		return models.Fingerprint{}, false
	}
	if rec.ID == 0 {
		return models.Fingerprint{}, false
	}

	if rec.Size != entry.Size || rec.ModTime != entry.ModTime.UnixNano() || rec.Kind != string(entry.Kind) {
		return models.Fingerprint{}, false
	}
	if rec.Algorithm != c.algorithmFor(entry.Kind) {
		return models.Fingerprint{}, false
	}

	return models.Fingerprint{Kind: entry.Kind, Value: rec.Fingerprint}, true
}

// Put records the fingerprint of entry, replacing any older record
func (c *Cache) Put(ctx context.Context, entry *models.FileEntry, fp models.Fingerprint) error {
	rec := Record{
		Path:        entry.Path,
		Size:        entry.Size,
		ModTime:     entry.ModTime.UnixNano(),
		Kind:        string(entry.Kind),
		Fingerprint: fp.Value,
		Algorithm:   c.algorithmFor(entry.Kind),
	}

	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"size", "mod_time", "kind", "fingerprint", "algorithm", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to store fingerprint for %s: %w", entry.Path, err)
	}
	return nil
}

// Remove forgets path, typically after the file was deleted or moved
func (c *Cache) Remove(ctx context.Context, path string) error {
	if err := c.db.WithContext(ctx).Where("path = ?", path).Delete(&Record{}).Error; err != nil {
		return fmt.Errorf("failed to remove %s from cache: %w", path, err)
	}
	return nil
}

// Prune deletes every record whose path is not in seen and returns how many
// records were dropped
func (c *Cache) Prune(ctx context.Context, seen map[string]bool) (int64, error) {
	var paths []string
	if err := c.db.WithContext(ctx).Model(&Record{}).Pluck("path", &paths).Error; err != nil {
		return 0, fmt.Errorf("failed to list cache: %w", err)
	}

	var stale []string
	for _, p := range paths {
		if !seen[p] {
			stale = append(stale, p)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	var removed int64
	const batch = 500
	for start := 0; start < len(stale); start += batch {
		end := min(start+batch, len(stale))
		res := c.db.WithContext(ctx).Where("path IN ?", stale[start:end]).Delete(&Record{})
		if res.Error != nil {
			return removed, fmt.Errorf("failed to prune cache: %w", res.Error)
		}
		removed += res.RowsAffected
	}

	c.logger.Debug(ctx, "pruned fingerprint cache", logging.Fields{"removed": removed})
	return removed, nil
}

// Count returns the number of cached fingerprints
func (c *Cache) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := c.db.WithContext(ctx).Model(&Record{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the database
func (c *Cache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
