package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sdejongh/mediatidy/pkg/models"
)

func openTestCache(t *testing.T) (*Cache, string) {
	t.Helper()
	path := DefaultPath(t.TempDir())
	c, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, path
}

func TestOpen_CreatesStateDir(t *testing.T) {
	root := t.TempDir()
	c, err := Open(DefaultPath(root), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer c.Close()

	if _, err := os.Stat(filepath.Join(root, ".mediatidy", "index.db")); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestCache_LookupValidity(t *testing.T) {
	c, _ := openTestCache(t)
	ctx := context.Background()
	mtime := time.Date(2023, 7, 14, 10, 0, 0, 123456789, time.UTC)

	entry := models.NewFileEntry("/media/a.jpg", models.KindImage, 2048, mtime)
	fp := models.Fingerprint{Kind: models.KindImage, Value: "a:ff00ff00ff00ff00"}

	if _, ok := c.Lookup(ctx, entry); ok {
		t.Fatal("empty cache should miss")
	}
	if err := c.Put(ctx, entry, fp); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok := c.Lookup(ctx, entry)
	if !ok || got != fp {
		t.Errorf("Lookup() = %v, %v; want %v", got, ok, fp)
	}

	tests := []struct {
		name  string
		entry *models.FileEntry
	}{
		{"SizeChanged", models.NewFileEntry("/media/a.jpg", models.KindImage, 4096, mtime)},
		{"MtimeChanged", models.NewFileEntry("/media/a.jpg", models.KindImage, 2048, mtime.Add(time.Nanosecond))},
		{"KindChanged", models.NewFileEntry("/media/a.jpg", models.KindOther, 2048, mtime)},
		{"OtherPath", models.NewFileEntry("/media/b.jpg", models.KindImage, 2048, mtime)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := c.Lookup(ctx, tt.entry); ok {
				t.Error("stale record must not be trusted")
			}
		})
	}
}

func TestCache_PutUpserts(t *testing.T) {
	c, _ := openTestCache(t)
	ctx := context.Background()
	now := time.Now()

	old := models.NewFileEntry("/media/clip.mp4", models.KindVideo, 10, now)
	c.Put(ctx, old, models.Fingerprint{Kind: models.KindVideo, Value: "10|1000|5"})

	updated := models.NewFileEntry("/media/clip.mp4", models.KindVideo, 20, now.Add(time.Hour))
	fp := models.Fingerprint{Kind: models.KindVideo, Value: "20|2000|5"}
	if err := c.Put(ctx, updated, fp); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if n, _ := c.Count(ctx); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
	if got, ok := c.Lookup(ctx, updated); !ok || got != fp {
		t.Errorf("Lookup() = %v, %v; want updated fingerprint", got, ok)
	}
}

func TestCache_RemoveAndPrune(t *testing.T) {
	c, _ := openTestCache(t)
	ctx := context.Background()
	now := time.Now()

	for _, p := range []string{"/m/a", "/m/b", "/m/c", "/m/d"} {
		e := models.NewFileEntry(p, models.KindOther, 1, now)
		c.Put(ctx, e, models.Fingerprint{Kind: models.KindOther, Value: "v" + p})
	}

	if err := c.Remove(ctx, "/m/a"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	removed, err := c.Prune(ctx, map[string]bool{"/m/b": true})
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Prune() removed %d, want 2", removed)
	}
	if n, _ := c.Count(ctx); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestCache_PersistsAcrossOpen(t *testing.T) {
	c, path := openTestCache(t)
	ctx := context.Background()
	entry := models.NewFileEntry("/m/keep.txt", models.KindOther, 3, time.Unix(1700000000, 0))
	fp := models.Fingerprint{Kind: models.KindOther, Value: "0123456789abcdef"}

	c.Put(ctx, entry, fp)
	c.Close()

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reopened.Close()

	if got, ok := reopened.Lookup(ctx, entry); !ok || got != fp {
		t.Errorf("Lookup() after reopen = %v, %v", got, ok)
	}
}

func TestCache_ImageHashAlgorithm(t *testing.T) {
	c, path := openTestCache(t)
	ctx := context.Background()
	mtime := time.Unix(1700000000, 0)

	img := models.NewFileEntry("/m/photo.png", models.KindImage, 512, mtime)
	doc := models.NewFileEntry("/m/notes.txt", models.KindOther, 64, mtime)
	imgFP := models.Fingerprint{Kind: models.KindImage, Value: "a:ff00ff00ff00ff00"}
	docFP := models.Fingerprint{Kind: models.KindOther, Value: "0123456789abcdef"}

	c.SetImageHash(models.HashAverage)
	c.Put(ctx, img, imgFP)
	c.Put(ctx, doc, docFP)

	c.SetImageHash(models.HashPerception)
	if got, ok := c.Lookup(ctx, img); ok {
		t.Errorf("Lookup() under another algorithm = %v, want miss", got)
	}
	if got, ok := c.Lookup(ctx, doc); !ok || got != docFP {
		t.Errorf("Lookup(non-image) = %v, %v; the algorithm must not matter", got, ok)
	}

	perception := models.Fingerprint{Kind: models.KindImage, Value: "p:0f0f0f0f0f0f0f0f"}
	if err := c.Put(ctx, img, perception); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if got, ok := c.Lookup(ctx, img); !ok || got != perception {
		t.Errorf("Lookup() = %v, %v; want rewritten fingerprint", got, ok)
	}

	c.Close()
	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reopened.Close()

	// a fresh cache assumes the default algorithm
	if _, ok := reopened.Lookup(ctx, img); ok {
		t.Error("perception record must not be served to an average run")
	}
	reopened.SetImageHash(models.HashPerception)
	if got, ok := reopened.Lookup(ctx, img); !ok || got != perception {
		t.Errorf("Lookup() after reopen = %v, %v", got, ok)
	}
}
