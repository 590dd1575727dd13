package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func newMemBackend(t *testing.T, files map[string]string) *Local {
	t.Helper()
	mem := afero.NewMemMapFs()
	for path, content := range files {
		if err := mem.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := afero.WriteFile(mem, path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return NewWithFs(mem)
}

// TestLocalWalk tests the Walk method
func TestLocalWalk(t *testing.T) {
	l := newMemBackend(t, map[string]string{
		"/root/a.jpg":       "a",
		"/root/sub/b.mp4":   "bb",
		"/root/sub/c/d.log": "ddd",
	})

	var files []string
	err := l.Walk(context.Background(), "/root", func(path string, info *FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	expected := []string{"/root/a.jpg", "/root/sub/b.mp4", "/root/sub/c/d.log"}
	if len(files) != len(expected) {
		t.Fatalf("Walk() found %v, want %v", files, expected)
	}
	for i := range expected {
		if files[i] != expected[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], expected[i])
		}
	}
}

func TestLocalWalk_SkipDir(t *testing.T) {
	l := newMemBackend(t, map[string]string{
		"/root/keep.jpg":            "a",
		"/root/.mediatidy/index.db": "x",
	})

	var files []string
	l.Walk(context.Background(), "/root", func(path string, info *FileInfo, err error) error {
		if info != nil && info.IsDir && filepath.Base(path) == ".mediatidy" {
			return fs.SkipDir
		}
		if info != nil && !info.IsDir {
			files = append(files, path)
		}
		return nil
	})

	if len(files) != 1 || files[0] != "/root/keep.jpg" {
		t.Errorf("files = %v, want [/root/keep.jpg]", files)
	}
}

func TestLocalWalk_Cancelled(t *testing.T) {
	l := newMemBackend(t, map[string]string{"/root/a": "a", "/root/b": "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Walk(ctx, "/root", func(path string, info *FileInfo, err error) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Walk() error = %v, want context.Canceled", err)
	}
}

func TestLocalWalk_DoesNotFollowSymlinks(t *testing.T) {
	tempDir := t.TempDir()
	target := filepath.Join(tempDir, "target")
	os.MkdirAll(target, 0755)
	os.WriteFile(filepath.Join(target, "inside.jpg"), []byte("x"), 0644)

	root := filepath.Join(tempDir, "root")
	os.MkdirAll(root, 0755)
	if err := os.Symlink(target, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	l := NewLocal()
	var sawLink bool
	err := l.Walk(context.Background(), root, func(path string, info *FileInfo, err error) error {
		if err != nil {
			return err
		}
		if filepath.Base(path) == "inside.jpg" {
			t.Errorf("walk followed symlink into %s", path)
		}
		if filepath.Base(path) == "link" {
			sawLink = info.IsSymlink
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if !sawLink {
		t.Error("symlink should be reported with IsSymlink set")
	}
}

// TestLocalCopy tests the Copy method
func TestLocalCopy(t *testing.T) {
	ctx := context.Background()
	l := newMemBackend(t, map[string]string{"/src/a.jpg": "hello"})

	mtime := time.Date(2023, 7, 14, 10, 0, 0, 0, time.UTC)
	l.Fs().Chtimes("/src/a.jpg", mtime, mtime)
	l.MkdirAll(ctx, "/dst")

	n, err := l.Copy(ctx, "/src/a.jpg", "/dst/a.jpg")
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if n != 5 {
		t.Errorf("Copy() = %d bytes, want 5", n)
	}

	data, _ := afero.ReadFile(l.Fs(), "/dst/a.jpg")
	if string(data) != "hello" {
		t.Errorf("content = %q, want hello", data)
	}
	info, _ := l.Stat(ctx, "/dst/a.jpg")
	if !info.ModTime.Equal(mtime) {
		t.Errorf("ModTime = %v, want %v", info.ModTime, mtime)
	}
	if exists, _ := l.Exists(ctx, "/src/a.jpg"); !exists {
		t.Error("Copy() must keep the source")
	}

	entries, _ := afero.ReadDir(l.Fs(), "/dst")
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %d entries", len(entries))
	}
}

func TestLocalCopy_RefusesOverwrite(t *testing.T) {
	ctx := context.Background()
	l := newMemBackend(t, map[string]string{
		"/src/a.jpg": "new",
		"/dst/a.jpg": "old",
	})

	_, err := l.Copy(ctx, "/src/a.jpg", "/dst/a.jpg")
	if !errors.Is(err, ErrDestinationExists) {
		t.Fatalf("Copy() error = %v, want ErrDestinationExists", err)
	}

	data, _ := afero.ReadFile(l.Fs(), "/dst/a.jpg")
	if string(data) != "old" {
		t.Errorf("destination was overwritten: %q", data)
	}
}

func TestLocalCopy_Cancelled(t *testing.T) {
	l := newMemBackend(t, map[string]string{"/src/a.bin": "payload"})
	l.MkdirAll(context.Background(), "/dst")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := l.Copy(ctx, "/src/a.bin", "/dst/a.bin"); !errors.Is(err, context.Canceled) {
		t.Errorf("Copy() error = %v, want context.Canceled", err)
	}
	if exists, _ := l.Exists(context.Background(), "/dst/a.bin"); exists {
		t.Error("cancelled copy must not leave a destination file")
	}
}

// TestLocalMove tests the Move method
func TestLocalMove(t *testing.T) {
	ctx := context.Background()
	l := newMemBackend(t, map[string]string{"/src/clip.mp4": "video"})
	l.MkdirAll(ctx, "/dst")

	n, err := l.Move(ctx, "/src/clip.mp4", "/dst/clip.mp4")
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if n != 5 {
		t.Errorf("Move() = %d bytes, want 5", n)
	}
	if exists, _ := l.Exists(ctx, "/src/clip.mp4"); exists {
		t.Error("source should be gone after Move()")
	}
	if exists, _ := l.Exists(ctx, "/dst/clip.mp4"); !exists {
		t.Error("destination should exist after Move()")
	}
}

func TestLocalMove_RefusesOverwrite(t *testing.T) {
	ctx := context.Background()
	l := newMemBackend(t, map[string]string{
		"/src/a.txt": "one",
		"/dst/a.txt": "two",
	})

	if _, err := l.Move(ctx, "/src/a.txt", "/dst/a.txt"); !errors.Is(err, ErrDestinationExists) {
		t.Fatalf("Move() error = %v, want ErrDestinationExists", err)
	}
	if exists, _ := l.Exists(ctx, "/src/a.txt"); !exists {
		t.Error("source must survive a refused move")
	}
}

// TestLocalRemove tests the Remove and Exists methods
func TestLocalRemove(t *testing.T) {
	ctx := context.Background()
	l := newMemBackend(t, map[string]string{"/a/dup.jpg": "x"})

	if err := l.Remove(ctx, "/a/dup.jpg"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if exists, _ := l.Exists(ctx, "/a/dup.jpg"); exists {
		t.Error("file should be gone")
	}
	if err := l.Remove(ctx, "/a/dup.jpg"); err == nil {
		t.Error("removing a missing file should error")
	}
}

func TestLocalOpen(t *testing.T) {
	l := newMemBackend(t, map[string]string{"/a/b.txt": "content"})

	rc, err := l.Open(context.Background(), "/a/b.txt")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != "content" {
		t.Errorf("read %q, want content", data)
	}

	if _, err := l.Open(context.Background(), "/a/missing"); err == nil {
		t.Error("Open() of a missing file should error")
	}
}

func TestIsCrossDevice(t *testing.T) {
	err := &os.LinkError{Op: "rename", Old: "/a", New: "/b", Err: syscall.EXDEV}
	if !isCrossDevice(err) {
		t.Error("EXDEV link error should be detected")
	}
	if isCrossDevice(errors.New("other")) {
		t.Error("unrelated errors are not cross-device")
	}
}
