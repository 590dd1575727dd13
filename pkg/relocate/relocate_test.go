package relocate

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/sdejongh/mediatidy/pkg/fingerprint"
	"github.com/sdejongh/mediatidy/pkg/metadata"
	"github.com/sdejongh/mediatidy/pkg/models"
	"github.com/sdejongh/mediatidy/pkg/scan"
	"github.com/sdejongh/mediatidy/pkg/storage"
	"github.com/sdejongh/mediatidy/pkg/worker"
)

var july14 = time.Date(2023, 7, 14, 10, 15, 30, 0, time.UTC)

// fakeExtractor serves canned metadata by path; unknown paths carry none
type fakeExtractor map[string]*models.Metadata

func (f fakeExtractor) Extract(ctx context.Context, path string) (*models.Metadata, error) {
	m, ok := f[path]
	if !ok {
		return &models.Metadata{}, nil
	}
	if m.Corrupt {
		return m, &models.MetadataUnavailableError{Path: path, Err: errors.New(m.Reason)}
	}
	return m, nil
}

type testHelper struct {
	t       *testing.T
	fs      afero.Fs
	backend *storage.Local
	meta    fakeExtractor
}

func newTestHelper(t *testing.T) *testHelper {
	t.Helper()
	mem := afero.NewMemMapFs()
	return &testHelper{t: t, fs: mem, backend: storage.NewWithFs(mem), meta: fakeExtractor{}}
}

func (h *testHelper) CreateFile(path, content string) {
	h.t.Helper()
	if err := h.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		h.t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := afero.WriteFile(h.fs, path, []byte(content), 0644); err != nil {
		h.t.Fatalf("write %s: %v", path, err)
	}
}

// Photo creates an image whose perceptual hash is hash and capture date is date
func (h *testHelper) Photo(path, hash string, date *time.Time) {
	h.t.Helper()
	h.CreateFile(path, "image:"+hash)
	h.meta[path] = &models.Metadata{PerceptualHash: hash, CaptureDate: date}
}

func (h *testHelper) Exists(path string) bool {
	ok, _ := afero.Exists(h.fs, path)
	return ok
}

func (h *testHelper) Read(path string) string {
	h.t.Helper()
	data, err := afero.ReadFile(h.fs, path)
	if err != nil {
		h.t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func (h *testHelper) Engine(op *models.SortOperation) *Engine {
	set := &metadata.Set{Image: h.meta, Video: h.meta}
	policy := fingerprint.NewPolicy(h.backend, set, fingerprint.Options{BufferSize: 4096})
	return NewEngine(h.backend, set, policy, nil, op)
}

func (h *testHelper) Sort(op *models.SortOperation) *models.Report {
	h.t.Helper()
	pool, err := worker.NewPool(op.MaxWorkers, nil)
	if err != nil {
		h.t.Fatalf("NewPool() error = %v", err)
	}
	defer pool.Release()

	sorter := NewSorter(h.backend, h.Engine(op), pool, nil, nil, op)
	report, err := runWithin(h.t, runTimeout, func() (*models.Report, error) {
		return sorter.Run(context.Background())
	})
	if err != nil {
		h.t.Fatalf("Run() error = %v", err)
	}
	return report
}

// runTimeout bounds every pipeline run so a stuck worker fails the test
const runTimeout = 10 * time.Second

// runWithin calls run and fails the test if it has not returned after d
func runWithin(t *testing.T, d time.Duration, run func() (*models.Report, error)) (*models.Report, error) {
	t.Helper()
	type result struct {
		report *models.Report
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := run()
		done <- result{report, err}
	}()

	select {
	case r := <-done:
		return r.report, r.err
	case <-time.After(d):
		t.Fatalf("run did not finish within %s", d)
	}
	return nil, nil
}

// relocateWithin is Engine.Relocate bounded by runTimeout
func relocateWithin(t *testing.T, engine *Engine, entry *models.FileEntry) models.Outcome {
	t.Helper()
	done := make(chan models.Outcome, 1)
	go func() {
		done <- engine.Relocate(context.Background(), entry)
	}()

	select {
	case o := <-done:
		return o
	case <-time.After(runTimeout):
		t.Fatalf("Relocate(%s) did not return within %s", entry.Path, runTimeout)
	}
	return models.Outcome{}
}

func newOperation(src, dst string) *models.SortOperation {
	return &models.SortOperation{
		ID:          "test-run",
		SourcePath:  src,
		DestPath:    dst,
		Granularity: models.GranularityMonth,
		Mode:        models.ModeMove,
		MaxWorkers:  4,
	}
}

func datePtr(t time.Time) *time.Time { return &t }

// ============== Destination Tests ==============

func TestDestination(t *testing.T) {
	photo := models.NewFileEntry("/src/IMG_0001.JPG", models.KindImage, 1, time.Now())
	clip := models.NewFileEntry("/src/clip.mp4", models.KindVideo, 1, time.Now())

	tests := []struct {
		name     string
		entry    *models.FileEntry
		dated    bool
		g        models.Granularity
		rename   bool
		expected string
	}{
		{"Month", photo, true, models.GranularityMonth, false, "/dst/Photos/2023/July/IMG_0001.JPG"},
		{"Year", photo, true, models.GranularityYear, false, "/dst/Photos/2023/IMG_0001.JPG"},
		{"Day", photo, true, models.GranularityDay, false, "/dst/Photos/2023/July/14/IMG_0001.JPG"},
		{"NoDate", photo, false, models.GranularityDay, false, "/dst/Photos/NoMetaData/IMG_0001.JPG"},
		{"Rename", photo, true, models.GranularityMonth, true, "/dst/Photos/2023/July/20230714_101530.jpg"},
		{"RenameWithoutDate", photo, false, models.GranularityMonth, true, "/dst/Photos/NoMetaData/IMG_0001.JPG"},
		{"VideoBucket", clip, true, models.GranularityYear, false, "/dst/Videos/2023/clip.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Destination("/dst", tt.entry, july14, tt.dated, tt.g, tt.rename)
			if got != filepath.FromSlash(tt.expected) {
				t.Errorf("Destination() = %s, want %s", got, tt.expected)
			}
		})
	}
}

// ============== Sorter Tests ==============

func TestSorter_MonthGranularity(t *testing.T) {
	h := newTestHelper(t)
	h.Photo("/src/beach.jpg", "a:1111", datePtr(july14))

	report := h.Sort(newOperation("/src", "/dst"))

	if !h.Exists("/dst/Photos/2023/July/beach.jpg") {
		t.Error("photo should land in Photos/2023/July")
	}
	if h.Exists("/src/beach.jpg") {
		t.Error("move mode must remove the source")
	}
	if report.Stats.FilesMoved != 1 || report.Status != models.StatusSuccess {
		t.Errorf("report = %+v status %s", report.Stats, report.Status)
	}
}

func TestSorter_CollisionSafety(t *testing.T) {
	h := newTestHelper(t)
	h.Photo("/src/one/a.jpg", "a:1111", datePtr(july14))
	h.Photo("/src/two/a.jpg", "a:2222", datePtr(july14))
	h.Photo("/src/three/a.jpg", "a:3333", datePtr(july14))

	report := h.Sort(newOperation("/src", "/dst"))

	names, _ := afero.ReadDir(h.fs, "/dst/Photos/2023/July")
	var got []string
	contents := make(map[string]bool)
	for _, fi := range names {
		got = append(got, fi.Name())
		contents[h.Read(filepath.Join("/dst/Photos/2023/July", fi.Name()))] = true
	}
	sort.Strings(got)

	expected := []string{"a.jpg", "a_1.jpg", "a_2.jpg"}
	if strings.Join(got, ",") != strings.Join(expected, ",") {
		t.Errorf("files = %v, want %v", got, expected)
	}
	for _, c := range []string{"image:a:1111", "image:a:2222", "image:a:3333"} {
		if !contents[c] {
			t.Errorf("content %q lost", c)
		}
	}
	if report.Stats.FilesMoved != 3 {
		t.Errorf("moved = %d, want 3", report.Stats.FilesMoved)
	}
}

func TestSorter_EqualCollisionDeletesSource(t *testing.T) {
	h := newTestHelper(t)
	h.Photo("/dst/Photos/2023/July/a.jpg", "a:1111", datePtr(july14))
	h.Photo("/src/a.jpg", "a:1111", datePtr(july14))

	report := h.Sort(newOperation("/src", "/dst"))

	if h.Exists("/src/a.jpg") {
		t.Error("a duplicate source should be deleted")
	}
	if !h.Exists("/dst/Photos/2023/July/a.jpg") {
		t.Fatal("the destination must never be deleted")
	}
	if report.Stats.FilesDeleted != 1 || report.Outcomes[0].Plan.Action != models.ActionDelete {
		t.Errorf("outcome = %+v", report.Outcomes[0].Plan)
	}
}

func TestSorter_CopyMode(t *testing.T) {
	h := newTestHelper(t)
	h.Photo("/src/a.jpg", "a:1111", datePtr(july14))
	h.meta["/dst/Photos/2023/July/a.jpg"] = h.meta["/src/a.jpg"]

	op := newOperation("/src", "/dst")
	op.Mode = models.ModeCopy

	first := h.Sort(op)
	if !h.Exists("/src/a.jpg") || !h.Exists("/dst/Photos/2023/July/a.jpg") {
		t.Fatal("copy mode keeps the source and creates the destination")
	}
	if first.Stats.FilesCopied != 1 {
		t.Errorf("copied = %d, want 1", first.Stats.FilesCopied)
	}

	second := h.Sort(op)
	if second.Stats.FilesCopied != 0 || second.Stats.FilesSkipped != 1 {
		t.Errorf("second copy run = %+v, want one skip", second.Stats)
	}
	if !h.Exists("/src/a.jpg") {
		t.Error("copy mode must never delete the source")
	}
}

func TestSorter_DryRun(t *testing.T) {
	h := newTestHelper(t)
	h.Photo("/src/x/a.jpg", "a:1111", datePtr(july14))
	h.Photo("/src/y/a.jpg", "a:2222", datePtr(july14))

	op := newOperation("/src", "/dst")
	op.DryRun = true
	op.MaxWorkers = 1
	report := h.Sort(op)

	if h.Exists("/dst") {
		t.Error("dry run must not create the destination")
	}
	if !h.Exists("/src/x/a.jpg") || !h.Exists("/src/y/a.jpg") {
		t.Error("dry run must not move anything")
	}
	if report.Stats.FilesMoved != 2 {
		t.Errorf("dry run should count the moves: %+v", report.Stats)
	}

	dests := map[string]bool{}
	for _, o := range report.Outcomes {
		dests[o.Plan.Destination] = true
	}
	if !dests[filepath.FromSlash("/dst/Photos/2023/July/a.jpg")] || !dests[filepath.FromSlash("/dst/Photos/2023/July/a_1.jpg")] {
		t.Errorf("dry run must resolve collisions between planned files: %v", dests)
	}
}

func TestSorter_CorruptAndUndated(t *testing.T) {
	h := newTestHelper(t)
	h.CreateFile("/src/broken.mp4", "junk")
	h.meta["/src/broken.mp4"] = &models.Metadata{Corrupt: true, Reason: "moov atom not found"}
	h.Photo("/src/scan.png", "a:9999", nil)

	report := h.Sort(newOperation("/src", "/dst"))

	if !h.Exists("/dst/Videos/NoMetaData/broken.mp4") {
		t.Error("a corrupt video goes to Videos/NoMetaData")
	}
	if !h.Exists("/dst/Photos/NoMetaData/scan.png") {
		t.Error("an undated photo goes to Photos/NoMetaData")
	}
	if len(report.Corrupted) != 1 || report.Corrupted[0] != "/src/broken.mp4" {
		t.Errorf("corrupted = %v", report.Corrupted)
	}
	if report.Stats.FilesErrored != 0 {
		t.Errorf("corrupt files are not errors: %+v", report.Errors)
	}
}

func TestSorter_MtimeFallback(t *testing.T) {
	march := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		fallback bool
		expected string
	}{
		{"Disabled", false, "/dst/Logs/NoMetaData/sensor 5v.txt"},
		{"Enabled", true, "/dst/Logs/2024/March/sensor 5v.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHelper(t)
			h.CreateFile("/src/sensor 5v.txt", "1.2 1.3")
			h.fs.Chtimes("/src/sensor 5v.txt", march, march)

			op := newOperation("/src", "/dst")
			op.MtimeFallback = tt.fallback
			h.Sort(op)

			if !h.Exists(tt.expected) {
				t.Errorf("expected %s", tt.expected)
			}
		})
	}
}

func TestSorter_RoundTripKind(t *testing.T) {
	h := newTestHelper(t)
	h.Photo("/src/a.jpg", "a:1", datePtr(july14))
	h.CreateFile("/src/b.mov", "video")
	h.CreateFile("/src/run.sh", "#!/bin/sh")
	h.CreateFile("/src/notes.pdf", "pdf")
	h.CreateFile("/src/trace.log", "log")

	index := scan.NewIndex(h.backend, nil, nil)
	before, _ := index.Entries(context.Background(), "/src")
	kinds := make(map[string]models.Kind)
	for _, e := range before {
		kinds[e.Name()] = e.Kind
	}

	h.Sort(newOperation("/src", "/dst"))

	after, _ := index.Entries(context.Background(), "/dst")
	if len(after) != len(before) {
		t.Fatalf("indexed %d files after sort, want %d", len(after), len(before))
	}
	for _, e := range after {
		if kinds[e.Name()] != e.Kind {
			t.Errorf("%s: kind %s after relocation, was %s", e.Name(), e.Kind, kinds[e.Name()])
		}
	}
}

func TestSorter_IdempotentInPlace(t *testing.T) {
	h := newTestHelper(t)
	h.Photo("/lib/a.jpg", "a:1", datePtr(july14))
	h.Photo("/lib/b.jpg", "a:2", datePtr(july14))
	h.meta["/lib/Photos/2023/July/a.jpg"] = h.meta["/lib/a.jpg"]
	h.meta["/lib/Photos/2023/July/b.jpg"] = h.meta["/lib/b.jpg"]

	first := h.Sort(newOperation("/lib", "/lib"))
	if first.Stats.FilesMoved != 2 {
		t.Fatalf("first run moved %d, want 2", first.Stats.FilesMoved)
	}

	second := h.Sort(newOperation("/lib", "/lib"))
	if second.Stats.FilesMoved != 0 || second.Stats.FilesSkipped != 2 {
		t.Errorf("second run = %+v, want everything skipped", second.Stats)
	}
}

func TestSorter_DestinationNotCreatable(t *testing.T) {
	h := newTestHelper(t)
	h.CreateFile("/src/a.txt", "x")
	readOnly := storage.NewWithFs(afero.NewReadOnlyFs(h.fs))

	op := newOperation("/src", "/dst")
	pool, _ := worker.NewPool(1, nil)
	defer pool.Release()

	set := &metadata.Set{Image: h.meta, Video: h.meta}
	engine := NewEngine(readOnly, set, fingerprint.NewPolicy(readOnly, set, fingerprint.Options{}), nil, op)
	report, err := runWithin(t, runTimeout, func() (*models.Report, error) {
		return NewSorter(readOnly, engine, pool, nil, nil, op).Run(context.Background())
	})

	var fatal *models.FatalConfigError
	if !errors.As(err, &fatal) {
		t.Fatalf("Run() error = %v, want FatalConfigError", err)
	}
	if report.Status != models.StatusFailed || report.Status.ExitCode() == 0 {
		t.Errorf("status = %s", report.Status)
	}
	if !h.Exists("/src/a.txt") || len(report.Outcomes) != 0 {
		t.Error("no file may be touched when the destination cannot be created")
	}
}

// ============== Engine Tests ==============

func TestEngine_BoundedSuffixes(t *testing.T) {
	h := newTestHelper(t)
	h.Photo("/dst/Photos/2023/July/a.jpg", "a:1", datePtr(july14))
	h.Photo("/dst/Photos/2023/July/a_1.jpg", "a:2", datePtr(july14))
	h.Photo("/dst/Photos/2023/July/a_2.jpg", "a:3", datePtr(july14))
	h.Photo("/src/a.jpg", "a:4", datePtr(july14))

	engine := h.Engine(newOperation("/src", "/dst"))
	engine.MaxSuffix = 2

	entry := models.NewFileEntry("/src/a.jpg", models.KindImage, 10, time.Now())
	outcome := relocateWithin(t, engine, entry)

	if outcome.Plan.Action != models.ActionSkip || outcome.Err != nil {
		t.Errorf("outcome = %+v, want skip", outcome)
	}
	if !strings.Contains(outcome.Plan.Reason, "no free name") {
		t.Errorf("reason = %q", outcome.Plan.Reason)
	}
	if !h.Exists("/src/a.jpg") {
		t.Error("an unresolvable collision leaves the file in place")
	}
}

func TestEngine_PermissionErrorIsPerFile(t *testing.T) {
	h := newTestHelper(t)
	h.Photo("/src/a.jpg", "a:1", datePtr(july14))
	h.fs.MkdirAll("/dst", 0755)
	readOnly := storage.NewWithFs(afero.NewReadOnlyFs(h.fs))

	set := &metadata.Set{Image: h.meta, Video: h.meta}
	op := newOperation("/src", "/dst")
	engine := NewEngine(readOnly, set, fingerprint.NewPolicy(readOnly, set, fingerprint.Options{}), nil, op)

	entry := models.NewFileEntry("/src/a.jpg", models.KindImage, 10, time.Now())
	outcome := relocateWithin(t, engine, entry)

	if outcome.Err == nil || !models.IsPermission(outcome.Err) {
		t.Errorf("error = %v, want permission error", outcome.Err)
	}
	if outcome.Applied {
		t.Error("a failed move is not applied")
	}
}

func TestEngine_ConcurrentSameDestination(t *testing.T) {
	h := newTestHelper(t)
	op := newOperation("/src", "/dst")
	op.MaxWorkers = 8

	for i := 0; i < 20; i++ {
		p := filepath.Join("/src", string(rune('a'+i)), "same.jpg")
		h.Photo(p, "a:"+string(rune('a'+i)), datePtr(july14))
	}

	report := h.Sort(op)
	names, _ := afero.ReadDir(h.fs, "/dst/Photos/2023/July")
	if len(names) != 20 || report.Stats.FilesMoved != 20 {
		t.Errorf("files = %d moved = %d, want 20 distinct files", len(names), report.Stats.FilesMoved)
	}
}
