package classify

import (
	"errors"
	"testing"

	"github.com/sdejongh/mediatidy/pkg/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		isDir    bool
		expected models.Kind
	}{
		{"Jpeg", "/photos/IMG_0001.jpg", false, models.KindImage},
		{"UppercaseJpeg", "/photos/IMG_0001.JPG", false, models.KindImage},
		{"JpegLong", "/photos/scan.jpeg", false, models.KindImage},
		{"Png", "shot.png", false, models.KindImage},
		{"Heic", "/phone/IMG_1234.HEIC", false, models.KindImage},
		{"Raw", "/camera/DSC_0001.NEF", false, models.KindImage},
		{"Mp4", "/videos/clip.mp4", false, models.KindVideo},
		{"Mov", "/videos/clip.MOV", false, models.KindVideo},
		{"Mts", "/camcorder/00001.MTS", false, models.KindVideo},
		{"Log", "/var/app.log", false, models.KindLog},
		{"VoltageName", "/bench/run_1250mV.txt", false, models.KindLog},
		{"FrequencyName", "/bench/cpu 4.2GHz", false, models.KindLog},
		{"DecimalVoltageName", "/bench/vcore_1.25v", false, models.KindLog},
		{"DecimalVoltageText", "/bench/vcore_1.25v.txt", false, models.KindLog},
		{"MillivoltNoExt", "/bench/cpu_1250mV", false, models.KindLog},
		{"MillivoltText", "/bench/cpu_1250mV.txt", false, models.KindLog},
		{"DecimalFrequencyMHz", "/bench/mem 3.2MHz", false, models.KindLog},
		{"Shell", "/bin/backup.sh", false, models.KindScript},
		{"Python", "tool.py", false, models.KindScript},
		{"PlainText", "/docs/notes.txt", false, models.KindOther},
		{"Unknown", "/x/archive.xyz", false, models.KindOther},
		{"NoExt", "/x/README", false, models.KindOther},
		{"VersionNotVoltage", "/x/release_v2.txt", false, models.KindOther},
		{"Directory", "/photos/2023", true, models.KindDirectory},
		{"DirectoryWithExt", "/photos/album.jpg", true, models.KindDirectory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.path, tt.isDir); got != tt.expected {
				t.Errorf("Classify(%q) = %s, want %s", tt.path, got, tt.expected)
			}
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		if Classify("/a/b/IMG.JpG", false) != models.KindImage {
			t.Fatal("classification must be stable across calls")
		}
	}
}

func TestResolve_ReportsUnknown(t *testing.T) {
	kind, err := Resolve("/x/archive.xyz", false)
	if kind != models.KindOther {
		t.Errorf("kind = %s, want other", kind)
	}

	var ce *models.ClassificationError
	if !errors.As(err, &ce) {
		t.Fatalf("Resolve() error = %v, want ClassificationError", err)
	}
	if ce.Path != "/x/archive.xyz" {
		t.Errorf("Path = %s", ce.Path)
	}

	if _, err := Resolve("/x/a.jpg", false); err != nil {
		t.Errorf("known extension should not error: %v", err)
	}
	if _, err := Resolve("", false); err == nil {
		t.Error("empty path should error")
	}
}

func TestMIME(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"a.jpg", "image/jpeg"},
		{"a.PNG", "image/png"},
		{"a.mp4", "video/mp4"},
		{"a.log", "text/plain"},
		{"a.xyz", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := MIME(tt.path); got != tt.expected {
				t.Errorf("MIME(%q) = %s, want %s", tt.path, got, tt.expected)
			}
		})
	}
}
