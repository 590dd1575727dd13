// Package classify maps paths to file kinds without reading file contents.
package classify

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"

	"github.com/sdejongh/mediatidy/pkg/models"
)

// Extensions the filetype registry does not know about
var (
	extraImageExts = map[string]bool{
		"jpeg": true, "jpe": true, "tiff": true, "heic": true, "dng": true,
		"nef": true, "arw": true, "orf": true, "rw2": true, "raf": true,
		"raw": true, "srw": true, "pef": true,
	}
	extraVideoExts = map[string]bool{
		"mpeg": true, "mts": true, "m2ts": true, "ts": true, "vob": true,
		"rmvb": true, "ogv": true, "3g2": true, "divx": true,
	}
	scriptExts = map[string]bool{
		"sh": true, "bash": true, "zsh": true, "fish": true, "py": true,
		"pl": true, "rb": true, "lua": true, "php": true, "tcl": true,
		"js": true, "ps1": true, "bat": true, "cmd": true,
	}
	logExts = map[string]bool{
		"log": true,
	}
	// plain-text extensions whose names may still mark them as logs
	textExts = map[string]bool{
		"": true, "txt": true, "csv": true, "dat": true, "out": true,
	}
)

// logTokenRegex matches voltage or frequency tokens such as 1250mV or 4.2GHz
var logTokenRegex = regexp.MustCompile(`(?i)(^|[^a-z0-9.])\d+(\.\d+)?\s?(mv|v|hz|khz|mhz|ghz)($|[^a-z])`)

// unitExtRegex matches the fraction of a decimal token that filepath.Ext
// mistakes for an extension, as in "cpu 4.2GHz"
var unitExtRegex = regexp.MustCompile(`(?i)^\d+(mv|v|hz|khz|mhz|ghz)$`)

// Classify returns the kind of path.
// The decision is a pure function of the name and the directory flag.
func Classify(path string, isDir bool) models.Kind {
	kind, _ := Resolve(path, isDir)
	return kind
}

// Resolve is Classify with an explanation: it returns a ClassificationError
// alongside KindOther when the name was not recognized.
func Resolve(path string, isDir bool) (models.Kind, error) {
	if isDir {
		return models.KindDirectory, nil
	}

	base := filepath.Base(path)
	if path == "" || base == "." || base == string(filepath.Separator) {
		return models.KindOther, &models.ClassificationError{Path: path, Reason: "empty file name"}
	}

	stem, ext := splitName(base)

	switch {
	case isImageExt(ext):
		return models.KindImage, nil
	case isVideoExt(ext):
		return models.KindVideo, nil
	case logExts[ext]:
		return models.KindLog, nil
	case scriptExts[ext]:
		return models.KindScript, nil
	}

	if textExts[ext] && logTokenRegex.MatchString(stem) {
		return models.KindLog, nil
	}

	if ext == "" {
		return models.KindOther, &models.ClassificationError{Path: path, Reason: "no extension"}
	}
	return models.KindOther, &models.ClassificationError{Path: path, Reason: "unknown extension ." + ext}
}

// splitName returns the stem and lowercase extension of base. A trailing
// voltage or frequency fraction stays in the stem.
func splitName(base string) (stem, ext string) {
	dot := filepath.Ext(base)
	ext = strings.ToLower(strings.TrimPrefix(dot, "."))
	if unitExtRegex.MatchString(ext) {
		return base, ""
	}
	return strings.TrimSuffix(base, dot), ext
}

// MIME returns the MIME type registered for the extension of path
func MIME(path string) string {
	ext := strings.TrimPrefix(models.LowerExt(path), ".")
	if t := filetype.GetType(ext); t != types.Unknown {
		return t.MIME.Value
	}
	switch {
	case extraImageExts[ext]:
		return "image/" + ext
	case extraVideoExts[ext]:
		return "video/" + ext
	case logExts[ext], textExts[ext] && ext != "":
		return "text/plain"
	}
	return "application/octet-stream"
}

func isImageExt(ext string) bool {
	if extraImageExts[ext] {
		return true
	}
	return ext != "" && filetype.GetType(ext).MIME.Type == "image"
}

func isVideoExt(ext string) bool {
	if extraVideoExts[ext] {
		return true
	}
	return ext != "" && filetype.GetType(ext).MIME.Type == "video"
}
