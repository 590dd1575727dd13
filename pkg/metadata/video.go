package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/sdejongh/mediatidy/pkg/models"
)

// ProbeResult is the subset of ffprobe JSON output the tool uses
type ProbeResult struct {
	Streams []ProbeStream `json:"streams"`
	Format  ProbeFormat   `json:"format"`
}

// ProbeStream describes one stream of a container
type ProbeStream struct {
	CodecType string            `json:"codec_type"`
	CodecName string            `json:"codec_name"`
	Tags      map[string]string `json:"tags"`
}

// ProbeFormat describes the container
type ProbeFormat struct {
	Duration string            `json:"duration"`
	BitRate  string            `json:"bit_rate"`
	Tags     map[string]string `json:"tags"`
}

// Prober inspects a video container
type Prober interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)
}

// ErrProbeFailed wraps every failure reported by the probe tool itself
var ErrProbeFailed = errors.New("probe failed")

// FFProbe runs the ffprobe binary
type FFProbe struct {
	Binary string
}

// NewFFProbe returns a prober using ffprobe from PATH
func NewFFProbe() *FFProbe {
	return &FFProbe{Binary: "ffprobe"}
}

// Probe runs ffprobe with JSON output on path
func (p *FFProbe) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, p.Binary, "-v", "error", "-print_format", "json",
		"-show_format", "-show_streams", "--", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, &models.FatalConfigError{Op: "run " + p.Binary, Err: err}
		}
		return nil, fmt.Errorf("%w: %s", ErrProbeFailed, describeProbeFailure(stderr.String()))
	}

	return ParseProbeOutput(output)
}

// ParseProbeOutput decodes ffprobe JSON output
func ParseProbeOutput(data []byte) (*ProbeResult, error) {
	var result ProbeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: invalid ffprobe output: %v", ErrProbeFailed, err)
	}
	return &result, nil
}

// describeProbeFailure turns ffprobe stderr into a short reason
func describeProbeFailure(output string) string {
	switch {
	case strings.Contains(output, "moov atom not found"):
		return "missing metadata (moov atom not found)"
	case strings.Contains(output, "Invalid data found"),
		strings.Contains(output, "corrupt"),
		strings.Contains(output, "truncated"):
		return "corrupted or invalid: " + firstLine(output)
	}
	return firstLine(output)
}

func firstLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
		return strings.TrimSpace(lines[0])
	}
	return "no additional information available"
}

// VideoExtractor derives video metadata from a Prober
type VideoExtractor struct {
	prober Prober
}

// NewVideoExtractor creates a video extractor
func NewVideoExtractor(prober Prober) *VideoExtractor {
	return &VideoExtractor{prober: prober}
}

// Extract probes a video for duration, bitrate, codec and creation time
func (e *VideoExtractor) Extract(ctx context.Context, path string) (*models.Metadata, error) {
	result, err := e.prober.Probe(ctx, path)
	if err != nil {
		if errors.Is(err, ErrProbeFailed) {
			return corrupt(path, strings.TrimPrefix(err.Error(), ErrProbeFailed.Error()+": "), err)
		}
		return nil, err
	}

	meta := &models.Metadata{}

	seconds, err := strconv.ParseFloat(result.Format.Duration, 64)
	if err != nil || seconds <= 0 {
		return corrupt(path, "no duration", fmt.Errorf("duration %q", result.Format.Duration))
	}
	meta.Duration = time.Duration(math.Round(seconds*1000)) * time.Millisecond

	if result.Format.BitRate != "" {
		if br, err := strconv.ParseInt(result.Format.BitRate, 10, 64); err == nil {
			meta.Bitrate = br
		}
	}

	for _, s := range result.Streams {
		if s.CodecType == "video" {
			meta.Codec = s.CodecName
			break
		}
	}

	if date, ok := creationTime(result); ok {
		meta.CaptureDate = &date
	}

	return meta, nil
}

// creationTime reads the container creation_time tag, then the stream tags
func creationTime(result *ProbeResult) (time.Time, bool) {
	candidates := []map[string]string{result.Format.Tags}
	for _, s := range result.Streams {
		candidates = append(candidates, s.Tags)
	}

	for _, tags := range candidates {
		raw, ok := tags["creation_time"]
		if !ok {
			continue
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, raw); err == nil && plausible(t) {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// CheckDependencies verifies the probe binary is on PATH
func CheckDependencies(binary string) error {
	if _, err := exec.LookPath(binary); err != nil {
		return &models.FatalConfigError{
			Op:  "locate " + binary,
			Err: fmt.Errorf("%s not found in PATH. %s", binary, installationInstructions()),
		}
	}
	return nil
}

func installationInstructions() string {
	switch runtime.GOOS {
	case "darwin":
		return "Install with: brew install ffmpeg"
	case "linux":
		return "Install with: apt-get install ffmpeg (Ubuntu/Debian) or dnf install ffmpeg (Fedora)"
	case "windows":
		return "Download from https://ffmpeg.org/download.html and add to PATH"
	default:
		return "Download from https://ffmpeg.org/download.html"
	}
}
