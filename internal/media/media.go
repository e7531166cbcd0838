package media

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/hakutakaid/SaveRestrict/internal/logger"
)

// Metadata carries the video attributes attached to uploads.
type Metadata struct {
	Duration int32
	Width    int32
	Height   int32
}

// DefaultMetadata is used whenever probing fails. Uploads must never
// be blocked by a probe failure.
var DefaultMetadata = Metadata{Duration: 1, Width: 1, Height: 1}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int32  `json:"width"`
		Height    int32  `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeVideo extracts duration and dimensions with ffprobe. It never
// returns an error: any failure falls back to DefaultMetadata.
func ProbeVideo(path string) Metadata {
	out, err := exec.Command("ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	).Output()
	if err != nil {
		logger.L().Debugf("ffprobe failed for %s: %v", path, err)
		return DefaultMetadata
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		logger.L().Debugf("ffprobe output unparsable for %s: %v", path, err)
		return DefaultMetadata
	}

	meta := DefaultMetadata
	if sec, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil && sec > 0 {
		meta.Duration = int32(sec)
	}
	for _, s := range probe.Streams {
		if s.CodecType == "video" && s.Width > 0 && s.Height > 0 {
			meta.Width = s.Width
			meta.Height = s.Height
			break
		}
	}
	return meta
}

// Screenshot grabs a single frame at the midpoint of the video and
// writes it as a JPEG next to the source file. Returns the screenshot
// path.
func Screenshot(path string, duration int32) (string, error) {
	out := filepath.Join(filepath.Dir(path), filepath.Base(path)+".jpg")
	seek := duration / 2
	if seek < 1 {
		seek = 1
	}

	err := exec.Command("ffmpeg",
		"-y",
		"-ss", strconv.Itoa(int(seek)),
		"-i", path,
		"-vframes", "1",
		out,
	).Run()
	if err != nil {
		return "", fmt.Errorf("ffmpeg screenshot failed: %w", err)
	}
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("ffmpeg produced no screenshot: %w", err)
	}
	return out, nil
}

// UserThumb returns the user's persistent thumbnail path if one is
// stored, else "". The file is owned by the user and must never be
// deleted by transfer cleanup.
func UserThumb(thumbDir string, userID int64) string {
	path := filepath.Join(thumbDir, fmt.Sprintf("%d.jpg", userID))
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
