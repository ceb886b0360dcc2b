package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// MediaInfo is the technical shape of a source file, as reported by
// the probe. Durations are in microseconds to match timeline time.
type MediaInfo struct {
	DurationUS int64   `json:"duration_us"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	FrameRate  float64 `json:"frame_rate,omitempty"`
	VideoCodec string  `json:"video_codec,omitempty"`
	AudioCodec string  `json:"audio_codec,omitempty"`
	SampleRate int     `json:"sample_rate,omitempty"`
	Channels   int     `json:"channels,omitempty"`
}

// Prober extracts MediaInfo from a file on disk.
type Prober interface {
	Probe(ctx context.Context, path string) (*MediaInfo, error)
}

// FFprobe shells out to ffprobe for stream and container metadata.
type FFprobe struct {
	path   string
	logger hclog.Logger
}

// NewFFprobe creates a prober. An empty binary path means "ffprobe"
// on PATH.
func NewFFprobe(binary string, logger hclog.Logger) *FFprobe {
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFprobe{path: binary, logger: logger.Named("ffprobe")}
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`
}

// Probe implements Prober.
func (p *FFprobe) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	cmd := exec.CommandContext(ctx, p.path,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path)

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("ffprobe failed for %s: %s", path, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output for %s: %w", path, err)
	}

	info := &MediaInfo{}
	if seconds, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.DurationUS = int64(seconds * 1e6)
	}
	for _, s := range probe.Streams {
		switch s.CodecType {
		case "video":
			if info.VideoCodec != "" {
				continue
			}
			info.VideoCodec = s.CodecName
			info.Width = s.Width
			info.Height = s.Height
			info.FrameRate = parseFrameRate(s.AvgFrameRate)
		case "audio":
			if info.AudioCodec != "" {
				continue
			}
			info.AudioCodec = s.CodecName
			info.Channels = s.Channels
			if rate, err := strconv.Atoi(s.SampleRate); err == nil {
				info.SampleRate = rate
			}
		}
	}
	p.logger.Debug("probed media", "path", path, "duration_us", info.DurationUS,
		"video", info.VideoCodec, "audio", info.AudioCodec)
	return info, nil
}

// parseFrameRate decodes ffprobe's rational form, e.g. "30000/1001".
func parseFrameRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	if !found {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
