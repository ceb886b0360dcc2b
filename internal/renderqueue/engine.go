package renderqueue

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/cutline/internal/pipeline"
	"github.com/mantonx/cutline/internal/timebase"
)

// Engine executes one compiled pipeline and blocks until it finishes.
// It reports progress through the callback and must honor context
// cancellation by killing the underlying process.
type Engine interface {
	Render(ctx context.Context, job *Job, onProgress func(Progress)) error
}

// EngineFailureError carries the engine's exit error together with the
// tail of its diagnostic output, verbatim.
type EngineFailureError struct {
	Err        error
	StderrTail string
}

func (e *EngineFailureError) Error() string {
	return fmt.Sprintf("render engine failed: %v", e.Err)
}

func (e *EngineFailureError) Unwrap() error { return e.Err }

// EncodingConfig selects the output codecs for FFmpeg exports.
type EncodingConfig struct {
	FFmpegPath   string `yaml:"ffmpeg_path"`
	VideoCodec   string `yaml:"video_codec"`
	Preset       string `yaml:"preset"`
	CRF          int    `yaml:"crf"`
	AudioCodec   string `yaml:"audio_codec"`
	AudioBitrate string `yaml:"audio_bitrate"`
}

// DefaultEncodingConfig returns the software x264 defaults.
func DefaultEncodingConfig() EncodingConfig {
	return EncodingConfig{
		FFmpegPath:   "ffmpeg",
		VideoCodec:   "libx264",
		Preset:       "medium",
		CRF:          23,
		AudioCodec:   "aac",
		AudioBitrate: "192k",
	}
}

// stderrTailLines is how many trailing diagnostic lines a failed
// render keeps for the job record.
const stderrTailLines = 40

// FFmpegEngine renders a pipeline description by executing FFmpeg with
// the description's filter graph and parsing its -progress stream.
type FFmpegEngine struct {
	config EncodingConfig
	logger hclog.Logger
}

// NewFFmpegEngine creates an engine with the given encoding settings.
func NewFFmpegEngine(config EncodingConfig, logger hclog.Logger) *FFmpegEngine {
	if config.FFmpegPath == "" {
		config.FFmpegPath = "ffmpeg"
	}
	return &FFmpegEngine{
		config: config,
		logger: logger.Named("ffmpeg"),
	}
}

// Args returns the full FFmpeg argument list for the job.
func (e *FFmpegEngine) Args(job *Job) []string {
	d := job.Description
	args := append([]string{"-hide_banner", "-nostdin"}, pipeline.InputArgs(d)...)
	args = append(args,
		"-filter_complex", pipeline.FilterGraph(d),
		"-map", fmt.Sprintf("[%s]", d.VideoOut),
		"-map", fmt.Sprintf("[%s]", d.AudioOut),
		"-c:v", e.config.VideoCodec,
		"-preset", e.config.Preset,
		"-crf", strconv.Itoa(e.config.CRF),
		"-c:a", e.config.AudioCodec,
		"-b:a", e.config.AudioBitrate,
		"-progress", "pipe:2",
		"-y", job.OutputPath,
	)
	return args
}

// Render executes FFmpeg and blocks until it exits. Progress keys
// arrive on stderr as key=value lines.
func (e *FFmpegEngine) Render(ctx context.Context, job *Job, onProgress func(Progress)) error {
	args := e.Args(job)
	e.logger.Info("starting render",
		"job_id", job.ID,
		"output", job.OutputPath,
		"inputs", len(job.Description.Inputs),
	)
	e.logger.Debug("ffmpeg command", "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, e.config.FFmpegPath, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	mon := &progressMonitor{
		duration: job.Description.Range.Duration(),
		started:  time.Now(),
		onUpdate: onProgress,
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		mon.consume(stderr)
	}()

	waitErr := cmd.Wait()
	wg.Wait()

	if waitErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &EngineFailureError{Err: waitErr, StderrTail: mon.tail()}
	}
	return nil
}

// progressMonitor parses FFmpeg's stderr, which interleaves the
// -progress key=value stream with normal diagnostics. Diagnostic lines
// are retained in a bounded tail for failure reports.
type progressMonitor struct {
	duration timebase.Timestamp
	started  time.Time
	onUpdate func(Progress)

	mu      sync.Mutex
	lines   []string
	current Progress
}

var progressRegex = regexp.MustCompile(`(\w+)=\s*([^\s]+)`)

func (m *progressMonitor) consume(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		m.record(line)

		matches := progressRegex.FindAllStringSubmatch(line, -1)
		if len(matches) == 0 {
			continue
		}

		flush := false
		for _, match := range matches {
			if len(match) != 3 {
				continue
			}
			key, value := match[1], match[2]
			switch key {
			case "frame":
				if frame, err := strconv.ParseInt(value, 10, 64); err == nil {
					m.current.Frame = frame
				}
			case "fps":
				if fps, err := strconv.ParseFloat(value, 64); err == nil {
					m.current.FPS = fps
				}
			case "out_time_us":
				if us, err := strconv.ParseInt(value, 10, 64); err == nil {
					m.current.OutTime = timebase.Timestamp(us)
				}
			case "speed":
				if speed, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64); err == nil {
					m.current.RenderSpeed = speed
				}
			case "progress":
				flush = true
				if value == "end" {
					m.current.Fraction = 1.0
					m.current.OutTime = m.duration
				}
			}
		}
		if flush {
			m.derive()
			if m.onUpdate != nil {
				m.onUpdate(m.current)
			}
		}
	}
}

// derive fills the fields FFmpeg does not report directly: the overall
// fraction, the wall-clock render speed when FFmpeg's own speed key is
// absent, and the remaining-time estimate.
func (m *progressMonitor) derive() {
	if m.duration > 0 && m.current.Fraction < 1.0 {
		m.current.Fraction = float64(m.current.OutTime) / float64(m.duration)
		if m.current.Fraction > 1.0 {
			m.current.Fraction = 1.0
		}
	}
	elapsed := time.Since(m.started).Seconds()
	if m.current.RenderSpeed == 0 && elapsed > 0 {
		m.current.RenderSpeed = m.current.OutTime.Seconds() / elapsed
	}
	if m.current.RenderSpeed > 0 {
		remaining := (m.duration - m.current.OutTime).Seconds()
		if remaining < 0 {
			remaining = 0
		}
		m.current.ETA = time.Duration(remaining / m.current.RenderSpeed * float64(time.Second))
	}
}

func (m *progressMonitor) record(line string) {
	m.mu.Lock()
	m.lines = append(m.lines, line)
	if len(m.lines) > stderrTailLines {
		m.lines = m.lines[1:]
	}
	m.mu.Unlock()
}

func (m *progressMonitor) tail() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return strings.Join(m.lines, "\n")
}
