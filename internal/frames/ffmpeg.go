package frames

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// FFmpeg opens videos as temp files probed by ffprobe. Frames are grabbed
// with an input seek and encoded as mjpeg at the source resolution.
type FFmpeg struct {
	TempDir string
}

func (f FFmpeg) Open(ctx context.Context, video []byte) (Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(f.TempDir, "frames-*.video")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()

	if _, err := tmp.Write(video); err != nil {
		tmp.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	probe, err := ffmpeg.Probe(path)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("probe video: %w", err)
	}

	duration, err := probeDuration(probe)
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	return &ffmpegSurface{path: path, duration: duration}, nil
}

type ffmpegSurface struct {
	path     string
	duration float64
}

func (s *ffmpegSurface) Duration() float64 {
	return s.duration
}

func (s *ffmpegSurface) Capture(ctx context.Context, at float64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := bytes.NewBuffer(nil)
	var stderr bytes.Buffer
	err := ffmpeg.Input(s.path, ffmpeg.KwArgs{"ss": strconv.FormatFloat(at, 'f', 3, 64)}).
		Output("pipe:", ffmpeg.KwArgs{
			"vframes": 1,
			"format":  "image2",
			"vcodec":  "mjpeg",
		}).
		WithOutput(out, &stderr).
		Silent(true).
		Run()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out.Bytes(), nil
}

func (s *ffmpegSurface) Close() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// probeDuration returns NaN when ffprobe reports no usable duration so the
// sampler rejects it like any other invalid value.
func probeDuration(raw string) (float64, error) {
	var p probeOutput
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return 0, fmt.Errorf("decode probe: %w", err)
	}

	hasVideo := false
	duration := math.NaN()
	for _, s := range p.Streams {
		if s.CodecType != "video" {
			continue
		}
		hasVideo = true
		if d, ok := parseSeconds(s.Duration); ok {
			duration = d
		}
		break
	}
	if !hasVideo {
		return 0, errors.New("no video stream found")
	}

	if math.IsNaN(duration) {
		if d, ok := parseSeconds(p.Format.Duration); ok {
			duration = d
		}
	}
	return duration, nil
}

func parseSeconds(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" || value == "N/A" {
		return 0, false
	}
	d, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return d, true
}
