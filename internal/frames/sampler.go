// Package frames samples evenly spaced still frames from a video.
package frames

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"ai-thumbnail-pro/internal/imageref"
)

const frameMimeType = "image/jpeg"

var (
	ErrInvalidDuration = errors.New("could not determine video duration; the video file might be corrupted or in an unsupported format")
	ErrDecode          = errors.New("failed to load video file; it might be corrupted or in an unsupported format")
	ErrFrameCount      = errors.New("frame count must be positive")
)

// Surface is an opened video. Capture seeks to the given second and returns
// the decoded frame as a compressed still. Calls must not overlap.
type Surface interface {
	Duration() float64
	Capture(ctx context.Context, at float64) ([]byte, error)
	Close() error
}

type Decoder interface {
	Open(ctx context.Context, video []byte) (Surface, error)
}

type Frame struct {
	ImageRef string
	At       float64
	// Seconds is At rounded to the nearest second, for display.
	Seconds int
}

type Options struct {
	Decoder Decoder
	Logger  *slog.Logger
}

type Sampler struct {
	decoder Decoder
	logger  *slog.Logger
}

func New(opts Options) *Sampler {
	decoder := opts.Decoder
	if decoder == nil {
		decoder = FFmpeg{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Sampler{decoder: decoder, logger: logger}
}

// Timestamps returns count points splitting duration into count+1 equal
// intervals, excluding both ends.
func Timestamps(duration float64, count int) ([]float64, error) {
	if count <= 0 {
		return nil, ErrFrameCount
	}
	if !validDuration(duration) {
		return nil, ErrInvalidDuration
	}

	interval := duration / float64(count+1)
	out := make([]float64, count)
	for i := range out {
		out[i] = interval * float64(i+1)
	}
	return out, nil
}

// Sample captures count frames in ascending order. Either all frames are
// returned or none.
func (s *Sampler) Sample(ctx context.Context, video []byte, count int) ([]Frame, error) {
	if count <= 0 {
		return nil, ErrFrameCount
	}
	if len(video) == 0 {
		return nil, ErrDecode
	}

	surface, err := s.decoder.Open(ctx, video)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	defer func() {
		if err := surface.Close(); err != nil {
			s.logger.Warn("release video surface failed", "err", err)
		}
	}()

	times, err := Timestamps(surface.Duration(), count)
	if err != nil {
		return nil, err
	}

	out := make([]Frame, 0, count)
	for _, at := range times {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		still, err := surface.Capture(ctx, at)
		if err != nil {
			return nil, fmt.Errorf("%w: capture at %.2fs: %w", ErrDecode, at, err)
		}
		if len(still) == 0 {
			return nil, fmt.Errorf("%w: empty frame at %.2fs", ErrDecode, at)
		}

		out = append(out, Frame{
			ImageRef: imageref.Encode(frameMimeType, still),
			At:       at,
			Seconds:  int(math.Round(at)),
		})
	}

	s.logger.Debug("frames sampled", "count", len(out), "duration", surface.Duration())
	return out, nil
}

func validDuration(d float64) bool {
	return !math.IsNaN(d) && !math.IsInf(d, 0) && d > 0
}
