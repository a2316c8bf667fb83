// Package wizard drives the four-step thumbnail flow: video source, title
// and catchphrase, base image, finished thumbnails.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"ai-thumbnail-pro/internal/frames"
	"ai-thumbnail-pro/internal/thumbnail"
)

// CandidateCount is the number of frames or backgrounds offered in step 3.
const CandidateCount = 3

const (
	msgGeneratingTitles = "タイトルとキャッチコピーを生成中..."
	msgExtractingFrames = "動画から画像を抽出中..."
	msgGeneratingImages = "サムネイル画像を生成中..."
	msgComposing        = "最終的なサムネイルをデザイン中..."
)

var (
	ErrBusy      = errors.New("a step is already in progress")
	ErrWrongStep = errors.New("action does not belong to the current step")
)

type Generator interface {
	Suggest(ctx context.Context, contextText string) (thumbnail.Suggestions, error)
	Backgrounds(ctx context.Context, theme string) ([]string, error)
	Compose(ctx context.Context, baseRef, title, catchphrase string) ([]string, error)
}

type FrameSampler interface {
	Sample(ctx context.Context, video []byte, count int) ([]frames.Frame, error)
}

type TitleLookup interface {
	Title(ctx context.Context, videoURL string) (string, error)
}

// Action is one of SubmitSource, SubmitSelection or SubmitImage.
type Action interface {
	step() int
}

type SubmitSource struct {
	Source VideoSource
}

type SubmitSelection struct {
	Title       string
	Catchphrase string
}

type SubmitImage struct {
	ImageRef string
}

func (SubmitSource) step() int    { return StepInput }
func (SubmitSelection) step() int { return StepTitles }
func (SubmitImage) step() int     { return StepImages }

type Options struct {
	Generator     Generator
	Frames        FrameSampler
	Lookup        TitleLookup
	MaxVideoBytes int64
	Logger        *slog.Logger
}

type Machine struct {
	mu    sync.Mutex
	state State
	epoch uint64

	gen           Generator
	frames        FrameSampler
	lookup        TitleLookup
	maxVideoBytes int64
	logger        *slog.Logger
}

func New(opts Options) *Machine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Machine{
		state:         initialState(),
		gen:           opts.Generator,
		frames:        opts.Frames,
		lookup:        opts.Lookup,
		maxVideoBytes: opts.MaxVideoBytes,
		logger:        logger,
	}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Restart returns every field to its initial value. Work still running for
// the previous state finishes in the background and is discarded.
func (m *Machine) Restart() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	m.state = initialState()
	m.logger.Debug("wizard restarted")
	return m.state.clone()
}

// Pending is a started transition whose work has not run yet.
type Pending struct {
	m     *Machine
	epoch uint64
	step  int
	work  func(ctx context.Context) (func(*State), error)
}

// Start checks that action fits the current state, moves to the loading
// overlay and returns the work to run. Rejections leave the state untouched.
func (m *Machine) Start(action Action) (*Pending, error) {
	if src, ok := action.(SubmitSource); ok {
		if err := src.Source.Validate(); err != nil {
			return nil, err
		}
		if err := validateSize(src.Source, m.maxVideoBytes); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.state.Overlay == OverlayLoading:
		return nil, ErrBusy
	case m.state.Overlay == OverlayError, m.state.Step != action.step():
		return nil, ErrWrongStep
	}

	var (
		work    func(ctx context.Context) (func(*State), error)
		message string
	)

	switch a := action.(type) {
	case SubmitSource:
		src := a.Source
		m.state.Source = &src
		message = msgGeneratingTitles
		work = m.suggestWork(src)
	case SubmitSelection:
		m.state.SelectedTitle = a.Title
		m.state.SelectedCatchphrase = a.Catchphrase
		src := m.state.Source
		if src != nil && src.Kind == SourceFile {
			message = msgExtractingFrames
		} else {
			message = msgGeneratingImages
		}
		work = m.candidateWork(src, a.Title)
	case SubmitImage:
		m.state.SelectedCandidate = a.ImageRef
		message = msgComposing
		work = m.composeWork(a.ImageRef, m.state.SelectedTitle, m.state.SelectedCatchphrase)
	default:
		return nil, ErrWrongStep
	}

	m.state.Overlay = OverlayLoading
	m.state.LoadingMessage = message
	m.state.Error = ""

	return &Pending{m: m, epoch: m.epoch, step: action.step(), work: work}, nil
}

// Apply starts action and runs its work in the calling goroutine.
func (m *Machine) Apply(ctx context.Context, action Action) (State, error) {
	p, err := m.Start(action)
	if err != nil {
		return m.State(), err
	}
	return p.Run(ctx), nil
}

// Current reports whether the machine has not been restarted since Start.
func (p *Pending) Current() bool {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	return p.m.epoch == p.epoch
}

// Run performs the step's work and applies the outcome unless the machine
// was restarted meanwhile.
func (p *Pending) Run(ctx context.Context) State {
	apply, err := p.work(ctx)

	m := p.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != p.epoch {
		m.logger.Debug("dropping stale step result", "step", p.step, "err", err)
		return m.state.clone()
	}

	m.state.Overlay = OverlayNone
	m.state.LoadingMessage = ""

	if err != nil {
		m.logger.Error("wizard step failed", "step", p.step, "err", err)
		m.state.Overlay = OverlayError
		m.state.Error = errorMessage(err, p.step)
		return m.state.clone()
	}

	apply(&m.state)
	m.logger.Info("wizard step done", "step", p.step, "next", m.state.Step)
	return m.state.clone()
}

func (m *Machine) suggestWork(src VideoSource) func(ctx context.Context) (func(*State), error) {
	return func(ctx context.Context) (func(*State), error) {
		var contextText string
		switch src.Kind {
		case SourceFile:
			contextText = src.Description
		case SourceYouTube:
			title, err := m.lookup.Title(ctx, src.URL)
			if err != nil {
				return nil, err
			}
			contextText = title
		default:
			return nil, ErrUnknownSource
		}

		s, err := m.gen.Suggest(ctx, contextText)
		if err != nil {
			return nil, err
		}

		return func(st *State) {
			st.Titles = s.Titles
			st.Catchphrases = s.Catchphrases
			st.Step = StepTitles
		}, nil
	}
}

func (m *Machine) candidateWork(src *VideoSource, title string) func(ctx context.Context) (func(*State), error) {
	return func(ctx context.Context) (func(*State), error) {
		if src == nil {
			return nil, ErrUnknownSource
		}

		var candidates []Candidate
		switch src.Kind {
		case SourceFile:
			sampled, err := m.frames.Sample(ctx, src.Content, CandidateCount)
			if err != nil {
				return nil, err
			}
			for _, f := range sampled {
				secs := f.Seconds
				candidates = append(candidates, Candidate{ImageRef: f.ImageRef, TimestampSeconds: &secs})
			}
		case SourceYouTube:
			images, err := m.gen.Backgrounds(ctx, title)
			if err != nil {
				return nil, err
			}
			for _, img := range images {
				candidates = append(candidates, Candidate{ImageRef: img})
			}
		default:
			return nil, ErrUnknownSource
		}

		return func(st *State) {
			st.Candidates = candidates
			st.Step = StepImages
		}, nil
	}
}

func (m *Machine) composeWork(ref, title, catchphrase string) func(ctx context.Context) (func(*State), error) {
	return func(ctx context.Context) (func(*State), error) {
		images, err := m.gen.Compose(ctx, ref, title, catchphrase)
		if err != nil {
			return nil, err
		}
		return func(st *State) {
			st.FinalImages = images
			st.Step = StepResult
		}, nil
	}
}

func errorMessage(err error, step int) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fmt.Sprintf("An unknown error occurred in Step %d.", step)
}
