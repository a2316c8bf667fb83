package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-thumbnail-pro/internal/frames"
	"ai-thumbnail-pro/internal/thumbnail"
)

type fakeGenerator struct {
	mu sync.Mutex

	suggestContext string
	suggestions    thumbnail.Suggestions
	suggestErr     error

	theme          string
	backgrounds    []string
	backgroundsErr error

	composeArgs []string
	composed    []string
	composeErr  error
}

func (g *fakeGenerator) Suggest(_ context.Context, contextText string) (thumbnail.Suggestions, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.suggestContext = contextText
	return g.suggestions, g.suggestErr
}

func (g *fakeGenerator) Backgrounds(_ context.Context, theme string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.theme = theme
	return g.backgrounds, g.backgroundsErr
}

func (g *fakeGenerator) Compose(_ context.Context, baseRef, title, catchphrase string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.composeArgs = []string{baseRef, title, catchphrase}
	return g.composed, g.composeErr
}

type fakeFrames struct {
	frames []frames.Frame
	err    error
	count  int
}

func (f *fakeFrames) Sample(_ context.Context, _ []byte, count int) ([]frames.Frame, error) {
	f.count = count
	return f.frames, f.err
}

type fakeLookup struct {
	title string
	err   error
	url   string
}

func (l *fakeLookup) Title(_ context.Context, videoURL string) (string, error) {
	l.url = videoURL
	return l.title, l.err
}

func defaultGenerator() *fakeGenerator {
	return &fakeGenerator{
		suggestions: thumbnail.Suggestions{
			Titles:       []string{"T1", "T2", "T3"},
			Catchphrases: []string{"C1", "C2", "C3"},
		},
		backgrounds: []string{"data:image/png;base64,B1", "data:image/png;base64,B2", "data:image/png;base64,B3"},
		composed:    []string{"data:image/png;base64,F1", "data:image/png;base64,F2", "data:image/png;base64,F3"},
	}
}

func sampledFrames() []frames.Frame {
	return []frames.Frame{
		{ImageRef: "data:image/jpeg;base64,A", At: 2.5, Seconds: 3},
		{ImageRef: "data:image/jpeg;base64,B", At: 5, Seconds: 5},
		{ImageRef: "data:image/jpeg;base64,C", At: 7.5, Seconds: 8},
	}
}

func newMachine(gen *fakeGenerator, fr *fakeFrames, lk *fakeLookup) *Machine {
	return New(Options{Generator: gen, Frames: fr, Lookup: lk})
}

func TestFileSourceFlow(t *testing.T) {
	gen := defaultGenerator()
	fr := &fakeFrames{frames: sampledFrames()}
	m := newMachine(gen, fr, &fakeLookup{})
	ctx := context.Background()

	st, err := m.Apply(ctx, SubmitSource{Source: FileSource([]byte("video"), "clip.mp4", "チーズケーキの作り方")})
	require.NoError(t, err)
	assert.Equal(t, "チーズケーキの作り方", gen.suggestContext)
	assert.Equal(t, StepTitles, st.Step)
	assert.Equal(t, OverlayNone, st.Overlay)
	assert.Equal(t, []string{"T1", "T2", "T3"}, st.Titles)
	assert.Equal(t, []string{"C1", "C2", "C3"}, st.Catchphrases)

	st, err = m.Apply(ctx, SubmitSelection{Title: "T2", Catchphrase: "C3"})
	require.NoError(t, err)
	assert.Equal(t, CandidateCount, fr.count)
	assert.Equal(t, StepImages, st.Step)
	require.Len(t, st.Candidates, 3)
	assert.Equal(t, 3, *st.Candidates[0].TimestampSeconds)
	assert.Equal(t, "00:08", st.Candidates[2].Label())
	assert.Empty(t, gen.theme, "file sources never request generated backgrounds")

	st, err = m.Apply(ctx, SubmitImage{ImageRef: "data:image/jpeg;base64,B"})
	require.NoError(t, err)
	assert.Equal(t, StepResult, st.Step)
	assert.Equal(t, []string{"data:image/jpeg;base64,B", "T2", "C3"}, gen.composeArgs)
	assert.Len(t, st.FinalImages, 3)
	assert.Equal(t, "data:image/jpeg;base64,B", st.SelectedCandidate)
}

func TestYouTubeSourceFlow(t *testing.T) {
	gen := defaultGenerator()
	lk := &fakeLookup{title: "5分で作るチーズケーキ"}
	m := newMachine(gen, &fakeFrames{}, lk)
	ctx := context.Background()

	st, err := m.Apply(ctx, SubmitSource{Source: YouTubeSource(" https://youtu.be/abc123 ")})
	require.NoError(t, err)
	assert.Equal(t, "https://youtu.be/abc123", lk.url)
	assert.Equal(t, "5分で作るチーズケーキ", gen.suggestContext)
	assert.Equal(t, StepTitles, st.Step)

	st, err = m.Apply(ctx, SubmitSelection{Title: "T1", Catchphrase: "C1"})
	require.NoError(t, err)
	assert.Equal(t, "T1", gen.theme)
	require.Len(t, st.Candidates, 3)
	assert.Nil(t, st.Candidates[0].TimestampSeconds)
	assert.Empty(t, st.Candidates[0].Label())
}

func TestLoadingMessages(t *testing.T) {
	gen := defaultGenerator()
	m := newMachine(gen, &fakeFrames{frames: sampledFrames()}, &fakeLookup{title: "x"})
	ctx := context.Background()

	p, err := m.Start(SubmitSource{Source: FileSource([]byte("v"), "", "desc")})
	require.NoError(t, err)
	st := m.State()
	assert.True(t, st.Loading())
	assert.Equal(t, msgGeneratingTitles, st.LoadingMessage)
	assert.Equal(t, StepInput, st.Step)
	p.Run(ctx)

	p, err = m.Start(SubmitSelection{Title: "T1", Catchphrase: "C1"})
	require.NoError(t, err)
	assert.Equal(t, msgExtractingFrames, m.State().LoadingMessage)
	p.Run(ctx)

	p, err = m.Start(SubmitImage{ImageRef: "data:image/jpeg;base64,A"})
	require.NoError(t, err)
	assert.Equal(t, msgComposing, m.State().LoadingMessage)
	st = p.Run(ctx)
	assert.False(t, st.Loading())
	assert.Empty(t, st.LoadingMessage)

	m.Restart()
	_, err = m.Apply(ctx, SubmitSource{Source: YouTubeSource("https://youtu.be/x")})
	require.NoError(t, err)
	p, err = m.Start(SubmitSelection{Title: "T1", Catchphrase: "C1"})
	require.NoError(t, err)
	assert.Equal(t, msgGeneratingImages, m.State().LoadingMessage)
	p.Run(ctx)
}

func TestRejectionsDoNotTransition(t *testing.T) {
	m := newMachine(defaultGenerator(), &fakeFrames{frames: sampledFrames()}, &fakeLookup{})

	_, err := m.Start(SubmitSource{Source: FileSource(nil, "", "desc")})
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), msgVideoMissing)

	_, err = m.Start(SubmitSource{Source: FileSource([]byte("v"), "", "  ")})
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), msgDescriptionMissing)

	_, err = m.Start(SubmitSource{Source: YouTubeSource("https://vimeo.com/1")})
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), msgInvalidURL)

	_, err = m.Start(SubmitImage{ImageRef: "x"})
	assert.ErrorIs(t, err, ErrWrongStep)

	assert.Equal(t, initialState(), m.State())

	p, err := m.Start(SubmitSource{Source: FileSource([]byte("v"), "", "desc")})
	require.NoError(t, err)
	_, err = m.Start(SubmitSource{Source: FileSource([]byte("v"), "", "desc")})
	assert.ErrorIs(t, err, ErrBusy)
	p.Run(context.Background())
	assert.Equal(t, StepTitles, m.State().Step)
}

func TestVideoSizeLimit(t *testing.T) {
	m := New(Options{Generator: defaultGenerator(), MaxVideoBytes: 4})

	_, err := m.Start(SubmitSource{Source: FileSource([]byte("12345"), "", "desc")})
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), msgVideoTooLarge)
	assert.False(t, m.State().Loading())
}

func TestFailureShowsErrorOverlay(t *testing.T) {
	gen := defaultGenerator()
	gen.suggestErr = errors.New("quota exceeded")
	m := newMachine(gen, &fakeFrames{}, &fakeLookup{})

	st, err := m.Apply(context.Background(), SubmitSource{Source: FileSource([]byte("v"), "", "desc")})
	require.NoError(t, err)
	assert.True(t, st.Failed())
	assert.False(t, st.Loading())
	assert.Equal(t, "quota exceeded", st.Error)
	assert.Equal(t, StepInput, st.Step)

	_, err = m.Start(SubmitSource{Source: FileSource([]byte("v"), "", "desc")})
	assert.ErrorIs(t, err, ErrWrongStep)

	st = m.Restart()
	assert.Equal(t, initialState(), st)
}

func TestLookupFailureSkipsSuggest(t *testing.T) {
	gen := defaultGenerator()
	m := newMachine(gen, &fakeFrames{}, &fakeLookup{err: errors.New("no title")})

	st, err := m.Apply(context.Background(), SubmitSource{Source: YouTubeSource("https://youtu.be/x")})
	require.NoError(t, err)
	assert.True(t, st.Failed())
	assert.Equal(t, "no title", st.Error)
	assert.Empty(t, gen.suggestContext)
}

type emptyErr struct{}

func (emptyErr) Error() string { return "" }

func TestUnknownErrorFallback(t *testing.T) {
	gen := defaultGenerator()
	m := newMachine(gen, &fakeFrames{err: emptyErr{}}, &fakeLookup{})
	ctx := context.Background()

	_, err := m.Apply(ctx, SubmitSource{Source: FileSource([]byte("v"), "", "desc")})
	require.NoError(t, err)

	st, err := m.Apply(ctx, SubmitSelection{Title: "T1", Catchphrase: "C1"})
	require.NoError(t, err)
	assert.Equal(t, "An unknown error occurred in Step 2.", st.Error)
	assert.Empty(t, st.Candidates)
	assert.Equal(t, StepTitles, st.Step)
}

func TestCandidateFailureLeavesNoPartialResult(t *testing.T) {
	gen := defaultGenerator()
	gen.backgrounds = []string{"data:image/png;base64,B1"}
	gen.backgroundsErr = errors.New("second image failed")
	m := newMachine(gen, &fakeFrames{}, &fakeLookup{title: "x"})
	ctx := context.Background()

	_, err := m.Apply(ctx, SubmitSource{Source: YouTubeSource("https://youtu.be/x")})
	require.NoError(t, err)
	st, err := m.Apply(ctx, SubmitSelection{Title: "T1", Catchphrase: "C1"})
	require.NoError(t, err)
	assert.True(t, st.Failed())
	assert.Empty(t, st.Candidates)
}

func TestRestartFromEveryStep(t *testing.T) {
	ctx := context.Background()
	advance := []Action{
		SubmitSource{Source: FileSource([]byte("v"), "", "desc")},
		SubmitSelection{Title: "T1", Catchphrase: "C1"},
		SubmitImage{ImageRef: "data:image/jpeg;base64,A"},
	}

	for steps := 0; steps <= len(advance); steps++ {
		m := newMachine(defaultGenerator(), &fakeFrames{frames: sampledFrames()}, &fakeLookup{})
		for _, a := range advance[:steps] {
			_, err := m.Apply(ctx, a)
			require.NoError(t, err)
		}
		assert.Equal(t, steps+1, m.State().Step)
		assert.Equal(t, initialState(), m.Restart())
	}
}

func TestRestartDropsStaleResult(t *testing.T) {
	gen := defaultGenerator()
	m := newMachine(gen, &fakeFrames{}, &fakeLookup{})

	p, err := m.Start(SubmitSource{Source: FileSource([]byte("v"), "", "desc")})
	require.NoError(t, err)

	assert.True(t, p.Current())
	m.Restart()
	assert.False(t, p.Current())
	st := p.Run(context.Background())
	assert.Equal(t, initialState(), st)
	assert.Equal(t, initialState(), m.State())

	gen.suggestErr = errors.New("late failure")
	p, err = m.Start(SubmitSource{Source: FileSource([]byte("v"), "", "desc")})
	require.NoError(t, err)
	m.Restart()
	st = p.Run(context.Background())
	assert.False(t, st.Failed())
}

func TestStateIsACopy(t *testing.T) {
	m := newMachine(defaultGenerator(), &fakeFrames{}, &fakeLookup{})
	_, err := m.Apply(context.Background(), SubmitSource{Source: FileSource([]byte("v"), "", "desc")})
	require.NoError(t, err)

	st := m.State()
	st.Titles[0] = "mutated"
	assert.Equal(t, "T1", m.State().Titles[0])
}

func TestCanSubmitHelpers(t *testing.T) {
	m := newMachine(defaultGenerator(), &fakeFrames{frames: sampledFrames()}, &fakeLookup{})
	ctx := context.Background()

	assert.False(t, m.State().CanSubmitSelection("T1", "C1"))

	_, err := m.Apply(ctx, SubmitSource{Source: FileSource([]byte("v"), "", "desc")})
	require.NoError(t, err)
	st := m.State()
	assert.True(t, st.CanSubmitSelection("T1", "C1"))
	assert.False(t, st.CanSubmitSelection("T1", ""))
	assert.False(t, st.CanSubmitSelection("", "C1"))
	assert.False(t, st.CanSubmitSelection("other", "C1"))

	_, err = m.Apply(ctx, SubmitSelection{Title: "T1", Catchphrase: "C1"})
	require.NoError(t, err)
	st = m.State()
	assert.True(t, st.CanSubmitImage("data:image/jpeg;base64,A"))
	assert.False(t, st.CanSubmitImage(""))
	assert.False(t, st.CanSubmitImage("data:image/jpeg;base64,Z"))
}

func TestOverlayText(t *testing.T) {
	for _, o := range []Overlay{OverlayNone, OverlayLoading, OverlayError} {
		text, err := o.MarshalText()
		require.NoError(t, err)
		var back Overlay
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, o, back)
	}
	var o Overlay
	assert.Error(t, o.UnmarshalText([]byte("busy")))
}
