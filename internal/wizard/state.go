package wizard

import (
	"fmt"
	"slices"
)

const (
	StepInput = iota + 1
	StepTitles
	StepImages
	StepResult
)

// Overlay covers the current step while work is pending or after it failed.
// Loading and error can never be shown together.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayLoading
	OverlayError
)

func (o Overlay) String() string {
	switch o {
	case OverlayLoading:
		return "loading"
	case OverlayError:
		return "error"
	}
	return "none"
}

func (o Overlay) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Overlay) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none", "":
		*o = OverlayNone
	case "loading":
		*o = OverlayLoading
	case "error":
		*o = OverlayError
	default:
		return fmt.Errorf("unknown overlay %q", text)
	}
	return nil
}

type Candidate struct {
	ImageRef string `json:"imageRef"`
	// TimestampSeconds is set for frames sampled from an uploaded video.
	TimestampSeconds *int `json:"timestampSeconds,omitempty"`
}

func (c Candidate) Label() string {
	if c.TimestampSeconds == nil {
		return ""
	}
	s := *c.TimestampSeconds
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

type State struct {
	Step           int     `json:"step"`
	Overlay        Overlay `json:"overlay"`
	LoadingMessage string  `json:"loadingMessage,omitempty"`
	Error          string  `json:"error,omitempty"`

	Source *VideoSource `json:"source,omitempty"`

	Titles              []string `json:"titles"`
	Catchphrases        []string `json:"catchphrases"`
	SelectedTitle       string   `json:"selectedTitle"`
	SelectedCatchphrase string   `json:"selectedCatchphrase"`

	Candidates        []Candidate `json:"candidates"`
	SelectedCandidate string      `json:"selectedCandidate"`

	FinalImages []string `json:"finalImages"`
}

func initialState() State {
	return State{Step: StepInput}
}

func (s State) Loading() bool { return s.Overlay == OverlayLoading }

func (s State) Failed() bool { return s.Overlay == OverlayError }

// CanSubmitSelection reports whether one offered title and one offered
// catchphrase are chosen, which is what the advance action requires.
func (s State) CanSubmitSelection(title, catchphrase string) bool {
	if s.Step != StepTitles || s.Overlay != OverlayNone {
		return false
	}
	return title != "" && catchphrase != "" &&
		slices.Contains(s.Titles, title) && slices.Contains(s.Catchphrases, catchphrase)
}

func (s State) CanSubmitImage(ref string) bool {
	if s.Step != StepImages || s.Overlay != OverlayNone || ref == "" {
		return false
	}
	for _, c := range s.Candidates {
		if c.ImageRef == ref {
			return true
		}
	}
	return false
}

func (s State) clone() State {
	out := s
	out.Titles = slices.Clone(s.Titles)
	out.Catchphrases = slices.Clone(s.Catchphrases)
	out.Candidates = slices.Clone(s.Candidates)
	out.FinalImages = slices.Clone(s.FinalImages)
	return out
}
