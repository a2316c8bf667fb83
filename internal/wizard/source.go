package wizard

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"ai-thumbnail-pro/internal/videometa"
)

type SourceKind string

const (
	SourceFile    SourceKind = "file"
	SourceYouTube SourceKind = "youtube"
)

const (
	msgVideoMissing       = "動画ファイルを選択してください。"
	msgDescriptionMissing = "動画の簡単な説明を入力してください。"
	msgInvalidURL         = "有効なYouTubeのURLを入力してください。"
	msgVideoTooLarge      = "ファイルサイズは上限を超えることはできません。"
)

var ErrUnknownSource = errors.New("unknown video source kind")

// VideoSource is either an uploaded file with a description or a YouTube
// link. It is not modified after submission.
type VideoSource struct {
	Kind        SourceKind `json:"kind"`
	Content     []byte     `json:"-"`
	Filename    string     `json:"filename,omitempty"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url,omitempty"`
}

func FileSource(content []byte, filename, description string) VideoSource {
	return VideoSource{Kind: SourceFile, Content: content, Filename: filename, Description: description}
}

func YouTubeSource(url string) VideoSource {
	return VideoSource{Kind: SourceYouTube, URL: strings.TrimSpace(url)}
}

func (s VideoSource) Validate() error {
	switch s.Kind {
	case SourceFile:
		return validation.Errors{
			"video":       validation.Validate(s.Content, validation.Required.Error(msgVideoMissing)),
			"description": validation.Validate(strings.TrimSpace(s.Description), validation.Required.Error(msgDescriptionMissing)),
		}.Filter()
	case SourceYouTube:
		return validation.Errors{
			"url": validation.Validate(strings.TrimSpace(s.URL),
				validation.Required.Error(msgInvalidURL),
				validation.Match(videometa.YouTubePattern()).Error(msgInvalidURL),
			),
		}.Filter()
	default:
		return ErrUnknownSource
	}
}

func validateSize(s VideoSource, maxBytes int64) error {
	if s.Kind != SourceFile {
		return nil
	}
	return ValidateVideoSize(int64(len(s.Content)), maxBytes)
}

// ValidateVideoSize rejects videos above maxBytes. A non-positive limit
// accepts any size.
func ValidateVideoSize(size, maxBytes int64) error {
	if maxBytes <= 0 {
		return nil
	}
	return validation.Errors{
		"video": validation.Validate(size, validation.Max(maxBytes).Error(msgVideoTooLarge)),
	}.Filter()
}

// ValidationMessage joins the user-facing messages of a validation failure,
// ordered by field name.
func ValidationMessage(err error) string {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	keys := make([]string, 0, len(verrs))
	for k, v := range verrs {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, verrs[k].Error())
	}
	return strings.Join(msgs, "\n")
}

// IsValidation reports whether err is an input rejection rather than a
// collaborator failure.
func IsValidation(err error) bool {
	var verrs validation.Errors
	return errors.As(err, &verrs) || errors.Is(err, ErrUnknownSource)
}
