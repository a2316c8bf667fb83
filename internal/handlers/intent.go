package handlers

import (
	"strings"

	"ai-thumbnail-pro/internal/videometa"
)

type inputKind int

const (
	inputNone inputKind = iota
	inputYouTube
	inputLink
	inputText
)

func classifyText(text string) inputKind {
	t := strings.TrimSpace(text)
	if t == "" {
		return inputNone
	}
	if videometa.IsYouTubeURL(t) {
		return inputYouTube
	}

	lower := strings.ToLower(t)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "www.") || strings.Contains(lower, "youtube") || strings.Contains(lower, "youtu.be") {
		return inputLink
	}
	return inputText
}

func isVideoMime(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "video/")
}
