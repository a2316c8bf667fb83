// Package videometa looks up human-readable details of hosted videos.
package videometa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const DefaultOEmbedURL = "https://noembed.com/embed"

var ErrLookup = errors.New("could not retrieve video details; please check the URL")

var youtubeURL = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com|youtu\.?be)/.+$`)

// YouTubePattern is the accepted shape of a YouTube link.
func YouTubePattern() *regexp.Regexp {
	return youtubeURL
}

func IsYouTubeURL(value string) bool {
	return youtubeURL.MatchString(strings.TrimSpace(value))
}

type Options struct {
	Client    *resty.Client
	OEmbedURL string
	Logger    *slog.Logger
}

type Lookup struct {
	client    *resty.Client
	oembedURL string
	logger    *slog.Logger
}

func New(opts Options) *Lookup {
	client := opts.Client
	if client == nil {
		client = resty.New()
	}

	oembedURL := strings.TrimSpace(opts.OEmbedURL)
	if oembedURL == "" {
		oembedURL = DefaultOEmbedURL
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Lookup{client: client, oembedURL: oembedURL, logger: logger}
}

type oembedResponse struct {
	Title string `json:"title"`
	Error string `json:"error"`
}

// Title returns the video title from oEmbed, falling back to the page's
// og:title or <title> when oEmbed has none.
func (l *Lookup) Title(ctx context.Context, videoURL string) (string, error) {
	videoURL = strings.TrimSpace(videoURL)
	if videoURL == "" {
		return "", ErrLookup
	}

	title, err := l.oembedTitle(ctx, videoURL)
	if err == nil && title != "" {
		return title, nil
	}
	if err != nil {
		l.logger.Warn("oembed lookup failed", "url", videoURL, "err", err)
	}

	title, err = l.pageTitle(ctx, videoURL)
	if err != nil {
		l.logger.Warn("page title lookup failed", "url", videoURL, "err", err)
		return "", fmt.Errorf("%w: %w", ErrLookup, err)
	}
	if title == "" {
		return "", ErrLookup
	}
	return title, nil
}

func (l *Lookup) oembedTitle(ctx context.Context, videoURL string) (string, error) {
	resp, err := l.client.R().
		SetContext(ctx).
		SetQueryParam("url", videoURL).
		Get(l.oembedURL)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("oembed %s", resp.Status())
	}

	var decoded oembedResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return "", fmt.Errorf("decode oembed: %w", err)
	}
	if decoded.Error != "" {
		return "", errors.New(decoded.Error)
	}
	return strings.TrimSpace(decoded.Title), nil
}

func (l *Lookup) pageTitle(ctx context.Context, videoURL string) (string, error) {
	pageURL := videoURL
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		pageURL = "https://" + pageURL
	}

	resp, err := l.client.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("page %s", resp.Status())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	if title := strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", "")); title != "" {
		return title, nil
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	title = strings.TrimSpace(strings.TrimSuffix(title, "- YouTube"))
	return title, nil
}
