// Package thumbnail generates title/catchphrase suggestions, background
// candidates and finished thumbnails on top of the Gemini client.
package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"ai-thumbnail-pro/internal/gemini"
	"ai-thumbnail-pro/internal/imageref"
)

// BatchSize is the number of suggestions and images produced per call.
const BatchSize = 3

var (
	ErrSuggest     = errors.New("failed to generate titles and catchphrases")
	ErrBackgrounds = errors.New("failed to generate image candidates")
	ErrCompose     = errors.New("failed to create final thumbnails")
	ErrNoImageData = errors.New("no image data in response")
	ErrShape       = errors.New("response does not match the expected shape")
)

type Backend interface {
	GenerateJSON(ctx context.Context, req gemini.JSONRequest, out any) error
	GenerateImage(ctx context.Context, req gemini.ImageRequest) (gemini.Response, error)
}

type ImageResolver interface {
	Resolve(ctx context.Context, ref string) (imageref.Payload, error)
}

type Suggestions struct {
	Titles       []string `json:"titles"`
	Catchphrases []string `json:"catchphrases"`
}

type Options struct {
	Backend  Backend
	Resolver ImageResolver
	Logger   *slog.Logger
}

type Client struct {
	backend  Backend
	resolver ImageResolver
	logger   *slog.Logger
}

func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	resolver := opts.Resolver
	if resolver == nil {
		resolver = imageref.NewResolver(nil)
	}

	return &Client{
		backend:  opts.Backend,
		resolver: resolver,
		logger:   logger,
	}
}

// Suggest asks for BatchSize titles and catchphrases for the given context.
func (c *Client) Suggest(ctx context.Context, contextText string) (Suggestions, error) {
	var raw struct {
		Titles       *[]string `json:"titles"`
		Catchphrases *[]string `json:"catchphrases"`
	}

	err := c.backend.GenerateJSON(ctx, gemini.JSONRequest{
		System: systemInstruction,
		Prompt: suggestionPrompt(contextText),
		Schema: suggestionSchema,
	}, &raw)
	if err != nil {
		c.logger.Error("suggestion request failed", "err", err)
		return Suggestions{}, fmt.Errorf("%w: %w", ErrSuggest, err)
	}
	if raw.Titles == nil || raw.Catchphrases == nil {
		return Suggestions{}, fmt.Errorf("%w: %w", ErrSuggest, ErrShape)
	}

	return Suggestions{
		Titles:       firstN(*raw.Titles, BatchSize),
		Catchphrases: firstN(*raw.Catchphrases, BatchSize),
	}, nil
}

// Backgrounds generates BatchSize background images for theme in parallel.
// The first failure cancels the rest and nothing is returned.
func (c *Client) Backgrounds(ctx context.Context, theme string) ([]string, error) {
	reqs := make([]gemini.ImageRequest, BatchSize)
	for i := range reqs {
		reqs[i] = gemini.ImageRequest{
			System:      systemInstruction,
			Prompt:      backgroundPrompt(theme),
			AspectRatio: AspectRatio,
		}
	}

	images, err := c.generateAll(ctx, reqs)
	if err != nil {
		c.logger.Error("background generation failed", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrBackgrounds, err)
	}
	return images, nil
}

// Compose renders one finished thumbnail per variant on top of baseRef.
func (c *Client) Compose(ctx context.Context, baseRef, title, catchphrase string) ([]string, error) {
	base, err := c.resolver.Resolve(ctx, baseRef)
	if err != nil {
		c.logger.Error("base image resolve failed", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrCompose, err)
	}

	reqs := make([]gemini.ImageRequest, 0, len(variants))
	for _, v := range variants {
		reqs = append(reqs, gemini.ImageRequest{
			System:      systemInstruction,
			Prompt:      compositionPrompt(v, title, catchphrase),
			Base:        &gemini.ImageInput{DataBase64: base.Base64, MimeType: base.MimeType},
			AspectRatio: AspectRatio,
		})
	}

	images, err := c.generateAll(ctx, reqs)
	if err != nil {
		c.logger.Error("thumbnail composition failed", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrCompose, err)
	}
	return images, nil
}

func (c *Client) generateAll(ctx context.Context, reqs []gemini.ImageRequest) ([]string, error) {
	out := make([]string, len(reqs))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		eg.Go(func() error {
			resp, err := c.backend.GenerateImage(egCtx, req)
			if err != nil {
				return err
			}
			if len(resp.Images) == 0 {
				return ErrNoImageData
			}
			out[i] = resp.Images[0]
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func firstN(list []string, n int) []string {
	if len(list) > n {
		list = list[:n]
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}
