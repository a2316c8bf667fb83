// Package app wires the wizard and its collaborators from configuration.
package app

import (
	"log/slog"
	"net/http"

	"ai-thumbnail-pro/internal/config"
	"ai-thumbnail-pro/internal/frames"
	"ai-thumbnail-pro/internal/gemini"
	"ai-thumbnail-pro/internal/httpclient"
	"ai-thumbnail-pro/internal/imageref"
	"ai-thumbnail-pro/internal/session"
	"ai-thumbnail-pro/internal/thumbnail"
	"ai-thumbnail-pro/internal/videometa"
	"ai-thumbnail-pro/internal/wizard"
)

type Deps struct {
	HTTPClient *http.Client
	Sessions   *session.Store
}

func New(cfg config.Config, logger *slog.Logger) Deps {
	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout(),
	})
	rc := httpclient.NewResty(httpClient)

	gem := gemini.New(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		TextModel:  cfg.GeminiTextModel,
		ImageModel: cfg.GeminiImageModel,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	gen := thumbnail.New(thumbnail.Options{
		Backend:  gem,
		Resolver: imageref.NewResolver(rc),
		Logger:   logger,
	})
	sampler := frames.New(frames.Options{Logger: logger})
	lookup := videometa.New(videometa.Options{
		Client:    rc,
		OEmbedURL: cfg.OEmbedURL,
		Logger:    logger,
	})

	sessions := session.NewStore(session.Options{
		NewWizard: func() *wizard.Machine {
			return wizard.New(wizard.Options{
				Generator:     gen,
				Frames:        sampler,
				Lookup:        lookup,
				MaxVideoBytes: cfg.MaxUploadBytes(),
				Logger:        logger,
			})
		},
		TTL: cfg.SessionTTL(),
	})

	return Deps{HTTPClient: httpClient, Sessions: sessions}
}
