// Package imageref converts image references (inline data URLs or remote
// URLs) into base64 payloads for the generation service, and back.
package imageref

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/go-resty/resty/v2"
)

const DefaultMimeType = "image/png"

var (
	ErrFetch   = errors.New("fetch image")
	ErrEmpty   = errors.New("empty image reference")
	ErrInvalid = errors.New("invalid data url")
)

type Payload struct {
	Base64   string
	MimeType string
}

func (p Payload) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", p.MimeType, p.Base64)
}

func (p Payload) Bytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(p.Base64)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return data, nil
}

// Encode builds a data URL for raw image bytes.
func Encode(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = DefaultMimeType
	}
	return Payload{Base64: base64.StdEncoding.EncodeToString(data), MimeType: mimeType}.DataURL()
}

func IsDataURL(ref string) bool {
	return strings.HasPrefix(strings.TrimSpace(ref), "data:")
}

// Parse splits a data URL at its first comma. The payload is returned as is;
// the MIME type is the header's media type or DefaultMimeType.
func Parse(ref string) (Payload, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Payload{}, ErrEmpty
	}
	if !IsDataURL(ref) {
		return Payload{}, ErrInvalid
	}

	header, data, ok := strings.Cut(ref, ",")
	if !ok {
		return Payload{}, ErrInvalid
	}

	mimeType := strings.TrimPrefix(header, "data:")
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = DefaultMimeType
	}

	return Payload{Base64: data, MimeType: mimeType}, nil
}

type Resolver struct {
	client *resty.Client
}

func NewResolver(client *resty.Client) *Resolver {
	if client == nil {
		client = resty.New()
	}
	return &Resolver{client: client}
}

// Resolve returns the payload of a data URL directly and downloads anything
// else. Download failures wrap ErrFetch.
func (r *Resolver) Resolve(ctx context.Context, ref string) (Payload, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Payload{}, ErrEmpty
	}
	if IsDataURL(ref) {
		return Parse(ref)
	}

	resp, err := r.client.R().SetContext(ctx).Get(ref)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if resp.IsError() {
		return Payload{}, fmt.Errorf("%w: %s", ErrFetch, resp.Status())
	}

	body := resp.Body()
	mimeType := cleanMimeType(resp.Header().Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = cleanMimeType(http.DetectContentType(body))
	}

	return Payload{
		Base64:   base64.StdEncoding.EncodeToString(body),
		MimeType: mimeType,
	}, nil
}

// ToPNG decodes a data URL and re-encodes the image as PNG.
func ToPNG(ref string) ([]byte, error) {
	p, err := Parse(ref)
	if err != nil {
		return nil, err
	}
	raw, err := p.Bytes()
	if err != nil {
		return nil, err
	}
	if p.MimeType == "image/png" {
		return raw, nil
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", p.MimeType, err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func cleanMimeType(value string) string {
	value = strings.TrimSpace(value)
	if i := strings.IndexByte(value, ';'); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	return strings.ToLower(value)
}
