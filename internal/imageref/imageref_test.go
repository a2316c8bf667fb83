package imageref

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	p, err := Parse("data:image/png;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, Payload{Base64: "AAAA", MimeType: "image/png"}, p)

	p, err = Parse("data:;base64,QUJD")
	require.NoError(t, err)
	assert.Equal(t, DefaultMimeType, p.MimeType)
	assert.Equal(t, "QUJD", p.Base64)

	p, err = Parse("data:image/jpeg;base64,a,b")
	require.NoError(t, err)
	assert.Equal(t, "a,b", p.Base64, "everything after the first comma is payload")

	_, err = Parse("")
	assert.ErrorIs(t, err, ErrEmpty)
	_, err = Parse("data:image/png;base64")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = Parse("https://example.com/a.png")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEncodeParseRoundTrip(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G', 0, 1, 2, 3}
	ref := Encode("image/webp", raw)

	p, err := Parse(ref)
	require.NoError(t, err)
	assert.Equal(t, "image/webp", p.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), p.Base64)
	assert.Equal(t, ref, p.DataURL())

	got, err := p.Bytes()
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestResolveDataURL(t *testing.T) {
	r := NewResolver(nil)
	p, err := r.Resolve(context.Background(), "data:image/png;base64,XYZ")
	require.NoError(t, err)
	assert.Equal(t, Payload{Base64: "XYZ", MimeType: "image/png"}, p)
}

func TestResolveRemote(t *testing.T) {
	body := []byte("not really a jpeg")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/img":
			w.Header().Set("Content-Type", "image/JPEG; charset=binary")
			_, _ = w.Write(body)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := NewResolver(nil)

	p, err := r.Resolve(context.Background(), srv.URL+"/img")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", p.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(body), p.Base64)

	_, err = r.Resolve(context.Background(), srv.URL+"/missing")
	assert.ErrorIs(t, err, ErrFetch)
}

func TestResolveUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewResolver(nil).Resolve(context.Background(), url+"/gone")
	assert.ErrorIs(t, err, ErrFetch)
}

func TestToPNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, img, nil))

	out, err := ToPNG(Encode("image/jpeg", jpg.Bytes()))
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), decoded.Bounds())

	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))
	same, err := ToPNG(Encode("image/png", pngBuf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, pngBuf.Bytes(), same)

	_, err = ToPNG(Encode("image/jpeg", []byte("garbage")))
	assert.Error(t, err)
}
