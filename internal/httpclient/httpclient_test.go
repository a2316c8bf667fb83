package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	assert.Equal(t, 180*time.Second, New(Options{}).Timeout)
	assert.Equal(t, 5*time.Second, New(Options{Timeout: 5 * time.Second}).Timeout)
}

func TestNewRestySetsUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.UserAgent()))
	}))
	defer srv.Close()

	resp, err := NewResty(nil).R().Get(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, userAgent, resp.String())
}
