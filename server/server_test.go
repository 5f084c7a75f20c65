package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/imrenagi/go-drive-relay/tus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPHandler(t *testing.T) {
	t.Run("health and metrics are always served", func(t *testing.T) {
		s := New(Opts{})
		handler, err := s.newHTTPHandler()
		require.NoError(t, err)
		srv := httptest.NewServer(handler)
		defer srv.Close()

		resp, err := srv.Client().Get(srv.URL + "/healthz")
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ok", string(body))

		resp, err = srv.Client().Get(srv.URL + "/metrics")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/files", nil)
		resp, err = srv.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.NotEqual(t, http.StatusNoContent, resp.StatusCode, "the tus receiver is off by default")
	})

	t.Run("the tus receiver is mounted when a directory is configured", func(t *testing.T) {
		s := New(Opts{TusDir: filepath.Join(t.TempDir(), "uploads"), TusMaxSize: 1024})
		handler, err := s.newHTTPHandler()
		require.NoError(t, err)
		srv := httptest.NewServer(handler)
		defer srv.Close()

		req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/files", nil)
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "1024", resp.Header.Get(tus.TusMaxSizeHeader))
	})
}

func TestLogInterceptorKeepsStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	LogInterceptor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestInitializeLogger(t *testing.T) {
	assert.NoError(t, InitializeLogger("debug", false))
	assert.Error(t, InitializeLogger("loud", false))
}
