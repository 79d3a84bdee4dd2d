package devserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORS(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		w.Write([]byte(`{"path":"` + r.URL.Path + `"}`))
	}))
	t.Cleanup(backend.Close)

	srv, err := New(Options{Backend: backend.URL})
	require.NoError(t, err)

	t.Run("Should answer preflight requests without reaching the backend", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/novels", nil)
		req.Header.Set("Origin", DefaultOrigin)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
		assert.Equal(t, DefaultOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Origin, X-Requested-With, Content-Type, Accept, Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("Should proxy requests with the CORS headers", func(t *testing.T) {
		// the reverse proxy needs a real connection, a recorder cannot close-notify
		ts := httptest.NewServer(srv.Handler())
		defer ts.Close()

		req, err := http.NewRequest(http.MethodGet, ts.URL+"/novels/3", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer abc")

		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer res.Body.Close()

		body, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.JSONEq(t, `{"path":"/novels/3"}`, string(body))
		assert.Equal(t, DefaultOrigin, res.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("Should use the configured origin", func(t *testing.T) {
		custom, err := New(Options{Backend: backend.URL, Origin: "http://app.local"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		rec := httptest.NewRecorder()
		custom.Handler().ServeHTTP(rec, req)
		assert.Equal(t, "http://app.local", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Should reject a relative backend URL", func(t *testing.T) {
		_, err := New(Options{Backend: "/api"})
		assert.Error(t, err)
	})
}
