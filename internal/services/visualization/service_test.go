package visualization

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelassist/internal/api"
	"novelassist/internal/session"
)

func TestViews(t *testing.T) {
	ctx := context.Background()
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Write([]byte(`{"keywords":[]}`))
	}))
	defer srv.Close()

	svc := NewService(api.NewClient(api.Options{BaseURL: srv.URL}, session.NewStore(session.NewMemoryBackend())))

	t.Run("Should fetch every view", func(t *testing.T) {
		calls := []func(context.Context, string) (any, error){
			svc.Keywords, svc.Emotional, svc.Structure, svc.Characters, svc.Scenes, svc.Statistics, svc.All,
		}
		for _, call := range calls {
			_, err := call(ctx, "3")
			require.NoError(t, err)
		}

		expected := make([]string, 0, len(Views))
		for _, v := range Views {
			expected = append(expected, "/novels/visualization/3/"+v)
		}
		assert.Equal(t, expected, paths)
	})

	t.Run("Should pass structure errors through", func(t *testing.T) {
		errSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer errSrv.Close()

		failing := NewService(api.NewClient(api.Options{BaseURL: errSrv.URL}, session.NewStore(session.NewMemoryBackend())))
		_, err := failing.Structure(ctx, "3")
		assert.Equal(t, http.StatusInternalServerError, api.StatusCode(err))
	})

	t.Run("Should reject unknown views and missing ids", func(t *testing.T) {
		before := len(paths)
		_, err := svc.View(ctx, "3", "heatmap")
		assert.Error(t, err)
		_, err = svc.Keywords(ctx, "")
		assert.Error(t, err)
		assert.Len(t, paths, before)
	})
}
