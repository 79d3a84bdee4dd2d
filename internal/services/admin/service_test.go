package admin

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

type recorded struct {
	method string
	uri    string
}

func newTestService(t *testing.T) (*Service, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, recorded{method: r.Method, uri: r.URL.RequestURI()})
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	client := api.NewClient(api.Options{BaseURL: srv.URL}, session.NewStore(session.NewMemoryBackend()))
	return NewService(client), &calls
}

func TestAdminEndpoints(t *testing.T) {
	ctx := context.Background()

	t.Run("Should call the admin endpoints", func(t *testing.T) {
		svc, calls := newTestService(t)

		_, err := svc.Dashboard(ctx)
		require.NoError(t, err)
		_, err = svc.Users(ctx)
		require.NoError(t, err)
		_, err = svc.User(ctx, "4")
		require.NoError(t, err)
		_, err = svc.UpdateUserStatus(ctx, "4", false)
		require.NoError(t, err)
		require.NoError(t, svc.DeleteUser(ctx, "4"))
		_, err = svc.Novels(ctx)
		require.NoError(t, err)
		require.NoError(t, svc.DeleteNovel(ctx, "9"))
		_, err = svc.Logs(ctx, 2, 0)
		require.NoError(t, err)
		_, err = svc.ClearCache(ctx)
		require.NoError(t, err)

		assert.Equal(t, []recorded{
			{http.MethodGet, "/admin/dashboard"},
			{http.MethodGet, "/admin/users"},
			{http.MethodGet, "/admin/users/4"},
			{http.MethodPut, "/admin/users/4/status?enabled=false"},
			{http.MethodDelete, "/admin/users/4"},
			{http.MethodGet, "/admin/novels"},
			{http.MethodDelete, "/admin/novels/9"},
			{http.MethodGet, "/admin/logs?page=2&size=10"},
			{http.MethodPost, "/admin/cache/clear"},
		}, *calls)
	})

	t.Run("Should reject missing identifiers before sending", func(t *testing.T) {
		svc, calls := newTestService(t)

		_, err := svc.User(ctx, "")
		assert.Error(t, err)
		assert.Error(t, svc.DeleteUser(ctx, ""))
		assert.Error(t, svc.DeleteNovel(ctx, ""))
		assert.Empty(t, *calls)
	})
}
