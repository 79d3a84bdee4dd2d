package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelassist/internal/api"
	"novelassist/internal/session"
)

func TestUserEndpoints(t *testing.T) {
	ctx := context.Background()
	var paths []string
	var lastBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		lastBody = nil
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			_ = json.NewDecoder(r.Body).Decode(&lastBody)
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	svc := NewService(api.NewClient(api.Options{BaseURL: srv.URL}, session.NewStore(session.NewMemoryBackend())))

	t.Run("Should call the profile endpoints", func(t *testing.T) {
		_, err := svc.Me(ctx)
		require.NoError(t, err)
		_, err = svc.UpdateProfile(ctx, ProfileUpdate{Nickname: "annie"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"nickname": "annie"}, lastBody)

		_, err = svc.ChangePassword(ctx, "old", "new")
		require.NoError(t, err)
		assert.Equal(t, "new", lastBody["newPassword"])

		_, err = svc.Stats(ctx)
		require.NoError(t, err)
		_, err = svc.Novels(ctx)
		require.NoError(t, err)
		_, err = svc.UploadAvatar(ctx, "me.png", strings.NewReader("png"))
		require.NoError(t, err)
		_, err = svc.DeleteAccount(ctx, "secret")
		require.NoError(t, err)

		assert.Equal(t, []string{
			"GET /user/me",
			"PUT /user/profile",
			"POST /user/change-password",
			"GET /user/stats",
			"GET /user/novels",
			"POST /user/avatar",
			"POST /user/delete-account",
		}, paths)
	})

	t.Run("Should validate before sending", func(t *testing.T) {
		before := len(paths)
		var validation *api.ValidationError

		_, err := svc.ChangePassword(ctx, "", "new")
		assert.True(t, errors.As(err, &validation))
		_, err = svc.DeleteAccount(ctx, "")
		assert.True(t, errors.As(err, &validation))
		_, err = svc.UploadAvatar(ctx, "x.png", nil)
		assert.True(t, errors.As(err, &validation))

		assert.Len(t, paths, before)
	})
}
