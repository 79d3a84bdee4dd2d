package session

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"novelassist/internal/crypto"
	"novelassist/internal/database"
)

func TestSessionJSON(t *testing.T) {
	t.Run("Should accept token as an alias of accessToken", func(t *testing.T) {
		var s Session
		require.NoError(t, json.Unmarshal([]byte(`{"token":"t-1","username":"ann"}`), &s))
		assert.Equal(t, "t-1", s.Token())
		assert.Equal(t, "ann", s.Username)
	})

	t.Run("Should prefer accessToken over token", func(t *testing.T) {
		var s Session
		require.NoError(t, json.Unmarshal([]byte(`{"accessToken":"a","token":"b"}`), &s))
		assert.Equal(t, "a", s.Token())
	})

	t.Run("Should wrap a single role string in a list", func(t *testing.T) {
		var s Session
		require.NoError(t, json.Unmarshal([]byte(`{"accessToken":"a","roles":"ROLE_ADMIN"}`), &s))
		assert.Equal(t, []string{"ROLE_ADMIN"}, s.Roles)
		assert.True(t, s.IsAdmin())
	})

	t.Run("Should keep unknown fields across a round trip", func(t *testing.T) {
		var s Session
		require.NoError(t, json.Unmarshal([]byte(`{"accessToken":"a","id":7,"type":"Bearer"}`), &s))

		data, err := json.Marshal(s)
		require.NoError(t, err)

		var out map[string]any
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, "a", out["accessToken"])
		assert.Equal(t, float64(7), out["id"])
		assert.Equal(t, "Bearer", out["type"])
		assert.Equal(t, []any{}, out["roles"])
	})

	t.Run("Should report no admin role for a nil session", func(t *testing.T) {
		var s *Session
		assert.False(t, s.IsAdmin())
		assert.Equal(t, "", s.Token())
	})
}

func TestTokenExpiry(t *testing.T) {
	t.Run("Should read the exp claim of a JWT", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "ann",
			"exp": exp.Unix(),
		}).SignedString([]byte("secret"))
		require.NoError(t, err)

		s := &Session{AccessToken: token}
		got, ok := s.TokenExpiry()
		require.True(t, ok)
		assert.True(t, exp.Equal(got))
	})

	t.Run("Should report false for opaque tokens", func(t *testing.T) {
		s := &Session{AccessToken: "opaque"}
		_, ok := s.TokenExpiry()
		assert.False(t, ok)
	})
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Should return ErrNoSession when nothing is stored", func(t *testing.T) {
		st := NewStore(NewMemoryBackend())
		_, err := st.Load(ctx)
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("Should return a ParseError for a malformed record", func(t *testing.T) {
		backend := NewMemoryBackend()
		require.NoError(t, backend.Set(ctx, "{not json"))

		_, err := NewStore(backend).Load(ctx)
		var parseErr *ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.Equal(t, "{not json", parseErr.Raw)
	})

	t.Run("Should treat a stored null as no session", func(t *testing.T) {
		backend := NewMemoryBackend()
		require.NoError(t, backend.Set(ctx, "null"))

		_, err := NewStore(backend).Load(ctx)
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("Should save, load and clear", func(t *testing.T) {
		st := NewStore(NewMemoryBackend())
		require.NoError(t, st.Save(ctx, &Session{AccessToken: "abc", Roles: []string{"ROLE_USER"}}))

		s, err := st.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "abc", s.Token())

		require.NoError(t, st.Clear(ctx))
		require.NoError(t, st.Clear(ctx))
		_, err = st.Load(ctx)
		assert.ErrorIs(t, err, ErrNoSession)
	})
}

func exerciseBackend(t *testing.T, backend Backend) {
	t.Helper()
	ctx := context.Background()
	st := NewStore(backend)

	_, err := st.Load(ctx)
	require.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, st.Save(ctx, &Session{AccessToken: "first"}))
	require.NoError(t, st.Save(ctx, &Session{AccessToken: "second", Username: "ann"}))

	s, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", s.Token())
	assert.Equal(t, "ann", s.Username)

	require.NoError(t, st.Clear(ctx))
	require.NoError(t, st.Clear(ctx))
	_, err = st.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestKeyringBackend(t *testing.T) {
	t.Run("Should persist the session in the keychain", func(t *testing.T) {
		keyring.MockInit()
		exerciseBackend(t, NewKeyringBackend())
	})
}

func TestRedisBackend(t *testing.T) {
	t.Run("Should persist the session in redis with a TTL", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()

		backend := NewRedisBackend(client, time.Hour)
		exerciseBackend(t, backend)

		require.NoError(t, backend.Set(context.Background(), `{"accessToken":"x"}`))
		assert.Equal(t, time.Hour, mr.TTL("novelassist:session:user"))
	})
}

func TestDatabaseBackend(t *testing.T) {
	db, err := database.Open("sqlite://"+filepath.Join(t.TempDir(), "session.db"), false, nil)
	require.NoError(t, err)
	defer database.Close(db)

	cipher, err := crypto.NewCipher(crypto.KeyFromString("test-key"))
	require.NoError(t, err)

	t.Run("Should persist the session encrypted", func(t *testing.T) {
		exerciseBackend(t, NewDatabaseBackend(db, cipher))
	})

	t.Run("Should report a ParseError when the row cannot be decrypted", func(t *testing.T) {
		backend := NewDatabaseBackend(db, cipher)
		require.NoError(t, backend.Set(context.Background(), `{"accessToken":"x"}`))

		other, err := crypto.NewCipher(crypto.KeyFromString("other-key"))
		require.NoError(t, err)

		_, err = NewStore(NewDatabaseBackend(db, other)).Load(context.Background())
		var parseErr *ParseError
		assert.True(t, errors.As(err, &parseErr))
	})
}
