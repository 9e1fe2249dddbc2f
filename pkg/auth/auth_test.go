package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remotia/remotia/pkg/observability"
)

func signedToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestStoreGetSetClear(t *testing.T) {
	store := NewStore(Tokens{Access: "a1", Refresh: "r1"})
	assert.Equal(t, Tokens{Access: "a1", Refresh: "r1"}, store.Get())

	// An access-only rotation keeps the refresh token.
	store.Set(Tokens{Access: "a2"})
	assert.Equal(t, Tokens{Access: "a2", Refresh: "r1"}, store.Get())

	store.Set(Tokens{Access: "a3", Refresh: "r2"})
	assert.Equal(t, Tokens{Access: "a3", Refresh: "r2"}, store.Get())

	store.Clear()
	assert.Equal(t, Tokens{}, store.Get())
}

func TestStoreIdentityFromJWT(t *testing.T) {
	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	store := NewStore(Tokens{Access: signedToken(t, "user-42", expires)})

	id := store.Identity()
	require.NotNil(t, id)
	assert.Equal(t, "user-42", id.UserID)
	assert.WithinDuration(t, expires, id.ExpiresAt, time.Second)
}

func TestStoreIdentityOpaqueToken(t *testing.T) {
	store := NewStore(Tokens{Access: "not-a-jwt"})
	assert.Nil(t, store.Identity())

	empty := NewStore(Tokens{})
	assert.Nil(t, empty.Identity())
}

func TestAccessExpired(t *testing.T) {
	now := time.Now()

	live := NewStore(Tokens{Access: signedToken(t, "u", now.Add(time.Hour))})
	assert.False(t, live.AccessExpired(now))

	stale := NewStore(Tokens{Access: signedToken(t, "u", now.Add(-time.Minute))})
	assert.True(t, stale.AccessExpired(now))

	// Opaque tokens never look expired client-side.
	opaque := NewStore(Tokens{Access: "opaque"})
	assert.False(t, opaque.AccessExpired(now))
}

func newTestRefresher(t *testing.T, store *Store, handler http.Handler) *Refresher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	logger := observability.NewLogger("auth-test", slog.LevelError)
	return NewRefresher(server.URL, store, logger)
}

func TestRefreshUpdatesStore(t *testing.T) {
	store := NewStore(Tokens{Access: "old", Refresh: "r1"})
	refresher := newTestRefresher(t, store, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "r1", r.Header.Get(RefreshTokenHeader))
		w.Write([]byte(`{"access_token":"new-access","refresh_token":"r2"}`))
	}))

	access, err := refresher.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-access", access)
	assert.Equal(t, Tokens{Access: "new-access", Refresh: "r2"}, store.Get())
}

func TestRefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	store := NewStore(Tokens{Refresh: "r1"})
	refresher := newTestRefresher(t, store, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"new-access"}`))
	}))

	_, err := refresher.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Tokens{Access: "new-access", Refresh: "r1"}, store.Get())
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	store := NewStore(Tokens{})
	refresher := newTestRefresher(t, store, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))

	_, err := refresher.Refresh(context.Background())
	require.ErrorIs(t, err, ErrNoRefreshToken)
}

func TestRefreshServerErrors(t *testing.T) {
	store := NewStore(Tokens{Refresh: "r1"})

	rejecting := newTestRefresher(t, store, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	_, err := rejecting.Refresh(context.Background())
	require.Error(t, err)
	// A failed refresh leaves the stored tokens untouched.
	assert.Equal(t, "r1", store.Get().Refresh)

	empty := newTestRefresher(t, store, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	_, err = empty.Refresh(context.Background())
	require.Error(t, err)
}

func TestAccessTokenPrefersStoredUnexpired(t *testing.T) {
	store := NewStore(Tokens{
		Access:  signedToken(t, "u", time.Now().Add(time.Hour)),
		Refresh: "r1",
	})
	refresher := newTestRefresher(t, store, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no refresh expected for a live token")
	}))

	access, err := refresher.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.Get().Access, access)
}

func TestAccessTokenRefreshesExpired(t *testing.T) {
	store := NewStore(Tokens{
		Access:  signedToken(t, "u", time.Now().Add(-time.Minute)),
		Refresh: "r1",
	})
	refresher := newTestRefresher(t, store, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"fresh"}`))
	}))

	access, err := refresher.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", access)
}
