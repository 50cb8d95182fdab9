package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Parley/internal/api/config"
	"Parley/internal/pkg/cache"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/memstore"
	"Parley/internal/pkg/security"
)

func newProvider(t *testing.T, store cache.Store, fed *FederatedClient) *TokenProvider {
	t.Helper()
	return NewTokenProvider(
		memstore.NewCredentialRepo(memstore.New()),
		security.NewTokenIssuer("test-secret", "Parley", time.Hour),
		store,
		fed,
	)
}

func TestPasswordSignInAndRestore(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	creds := memstore.NewCredentialRepo(memstore.New())
	issuer := security.NewTokenIssuer("test-secret", "Parley", time.Hour)
	p := NewTokenProvider(creds, issuer, store, nil)

	cred, err := p.Register(ctx, "Alice@Example.com", "hunter22", "Alice")
	require.NoError(t, err)

	var seen []*Identity
	sub := p.OnIdentityChanged(func(id *Identity) { seen = append(seen, id) })
	defer sub.Unsubscribe()
	require.Len(t, seen, 1)
	assert.Nil(t, seen[0])

	_, err = p.SignInWithPassword(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = p.SignInWithPassword(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	id, err := p.SignInWithPassword(ctx, "alice@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, cred.UserID, id.UID)
	require.Len(t, seen, 2)
	assert.Equal(t, "Alice", seen[1].DisplayName)

	_, ok, err := store.Get(ctx, consts.SessionTokenKey)
	require.NoError(t, err)
	assert.True(t, ok)

	restarted := NewTokenProvider(creds, issuer, store, nil)
	require.NoError(t, restarted.Restore(ctx))
	require.NotNil(t, restarted.Current())
	assert.Equal(t, cred.UserID, restarted.Current().UID)

	require.NoError(t, restarted.SignOut(ctx))
	assert.Nil(t, restarted.Current())
	_, ok, _ = store.Get(ctx, consts.SessionTokenKey)
	assert.False(t, ok)
}

func TestRestoreDiscardsInvalidToken(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	require.NoError(t, store.Set(ctx, consts.SessionTokenKey, "garbage"))

	p := newProvider(t, store, nil)
	require.NoError(t, p.Restore(ctx))
	assert.Nil(t, p.Current())
	_, ok, _ := store.Get(ctx, consts.SessionTokenKey)
	assert.False(t, ok)
}

func TestPopupWithoutFederatedConfig(t *testing.T) {
	p := newProvider(t, cache.NewMemoryStore(), nil)
	_, err := p.SignInWithPopup(context.Background())
	assert.ErrorIs(t, err, ErrFederatedDisabled)
}

func TestPopupExchangesIDToken(t *testing.T) {
	const signingKey = "idp-key"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("client_secret") != "shh" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_client"})
			return
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":   "google-123",
			"email": "bob@example.com",
			"name":  "Bob",
			"iss":   "https://idp.test",
			"exp":   time.Now().Add(time.Minute).Unix(),
		})
		signed, err := token.SignedString([]byte(signingKey))
		require.NoError(t, err)
		_ = json.NewEncoder(w).Encode(map[string]string{"id_token": signed, "token_type": "Bearer"})
	}))
	defer srv.Close()

	cfg := config.FederatedConfig{
		Enabled:      true,
		TokenURL:     srv.URL,
		ClientID:     "parley",
		ClientSecret: "shh",
		Issuer:       "https://idp.test",
		SigningKey:   signingKey,
	}
	p := newProvider(t, cache.NewMemoryStore(), NewFederatedClient(cfg))

	id, err := p.SignInWithPopup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "google-123", id.UID)
	assert.Equal(t, "Bob", id.DisplayName)

	cfg.ClientSecret = "wrong"
	bad := newProvider(t, cache.NewMemoryStore(), NewFederatedClient(cfg))
	_, err = bad.SignInWithPopup(context.Background())
	assert.ErrorContains(t, err, "invalid_client")
}
