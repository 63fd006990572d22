package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"memoryland-backend/internal/models"
	"memoryland-backend/internal/repository"
	"memoryland-backend/internal/services"

	"github.com/stretchr/testify/require"
)

type authFixture struct {
	verifier *services.ClaimsVerifier
	resolver *services.IdentityResolver
	users    repository.UserStore
}

func newAuthFixture() authFixture {
	stores := repository.NewMemoryStores()
	return authFixture{
		verifier: services.NewClaimsVerifier("test-secret", "memoryland"),
		resolver: services.NewIdentityResolver(stores.Users),
		users:    stores.Users,
	}
}

func (f authFixture) token(t *testing.T, claims services.Claims) string {
	t.Helper()
	token, err := f.verifier.Sign(claims, time.Hour)
	require.NoError(t, err)
	return token
}

// echoIdentity records the identity the middleware stored
func echoIdentity(seen **models.Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = GetIdentity(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticate(t *testing.T) {
	f := newAuthFixture()
	valid := f.token(t, services.Claims{Email: "ada@example.com", Name: "Ada"})
	nameless := f.token(t, services.Claims{Email: "bob@example.com"})
	foreign, err := services.NewClaimsVerifier("other-secret", "memoryland").Sign(services.Claims{Email: "eve@example.com", Name: "Eve"}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + valid, status: http.StatusUnauthorized},
		{name: "bad signature", header: "Bearer " + foreign, status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer not-a-jwt", status: http.StatusUnauthorized},
		{name: "first login without name", header: "Bearer " + nameless, status: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + valid, status: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *models.Identity
			h := Authenticate(f.verifier, f.resolver)(echoIdentity(&seen))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				require.NotNil(t, seen)
				require.Equal(t, "ada@example.com", seen.Email)
			} else {
				require.Nil(t, seen)
				require.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestAuthenticateProvisionsOnce(t *testing.T) {
	f := newAuthFixture()
	token := f.token(t, services.Claims{Email: "ada@example.com", Name: "Ada"})
	h := Authenticate(f.verifier, f.resolver)

	var ids []int64
	for i := 0; i < 2; i++ {
		var seen *models.Identity
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h(echoIdentity(&seen)).ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		ids = append(ids, seen.UserID)
	}
	require.Equal(t, ids[0], ids[1])
}

func TestOptionalAuthenticate(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	known := &models.User{Email: "ada@example.com", Name: "Ada"}
	require.NoError(t, f.users.Create(ctx, known))

	tests := []struct {
		name     string
		header   string
		status   int
		identity bool
	}{
		{name: "anonymous", header: "", status: http.StatusNoContent},
		{name: "garbage", header: "Bearer broken", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic x", status: http.StatusUnauthorized},
		{name: "no email claim", header: "Bearer " + f.token(t, services.Claims{Name: "Anon"}), status: http.StatusNoContent},
		{name: "unknown user", header: "Bearer " + f.token(t, services.Claims{Email: "eve@example.com", Name: "Eve"}), status: http.StatusNoContent},
		{name: "unknown user without name", header: "Bearer " + f.token(t, services.Claims{Email: "bob@example.com"}), status: http.StatusNoContent},
		{name: "known user", header: "Bearer " + f.token(t, services.Claims{Email: "ada@example.com"}), status: http.StatusNoContent, identity: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *models.Identity
			h := OptionalAuthenticate(f.verifier, f.resolver)(echoIdentity(&seen))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			if tt.identity {
				require.NotNil(t, seen)
				require.Equal(t, known.ID, seen.UserID)
			} else {
				require.Nil(t, seen)
			}
		})
	}

	// viewing never creates users
	for _, email := range []string{"eve@example.com", "bob@example.com"} {
		_, err := f.users.GetByEmail(ctx, email)
		require.ErrorIs(t, err, repository.ErrNotFound, email)
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/displays", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, called)
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Display-Token")
}
