package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"memoryland-backend/internal/models"
	"memoryland-backend/internal/services"

	"github.com/rs/zerolog/log"
)

type contextKey string

const identityKey contextKey = "identity"

// Authenticate requires a Bearer session token. The verified claims are
// resolved to a user, provisioning it on first sight, and the identity is
// stored in the request context.
func Authenticate(verifier *services.ClaimsVerifier, resolver *services.IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}
			claims, ok := bearerClaims(w, authHeader, verifier)
			if !ok {
				return
			}

			user, err := resolver.ResolveOrProvision(r.Context(), claims)
			if err != nil {
				if errors.Is(err, services.ErrClaimMissing) {
					respondError(w, err.Error(), http.StatusUnauthorized)
					return
				}
				log.Error().Err(err).Str("email", claims.Email).Msg("Failed to resolve identity")
				respondError(w, "internal server error", http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), user.Identity())))
		})
	}
}

// OptionalAuthenticate serves routes that also accept display tokens. The
// session only resolves to an existing user: claims without an email or for
// an unknown user leave the request anonymous, and nothing is provisioned.
// A present but malformed or unverifiable header is still rejected.
func OptionalAuthenticate(verifier *services.ClaimsVerifier, resolver *services.IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, ok := bearerClaims(w, authHeader, verifier)
			if !ok {
				return
			}

			user, err := resolver.Resolve(r.Context(), claims)
			if err != nil {
				log.Error().Err(err).Str("email", claims.Email).Msg("Failed to resolve identity")
				respondError(w, "internal server error", http.StatusInternalServerError)
				return
			}
			if user == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), user.Identity())))
		})
	}
}

func bearerClaims(w http.ResponseWriter, authHeader string, verifier *services.ClaimsVerifier) (services.Claims, bool) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		respondError(w, "Invalid authorization header format", http.StatusUnauthorized)
		return services.Claims{}, false
	}

	claims, err := verifier.Verify(parts[1])
	if err != nil {
		respondError(w, "Invalid token", http.StatusUnauthorized)
		return services.Claims{}, false
	}
	return claims, true
}

// WithIdentity returns a context carrying identity
func WithIdentity(ctx context.Context, identity models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// GetIdentity extracts the caller's identity from context, or nil for an
// anonymous request.
func GetIdentity(ctx context.Context) *models.Identity {
	identity, ok := ctx.Value(identityKey).(models.Identity)
	if !ok {
		return nil
	}
	return &identity
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
