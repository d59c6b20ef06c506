package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"taskhive.io/internal/identity"
	"taskhive.io/internal/obs"
	"taskhive.io/internal/token"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// Paths that bypass the authentication gate entirely.
var publicPaths = []string{
	"/v1/auth/signup",
	"/v1/auth/signin",
	"/v1/auth/refresh",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}
var publicPrefixes = []string{
	"/v1/auth/password_reset",
}

// withAuth converts a raw request into an authenticated-identity context or
// rejects it. Expired credentials are reported distinctly so clients can
// attempt a refresh instead of forcing re-login.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		raw, err := extractToken(r)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := a.codec.VerifyAccess(raw)
		if err != nil {
			switch {
			case errors.Is(err, token.ErrTokenExpired):
				obs.TokenFailure("expired")
				writeError(w, r, http.StatusUnauthorized, "token expired")
			default:
				obs.TokenFailure("invalid")
				writeError(w, r, http.StatusUnauthorized, "invalid token")
			}
			return
		}

		// Active gate first: an inactive account never sees an
		// email-verification message.
		if a.cfg.RequireActiveAccount && !claims.Active {
			writeError(w, r, http.StatusForbidden, "account disabled")
			return
		}
		if a.cfg.RequireVerifiedEmail && !claims.EmailVerified {
			writeError(w, r, http.StatusForbidden, "email not verified")
			return
		}

		ctx := identity.ContextWithClaims(r.Context(), claims.Claims)
		ctx = identity.ContextWithToken(ctx, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withOptionalAuth attaches the identity when a valid credential is present
// and never rejects the request. Used for public-but-personalizable
// endpoints.
func (a *API) withOptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := extractToken(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := a.codec.VerifyAccess(raw)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := identity.ContextWithClaims(r.Context(), claims.Claims)
		ctx = identity.ContextWithToken(ctx, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFromRequest(r *http.Request) (identity.Claims, bool) {
	return identity.ClaimsFromContext(r.Context())
}

// extractToken prefers the Authorization header over the same-named cookie.
func extractToken(r *http.Request) (string, error) {
	if header := strings.TrimSpace(r.Header.Get(authHeader)); header != "" {
		return extractBearerToken(header)
	}
	if cookie, err := r.Cookie(authHeader); err == nil {
		value := strings.TrimSpace(cookie.Value)
		if strings.HasPrefix(strings.ToLower(value), strings.ToLower(bearer)) {
			value = strings.TrimSpace(value[len(bearer):])
		}
		if value != "" {
			return value, nil
		}
	}
	return "", errors.New("missing bearer token")
}

func extractBearerToken(header string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	tok := strings.TrimSpace(header[len(bearer):])
	if tok == "" {
		return "", errors.New("missing bearer token")
	}
	return tok, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
