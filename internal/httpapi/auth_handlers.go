package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"taskhive.io/internal/audit"
	"taskhive.io/internal/identity"
	"taskhive.io/internal/obs"
	"taskhive.io/internal/session"
	"taskhive.io/internal/token"
)

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if username == "" || email == "" || !strings.Contains(email, "@") {
		writeError(w, r, http.StatusBadRequest, "username and valid email are required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, r, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	hash, err := identity.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "signup failed")
		return
	}
	user := &identity.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		RoleID:       identity.RoleMember.ID,
		Active:       true,
	}
	if err := a.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, identity.ErrAlreadyExists) {
			writeError(w, r, http.StatusConflict, "account already exists")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "signup failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.signup", map[string]any{
		"user_id": user.ID,
		"email":   email,
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
	})
}

func (a *API) handleSignin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req signinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	user, err := a.users.FindByEmail(r.Context(), email)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !user.Active {
		writeError(w, r, http.StatusForbidden, "account disabled")
		return
	}
	if err := identity.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	pair, err := a.issuePair(r, user, 1)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "signin failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.signin", map[string]any{
		"user_id": user.ID,
	})
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	claims, err := a.codec.VerifyRefresh(req.RefreshToken)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			obs.TokenFailure("expired")
			writeError(w, r, http.StatusUnauthorized, "token expired")
			return
		}
		obs.TokenFailure("invalid")
		writeError(w, r, http.StatusUnauthorized, "invalid token")
		return
	}

	// Fresh snapshot: a token minted now must reflect the live account
	// state, so a deactivated user cannot extend their session.
	user, err := a.users.Find(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid token")
		return
	}
	if !user.Active {
		writeError(w, r, http.StatusForbidden, "account disabled")
		return
	}

	newRefresh, newClaims, err := a.codec.IssueRefresh(user.ID, claims.Rotation+1)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "refresh failed")
		return
	}
	next := &session.Record{
		UserID:    user.ID,
		TokenHash: token.Hash(newRefresh),
		Rotation:  newClaims.Rotation,
		ExpiresAt: newClaims.ExpiresAt.Time,
	}

	oldHash := token.Hash(req.RefreshToken)
	if _, err := a.sessions.Rotate(r.Context(), oldHash, next); err != nil {
		switch {
		case errors.Is(err, session.ErrReused):
			// Replay of an already-rotated credential. The live successor
			// stays usable; the replay itself is rejected and flagged.
			obs.RefreshReuse()
			_ = audit.LogEvent(r.Context(), "auth.refresh.reused", map[string]any{
				"user_id": user.ID,
			})
			writeError(w, r, http.StatusUnauthorized, "invalid token")
		case errors.Is(err, session.ErrNotFound):
			writeError(w, r, http.StatusUnauthorized, "invalid token")
		default:
			// A failed rotation is surfaced as an authentication failure,
			// never silently retried.
			writeError(w, r, http.StatusUnauthorized, "refresh failed")
		}
		return
	}

	accessToken, accessExp, err := a.codec.IssueAccess(user.Claims())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "refresh failed")
		return
	}
	obs.TokenIssued(token.TypeAccess)
	obs.TokenIssued(token.TypeRefresh)

	if a.cfg.SessionLimit > 0 {
		_, _ = a.sessions.EnforcePerUserLimit(r.Context(), user.ID, a.cfg.SessionLimit)
	}

	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{
		"user_id":  user.ID,
		"rotation": newClaims.Rotation,
	})
	writeJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:      accessToken,
		RefreshToken:     newRefresh,
		TokenType:        "Bearer",
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: newClaims.ExpiresAt.Time,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	claims, ok := identityFromRequest(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := a.sessions.FindValidByHash(r.Context(), token.Hash(req.RefreshToken))
	if err != nil || rec.UserID != claims.UserID {
		writeError(w, r, http.StatusUnauthorized, "invalid token")
		return
	}
	if err := a.sessions.Revoke(r.Context(), rec.ID); err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid token")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout", map[string]any{
		"user_id": claims.UserID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	claims, ok := identityFromRequest(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	revoked, err := a.sessions.RevokeAllForUser(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "logout failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout_all", map[string]any{
		"user_id": claims.UserID,
		"revoked": revoked,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "logged_out",
		"revoked": revoked,
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	claims, ok := identityFromRequest(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	payload := map[string]any{
		"user_id":        claims.UserID,
		"username":       claims.Username,
		"email":          claims.Email,
		"active":         claims.Active,
		"email_verified": claims.EmailVerified,
		"role_id":        claims.RoleID,
	}
	// Residual lifetime lets the client decide whether to refresh early.
	if raw, ok := identity.TokenFromContext(r.Context()); ok {
		if access, err := a.codec.VerifyAccess(raw); err == nil {
			payload["access_expires_in_minutes"] = a.codec.RemainingMinutes(access)
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

// issuePair mints an access/refresh pair and persists the refresh record.
func (a *API) issuePair(r *http.Request, user *identity.User, rotation int) (tokenPairResponse, error) {
	accessToken, accessExp, err := a.codec.IssueAccess(user.Claims())
	if err != nil {
		return tokenPairResponse{}, err
	}
	refreshToken, refreshClaims, err := a.codec.IssueRefresh(user.ID, rotation)
	if err != nil {
		return tokenPairResponse{}, err
	}
	rec := &session.Record{
		UserID:    user.ID,
		TokenHash: token.Hash(refreshToken),
		Rotation:  refreshClaims.Rotation,
		ExpiresAt: refreshClaims.ExpiresAt.Time,
	}
	if err := a.sessions.Create(r.Context(), rec); err != nil {
		return tokenPairResponse{}, err
	}
	if a.cfg.SessionLimit > 0 {
		_, _ = a.sessions.EnforcePerUserLimit(r.Context(), user.ID, a.cfg.SessionLimit)
	}
	obs.TokenIssued(token.TypeAccess)
	obs.TokenIssued(token.TypeRefresh)
	return tokenPairResponse{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        "Bearer",
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}
