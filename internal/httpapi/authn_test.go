package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskhive.io/internal/identity"
)

func TestProtectedRouteRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/tasks", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "missing bearer token" {
		t.Fatalf("error = %q", msg)
	}
}

func TestMalformedAuthorizationScheme(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "invalid authorization scheme" {
		t.Fatalf("error = %q", msg)
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/tasks", nil, "not-a-jwt")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "invalid token" {
		t.Fatalf("error = %q", msg)
	}
}

func TestExpiredTokenReportedDistinctly(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "ada", "ada@example.com", "correct horse", "member")
	pair := env.signin(t, "ada@example.com", "correct horse")

	env.clock.Advance(16 * time.Minute)

	rec := env.do(t, http.MethodGet, "/v1/tasks", nil, pair.AccessToken)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "token expired" {
		t.Fatalf("error = %q, want distinct expiry message", msg)
	}
}

func TestHeaderTakesPrecedenceOverCookie(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "ada", "ada@example.com", "correct horse", "member")
	pair := env.signin(t, "ada@example.com", "correct horse")

	// valid header beats a garbage cookie
	req := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	req.AddCookie(&http.Cookie{Name: "Authorization", Value: "Bearer garbage"})
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid header with bad cookie: status = %d", rec.Code)
	}

	// a garbage header is not rescued by a valid cookie
	req = httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	req.AddCookie(&http.Cookie{Name: "Authorization", Value: "Bearer " + pair.AccessToken})
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad header with valid cookie: status = %d, want 401", rec.Code)
	}
}

func TestCookieFallback(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "ada", "ada@example.com", "correct horse", "member")
	pair := env.signin(t, "ada@example.com", "correct horse")

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	req.AddCookie(&http.Cookie{Name: "Authorization", Value: "Bearer " + pair.AccessToken})
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cookie credential: status = %d, body %s", rec.Code, rec.Body.String())
	}

	// bare value without scheme prefix also works
	req = httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	req.AddCookie(&http.Cookie{Name: "Authorization", Value: pair.AccessToken})
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bare cookie credential: status = %d", rec.Code)
	}
}

func TestAccountStateGateOrdering(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.RequireVerifiedEmail = true
	})

	mint := func(active, verified bool) string {
		tok, _, err := env.codec.IssueAccess(identity.Claims{
			UserID:        "u-1",
			Username:      "ada",
			Email:         "ada@example.com",
			Active:        active,
			EmailVerified: verified,
			RoleID:        "member",
		})
		if err != nil {
			t.Fatalf("IssueAccess: %v", err)
		}
		return tok
	}

	// inactive account loses to the active gate even when also unverified
	rec := env.do(t, http.MethodGet, "/v1/tasks", nil, mint(false, false))
	if rec.Code != http.StatusForbidden || errorMessage(t, rec) != "account disabled" {
		t.Fatalf("inactive+unverified: status=%d error=%q", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/v1/tasks", nil, mint(true, false))
	if rec.Code != http.StatusForbidden || errorMessage(t, rec) != "email not verified" {
		t.Fatalf("active+unverified: status=%d error=%q", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/v1/tasks", nil, mint(true, true))
	if rec.Code != http.StatusOK {
		t.Fatalf("active+verified: status = %d", rec.Code)
	}
}

func TestGatesDisabledByConfig(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.RequireActiveAccount = false
	})

	tok, _, err := env.codec.IssueAccess(identity.Claims{
		UserID: "u-1", Username: "ada", Active: false, RoleID: "member",
	})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	rec := env.do(t, http.MethodGet, "/v1/tasks", nil, tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with gate disabled", rec.Code)
	}
}

func TestInfoPersonalization(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "ada", "ada@example.com", "correct horse", "member")
	pair := env.signin(t, "ada@example.com", "correct horse")

	var anon map[string]any
	rec := env.do(t, http.MethodGet, "/v1/info", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous info: status = %d", rec.Code)
	}
	decodeBody(t, rec, &anon)
	if _, ok := anon["user"]; ok {
		t.Fatal("anonymous info response carries a user")
	}

	var authed map[string]any
	rec = env.do(t, http.MethodGet, "/v1/info", nil, pair.AccessToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated info: status = %d", rec.Code)
	}
	decodeBody(t, rec, &authed)
	if authed["user"] != "ada" {
		t.Fatalf("user = %v, want ada", authed["user"])
	}

	// a bad credential downgrades to anonymous instead of rejecting
	rec = env.do(t, http.MethodGet, "/v1/info", nil, "garbage")
	if rec.Code != http.StatusOK {
		t.Fatalf("info with bad token: status = %d, want 200", rec.Code)
	}
}
