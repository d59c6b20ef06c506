package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"taskhive.io/internal/authz"
	"taskhive.io/internal/identity"
	"taskhive.io/internal/session"
	"taskhive.io/internal/token"
)

// testClock is a mutable time source shared by the codec and the session
// store so expiry can be driven from tests.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	clock    *testClock
	codec    *token.Codec
	sessions *session.MemoryStore
	users    *identity.MemoryUserStore
	roles    *identity.MemoryRoleStore
	owners   *authz.StaticOwnerLookup
	api      *API
	handler  http.Handler
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()
	clock := &testClock{t: time.Now()}

	codec, err := token.NewCodec(token.Config{
		SigningKey: []byte("0123456789abcdef0123456789abcdef"),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 30 * 24 * time.Hour,
	}, token.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	engine, err := authz.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	cfg := Config{
		Version:              "test",
		RequireActiveAccount: true,
		SessionLimit:         5,
		RateLimitBurst:       10000,
		RateLimitPerSecond:   10000,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	env := &testEnv{
		clock:    clock,
		codec:    codec,
		sessions: session.NewMemoryStore(session.WithMemoryClock(clock.Now)),
		users:    identity.NewMemoryUserStore(),
		roles:    identity.NewMemoryRoleStore(),
		owners:   authz.NewStaticOwnerLookup(),
	}
	env.api = New(cfg, codec, env.sessions, env.users, env.roles, env.owners, engine, ReadyProbe{})
	env.handler = env.api.Handler()
	return env
}

// do sends a JSON request through the full middleware chain.
func (e *testEnv) do(t *testing.T, method, path string, body any, accessToken string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &body)
	return body.Error
}

// seedUser creates an account directly in the store, bypassing the signup
// endpoint, so tests can control role and flags.
func (e *testEnv) seedUser(t *testing.T, username, email, password, roleID string) *identity.User {
	t.Helper()
	hash, err := identity.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u := &identity.User{
		Username:      username,
		Email:         email,
		PasswordHash:  hash,
		RoleID:        roleID,
		Active:        true,
		EmailVerified: true,
	}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func (e *testEnv) signin(t *testing.T, email, password string) tokenPairResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/auth/signin", signinRequest{Email: email, Password: password}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("signin returned %d: %s", rec.Code, rec.Body.String())
	}
	var pair tokenPairResponse
	decodeBody(t, rec, &pair)
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("incomplete token pair: %+v", pair)
	}
	return pair
}
