package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"taskhive.io/internal/authz"
	"taskhive.io/internal/identity"
	"taskhive.io/internal/obs"
	"taskhive.io/internal/session"
	"taskhive.io/internal/token"
)

// ReadyProbe checks backing-store readiness (for example a DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config carries the request-independent gate settings.
type Config struct {
	Version string

	// Account-state gates, each independently togglable. The active gate
	// runs before the email gate so an inactive account never sees an
	// email-verification message.
	RequireActiveAccount bool
	RequireVerifiedEmail bool

	// SessionLimit caps concurrent refresh sessions per user; zero disables
	// the cap.
	SessionLimit int

	RateLimitBurst     int
	RateLimitPerSecond int
}

// API is the HTTP layer: authentication gate, authorization middleware and
// the session issuance endpoints.
type API struct {
	mux        *http.ServeMux
	cfg        Config
	codec      *token.Codec
	sessions   session.Store
	users      identity.UserStore
	roles      identity.RoleStore
	owners     authz.OwnerLookup
	engine     *authz.Engine
	readyProbe ReadyProbe
}

func New(cfg Config, codec *token.Codec, sessions session.Store, users identity.UserStore,
	roles identity.RoleStore, owners authz.OwnerLookup, engine *authz.Engine, rp ReadyProbe) *API {

	a := &API{
		mux:        http.NewServeMux(),
		cfg:        cfg,
		codec:      codec,
		sessions:   sessions,
		users:      users,
		roles:      roles,
		owners:     owners,
		engine:     engine,
		readyProbe: rp,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/v1/info", a.withOptionalAuth(http.HandlerFunc(a.Info)))
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/signup", a.handleSignup)
	a.mux.HandleFunc("/v1/auth/signin", a.handleSignin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/logout_all", a.handleLogoutAll)
	a.mux.HandleFunc("/v1/auth/me", a.handleMe)

	// Business handlers live elsewhere; these echo the resolved permission
	// context so every gate path stays exercised end to end.
	a.protect(authz.ResourceTask, "/v1/tasks")
	a.protect(authz.ResourceTeam, "/v1/teams")
	a.protect(authz.ResourceOrganization, "/v1/orgs")
	a.protect(authz.ResourceRole, "/v1/admin/roles")
	a.protect(authz.ResourceAnalytics, "/v1/admin/analytics")
	a.protect(authz.ResourceBilling, "/v1/billing")
	a.protect(authz.ResourceSubscription, "/v1/subscriptions")

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

func (a *API) protect(res authz.Resource, prefix string) {
	handler := a.requireAccess(res, http.HandlerFunc(a.handleProtected))
	a.mux.Handle(prefix, handler)
	a.mux.Handle(prefix+"/", handler)
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	burst, perSecond := a.cfg.RateLimitBurst, a.cfg.RateLimitPerSecond
	if burst <= 0 {
		burst = 50
	}
	if perSecond <= 0 {
		perSecond = 25
	}
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = RateLimit(h, burst, perSecond)
	h = Logging(h)
	h = SecurityHeaders(h)
	h = RequestID(h)
	return obs.Instrument(h)
}
