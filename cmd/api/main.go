package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"taskhive.io/internal/authz"
	"taskhive.io/internal/httpapi"
	"taskhive.io/internal/identity"
	"taskhive.io/internal/obs"
	"taskhive.io/internal/session"
	"taskhive.io/internal/token"
)

var (
	version = "0.4.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	secret := os.Getenv("TASKHIVE_AUTH_SECRET")
	if secret == "" {
		log.Fatal("TASKHIVE_AUTH_SECRET is required")
	}

	codec, err := token.NewCodec(token.Config{
		SigningKey: []byte(secret),
		Issuer:     os.Getenv("TASKHIVE_TOKEN_ISSUER"),
		Audience:   os.Getenv("TASKHIVE_TOKEN_AUDIENCE"),
		AccessTTL:  time.Duration(envInt("TASKHIVE_ACCESS_TTL_MINUTES", 15)) * time.Minute,
		RefreshTTL: time.Duration(envInt("TASKHIVE_REFRESH_TTL_DAYS", 30)) * 24 * time.Hour,
	})
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	// Postgres when a DSN is set, in-memory stores otherwise so the service
	// still runs for local development and demos.
	var (
		db       *sql.DB
		sessions session.Store
		users    identity.UserStore
		roles    identity.RoleStore
	)
	if dsn := os.Getenv("TASKHIVE_PG_DSN"); dsn != "" {
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		sessions = session.NewPGStore(db)
		users = identity.NewPGUserStore(db)
		roles = identity.NewPGRoleStore(db)
	} else {
		sessions = session.NewMemoryStore()
		users = identity.NewMemoryUserStore()
		roles = identity.NewMemoryRoleStore()
	}

	engine, err := authz.NewEngine()
	if err != nil {
		log.Fatalf("authz engine: %v", err)
	}

	api := httpapi.New(httpapi.Config{
		Version:              version,
		RequireActiveAccount: envBool("TASKHIVE_REQUIRE_ACTIVE", true),
		RequireVerifiedEmail: envBool("TASKHIVE_REQUIRE_VERIFIED_EMAIL", false),
		SessionLimit:         envInt("TASKHIVE_SESSION_LIMIT", 5),
		RateLimitBurst:       envInt("TASKHIVE_RATE_BURST", 50),
		RateLimitPerSecond:   envInt("TASKHIVE_RATE_PER_SECOND", 25),
	}, codec, sessions, users, roles, authz.NewStaticOwnerLookup(), engine, httpapi.ReadyProbe{DB: db})

	// Periodic session maintenance: expired and revoked records are cheap to
	// keep briefly but must not accumulate forever.
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	go runCleanup(cleanupCtx, sessions)

	srv := &http.Server{
		Addr:              envStr("TASKHIVE_HTTP_ADDR", ":8080"),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting taskhive-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	grpcSrv := httpapi.NewGRPCHealthServer(httpapi.ReadyProbe{DB: db})
	if addr := os.Getenv("TASKHIVE_GRPC_ADDR"); addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				log.Printf("grpc serve: %v", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	cancelCleanup()
	grpcSrv.GracefulStop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

func runCleanup(ctx context.Context, sessions session.Store) {
	interval := time.Duration(envInt("TASKHIVE_CLEANUP_MINUTES", 60)) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if n, err := sessions.CleanupExpired(opCtx); err != nil {
				log.Printf("cleanup expired: %v", err)
			} else if n > 0 {
				log.Printf("cleanup: removed %d expired sessions", n)
			}
			if n, err := sessions.CleanupRevoked(opCtx); err != nil {
				log.Printf("cleanup revoked: %v", err)
			} else if n > 0 {
				log.Printf("cleanup: removed %d revoked sessions", n)
			}
			if n, err := sessions.CleanupOlderThan(opCtx, envInt("TASKHIVE_SESSION_MAX_AGE_DAYS", 90)); err != nil {
				log.Printf("cleanup aged: %v", err)
			} else if n > 0 {
				log.Printf("cleanup: removed %d aged sessions", n)
			}
			cancel()
		}
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
