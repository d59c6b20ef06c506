package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"taskhive.io/internal/identity"
)

// Token type discriminants. A token presented for the wrong purpose is
// rejected even when otherwise well-formed.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

const (
	defaultIssuer   = "taskhive"
	defaultAudience = "taskhive-api"
	minKeyBytes     = 32
)

var (
	// ErrInvalidToken indicates the token failed validation.
	ErrInvalidToken = errors.New("token: invalid token")
	// ErrTokenExpired is distinct from ErrInvalidToken so refresh flows can
	// special-case expiry.
	ErrTokenExpired = errors.New("token: token expired")
)

// Config holds the immutable signing parameters. Weak keys and non-positive
// lifetimes are rejected at construction, not per call.
type Config struct {
	SigningKey []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Codec issues and verifies signed session credentials. It is stateless and
// safe for concurrent use.
type Codec struct {
	cfg Config
	now func() time.Time
}

// Option configures Codec behavior.
type Option func(*Codec)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec validates the configuration and constructs a Codec.
func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	if len(cfg.SigningKey) < minKeyBytes {
		return nil, fmt.Errorf("token: signing key must be at least %d bytes", minKeyBytes)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: token lifetimes must be greater than zero")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		cfg.Issuer = defaultIssuer
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		cfg.Audience = defaultAudience
	}
	c := &Codec{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AccessClaims carries the identity snapshot inside an access credential.
type AccessClaims struct {
	identity.Claims
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// RefreshClaims carries the rotation counter inside a refresh credential.
// The counter lets a rotation detect stale concurrent refreshes without a
// second database read.
type RefreshClaims struct {
	TokenType string `json:"token_type"`
	Rotation  int    `json:"rotation"`
	jwt.RegisteredClaims
}

// IssueAccess signs a short-lived access credential embedding the snapshot.
func (c *Codec) IssueAccess(snapshot identity.Claims) (string, time.Time, error) {
	if strings.TrimSpace(snapshot.UserID) == "" {
		return "", time.Time{}, errors.New("token: user id is required")
	}
	now := c.now().UTC()
	exp := now.Add(c.cfg.AccessTTL)
	claims := AccessClaims{
		Claims:    snapshot,
		TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Issuer,
			Audience:  jwt.ClaimStrings{c.cfg.Audience},
			Subject:   snapshot.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

// IssueRefresh signs a long-lived refresh credential. Only a one-way hash of
// the returned string is ever persisted.
func (c *Codec) IssueRefresh(userID string, rotation int) (string, RefreshClaims, error) {
	if strings.TrimSpace(userID) == "" {
		return "", RefreshClaims{}, errors.New("token: user id is required")
	}
	now := c.now().UTC()
	claims := RefreshClaims{
		TokenType: TypeRefresh,
		Rotation:  rotation,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Issuer,
			Audience:  jwt.ClaimStrings{c.cfg.Audience},
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.cfg.RefreshTTL)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.cfg.SigningKey)
	if err != nil {
		return "", RefreshClaims{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, claims, nil
}

// VerifyAccess validates signature, lifetime, issuer, audience and the type
// discriminant of an access credential.
func (c *Codec) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != TypeAccess {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.UserID != claims.Subject {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh validates a refresh credential. A well-formed access token
// presented here fails on the type discriminant.
func (c *Codec) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != TypeRefresh {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *Codec) parse(tokenString string, claims jwt.Claims) error {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return c.cfg.SigningKey, nil
	},
		jwt.WithTimeFunc(c.now),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithAudience(c.cfg.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrInvalidToken
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}

// RemainingMinutes returns the residual access lifetime floored at zero.
// Callers use it to decide whether to offer a proactive refresh.
func (c *Codec) RemainingMinutes(claims *AccessClaims) int64 {
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	rem := claims.ExpiresAt.Time.Sub(c.now())
	if rem <= 0 {
		return 0
	}
	return int64(rem / time.Minute)
}

// RefreshTTL exposes the configured refresh lifetime for session bookkeeping.
func (c *Codec) RefreshTTL() time.Duration { return c.cfg.RefreshTTL }

// Hash returns the hex-encoded SHA-256 digest persisted in place of the raw
// refresh credential.
func Hash(tokenString string) string {
	sum := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(sum[:])
}
