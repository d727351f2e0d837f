// Package jwt issues and verifies the platform's access and refresh tokens.
//
// Access and refresh tokens are signed with distinct HS256 secrets. Any service
// that holds the access secret can verify identity and role on its own through
// a Verifier, without calling back to the issuing service.
package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

var validMethods = []string{jwtlib.SigningMethodHS256.Alg()}

// Identity is the verified caller attached to a request.
type Identity struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type AccessClaims struct {
	UserID int64  `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwtlib.RegisteredClaims
}

func (c *AccessClaims) Identity() Identity {
	return Identity{ID: c.UserID, Name: c.Name, Role: c.Role}
}

// RefreshClaims carries only the subject; name and role are re-read from the
// store when the token is exchanged. RegisteredClaims.ID holds a random jti.
type RefreshClaims struct {
	UserID int64 `json:"id"`
	jwtlib.RegisteredClaims
}

// AccessVerifier is the stateless verification capability shared by services.
type AccessVerifier interface {
	VerifyAccess(token string) (*Identity, error)
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Verifier validates access tokens. It never sees the refresh secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(accessSecret string, opts ...Option) *Verifier {
	o := buildOptions(opts)
	return &Verifier{secret: []byte(accessSecret), now: o.now}
}

func (v *Verifier) VerifyAccess(tokenStr string) (*Identity, error) {
	claims := &AccessClaims{}
	if err := parse(tokenStr, claims, v.secret, v.now); err != nil {
		return nil, err
	}
	if claims.UserID <= 0 || claims.Role == "" {
		return nil, ErrTokenInvalid
	}
	id := claims.Identity()
	return &id, nil
}

type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Service is the token issuer used by the user service.
type Service struct {
	verifier      *Verifier
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func New(cfg Config, opts ...Option) (*Service, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("jwt: access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("jwt: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("jwt: token lifetimes must be positive")
	}

	o := buildOptions(opts)
	return &Service{
		verifier:      NewVerifier(cfg.AccessSecret, opts...),
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           o.now,
	}, nil
}

func (s *Service) AccessTTL() time.Duration  { return s.accessTTL }
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccess signs a short-lived token for id and returns it with its expiry.
func (s *Service) IssueAccess(id Identity) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.accessTTL)
	claims := AccessClaims{
		UserID: id.ID,
		Name:   id.Name,
		Role:   id.Role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(exp),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

// IssueRefresh signs a long-lived token bound to userID only.
func (s *Service) IssueRefresh(userID int64) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.refreshTTL)
	claims := RefreshClaims{
		UserID: userID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwtlib.NewNumericDate(exp),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, exp, nil
}

func (s *Service) VerifyAccess(tokenStr string) (*Identity, error) {
	return s.verifier.VerifyAccess(tokenStr)
}

func (s *Service) VerifyRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := parse(tokenStr, claims, s.refreshSecret, s.now); err != nil {
		return nil, err
	}
	if claims.UserID <= 0 {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func parse(tokenStr string, claims jwtlib.Claims, secret []byte, now func() time.Time) error {
	_, err := jwtlib.ParseWithClaims(tokenStr, claims, func(*jwtlib.Token) (any, error) {
		return secret, nil
	},
		jwtlib.WithValidMethods(validMethods),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(now),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrTokenInvalid
	}
}
