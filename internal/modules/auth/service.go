package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"learnhub/internal/domain"
	"learnhub/internal/metrics"
	"learnhub/internal/pkg/jwt"
	"learnhub/internal/pkg/utils"
	"learnhub/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the email is unknown so that both
// failure paths pay for one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("learnhub-dummy-password"), bcrypt.DefaultCost)

// Service contains the login, refresh, logout and registration flows.
type Service struct {
	users         UserRepositoryInterface
	tokens        TokenIssuer
	refreshPepper string
	metrics       *metrics.Metrics
}

// Session is the result of a successful login or refresh. RefreshToken is
// empty after a refresh, which only mints a new access token.
type Session struct {
	User           *domain.User
	AccessToken    string
	AccessExpires  time.Time
	RefreshToken   string
	RefreshExpires time.Time
}

func NewService(users UserRepositoryInterface, tokens TokenIssuer, refreshPepper string, m *metrics.Metrics) *Service {
	return &Service{
		users:         users,
		tokens:        tokens,
		refreshPepper: refreshPepper,
		metrics:       m,
	}
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
			s.metrics.AuthEvent("login", "failure")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		s.metrics.AuthEvent("login", "failure")
		return nil, ErrInvalidCredentials
	}

	session, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	s.metrics.AuthEvent("login", "success")
	return session, nil
}

// issueTokens signs both tokens and persists the refresh hash. If the hash
// cannot be stored neither token is returned.
func (s *Service) issueTokens(ctx context.Context, user *domain.User) (*Session, error) {
	access, accessExp, err := s.tokens.IssueAccess(identityOf(user))
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	if err := s.users.SetRefreshToken(ctx, user.ID, s.hashRefresh(refresh), refreshExp); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &Session{
		User:           user,
		AccessToken:    access,
		AccessExpires:  accessExp,
		RefreshToken:   refresh,
		RefreshExpires: refreshExp,
	}, nil
}

// Refresh exchanges the refresh cookie for a new access token. The presented
// token must still be the one most recently stored for the user.
func (s *Service) Refresh(ctx context.Context, refreshRaw string) (*Session, error) {
	if refreshRaw == "" {
		return nil, ErrMissingRefreshToken
	}

	claims, err := s.tokens.VerifyRefresh(refreshRaw)
	if err != nil {
		s.metrics.AuthEvent("refresh", "invalid")
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if user.RefreshTokenHash == "" || user.RefreshTokenHash != s.hashRefresh(refreshRaw) {
		s.metrics.AuthEvent("refresh", "superseded")
		return nil, ErrInvalidRefreshToken
	}

	access, accessExp, err := s.tokens.IssueAccess(identityOf(user))
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	s.metrics.AuthEvent("refresh", "success")
	return &Session{User: user, AccessToken: access, AccessExpires: accessExp}, nil
}

// Logout ends the server-side session when the token verifies and is still
// current. An unverifiable token is not an error: the cookie is cleared anyway.
func (s *Service) Logout(ctx context.Context, refreshRaw string) error {
	if refreshRaw == "" {
		return nil
	}

	claims, err := s.tokens.VerifyRefresh(refreshRaw)
	if err != nil {
		s.metrics.AuthEvent("logout", "unverified")
		return nil
	}

	cleared, err := s.users.ClearRefreshToken(ctx, claims.UserID, s.hashRefresh(refreshRaw))
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	if cleared {
		s.metrics.AuthEvent("logout", "success")
	} else {
		s.metrics.AuthEvent("logout", "stale")
	}
	return nil
}

// Register creates a student account. The role is never taken from input.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         domain.RoleStudent,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.metrics.AuthEvent("register", "success")
	return user, nil
}

func (s *Service) hashRefresh(raw string) string {
	sum := sha256.Sum256([]byte(raw + s.refreshPepper))
	return hex.EncodeToString(sum[:])
}

func identityOf(u *domain.User) jwt.Identity {
	return jwt.Identity{ID: u.ID, Name: u.Name, Role: string(u.Role)}
}
