package auth

import (
	"context"
	"time"

	"learnhub/internal/domain"
	"learnhub/internal/pkg/jwt"
)

// UserRepositoryInterface lists only the methods the auth service uses.
type UserRepositoryInterface interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	SetRefreshToken(ctx context.Context, id int64, hash string, expiresAt time.Time) error
	ClearRefreshToken(ctx context.Context, id int64, hash string) (bool, error)
}

// TokenIssuer is satisfied by *jwt.Service.
type TokenIssuer interface {
	IssueAccess(id jwt.Identity) (string, time.Time, error)
	IssueRefresh(userID int64) (string, time.Time, error)
	VerifyRefresh(token string) (*jwt.RefreshClaims, error)
	RefreshTTL() time.Duration
}
