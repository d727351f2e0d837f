package repository

import (
	"context"
	"strings"
	"time"

	"learnhub/internal/domain"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

type userModel struct {
	ID               int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Name             string     `gorm:"column:name;size:120;not null"`
	Email            string     `gorm:"column:email;size:255;uniqueIndex;not null"`
	PasswordHash     string     `gorm:"column:password_hash;not null"`
	Role             string     `gorm:"column:role;size:20;index;not null"`
	Age              *int       `gorm:"column:age"`
	GuardianInfo     *string    `gorm:"column:guardian_info"`
	Specialization   *string    `gorm:"column:specialization"`
	RefreshTokenHash *string    `gorm:"column:refresh_token_hash;size:64"`
	RefreshExpiresAt *time.Time `gorm:"column:refresh_expires_at;index"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

func toDomainUser(m userModel) *domain.User {
	u := &domain.User{
		ID:               m.ID,
		Name:             m.Name,
		Email:            m.Email,
		PasswordHash:     m.PasswordHash,
		Role:             domain.UserRole(m.Role),
		Age:              m.Age,
		RefreshExpiresAt: m.RefreshExpiresAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.GuardianInfo != nil {
		u.GuardianInfo = *m.GuardianInfo
	}
	if m.Specialization != nil {
		u.Specialization = *m.Specialization
	}
	if m.RefreshTokenHash != nil {
		u.RefreshTokenHash = *m.RefreshTokenHash
	}
	return u
}

func toUserModel(u *domain.User) userModel {
	return userModel{
		ID:             u.ID,
		Name:           strings.TrimSpace(u.Name),
		Email:          normalizeEmail(u.Email),
		PasswordHash:   u.PasswordHash,
		Role:           string(u.Role),
		Age:            u.Age,
		GuardianInfo:   nullableString(u.GuardianInfo),
		Specialization: nullableString(u.Specialization),
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	m := toUserModel(u)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translate(err)
	}
	*u = *toDomainUser(m)
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var m userModel
	err := r.db.WithContext(ctx).
		Where("email = ?", normalizeEmail(email)).
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return toDomainUser(m), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, translate(err)
	}
	return toDomainUser(m), nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userModel{}).
		Where("email = ?", normalizeEmail(email)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update writes the profile fields of u, including zero values. Password and
// session columns are left alone.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	m := toUserModel(u)
	m.UpdatedAt = time.Now().UTC()
	tx := r.db.WithContext(ctx).Model(&userModel{ID: u.ID}).
		Select("name", "email", "role", "age", "guardian_info", "specialization", "updated_at").
		Updates(&m)
	if tx.Error != nil {
		return translate(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	tx := r.db.WithContext(ctx).Delete(&userModel{}, id)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) ListByRole(ctx context.Context, role domain.UserRole) ([]*domain.User, error) {
	var rows []userModel
	err := r.db.WithContext(ctx).
		Where("role = ?", string(role)).
		Order("name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.User, 0, len(rows))
	for _, m := range rows {
		out = append(out, toDomainUser(m))
	}
	return out, nil
}

// SetRefreshToken replaces the stored refresh hash; the previous session, if
// any, stops being refreshable.
func (r *UserRepository) SetRefreshToken(ctx context.Context, userID int64, hash string, expiresAt time.Time) error {
	tx := r.db.WithContext(ctx).Model(&userModel{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"refresh_token_hash": hash,
			"refresh_expires_at": expiresAt.UTC(),
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearRefreshToken drops the stored hash only if it still equals hash, so a
// stale cookie cannot end a newer session. It reports whether a row changed.
func (r *UserRepository) ClearRefreshToken(ctx context.Context, userID int64, hash string) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&userModel{}).
		Where("id = ? AND refresh_token_hash = ?", userID, hash).
		Updates(map[string]any{
			"refresh_token_hash": nil,
			"refresh_expires_at": nil,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *UserRepository) ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&userModel{}).
		Where("refresh_expires_at IS NOT NULL AND refresh_expires_at < ?", now.UTC()).
		Updates(map[string]any{
			"refresh_token_hash": nil,
			"refresh_expires_at": nil,
		})
	return tx.RowsAffected, tx.Error
}

func (r *UserRepository) CountByRole(ctx context.Context, role domain.UserRole) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userModel{}).
		Where("role = ?", string(role)).
		Count(&count).Error
	return count, err
}

func (r *UserRepository) StudentsByAge(ctx context.Context) ([]domain.AgeCount, error) {
	var rows []domain.AgeCount
	err := r.db.WithContext(ctx).Model(&userModel{}).
		Select("age, COUNT(*) AS count").
		Where("role = ? AND age IS NOT NULL", string(domain.RoleStudent)).
		Group("age").
		Order("age").
		Scan(&rows).Error
	return rows, err
}

func (r *UserRepository) RecentByRole(ctx context.Context, role domain.UserRole, limit int) ([]*domain.User, error) {
	var rows []userModel
	err := r.db.WithContext(ctx).
		Where("role = ?", string(role)).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.User, 0, len(rows))
	for _, m := range rows {
		out = append(out, toDomainUser(m))
	}
	return out, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nullableString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
