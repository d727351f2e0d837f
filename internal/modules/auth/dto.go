package auth

import "learnhub/internal/domain"

// Fields are validated by the service so that a missing email or password
// yields the same message whichever is absent.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type UserInfo struct {
	ID   int64           `json:"id"`
	Name string          `json:"name"`
	Role domain.UserRole `json:"role"`
}

type TokenResponse struct {
	AccessToken string   `json:"accessToken"`
	User        UserInfo `json:"user"`
}

type RegisterResponse struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Role  domain.UserRole `json:"role"`
}

func userInfo(u *domain.User) UserInfo {
	return UserInfo{ID: u.ID, Name: u.Name, Role: u.Role}
}
