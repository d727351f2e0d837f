package auth

import (
	"errors"
	"net/http"

	"learnhub/internal/middleware"
	"learnhub/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CookieOptions describes the refresh cookie. Set and clear use the same
// values so browsers match the cookie on logout.
type CookieOptions struct {
	Name     string
	Path     string
	Secure   bool
	SameSite http.SameSite
}

// Handler manages all HTTP interactions for authentication
type Handler struct {
	service *Service
	cookie  CookieOptions
	log     logrus.FieldLogger
}

func NewHandler(service *Service, cookie CookieOptions, log logrus.FieldLogger) *Handler {
	return &Handler{service: service, cookie: cookie, log: log}
}

func (h *Handler) Routes() []middleware.Route {
	return []middleware.Route{
		{Method: http.MethodPost, Path: "/users/login", Access: middleware.Access{RateClass: middleware.RateAuth}, Handler: h.Login},
		{Method: http.MethodGet, Path: "/users/refresh", Handler: h.Refresh},
		{Method: http.MethodPost, Path: "/users/logout", Handler: h.Logout},
		{Method: http.MethodPost, Path: "/users/register", Access: middleware.Access{RateClass: middleware.RateAuth}, Handler: h.Register},
	}
}

// Login verifies credentials and starts a session.
// @Summary		Log in
// @Tags		Auth
// @Param		request	body	LoginRequest	true	"email and password"
// @Success		200	{object}	TokenResponse	"access token; refresh token set as an HttpOnly cookie"
// @Failure		400	{object}	map[string]interface{}
// @Failure		401	{object}	map[string]interface{}
// @Failure		429	{string}	string
// @Router		/users/login [POST]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Email and password are required.")
		return
	}

	session, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingCredentials):
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Email and password are required.")
		case errors.Is(err, ErrInvalidCredentials):
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		default:
			h.internalError(c, "login failed", err)
		}
		return
	}

	h.setRefreshCookie(c, session.RefreshToken, int(h.service.tokens.RefreshTTL().Seconds()))
	response.Success(c, http.StatusOK, TokenResponse{
		AccessToken: session.AccessToken,
		User:        userInfo(session.User),
	})
}

// Refresh issues a new access token from the refresh cookie.
// @Summary		Refresh access token
// @Tags		Auth
// @Success		200	{object}	TokenResponse
// @Failure		401	{object}	map[string]interface{}	"no cookie or the user no longer exists"
// @Failure		403	{object}	map[string]interface{}	"expired, invalid or superseded refresh token"
// @Router		/users/refresh [GET]
func (h *Handler) Refresh(c *gin.Context) {
	raw, _ := c.Cookie(h.cookie.Name)

	session, err := h.service.Refresh(c.Request.Context(), raw)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingRefreshToken), errors.Is(err, ErrUnknownUser):
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		case errors.Is(err, ErrInvalidRefreshToken):
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "Forbidden")
		default:
			h.internalError(c, "refresh failed", err)
		}
		return
	}

	response.Success(c, http.StatusOK, TokenResponse{
		AccessToken: session.AccessToken,
		User:        userInfo(session.User),
	})
}

// Logout clears the refresh cookie and, when it is still current, the
// server-side session.
// @Summary		Log out
// @Tags		Auth
// @Success		200	{object}	map[string]interface{}	"Cookie cleared"
// @Success		204	"no cookie was sent"
// @Failure		500	{object}	map[string]interface{}	"cookie cleared but the stored session could not be"
// @Router		/users/logout [POST]
func (h *Handler) Logout(c *gin.Context) {
	raw, err := c.Cookie(h.cookie.Name)
	if err != nil || raw == "" {
		c.Status(http.StatusNoContent)
		return
	}

	err = h.service.Logout(c.Request.Context(), raw)
	h.setRefreshCookie(c, "", -1)
	if err != nil {
		h.internalError(c, "logout: server-side session not cleared", err)
		return
	}
	response.Message(c, http.StatusOK, "Cookie cleared")
}

// Register creates a student account.
// @Summary		Register as a student
// @Tags		Auth
// @Param		request	body	RegisterRequest	true	"name, email and password"
// @Success		201	{object}	RegisterResponse
// @Failure		400	{object}	map[string]interface{}
// @Failure		409	{object}	map[string]interface{}
// @Router		/users/register [POST]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			response.Error(c, http.StatusConflict, "EMAIL_EXISTS", "An account with this email already exists.")
			return
		}
		h.internalError(c, "registration failed", err)
		return
	}

	response.Success(c, http.StatusCreated, RegisterResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	})
}

func (h *Handler) setRefreshCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(h.cookie.SameSite)
	c.SetCookie(h.cookie.Name, value, maxAge, h.cookie.Path, "", h.cookie.Secure, true)
}

func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	h.log.WithError(err).Error(msg)
	response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
}
