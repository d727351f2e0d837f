package user

import (
	"errors"
	"net/http"

	"learnhub/internal/domain"
	"learnhub/internal/middleware"
	"learnhub/internal/pkg/jwt"
	"learnhub/internal/pkg/rbac"
	"learnhub/internal/pkg/response"
	"learnhub/internal/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	service *Service
	log     logrus.FieldLogger
}

func NewHandler(service *Service, log logrus.FieldLogger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) Routes() []middleware.Route {
	return []middleware.Route{
		{Method: http.MethodGet, Path: "/users/me", Access: middleware.Access{Capability: rbac.SelfRead}, Handler: h.GetMe},
		{Method: http.MethodGet, Path: "/users/data/analytics", Access: middleware.Access{Capability: rbac.UsersAnalytics}, Handler: h.Analytics},
		{Method: http.MethodGet, Path: "/users/profile/:id", Access: middleware.Access{APIKey: true}, Handler: h.PublicProfile},
		{Method: http.MethodGet, Path: "/users/:role", Access: middleware.Access{Capability: rbac.UsersRead}, Handler: h.ListByRole},
		{Method: http.MethodPost, Path: "/users", Access: middleware.Access{Capability: rbac.UsersWrite}, Handler: h.Create},
		{Method: http.MethodPut, Path: "/users/:id", Access: middleware.Access{Capability: rbac.UsersWrite}, Handler: h.Update},
		{Method: http.MethodDelete, Path: "/users/:id", Access: middleware.Access{Capability: rbac.UsersWrite}, Handler: h.Delete},
	}
}

// GetMe returns the caller's own profile.
// @Summary		Current user
// @Tags		Users
// @Security	BearerAuth
// @Success		200	{object}	domain.User
// @Router		/users/me [GET]
func (h *Handler) GetMe(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	u, err := h.service.Get(c.Request.Context(), caller.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, u)
}

// ListByRole lists students or teachers.
// @Summary		List users by role
// @Tags		Users
// @Security	BearerAuth
// @Param		role	path	string	true	"student or teacher"
// @Success		200	{array}		domain.User
// @Failure		400	{object}	map[string]interface{}
// @Router		/users/{role} [GET]
func (h *Handler) ListByRole(c *gin.Context) {
	users, err := h.service.ListByRole(c.Request.Context(), domain.UserRole(c.Param("role")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, users)
}

// PublicProfile is called by the course service with the shared API key.
// @Summary		Public profile (internal)
// @Tags		Internal
// @Param		id		path	int		true	"user id"
// @Param		apiKey	query	string	true	"shared service key"
// @Success		200	{object}	domain.PublicUser
// @Failure		403	{object}	map[string]interface{}
// @Failure		404	{object}	map[string]interface{}
// @Router		/users/profile/{id} [GET]
func (h *Handler) PublicProfile(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return
	}
	p, err := h.service.PublicProfile(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, p)
}

// Create adds a user. Teachers may only create students.
// @Summary		Create user
// @Tags		Users
// @Security	BearerAuth
// @Param		request	body	CreateUserRequest	true	"new user"
// @Success		201	{object}	domain.User
// @Failure		403	{object}	map[string]interface{}
// @Failure		409	{object}	map[string]interface{}
// @Router		/users [POST]
func (h *Handler) Create(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	u, err := h.service.Create(c.Request.Context(), *caller, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, u)
}

// Update replaces a user's profile. Teachers may only update students.
// @Summary		Update user
// @Tags		Users
// @Security	BearerAuth
// @Param		id		path	int					true	"user id"
// @Param		request	body	UpdateUserRequest	true	"profile"
// @Success		200	{object}	domain.User
// @Failure		403	{object}	map[string]interface{}
// @Failure		404	{object}	map[string]interface{}
// @Router		/users/{id} [PUT]
func (h *Handler) Update(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	u, err := h.service.Update(c.Request.Context(), *caller, id, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, u)
}

// Delete removes a user. Teachers may only delete students.
// @Summary		Delete user
// @Tags		Users
// @Security	BearerAuth
// @Param		id	path	int	true	"user id"
// @Success		204
// @Failure		403	{object}	map[string]interface{}
// @Failure		404	{object}	map[string]interface{}
// @Router		/users/{id} [DELETE]
func (h *Handler) Delete(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return
	}

	if err := h.service.Delete(c.Request.Context(), *caller, id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Analytics returns the admin dashboard figures.
// @Summary		User analytics
// @Tags		Users
// @Security	BearerAuth
// @Success		200	{object}	AnalyticsResponse
// @Router		/users/data/analytics [GET]
func (h *Handler) Analytics(c *gin.Context) {
	out, err := h.service.Analytics(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, out)
}

func (h *Handler) caller(c *gin.Context) (*jwt.Identity, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		h.log.WithField("path", c.FullPath()).Error("handler reached without an authenticated identity")
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return nil, false
	}
	return identity, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", verr.Fields)
	case errors.Is(err, ErrInvalidRole):
		response.Error(c, http.StatusBadRequest, "INVALID_ROLE", "Invalid role specified")
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "User not found")
	case errors.Is(err, ErrEmailAlreadyExists):
		response.Error(c, http.StatusConflict, "EMAIL_EXISTS", "An account with this email already exists.")
	case errors.Is(err, ErrTeacherScope):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Forbidden: Teachers can only manage students.")
	default:
		h.log.WithError(err).WithField("path", c.FullPath()).Error("user request failed")
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
