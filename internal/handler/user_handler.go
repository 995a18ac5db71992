package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gpt400/schedule-gap-api/internal/middleware"
	"github.com/gpt400/schedule-gap-api/internal/models"
	"github.com/gpt400/schedule-gap-api/internal/service"
	appErrors "github.com/gpt400/schedule-gap-api/pkg/errors"
	"github.com/gpt400/schedule-gap-api/pkg/response"
)

// UserHandler exposes user lookup and the roster for the comparison picker.
type UserHandler struct {
	service *service.UserService
}

// NewUserHandler creates a new handler.
func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{service: svc}
}

// List godoc
// @Summary List users
// @Description List users with filtering and pagination
// @Tags Users
// @Produce json
// @Param semester query string false "Semester tag filter"
// @Param active query bool false "Active flag filter"
// @Param search query string false "Username substring"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	filter := models.UserFilter{
		Semester:  c.Query("semester"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrInvalidArgument, "active must be a boolean"))
			return
		}
		filter.Active = &active
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	users, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, users, pagination)
}

// Roster godoc
// @Summary Roster grouped by semester
// @Description Active users grouped by semester tag for the comparison picker
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /users/roster [get]
func (h *UserHandler) Roster(c *gin.Context) {
	groups, err := h.service.Roster(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil)
}

// Get godoc
// @Summary Get one user
// @Tags Users
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /users/{username} [get]
func (h *UserHandler) Get(c *gin.Context) {
	info, err := h.service.Get(c.Request.Context(), c.Param("username"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// Deactivate godoc
// @Summary Deactivate own account
// @Description Soft-delete the current account; the stored schedule is kept
// @Tags Users
// @Produce json
// @Param username path string true "Username"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /users/{username} [delete]
func (h *UserHandler) Deactivate(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	username := c.Param("username")
	if username != claims.Username {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "only your own account can be deactivated"))
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), username); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
