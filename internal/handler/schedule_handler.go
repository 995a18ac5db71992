package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gpt400/schedule-gap-api/internal/middleware"
	"github.com/gpt400/schedule-gap-api/internal/models"
	"github.com/gpt400/schedule-gap-api/internal/service"
	appErrors "github.com/gpt400/schedule-gap-api/pkg/errors"
	"github.com/gpt400/schedule-gap-api/pkg/response"
)

// ScheduleHandler exposes the current user's week grid and its edits.
type ScheduleHandler struct {
	service  *service.ScheduleService
	exporter *service.ExportService
}

// NewScheduleHandler creates a new handler.
func NewScheduleHandler(svc *service.ScheduleService, exporter *service.ExportService) *ScheduleHandler {
	return &ScheduleHandler{service: svc, exporter: exporter}
}

type blockUpdateRequest struct {
	Busy bool `json:"busy"`
}

// Week godoc
// @Summary Get the week grid
// @Description Full seven-day 15-minute grid for the current user
// @Tags Schedule
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schedule [get]
func (h *ScheduleHandler) Week(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	week, err := h.service.Week(c.Request.Context(), claims.Username)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, week, nil)
}

// Day godoc
// @Summary Get one weekday's grid
// @Tags Schedule
// @Produce json
// @Param day path string true "Weekday name"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /schedule/days/{day} [get]
func (h *ScheduleHandler) Day(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	grid, err := h.service.DayGrid(c.Request.Context(), claims.Username, c.Param("day"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dayEnvelope(c.Param("day"), grid), nil)
}

// SetBlock godoc
// @Summary Set one 15-minute block
// @Description Mark a single block busy or free and persist immediately
// @Tags Schedule
// @Accept json
// @Produce json
// @Param day path string true "Weekday name"
// @Param block path int true "Block index (0-59)"
// @Param payload body blockUpdateRequest true "Busy flag"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /schedule/days/{day}/blocks/{block} [put]
func (h *ScheduleHandler) SetBlock(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	block, err := strconv.Atoi(c.Param("block"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidArgument, "block must be an integer"))
		return
	}
	var req blockUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid block payload"))
		return
	}

	grid, err := h.service.SetBlock(c.Request.Context(), claims.Username, c.Param("day"), block, req.Busy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dayEnvelope(c.Param("day"), grid), nil)
}

// ToggleHour godoc
// @Summary Set a whole hour
// @Description Set all four blocks of an hour busy or free in one edit
// @Tags Schedule
// @Accept json
// @Produce json
// @Param day path string true "Weekday name"
// @Param hour path int true "Hour index (0-14)"
// @Param payload body blockUpdateRequest true "Busy flag"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /schedule/days/{day}/hours/{hour} [put]
func (h *ScheduleHandler) ToggleHour(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	hour, err := strconv.Atoi(c.Param("hour"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidArgument, "hour must be an integer"))
		return
	}
	var req blockUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid hour payload"))
		return
	}

	grid, err := h.service.ToggleHour(c.Request.Context(), claims.Username, c.Param("day"), hour, req.Busy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dayEnvelope(c.Param("day"), grid), nil)
}

// Export godoc
// @Summary Export the week grid
// @Description Download the current user's week grid as CSV or PDF
// @Tags Schedule
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(pdf)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /schedule/export [get]
func (h *ScheduleHandler) Export(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	week, err := h.service.Week(c.Request.Context(), claims.Username)
	if err != nil {
		response.Error(c, err)
		return
	}

	format := models.ReportFormat(c.DefaultQuery("format", string(models.ReportFormatPDF)))
	data, filename, contentType, err := h.exporter.RenderWeek(claims.Username, week, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

func dayEnvelope(day string, grid models.DaySchedule) gin.H {
	return gin.H{"day": day, "blocks": grid}
}
