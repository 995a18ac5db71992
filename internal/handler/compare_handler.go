package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gpt400/schedule-gap-api/internal/service"
	appErrors "github.com/gpt400/schedule-gap-api/pkg/errors"
	"github.com/gpt400/schedule-gap-api/pkg/response"
)

// CompareHandler exposes the shared-availability engine.
type CompareHandler struct {
	service *service.CompareService
}

// NewCompareHandler creates a new handler.
func NewCompareHandler(svc *service.CompareService) *CompareHandler {
	return &CompareHandler{service: svc}
}

// CommonFree godoc
// @Summary Common free blocks
// @Description Blocks on one day where every selected user is free, grouped into runs
// @Tags Compare
// @Accept json
// @Produce json
// @Param payload body service.CompareRequest true "Selection"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /compare/free [post]
func (h *CompareHandler) CommonFree(c *gin.Context) {
	var req service.CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comparison payload"))
		return
	}

	result, err := h.service.FindCommonFree(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// BestHour godoc
// @Summary Least-conflict hour
// @Description The hour-aligned window excluding the fewest users; always returns a window
// @Tags Compare
// @Accept json
// @Produce json
// @Param payload body service.CompareRequest true "Selection"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /compare/best-hour [post]
func (h *CompareHandler) BestHour(c *gin.Context) {
	var req service.CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comparison payload"))
		return
	}

	result, err := h.service.FindBestHour(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
